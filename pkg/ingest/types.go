// Package ingest implements the bulk ingestion fast path: it accepts
// pre-computed analyses and writes messages, processing rows, and outbox
// events in one transaction, skipping the online analytic engine entirely.
package ingest

import (
	"errors"

	"github.com/google/uuid"
)

// ErrBatchLimitExceeded is returned when a caller submits more than
// MaxBatchItems items in one call.
var ErrBatchLimitExceeded = errors.New("batch exceeds item limit")

// MaxBatchItems is the hard cap on items per fast-path call (§5 Backpressure).
const MaxBatchItems = 1000

// Flags mirrors the analytic engine's output flags, as supplied by the caller.
type Flags struct {
	MbrasEmployee      bool `json:"mbras_employee"`
	SpecialPattern     bool `json:"special_pattern"`
	CandidateAwareness bool `json:"candidate_awareness"`
}

// SentimentDistribution mirrors analytics.SentimentDistribution's shape.
type SentimentDistribution struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
}

// TrendingTopic mirrors analytics.TrendingTopic's shape.
type TrendingTopic struct {
	Tag    string  `json:"tag"`
	Weight float64 `json:"weight"`
	Count  int     `json:"count"`
}

// InfluenceRankingItem mirrors analytics.InfluenceRankingItem's shape.
type InfluenceRankingItem struct {
	UserID         string  `json:"user_id"`
	Followers      int     `json:"followers"`
	EngagementRate float64 `json:"engagement_rate"`
	InfluenceScore float64 `json:"influence_score"`
}

// Item is one caller-supplied, pre-computed analysis to persist. Items are
// assumed already validated by the HTTP adapter.
type Item struct {
	UserID                string
	CorrelationID         *string
	SentimentDistribution SentimentDistribution
	EngagementScore       *float64
	TrendingTopics        []TrendingTopic
	InfluenceRanking      []InfluenceRankingItem
	AnomalyDetected       bool
	AnomalyType           *string
	Flags                 Flags
}

// prepared is one item after correlation-id assignment, before dedup.
type prepared struct {
	item          Item
	correlationID string
}

// BatchResult is the fast path's synchronous response.
type BatchResult struct {
	BatchID  uuid.UUID
	Accepted int
	Timings  map[string]float64 // milliseconds, per stage
}

// outboxPayload is the projected shape written into OutboxEvent.payload —
// only the keys named in §4.3, plus batch_id.
type outboxPayload struct {
	UserID                 string                 `json:"user_id"`
	SentimentDistribution  SentimentDistribution  `json:"sentiment_distribution"`
	EngagementScore        *float64               `json:"engagement_score,omitempty"`
	TrendingTopics         []TrendingTopic        `json:"trending_topics,omitempty"`
	InfluenceRanking       []InfluenceRankingItem `json:"influence_ranking,omitempty"`
	AnomalyDetected        bool                   `json:"anomaly_detected"`
	AnomalyType            *string                `json:"anomaly_type,omitempty"`
	Flags                  Flags                  `json:"flags"`
	BatchID                uuid.UUID              `json:"batch_id"`
}
