package api

import (
	"github.com/mbras/feedpulse/pkg/analytics"
	"github.com/mbras/feedpulse/pkg/ingest"
)

// analyzeFeedRequest is the body of POST /analyze-feed. Exactly one of
// Messages or Items must be populated: Messages routes through the online
// analytic engine (C1), Items routes through the bulk ingestion fast path
// (C3).
type analyzeFeedRequest struct {
	Messages          []feedMessageRequest `json:"messages,omitempty"`
	TimeWindowMinutes int                  `json:"time_window_minutes,omitempty"`
	Items             []bulkItemRequest    `json:"items,omitempty"`
}

// feedMessageRequest is one message in the online analyze path, validated
// per §6 before reaching analytics.Analyze.
type feedMessageRequest struct {
	UserID    string   `json:"user_id"`
	Content   string   `json:"content"`
	Timestamp string   `json:"timestamp"`
	Hashtags  []string `json:"hashtags"`
	Reactions int      `json:"reactions"`
	Shares    int      `json:"shares"`
	Views     int      `json:"views"`
}

// bulkItemRequest is one item in the bulk ingestion path. CorrelationID is
// optional; the fast path assigns one when absent.
type bulkItemRequest struct {
	UserID                string                         `json:"user_id"`
	CorrelationID         *string                        `json:"correlation_id,omitempty"`
	SentimentDistribution analytics.SentimentDistribution `json:"sentiment_distribution"`
	EngagementScore       *float64                        `json:"engagement_score,omitempty"`
	TrendingTopics        []analytics.TrendingTopic       `json:"trending_topics,omitempty"`
	InfluenceRanking      []analytics.InfluenceRankingItem `json:"influence_ranking,omitempty"`
	AnomalyDetected       bool                             `json:"anomaly_detected"`
	AnomalyType           *string                          `json:"anomaly_type,omitempty"`
	Flags                 analytics.Flags                  `json:"flags"`
}

func (r bulkItemRequest) toIngestItem() ingest.Item {
	return ingest.Item{
		UserID:                r.UserID,
		CorrelationID:         r.CorrelationID,
		SentimentDistribution: ingest.SentimentDistribution(r.SentimentDistribution),
		EngagementScore:       r.EngagementScore,
		TrendingTopics:        convertTopics(r.TrendingTopics),
		InfluenceRanking:      convertInfluence(r.InfluenceRanking),
		AnomalyDetected:       r.AnomalyDetected,
		AnomalyType:           r.AnomalyType,
		Flags:                 ingest.Flags(r.Flags),
	}
}

func convertTopics(in []analytics.TrendingTopic) []ingest.TrendingTopic {
	if len(in) == 0 {
		return nil
	}
	out := make([]ingest.TrendingTopic, len(in))
	for i, t := range in {
		out[i] = ingest.TrendingTopic(t)
	}
	return out
}

func convertInfluence(in []analytics.InfluenceRankingItem) []ingest.InfluenceRankingItem {
	if len(in) == 0 {
		return nil
	}
	out := make([]ingest.InfluenceRankingItem, len(in))
	for i, it := range in {
		out[i] = ingest.InfluenceRankingItem(it)
	}
	return out
}

// analyzeFeedResponse is the 200 response for the online analyze path.
type analyzeFeedResponse struct {
	Analysis      analytics.Analysis `json:"analysis"`
	CorrelationID string             `json:"correlation_id"`
}

// bulkIngestResponse is the 202 response for the fast path.
type bulkIngestResponse struct {
	BatchID  string `json:"batch_id"`
	Accepted int    `json:"accepted"`
}

// errorResponse is the structured shape for every non-2xx response (§7).
type errorResponse struct {
	Error         string `json:"error"`
	Code          string `json:"code"`
	CorrelationID string `json:"correlation_id"`
}
