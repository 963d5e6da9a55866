package consumer

import (
	"encoding/json"
	"fmt"

	"github.com/mbras/feedpulse/pkg/analytics"
	"github.com/mbras/feedpulse/pkg/broker"
	"github.com/mbras/feedpulse/pkg/models"
)

// normalized is the canonical shape every supported envelope is projected
// into before persistence, per §4.5 step 4.
type normalized struct {
	Sentiment       analytics.SentimentDistribution
	EngagementScore *float64
	Topics          []string
	Influence       []analytics.InfluenceRankingItem
	AnomalyDetected bool
	AnomalyType     *string
	Flags           analytics.Flags
}

// flatPayload is the message_received envelope's payload shape, matching
// the outbox payload projection built by the ingestion fast path.
type flatPayload struct {
	SentimentDistribution analytics.SentimentDistribution  `json:"sentiment_distribution"`
	EngagementScore       *float64                         `json:"engagement_score"`
	TrendingTopics        []analytics.TrendingTopic         `json:"trending_topics"`
	InfluenceRanking      []analytics.InfluenceRankingItem  `json:"influence_ranking"`
	AnomalyDetected       bool                              `json:"anomaly_detected"`
	AnomalyType           *string                           `json:"anomaly_type"`
	Flags                 analytics.Flags                   `json:"flags"`
}

// completedPayload is the analyze_feed.completed envelope's payload shape:
// a nested full Analysis document.
type completedPayload struct {
	Analysis analytics.Analysis `json:"analysis"`
}

// analyticsSnapshot is the analysis portion of the search-index document
// (§4.5 step 6), flattening trending topics to tag names.
type analyticsSnapshot struct {
	SentimentDistribution analytics.SentimentDistribution  `json:"sentiment_distribution"`
	EngagementScore       *float64                          `json:"engagement_score,omitempty"`
	TrendingTopics        []string                           `json:"trending_topics,omitempty"`
	InfluenceRanking      []analytics.InfluenceRankingItem  `json:"influence_ranking,omitempty"`
	AnomalyDetected       bool                               `json:"anomaly_detected"`
	AnomalyType           *string                            `json:"anomaly_type,omitempty"`
}

// analyticDocument is the full document indexed into the search engine.
type analyticDocument struct {
	TimestampUTC  string             `json:"timestampUtc"`
	EventName     string             `json:"eventName"`
	CorrelationID string             `json:"correlationId"`
	MessageID     string             `json:"messageId"`
	Analysis      analyticsSnapshot  `json:"analysis"`
	Flags         analytics.Flags    `json:"flags"`
}

// projectPayload decodes env.Payload according to env.EventName into the
// canonical normalized shape (§4.5 step 4).
func projectPayload(env broker.Envelope) (*normalized, error) {
	switch env.EventName {
	case models.EventMessageReceived:
		var p flatPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decoding message_received payload: %w", err)
		}
		return &normalized{
			Sentiment:       p.SentimentDistribution,
			EngagementScore: p.EngagementScore,
			Topics:          topicNames(p.TrendingTopics),
			Influence:       p.InfluenceRanking,
			AnomalyDetected: p.AnomalyDetected,
			AnomalyType:     p.AnomalyType,
			Flags:           p.Flags,
		}, nil
	case models.EventAnalyzeFeedCompleted:
		var p completedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decoding analyze_feed.completed payload: %w", err)
		}
		score := p.Analysis.EngagementScore
		return &normalized{
			Sentiment:       p.Analysis.SentimentDistribution,
			EngagementScore: &score,
			Topics:          topicNames(p.Analysis.TrendingTopics),
			Influence:       p.Analysis.InfluenceRanking,
			AnomalyDetected: p.Analysis.AnomalyDetected,
			AnomalyType:     p.Analysis.AnomalyType,
			Flags:           p.Analysis.Flags,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported event name %q", env.EventName)
	}
}

func topicNames(topics []analytics.TrendingTopic) []string {
	if len(topics) == 0 {
		return nil
	}
	names := make([]string, len(topics))
	for i, t := range topics {
		names[i] = t.Tag
	}
	return names
}
