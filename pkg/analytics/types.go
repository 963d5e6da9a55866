// Package analytics implements the deterministic feed-analysis engine: a
// pure function from a list of feed messages and a time window to sentiment,
// engagement, trending, influence, and anomaly signals.
//
// The engine never returns an error — invalid or missing fields on the input
// are coerced to sane defaults, per the "Errors" contract in the design this
// package implements.
package analytics

import "time"

// FeedMessage is one inbound feed message as accepted by the engine. It is
// intentionally permissive: callers (the HTTP layer) are responsible for
// strict validation before this point, so the engine tolerates zero values
// and malformed timestamps rather than failing.
type FeedMessage struct {
	UserID    string   `json:"user_id"`
	Content   string   `json:"content"`
	Timestamp string   `json:"timestamp"`
	Hashtags  []string `json:"hashtags,omitempty"`
	Reactions int      `json:"reactions"`
	Shares    int      `json:"shares"`
	Views     int      `json:"views"`
}

// SentimentDistribution holds the percentage split across labels for the
// analyzed feed. Positive+Negative+Neutral is always 0 or 100 (±0.01).
type SentimentDistribution struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
}

// TrendingTopic is one ranked hashtag with its accumulated recency/sentiment
// weight, capped to the top 5 per feed.
type TrendingTopic struct {
	Tag    string  `json:"tag"`
	Weight float64 `json:"weight"`
	Count  int     `json:"count"`
}

// InfluenceRankingItem is one user's ranked influence contribution.
type InfluenceRankingItem struct {
	UserID         string  `json:"user_id"`
	Followers      int     `json:"followers"`
	EngagementRate float64 `json:"engagement_rate"`
	InfluenceScore float64 `json:"influence_score"`
}

// Flags holds the boolean signals derived from the feed as a whole.
type Flags struct {
	MbrasEmployee      bool `json:"mbras_employee"`
	SpecialPattern     bool `json:"special_pattern"`
	CandidateAwareness bool `json:"candidate_awareness"`
}

// Analysis is the complete output of Analyze.
type Analysis struct {
	SentimentDistribution SentimentDistribution  `json:"sentiment_distribution"`
	EngagementScore       float64                `json:"engagement_score"`
	TrendingTopics        []TrendingTopic        `json:"trending_topics"`
	InfluenceRanking      []InfluenceRankingItem `json:"influence_ranking"`
	AnomalyDetected       bool                   `json:"anomaly_detected"`
	AnomalyType           *string                `json:"anomaly_type,omitempty"`
	Flags                 Flags                  `json:"flags"`
}

// sentimentLabel is the per-message classification used internally while
// aggregating; it never appears in the public Analysis output.
type sentimentLabel string

const (
	labelPositive sentimentLabel = "positive"
	labelNegative sentimentLabel = "negative"
	labelNeutral  sentimentLabel = "neutral"
	labelMeta     sentimentLabel = "meta"
)

// scoredMessage bundles an input message with everything computed about it
// during the per-message sentiment pass, so later aggregation stages never
// recompute sentiment.
type scoredMessage struct {
	raw       FeedMessage
	ts        time.Time
	hasValidTS bool
	isEmployee bool
	label     sentimentLabel
	score     float64
}
