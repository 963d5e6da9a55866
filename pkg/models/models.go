// Package models defines the domain entities shared by every component of
// the feed analytics pipeline: the analytic engine's input/output shapes,
// the persisted relational rows, and the outbox envelope.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User identifies a feed participant, either by a caller-supplied UUID or by
// an opaque external key resolved just-in-time during ingestion.
type User struct {
	ID          uuid.UUID `json:"id"`
	ExternalKey *string   `json:"external_key,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Message is the root row created for every analyzed or fast-path-ingested
// feed item. CorrelationID is the idempotency key for all inbound operations.
type Message struct {
	ID                    uuid.UUID `json:"id"`
	UserID                uuid.UUID `json:"user_id"`
	CorrelationID         string    `json:"correlation_id"`
	CreatedAt             time.Time `json:"created_at"`
	RequestRaw            *string   `json:"request_raw,omitempty"`
	EngagementScore       *float64  `json:"engagement_score,omitempty"`
	Ranking               *int      `json:"ranking,omitempty"`
	InfluenceRankingScore *float64  `json:"influence_ranking_score,omitempty"`
}

// Sentiment is the 1-to-1 sentiment distribution child of a Message.
type Sentiment struct {
	MessageID uuid.UUID `json:"message_id"`
	Positive  float64   `json:"positive"`
	Negative  float64   `json:"negative"`
	Neutral   float64   `json:"neutral"`
}

// Anomaly type enumeration, see spec §3.
const (
	AnomalyBurst                = "burst"
	AnomalyAlternation          = "alternation"
	AnomalySynchronizedPosting  = "synchronized_posting"
)

// Flags is the 1-to-1 boolean-flags child of a Message.
type Flags struct {
	MessageID          uuid.UUID `json:"message_id"`
	MbrasEmployee      bool      `json:"mbras_employee"`
	SpecialPattern     bool      `json:"special_pattern"`
	CandidateAwareness bool      `json:"candidate_awareness"`
}

// Anomaly is the 1-to-1 anomaly-detection child of a Message.
type Anomaly struct {
	MessageID       uuid.UUID `json:"message_id"`
	AnomalyDetected bool      `json:"anomaly_detected"`
	AnomalyType     *string   `json:"anomaly_type,omitempty"`
}

// Processing status enumeration, see spec §3 Invariant 4.
const (
	ProcessingReceived  = "received"
	ProcessingQueued    = "queued"
	ProcessingProcessing = "processing"
	ProcessingProcessed = "processed"
	ProcessingFailed    = "failed"
)

// Processing is the 1-to-1 pipeline-status child of a Message.
type Processing struct {
	MessageID         uuid.UUID `json:"message_id"`
	QueueMessaging    *string   `json:"queue_messaging,omitempty"`
	ProcessingSuccess *bool     `json:"processing_success,omitempty"`
	ProcessingStatus  string    `json:"processing_status"`
	FailureStage      *string   `json:"failure_stage,omitempty"`
	FailedReason      *string   `json:"failed_reason,omitempty"`
	ElasticName       *string   `json:"elastic_name,omitempty"`
	ElasticIndexName  *string   `json:"elastic_index_name,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Topic is a distinct hashtag discovered in trending-topic analysis.
type Topic struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// InfluenceRankingItem is one user's ranked influence contribution to a message's feed.
type InfluenceRankingItem struct {
	MessageID       uuid.UUID `json:"message_id"`
	ExternalUserKey string    `json:"external_user_key"`
	Followers       int       `json:"followers"`
	EngagementRate  float64   `json:"engagement_rate"`
	InfluenceScore  float64   `json:"influence_score"`
}

// Outbox event status enumeration, see spec §3 Invariant 2.
const (
	OutboxPending   = "pending"
	OutboxFailed    = "failed"
	OutboxPublished = "published"
)

// Outbox event types, see spec §6.
const (
	EventMessageReceived      = "message_received"
	EventAnalyzeFeedCompleted = "analyze_feed.completed"
	EventHTTPAuditLog         = "http_audit_log"
)

// OutboxEvent is a durable row awaiting publication to the broker (or bulk
// indexing into the search engine, for audit events).
type OutboxEvent struct {
	ID            uuid.UUID       `json:"id"`
	MessageID     uuid.UUID       `json:"message_id"`
	CorrelationID string          `json:"correlation_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Status        string          `json:"status"`
	Attempts      int             `json:"attempts"`
	LastError     *string         `json:"last_error,omitempty"`
	AvailableAt   time.Time       `json:"available_at"`
	LockedAt      *time.Time      `json:"locked_at,omitempty"`
	LockedBy      *string         `json:"locked_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// RelatedMessage bundles a Message with all of its 1-to-1 children, influence
// items and topics — the shape returned by storage.Session.LoadRelated and by
// the /messages listing endpoint.
type RelatedMessage struct {
	Message    Message                `json:"message"`
	Sentiment  *Sentiment             `json:"sentiment,omitempty"`
	Flags      *Flags                 `json:"flags,omitempty"`
	Anomaly    *Anomaly               `json:"anomaly,omitempty"`
	Processing *Processing            `json:"processing,omitempty"`
	Influence  []InfluenceRankingItem `json:"influence_ranking,omitempty"`
	Topics     []string               `json:"topics,omitempty"`
}
