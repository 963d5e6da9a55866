package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mbras/feedpulse/pkg/models"
)

// CreateSentiment inserts a message's sentiment row; unlike UpsertSentiment
// it fails if the row already exists.
func (s *Session) CreateSentiment(ctx context.Context, m models.Sentiment) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO message_sentiment (message_id, positive, negative, neutral)
		VALUES ($1, $2, $3, $4)`,
		m.MessageID, m.Positive, m.Negative, m.Neutral,
	)
	return err
}

// UpsertSentiment inserts or replaces a message's sentiment row, used by the consumer.
func (s *Session) UpsertSentiment(ctx context.Context, m models.Sentiment) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO message_sentiment (message_id, positive, negative, neutral)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id) DO UPDATE SET
			positive = EXCLUDED.positive,
			negative = EXCLUDED.negative,
			neutral = EXCLUDED.neutral`,
		m.MessageID, m.Positive, m.Negative, m.Neutral,
	)
	return err
}

// CreateFlags inserts a message's flags row; unlike UpsertFlags it fails if
// the row already exists.
func (s *Session) CreateFlags(ctx context.Context, f models.Flags) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO message_flags (message_id, mbras_employee, special_pattern, candidate_awareness)
		VALUES ($1, $2, $3, $4)`,
		f.MessageID, f.MbrasEmployee, f.SpecialPattern, f.CandidateAwareness,
	)
	return err
}

// UpsertFlags inserts or replaces a message's flags row, used by the consumer.
func (s *Session) UpsertFlags(ctx context.Context, f models.Flags) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO message_flags (message_id, mbras_employee, special_pattern, candidate_awareness)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id) DO UPDATE SET
			mbras_employee = EXCLUDED.mbras_employee,
			special_pattern = EXCLUDED.special_pattern,
			candidate_awareness = EXCLUDED.candidate_awareness`,
		f.MessageID, f.MbrasEmployee, f.SpecialPattern, f.CandidateAwareness,
	)
	return err
}

// CreateAnomaly inserts a message's anomaly row; unlike UpsertAnomaly it
// fails if the row already exists.
func (s *Session) CreateAnomaly(ctx context.Context, a models.Anomaly) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO message_anomaly (message_id, anomaly_detected, anomaly_type)
		VALUES ($1, $2, $3)`,
		a.MessageID, a.AnomalyDetected, a.AnomalyType,
	)
	return err
}

// UpsertAnomaly inserts or replaces a message's anomaly row, used by the consumer.
func (s *Session) UpsertAnomaly(ctx context.Context, a models.Anomaly) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO message_anomaly (message_id, anomaly_detected, anomaly_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id) DO UPDATE SET
			anomaly_detected = EXCLUDED.anomaly_detected,
			anomaly_type = EXCLUDED.anomaly_type`,
		a.MessageID, a.AnomalyDetected, a.AnomalyType,
	)
	return err
}

// CreateProcessing inserts a message's processing row (online analyze and fast paths).
func (s *Session) CreateProcessing(ctx context.Context, p models.Processing) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO message_processing (message_id, queue_messaging, processing_success, processing_status, failure_stage, failed_reason, elastic_name, elastic_index_name, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.MessageID, p.QueueMessaging, p.ProcessingSuccess, p.ProcessingStatus, p.FailureStage, p.FailedReason, p.ElasticName, p.ElasticIndexName, p.UpdatedAt,
	)
	return err
}

// ProcessingUpdate carries one or more optional field updates for
// UpdateProcessing. Per-field Field[T] values distinguish "leave untouched"
// from "set, possibly to null" — a single merged struct with bare pointers
// could not express that distinction for already-nullable columns.
type ProcessingUpdate struct {
	QueueMessaging    Field[string]
	ProcessingSuccess Field[bool]
	ProcessingStatus  Field[string]
	FailureStage      Field[string]
	FailedReason      Field[string]
	ElasticName       Field[string]
	ElasticIndexName  Field[string]
}

// UpdateProcessing applies a partial update to a message's processing row,
// touching only the fields the caller marked present, and always refreshing
// updated_at.
func (s *Session) UpdateProcessing(ctx context.Context, messageID uuid.UUID, upd ProcessingUpdate, now time.Time) error {
	set := "updated_at = $1"
	args := []any{now}
	argN := 1

	add := func(col string, present bool, val any) {
		if !present {
			return
		}
		argN++
		set += ", " + col + " = $" + strconv.Itoa(argN)
		args = append(args, val)
	}

	add("queue_messaging", upd.QueueMessaging.Present(), upd.QueueMessaging.Value())
	add("processing_success", upd.ProcessingSuccess.Present(), upd.ProcessingSuccess.Value())
	add("processing_status", upd.ProcessingStatus.Present(), upd.ProcessingStatus.Value())
	add("failure_stage", upd.FailureStage.Present(), upd.FailureStage.Value())
	add("failed_reason", upd.FailedReason.Present(), upd.FailedReason.Value())
	add("elastic_name", upd.ElasticName.Present(), upd.ElasticName.Value())
	add("elastic_index_name", upd.ElasticIndexName.Present(), upd.ElasticIndexName.Value())

	argN++
	args = append(args, messageID)

	_, err := s.q.Exec(ctx, `UPDATE message_processing SET `+set+` WHERE message_id = $`+strconv.Itoa(argN), args...)
	return err
}
