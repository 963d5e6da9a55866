package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mbras/feedpulse/pkg/models"
)

// GetMessageByCorrelationID implements the idempotency lookup: invariant 1
// of the persistence layer (duplicate correlation_id returns the existing row).
func (s *Session) GetMessageByCorrelationID(ctx context.Context, correlationID string) (*models.Message, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, user_id, correlation_id, created_at, request_raw, engagement_score, ranking, influence_ranking_score
		FROM messages WHERE correlation_id = $1`, correlationID)
	return scanMessage(row)
}

// GetMessagesByCorrelationIDs fetches all messages whose correlation_id is in
// the given set, used by the fast path's single dedup query.
func (s *Session) GetMessagesByCorrelationIDs(ctx context.Context, correlationIDs []string) ([]models.Message, error) {
	if len(correlationIDs) == 0 {
		return nil, nil
	}
	rows, err := s.q.Query(ctx, `
		SELECT id, user_id, correlation_id, created_at, request_raw, engagement_score, ranking, influence_ranking_score
		FROM messages WHERE correlation_id = ANY($1)`, correlationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

// CreateMessage inserts a single message row (the online analyze path).
func (s *Session) CreateMessage(ctx context.Context, m models.Message) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO messages (id, user_id, correlation_id, created_at, request_raw, engagement_score, ranking, influence_ranking_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.UserID, m.CorrelationID, m.CreatedAt, m.RequestRaw, m.EngagementScore, m.Ranking, m.InfluenceRankingScore,
	)
	if err != nil && isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

// BulkInsertMessages inserts many message rows in one batch, used by the fast path.
func (s *Session) BulkInsertMessages(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range msgs {
		batch.Queue(`
			INSERT INTO messages (id, user_id, correlation_id, created_at, request_raw, engagement_score, ranking, influence_ranking_score)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			m.ID, m.UserID, m.CorrelationID, m.CreatedAt, m.RequestRaw, m.EngagementScore, m.Ranking, m.InfluenceRankingScore,
		)
	}
	br := s.q.SendBatch(ctx, batch)
	defer br.Close()
	for range msgs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpdateMessageEngagement sets a message's engagement_score, used by the
// consumer when upserting a normalized analysis.
func (s *Session) UpdateMessageEngagement(ctx context.Context, messageID uuid.UUID, score float64) error {
	_, err := s.q.Exec(ctx, `UPDATE messages SET engagement_score = $2 WHERE id = $1`, messageID, score)
	return err
}

// MessageListFilters narrows GET /messages results.
type MessageListFilters struct {
	UserID   *uuid.UUID
	FromUTC  *time.Time
	ToUTC    *time.Time
	Page     int
	PageSize int
}

// ListMessages returns a page of messages matching the filters, newest first,
// along with the total row count for pagination metadata.
func (s *Session) ListMessages(ctx context.Context, f MessageListFilters) ([]models.Message, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	argN := 0
	next := func(v any) string {
		argN++
		args = append(args, v)
		return "$" + strconv.Itoa(argN)
	}

	if f.UserID != nil {
		where += " AND user_id = " + next(*f.UserID)
	}
	if f.FromUTC != nil {
		where += " AND created_at >= " + next(*f.FromUTC)
	}
	if f.ToUTC != nil {
		where += " AND created_at <= " + next(*f.ToUTC)
	}

	var total int
	countRow := s.q.QueryRow(ctx, `SELECT count(*) FROM messages `+where, args...)
	if err := countRow.Scan(&total); err != nil {
		return nil, 0, err
	}

	page, pageSize := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	limitArg := next(pageSize)
	offsetArg := next(offset)

	rows, err := s.q.Query(ctx, `
		SELECT id, user_id, correlation_id, created_at, request_raw, engagement_score, ranking, influence_ranking_score
		FROM messages `+where+`
		ORDER BY created_at DESC
		LIMIT `+limitArg+` OFFSET `+offsetArg, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

// LoadRelated assembles the full set of 1-to-1 children, influence items, and
// topic names for a message, used by GET /messages.
func (s *Session) LoadRelated(ctx context.Context, messageID uuid.UUID) (*models.RelatedMessage, error) {
	msgRow := s.q.QueryRow(ctx, `
		SELECT id, user_id, correlation_id, created_at, request_raw, engagement_score, ranking, influence_ranking_score
		FROM messages WHERE id = $1`, messageID)
	msg, err := scanMessage(msgRow)
	if err != nil {
		return nil, err
	}

	related := &models.RelatedMessage{Message: *msg}

	sentRow := s.q.QueryRow(ctx, `SELECT positive, negative, neutral FROM message_sentiment WHERE message_id = $1`, messageID)
	var sent models.Sentiment
	sent.MessageID = messageID
	if err := sentRow.Scan(&sent.Positive, &sent.Negative, &sent.Neutral); err == nil {
		related.Sentiment = &sent
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	flagsRow := s.q.QueryRow(ctx, `SELECT mbras_employee, special_pattern, candidate_awareness FROM message_flags WHERE message_id = $1`, messageID)
	var flags models.Flags
	flags.MessageID = messageID
	if err := flagsRow.Scan(&flags.MbrasEmployee, &flags.SpecialPattern, &flags.CandidateAwareness); err == nil {
		related.Flags = &flags
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	anomalyRow := s.q.QueryRow(ctx, `SELECT anomaly_detected, anomaly_type FROM message_anomaly WHERE message_id = $1`, messageID)
	var anomaly models.Anomaly
	anomaly.MessageID = messageID
	if err := anomalyRow.Scan(&anomaly.AnomalyDetected, &anomaly.AnomalyType); err == nil {
		related.Anomaly = &anomaly
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	procRow := s.q.QueryRow(ctx, `
		SELECT queue_messaging, processing_success, processing_status, failure_stage, failed_reason, elastic_name, elastic_index_name, updated_at
		FROM message_processing WHERE message_id = $1`, messageID)
	var proc models.Processing
	proc.MessageID = messageID
	if err := procRow.Scan(&proc.QueueMessaging, &proc.ProcessingSuccess, &proc.ProcessingStatus, &proc.FailureStage, &proc.FailedReason, &proc.ElasticName, &proc.ElasticIndexName, &proc.UpdatedAt); err == nil {
		related.Processing = &proc
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	infRows, err := s.q.Query(ctx, `
		SELECT message_id, external_user_key, followers, engagement_rate, influence_score
		FROM influence_ranking_items WHERE message_id = $1`, messageID)
	if err != nil {
		return nil, err
	}
	for infRows.Next() {
		var it models.InfluenceRankingItem
		if err := infRows.Scan(&it.MessageID, &it.ExternalUserKey, &it.Followers, &it.EngagementRate, &it.InfluenceScore); err != nil {
			infRows.Close()
			return nil, err
		}
		related.Influence = append(related.Influence, it)
	}
	infRows.Close()
	if err := infRows.Err(); err != nil {
		return nil, err
	}

	topicRows, err := s.q.Query(ctx, `
		SELECT t.name FROM topics t
		JOIN message_topics mt ON mt.topic_id = t.id
		WHERE mt.message_id = $1`, messageID)
	if err != nil {
		return nil, err
	}
	for topicRows.Next() {
		var name string
		if err := topicRows.Scan(&name); err != nil {
			topicRows.Close()
			return nil, err
		}
		related.Topics = append(related.Topics, name)
	}
	topicRows.Close()
	if err := topicRows.Err(); err != nil {
		return nil, err
	}

	return related, nil
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	if err := row.Scan(&m.ID, &m.UserID, &m.CorrelationID, &m.CreatedAt, &m.RequestRaw, &m.EngagementScore, &m.Ranking, &m.InfluenceRankingScore); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func collectMessages(rows pgx.Rows) ([]models.Message, error) {
	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.UserID, &m.CorrelationID, &m.CreatedAt, &m.RequestRaw, &m.EngagementScore, &m.Ranking, &m.InfluenceRankingScore); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
