package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mbras/feedpulse/pkg/models"
)

// BulkInsertOutboxEvents inserts many outbox rows in one batch, used by the fast path.
func (s *Session) BulkInsertOutboxEvents(ctx context.Context, events []models.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO outbox_events (id, message_id, correlation_id, event_type, payload, status, attempts, last_error, available_at, locked_at, locked_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			e.ID, e.MessageID, e.CorrelationID, e.EventType, e.Payload, e.Status, e.Attempts, e.LastError, e.AvailableAt, e.LockedAt, e.LockedBy, e.CreatedAt, e.UpdatedAt,
		)
	}
	br := s.q.SendBatch(ctx, batch)
	defer br.Close()
	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ClaimOutboxEvents is the concurrency-critical primitive of the dispatcher
// (§5): it atomically selects up to limit eligible rows (status in
// pending/failed, available_at <= now, lock expired or absent), marks them
// locked by worker_id with attempts incremented, and returns them — all
// within the caller's transaction. Callers MUST invoke this inside WithTx so
// the SELECT ... FOR UPDATE SKIP LOCKED and the claiming UPDATE commit
// together.
func (s *Session) ClaimOutboxEvents(ctx context.Context, now time.Time, lockCutoff time.Time, workerID string, limit int, eventTypes []string) ([]models.OutboxEvent, error) {
	var rows pgx.Rows
	var err error

	if len(eventTypes) > 0 {
		rows, err = s.q.Query(ctx, `
			SELECT id FROM outbox_events
			WHERE status IN ('pending', 'failed')
			  AND available_at <= $1
			  AND (locked_at IS NULL OR locked_at < $2)
			  AND event_type = ANY($3)
			ORDER BY created_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED`, now, lockCutoff, eventTypes, limit)
	} else {
		rows, err = s.q.Query(ctx, `
			SELECT id FROM outbox_events
			WHERE status IN ('pending', 'failed')
			  AND available_at <= $1
			  AND (locked_at IS NULL OR locked_at < $2)
			ORDER BY created_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED`, now, lockCutoff, limit)
	}
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	claimedRows, err := s.q.Query(ctx, `
		UPDATE outbox_events
		SET locked_at = $2, locked_by = $3, attempts = attempts + 1, updated_at = $2
		WHERE id = ANY($1)
		RETURNING id, message_id, correlation_id, event_type, payload, status, attempts, last_error, available_at, locked_at, locked_by, created_at, updated_at`,
		ids, now, workerID,
	)
	if err != nil {
		return nil, err
	}
	defer claimedRows.Close()

	var events []models.OutboxEvent
	for claimedRows.Next() {
		var e models.OutboxEvent
		if err := claimedRows.Scan(&e.ID, &e.MessageID, &e.CorrelationID, &e.EventType, &e.Payload, &e.Status, &e.Attempts, &e.LastError, &e.AvailableAt, &e.LockedAt, &e.LockedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, claimedRows.Err()
}

// MarkOutboxPublished marks a claimed event as terminally published.
func (s *Session) MarkOutboxPublished(ctx context.Context, id uuid.UUID, now time.Time) error {
	_, err := s.q.Exec(ctx, `
		UPDATE outbox_events
		SET status = 'published', last_error = NULL, locked_at = NULL, locked_by = NULL, updated_at = $2
		WHERE id = $1`, id, now)
	return err
}

// MarkOutboxFailed marks a claimed event as failed, scheduling its next
// attempt at nextAvailableAt and recording a truncated error message.
func (s *Session) MarkOutboxFailed(ctx context.Context, id uuid.UUID, now time.Time, nextAvailableAt time.Time, lastError string) error {
	_, err := s.q.Exec(ctx, `
		UPDATE outbox_events
		SET status = 'failed', last_error = $4, available_at = $3, locked_at = NULL, locked_by = NULL, updated_at = $2
		WHERE id = $1`, id, now, nextAvailableAt, lastError)
	return err
}
