package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mbras/feedpulse/pkg/metrics"
	"github.com/mbras/feedpulse/pkg/models"
	"github.com/mbras/feedpulse/pkg/storage"
)

// Engine runs the bulk ingestion fast path over a storage.Client.
type Engine struct {
	client *storage.Client
}

// NewEngine builds a fast-path engine over the given storage client.
func NewEngine(client *storage.Client) *Engine {
	return &Engine{client: client}
}

// Execute implements the fast path's algorithm (§4.3): prepare, dedup against
// the DB, dedup within the batch, resolve/upsert users, build three parallel
// row arrays, and bulk-insert them all in one transaction.
func (e *Engine) Execute(ctx context.Context, items []Item) (*BatchResult, error) {
	if len(items) > MaxBatchItems {
		return nil, ErrBatchLimitExceeded
	}

	timings := map[string]float64{}
	stage := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		d := time.Since(start)
		timings[name] = float64(d.Microseconds()) / 1000.0
		metrics.IngestFastPathStageSeconds.WithLabelValues(name).Observe(d.Seconds())
		return err
	}

	batchID := uuid.New()
	now := time.Now().UTC()

	totalStart := time.Now()

	var preps []prepared

	if err := stage("prepare_items", func() error {
		preps = make([]prepared, len(items))
		for i, it := range items {
			cid := uuid.NewString()
			if it.CorrelationID != nil && *it.CorrelationID != "" {
				cid = *it.CorrelationID
			}
			preps[i] = prepared{item: it, correlationID: cid}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	var existingByCID map[string]bool
	var accepted []prepared

	err := storage.WithTx(ctx, e.client, func(ctx context.Context, s *storage.Session) error {
		if err := stage("query_existing_messages", func() error {
			cids := make([]string, len(preps))
			for i, p := range preps {
				cids[i] = p.correlationID
			}
			existing, err := s.GetMessagesByCorrelationIDs(ctx, cids)
			if err != nil {
				return err
			}
			existingByCID = make(map[string]bool, len(existing))
			for _, m := range existing {
				existingByCID[m.CorrelationID] = true
			}
			return nil
		}); err != nil {
			return err
		}

		if err := stage("dedupe_batch", func() error {
			seen := make(map[string]bool)
			accepted = make([]prepared, 0, len(preps))
			for _, p := range preps {
				if existingByCID[p.correlationID] || seen[p.correlationID] {
					continue
				}
				seen[p.correlationID] = true
				accepted = append(accepted, p)
			}
			return nil
		}); err != nil {
			return err
		}

		idByRaw := make(map[string]uuid.UUID, len(accepted))
		if err := stage("resolve_users", func() error {
			return resolveUsers(ctx, s, accepted, now, idByRaw)
		}); err != nil {
			return err
		}

		var msgRows []models.Message
		var procRows []models.Processing
		var outboxRows []models.OutboxEvent

		if err := stage("build_rows", func() error {
			msgRows = make([]models.Message, 0, len(accepted))
			procRows = make([]models.Processing, 0, len(accepted))
			outboxRows = make([]models.OutboxEvent, 0, len(accepted))

			for _, p := range accepted {
				messageID := uuid.New()
				userID := idByRaw[p.item.UserID]

				msgRows = append(msgRows, models.Message{
					ID:              messageID,
					UserID:          userID,
					CorrelationID:   p.correlationID,
					CreatedAt:       now,
					EngagementScore: p.item.EngagementScore,
				})

				procRows = append(procRows, models.Processing{
					MessageID:        messageID,
					ProcessingStatus: models.ProcessingReceived,
					UpdatedAt:        now,
				})

				payload, err := json.Marshal(outboxPayload{
					UserID:                 p.item.UserID,
					SentimentDistribution:  p.item.SentimentDistribution,
					EngagementScore:        p.item.EngagementScore,
					TrendingTopics:         p.item.TrendingTopics,
					InfluenceRanking:       p.item.InfluenceRanking,
					AnomalyDetected:        p.item.AnomalyDetected,
					AnomalyType:            p.item.AnomalyType,
					Flags:                  p.item.Flags,
					BatchID:                batchID,
				})
				if err != nil {
					return fmt.Errorf("marshaling outbox payload: %w", err)
				}

				outboxRows = append(outboxRows, models.OutboxEvent{
					ID:            uuid.New(),
					MessageID:     messageID,
					CorrelationID: p.correlationID,
					EventType:     models.EventMessageReceived,
					Payload:       payload,
					Status:        models.OutboxPending,
					AvailableAt:   now,
					CreatedAt:     now,
					UpdatedAt:     now,
				})
			}
			return nil
		}); err != nil {
			return err
		}

		if err := stage("insert_messages", func() error { return s.BulkInsertMessages(ctx, msgRows) }); err != nil {
			return err
		}
		if err := stage("insert_processing", func() error {
			for _, p := range procRows {
				if err := s.CreateProcessing(ctx, p); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return err
		}
		if err := stage("insert_outbox", func() error { return s.BulkInsertOutboxEvents(ctx, outboxRows) }); err != nil {
			return err
		}
		return stage("flush", func() error { return nil })
	})

	_ = stage("commit", func() error { return err })
	timings["total"] = float64(time.Since(totalStart).Microseconds()) / 1000.0

	if err != nil {
		return nil, fmt.Errorf("fast path batch failed: %w", err)
	}

	metrics.IngestFastPathItemsAccepted.Add(float64(len(accepted)))

	return &BatchResult{
		BatchID:  batchID,
		Accepted: len(accepted),
		Timings:  timings,
	}, nil
}
