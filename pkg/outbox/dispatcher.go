// Package outbox implements the transactional outbox dispatcher (C4): a
// long-running worker that atomically claims due OutboxEvent rows, publishes
// them to the broker (or bulk-indexes audit rows into the search index), and
// commits per-event success/failure status with exponential backoff.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	backoffpkg "github.com/cenkalti/backoff/v4"

	"github.com/mbras/feedpulse/pkg/broker"
	"github.com/mbras/feedpulse/pkg/metrics"
	"github.com/mbras/feedpulse/pkg/models"
	"github.com/mbras/feedpulse/pkg/search"
	"github.com/mbras/feedpulse/pkg/storage"
)

// maxErrorLen truncates stored error messages, per §4.4's "truncated_message".
const maxErrorLen = 500

// Config tunes one dispatcher's polling behavior. WorkerID must be unique
// across concurrently running dispatchers.
type Config struct {
	WorkerID          string
	PollInterval      time.Duration
	PollIntervalJitter time.Duration
	LockTTL           time.Duration
	BatchSize         int
	AuditIndexPrefix  string
}

// Dispatcher runs the single logical claim/publish/status-update loop
// described by §4.4. Only one logical loop runs per worker; multiple
// Dispatcher instances across processes coordinate only through the
// database claim.
type Dispatcher struct {
	storage *storage.Client
	broker  *broker.Client
	search  *search.Client
	cfg     Config

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds a Dispatcher over the given collaborators.
func New(store *storage.Client, brk *broker.Client, srch *search.Client, cfg Config) *Dispatcher {
	return &Dispatcher{
		storage: store,
		broker:  brk,
		search:  srch,
		cfg:     cfg,
		stopCh:  make(chan struct{}),
	}
}

// Start begins the poll loop in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go d.run(ctx)
}

// Stop signals the loop to stop and waits for the current tick to finish.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	log := slog.With("worker_id", d.cfg.WorkerID)
	log.Info("outbox dispatcher started")

	for {
		select {
		case <-d.stopCh:
			log.Info("outbox dispatcher shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, outbox dispatcher shutting down")
			return
		default:
			n, err := d.tick(ctx)
			if err != nil {
				log.Error("dispatcher tick failed", "error", err)
				d.sleep(time.Second)
				continue
			}
			if n == 0 {
				d.sleep(d.pollInterval())
			}
		}
	}
}

func (d *Dispatcher) sleep(duration time.Duration) {
	select {
	case <-d.stopCh:
	case <-time.After(duration):
	}
}

// pollInterval returns the configured interval jittered within
// [base-jitter, base+jitter].
func (d *Dispatcher) pollInterval() time.Duration {
	base, jitter := d.cfg.PollInterval, d.cfg.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

// tick runs one claim/publish/status-update cycle and returns the number of
// events claimed.
func (d *Dispatcher) tick(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	lockCutoff := now.Add(-d.cfg.LockTTL)

	var claimed []models.OutboxEvent
	err := storage.WithTx(ctx, d.storage, func(ctx context.Context, s *storage.Session) error {
		var err error
		claimed, err = s.ClaimOutboxEvents(ctx, now, lockCutoff, d.cfg.WorkerID, d.cfg.BatchSize, nil)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("claiming outbox events: %w", err)
	}
	if len(claimed) == 0 {
		return 0, nil
	}
	var auditRows, brokerRows []models.OutboxEvent
	for _, ev := range claimed {
		metrics.OutboxClaimedTotal.WithLabelValues(ev.EventType).Inc()
		if ev.EventType == models.EventHTTPAuditLog {
			auditRows = append(auditRows, ev)
		} else {
			brokerRows = append(brokerRows, ev)
		}
	}

	d.dispatchAudit(ctx, auditRows)
	d.dispatchBroker(ctx, brokerRows)

	return len(claimed), nil
}

// dispatchAudit bulk-indexes audit rows into the search engine, per §4.4
// step 5. Per-item failures (reported in the bulk response) mark only the
// failed items as failed.
func (d *Dispatcher) dispatchAudit(ctx context.Context, rows []models.OutboxEvent) {
	if len(rows) == 0 {
		return
	}

	items := make([]search.BulkItem, len(rows))
	for i, ev := range rows {
		items[i] = search.BulkItem{
			ID:     ev.ID.String(),
			Index:  search.IndexName(d.cfg.AuditIndexPrefix, payloadTimestamp(ev)),
			Source: json.RawMessage(ev.Payload),
		}
	}

	start := time.Now()
	result, err := d.search.BulkIndex(ctx, items)
	metrics.OutboxDispatchSeconds.Observe(time.Since(start).Seconds())

	now := time.Now().UTC()
	for _, ev := range rows {
		if err != nil {
			d.markFailed(ctx, ev, now, err.Error(), "http_audit_log")
			continue
		}
		if reason, failed := result.Failed[ev.ID.String()]; failed {
			d.markFailed(ctx, ev, now, reason, "http_audit_log")
			continue
		}
		d.markPublished(ctx, ev, now, "http_audit_log")
	}
}

// dispatchBroker publishes each broker-bound row individually so one bad
// event never poisons the rest (§7 propagation policy).
func (d *Dispatcher) dispatchBroker(ctx context.Context, rows []models.OutboxEvent) {
	for _, ev := range rows {
		start := time.Now()
		env := broker.Envelope{
			EventName:     ev.EventType,
			TimestampUTC:  time.Now().UTC().Format(time.RFC3339),
			CorrelationID: ev.CorrelationID,
			MessageID:     ev.MessageID.String(),
			Payload:       json.RawMessage(ev.Payload),
		}
		err := d.broker.Publish(ctx, env)
		metrics.OutboxDispatchSeconds.Observe(time.Since(start).Seconds())

		now := time.Now().UTC()
		if err != nil {
			d.markFailed(ctx, ev, now, err.Error(), ev.EventType)
			continue
		}
		d.markPublished(ctx, ev, now, ev.EventType)

		routing := "exchange:" + env.EventName
		_ = storage.WithTx(ctx, d.storage, func(ctx context.Context, s *storage.Session) error {
			return s.UpdateProcessing(ctx, ev.MessageID, storage.ProcessingUpdate{
				ProcessingStatus: storage.Set(models.ProcessingQueued),
				QueueMessaging:   storage.Set(routing),
			}, now)
		})
	}
}

func (d *Dispatcher) markPublished(ctx context.Context, ev models.OutboxEvent, now time.Time, eventType string) {
	err := storage.WithTx(ctx, d.storage, func(ctx context.Context, s *storage.Session) error {
		return s.MarkOutboxPublished(ctx, ev.ID, now)
	})
	if err != nil {
		slog.Error("failed marking outbox event published", "event_id", ev.ID, "error", err)
		return
	}
	metrics.OutboxPublishedTotal.WithLabelValues(eventType).Inc()
}

func (d *Dispatcher) markFailed(ctx context.Context, ev models.OutboxEvent, now time.Time, reason string, eventType string) {
	truncated := reason
	if len(truncated) > maxErrorLen {
		truncated = truncated[:maxErrorLen]
	}
	nextAvailable := now.Add(backoff(ev.Attempts))

	err := storage.WithTx(ctx, d.storage, func(ctx context.Context, s *storage.Session) error {
		return s.MarkOutboxFailed(ctx, ev.ID, now, nextAvailable, truncated)
	})
	if err != nil {
		slog.Error("failed marking outbox event failed", "event_id", ev.ID, "error", err)
		return
	}
	metrics.OutboxFailedTotal.WithLabelValues(eventType).Inc()
}

// scheduleBackoff implements backoff.BackOff over §4.4's fixed retry
// schedule (1s, 5s, 15s, capped at 60s), in place of the library's default
// exponential curve.
type scheduleBackoff struct {
	steps []time.Duration
	n     int
}

func newScheduleBackoff() backoffpkg.BackOff {
	return &scheduleBackoff{steps: []time.Duration{time.Second, 5 * time.Second, 15 * time.Second, 60 * time.Second}}
}

func (b *scheduleBackoff) NextBackOff() time.Duration {
	i := b.n
	if i >= len(b.steps) {
		i = len(b.steps) - 1
	}
	b.n++
	return b.steps[i]
}

func (b *scheduleBackoff) Reset() { b.n = 0 }

// backoff returns the retry delay for the given 1-indexed attempt count,
// per §4.4's schedule: 1,5,15,60 seconds for attempts 1,2,3,>=4.
func backoff(attempts int) time.Duration {
	b := newScheduleBackoff()
	var d time.Duration
	for i := 0; i < attempts; i++ {
		d = b.NextBackOff()
	}
	return d
}

// payloadTimestamp extracts the day-stamp used for the audit index name:
// the payload's own timestamp field when present, falling back to the
// event's creation time.
func payloadTimestamp(ev models.OutboxEvent) time.Time {
	var withTS struct {
		TimestampUTC string `json:"timestampUtc"`
	}
	if err := json.Unmarshal(ev.Payload, &withTS); err == nil && withTS.TimestampUTC != "" {
		if ts, err := time.Parse(time.RFC3339, withTS.TimestampUTC); err == nil {
			return ts
		}
	}
	return ev.CreatedAt
}
