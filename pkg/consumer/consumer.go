// Package consumer implements the ingestion consumer (C5): a long-running
// broker subscriber that normalizes each delivered envelope, persists the
// analysis through the storage layer, indexes a searchable document, and
// advances the message's processing status.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mbras/feedpulse/pkg/analytics"
	"github.com/mbras/feedpulse/pkg/broker"
	"github.com/mbras/feedpulse/pkg/metrics"
	"github.com/mbras/feedpulse/pkg/models"
	"github.com/mbras/feedpulse/pkg/search"
	"github.com/mbras/feedpulse/pkg/storage"
)

// maxReasonLen truncates stored failure reasons, mirroring the dispatcher's
// truncated_message convention.
const maxReasonLen = 500

var supportedEvents = map[string]bool{
	models.EventMessageReceived:      true,
	models.EventAnalyzeFeedCompleted: true,
}

// Config tunes the consumer's search-indexing behavior.
type Config struct {
	AnalyticsIndexPrefix string
}

// Consumer drains a broker queue, persists normalized analyses, and indexes
// a document per delivery.
type Consumer struct {
	storage *storage.Client
	broker  *broker.Client
	search  *search.Client
	cfg     Config
}

// New builds a Consumer over the given collaborators.
func New(store *storage.Client, brk *broker.Client, srch *search.Client, cfg Config) *Consumer {
	return &Consumer{storage: store, broker: brk, search: srch, cfg: cfg}
}

// Run blocks, consuming deliveries until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.broker.Consume(ctx)
	if err != nil {
		return fmt.Errorf("starting consume: %w", err)
	}

	log := slog.With("component", "consumer")
	log.Info("ingestion consumer started")

	for {
		select {
		case <-ctx.Done():
			log.Info("context cancelled, ingestion consumer shutting down")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("broker delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

// handle processes one delivery, always ACKing per §4.5's failure semantics
// (the dispatcher, not this consumer, is the authoritative retry mechanism).
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	defer func() { _ = d.Ack(false) }()

	var env broker.Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		metrics.ConsumerProcessedTotal.WithLabelValues("parse_error").Inc()
		return
	}
	if !supportedEvents[env.EventName] {
		metrics.ConsumerProcessedTotal.WithLabelValues("unsupported_event").Inc()
		return
	}

	correlationID := strings.TrimSpace(env.CorrelationID)
	if correlationID == "" || len(correlationID) > 64 {
		metrics.ConsumerProcessedTotal.WithLabelValues("missing_correlation_id").Inc()
		return
	}

	if err := c.process(ctx, env, correlationID); err != nil {
		slog.Error("consumer processing failed", "correlation_id", correlationID, "error", err)
		c.markFailed(ctx, correlationID, err)
		metrics.ConsumerProcessedTotal.WithLabelValues("failed").Inc()
		return
	}
	metrics.ConsumerProcessedTotal.WithLabelValues("processed").Inc()
}

func (c *Consumer) process(ctx context.Context, env broker.Envelope, correlationID string) error {
	session := storage.NewSession(c.storage)
	msg, err := session.GetMessageByCorrelationID(ctx, correlationID)
	if err != nil {
		return fmt.Errorf("looking up message: %w", err)
	}
	messageID := msg.ID

	if err := storage.WithTx(ctx, c.storage, func(ctx context.Context, s *storage.Session) error {
		return s.UpdateProcessing(ctx, messageID, storage.ProcessingUpdate{
			ProcessingStatus: storage.Set(models.ProcessingProcessing),
		}, time.Now().UTC())
	}); err != nil {
		return fmt.Errorf("marking processing: %w", err)
	}

	norm, err := projectPayload(env)
	if err != nil {
		return fmt.Errorf("projecting payload: %w", err)
	}

	if err := storage.WithTx(ctx, c.storage, func(ctx context.Context, s *storage.Session) error {
		if norm.EngagementScore != nil {
			if err := s.UpdateMessageEngagement(ctx, messageID, *norm.EngagementScore); err != nil {
				return err
			}
		}
		if err := s.UpsertSentiment(ctx, models.Sentiment{
			MessageID: messageID,
			Positive:  norm.Sentiment.Positive,
			Negative:  norm.Sentiment.Negative,
			Neutral:   norm.Sentiment.Neutral,
		}); err != nil {
			return err
		}
		if err := s.UpsertFlags(ctx, models.Flags{
			MessageID:          messageID,
			MbrasEmployee:      norm.Flags.MbrasEmployee,
			SpecialPattern:     norm.Flags.SpecialPattern,
			CandidateAwareness: norm.Flags.CandidateAwareness,
		}); err != nil {
			return err
		}
		if err := s.UpsertAnomaly(ctx, models.Anomaly{
			MessageID:       messageID,
			AnomalyDetected: norm.AnomalyDetected,
			AnomalyType:     norm.AnomalyType,
		}); err != nil {
			return err
		}
		items := make([]models.InfluenceRankingItem, len(norm.Influence))
		for i, it := range norm.Influence {
			items[i] = models.InfluenceRankingItem{
				MessageID:       messageID,
				ExternalUserKey: it.UserID,
				Followers:       it.Followers,
				EngagementRate:  it.EngagementRate,
				InfluenceScore:  it.InfluenceScore,
			}
		}
		if err := s.ReplaceInfluenceItems(ctx, messageID, items); err != nil {
			return err
		}
		return s.ReplaceTopics(ctx, messageID, norm.Topics)
	}); err != nil {
		return fmt.Errorf("persisting normalized analysis: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, env.TimestampUTC)
	if err != nil {
		ts = time.Now().UTC()
	}

	doc := analyticDocument{
		TimestampUTC:  env.TimestampUTC,
		EventName:     env.EventName,
		CorrelationID: correlationID,
		MessageID:     messageID.String(),
		Analysis: analyticsSnapshot{
			SentimentDistribution: norm.Sentiment,
			EngagementScore:       norm.EngagementScore,
			TrendingTopics:        norm.Topics,
			InfluenceRanking:      norm.Influence,
			AnomalyDetected:       norm.AnomalyDetected,
			AnomalyType:           norm.AnomalyType,
		},
		Flags: norm.Flags,
	}

	indexName, err := c.search.IndexDocument(ctx, c.cfg.AnalyticsIndexPrefix, ts, messageID.String(), doc)
	if err != nil {
		return fmt.Errorf("indexing document: %w", err)
	}

	elasticName := "analytics"
	if err := storage.WithTx(ctx, c.storage, func(ctx context.Context, s *storage.Session) error {
		return s.UpdateProcessing(ctx, messageID, storage.ProcessingUpdate{
			ProcessingStatus: storage.Set(models.ProcessingProcessed),
			ElasticName:      storage.Set(elasticName),
			ElasticIndexName: storage.Set(indexName),
		}, time.Now().UTC())
	}); err != nil {
		return fmt.Errorf("marking processed: %w", err)
	}

	return nil
}

// markFailed records the failure on the message's processing row,
// best-effort (an error here is logged, not propagated: the delivery is
// still ACKed per §4.5).
func (c *Consumer) markFailed(ctx context.Context, correlationID string, cause error) {
	session := storage.NewSession(c.storage)
	msg, err := session.GetMessageByCorrelationID(ctx, correlationID)
	if err != nil {
		slog.Error("cannot locate message to mark failed", "correlation_id", correlationID, "error", err)
		return
	}

	reason := cause.Error()
	if len(reason) > maxReasonLen {
		reason = reason[:maxReasonLen]
	}
	stage := "consumer"

	if err := storage.WithTx(ctx, c.storage, func(ctx context.Context, s *storage.Session) error {
		return s.UpdateProcessing(ctx, msg.ID, storage.ProcessingUpdate{
			ProcessingStatus: storage.Set(models.ProcessingFailed),
			FailureStage:     storage.Set(stage),
			FailedReason:     storage.Set(reason),
		}, time.Now().UTC())
	}); err != nil {
		slog.Error("failed recording failure status", "correlation_id", correlationID, "error", err)
	}
}
