package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mbras/feedpulse/pkg/analytics"
	"github.com/mbras/feedpulse/pkg/ingest"
	"github.com/mbras/feedpulse/pkg/models"
	"github.com/mbras/feedpulse/pkg/storage"
)

// Handlers bundles the dependencies the HTTP surface needs, wiring the
// online analytic engine (C1), the bulk ingestion fast path (C3), and the
// persistence layer behind the two /analyze-feed request shapes.
type Handlers struct {
	store     *storage.Client
	ingest    *ingest.Engine
	publisher Publisher
}

// NewHandlers builds the request handlers over the given dependencies.
func NewHandlers(store *storage.Client, ingestEngine *ingest.Engine, publisher Publisher) *Handlers {
	if publisher == nil {
		publisher = NullPublisher{}
	}
	return &Handlers{store: store, ingest: ingestEngine, publisher: publisher}
}

// AnalyzeFeed implements POST /analyze-feed, routing to the online analytic
// engine or the bulk ingestion fast path depending on which of
// messages/items the request carries (§6).
func (h *Handlers) AnalyzeFeed(c *gin.Context) {
	correlationID := correlationIDFrom(c)

	var req analyzeFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		mapError(c, correlationID, newValidationError("INVALID_REQUEST", "request body must be valid JSON"))
		return
	}

	if err := validateAnalyzeFeedRequest(req); err != nil {
		mapError(c, correlationID, err)
		return
	}

	if len(req.Items) > 0 {
		h.analyzeBulk(c, correlationID, req.Items)
		return
	}
	h.analyzeOnline(c, correlationID, req.Messages, req.TimeWindowMinutes)
}

func (h *Handlers) analyzeBulk(c *gin.Context, correlationID string, items []bulkItemRequest) {
	ingestItems := make([]ingest.Item, len(items))
	for i, it := range items {
		ingestItems[i] = it.toIngestItem()
	}

	result, err := h.ingest.Execute(c.Request.Context(), ingestItems)
	if err != nil {
		mapError(c, correlationID, err)
		return
	}

	c.JSON(http.StatusAccepted, bulkIngestResponse{
		BatchID:  result.BatchID.String(),
		Accepted: result.Accepted,
	})
}

func (h *Handlers) analyzeOnline(c *gin.Context, correlationID string, messages []feedMessageRequest, timeWindowMinutes int) {
	ctx := c.Request.Context()

	feedMessages := make([]analytics.FeedMessage, len(messages))
	for i, m := range messages {
		feedMessages[i] = analytics.FeedMessage{
			UserID:    m.UserID,
			Content:   m.Content,
			Timestamp: m.Timestamp,
			Hashtags:  m.Hashtags,
			Reactions: m.Reactions,
			Shares:    m.Shares,
			Views:     m.Views,
		}
	}

	analysis := analytics.Analyze(feedMessages, timeWindowMinutes)

	messageID := uuid.New()
	now := time.Now().UTC()

	payload, err := json.Marshal(struct {
		Analysis analytics.Analysis `json:"analysis"`
	}{Analysis: analysis})
	if err != nil {
		mapError(c, correlationID, err)
		return
	}

	err = storage.WithTx(ctx, h.store, func(ctx context.Context, s *storage.Session) error {
		userID, err := resolveUser(ctx, s, messages[0].UserID, now)
		if err != nil {
			return err
		}

		if err := s.CreateMessage(ctx, models.Message{
			ID:              messageID,
			UserID:          userID,
			CorrelationID:   correlationID,
			CreatedAt:       now,
			EngagementScore: &analysis.EngagementScore,
		}); err != nil {
			return err
		}

		if err := s.CreateProcessing(ctx, models.Processing{
			MessageID:        messageID,
			ProcessingStatus: models.ProcessingReceived,
			UpdatedAt:        now,
		}); err != nil {
			return err
		}

		return s.BulkInsertOutboxEvents(ctx, []models.OutboxEvent{{
			ID:            uuid.New(),
			MessageID:     messageID,
			CorrelationID: correlationID,
			EventType:     models.EventAnalyzeFeedCompleted,
			Payload:       payload,
			Status:        models.OutboxPending,
			AvailableAt:   now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}})
	})
	if err != nil {
		mapError(c, correlationID, err)
		return
	}

	h.publisher.PublishEvent(ctx, models.EventAnalyzeFeedCompleted, correlationID, messageID.String(), analysis)

	c.JSON(http.StatusOK, analyzeFeedResponse{Analysis: analysis, CorrelationID: correlationID})
}

// resolveUser resolves a request's raw user_id (either a UUID or an opaque
// external key) to a user row, creating one if no match exists.
func resolveUser(ctx context.Context, s *storage.Session, rawUserID string, now time.Time) (uuid.UUID, error) {
	if id, err := uuid.Parse(rawUserID); err == nil {
		if _, err := s.GetUserByID(ctx, id); err == nil {
			return id, nil
		}
		if err := s.BulkInsertUsers(ctx, []models.User{{ID: id, CreatedAt: now}}); err != nil {
			return uuid.Nil, err
		}
		return id, nil
	}

	if u, err := s.GetUserByExternalKey(ctx, rawUserID); err == nil {
		return u.ID, nil
	}

	id := uuid.New()
	key := rawUserID
	if err := s.BulkInsertUsers(ctx, []models.User{{ID: id, ExternalKey: &key, CreatedAt: now}}); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// ListMessages implements GET /messages with user_id/from/to/page filters (§6).
func (h *Handlers) ListMessages(c *gin.Context) {
	correlationID := correlationIDFrom(c)
	ctx := c.Request.Context()

	var filters storage.MessageListFilters

	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			mapError(c, correlationID, newValidationError("INVALID_USER_ID", "user_id must be a valid UUID"))
			return
		}
		filters.UserID = &id
	}
	if raw := c.Query("from_utc"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			mapError(c, correlationID, newValidationError("INVALID_TIMESTAMP", "from_utc must be RFC3339"))
			return
		}
		filters.FromUTC = &t
	}
	if raw := c.Query("to_utc"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			mapError(c, correlationID, newValidationError("INVALID_TIMESTAMP", "to_utc must be RFC3339"))
			return
		}
		filters.ToUTC = &t
	}
	filters.Page = intQuery(c, "page", 1)
	filters.PageSize = intQuery(c, "page_size", 20)

	session := storage.NewSession(h.store)

	msgs, total, err := session.ListMessages(ctx, filters)
	if err != nil {
		mapError(c, correlationID, err)
		return
	}

	related := make([]*models.RelatedMessage, 0, len(msgs))
	for _, m := range msgs {
		r, err := session.LoadRelated(ctx, m.ID)
		if err != nil {
			mapError(c, correlationID, err)
			return
		}
		related = append(related, r)
	}

	c.JSON(http.StatusOK, gin.H{
		"messages":  related,
		"total":     total,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

func intQuery(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return def
	}
	return v
}
