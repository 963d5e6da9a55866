package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext(body any) (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze-feed", reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(correlationIDKey, "test-correlation-id")
	return c, rec
}

func TestAnalyzeFeed_RejectsRequestWithNeitherShape(t *testing.T) {
	h := NewHandlers(nil, nil, nil)
	c, rec := newTestContext(analyzeFeedRequest{})

	h.AnalyzeFeed(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_REQUEST", resp.Code)
	assert.Equal(t, "test-correlation-id", resp.CorrelationID)
}

func TestAnalyzeFeed_RejectsReservedTimeWindow(t *testing.T) {
	h := NewHandlers(nil, nil, nil)
	req := analyzeFeedRequest{
		TimeWindowMinutes: reservedTimeWindow,
		Messages: []feedMessageRequest{{
			UserID: "user_abc123", Content: "hello", Timestamp: "2026-07-30T10:00:00Z", Views: 1,
		}},
	}
	c, rec := newTestContext(req)

	h.AnalyzeFeed(c)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "UNSUPPORTED_TIME_WINDOW", resp.Code)
}

func TestAnalyzeFeed_RejectsBatchOverLimit(t *testing.T) {
	h := NewHandlers(nil, nil, nil)
	items := make([]bulkItemRequest, 1001)
	for i := range items {
		items[i] = bulkItemRequest{UserID: "user_abc123"}
	}
	c, rec := newTestContext(analyzeFeedRequest{Items: items})

	h.AnalyzeFeed(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "BATCH_LIMIT_EXCEEDED", resp.Code)
}

func TestAnalyzeFeed_RejectsMalformedJSON(t *testing.T) {
	h := NewHandlers(nil, nil, nil)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze-feed", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(correlationIDKey, "test-correlation-id")

	h.AnalyzeFeed(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
