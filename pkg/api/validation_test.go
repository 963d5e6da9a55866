package api

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUserID(t *testing.T) {
	assert.NoError(t, validateUserID("user_abc123"))
	assert.NoError(t, validateUserID(uuid.New().String()))
	assert.Error(t, validateUserID("not-a-valid-id"))
	assert.Error(t, validateUserID("us"))
}

func TestValidateFeedMessage(t *testing.T) {
	base := feedMessageRequest{
		UserID:    "user_abc123",
		Content:   "hello #produto",
		Timestamp: "2026-07-30T10:00:00Z",
		Hashtags:  []string{"#produto"},
		Reactions: 1,
		Shares:    1,
		Views:     5,
	}
	assert.NoError(t, validateFeedMessage(base))

	empty := base
	empty.Content = "   "
	assert.Error(t, validateFeedMessage(empty))

	tooLong := base
	var long string
	for range 281 {
		long += "a"
	}
	tooLong.Content = long
	assert.Error(t, validateFeedMessage(tooLong))

	badTimestamp := base
	badTimestamp.Timestamp = "not-a-timestamp"
	assert.Error(t, validateFeedMessage(badTimestamp))

	badHashtag := base
	badHashtag.Hashtags = []string{"produto"}
	assert.Error(t, validateFeedMessage(badHashtag))

	negativeCounts := base
	negativeCounts.Reactions = -1
	assert.Error(t, validateFeedMessage(negativeCounts))

	viewsBelowTotal := base
	viewsBelowTotal.Views = 1
	viewsBelowTotal.Reactions = 2
	viewsBelowTotal.Shares = 2
	assert.Error(t, validateFeedMessage(viewsBelowTotal))
}

func TestValidateTimeWindow(t *testing.T) {
	assert.NoError(t, validateTimeWindow(60))

	err := validateTimeWindow(reservedTimeWindow)
	require.Error(t, err)
	var ve *validationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "UNSUPPORTED_TIME_WINDOW", ve.Code)

	assert.Error(t, validateTimeWindow(0))
	assert.Error(t, validateTimeWindow(-5))
}

func TestValidateAnalyzeFeedRequest(t *testing.T) {
	t.Run("rejects neither messages nor items", func(t *testing.T) {
		assert.Error(t, validateAnalyzeFeedRequest(analyzeFeedRequest{}))
	})

	t.Run("rejects both messages and items", func(t *testing.T) {
		req := analyzeFeedRequest{
			Messages: []feedMessageRequest{{UserID: "user_abc123", Content: "x", Timestamp: "2026-07-30T10:00:00Z", Views: 1}},
			Items:    []bulkItemRequest{{UserID: "user_abc123"}},
		}
		assert.Error(t, validateAnalyzeFeedRequest(req))
	})

	t.Run("accepts a valid messages request", func(t *testing.T) {
		req := analyzeFeedRequest{
			TimeWindowMinutes: 60,
			Messages: []feedMessageRequest{{
				UserID: "user_abc123", Content: "hello", Timestamp: "2026-07-30T10:00:00Z", Views: 1,
			}},
		}
		assert.NoError(t, validateAnalyzeFeedRequest(req))
	})

	t.Run("enforces the batch limit on items", func(t *testing.T) {
		items := make([]bulkItemRequest, 1001)
		for i := range items {
			items[i] = bulkItemRequest{UserID: "user_abc123"}
		}
		err := validateAnalyzeFeedRequest(analyzeFeedRequest{Items: items})
		require.Error(t, err)
		var ve *validationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "BATCH_LIMIT_EXCEEDED", ve.Code)
	})
}
