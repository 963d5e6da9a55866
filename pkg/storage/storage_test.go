package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbras/feedpulse/pkg/models"
	"github.com/mbras/feedpulse/pkg/storage"
)

func TestMessageLifecycle_CreateAndLookupByCorrelationID(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	userID := uuid.New()
	correlationID := "cid-" + uuid.NewString()

	err := storage.WithTx(ctx, client, func(ctx context.Context, s *storage.Session) error {
		require.NoError(t, s.BulkInsertUsers(ctx, []models.User{{ID: userID, CreatedAt: time.Now().UTC()}}))

		msg := models.Message{
			ID:            uuid.New(),
			UserID:        userID,
			CorrelationID: correlationID,
			CreatedAt:     time.Now().UTC(),
		}
		return s.CreateMessage(ctx, msg)
	})
	require.NoError(t, err)

	session := storage.NewSession(client)
	got, err := session.GetMessageByCorrelationID(ctx, correlationID)
	require.NoError(t, err)
	assert.Equal(t, correlationID, got.CorrelationID)
	assert.Equal(t, userID, got.UserID)
}

func TestGetMessageByCorrelationID_NotFound(t *testing.T) {
	client := newTestClient(t)
	session := storage.NewSession(client)

	_, err := session.GetMessageByCorrelationID(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOutbox_ClaimMarksLockedAndIncrementsAttempts(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	userID := uuid.New()
	messageID := uuid.New()
	now := time.Now().UTC()

	err := storage.WithTx(ctx, client, func(ctx context.Context, s *storage.Session) error {
		require.NoError(t, s.BulkInsertUsers(ctx, []models.User{{ID: userID, CreatedAt: now}}))
		require.NoError(t, s.CreateMessage(ctx, models.Message{
			ID: messageID, UserID: userID, CorrelationID: "cid-" + uuid.NewString(), CreatedAt: now,
		}))
		return s.BulkInsertOutboxEvents(ctx, []models.OutboxEvent{{
			ID:            uuid.New(),
			MessageID:     messageID,
			CorrelationID: "cid-" + uuid.NewString(),
			EventType:     models.EventMessageReceived,
			Payload:       []byte(`{"user_id":"u1"}`),
			Status:        models.OutboxPending,
			AvailableAt:   now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}})
	})
	require.NoError(t, err)

	var claimed []models.OutboxEvent
	err = storage.WithTx(ctx, client, func(ctx context.Context, s *storage.Session) error {
		var claimErr error
		claimed, claimErr = s.ClaimOutboxEvents(ctx, now.Add(time.Second), now.Add(-30*time.Second), "worker-1", 10, nil)
		return claimErr
	})
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, 1, claimed[0].Attempts)
	assert.NotNil(t, claimed[0].LockedAt)
	assert.Equal(t, "worker-1", *claimed[0].LockedBy)

	// A second claim immediately after must not re-claim the still-locked row.
	var reclaimed []models.OutboxEvent
	err = storage.WithTx(ctx, client, func(ctx context.Context, s *storage.Session) error {
		var claimErr error
		reclaimed, claimErr = s.ClaimOutboxEvents(ctx, now.Add(2*time.Second), now.Add(-30*time.Second), "worker-2", 10, nil)
		return claimErr
	})
	require.NoError(t, err)
	assert.Empty(t, reclaimed)
}

func TestBulkInsertUsers_IsConflictTolerant(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	userID := uuid.New()

	insert := func() error {
		return storage.WithTx(ctx, client, func(ctx context.Context, s *storage.Session) error {
			return s.BulkInsertUsers(ctx, []models.User{{ID: userID, CreatedAt: time.Now().UTC()}})
		})
	}

	require.NoError(t, insert())
	require.NoError(t, insert())

	session := storage.NewSession(client)
	got, err := session.GetUserByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID, got.ID)
}
