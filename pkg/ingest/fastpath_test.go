package ingest_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mbras/feedpulse/pkg/ingest"
	"github.com/mbras/feedpulse/pkg/models"
	"github.com/mbras/feedpulse/pkg/storage"
)

func newTestClient(t *testing.T) *storage.Client {
	t.Helper()
	ctx := context.Background()

	cfg := storage.Config{
		User: "feedpulse", Password: "feedpulse", Database: "feedpulse", SSLMode: "disable",
		MaxConns: 5, MinConns: 1, MaxConnLifetime: time.Hour, MaxConnIdleTime: 15 * time.Minute,
	}

	if ciURL := os.Getenv("CI_DATABASE_URL"); ciURL != "" {
		client, err := storage.NewClientFromDSN(ctx, ciURL, cfg.Database)
		require.NoError(t, err)
		t.Cleanup(client.Close)
		return client
	}

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.User),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	cfg.Host = host
	cfg.Port = port.Int()

	client, err := storage.NewClient(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestExecute_BulkInsertsThreeParallelRows(t *testing.T) {
	client := newTestClient(t)
	engine := ingest.NewEngine(client)

	items := []ingest.Item{{
		UserID:                "user_abc123",
		SentimentDistribution: ingest.SentimentDistribution{Positive: 100},
		Flags:                 ingest.Flags{},
	}}

	result, err := engine.Execute(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Accepted)
	assert.Contains(t, result.Timings, "total")

	session := storage.NewSession(client)
	msgs, total, err := session.ListMessages(context.Background(), storage.MessageListFilters{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, msgs, 1)

	related, err := session.LoadRelated(context.Background(), msgs[0].ID)
	require.NoError(t, err)
	require.NotNil(t, related.Processing)
	assert.Equal(t, "received", related.Processing.ProcessingStatus)

	var claimed []models.OutboxEvent
	now := time.Now().UTC()
	err = storage.WithTx(context.Background(), client, func(ctx context.Context, s *storage.Session) error {
		var claimErr error
		claimed, claimErr = s.ClaimOutboxEvents(ctx, now.Add(time.Second), now, "test-worker", 10, nil)
		return claimErr
	})
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, models.EventMessageReceived, claimed[0].EventType)
	assert.Equal(t, msgs[0].ID, claimed[0].MessageID)
}

func TestExecute_IdempotentOnDuplicateCorrelationID(t *testing.T) {
	client := newTestClient(t)
	engine := ingest.NewEngine(client)

	cid := "fixed-cid-1"
	item := ingest.Item{UserID: "user_xyz789", CorrelationID: &cid}

	r1, err := engine.Execute(context.Background(), []ingest.Item{item})
	require.NoError(t, err)
	assert.Equal(t, 1, r1.Accepted)

	r2, err := engine.Execute(context.Background(), []ingest.Item{item})
	require.NoError(t, err)
	assert.Equal(t, 0, r2.Accepted)

	session := storage.NewSession(client)
	_, total, err := session.ListMessages(context.Background(), storage.MessageListFilters{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestExecute_RejectsOversizedBatch(t *testing.T) {
	client := newTestClient(t)
	engine := ingest.NewEngine(client)

	items := make([]ingest.Item, ingest.MaxBatchItems+1)
	for i := range items {
		items[i] = ingest.Item{UserID: "user_overflow"}
	}

	_, err := engine.Execute(context.Background(), items)
	assert.ErrorIs(t, err, ingest.ErrBatchLimitExceeded)
}
