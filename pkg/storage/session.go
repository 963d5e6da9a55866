package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx. Every repository method
// takes a Session rather than reaching for a package-level pool, so callers
// control the transaction boundary.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgx.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Session is a transaction-scoped handle passed to every storage operation.
// A Session wraps either the pool directly (autocommit, single statements)
// or an open pgx.Tx (multi-statement transactions) — callers never see the
// difference.
type Session struct {
	q querier
}

// NewSession wraps the pool in a non-transactional Session.
func NewSession(c *Client) *Session {
	return &Session{q: c.pool}
}

// WithTx opens a transaction, runs fn with a Session bound to it, and
// commits on success or rolls back on any returned error (including panics
// recovered into a rollback-then-repanic).
func WithTx(ctx context.Context, c *Client, fn func(ctx context.Context, s *Session) error) (err error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, &Session{q: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
