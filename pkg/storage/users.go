package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mbras/feedpulse/pkg/models"
)

// GetUserByID looks up a user by id.
func (s *Session) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := s.q.QueryRow(ctx, `SELECT id, external_key, created_at FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByExternalKey looks up a user by its opaque external key.
func (s *Session) GetUserByExternalKey(ctx context.Context, key string) (*models.User, error) {
	row := s.q.QueryRow(ctx, `SELECT id, external_key, created_at FROM users WHERE external_key = $1`, key)
	return scanUser(row)
}

// GetUsersByIDs looks up many users by id in one round trip.
func (s *Session) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.q.Query(ctx, `SELECT id, external_key, created_at FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// GetUsersByExternalKeys looks up many users by external_key in one round trip.
func (s *Session) GetUsersByExternalKeys(ctx context.Context, keys []string) ([]models.User, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	rows, err := s.q.Query(ctx, `SELECT id, external_key, created_at FROM users WHERE external_key = ANY($1)`, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// BulkInsertUsers conflict-tolerantly inserts the given users, skipping any
// whose id or external_key already exists, per the persistence layer's
// conflict-tolerant bulk insert contract.
func (s *Session) BulkInsertUsers(ctx context.Context, users []models.User) error {
	if len(users) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, u := range users {
		batch.Queue(
			`INSERT INTO users (id, external_key, created_at) VALUES ($1, $2, $3)
			 ON CONFLICT DO NOTHING`,
			u.ID, u.ExternalKey, u.CreatedAt,
		)
	}
	br := s.q.SendBatch(ctx, batch)
	defer br.Close()
	for range users {
		if _, err := br.Exec(); err != nil && !isUniqueViolation(err) {
			return err
		}
	}
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.ExternalKey, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func collectUsers(rows pgx.Rows) ([]models.User, error) {
	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.ExternalKey, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
