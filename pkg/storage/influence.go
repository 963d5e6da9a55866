package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mbras/feedpulse/pkg/models"
)

// AddInfluenceItem inserts a single influence-ranking row for a message.
func (s *Session) AddInfluenceItem(ctx context.Context, messageID uuid.UUID, item models.InfluenceRankingItem) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO influence_ranking_items (id, message_id, external_user_key, followers, engagement_rate, influence_score)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), messageID, item.ExternalUserKey, item.Followers, item.EngagementRate, item.InfluenceScore,
	)
	return err
}

// ReplaceInfluenceItems deletes and re-inserts a message's influence-ranking
// rows, used when the consumer upserts a normalized analysis.
func (s *Session) ReplaceInfluenceItems(ctx context.Context, messageID uuid.UUID, items []models.InfluenceRankingItem) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM influence_ranking_items WHERE message_id = $1`, messageID); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(`
			INSERT INTO influence_ranking_items (id, message_id, external_user_key, followers, engagement_rate, influence_score)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), messageID, it.ExternalUserKey, it.Followers, it.EngagementRate, it.InfluenceScore,
		)
	}
	br := s.q.SendBatch(ctx, batch)
	defer br.Close()
	for range items {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
