package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mbras/feedpulse/pkg/models"
)

// GetOrCreateTopic returns the topic row for name, inserting it if absent.
func (s *Session) GetOrCreateTopic(ctx context.Context, name string) (*models.Topic, error) {
	row := s.q.QueryRow(ctx, `SELECT id, name FROM topics WHERE name = $1`, name)
	var t models.Topic
	err := row.Scan(&t.ID, &t.Name)
	if err == nil {
		return &t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	t = models.Topic{ID: uuid.New(), Name: name}
	_, err = s.q.Exec(ctx, `INSERT INTO topics (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`, t.ID, t.Name)
	if err != nil {
		return nil, err
	}

	row = s.q.QueryRow(ctx, `SELECT id, name FROM topics WHERE name = $1`, name)
	if err := row.Scan(&t.ID, &t.Name); err != nil {
		return nil, err
	}
	return &t, nil
}

// AddMessageTopic links a message to a topic, ignoring a duplicate link.
func (s *Session) AddMessageTopic(ctx context.Context, messageID, topicID uuid.UUID) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO message_topics (message_id, topic_id) VALUES ($1, $2)
		ON CONFLICT (message_id, topic_id) DO NOTHING`, messageID, topicID)
	return err
}

// ReplaceTopics resolves each name to a topic row (creating as needed) and
// replaces the message's full topic set with exactly those links.
func (s *Session) ReplaceTopics(ctx context.Context, messageID uuid.UUID, names []string) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM message_topics WHERE message_id = $1`, messageID); err != nil {
		return err
	}
	for _, name := range names {
		topic, err := s.GetOrCreateTopic(ctx, name)
		if err != nil {
			return err
		}
		if err := s.AddMessageTopic(ctx, messageID, topic.ID); err != nil {
			return err
		}
	}
	return nil
}
