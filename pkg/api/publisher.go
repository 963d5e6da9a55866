package api

import "context"

// Publisher is the abstract "publish_event" capability the HTTP ingest path
// depends on (§9 design note). It is best-effort: the durable path is always
// the outbox row written in the same transaction, so a failed or absent
// Publisher never affects correctness.
type Publisher interface {
	PublishEvent(ctx context.Context, eventName, correlationID, messageID string, payload any) bool
}

// NullPublisher always reports failure without doing any I/O, matching the
// "null implementation returning false" test double described in §9.
type NullPublisher struct{}

// PublishEvent implements Publisher.
func (NullPublisher) PublishEvent(ctx context.Context, eventName, correlationID, messageID string, payload any) bool {
	return false
}
