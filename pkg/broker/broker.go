// Package broker wraps a single long-lived AMQP connection and channel,
// publishing durable event envelopes to a topic exchange and exposing a
// queue-bound consume loop for the ingestion consumer.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Config holds the connection and topology parameters for the broker.
type Config struct {
	URL          string
	Exchange     string
	ExchangeType string
	Queue        string
	RoutingKey   string
	DLXExchange  string
}

// Envelope is the wire shape published to the exchange and consumed by C5,
// per the broker interface (§6).
type Envelope struct {
	EventName     string          `json:"eventName"`
	TimestampUTC  string          `json:"timestampUtc"`
	CorrelationID string          `json:"correlationId"`
	MessageID     string          `json:"messageId"`
	Payload       json.RawMessage `json:"payload"`
}

// Client owns one AMQP connection and one channel. Publish failures close
// the channel and the connection and lazily reopen both on the next call,
// per §5's "Broker connection" resource model.
type Client struct {
	cfg  Config
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewClient declares the topology (topic exchange, durable queue, bind) and
// returns a ready-to-use Client.
func NewClient(cfg Config) (*Client, error) {
	c := &Client{cfg: cfg}
	if err := c.ensureChannel(); err != nil {
		return nil, err
	}
	return c, nil
}

// Close closes the channel and connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) ensureChannel() error {
	if c.conn != nil && !c.conn.IsClosed() && c.ch != nil {
		return nil
	}

	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("dialing broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("opening channel: %w", err)
	}

	args := amqp.Table{}
	if c.cfg.DLXExchange != "" {
		args["x-dead-letter-exchange"] = c.cfg.DLXExchange
	}

	if err := ch.ExchangeDeclare(c.cfg.Exchange, c.cfg.ExchangeType, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declaring exchange: %w", err)
	}
	q, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, args)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declaring queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, c.cfg.RoutingKey, c.cfg.Exchange, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("binding queue: %w", err)
	}

	c.conn = conn
	c.ch = ch
	return nil
}

// Publish publishes env to the configured exchange/routing key with
// persistent delivery mode (2), reopening the connection on failure per the
// "publish failures close and re-open on next call" resource rule.
func (c *Client) Publish(ctx context.Context, env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureChannel(); err != nil {
		return err
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}

	err = c.ch.PublishWithContext(ctx, c.cfg.Exchange, c.cfg.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
		Headers:      amqp.Table{"retry_count": int32(0)},
	})
	if err != nil {
		_ = c.ch.Close()
		c.ch = nil
		_ = c.conn.Close()
		c.conn = nil
		return fmt.Errorf("publishing: %w", err)
	}
	return nil
}

// Consume registers a consumer on the configured queue with manual ack and
// prefetch 1, per §5's "Consumer prefetch is 1" backpressure rule.
func (c *Client) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureChannel(); err != nil {
		return nil, err
	}
	if err := c.ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("setting qos: %w", err)
	}

	deliveries, err := c.ch.ConsumeWithContext(ctx, c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("starting consume: %w", err)
	}
	return deliveries, nil
}

// RetryCount reads the observability-only retry_count header from a delivery
// (§6), defaulting to 0 when absent or malformed.
func RetryCount(headers amqp.Table) int {
	v, ok := headers["retry_count"]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
