// Package redisbus carries board events over Redis Pub/Sub so several
// tablero servers sharing one store can broadcast to each other's clients.
package redisbus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/types"
)

// DefaultPrefix namespaces tablero keys and channels
const DefaultPrefix = "tablero"

// Bus is an events.Bus backed by Redis. Each board has its own channel and
// its own sequence counter.
type Bus struct {
	rdb       redis.UniversalClient
	prefix    string
	queueSize int
}

// Option configures a Bus
type Option func(*Bus)

// WithPrefix changes the key namespace
func WithPrefix(prefix string) Option {
	return func(b *Bus) { b.prefix = prefix }
}

// WithQueueSize bounds each subscription's queue
func WithQueueSize(n int) Option {
	return func(b *Bus) { b.queueSize = n }
}

// New wraps an existing Redis client. The caller owns the client.
func New(rdb redis.UniversalClient, opts ...Option) *Bus {
	b := &Bus{rdb: rdb, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Channel returns the Pub/Sub channel for a board.
// Format: <prefix>:board:<id>:events
func (b *Bus) Channel(boardID types.BoardID) string {
	return fmt.Sprintf("%s:board:%d:events", b.prefix, boardID)
}

// SequenceKey returns the counter key for a board.
// Format: <prefix>:board:<id>:seq
func (b *Bus) SequenceKey(boardID types.BoardID) string {
	return fmt.Sprintf("%s:board:%d:seq", b.prefix, boardID)
}

// Publish stamps the board's next sequence number and publishes e.
// Redis Pub/Sub is at-most-once: subscribers that are not connected at
// publish time never see the event.
func (b *Bus) Publish(ctx context.Context, e events.Event) error {
	head := e.Head()
	if head.Sequence == 0 {
		seq, err := b.rdb.Incr(ctx, b.SequenceKey(head.BoardID)).Result()
		if err != nil {
			return fmt.Errorf("failed to stamp sequence: %w", err)
		}
		head.Sequence = seq
	}

	data, err := events.Marshal(e)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.Channel(head.BoardID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", e.Kind(), err)
	}
	return nil
}

// Subscribe joins a board's channel. The subscription is confirmed with
// Redis before Subscribe returns, so events published afterwards are seen.
func (b *Bus) Subscribe(ctx context.Context, boardID types.BoardID, h events.Handler) (events.Subscription, error) {
	pubsub := b.rdb.Subscribe(ctx, b.Channel(boardID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to board %d: %w", boardID, err)
	}

	d := events.NewDispatcher(boardID, h, b.queueSize, func() {
		if err := pubsub.Close(); err != nil {
			slog.Debug("error closing pubsub", "board_id", boardID, "error", err)
		}
	})

	go func() {
		ch := pubsub.Channel()
		for msg := range ch {
			e, err := events.Unmarshal([]byte(msg.Payload))
			if err != nil {
				slog.Warn("dropping undecodable event", "channel", msg.Channel, "error", err)
				continue
			}
			d.Deliver(e)
		}
	}()

	return d, nil
}

var _ events.Bus = (*Bus)(nil)
