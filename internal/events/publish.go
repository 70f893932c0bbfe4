package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// publishTimeout bounds a single fire-and-forget publish
const publishTimeout = 5 * time.Second

// PublishCommitted publishes an event for a mutation that has already
// committed. Failures are logged as ErrChannelDelivery and never returned:
// the mutation succeeded regardless of whether subscribers hear about it.
func PublishCommitted(ctx context.Context, p Publisher, e Event) {
	if p == nil || e == nil {
		return // no channel configured (e.g. tests or one-shot CLI use)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.Publish(ctx, e); err != nil {
		slog.Warn("event publish failed",
			"event_type", e.Kind(),
			"board_id", e.Head().BoardID,
			"error", fmt.Errorf("%w: %w", ErrChannelDelivery, err))
	}
}
