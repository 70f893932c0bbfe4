package events

import (
	"context"

	"github.com/thenoetrevino/tablero/internal/types"
)

// Handler receives the events of one subscription. Calls for a single
// subscription are sequential and happen on that subscription's dispatch
// goroutine, never on the publisher's.
type Handler func(Event)

// Publisher sends committed events to a board's channel
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber joins board channels
type Subscriber interface {
	// Subscribe joins boardID. The returned Subscription leaves it.
	Subscribe(ctx context.Context, boardID types.BoardID, h Handler) (Subscription, error)
}

// Subscription is the cancellation handle for a joined board
type Subscription interface {
	Close() error
}

// Bus is a full real-time channel
type Bus interface {
	Publisher
	Subscriber
}

// Compile-time verification of the channel backends
var (
	_ Bus = (*Hub)(nil)
	_ Bus = (*Client)(nil)
)
