package events

import (
	"log/slog"
	"sync"

	"github.com/thenoetrevino/tablero/internal/types"
)

// DefaultQueueSize bounds each subscription's pending events
const DefaultQueueSize = 64

// Dispatcher delivers events to one handler on its own goroutine. Delivery
// never blocks: a full queue drops the event, since a slow subscriber must
// not exert backpressure on the publisher.
type Dispatcher struct {
	boardID types.BoardID
	handler Handler
	queue   chan Event
	done    chan struct{}

	mu      sync.Mutex
	closed  bool
	onClose func()
}

// NewDispatcher starts a dispatch goroutine for handler. onClose, if set,
// runs once when the dispatcher is closed (used to leave the board).
func NewDispatcher(boardID types.BoardID, handler Handler, queueSize int, onClose func()) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		boardID: boardID,
		handler: handler,
		queue:   make(chan Event, queueSize),
		done:    make(chan struct{}),
		onClose: onClose,
	}
	go d.run()
	return d
}

// BoardID returns the board this dispatcher serves
func (d *Dispatcher) BoardID() types.BoardID {
	return d.boardID
}

// Deliver enqueues e, reporting false if it was dropped
func (d *Dispatcher) Deliver(e Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}
	select {
	case d.queue <- e:
		return true
	default:
		slog.Warn("subscriber queue full, event dropped",
			"board_id", d.boardID,
			"event_type", e.Kind(),
			"error", ErrChannelDelivery)
		return false
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.queue {
		d.handler(e)
	}
}

// Close stops delivery. Events already queued are still handled. Close
// does not wait for the handler so it is safe to call from inside one.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	onClose := d.onClose
	d.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	return nil
}

// Done is closed after the last queued event has been handled
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}
