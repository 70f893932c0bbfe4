package events

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/thenoetrevino/tablero/internal/types"
)

// Hub is an in-process board channel. It is the default bus for a single
// server and the fan-out stage behind the websocket endpoint.
type Hub struct {
	mu        sync.RWMutex
	boards    map[types.BoardID]map[*Dispatcher]struct{}
	sequence  atomic.Int64
	queueSize int
	closed    bool
}

// NewHub creates an empty hub. queueSize bounds each subscriber's queue
// (0 selects DefaultQueueSize).
func NewHub(queueSize int) *Hub {
	return &Hub{
		boards:    make(map[types.BoardID]map[*Dispatcher]struct{}),
		queueSize: queueSize,
	}
}

// Publish stamps a sequence number and fans e out to the board's
// subscribers. Slow subscribers drop the event.
func (h *Hub) Publish(_ context.Context, e Event) error {
	if e == nil {
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrClosed
	}

	head := e.Head()
	if head.Sequence == 0 {
		head.Sequence = h.sequence.Add(1)
	}
	for d := range h.boards[head.BoardID] {
		d.Deliver(e)
	}
	return nil
}

// Subscribe joins a board
func (h *Hub) Subscribe(_ context.Context, boardID types.BoardID, handler Handler) (Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	var d *Dispatcher
	d = NewDispatcher(boardID, handler, h.queueSize, func() { h.leave(d) })

	subs := h.boards[boardID]
	if subs == nil {
		subs = make(map[*Dispatcher]struct{})
		h.boards[boardID] = subs
	}
	subs[d] = struct{}{}
	return d, nil
}

func (h *Hub) leave(d *Dispatcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.boards[d.BoardID()]
	delete(subs, d)
	if len(subs) == 0 {
		delete(h.boards, d.BoardID())
	}
}

// Subscribers returns the number of subscriptions on a board
func (h *Hub) Subscribers(boardID types.BoardID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.boards[boardID])
}

// Close drops every subscription
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	var all []*Dispatcher
	for _, subs := range h.boards {
		for d := range subs {
			all = append(all, d)
		}
	}
	h.boards = make(map[types.BoardID]map[*Dispatcher]struct{})
	h.mu.Unlock()

	for _, d := range all {
		d.mu.Lock()
		d.onClose = nil
		d.mu.Unlock()
		_ = d.Close()
	}
	return nil
}
