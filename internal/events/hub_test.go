package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/types"
)

// collector records handled events
type collector struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func newCollector() *collector {
	return &collector{ch: make(chan Event, 100)}
}

func (c *collector) handle(e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
	c.ch <- e
}

func (c *collector) next(t *testing.T) Event {
	t.Helper()
	select {
	case e := <-c.ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for event")
		return nil
	}
}

func (c *collector) none(t *testing.T) {
	t.Helper()
	select {
	case e := <-c.ch:
		t.Fatalf("Unexpected event: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func updated(boardID types.BoardID, title string) *CardUpdated {
	return &CardUpdated{
		Header: NewHeader(boardID, models.Actor{User: "ana"}, time.Now()),
		Card:   models.Card{ID: 1, Title: title},
	}
}

func TestHub_FanOutPerBoard(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	hub := NewHub(0)
	defer func() { _ = hub.Close() }()

	a, b, other := newCollector(), newCollector(), newCollector()
	_, err := hub.Subscribe(ctx, 1, a.handle)
	require.NoError(t, err)
	_, err = hub.Subscribe(ctx, 1, b.handle)
	require.NoError(t, err)
	_, err = hub.Subscribe(ctx, 2, other.handle)
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, updated(1, "x")))

	assert.Equal(t, "x", a.next(t).(*CardUpdated).Card.Title)
	assert.Equal(t, "x", b.next(t).(*CardUpdated).Card.Title)
	other.none(t)
}

func TestHub_SequenceAndOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	hub := NewHub(0)
	defer func() { _ = hub.Close() }()

	c := newCollector()
	_, err := hub.Subscribe(ctx, 1, c.handle)
	require.NoError(t, err)

	for _, title := range []string{"one", "two", "three"} {
		require.NoError(t, hub.Publish(ctx, updated(1, title)))
	}

	var last int64
	for _, want := range []string{"one", "two", "three"} {
		e := c.next(t)
		assert.Equal(t, want, e.(*CardUpdated).Card.Title)
		assert.Greater(t, e.Head().Sequence, last)
		last = e.Head().Sequence
	}
}

func TestHub_CloseLeavesBoard(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	hub := NewHub(0)
	defer func() { _ = hub.Close() }()

	c := newCollector()
	sub, err := hub.Subscribe(ctx, 1, c.handle)
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Subscribers(1))

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close(), "double close is harmless")
	assert.Equal(t, 0, hub.Subscribers(1))

	require.NoError(t, hub.Publish(ctx, updated(1, "late")))
	c.none(t)
}

func TestHub_SlowSubscriberDrops(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	hub := NewHub(1)
	defer func() { _ = hub.Close() }()

	release := make(chan struct{})
	var handled sync.WaitGroup
	handled.Add(1)
	first := true
	_, err := hub.Subscribe(ctx, 1, func(Event) {
		if first {
			first = false
			handled.Done()
			<-release
		}
	})
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, updated(1, "a")))
	handled.Wait() // handler is now blocked on "a"

	// queue holds one, the rest are dropped without blocking Publish
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = hub.Publish(ctx, updated(1, "b"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	close(release)
}

func TestHub_Closed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	hub := NewHub(0)
	require.NoError(t, hub.Close())

	assert.ErrorIs(t, hub.Publish(ctx, updated(1, "x")), ErrClosed)
	_, err := hub.Subscribe(ctx, 1, func(Event) {})
	assert.ErrorIs(t, err, ErrClosed)
}

// failingPublisher always fails
type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, Event) error {
	f.calls++
	return errors.New("socket gone")
}

func TestPublishCommitted_NeverFails(t *testing.T) {
	t.Parallel()

	fp := &failingPublisher{}
	PublishCommitted(context.Background(), fp, updated(1, "x"))
	assert.Equal(t, 1, fp.calls, "delivery failures are not retried")

	// nil publisher and nil event are no-ops
	PublishCommitted(context.Background(), nil, updated(1, "x"))
	PublishCommitted(context.Background(), fp, nil)
	assert.Equal(t, 1, fp.calls)
}

func TestPublishCommitted_IgnoresCallerCancellation(t *testing.T) {
	t.Parallel()
	hub := NewHub(0)
	defer func() { _ = hub.Close() }()

	c := newCollector()
	_, err := hub.Subscribe(context.Background(), 1, c.handle)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	PublishCommitted(ctx, hub, updated(1, "committed"))
	assert.Equal(t, "committed", c.next(t).(*CardUpdated).Card.Title)
}
