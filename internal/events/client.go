package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/thenoetrevino/tablero/internal/types"
)

// Client is a connection to the tablero daemon. It publishes committed
// events, joins and leaves boards, answers pings and reconnects with
// exponential backoff, rejoining every board it had joined.
type Client struct {
	socketPath string

	mu      sync.Mutex // guards conn, encoder, decoder
	conn    net.Conn
	encoder *json.Encoder
	decoder *json.Decoder

	subsMu sync.RWMutex
	subs   map[types.BoardID]map[*Dispatcher]struct{}

	lastSequence atomic.Int64
	queueSize    int
	newBackOff   func() backoff.BackOff
	onReconnect  func()
	readTimeout  time.Duration

	ctx        context.Context
	cancel     context.CancelFunc
	listenOnce sync.Once
	listenDone chan struct{}
	closed     atomic.Bool
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithReconnectBackOff replaces the reconnect policy
func WithReconnectBackOff(fn func() backoff.BackOff) ClientOption {
	return func(c *Client) { c.newBackOff = fn }
}

// WithReconnectHook runs fn after every successful reconnect, once boards
// have been rejoined. Clients use it to refresh state that may have been
// missed while disconnected.
func WithReconnectHook(fn func()) ClientOption {
	return func(c *Client) { c.onReconnect = fn }
}

// WithQueueSize bounds each subscription's queue
func WithQueueSize(n int) ClientOption {
	return func(c *Client) { c.queueSize = n }
}

// WithReadTimeout sets how long the client waits for any daemon message
// (pings included) before treating the connection as dead
func WithReadTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.readTimeout = d }
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 16 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	return b
}

// NewClient creates a new event client but does not connect.
// The socket path should be the full path to the Unix domain socket.
func NewClient(socketPath string, opts ...ClientOption) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		socketPath:  socketPath,
		subs:        make(map[types.BoardID]map[*Dispatcher]struct{}),
		newBackOff:  defaultBackOff,
		readTimeout: 90 * time.Second,
		ctx:         ctx,
		cancel:      cancel,
		listenDone:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the daemon and starts the listen loop
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := c.dial(ctx); err != nil {
		return err
	}
	c.listenOnce.Do(func() { go c.listenLoop() })
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("failed to dial daemon socket: %w", err)
	}

	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	c.encoder = json.NewEncoder(conn)
	c.decoder = json.NewDecoder(conn)
	c.mu.Unlock()
	return nil
}

// send writes one message to the daemon
func (c *Client) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	// Set a short write deadline to detect dead connections
	if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return fmt.Errorf("connection error: %w", err)
	}

	msg.Version = ProtocolVersion
	return c.encoder.Encode(msg)
}

// Publish sends a committed event to the daemon for broadcast
func (c *Client) Publish(_ context.Context, e Event) error {
	if c.closed.Load() {
		return ErrClosed
	}
	env, err := Encode(e)
	if err != nil {
		return err
	}
	return c.send(Message{Type: MessageEvent, BoardID: env.BoardID, Event: env})
}

// Subscribe joins a board. The first subscription on a board sends a join
// and closing the last one sends a leave.
func (c *Client) Subscribe(_ context.Context, boardID types.BoardID, h Handler) (Subscription, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	var d *Dispatcher
	d = NewDispatcher(boardID, h, c.queueSize, func() { c.unsubscribe(d) })

	c.subsMu.Lock()
	subs := c.subs[boardID]
	first := len(subs) == 0
	if subs == nil {
		subs = make(map[*Dispatcher]struct{})
		c.subs[boardID] = subs
	}
	subs[d] = struct{}{}
	c.subsMu.Unlock()

	if first {
		if err := c.send(Message{Type: MessageJoin, BoardID: boardID}); err != nil {
			c.subsMu.Lock()
			delete(subs, d)
			if len(subs) == 0 {
				delete(c.subs, boardID)
			}
			c.subsMu.Unlock()
			d.mu.Lock()
			d.onClose = nil
			d.mu.Unlock()
			_ = d.Close()
			return nil, fmt.Errorf("join board %d: %w", boardID, err)
		}
	}
	return d, nil
}

func (c *Client) unsubscribe(d *Dispatcher) {
	c.subsMu.Lock()
	subs := c.subs[d.BoardID()]
	delete(subs, d)
	last := len(subs) == 0
	if last {
		delete(c.subs, d.BoardID())
	}
	c.subsMu.Unlock()

	if last && !c.closed.Load() {
		if err := c.send(Message{Type: MessageLeave, BoardID: d.BoardID()}); err != nil && !isConnectionError(err) {
			slog.Debug("failed to leave board", "board_id", d.BoardID(), "error", err)
		}
	}
}

// listenLoop reads messages from the daemon and handles reconnection.
func (c *Client) listenLoop() {
	defer close(c.listenDone)

	for {
		err := c.readMessages()
		if c.ctx.Err() != nil {
			return
		}
		slog.Warn("daemon connection lost, reconnecting", "error", err)

		if !c.reconnect() {
			slog.Error("failed to reconnect to daemon, giving up")
			return
		}
	}
}

// readMessages reads until the connection fails
func (c *Client) readMessages() error {
	for {
		c.mu.Lock()
		if c.conn == nil {
			c.mu.Unlock()
			return ErrNotConnected
		}
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("failed to set read deadline: %w", err)
		}
		decoder := c.decoder
		c.mu.Unlock()

		var msg Message
		if err := decoder.Decode(&msg); err != nil {
			return fmt.Errorf("failed to decode message: %w", err)
		}

		switch msg.Type {
		case MessageEvent:
			c.dispatch(msg.Event)

		case MessagePing:
			if err := c.send(Message{Type: MessagePong}); err != nil && !isConnectionError(err) {
				slog.Warn("failed to send pong", "error", err)
			}
		}
	}
}

func (c *Client) dispatch(env *Envelope) {
	if env == nil {
		return
	}

	// Sequence numbers only grow while one daemon process lives; a repeat
	// means a redelivery.
	if env.Sequence != 0 {
		for {
			last := c.lastSequence.Load()
			if env.Sequence <= last {
				return
			}
			if c.lastSequence.CompareAndSwap(last, env.Sequence) {
				break
			}
		}
	}

	e, err := Decode(env)
	if err != nil {
		slog.Warn("dropping undecodable event", "error", err)
		return
	}

	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	for d := range c.subs[env.BoardID] {
		d.Deliver(e)
	}
}

// reconnect redials with backoff and rejoins every board
func (c *Client) reconnect() bool {
	attempt := 0
	op := func() error {
		attempt++
		if err := c.dial(c.ctx); err != nil {
			slog.Debug("reconnection attempt failed", "attempt", attempt, "error", err)
			return err
		}
		return c.rejoin()
	}

	if err := backoff.Retry(op, backoff.WithContext(c.newBackOff(), c.ctx)); err != nil {
		return false
	}

	// a restarted daemon counts from zero again
	c.lastSequence.Store(0)
	slog.Info("reconnected to daemon", "attempts", attempt)

	if c.onReconnect != nil {
		c.onReconnect()
	}
	return true
}

func (c *Client) rejoin() error {
	c.subsMu.RLock()
	boards := make([]types.BoardID, 0, len(c.subs))
	for id := range c.subs {
		boards = append(boards, id)
	}
	c.subsMu.RUnlock()

	for _, id := range boards {
		if err := c.send(Message{Type: MessageJoin, BoardID: id}); err != nil {
			return err
		}
	}
	return nil
}

// isConnectionError checks if an error is a network connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, ErrNotConnected) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset")
}

// Close closes the connection to the daemon and stops all goroutines.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()

	c.subsMu.Lock()
	var all []*Dispatcher
	for _, subs := range c.subs {
		for d := range subs {
			all = append(all, d)
		}
	}
	c.subs = make(map[types.BoardID]map[*Dispatcher]struct{})
	c.subsMu.Unlock()
	for _, d := range all {
		_ = d.Close()
	}

	c.mu.Lock()
	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	// the listen loop only exists once Connect succeeded
	started := true
	c.listenOnce.Do(func() { started = false })
	if started {
		<-c.listenDone
	}
	return err
}
