package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/types"
)

// client represents a connected client to the daemon
type client struct {
	conn      net.Conn
	send      chan events.Message
	boards    map[types.BoardID]struct{}
	lastPong  time.Time
	mu        sync.Mutex // Protects boards and lastPong
	closeOnce sync.Once  // Ensures send channel is closed only once
}

func (c *client) joined(boardID types.BoardID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.boards[boardID]
	return ok
}

// Config tunes queue sizes and health checking
type Config struct {
	BroadcastBuffer int
	ClientBuffer    int
	PingInterval    time.Duration
	// StaleAfter drops clients that have not answered a ping for this long
	StaleAfter time.Duration
}

// DefaultConfig returns the production settings
func DefaultConfig() Config {
	return Config{
		BroadcastBuffer: 100,
		ClientBuffer:    32,
		PingInterval:    30 * time.Second,
		StaleAfter:      90 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BroadcastBuffer <= 0 {
		c.BroadcastBuffer = def.BroadcastBuffer
	}
	if c.ClientBuffer <= 0 {
		c.ClientBuffer = def.ClientBuffer
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = def.StaleAfter
	}
	return c
}

// Server relays board events between tablero processes over a unix socket.
// Clients join boards; every event published by one client is stamped
// with a sequence number and forwarded to all clients joined to its board,
// the publisher included.
type Server struct {
	socketPath      string
	listener        net.Listener
	clients         map[*client]bool
	mu              sync.RWMutex
	ctx             context.Context
	cancel          context.CancelFunc
	broadcast       chan *events.Envelope
	metrics         *Metrics
	sequenceCounter atomic.Int64
	cfg             Config
	shutdownOnce    sync.Once
}

// NewServer creates a new daemon server listening on socketPath
func NewServer(socketPath string, cfg Config) (*Server, error) {
	cfg = cfg.withDefaults()

	// Ensure the directory exists
	if dir := filepath.Dir(socketPath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create socket directory: %w", err)
		}
	}

	// Remove stale socket file if it exists
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return nil, fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	lc := net.ListenConfig{}
	listener, err := lc.Listen(context.Background(), "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create socket listener: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		socketPath: socketPath,
		listener:   listener,
		clients:    make(map[*client]bool),
		ctx:        ctx,
		cancel:     cancel,
		broadcast:  make(chan *events.Envelope, cfg.BroadcastBuffer),
		metrics:    NewMetrics(),
		cfg:        cfg,
	}, nil
}

// Metrics returns the server's collectors
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start runs the daemon server until ctx is cancelled or Shutdown is
// called. It starts three goroutines: accept, broadcast and health.
func (s *Server) Start(ctx context.Context) error {
	slog.Info("daemon starting", "socket", s.socketPath)

	combinedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-s.ctx.Done()
		cancel()
	}()

	acceptErr := make(chan error, 1)
	go func() {
		acceptErr <- s.acceptLoop(combinedCtx)
	}()

	go s.broadcastLoop(combinedCtx)
	go s.monitorHealth(combinedCtx)

	select {
	case <-combinedCtx.Done():
		slog.Info("daemon context cancelled, shutting down")
	case err := <-acceptErr:
		if err != nil {
			slog.Error("accept loop error", "error", err)
		}
	}

	return s.Shutdown()
}

// acceptLoop accepts incoming client connections
func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		// Set a deadline so we can check for context cancellation
		if ul, ok := s.listener.(*net.UnixListener); ok {
			if err := ul.SetDeadline(time.Now().Add(1 * time.Second)); err != nil {
				slog.Warn("error setting listener deadline", "error", err)
			}
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept error: %w", err)
		}

		c := &client{
			conn:     conn,
			send:     make(chan events.Message, s.cfg.ClientBuffer),
			boards:   make(map[types.BoardID]struct{}),
			lastPong: time.Now(),
		}

		s.mu.Lock()
		s.clients[c] = true
		s.mu.Unlock()
		s.updateGauges()

		slog.Debug("client connected", "clients", s.getClientCount())

		go s.handleClient(c)
		go s.clientWriter(c)
	}
}

// broadcastLoop stamps sequence numbers and distributes events to the
// clients joined to each event's board
func (s *Server) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case env, ok := <-s.broadcast:
			if !ok {
				return
			}
			env.Sequence = s.sequenceCounter.Add(1)

			s.mu.RLock()
			for c := range s.clients {
				if !c.joined(env.BoardID) {
					continue
				}
				msg := events.Message{
					Version: events.ProtocolVersion,
					Type:    events.MessageEvent,
					BoardID: env.BoardID,
					Event:   env,
				}
				// Non-blocking send - if client is slow, skip
				if !s.sendToClient(c, msg) {
					s.metrics.IncEventsDropped()
					slog.Warn("client send queue full, event dropped",
						"board_id", env.BoardID, "error", events.ErrChannelDelivery)
				}
			}
			s.mu.RUnlock()
		}
	}
}

// handleClient reads messages from a connected client
func (s *Server) handleClient(c *client) {
	defer func() {
		s.removeClient(c)
		slog.Debug("client disconnected", "clients", s.getClientCount())
	}()

	decoder := json.NewDecoder(c.conn)

	for {
		var msg events.Message
		if err := decoder.Decode(&msg); err != nil {
			return
		}

		if msg.Version != 0 && msg.Version != events.ProtocolVersion {
			slog.Warn("protocol version mismatch", "got", msg.Version, "want", events.ProtocolVersion)
		}

		switch msg.Type {
		case events.MessageEvent:
			if msg.Event == nil {
				continue
			}
			s.metrics.IncEventsReceived()
			select {
			case s.broadcast <- msg.Event:
			default:
				s.metrics.IncEventsDropped()
				slog.Warn("broadcast channel full", "error", events.ErrChannelDelivery)
			}

		case events.MessageJoin:
			c.mu.Lock()
			c.boards[msg.BoardID] = struct{}{}
			c.mu.Unlock()
			s.metrics.IncJoins()
			s.updateGauges()
			slog.Debug("client joined board", "board_id", msg.BoardID)

		case events.MessageLeave:
			c.mu.Lock()
			delete(c.boards, msg.BoardID)
			c.mu.Unlock()
			s.updateGauges()

		case events.MessagePong:
			c.mu.Lock()
			c.lastPong = time.Now()
			c.mu.Unlock()
		}
	}
}

// clientWriter sends messages to a client
func (s *Server) clientWriter(c *client) {
	encoder := json.NewEncoder(c.conn)

	for msg := range c.send {
		if err := encoder.Encode(msg); err != nil {
			return
		}
	}
}

// monitorHealth sends ping messages and removes stale clients
func (s *Server) monitorHealth(ctx context.Context) {
	pingTicker := time.NewTicker(s.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-pingTicker.C:
			// Ping live clients under the read lock and remove stale ones
			// after releasing it
			now := time.Now()
			ping := events.Message{Version: events.ProtocolVersion, Type: events.MessagePing}
			var stale []*client

			s.mu.RLock()
			for c := range s.clients {
				c.mu.Lock()
				lastPong := c.lastPong
				c.mu.Unlock()

				if now.Sub(lastPong) > s.cfg.StaleAfter {
					stale = append(stale, c)
					continue
				}
				if !s.sendToClient(c, ping) {
					slog.Debug("failed to send ping to client (queue full)")
				}
			}
			s.mu.RUnlock()

			for _, c := range stale {
				slog.Info("removing stale client")
				s.removeClient(c)
			}
		}
	}
}

// Publish injects an event from inside the daemon process
func (s *Server) Publish(_ context.Context, e events.Event) error {
	if s.ctx.Err() != nil {
		return events.ErrClosed
	}
	env, err := events.Encode(e)
	if err != nil {
		return err
	}
	select {
	case s.broadcast <- env:
		return nil
	default:
		return fmt.Errorf("broadcast channel full: %w", events.ErrChannelDelivery)
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	s.shutdownOnce.Do(func() {
		slog.Info("shutting down daemon")

		s.cancel()

		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				slog.Debug("error closing listener", "error", err)
			}
		}

		s.mu.Lock()
		for c := range s.clients {
			if err := c.conn.Close(); err != nil {
				slog.Debug("error closing client connection", "error", err)
			}
			c.closeOnce.Do(func() {
				close(c.send)
			})
		}
		s.clients = make(map[*client]bool)
		s.mu.Unlock()
		s.updateGauges()

		if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove socket file", "error", err)
		}
	})

	return nil
}

// Helper methods

func (s *Server) getClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) updateGauges() {
	s.mu.RLock()
	count := len(s.clients)
	boards := make(map[types.BoardID]struct{})
	for c := range s.clients {
		c.mu.Lock()
		for id := range c.boards {
			boards[id] = struct{}{}
		}
		c.mu.Unlock()
	}
	s.mu.RUnlock()

	s.metrics.SetConnectedClients(count)
	s.metrics.SetJoinedBoards(len(boards))
}

// removeClient safely removes a client from the server. The send queue
// is closed under the server lock; every sender holds the read lock.
func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	c.closeOnce.Do(func() {
		close(c.send)
	})
	s.mu.Unlock()

	if err := c.conn.Close(); err != nil {
		slog.Debug("error closing client connection", "error", err)
	}

	s.updateGauges()
}

// sendToClient attempts to send a message to a client (non-blocking).
// Callers hold s.mu for reading.
func (s *Server) sendToClient(c *client, msg events.Message) bool {
	select {
	case c.send <- msg:
		s.metrics.IncEventsSent()
		return true
	default:
		return false
	}
}
