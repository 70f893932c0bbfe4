package api

import (
	"context"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/types"
)

const (
	localBoardID = "board_id"
	localActor   = "actor"
	writeWait    = 10 * time.Second
)

func (s *Server) streamRoutes() {
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})

	s.app.Get("/ws/boards/:board", s.admitStream, websocket.New(s.streamBoard))
}

// admitStream validates the board before the upgrade so a missing board is
// a plain 404 rather than an immediately closed socket
func (s *Server) admitStream(c *fiber.Ctx) error {
	if s.svc.Events == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "event stream disabled")
	}
	id, err := boardParam(c)
	if err != nil {
		return err
	}
	if _, err := s.svc.Boards.GetBoard(c.UserContext(), id); err != nil {
		return err
	}
	c.Locals(localBoardID, id)
	c.Locals(localActor, actor(c))
	return c.Next()
}

// streamBoard forwards a board's committed events to one websocket as JSON
// envelopes. Only this goroutine writes data frames.
func (s *Server) streamBoard(conn *websocket.Conn) {
	boardID, _ := conn.Locals(localBoardID).(types.BoardID)
	logger := s.logger.With("board_id", boardID, "remote", conn.RemoteAddr().String())

	out := make(chan []byte, s.cfg.StreamBuffer)
	sub, err := s.svc.Events.Subscribe(context.Background(), boardID, func(e events.Event) {
		data, err := events.Marshal(e)
		if err != nil {
			logger.Error("failed to encode event", "error", err)
			return
		}
		select {
		case out <- data:
		default:
			logger.Warn("websocket too slow, event dropped", "event_type", e.Kind(), "error", events.ErrChannelDelivery)
		}
	})
	if err != nil {
		logger.Error("failed to join board stream", "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(writeWait))
		return
	}
	defer sub.Close()
	logger.Debug("websocket joined board")

	// The reader only notices the peer going away; clients send nothing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(s.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case data := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-gone:
			logger.Debug("websocket left board")
			return
		case <-s.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		}
	}
}
