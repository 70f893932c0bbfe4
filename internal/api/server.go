// Package api exposes the board engine over HTTP: REST endpoints for the
// operation surface, a websocket stream of each board's committed events,
// and Prometheus metrics. It also provides the matching client.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/services/board"
	"github.com/thenoetrevino/tablero/internal/services/card"
	"github.com/thenoetrevino/tablero/internal/services/column"
	"github.com/thenoetrevino/tablero/internal/types"
)

// Headers carrying the already-authenticated caller
const (
	HeaderUser    = "X-Tablero-User"
	HeaderSession = "X-Tablero-Session"
)

// Services bundles what the server exposes
type Services struct {
	Boards  board.Service
	Columns column.Service
	Cards   card.Service
	// Events feeds the websocket stream; nil disables it
	Events events.Subscriber
}

// Config holds server tuning
type Config struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// StreamBuffer bounds events queued for one websocket
	StreamBuffer int
	// PingInterval is how often idle websockets are pinged
	PingInterval time.Duration
	// Registry receives the HTTP metrics; nil creates a private one
	Registry *prometheus.Registry
}

// DefaultConfig returns the default server configuration
func DefaultConfig() Config {
	return Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		StreamBuffer: 64,
		PingInterval: 30 * time.Second,
	}
}

// Server is the HTTP front of the board engine
type Server struct {
	app      *fiber.App
	svc      Services
	cfg      Config
	logger   *slog.Logger
	registry *prometheus.Registry

	closing   chan struct{}
	closeOnce sync.Once
}

// NewServer builds the fiber app and its routes
func NewServer(svc Services, cfg Config, logger *slog.Logger) *Server {
	def := DefaultConfig()
	if cfg.StreamBuffer <= 0 {
		cfg.StreamBuffer = def.StreamBuffer
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		svc:      svc,
		cfg:      cfg,
		logger:   logger,
		registry: cfg.Registry,
		closing:  make(chan struct{}),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "tablero",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())

	prom := fiberprometheus.NewWithRegistry(cfg.Registry, "tablero", "http", "", nil)
	prom.RegisterAt(s.app, "/metrics")
	s.app.Use(prom.Middleware)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := s.app.Group("/api/v1")

	v1.Get("/boards", s.listBoards)
	v1.Post("/boards", s.createBoard)
	v1.Get("/boards/:board", s.getBoard)
	v1.Get("/boards/:board/columns", s.listColumns)
	v1.Post("/boards/:board/columns", s.createColumn)

	v1.Get("/columns/:column", s.getColumn)
	v1.Patch("/columns/:column", s.updateColumn)
	v1.Delete("/columns/:column", s.deleteColumn)
	v1.Post("/columns/:column/move", s.moveColumn)
	v1.Post("/columns/:column/cards", s.createCard)

	v1.Get("/cards/:card", s.getCard)
	v1.Patch("/cards/:card", s.updateCard)
	v1.Delete("/cards/:card", s.deleteCard)
	v1.Post("/cards/:card/move", s.moveCard)

	s.streamRoutes()
}

// App exposes the fiber app, mainly for app.Test in tests
func (s *Server) App() *fiber.App {
	return s.app
}

// Registry returns the registry holding the HTTP metrics
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Listen serves on addr until Shutdown
func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Serve serves on an existing listener until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http server listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown stops streams, then the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status, body := classify(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "status", status, "error", err)
	} else {
		s.logger.Debug("request rejected", "method", c.Method(), "path", c.Path(), "status", status, "error", err)
	}
	return c.Status(status).JSON(body)
}

// Handlers

func (s *Server) listBoards(c *fiber.Ctx) error {
	projectID := c.QueryInt("project_id", 0)
	boards, err := s.svc.Boards.ListBoards(c.UserContext(), types.ProjectID(projectID))
	if err != nil {
		return err
	}
	return c.JSON(boards)
}

func (s *Server) createBoard(c *fiber.Ctx) error {
	var body createBoardBody
	if err := c.BodyParser(&body); err != nil {
		return badBody(err)
	}
	detail, err := s.svc.Boards.CreateBoard(c.UserContext(), board.CreateBoardRequest{
		ProjectID: body.ProjectID,
		Title:     body.Title,
		Columns:   body.Columns,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(detail)
}

func (s *Server) getBoard(c *fiber.Ctx) error {
	id, err := boardParam(c)
	if err != nil {
		return err
	}
	detail, err := s.svc.Boards.GetBoard(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(detail)
}

func (s *Server) listColumns(c *fiber.Ctx) error {
	id, err := boardParam(c)
	if err != nil {
		return err
	}
	cols, err := s.svc.Columns.ListColumns(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(cols)
}

func (s *Server) createColumn(c *fiber.Ctx) error {
	id, err := boardParam(c)
	if err != nil {
		return err
	}
	var body createColumnBody
	if err := c.BodyParser(&body); err != nil {
		return badBody(err)
	}
	col, err := s.svc.Columns.CreateColumn(c.UserContext(), column.CreateColumnRequest{
		Actor:    actor(c),
		BoardID:  id,
		Title:    body.Title,
		WipLimit: body.WipLimit,
		Position: body.Position,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(col)
}

func (s *Server) getColumn(c *fiber.Ctx) error {
	id, err := columnParam(c)
	if err != nil {
		return err
	}
	col, err := s.svc.Columns.GetColumn(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(col)
}

func (s *Server) updateColumn(c *fiber.Ctx) error {
	id, err := columnParam(c)
	if err != nil {
		return err
	}
	var body updateColumnBody
	if err := c.BodyParser(&body); err != nil {
		return badBody(err)
	}
	col, err := s.svc.Columns.UpdateColumn(c.UserContext(), column.UpdateColumnRequest{
		Actor:    actor(c),
		ColumnID: id,
		Title:    body.Title,
		WipLimit: body.WipLimit,
	})
	if err != nil {
		return err
	}
	return c.JSON(col)
}

func (s *Server) deleteColumn(c *fiber.Ctx) error {
	id, err := columnParam(c)
	if err != nil {
		return err
	}
	if err := s.svc.Columns.DeleteColumn(c.UserContext(), column.DeleteColumnRequest{Actor: actor(c), ColumnID: id}); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) moveColumn(c *fiber.Ctx) error {
	id, err := columnParam(c)
	if err != nil {
		return err
	}
	var body positionBody
	if err := c.BodyParser(&body); err != nil {
		return badBody(err)
	}
	col, err := s.svc.Columns.MoveColumn(c.UserContext(), column.MoveColumnRequest{
		Actor:    actor(c),
		ColumnID: id,
		Position: body.Position,
	})
	if err != nil {
		return err
	}
	return c.JSON(col)
}

func (s *Server) createCard(c *fiber.Ctx) error {
	id, err := columnParam(c)
	if err != nil {
		return err
	}
	var body createCardBody
	if err := c.BodyParser(&body); err != nil {
		return badBody(err)
	}
	req := card.CreateCardRequest{
		Actor:       actor(c),
		ColumnID:    id,
		Title:       body.Title,
		Description: body.Description,
		DueDate:     body.DueDate,
		MilestoneID: body.MilestoneID,
		Assignees:   body.Assignees,
		Labels:      body.Labels,
		ClientRef:   body.ClientRef,
	}
	if body.Priority != nil {
		req.Priority = *body.Priority
	}
	created, err := s.svc.Cards.CreateCard(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (s *Server) getCard(c *fiber.Ctx) error {
	id, err := cardParam(c)
	if err != nil {
		return err
	}
	got, err := s.svc.Cards.GetCard(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(got)
}

func (s *Server) updateCard(c *fiber.Ctx) error {
	id, err := cardParam(c)
	if err != nil {
		return err
	}
	var body updateCardBody
	if err := c.BodyParser(&body); err != nil {
		return badBody(err)
	}
	updated, err := s.svc.Cards.UpdateCard(c.UserContext(), card.UpdateCardRequest{
		Actor:          actor(c),
		CardID:         id,
		Title:          body.Title,
		Description:    body.Description,
		Priority:       body.Priority,
		DueDate:        body.DueDate,
		ClearDueDate:   body.ClearDueDate,
		MilestoneID:    body.MilestoneID,
		ClearMilestone: body.ClearMilestone,
		Assignees:      body.Assignees,
		Labels:         body.Labels,
	})
	if err != nil {
		return err
	}
	return c.JSON(updated)
}

func (s *Server) deleteCard(c *fiber.Ctx) error {
	id, err := cardParam(c)
	if err != nil {
		return err
	}
	deleted, err := s.svc.Cards.DeleteCard(c.UserContext(), card.DeleteCardRequest{Actor: actor(c), CardID: id})
	if err != nil {
		return err
	}
	return c.JSON(deleted)
}

func (s *Server) moveCard(c *fiber.Ctx) error {
	id, err := cardParam(c)
	if err != nil {
		return err
	}
	var body moveCardBody
	if err := c.BodyParser(&body); err != nil {
		return badBody(err)
	}
	moved, err := s.svc.Cards.MoveCard(c.UserContext(), card.MoveCardRequest{
		Actor:    actor(c),
		CardID:   id,
		ColumnID: body.ColumnID,
		Position: body.Position,
	})
	if err != nil {
		return err
	}
	return c.JSON(moved)
}

// Request helpers

func actor(c *fiber.Ctx) models.Actor {
	return models.Actor{
		User:    types.UserID(c.Get(HeaderUser)),
		Session: c.Get(HeaderSession),
	}
}

func badBody(err error) error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
}

func boardParam(c *fiber.Ctx) (types.BoardID, error) {
	id, err := types.ParseBoardID(c.Params("board"))
	if err != nil {
		return 0, badParam("board", c.Params("board"), err)
	}
	return id, nil
}

func columnParam(c *fiber.Ctx) (types.ColumnID, error) {
	id, err := types.ParseColumnID(c.Params("column"))
	if err != nil {
		return 0, badParam("column", c.Params("column"), err)
	}
	return id, nil
}

func cardParam(c *fiber.Ctx) (types.CardID, error) {
	id, err := types.ParseCardID(c.Params("card"))
	if err != nil {
		return 0, badParam("card", c.Params("card"), err)
	}
	return id, nil
}

func badParam(name, value string, err error) error {
	if errors.Is(err, strconv.ErrRange) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid "+name+" ID: "+value+" (must be positive)")
	}
	return fiber.NewError(fiber.StatusBadRequest, "invalid "+name+" ID: "+value)
}
