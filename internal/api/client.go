package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/thenoetrevino/tablero/internal/boardstate"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/types"
)

// Client talks to a Server as one acting user and session. It implements
// the reconciler's Remote and Loader and subscribes to board streams.
type Client struct {
	base      *url.URL
	http      *http.Client
	dialer    *websocket.Dialer
	actor     models.Actor
	queueSize int
}

// Compile-time interface checks
var (
	_ boardstate.Remote = (*Client)(nil)
	_ boardstate.Loader = (*Client)(nil)
	_ events.Subscriber = (*Client)(nil)
)

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithStreamQueue sets the per-subscription event queue size
func WithStreamQueue(n int) ClientOption {
	return func(c *Client) { c.queueSize = n }
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, actor models.Actor, opts ...ClientOption) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		base:      base,
		http:      &http.Client{Timeout: 30 * time.Second},
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		actor:     actor,
		queueSize: events.DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Actor returns the identity the client acts as
func (c *Client) Actor() models.Actor {
	return c.actor
}

// Boards

// ListBoards lists boards, optionally for one project (0 = all)
func (c *Client) ListBoards(ctx context.Context, projectID types.ProjectID) ([]models.Board, error) {
	path := "/api/v1/boards"
	if projectID > 0 {
		path += "?project_id=" + strconv.Itoa(int(projectID))
	}
	var boards []models.Board
	return boards, c.do(ctx, http.MethodGet, path, nil, &boards)
}

// CreateBoard creates a board; nil columns seeds the server defaults
func (c *Client) CreateBoard(ctx context.Context, projectID types.ProjectID, title string, columns []string) (*models.BoardDetail, error) {
	var detail models.BoardDetail
	body := createBoardBody{ProjectID: projectID, Title: title, Columns: columns}
	if err := c.do(ctx, http.MethodPost, "/api/v1/boards", body, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// LoadBoard fetches a board's full committed state
func (c *Client) LoadBoard(ctx context.Context, boardID types.BoardID) (*models.BoardDetail, error) {
	var detail models.BoardDetail
	if err := c.do(ctx, http.MethodGet, "/api/v1/boards/"+boardID.String(), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Columns

// CreateColumn adds a column; a nil position appends
func (c *Client) CreateColumn(ctx context.Context, boardID types.BoardID, title string, wipLimit int, position *int) (*models.Column, error) {
	var col models.Column
	body := createColumnBody{Title: title, WipLimit: wipLimit, Position: position}
	if err := c.do(ctx, http.MethodPost, "/api/v1/boards/"+boardID.String()+"/columns", body, &col); err != nil {
		return nil, err
	}
	return &col, nil
}

// GetColumn fetches one column
func (c *Client) GetColumn(ctx context.Context, columnID types.ColumnID) (*models.Column, error) {
	var col models.Column
	if err := c.do(ctx, http.MethodGet, "/api/v1/columns/"+columnID.String(), nil, &col); err != nil {
		return nil, err
	}
	return &col, nil
}

// UpdateColumn changes a column's title and/or WIP limit
func (c *Client) UpdateColumn(ctx context.Context, columnID types.ColumnID, title *string, wipLimit *int) (*models.Column, error) {
	var col models.Column
	body := updateColumnBody{Title: title, WipLimit: wipLimit}
	if err := c.do(ctx, http.MethodPatch, "/api/v1/columns/"+columnID.String(), body, &col); err != nil {
		return nil, err
	}
	return &col, nil
}

// DeleteColumn removes an empty column
func (c *Client) DeleteColumn(ctx context.Context, columnID types.ColumnID) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/columns/"+columnID.String(), nil, nil)
}

// MoveColumn reorders a column within its board
func (c *Client) MoveColumn(ctx context.Context, columnID types.ColumnID, position int) (*models.Column, error) {
	var col models.Column
	if err := c.do(ctx, http.MethodPost, "/api/v1/columns/"+columnID.String()+"/move", positionBody{Position: position}, &col); err != nil {
		return nil, err
	}
	return &col, nil
}

// Cards

// CreateCard creates draft in draft.ColumnID. clientRef is echoed in the
// resulting created event.
func (c *Client) CreateCard(ctx context.Context, draft models.Card, clientRef string) (*models.Card, error) {
	body := createCardBody{
		Title:       draft.Title,
		Description: draft.Description,
		DueDate:     draft.DueDate,
		MilestoneID: draft.MilestoneID,
		Assignees:   draft.Assignees,
		Labels:      draft.Labels,
		ClientRef:   clientRef,
	}
	if draft.Priority != 0 {
		p := draft.Priority
		body.Priority = &p
	}

	var created models.Card
	if err := c.do(ctx, http.MethodPost, "/api/v1/columns/"+draft.ColumnID.String()+"/cards", body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetCard fetches one card
func (c *Client) GetCard(ctx context.Context, cardID types.CardID) (*models.Card, error) {
	var got models.Card
	if err := c.do(ctx, http.MethodGet, "/api/v1/cards/"+cardID.String(), nil, &got); err != nil {
		return nil, err
	}
	return &got, nil
}

// UpdateCard writes every editable field of card
func (c *Client) UpdateCard(ctx context.Context, card models.Card) (*models.Card, error) {
	assignees, labels := card.Assignees, card.Labels
	if assignees == nil {
		assignees = []types.UserID{}
	}
	if labels == nil {
		labels = []types.LabelID{}
	}
	body := updateCardBody{
		Title:          &card.Title,
		Description:    &card.Description,
		DueDate:        card.DueDate,
		ClearDueDate:   card.DueDate == nil,
		MilestoneID:    card.MilestoneID,
		ClearMilestone: card.MilestoneID == nil,
		Assignees:      &assignees,
		Labels:         &labels,
	}
	if card.Priority != 0 {
		body.Priority = &card.Priority
	}

	var updated models.Card
	if err := c.do(ctx, http.MethodPatch, "/api/v1/cards/"+card.ID.String(), body, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteCard removes a card
func (c *Client) DeleteCard(ctx context.Context, cardID types.CardID) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/cards/"+cardID.String(), nil, nil)
}

// MoveCard relocates a card
func (c *Client) MoveCard(ctx context.Context, cardID types.CardID, columnID types.ColumnID, position int) (*models.Card, error) {
	var moved models.Card
	body := moveCardBody{ColumnID: columnID, Position: position}
	if err := c.do(ctx, http.MethodPost, "/api/v1/cards/"+cardID.String()+"/move", body, &moved); err != nil {
		return nil, err
	}
	return &moved, nil
}

// Subscribe opens the board's websocket stream. Events are handed to h on
// the subscription's dispatch goroutine. The subscription ends when it is
// closed or the server goes away; its Done channel reports the latter.
func (c *Client) Subscribe(ctx context.Context, boardID types.BoardID, h events.Handler) (events.Subscription, error) {
	u := *c.base
	u.Scheme = "ws"
	if c.base.Scheme == "https" {
		u.Scheme = "wss"
	}
	u = *u.JoinPath("ws", "boards", boardID.String())

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), c.headers())
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, decodeError(resp)
		}
		return nil, fmt.Errorf("failed to open board stream: %w", err)
	}

	d := events.NewDispatcher(boardID, h, c.queueSize, func() { _ = conn.Close() })
	go func() {
		defer d.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				slog.Debug("board stream closed", "board_id", boardID, "error", err)
				return
			}
			e, err := events.Unmarshal(data)
			if err != nil {
				slog.Warn("dropping undecodable event", "board_id", boardID, "error", err)
				continue
			}
			d.Deliver(e)
		}
	}()
	return d, nil
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	if c.actor.User != "" {
		h.Set(HeaderUser, string(c.actor.User))
	}
	if c.actor.Session != "" {
		h.Set(HeaderSession, c.actor.Session)
	}
	return h
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	ref, err := url.Parse(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.ResolveReference(ref).String(), body)
	if err != nil {
		return err
	}
	req.Header = c.headers()
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	se := &StatusError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(data, &se.Body); err != nil || se.Body.Code == "" {
		se.Body.Error = http.StatusText(resp.StatusCode)
		se.Body.Code = codeForStatus(resp.StatusCode)
	}
	return se
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusBadRequest:
		return CodeInvalidInput
	case http.StatusServiceUnavailable:
		return CodeTransactionConflict
	default:
		return CodeInternal
	}
}
