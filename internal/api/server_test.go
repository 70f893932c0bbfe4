package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/services/board"
	"github.com/thenoetrevino/tablero/internal/services/card"
	"github.com/thenoetrevino/tablero/internal/services/column"
	"github.com/thenoetrevino/tablero/internal/testutil"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

func setupServer(t *testing.T) (*Server, *database.Store, *events.Hub) {
	t.Helper()
	store := testutil.SetupTestStore(t)
	hub := events.NewHub(16)
	t.Cleanup(func() { _ = hub.Close() })

	srv := NewServer(Services{
		Boards:  board.NewService(store, nil),
		Columns: column.NewService(store, hub),
		Cards:   card.NewService(store, hub),
		Events:  hub,
	}, Config{PingInterval: 50 * time.Millisecond}, nil)
	return srv, store, hub
}

// startServer serves srv on a loopback port and returns its base URL
func startServer(t *testing.T, srv *Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return "http://" + ln.Addr().String()
}

func request(t *testing.T, srv *Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(HeaderUser, "ana")
	req.Header.Set(HeaderSession, "tab-1")

	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeErr(t *testing.T, data []byte) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(data, &body))
	return body
}

// ============================================================================
// ROUTES
// ============================================================================

func TestCreateAndGetBoard(t *testing.T) {
	t.Parallel()
	srv, _, _ := setupServer(t)

	resp, data := request(t, srv, http.MethodPost, "/api/v1/boards", `{"project_id":1,"title":"Roadmap"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	var created models.BoardDetail
	require.NoError(t, json.Unmarshal(data, &created))
	assert.Len(t, created.Columns, 3)

	resp, data = request(t, srv, http.MethodGet, "/api/v1/boards/"+created.Board.ID.String(), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got models.BoardDetail
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "Roadmap", got.Board.Title)
	assert.Equal(t, "In Progress", got.Columns[1].Title)
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()
	srv, store, _ := setupServer(t)
	b := testutil.SeedBoard(t, store,
		testutil.ColumnSpec{Title: "X", Cards: []string{"a"}},
		testutil.ColumnSpec{Title: "Y", WipLimit: 1, Cards: []string{"p"}},
	)
	x, y := b.Columns[0].ID.String(), b.Columns[1].ID.String()
	a := b.CardID(0, 0).String()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"missing board", http.MethodGet, "/api/v1/boards/999", "", http.StatusNotFound, CodeNotFound},
		{"bad board param", http.MethodGet, "/api/v1/boards/abc", "", http.StatusBadRequest, CodeInvalidInput},
		{"zero card param", http.MethodGet, "/api/v1/cards/0", "", http.StatusBadRequest, CodeInvalidInput},
		{"empty title", http.MethodPost, "/api/v1/columns/" + x + "/cards", `{"title":""}`, http.StatusBadRequest, CodeInvalidInput},
		{"bad priority", http.MethodPost, "/api/v1/columns/" + x + "/cards", `{"title":"t","priority":"meh"}`, http.StatusBadRequest, CodeInvalidInput},
		{"wip on create", http.MethodPost, "/api/v1/columns/" + y + "/cards", `{"title":"t"}`, http.StatusConflict, CodeWipLimitExceeded},
		{"wip on move", http.MethodPost, "/api/v1/cards/" + a + "/move", `{"column_id":` + y + `,"position":0}`, http.StatusConflict, CodeWipLimitExceeded},
		{"delete non-empty column", http.MethodDelete, "/api/v1/columns/" + x, "", http.StatusConflict, CodeColumnNotEmpty},
		{"missing card", http.MethodDelete, "/api/v1/cards/999", "", http.StatusNotFound, CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := request(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(data))
			assert.Equal(t, tt.code, decodeErr(t, data).Code)
		})
	}

	_, data := request(t, srv, http.MethodPost, "/api/v1/columns/"+y+"/cards", `{"title":"t"}`)
	body := decodeErr(t, data)
	assert.Equal(t, b.Columns[1].ID, body.ColumnID)
	assert.Equal(t, 1, body.Limit)
	assert.Equal(t, 1, body.Count)
}

func TestMissingActorIsRejected(t *testing.T) {
	t.Parallel()
	srv, store, _ := setupServer(t)
	b := testutil.SeedBoard(t, store, testutil.ColumnSpec{Title: "X"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/columns/"+b.Columns[0].ID.String()+"/cards", strings.NewReader(`{"title":"t"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCardLifecycle(t *testing.T) {
	t.Parallel()
	srv, store, _ := setupServer(t)
	b := testutil.SeedBoard(t, store, testutil.ColumnSpec{Title: "X", Cards: []string{"a"}}, testutil.ColumnSpec{Title: "Y"})
	x, y := b.Columns[0].ID.String(), b.Columns[1].ID.String()

	resp, data := request(t, srv, http.MethodPost, "/api/v1/columns/"+x+"/cards",
		`{"title":"new","priority":"high","assignees":["bo"],"labels":[3]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var created models.Card
	require.NoError(t, json.Unmarshal(data, &created))
	assert.Equal(t, models.PriorityHigh, created.Priority)
	assert.Equal(t, 1, created.Position)

	resp, data = request(t, srv, http.MethodPatch, "/api/v1/cards/"+created.ID.String(), `{"title":"renamed"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = request(t, srv, http.MethodPost, "/api/v1/cards/"+created.ID.String()+"/move", `{"column_id":`+y+`,"position":0}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var moved models.Card
	require.NoError(t, json.Unmarshal(data, &moved))
	assert.Equal(t, b.Columns[1].ID, moved.ColumnID)
	assert.Equal(t, "renamed", moved.Title)

	resp, _ = request(t, srv, http.MethodDelete, "/api/v1/cards/"+created.ID.String(), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, testutil.ColumnTitles(t, store, b.Columns[1].ID))
}

func TestColumnRoutes(t *testing.T) {
	t.Parallel()
	srv, store, _ := setupServer(t)
	b := testutil.SeedBoard(t, store, testutil.ColumnSpec{Title: "A"}, testutil.ColumnSpec{Title: "B"})
	boardPath := "/api/v1/boards/" + b.Board.ID.String()

	resp, data := request(t, srv, http.MethodPost, boardPath+"/columns", `{"title":"C","wip_limit":2,"position":0}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var col models.Column
	require.NoError(t, json.Unmarshal(data, &col))
	assert.Equal(t, 0, col.Position)

	resp, _ = request(t, srv, http.MethodPatch, "/api/v1/columns/"+col.ID.String(), `{"wip_limit":0}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = request(t, srv, http.MethodPost, "/api/v1/columns/"+col.ID.String()+"/move", `{"position":2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = request(t, srv, http.MethodDelete, "/api/v1/columns/"+b.Columns[0].ID.String(), "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, data = request(t, srv, http.MethodGet, boardPath+"/columns", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cols []models.Column
	require.NoError(t, json.Unmarshal(data, &cols))
	require.Len(t, cols, 2)
	assert.Equal(t, "B", cols[0].Title)
	assert.Equal(t, "C", cols[1].Title)
	assert.True(t, cols[1].Unlimited())
}

func TestMetricsAndHealth(t *testing.T) {
	t.Parallel()
	srv, _, _ := setupServer(t)

	resp, _ := request(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := request(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "tablero_http")
}

func TestStreamRequiresUpgrade(t *testing.T) {
	t.Parallel()
	srv, _, _ := setupServer(t)

	resp, _ := request(t, srv, http.MethodGet, "/ws/boards/1", "")
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}
