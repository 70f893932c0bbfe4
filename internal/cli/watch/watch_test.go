package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thenoetrevino/tablero/internal/api"
	"github.com/thenoetrevino/tablero/internal/boardstate"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/services/board"
	"github.com/thenoetrevino/tablero/internal/services/card"
	"github.com/thenoetrevino/tablero/internal/services/column"
	"github.com/thenoetrevino/tablero/internal/testutil"
)

func startServer(t *testing.T) (string, *events.Hub, testutil.SeededBoard) {
	t.Helper()
	store := testutil.SetupTestStore(t)
	hub := events.NewHub(16)
	t.Cleanup(func() { _ = hub.Close() })

	srv := api.NewServer(api.Services{
		Boards:  board.NewService(store, nil),
		Columns: column.NewService(store, hub),
		Cards:   card.NewService(store, hub),
		Events:  hub,
	}, api.Config{PingInterval: 50 * time.Millisecond}, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	seeded := testutil.SeedBoard(t, store,
		testutil.ColumnSpec{Title: "Todo", Cards: []string{"a"}},
		testutil.ColumnSpec{Title: "Done"},
	)
	return "http://" + ln.Addr().String(), hub, seeded
}

// snapshots collects rendered snapshots
type snapshots struct {
	mu   sync.Mutex
	list []boardstate.Snapshot
}

func (s *snapshots) add(snap boardstate.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = append(s.list, snap)
}

func (s *snapshots) last() (boardstate.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.list) == 0 {
		return boardstate.Snapshot{}, false
	}
	return s.list[len(s.list)-1], true
}

func TestWatch_FollowsRemoteChanges(t *testing.T) {
	base, hub, seeded := startServer(t)

	watcher, err := api.NewClient(base, models.Actor{User: "bo", Session: "watch-1"})
	require.NoError(t, err)
	editor, err := api.NewClient(base, models.Actor{User: "ana", Session: "tab-1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var seen snapshots
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, watcher, seeded.Board.ID, seen.add) }()

	require.Eventually(t, func() bool { return hub.Subscribers(seeded.Board.ID) == 1 }, 2*time.Second, 5*time.Millisecond)
	first, ok := seen.last()
	require.True(t, ok, "initial board is rendered before any change")
	assert.Equal(t, []string{"a"}, first.CardTitles(seeded.Columns[0].ID))

	_, err = editor.MoveCard(ctx, seeded.CardID(0, 0), seeded.Columns[1].ID, 0)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, _ := seen.last()
		return slices.Equal([]string{"a"}, snap.CardTitles(seeded.Columns[1].ID))
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_UnknownBoard(t *testing.T) {
	base, _, _ := startServer(t)
	client, err := api.NewClient(base, models.Actor{User: "bo", Session: "watch-1"})
	require.NoError(t, err)

	err = Watch(context.Background(), client, 999, func(boardstate.Snapshot) {})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPrinter(t *testing.T) {
	snap := boardstate.FromDetail(&models.BoardDetail{
		Board: models.Board{ID: 3, Title: "Ops"},
		Columns: []models.ColumnDetail{{
			Column: models.Column{ID: 1, BoardID: 3, Title: "Todo", WipLimit: 2},
			Cards:  []models.Card{{ID: 9, ColumnID: 1, Title: "rotate keys", Priority: models.PriorityHigh}},
		}},
	})

	var human bytes.Buffer
	Printer(&human, false)(snap)
	assert.Contains(t, human.String(), "Ops")
	assert.Contains(t, human.String(), "rotate keys")
	assert.Contains(t, human.String(), "(1/2)")

	var machine bytes.Buffer
	Printer(&machine, true)(snap)
	var detail models.BoardDetail
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(machine.String())), &detail))
	assert.Equal(t, "rotate keys", detail.Columns[0].Cards[0].Title)
}
