package api

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thenoetrevino/tablero/internal/boardstate"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/testutil"
	"github.com/thenoetrevino/tablero/internal/types"
)

func newTestClient(t *testing.T, baseURL, user, session string) *Client {
	t.Helper()
	c, err := NewClient(baseURL, models.Actor{User: types.UserID(user), Session: session})
	require.NoError(t, err)
	return c
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	t.Parallel()
	_, err := NewClient("ftp://example.com", models.Actor{User: "ana"})
	assert.Error(t, err)
	_, err = NewClient("://nope", models.Actor{User: "ana"})
	assert.Error(t, err)
}

func TestClient_Operations(t *testing.T) {
	t.Parallel()
	srv, _, _ := setupServer(t)
	base := startServer(t, srv)
	c := newTestClient(t, base, "ana", "tab-a")
	ctx := context.Background()

	detail, err := c.CreateBoard(ctx, 1, "Roadmap", []string{"X", "Y"})
	require.NoError(t, err)
	x, y := detail.Columns[0].ID, detail.Columns[1].ID

	limit := 1
	_, err = c.UpdateColumn(ctx, y, nil, &limit)
	require.NoError(t, err)

	first, err := c.CreateCard(ctx, models.Card{ColumnID: x, Title: "a", Priority: models.PriorityLow}, "")
	require.NoError(t, err)
	second, err := c.CreateCard(ctx, models.Card{ColumnID: x, Title: "b"}, "")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPriority, second.Priority)

	_, err = c.MoveCard(ctx, first.ID, y, 0)
	require.NoError(t, err)

	_, err = c.MoveCard(ctx, second.ID, y, 0)
	require.ErrorIs(t, err, models.ErrWipLimitExceeded)
	var wip *models.WipLimitError
	require.ErrorAs(t, err, &wip)
	assert.Equal(t, y, wip.ColumnID)

	err = c.DeleteColumn(ctx, x)
	assert.ErrorIs(t, err, models.ErrColumnNotEmpty)

	second.Title = "b2"
	updated, err := c.UpdateCard(ctx, *second)
	require.NoError(t, err)
	assert.Equal(t, "b2", updated.Title)

	require.NoError(t, c.DeleteCard(ctx, second.ID))
	_, err = c.GetCard(ctx, second.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	loaded, err := c.LoadBoard(ctx, detail.Board.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Columns[0].Cards)
	require.Len(t, loaded.Columns[1].Cards, 1)
	assert.Equal(t, "a", loaded.Columns[1].Cards[0].Title)

	boards, err := c.ListBoards(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, boards, 1)
}

func TestClient_Subscribe(t *testing.T) {
	t.Parallel()
	srv, store, hub := setupServer(t)
	base := startServer(t, srv)
	b := testutil.SeedBoard(t, store, testutil.ColumnSpec{Title: "X", Cards: []string{"a"}}, testutil.ColumnSpec{Title: "Y"})
	ctx := context.Background()

	received := make(chan events.Event, 8)
	sub, err := newTestClient(t, base, "bo", "tab-b").Subscribe(ctx, b.Board.ID, func(e events.Event) { received <- e })
	require.NoError(t, err)
	defer sub.Close()
	require.Eventually(t, func() bool { return hub.Subscribers(b.Board.ID) == 1 }, 2*time.Second, 5*time.Millisecond)

	_, err = newTestClient(t, base, "ana", "tab-a").MoveCard(ctx, b.CardID(0, 0), b.Columns[1].ID, 0)
	require.NoError(t, err)

	select {
	case e := <-received:
		mv, ok := e.(*events.CardMoved)
		require.True(t, ok, "got %T", e)
		assert.Equal(t, b.Columns[1].ID, mv.DestinationColumnID)
		assert.Equal(t, models.Actor{User: "ana", Session: "tab-a"}, mv.Actor)
		assert.NotZero(t, mv.Sequence)
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for streamed event")
	}

	require.NoError(t, sub.Close())
	require.Eventually(t, func() bool { return hub.Subscribers(b.Board.ID) == 0 }, 2*time.Second, 5*time.Millisecond,
		"closing the subscription leaves the board")
}

func TestClient_SubscribeMissingBoard(t *testing.T) {
	t.Parallel()
	srv, _, _ := setupServer(t)
	base := startServer(t, srv)

	_, err := newTestClient(t, base, "bo", "tab-b").Subscribe(context.Background(), 999, func(events.Event) {})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

// Two clients reconciling the same board over the wire converge on the
// store's state.
func TestReconcilersConvergeOverWebsocket(t *testing.T) {
	t.Parallel()
	srv, store, hub := setupServer(t)
	base := startServer(t, srv)
	b := testutil.SeedBoard(t, store,
		testutil.ColumnSpec{Title: "X", Cards: []string{"a", "b", "c"}},
		testutil.ColumnSpec{Title: "Y", Cards: []string{"p"}},
	)
	ctx := context.Background()

	start := func(user, session string) *boardstate.Reconciler {
		c := newTestClient(t, base, user, session)
		detail, err := c.LoadBoard(ctx, b.Board.ID)
		require.NoError(t, err)
		r := boardstate.NewReconciler(detail, c, c, boardstate.NewDeduplicator(session))
		sub, err := r.Attach(ctx, c)
		require.NoError(t, err)
		t.Cleanup(func() { _ = sub.Close() })
		return r
	}
	a := start("ana", "tab-a")
	bb := start("bo", "tab-b")
	require.Eventually(t, func() bool { return hub.Subscribers(b.Board.ID) == 2 }, 2*time.Second, 5*time.Millisecond)

	x, y := b.Columns[0].ID, b.Columns[1].ID
	m, err := a.Move(ctx, b.CardID(0, 2), y, 0)
	require.NoError(t, err)
	assert.Equal(t, boardstate.Committed, m.State)

	require.Eventually(t, func() bool {
		return cmp.Equal([]string{"c", "p"}, bb.Snapshot().CardTitles(y))
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, bb.Snapshot().CardTitles(x))

	// a's create travels back to b; a adopts the server ID
	cm, err := a.Create(ctx, models.Card{ColumnID: x, Title: "d"})
	require.NoError(t, err)
	assert.False(t, cm.CardID.IsPlaceholder())
	require.Eventually(t, func() bool {
		_, ok := bb.Snapshot().Card(cm.CardID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	// a rejected move leaves a exactly as it was
	limit := 2
	_, err = newTestClient(t, base, "cy", "tab-c").UpdateColumn(ctx, y, nil, &limit)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		col, ok := a.Snapshot().Column(y)
		return ok && col.WipLimit == 2
	}, 2*time.Second, 10*time.Millisecond)
	before := a.Snapshot()
	_, err = a.Move(ctx, b.CardID(0, 0), y, 0)
	require.ErrorIs(t, err, models.ErrWipLimitExceeded)
	assert.Empty(t, cmp.Diff(before, a.Snapshot()))

	assert.Equal(t, testutil.ColumnTitles(t, store, x), a.Snapshot().CardTitles(x))
	assert.Equal(t, testutil.ColumnTitles(t, store, y), a.Snapshot().CardTitles(y))
}
