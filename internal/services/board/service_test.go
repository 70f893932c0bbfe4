package board

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/testutil"
)

func TestCreateBoard_DefaultColumns(t *testing.T) {
	t.Parallel()
	store := testutil.SetupTestStore(t)
	at := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
	svc := NewService(store, clockwork.NewFakeClockAt(at))

	detail, err := svc.CreateBoard(context.Background(), CreateBoardRequest{ProjectID: 1, Title: "Roadmap"})
	require.NoError(t, err)

	assert.Equal(t, "Roadmap", detail.Board.Title)
	assert.True(t, at.Equal(detail.Board.CreatedAt))
	require.Len(t, detail.Columns, 3)
	for i, want := range DefaultColumns {
		assert.Equal(t, want, detail.Columns[i].Title)
		assert.Equal(t, i, detail.Columns[i].Position)
		assert.Empty(t, detail.Columns[i].Cards)
		assert.True(t, detail.Columns[i].Unlimited())
	}
}

func TestCreateBoard_CustomColumns(t *testing.T) {
	t.Parallel()
	svc := NewService(testutil.SetupTestStore(t), nil)
	ctx := context.Background()

	detail, err := svc.CreateBoard(ctx, CreateBoardRequest{ProjectID: 1, Title: "Bare", Columns: []string{}})
	require.NoError(t, err)
	assert.Empty(t, detail.Columns)

	detail, err = svc.CreateBoard(ctx, CreateBoardRequest{ProjectID: 1, Title: "Two", Columns: []string{"Open", "Closed"}})
	require.NoError(t, err)
	require.Len(t, detail.Columns, 2)
	assert.Equal(t, "Closed", detail.Columns[1].Title)
}

func TestCreateBoard_Validation(t *testing.T) {
	t.Parallel()
	svc := NewService(testutil.SetupTestStore(t), nil)
	ctx := context.Background()

	_, err := svc.CreateBoard(ctx, CreateBoardRequest{Title: "x"})
	assert.ErrorIs(t, err, ErrInvalidProjectID)

	_, err = svc.CreateBoard(ctx, CreateBoardRequest{ProjectID: 1})
	assert.ErrorIs(t, err, ErrEmptyTitle)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestGetBoard(t *testing.T) {
	t.Parallel()
	store := testutil.SetupTestStore(t)
	svc := NewService(store, nil)
	b := testutil.SeedBoard(t, store,
		testutil.ColumnSpec{Title: "Todo", Cards: []string{"a", "b"}},
		testutil.ColumnSpec{Title: "Done", Cards: []string{"c"}},
	)
	ctx := context.Background()

	detail, err := svc.GetBoard(ctx, b.Board.ID)
	require.NoError(t, err)
	require.Len(t, detail.Columns, 2)
	require.Len(t, detail.Columns[0].Cards, 2)
	assert.Equal(t, "b", detail.Columns[0].Cards[1].Title)
	assert.Equal(t, "c", detail.Columns[1].Cards[0].Title)

	_, err = svc.GetBoard(ctx, 404)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.GetBoard(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidBoardID)
}

func TestListBoards(t *testing.T) {
	t.Parallel()
	svc := NewService(testutil.SetupTestStore(t), nil)
	ctx := context.Background()

	boards, err := svc.ListBoards(ctx, 0)
	require.NoError(t, err)
	assert.NotNil(t, boards)
	assert.Empty(t, boards)

	_, err = svc.CreateBoard(ctx, CreateBoardRequest{ProjectID: 1, Title: "one"})
	require.NoError(t, err)
	_, err = svc.CreateBoard(ctx, CreateBoardRequest{ProjectID: 2, Title: "two"})
	require.NoError(t, err)

	boards, err = svc.ListBoards(ctx, 2)
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Equal(t, "two", boards[0].Title)

	boards, err = svc.ListBoards(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, boards, 2)
}
