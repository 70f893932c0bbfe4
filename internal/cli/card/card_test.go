package card

import (
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thenoetrevino/tablero/internal/api"
	"github.com/thenoetrevino/tablero/internal/cli"
	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/models"
	boardservice "github.com/thenoetrevino/tablero/internal/services/board"
	cardservice "github.com/thenoetrevino/tablero/internal/services/card"
	columnservice "github.com/thenoetrevino/tablero/internal/services/column"
	"github.com/thenoetrevino/tablero/internal/testutil"
	clitest "github.com/thenoetrevino/tablero/internal/testutil/cli"
)

// startServer serves store over HTTP and returns its base URL
func startServer(t *testing.T, store *database.Store) string {
	t.Helper()
	hub := events.NewHub(16)
	t.Cleanup(func() { _ = hub.Close() })

	srv := api.NewServer(api.Services{
		Boards:  boardservice.NewService(store, nil),
		Columns: columnservice.NewService(store, hub),
		Cards:   cardservice.NewService(store, hub),
		Events:  hub,
	}, api.DefaultConfig(), nil)

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

func TestCreateCard(t *testing.T) {
	t.Run("quiet mode prints the new ID", func(t *testing.T) {
		store, testApp, rec := clitest.SetupCLITest(t)
		seeded := testutil.SeedBoard(t, store, testutil.ColumnSpec{Title: "Todo", Cards: []string{"a"}})

		out, err := clitest.ExecuteCLICommand(t, testApp, CreateCmd(), []string{
			"--title=b",
			"--column=" + strconv.Itoa(int(seeded.Columns[0].ID)),
			"--quiet",
		})
		require.NoError(t, err)

		id, err := strconv.Atoi(strings.TrimSpace(out))
		require.NoError(t, err)
		assert.Greater(t, id, 0)
		assert.Equal(t, []string{"a", "b"}, testutil.ColumnTitles(t, store, seeded.Columns[0].ID))

		created, ok := rec.Last().(*events.CardCreated)
		require.True(t, ok)
		assert.Equal(t, "b", created.Card.Title)
	})

	t.Run("json mode carries every field", func(t *testing.T) {
		store, testApp, _ := clitest.SetupCLITest(t)
		seeded := testutil.SeedBoard(t, store, testutil.ColumnSpec{Title: "Todo"})

		out, err := clitest.ExecuteCLICommand(t, testApp, CreateCmd(), []string{
			"--title=Fix login",
			"--column=" + strconv.Itoa(int(seeded.Columns[0].ID)),
			"--priority=urgent",
			"--due=2026-12-01",
			"--assignee=ana",
			"--label=4",
			"--json",
		})
		require.NoError(t, err)

		result := testutil.ParseJSON(t, out)
		assert.Equal(t, true, result["success"])
		data := result["data"].(map[string]any)
		assert.Equal(t, "Fix login", data["title"])
		assert.Equal(t, "urgent", data["priority"])
		assert.Equal(t, []any{"ana"}, data["assignees"])
	})

	t.Run("full column exits with conflict", func(t *testing.T) {
		store, testApp, rec := clitest.SetupCLITest(t)
		seeded := testutil.SeedBoard(t, store, testutil.ColumnSpec{Title: "Doing", WipLimit: 1, Cards: []string{"a"}})

		out, err := clitest.ExecuteCLICommand(t, testApp, CreateCmd(), []string{
			"--title=b",
			"--column=" + strconv.Itoa(int(seeded.Columns[0].ID)),
			"--json",
		})
		require.Error(t, err)
		assert.Equal(t, cli.ExitConflict, cli.ExitCodeFor(err))
		assert.ErrorIs(t, err, models.ErrWipLimitExceeded)
		assert.Contains(t, out, "WIP_LIMIT_EXCEEDED")
		assert.Equal(t, 0, rec.Len())
	})

	t.Run("invalid priority is a validation error", func(t *testing.T) {
		store, testApp, _ := clitest.SetupCLITest(t)
		seeded := testutil.SeedBoard(t, store, testutil.ColumnSpec{Title: "Todo"})

		_, err := clitest.ExecuteCLICommand(t, testApp, CreateCmd(), []string{
			"--title=b",
			"--column=" + strconv.Itoa(int(seeded.Columns[0].ID)),
			"--priority=critical",
			"--quiet",
		})
		require.Error(t, err)
		assert.Equal(t, cli.ExitValidation, cli.ExitCodeFor(err))
	})
}

func TestShowCard(t *testing.T) {
	store, testApp, _ := clitest.SetupCLITest(t)
	seeded := testutil.SeedBoard(t, store, testutil.ColumnSpec{Title: "Todo", Cards: []string{"Write docs"}})

	out, err := clitest.ExecuteCLICommand(t, testApp, ShowCmd(), []string{
		"--id=" + strconv.Itoa(int(seeded.CardID(0, 0))),
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Write docs")

	_, err = clitest.ExecuteCLICommand(t, testApp, ShowCmd(), []string{"--id=999", "--quiet"})
	require.Error(t, err)
	assert.Equal(t, cli.ExitNotFound, cli.ExitCodeFor(err))
}

func TestUpdateCard(t *testing.T) {
	t.Run("updates fields", func(t *testing.T) {
		store, testApp, _ := clitest.SetupCLITest(t)
		seeded := testutil.SeedBoard(t, store, testutil.ColumnSpec{Title: "Todo", Cards: []string{"old"}})
		id := seeded.CardID(0, 0)

		_, err := clitest.ExecuteCLICommand(t, testApp, UpdateCmd(), []string{
			"--id=" + strconv.Itoa(int(id)),
			"--title=new",
			"--priority=high",
			"--quiet",
		})
		require.NoError(t, err)

		card, err := testApp.CardService.GetCard(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "new", card.Title)
		assert.Equal(t, models.PriorityHigh, card.Priority)
	})

	t.Run("due and clear-due conflict", func(t *testing.T) {
		_, testApp, _ := clitest.SetupCLITest(t)

		_, err := clitest.ExecuteCLICommand(t, testApp, UpdateCmd(), []string{
			"--id=1", "--due=2026-01-01", "--clear-due", "--quiet",
		})
		require.Error(t, err)
		assert.Equal(t, cli.ExitUsage, cli.ExitCodeFor(err))
	})
}

func TestDeleteCard(t *testing.T) {
	t.Run("declined prompt keeps the card", func(t *testing.T) {
		store, testApp, rec := clitest.SetupCLITest(t)
		seeded := testutil.SeedBoard(t, store, testutil.ColumnSpec{Title: "Todo", Cards: []string{"keep me"}})

		out, err := clitest.ExecuteCLICommand(t, testApp, DeleteCmd(), []string{
			"--id=" + strconv.Itoa(int(seeded.CardID(0, 0))),
		}, "n")
		require.NoError(t, err)
		assert.Contains(t, out, "Delete card")
		assert.Contains(t, out, "Cancelled")
		assert.Equal(t, []string{"keep me"}, testutil.ColumnTitles(t, store, seeded.Columns[0].ID))
		assert.Equal(t, 0, rec.Len())
	})

	t.Run("confirmed prompt deletes and renumbers", func(t *testing.T) {
		store, testApp, rec := clitest.SetupCLITest(t)
		seeded := testutil.SeedBoard(t, store, testutil.ColumnSpec{Title: "Todo", Cards: []string{"a", "b", "c"}})

		_, err := clitest.ExecuteCLICommand(t, testApp, DeleteCmd(), []string{
			"--id=" + strconv.Itoa(int(seeded.CardID(0, 1))),
		}, "y")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, testutil.ColumnTitles(t, store, seeded.Columns[0].ID))

		_, ok := rec.Last().(*events.CardDeleted)
		assert.True(t, ok)
	})

	t.Run("quiet skips the prompt", func(t *testing.T) {
		store, testApp, _ := clitest.SetupCLITest(t)
		seeded := testutil.SeedBoard(t, store, testutil.ColumnSpec{Title: "Todo", Cards: []string{"a"}})
		id := seeded.CardID(0, 0)

		out, err := clitest.ExecuteCLICommand(t, testApp, DeleteCmd(), []string{
			"--id=" + strconv.Itoa(int(id)), "--quiet",
		})
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(int(id))+"\n", out)
	})
}

func TestMoveCard(t *testing.T) {
	t.Run("moves across columns", func(t *testing.T) {
		store, testApp, rec := clitest.SetupCLITest(t)
		seeded := testutil.SeedBoard(t, store,
			testutil.ColumnSpec{Title: "Todo", Cards: []string{"a", "b"}},
			testutil.ColumnSpec{Title: "Done", Cards: []string{"x", "y"}},
		)

		_, err := clitest.ExecuteCLICommand(t, testApp, MoveCmd(), []string{
			"--id=" + strconv.Itoa(int(seeded.CardID(0, 0))),
			"--column=" + strconv.Itoa(int(seeded.Columns[1].ID)),
			"--position=1",
			"--quiet",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, testutil.ColumnTitles(t, store, seeded.Columns[0].ID))
		assert.Equal(t, []string{"x", "a", "y"}, testutil.ColumnTitles(t, store, seeded.Columns[1].ID))

		moved, ok := rec.Last().(*events.CardMoved)
		require.True(t, ok)
		assert.Equal(t, 1, moved.DestinationIndex)
	})

	t.Run("full destination exits with conflict and moves nothing", func(t *testing.T) {
		store, testApp, _ := clitest.SetupCLITest(t)
		seeded := testutil.SeedBoard(t, store,
			testutil.ColumnSpec{Title: "Todo", Cards: []string{"a"}},
			testutil.ColumnSpec{Title: "Doing", WipLimit: 1, Cards: []string{"x"}},
		)

		out, err := clitest.ExecuteCLICommand(t, testApp, MoveCmd(), []string{
			"--id=" + strconv.Itoa(int(seeded.CardID(0, 0))),
			"--column=" + strconv.Itoa(int(seeded.Columns[1].ID)),
		})
		require.Error(t, err)
		assert.Equal(t, cli.ExitConflict, cli.ExitCodeFor(err))
		assert.Contains(t, out, "--wip-limit=2")
		assert.Equal(t, []string{"a"}, testutil.ColumnTitles(t, store, seeded.Columns[0].ID))
		assert.Equal(t, []string{"x"}, testutil.ColumnTitles(t, store, seeded.Columns[1].ID))
	})
}

func TestMoveCard_ThroughServer(t *testing.T) {
	t.Run("commits the optimistic move", func(t *testing.T) {
		store, testApp, _ := clitest.SetupCLITest(t)
		seeded := testutil.SeedBoard(t, store,
			testutil.ColumnSpec{Title: "Todo", Cards: []string{"a", "b"}},
			testutil.ColumnSpec{Title: "Done", Cards: []string{"x"}},
		)
		base := startServer(t, store)

		out, err := clitest.ExecuteCLICommand(t, testApp, MoveCmd(), []string{
			"--id=" + strconv.Itoa(int(seeded.CardID(0, 1))),
			"--column=" + strconv.Itoa(int(seeded.Columns[1].ID)),
			"--position=0",
			"--server=" + base,
			"--json",
		})
		require.NoError(t, err)

		data := testutil.ParseJSON(t, out)["data"].(map[string]any)
		assert.Equal(t, "b", data["title"])
		assert.Equal(t, float64(seeded.Columns[1].ID), data["column_id"])
		assert.Equal(t, float64(0), data["position"])
		assert.Equal(t, []string{"a"}, testutil.ColumnTitles(t, store, seeded.Columns[0].ID))
		assert.Equal(t, []string{"b", "x"}, testutil.ColumnTitles(t, store, seeded.Columns[1].ID))
	})

	t.Run("refusal keeps the exit code", func(t *testing.T) {
		store, testApp, _ := clitest.SetupCLITest(t)
		seeded := testutil.SeedBoard(t, store,
			testutil.ColumnSpec{Title: "Todo", Cards: []string{"a"}},
			testutil.ColumnSpec{Title: "Doing", WipLimit: 1, Cards: []string{"x"}},
		)
		base := startServer(t, store)

		_, err := clitest.ExecuteCLICommand(t, testApp, MoveCmd(), []string{
			"--id=" + strconv.Itoa(int(seeded.CardID(0, 0))),
			"--column=" + strconv.Itoa(int(seeded.Columns[1].ID)),
			"--server=" + base,
			"--quiet",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrWipLimitExceeded)
		assert.Equal(t, cli.ExitConflict, cli.ExitCodeFor(err))
		assert.Equal(t, []string{"a"}, testutil.ColumnTitles(t, store, seeded.Columns[0].ID))
	})

	t.Run("unknown destination is judged by the server", func(t *testing.T) {
		store, testApp, _ := clitest.SetupCLITest(t)
		seeded := testutil.SeedBoard(t, store, testutil.ColumnSpec{Title: "Todo", Cards: []string{"a"}})
		base := startServer(t, store)

		_, err := clitest.ExecuteCLICommand(t, testApp, MoveCmd(), []string{
			"--id=" + strconv.Itoa(int(seeded.CardID(0, 0))),
			"--column=999",
			"--server=" + base,
			"--quiet",
		})
		require.Error(t, err)
		assert.Equal(t, cli.ExitNotFound, cli.ExitCodeFor(err))
	})
}
