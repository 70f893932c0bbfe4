package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/types"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const TestAppKey ContextKey = "testApp"

// SetupTestStore creates a migrated in-memory store, closed on cleanup
func SetupTestStore(t *testing.T) *database.Store {
	t.Helper()
	store, err := database.Open(context.Background(), database.Config{
		Driver: database.DialectSQLite,
		DSN:    ":memory:",
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// ColumnSpec describes a column to seed
type ColumnSpec struct {
	Title    string
	WipLimit int
	Cards    []string
}

// SeededBoard is the result of SeedBoard
type SeededBoard struct {
	Board   models.Board
	Columns []models.Column
	// Cards holds the seeded cards per column, in position order
	Cards [][]models.Card
}

// CardID returns the ID of the seeded card at column ci, position pi
func (s SeededBoard) CardID(ci, pi int) types.CardID {
	return s.Cards[ci][pi].ID
}

// SeedBoard creates a board with columns and cards directly through the
// store, bypassing services (no events, no WIP checks)
func SeedBoard(t *testing.T, store *database.Store, specs ...ColumnSpec) SeededBoard {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	var seeded SeededBoard
	err := store.WithTx(ctx, func(tx *database.Tx) error {
		board, err := tx.InsertBoard(ctx, 1, "Test Board", now)
		if err != nil {
			return err
		}
		seeded.Board = *board

		for _, spec := range specs {
			col, err := tx.InsertColumn(ctx, board.ID, spec.Title, spec.WipLimit)
			if err != nil {
				return err
			}
			seeded.Columns = append(seeded.Columns, *col)

			cards := []models.Card{}
			for _, title := range spec.Cards {
				card, err := tx.InsertCard(ctx, col.ID, database.CardFields{
					Title:    title,
					Priority: models.DefaultPriority,
				}, now)
				if err != nil {
					return err
				}
				cards = append(cards, *card)
			}
			seeded.Cards = append(seeded.Cards, cards)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to seed board: %v", err)
	}
	return seeded
}

// ColumnTitles returns a column's card titles in position order. It fails
// the test if the column's positions are not exactly 0..n-1.
func ColumnTitles(t *testing.T, store *database.Store, columnID types.ColumnID) []string {
	t.Helper()
	cards, err := store.ListCards(context.Background(), columnID)
	if err != nil {
		t.Fatalf("Failed to list cards: %v", err)
	}
	titles := make([]string, len(cards))
	for i, c := range cards {
		if c.Position != i {
			t.Fatalf("column %d is not dense: %q at position %d (index %d)", columnID, c.Title, c.Position, i)
		}
		titles[i] = c.Title
	}
	return titles
}
