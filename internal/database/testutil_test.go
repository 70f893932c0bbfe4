package database

import (
	"context"
	"testing"
	"time"

	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/types"
)

// ============================================================================
// DATABASE SETUP HELPERS
// ============================================================================

// setupTestStore opens a migrated in-memory store
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), Config{Driver: DialectSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

var testNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// createTestBoard creates a board with the given column titles
func createTestBoard(t *testing.T, store *Store, titles ...string) (*models.Board, []models.Column) {
	t.Helper()
	ctx := context.Background()

	var board *models.Board
	var columns []models.Column
	err := store.WithTx(ctx, func(tx *Tx) error {
		var err error
		board, err = tx.InsertBoard(ctx, 1, "Test Board", testNow)
		if err != nil {
			return err
		}
		for _, title := range titles {
			col, err := tx.InsertColumn(ctx, board.ID, title, 0)
			if err != nil {
				return err
			}
			columns = append(columns, *col)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to create test board: %v", err)
	}
	return board, columns
}

// createTestCards appends cards with the given titles to a column
func createTestCards(t *testing.T, store *Store, columnID types.ColumnID, titles ...string) []models.Card {
	t.Helper()
	ctx := context.Background()

	var cards []models.Card
	err := store.WithTx(ctx, func(tx *Tx) error {
		for _, title := range titles {
			card, err := tx.InsertCard(ctx, columnID, CardFields{Title: title, Priority: models.PriorityMedium}, testNow)
			if err != nil {
				return err
			}
			cards = append(cards, *card)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to create test cards: %v", err)
	}
	return cards
}

// cardTitles returns a column's card titles in position order and fails
// the test if positions are not dense
func cardTitles(t *testing.T, store *Store, columnID types.ColumnID) []string {
	t.Helper()
	cards, err := store.ListCards(context.Background(), columnID)
	if err != nil {
		t.Fatalf("Failed to list cards: %v", err)
	}
	titles := make([]string, len(cards))
	for i, c := range cards {
		if c.Position != i {
			t.Fatalf("column %d not dense: card %q at position %d, index %d", columnID, c.Title, c.Position, i)
		}
		titles[i] = c.Title
	}
	return titles
}
