package database

import (
	"context"
	"fmt"

	"github.com/thenoetrevino/tablero/internal/types"
)

// RenumberCards makes ids the exact content of columnID, with positions
// equal to slice indexes. Cards listed here that live in another column are
// moved into columnID as part of the rewrite.
//
// Positions are written in two phases so the UNIQUE(column_id, position)
// index never sees a duplicate: every card is first parked at a distinct
// negative slot -(i+1), then all parked rows flip to i in one statement.
func (t *Tx) RenumberCards(ctx context.Context, columnID types.ColumnID, ids []types.CardID) error {
	for i, id := range ids {
		if _, err := t.q.ExecContext(ctx,
			`UPDATE cards SET column_id = ?, position = ? WHERE id = ?`,
			int64(columnID), -(i + 1), int64(id)); err != nil {
			return fmt.Errorf("staging card %d: %w", id, err)
		}
	}

	if _, err := t.q.ExecContext(ctx,
		`UPDATE cards SET position = -position - 1 WHERE column_id = ? AND position < 0`,
		int64(columnID)); err != nil {
		return fmt.Errorf("renumbering column %d: %w", columnID, err)
	}
	return nil
}

// RenumberColumns rewrites a board's column positions to match ids
func (t *Tx) RenumberColumns(ctx context.Context, boardID types.BoardID, ids []types.ColumnID) error {
	for i, id := range ids {
		if _, err := t.q.ExecContext(ctx,
			`UPDATE columns SET position = ? WHERE id = ? AND board_id = ?`,
			-(i + 1), int64(id), int64(boardID)); err != nil {
			return fmt.Errorf("staging column %d: %w", id, err)
		}
	}

	if _, err := t.q.ExecContext(ctx,
		`UPDATE columns SET position = -position - 1 WHERE board_id = ? AND position < 0`,
		int64(boardID)); err != nil {
		return fmt.Errorf("renumbering board %d: %w", boardID, err)
	}
	return nil
}
