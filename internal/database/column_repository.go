package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/types"
)

const columnFields = `id, board_id, title, wip_limit, position`

func scanColumn(row interface{ Scan(...any) error }) (models.Column, error) {
	var col models.Column
	err := row.Scan(&col.ID, &col.BoardID, &col.Title, &col.WipLimit, &col.Position)
	return col, err
}

// GetColumn loads a column by ID
func (q queries) GetColumn(ctx context.Context, id types.ColumnID) (*models.Column, error) {
	col, err := scanColumn(q.q.QueryRowContext(ctx,
		`SELECT `+columnFields+` FROM columns WHERE id = ?`, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("column %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading column %d: %w", id, err)
	}
	return &col, nil
}

// LockColumn loads a column and, on engines with row locks, holds its row
// lock until the transaction ends. Every writer touching a column's cards
// takes this lock first, which serializes concurrent moves.
func (t *Tx) LockColumn(ctx context.Context, id types.ColumnID) (*models.Column, error) {
	col, err := scanColumn(t.q.QueryRowContext(ctx,
		t.forUpdate(`SELECT `+columnFields+` FROM columns WHERE id = ?`), int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("column %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("locking column %d: %w", id, err)
	}
	return &col, nil
}

// ListColumns returns a board's columns ordered by position
func (q queries) ListColumns(ctx context.Context, boardID types.BoardID) ([]models.Column, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT `+columnFields+` FROM columns WHERE board_id = ? ORDER BY position`, int64(boardID))
	if err != nil {
		return nil, fmt.Errorf("querying columns for board: %w", err)
	}
	defer rows.Close()

	columns := []models.Column{}
	for rows.Next() {
		col, err := scanColumn(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// CountColumns returns how many columns a board has
func (q queries) CountColumns(ctx context.Context, boardID types.BoardID) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM columns WHERE board_id = ?`, int64(boardID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting columns: %w", err)
	}
	return n, nil
}

// InsertColumn appends a column at the end of its board
func (t *Tx) InsertColumn(ctx context.Context, boardID types.BoardID, title string, wipLimit int) (*models.Column, error) {
	count, err := t.CountColumns(ctx, boardID)
	if err != nil {
		return nil, err
	}

	result, err := t.q.ExecContext(ctx,
		`INSERT INTO columns (board_id, title, wip_limit, position) VALUES (?, ?, ?, ?)`,
		int64(boardID), title, wipLimit, count)
	if err != nil {
		return nil, fmt.Errorf("inserting column: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &models.Column{
		ID:       types.ColumnID(id),
		BoardID:  boardID,
		Title:    title,
		WipLimit: wipLimit,
		Position: count,
	}, nil
}

// UpdateColumn persists a column's title and WIP limit. Callers lock the
// column first; MySQL reports zero affected rows for unchanged values so
// existence is not re-checked here.
func (t *Tx) UpdateColumn(ctx context.Context, id types.ColumnID, title string, wipLimit int) error {
	_, err := t.q.ExecContext(ctx,
		`UPDATE columns SET title = ?, wip_limit = ? WHERE id = ?`, title, wipLimit, int64(id))
	if err != nil {
		return fmt.Errorf("updating column %d: %w", id, err)
	}
	return nil
}

// DeleteColumn removes a column row. Callers renumber the board afterwards.
func (t *Tx) DeleteColumn(ctx context.Context, id types.ColumnID) error {
	result, err := t.q.ExecContext(ctx, `DELETE FROM columns WHERE id = ?`, int64(id))
	if err != nil {
		return fmt.Errorf("deleting column %d: %w", id, err)
	}
	return requireAffected(result, "column", int(id))
}

func requireAffected(result sql.Result, entity string, id int) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, models.ErrNotFound)
	}
	return nil
}
