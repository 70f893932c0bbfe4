package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/types"
)

// InsertBoard creates a board row
func (t *Tx) InsertBoard(ctx context.Context, projectID types.ProjectID, title string, now time.Time) (*models.Board, error) {
	result, err := t.q.ExecContext(ctx,
		`INSERT INTO boards (project_id, title, created_at) VALUES (?, ?, ?)`,
		int64(projectID), title, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("inserting board: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &models.Board{
		ID:        types.BoardID(id),
		ProjectID: projectID,
		Title:     title,
		CreatedAt: now.UTC(),
	}, nil
}

// GetBoard loads a board by ID. Missing boards yield models.ErrNotFound.
func (q queries) GetBoard(ctx context.Context, id types.BoardID) (*models.Board, error) {
	board := &models.Board{}
	err := q.q.QueryRowContext(ctx,
		`SELECT id, project_id, title, created_at FROM boards WHERE id = ?`, int64(id),
	).Scan(&board.ID, &board.ProjectID, &board.Title, &board.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("board %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading board %d: %w", id, err)
	}
	board.CreatedAt = board.CreatedAt.UTC()
	return board, nil
}

// LockBoard loads a board and, on engines with row locks, holds its row
// lock until the transaction ends. Column reorders take this lock.
func (t *Tx) LockBoard(ctx context.Context, id types.BoardID) (*models.Board, error) {
	board := &models.Board{}
	err := t.q.QueryRowContext(ctx,
		t.forUpdate(`SELECT id, project_id, title, created_at FROM boards WHERE id = ?`), int64(id),
	).Scan(&board.ID, &board.ProjectID, &board.Title, &board.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("board %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("locking board %d: %w", id, err)
	}
	board.CreatedAt = board.CreatedAt.UTC()
	return board, nil
}

// ListBoards returns every board, optionally restricted to one project
// (projectID 0 means all).
func (q queries) ListBoards(ctx context.Context, projectID types.ProjectID) ([]models.Board, error) {
	query := `SELECT id, project_id, title, created_at FROM boards`
	var args []any
	if projectID > 0 {
		query += ` WHERE project_id = ?`
		args = append(args, int64(projectID))
	}
	query += ` ORDER BY id`

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying boards: %w", err)
	}
	defer rows.Close()

	var boards []models.Board
	for rows.Next() {
		var b models.Board
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.Title, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning board row: %w", err)
		}
		b.CreatedAt = b.CreatedAt.UTC()
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

// GetBoardDetail loads a board with its ordered columns and cards
func (q queries) GetBoardDetail(ctx context.Context, id types.BoardID) (*models.BoardDetail, error) {
	board, err := q.GetBoard(ctx, id)
	if err != nil {
		return nil, err
	}

	columns, err := q.ListColumns(ctx, id)
	if err != nil {
		return nil, err
	}

	cards, err := q.listCards(ctx,
		`SELECT c.id, c.column_id, c.title, c.description, c.priority, c.due_date, c.milestone_id,
			c.position, c.created_at, c.updated_at
		FROM cards c JOIN columns col ON col.id = c.column_id
		WHERE col.board_id = ?
		ORDER BY col.position, c.position`, int64(id))
	if err != nil {
		return nil, err
	}

	byColumn := make(map[types.ColumnID][]models.Card, len(columns))
	for _, card := range cards {
		byColumn[card.ColumnID] = append(byColumn[card.ColumnID], card)
	}

	detail := &models.BoardDetail{Board: *board, Columns: make([]models.ColumnDetail, 0, len(columns))}
	for _, col := range columns {
		colCards := byColumn[col.ID]
		if colCards == nil {
			colCards = []models.Card{}
		}
		detail.Columns = append(detail.Columns, models.ColumnDetail{Column: col, Cards: colCards})
	}
	return detail, nil
}
