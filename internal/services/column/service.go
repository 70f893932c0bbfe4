// Package column manages a board's columns: their titles, WIP limits and
// dense left-to-right order.
package column

import (
	"context"
	"fmt"
	"slices"

	"github.com/jonboulle/clockwork"
	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/ordering"
	"github.com/thenoetrevino/tablero/internal/types"
)

// Service defines all column-related business operations
type Service interface {
	// Read operations
	ListColumns(ctx context.Context, boardID types.BoardID) ([]models.Column, error)
	GetColumn(ctx context.Context, id types.ColumnID) (*models.Column, error)

	// Write operations
	CreateColumn(ctx context.Context, req CreateColumnRequest) (*models.Column, error)
	UpdateColumn(ctx context.Context, req UpdateColumnRequest) (*models.Column, error)
	DeleteColumn(ctx context.Context, req DeleteColumnRequest) error
	MoveColumn(ctx context.Context, req MoveColumnRequest) (*models.Column, error)
}

// CreateColumnRequest encapsulates data for creating a column
type CreateColumnRequest struct {
	Actor    models.Actor
	BoardID  types.BoardID
	Title    string
	WipLimit int  // 0 = unlimited
	Position *int // Optional: nil = append to end
}

// UpdateColumnRequest changes a column's title and/or WIP limit.
// nil means don't update.
type UpdateColumnRequest struct {
	Actor    models.Actor
	ColumnID types.ColumnID
	Title    *string
	WipLimit *int
}

// DeleteColumnRequest removes an empty column
type DeleteColumnRequest struct {
	Actor    models.Actor
	ColumnID types.ColumnID
}

// MoveColumnRequest reorders a column within its board
type MoveColumnRequest struct {
	Actor    models.Actor
	ColumnID types.ColumnID
	Position int
}

type service struct {
	store     *database.Store
	publisher events.Publisher
	clock     clockwork.Clock
}

// Option configures the service
type Option func(*service)

// WithClock replaces the wall clock used for event timestamps
func WithClock(clock clockwork.Clock) Option {
	return func(s *service) { s.clock = clock }
}

// NewService creates a new column service. publisher may be nil.
func NewService(store *database.Store, publisher events.Publisher, opts ...Option) Service {
	s := &service{
		store:     store,
		publisher: publisher,
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListColumns returns a board's columns in order
func (s *service) ListColumns(ctx context.Context, boardID types.BoardID) ([]models.Column, error) {
	if boardID <= 0 {
		return nil, ErrInvalidBoardID
	}
	if _, err := s.store.GetBoard(ctx, boardID); err != nil {
		return nil, err
	}
	return s.store.ListColumns(ctx, boardID)
}

// GetColumn retrieves a specific column
func (s *service) GetColumn(ctx context.Context, id types.ColumnID) (*models.Column, error) {
	if id <= 0 {
		return nil, ErrInvalidColumnID
	}
	return s.store.GetColumn(ctx, id)
}

// CreateColumn appends a column, or inserts it at req.Position (clamped)
// shifting the columns after it to the right
func (s *service) CreateColumn(ctx context.Context, req CreateColumnRequest) (*models.Column, error) {
	if err := validateCreateColumn(req); err != nil {
		return nil, err
	}

	var (
		created *models.Column
		columns []models.Column
	)
	err := s.store.WithRetryTx(ctx, func(tx *database.Tx) error {
		if _, err := tx.LockBoard(ctx, req.BoardID); err != nil {
			return err
		}

		col, err := tx.InsertColumn(ctx, req.BoardID, req.Title, req.WipLimit)
		if err != nil {
			return err
		}

		if req.Position != nil {
			existing, err := tx.ListColumns(ctx, req.BoardID)
			if err != nil {
				return err
			}
			ids := columnIDs(existing)
			to := ordering.Clamp(*req.Position, len(ids))
			if to != col.Position {
				if err := tx.RenumberColumns(ctx, req.BoardID, ordering.Reorder(ids, col.Position, to)); err != nil {
					return err
				}
			}
		}

		columns, created, err = reload(ctx, tx, req.BoardID, col.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create column: %w", err)
	}

	s.publish(ctx, req.BoardID, req.Actor, columns)
	return created, nil
}

// UpdateColumn changes a column's title and/or WIP limit. Lowering a limit
// below the column's current card count is allowed; it only restricts
// future admissions.
func (s *service) UpdateColumn(ctx context.Context, req UpdateColumnRequest) (*models.Column, error) {
	if err := validateUpdateColumn(req); err != nil {
		return nil, err
	}

	var (
		updated *models.Column
		columns []models.Column
	)
	err := s.store.WithRetryTx(ctx, func(tx *database.Tx) error {
		col, err := tx.LockColumn(ctx, req.ColumnID)
		if err != nil {
			return err
		}

		title, limit := col.Title, col.WipLimit
		if req.Title != nil {
			title = *req.Title
		}
		if req.WipLimit != nil {
			limit = *req.WipLimit
		}
		if err := tx.UpdateColumn(ctx, col.ID, title, limit); err != nil {
			return err
		}

		columns, updated, err = reload(ctx, tx, col.BoardID, col.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update column: %w", err)
	}

	s.publish(ctx, updated.BoardID, req.Actor, columns)
	return updated, nil
}

// DeleteColumn removes a column that holds no cards and closes the gap in
// the board's column order
func (s *service) DeleteColumn(ctx context.Context, req DeleteColumnRequest) error {
	if req.Actor.User == "" {
		return ErrMissingActor
	}
	if req.ColumnID <= 0 {
		return ErrInvalidColumnID
	}

	var (
		boardID types.BoardID
		columns []models.Column
	)
	err := s.store.WithRetryTx(ctx, func(tx *database.Tx) error {
		col, err := tx.GetColumn(ctx, req.ColumnID)
		if err != nil {
			return err
		}
		boardID = col.BoardID

		if _, err := tx.LockBoard(ctx, boardID); err != nil {
			return err
		}
		if _, err := tx.LockColumn(ctx, col.ID); err != nil {
			return err
		}

		count, err := tx.CountCards(ctx, col.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("column %d holds %d cards: %w", col.ID, count, models.ErrColumnNotEmpty)
		}

		if err := tx.DeleteColumn(ctx, col.ID); err != nil {
			return err
		}

		remaining, err := tx.ListColumns(ctx, boardID)
		if err != nil {
			return err
		}
		if err := tx.RenumberColumns(ctx, boardID, columnIDs(remaining)); err != nil {
			return err
		}

		columns, err = tx.ListColumns(ctx, boardID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete column: %w", err)
	}

	s.publish(ctx, boardID, req.Actor, columns)
	return nil
}

// MoveColumn reorders a column within its board. Moving a column onto its
// current position changes nothing and publishes nothing.
func (s *service) MoveColumn(ctx context.Context, req MoveColumnRequest) (*models.Column, error) {
	if req.Actor.User == "" {
		return nil, ErrMissingActor
	}
	if req.ColumnID <= 0 {
		return nil, ErrInvalidColumnID
	}
	if req.Position < 0 {
		return nil, ErrInvalidPosition
	}

	var (
		moved   *models.Column
		columns []models.Column
		changed bool
	)
	err := s.store.WithRetryTx(ctx, func(tx *database.Tx) error {
		col, err := tx.GetColumn(ctx, req.ColumnID)
		if err != nil {
			return err
		}
		if _, err := tx.LockBoard(ctx, col.BoardID); err != nil {
			return err
		}

		existing, err := tx.ListColumns(ctx, col.BoardID)
		if err != nil {
			return err
		}
		ids := columnIDs(existing)
		from := slices.Index(ids, col.ID)
		if from < 0 {
			return fmt.Errorf("column %d left board %d: %w", col.ID, col.BoardID, models.ErrTransactionConflict)
		}
		to := ordering.Clamp(req.Position, len(ids))

		changed = from != to
		if changed {
			if err := tx.RenumberColumns(ctx, col.BoardID, ordering.Reorder(ids, from, to)); err != nil {
				return err
			}
		}

		columns, moved, err = reload(ctx, tx, col.BoardID, col.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to move column: %w", err)
	}

	if changed {
		s.publish(ctx, moved.BoardID, req.Actor, columns)
	}
	return moved, nil
}

func (s *service) publish(ctx context.Context, boardID types.BoardID, actor models.Actor, columns []models.Column) {
	events.PublishCommitted(ctx, s.publisher, &events.ColumnsChanged{
		Header:  events.NewHeader(boardID, actor, s.clock.Now()),
		Columns: columns,
	})
}

// reload reads a board's committed column list and picks out one column
func reload(ctx context.Context, tx *database.Tx, boardID types.BoardID, id types.ColumnID) ([]models.Column, *models.Column, error) {
	columns, err := tx.ListColumns(ctx, boardID)
	if err != nil {
		return nil, nil, err
	}
	for i := range columns {
		if columns[i].ID == id {
			col := columns[i]
			return columns, &col, nil
		}
	}
	return nil, nil, fmt.Errorf("column %d: %w", id, models.ErrNotFound)
}

func columnIDs(columns []models.Column) []types.ColumnID {
	ids := make([]types.ColumnID, len(columns))
	for i, c := range columns {
		ids[i] = c.ID
	}
	return ids
}

// Validation

func validateTitle(title string) error {
	if title == "" {
		return ErrEmptyTitle
	}
	if len(title) > 50 {
		return ErrTitleTooLong
	}
	return nil
}

func validateCreateColumn(req CreateColumnRequest) error {
	if req.Actor.User == "" {
		return ErrMissingActor
	}
	if req.BoardID <= 0 {
		return ErrInvalidBoardID
	}
	if err := validateTitle(req.Title); err != nil {
		return err
	}
	if req.WipLimit < 0 {
		return ErrInvalidWipLimit
	}
	if req.Position != nil && *req.Position < 0 {
		return ErrInvalidPosition
	}
	return nil
}

func validateUpdateColumn(req UpdateColumnRequest) error {
	if req.Actor.User == "" {
		return ErrMissingActor
	}
	if req.ColumnID <= 0 {
		return ErrInvalidColumnID
	}
	if req.Title == nil && req.WipLimit == nil {
		return ErrNothingToUpdate
	}
	if req.Title != nil {
		if err := validateTitle(*req.Title); err != nil {
			return err
		}
	}
	if req.WipLimit != nil && *req.WipLimit < 0 {
		return ErrInvalidWipLimit
	}
	return nil
}
