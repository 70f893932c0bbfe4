package board

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/types"
)

// DefaultColumns are seeded into a new board unless the caller opts out
var DefaultColumns = []string{"Todo", "In Progress", "Done"}

// Service defines all board-related business operations
type Service interface {
	CreateBoard(ctx context.Context, req CreateBoardRequest) (*models.BoardDetail, error)
	GetBoard(ctx context.Context, id types.BoardID) (*models.BoardDetail, error)
	ListBoards(ctx context.Context, projectID types.ProjectID) ([]models.Board, error)
}

// CreateBoardRequest encapsulates data for creating a board
type CreateBoardRequest struct {
	ProjectID types.ProjectID
	Title     string
	// Columns overrides DefaultColumns; an empty non-nil slice creates a
	// board with no columns
	Columns []string
}

type service struct {
	store *database.Store
	clock clockwork.Clock
}

// NewService creates a new board service
func NewService(store *database.Store, clock clockwork.Clock) Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &service{store: store, clock: clock}
}

// CreateBoard creates a board and its initial columns in one transaction.
// No event is published: nobody can be subscribed to a board that did not
// exist yet.
func (s *service) CreateBoard(ctx context.Context, req CreateBoardRequest) (*models.BoardDetail, error) {
	if req.ProjectID <= 0 {
		return nil, ErrInvalidProjectID
	}
	if req.Title == "" {
		return nil, ErrEmptyTitle
	}
	if len(req.Title) > 100 {
		return nil, ErrTitleTooLong
	}

	titles := req.Columns
	if titles == nil {
		titles = DefaultColumns
	}

	var detail *models.BoardDetail
	err := s.store.WithRetryTx(ctx, func(tx *database.Tx) error {
		board, err := tx.InsertBoard(ctx, req.ProjectID, req.Title, s.clock.Now())
		if err != nil {
			return err
		}
		for _, title := range titles {
			if _, err := tx.InsertColumn(ctx, board.ID, title, 0); err != nil {
				return err
			}
		}
		detail, err = tx.GetBoardDetail(ctx, board.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create board: %w", err)
	}
	return detail, nil
}

// GetBoard returns the full committed snapshot of a board: ordered columns,
// each with its ordered cards
func (s *service) GetBoard(ctx context.Context, id types.BoardID) (*models.BoardDetail, error) {
	if id <= 0 {
		return nil, ErrInvalidBoardID
	}
	return s.store.GetBoardDetail(ctx, id)
}

// ListBoards returns boards in creation order. projectID 0 lists all.
func (s *service) ListBoards(ctx context.Context, projectID types.ProjectID) ([]models.Board, error) {
	if projectID < 0 {
		return nil, ErrInvalidProjectID
	}
	boards, err := s.store.ListBoards(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if boards == nil {
		boards = []models.Board{}
	}
	return boards, nil
}
