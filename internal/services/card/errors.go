package card

import (
	"errors"
	"fmt"

	"github.com/thenoetrevino/tablero/internal/models"
)

// Card-related errors
var (
	// Validation errors
	ErrEmptyTitle      = fmt.Errorf("%w: card title cannot be empty", models.ErrInvalidInput)
	ErrTitleTooLong    = fmt.Errorf("%w: card title cannot exceed 255 characters", models.ErrInvalidInput)
	ErrInvalidCardID   = fmt.Errorf("%w: invalid card ID", models.ErrInvalidInput)
	ErrInvalidColumnID = fmt.Errorf("%w: invalid column ID", models.ErrInvalidInput)
	ErrInvalidPriority = fmt.Errorf("%w: invalid priority", models.ErrInvalidInput)
	ErrInvalidPosition = fmt.Errorf("%w: invalid position: must be >= 0", models.ErrInvalidInput)
	ErrMissingActor    = fmt.Errorf("%w: acting user is required", models.ErrInvalidInput)

	// ErrCrossBoardMove indicates a move into a column of another board
	ErrCrossBoardMove = fmt.Errorf("%w: cannot move a card to another board", models.ErrInvalidInput)
)

// errNoop marks a move that leaves every position unchanged
var errNoop = errors.New("no-op move")
