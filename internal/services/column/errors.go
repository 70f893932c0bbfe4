package column

import (
	"fmt"

	"github.com/thenoetrevino/tablero/internal/models"
)

// Column-related errors
var (
	// Validation errors
	ErrEmptyTitle      = fmt.Errorf("%w: column title cannot be empty", models.ErrInvalidInput)
	ErrTitleTooLong    = fmt.Errorf("%w: column title cannot exceed 50 characters", models.ErrInvalidInput)
	ErrInvalidColumnID = fmt.Errorf("%w: invalid column ID", models.ErrInvalidInput)
	ErrInvalidBoardID  = fmt.Errorf("%w: invalid board ID", models.ErrInvalidInput)
	ErrInvalidWipLimit = fmt.Errorf("%w: WIP limit must be >= 0", models.ErrInvalidInput)
	ErrInvalidPosition = fmt.Errorf("%w: invalid position: must be >= 0", models.ErrInvalidInput)
	ErrMissingActor    = fmt.Errorf("%w: acting user is required", models.ErrInvalidInput)
	ErrNothingToUpdate = fmt.Errorf("%w: no column fields to update", models.ErrInvalidInput)
)
