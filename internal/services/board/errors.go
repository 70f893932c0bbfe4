package board

import (
	"fmt"

	"github.com/thenoetrevino/tablero/internal/models"
)

// Board-related errors
var (
	ErrEmptyTitle       = fmt.Errorf("%w: board title cannot be empty", models.ErrInvalidInput)
	ErrTitleTooLong     = fmt.Errorf("%w: board title cannot exceed 100 characters", models.ErrInvalidInput)
	ErrInvalidBoardID   = fmt.Errorf("%w: invalid board ID", models.ErrInvalidInput)
	ErrInvalidProjectID = fmt.Errorf("%w: invalid project ID", models.ErrInvalidInput)
)
