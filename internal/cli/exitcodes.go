package cli

import (
	"errors"

	"github.com/thenoetrevino/tablero/internal/models"
)

// Exit codes for CLI commands.
// These codes follow Unix conventions and provide consistent error reporting
// across all CLI commands.
const (
	// ExitSuccess indicates the command completed successfully.
	// Use for: Normal, successful command execution.
	ExitSuccess = 0

	// ExitError indicates a general error occurred.
	// Use for: Database errors, network errors, unexpected failures,
	// or any error that doesn't fit the specific categories below.
	ExitError = 1

	// ExitUsage indicates incorrect command usage.
	// Use for: Missing required flags, invalid flag combinations,
	// or when the user needs to provide different arguments.
	ExitUsage = 2

	// ExitNotFound indicates a requested resource was not found.
	// Use for: Card not found, board not found, column not found,
	// or any case where a resource ID doesn't exist.
	ExitNotFound = 3

	// ExitDataErr indicates invalid or malformed data.
	// Use for: Invalid JSON input, corrupted data, or data that cannot be processed.
	ExitDataErr = 4

	// ExitValidation indicates a validation error.
	// Use for: Invalid priority values, empty titles, negative positions,
	// or any case where input fails validation rules.
	ExitValidation = 5

	// ExitConflict indicates the board's current state refused the change.
	// Use for: WIP limit reached, deleting a non-empty column, or a store
	// conflict that persisted through the retry.
	ExitConflict = 6
)

// ExitCodeError carries the exit code a failed command should terminate with.
// The message has already been reported to the user.
type ExitCodeError struct {
	Code int
	Err  error
}

func (e *ExitCodeError) Error() string {
	return e.Err.Error()
}

func (e *ExitCodeError) Unwrap() error {
	return e.Err
}

// ExitCodeFor maps an error to the exit code its category calls for
func ExitCodeFor(err error) int {
	var exitErr *ExitCodeError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, models.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, models.ErrWipLimitExceeded),
		errors.Is(err, models.ErrColumnNotEmpty),
		errors.Is(err, models.ErrTransactionConflict):
		return ExitConflict
	case errors.Is(err, models.ErrInvalidInput):
		return ExitValidation
	default:
		return ExitError
	}
}

// errorCode names an error category for JSON output
func errorCode(err error) string {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, models.ErrWipLimitExceeded):
		return "WIP_LIMIT_EXCEEDED"
	case errors.Is(err, models.ErrColumnNotEmpty):
		return "COLUMN_NOT_EMPTY"
	case errors.Is(err, models.ErrTransactionConflict):
		return "TRANSACTION_CONFLICT"
	case errors.Is(err, models.ErrInvalidInput):
		return "VALIDATION_ERROR"
	default:
		return "ERROR"
	}
}
