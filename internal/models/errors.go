package models

import (
	"errors"
	"fmt"

	"github.com/thenoetrevino/tablero/internal/types"
)

// Failure taxonomy shared by the store, the services and the clients
var (
	// ErrNotFound indicates a referenced board, column or card does not exist
	ErrNotFound = errors.New("not found")

	// ErrWipLimitExceeded indicates the destination column is full
	ErrWipLimitExceeded = errors.New("wip limit exceeded")

	// ErrTransactionConflict indicates a store-level serialization failure.
	// The whole operation may be retried once.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrColumnNotEmpty indicates a delete of a column that still holds cards
	ErrColumnNotEmpty = errors.New("column still holds cards")

	// ErrInvalidInput is wrapped by every request validation error
	ErrInvalidInput = errors.New("invalid input")
)

// WipLimitError carries the state of the column that refused a card
type WipLimitError struct {
	ColumnID types.ColumnID
	Limit    int
	Count    int
}

func (e *WipLimitError) Error() string {
	return fmt.Sprintf("column %d is at its wip limit (%d/%d)", e.ColumnID, e.Count, e.Limit)
}

// Unwrap lets errors.Is(err, ErrWipLimitExceeded) match
func (e *WipLimitError) Unwrap() error {
	return ErrWipLimitExceeded
}
