package api

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/types"
)

// Error codes carried in error responses
const (
	CodeNotFound            = "not_found"
	CodeWipLimitExceeded    = "wip_limit_exceeded"
	CodeColumnNotEmpty      = "column_not_empty"
	CodeInvalidInput        = "invalid_input"
	CodeTransactionConflict = "transaction_conflict"
	CodeInternal            = "internal"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error    string         `json:"error"`
	Code     string         `json:"code"`
	ColumnID types.ColumnID `json:"column_id,omitempty"`
	Limit    int            `json:"limit,omitempty"`
	Count    int            `json:"count,omitempty"`
}

// classify maps a service error to its HTTP status and response body
func classify(err error) (int, ErrorResponse) {
	resp := ErrorResponse{Error: err.Error()}

	var wip *models.WipLimitError
	var fe *fiber.Error
	switch {
	case errors.As(err, &wip):
		resp.Code = CodeWipLimitExceeded
		resp.ColumnID, resp.Limit, resp.Count = wip.ColumnID, wip.Limit, wip.Count
		return fiber.StatusConflict, resp
	case errors.Is(err, models.ErrWipLimitExceeded):
		resp.Code = CodeWipLimitExceeded
		return fiber.StatusConflict, resp
	case errors.Is(err, models.ErrColumnNotEmpty):
		resp.Code = CodeColumnNotEmpty
		return fiber.StatusConflict, resp
	case errors.Is(err, models.ErrNotFound):
		resp.Code = CodeNotFound
		return fiber.StatusNotFound, resp
	case errors.Is(err, models.ErrInvalidInput):
		resp.Code = CodeInvalidInput
		return fiber.StatusBadRequest, resp
	case errors.Is(err, models.ErrTransactionConflict):
		resp.Code = CodeTransactionConflict
		return fiber.StatusServiceUnavailable, resp
	case errors.As(err, &fe):
		resp.Error = fe.Message
		switch fe.Code {
		case fiber.StatusNotFound:
			resp.Code = CodeNotFound
		case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
			resp.Code = CodeInvalidInput
		default:
			resp.Code = CodeInternal
		}
		return fe.Code, resp
	default:
		resp.Code = CodeInternal
		resp.Error = "internal server error"
		return fiber.StatusInternalServerError, resp
	}
}

// StatusError is a failed response decoded by Client. It unwraps to the
// matching model error so callers can use errors.Is on either side of the
// wire.
type StatusError struct {
	Status int
	Body   ErrorResponse
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Body.Error)
}

func (e *StatusError) Unwrap() error {
	switch e.Body.Code {
	case CodeWipLimitExceeded:
		return &models.WipLimitError{ColumnID: e.Body.ColumnID, Limit: e.Body.Limit, Count: e.Body.Count}
	case CodeColumnNotEmpty:
		return models.ErrColumnNotEmpty
	case CodeNotFound:
		return models.ErrNotFound
	case CodeInvalidInput:
		return models.ErrInvalidInput
	case CodeTransactionConflict:
		return models.ErrTransactionConflict
	default:
		return nil
	}
}
