package events

import (
	"errors"
	"io/fs"
	"syscall"
)

var (
	// ErrChannelDelivery marks an event that did not reach the channel or a
	// subscriber. It is logged, never returned to a mutation's caller.
	ErrChannelDelivery = errors.New("channel delivery failure")

	// ErrClosed is returned by operations on a closed bus
	ErrClosed = errors.New("event bus closed")

	// ErrNotConnected is returned when the daemon connection is down
	ErrNotConnected = errors.New("not connected to daemon")
)

// ErrorCode represents daemon-related error types.
type ErrorCode int

const (
	ErrSocketNotFound ErrorCode = iota
	ErrSocketPermission
	ErrDaemonNotRunning
	ErrConnectionRefused
)

// DaemonError represents a structured daemon error with context.
type DaemonError struct {
	Code    ErrorCode
	Message string
	Hint    string
}

// Error implements the error interface.
func (e *DaemonError) Error() string {
	if e.Hint != "" {
		return e.Message + ". " + e.Hint
	}
	return e.Message
}

// ClassifyDaemonError maps common dial errors to structured DaemonError types.
func ClassifyDaemonError(err error) *DaemonError {
	if err == nil {
		return nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		return &DaemonError{
			Code:    ErrSocketNotFound,
			Message: "Socket file not found",
			Hint:    "Start daemon: tablero daemon",
		}
	}

	if errors.Is(err, fs.ErrPermission) {
		return &DaemonError{
			Code:    ErrSocketPermission,
			Message: "Permission denied",
			Hint:    "Check ~/.tablero/ permissions: chmod 700 ~/.tablero/",
		}
	}

	var errno syscall.Errno
	if errors.As(err, &errno) && errno == syscall.ECONNREFUSED {
		return &DaemonError{
			Code:    ErrConnectionRefused,
			Message: "Connection refused",
			Hint:    "Daemon may have crashed. Restart it: tablero daemon",
		}
	}

	return &DaemonError{
		Code:    ErrDaemonNotRunning,
		Message: "Daemon not running",
		Hint:    "Start daemon: tablero daemon",
	}
}
