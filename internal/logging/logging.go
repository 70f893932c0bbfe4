package logging

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Logger is the global slog instance for the application
var Logger = slog.Default()

// Options selects level and handler format
type Options struct {
	Level  slog.Level
	Format string // text or json
}

// New builds a logger writing to w
func New(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	if strings.EqualFold(opts.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// Init initializes file logging for CLI commands, writing to
// <dataDir>/logs/tablero.log. The returned closer flushes the file.
func Init(dataDir string, opts Options) (io.Closer, error) {
	logDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "tablero.log")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	install(New(file, opts), file)
	return file, nil
}

// InitStderr initializes logging to stderr for long-running servers
func InitStderr(opts Options) {
	install(New(os.Stderr, opts), os.Stderr)
}

func install(logger *slog.Logger, w io.Writer) {
	Logger = logger
	slog.SetDefault(Logger)

	// Redirect standard log package output to the same destination
	log.SetOutput(w)
	log.SetFlags(log.LstdFlags)
}
