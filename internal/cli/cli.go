package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/thenoetrevino/tablero/internal/app"
	"github.com/thenoetrevino/tablero/internal/cli/styles"
	"github.com/thenoetrevino/tablero/internal/config"
	"github.com/thenoetrevino/tablero/internal/logging"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/testutil"
	"github.com/thenoetrevino/tablero/internal/user"
)

// CLI represents the CLI application context
type CLI struct {
	App    *app.App // Application container with services
	Config *config.Config
	Actor  models.Actor

	owned   bool
	logFile io.Closer
}

// NewCLI loads configuration, starts file logging and opens the store and
// optional event channel.
func NewCLI(ctx context.Context) (*CLI, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	styles.Init(cfg.ColorScheme)

	level, _ := config.ParseLevel(cfg.Log.Level)
	var logFile io.Closer
	if dir, err := config.DataDir(); err == nil {
		// Logging is best effort: a read-only home still runs commands
		logFile, _ = logging.Init(dir, logging.Options{Level: level, Format: cfg.Log.Format})
	}

	application, err := app.Open(ctx, cfg, app.WithLogger(slog.Default()))
	if err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}

	return &CLI{
		App:     application,
		Config:  cfg,
		Actor:   user.CurrentActor(),
		owned:   true,
		logFile: logFile,
	}, nil
}

// GetCLIFromContext returns a CLI over the App injected into ctx by tests,
// or opens a new one
func GetCLIFromContext(ctx context.Context) (*CLI, error) {
	if ctx != nil {
		if testApp, ok := ctx.Value(testutil.TestAppKey).(*app.App); ok && testApp != nil {
			return &CLI{App: testApp, Config: config.Default(), Actor: user.CurrentActor()}, nil
		}
	}
	return NewCLI(ctx)
}

// Close cleans up CLI resources
func (c *CLI) Close() error {
	var err error
	if c.owned {
		err = c.App.Close()
	}
	if c.logFile != nil {
		_ = c.logFile.Close()
	}
	return err
}
