// Package serve implements the long-running server commands
package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/thenoetrevino/tablero/internal/api"
	"github.com/thenoetrevino/tablero/internal/app"
	"github.com/thenoetrevino/tablero/internal/config"
	"github.com/thenoetrevino/tablero/internal/daemon"
	"github.com/thenoetrevino/tablero/internal/logging"
)

// shutdownTimeout bounds graceful shutdown after a signal
const shutdownTimeout = 10 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and websocket event stream",
		Long: `Serve the board API over HTTP. Clients receive board events over
websockets at /ws/boards/<id>; Prometheus metrics are at /metrics.

The event bus decides who else hears about changes:
  hub     in-process only (default)
  daemon  shares events with CLI commands through the local daemon
  redis   shares events with other tablero servers

Examples:
  tablero serve
  tablero serve --addr=0.0.0.0:8080 --bus=redis
`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default from config)")
	cmd.Flags().String("bus", "", "Event bus: hub, daemon, redis (default from config)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
	}
	if cmd.Flags().Changed("bus") {
		bus, _ := cmd.Flags().GetString("bus")
		cfg.Events.Bus = config.Bus(bus)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	logging.InitStderr(logging.Options{Level: level, Format: cfg.Log.Format})

	application, err := app.Open(ctx, cfg, app.WithRequiredBus(), app.WithLogger(logging.Logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logging.Logger.Warn("error closing application", "error", err)
		}
	}()

	srv := api.NewServer(api.Services{
		Boards:  application.BoardService,
		Columns: application.ColumnService,
		Cards:   application.CardService,
		Events:  application.Events(),
	}, api.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, logging.Logger)

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr, err)
	}
	logging.Logger.Info("tablero server starting", "addr", ln.Addr().String(), "bus", cfg.Events.Bus, "store", cfg.Store.Driver)

	return Run(ctx, func() error { return srv.Serve(ln) }, srv.Shutdown)
}

// Run calls serve until it returns or ctx is cancelled, then shuts down
// within shutdownTimeout
func Run(ctx context.Context, serve func() error, shutdown func(context.Context) error) error {
	errCh := make(chan error, 1)
	go func() { errCh <- serve() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdown(shutdownCtx); err != nil {
		return err
	}

	select {
	case err := <-errCh:
		return err
	case <-shutdownCtx.Done():
		return shutdownCtx.Err()
	}
}

// DaemonCmd returns the daemon command
func DaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the local event daemon",
		Long: `Run the unix socket daemon that relays board events between CLI
commands and servers on this host.

Examples:
  tablero daemon
  tablero daemon --metrics-addr=127.0.0.1:9464
`,
		RunE: runDaemon,
	}

	cmd.Flags().String("socket", "", "Socket path (default ~/.tablero/tablero.sock)")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	socketPath := cfg.Events.Socket
	if cmd.Flags().Changed("socket") {
		socketPath, _ = cmd.Flags().GetString("socket")
	}
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	level, _ := config.ParseLevel(cfg.Log.Level)
	logging.InitStderr(logging.Options{Level: level, Format: cfg.Log.Format})

	return RunDaemon(cmd.Context(), socketPath, metricsAddr)
}

// RunDaemon starts the daemon on socketPath and blocks until ctx is done
func RunDaemon(ctx context.Context, socketPath, metricsAddr string) error {
	// Ensure the socket directory exists with secure permissions
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	server, err := daemon.NewServer(socketPath, daemon.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", server.Metrics().Handler())
		metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "error", err)
			}
		}()
		defer func() { _ = metricsSrv.Close() }()
	}

	slog.Info("tablero daemon starting", "socket_path", socketPath, "pid", os.Getpid())
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}
	slog.Info("tablero daemon shut down gracefully")
	return nil
}
