package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/thenoetrevino/tablero/internal/cli/serve"
	"github.com/thenoetrevino/tablero/internal/config"
)

func main() {
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	flag.Parse()

	// Set up signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer cancel()

	socketPath := os.Getenv("TABLERO_SOCKET")
	if socketPath == "" {
		// HOME is set by systemd for user units
		dir, err := config.DataDir()
		if err != nil {
			slog.Error("failed to get home directory", "error", err)
			os.Exit(1)
		}
		socketPath = filepath.Join(dir, "tablero.sock")
	}

	if err := serve.RunDaemon(ctx, socketPath, *metricsAddr); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}
}
