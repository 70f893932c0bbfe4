package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/thenoetrevino/tablero/internal/cli/board"
	"github.com/thenoetrevino/tablero/internal/cli/card"
	"github.com/thenoetrevino/tablero/internal/cli/column"
	"github.com/thenoetrevino/tablero/internal/cli/serve"
	"github.com/thenoetrevino/tablero/internal/cli/watch"
)

// NewRootCmd assembles the tablero command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tablero",
		Short: "Tablero - a concurrent kanban board engine",
		Long: `Tablero keeps kanban boards consistent while many people move cards at
once: positions stay dense, WIP limits hold, and every change is broadcast
to everyone watching the board.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		board.Cmd(),
		column.Cmd(),
		card.Cmd(),
		serve.ServeCmd(),
		serve.DaemonCmd(),
		watch.Cmd(),
	)
	return rootCmd
}

// Execute runs the command tree until it finishes or the process is
// signalled
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return NewRootCmd().ExecuteContext(ctx)
}
