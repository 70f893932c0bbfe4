// Package watch implements the watch command: a live, reconciled view of a
// board served by a running tablero server
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"
	"github.com/thenoetrevino/tablero/internal/api"
	"github.com/thenoetrevino/tablero/internal/boardstate"
	"github.com/thenoetrevino/tablero/internal/cli"
	"github.com/thenoetrevino/tablero/internal/cli/styles"
	"github.com/thenoetrevino/tablero/internal/config"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/logging"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/types"
	"github.com/thenoetrevino/tablero/internal/user"
)

// Cmd returns the watch command
func Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a board live",
		Long: `Follow a board served by 'tablero serve'. The board is redrawn whenever
anyone changes it; if the connection drops it is re-established and the
board reloaded.

Examples:
  tablero watch --board=1
  tablero watch --board=1 --server=http://kanban.internal:7420 --json
`,
		RunE: runWatch,
	}

	cmd.Flags().Int("board", 0, "Board ID (required)")
	if err := cmd.MarkFlagRequired("board"); err != nil {
		slog.Warn("error marking flag as required", "error", err)
	}
	cmd.Flags().String("server", "", "Server URL (default from config)")
	cmd.Flags().Bool("json", false, "Print each snapshot as a JSON line")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	boardID, _ := cmd.Flags().GetInt("board")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	formatter := &cli.OutputFormatter{JSON: jsonOutput, Out: cmd.OutOrStdout(), ErrOut: cmd.ErrOrStderr()}
	if boardID <= 0 {
		return formatter.Fail(fmt.Errorf("--board must be greater than 0: %w", models.ErrInvalidInput))
	}

	cfg, err := config.Load()
	if err != nil {
		return formatter.Fail(err)
	}
	styles.Init(cfg.ColorScheme)
	if dir, err := config.DataDir(); err == nil {
		level, _ := config.ParseLevel(cfg.Log.Level)
		if closer, err := logging.Init(dir, logging.Options{Level: level, Format: cfg.Log.Format}); err == nil {
			defer closer.Close()
		}
	}

	serverURL := cfg.Client.ServerURL
	if cmd.Flags().Changed("server") {
		serverURL, _ = cmd.Flags().GetString("server")
	}
	client, err := api.NewClient(serverURL, user.CurrentActor())
	if err != nil {
		return formatter.Fail(err)
	}

	render := Printer(cmd.OutOrStdout(), jsonOutput)
	if err := Watch(cmd.Context(), client, types.BoardID(boardID), render, boardstate.WithTimeout(cfg.Client.MutationTimeout)); err != nil {
		return formatter.Fail(err)
	}
	return nil
}

// Printer renders each snapshot to w, as a board diagram or a JSON line
func Printer(w io.Writer, jsonOutput bool) func(boardstate.Snapshot) {
	enc := json.NewEncoder(w)
	return func(s boardstate.Snapshot) {
		if jsonOutput {
			if err := enc.Encode(s.Detail()); err != nil {
				slog.Warn("failed to write snapshot", "error", err)
			}
			return
		}
		fmt.Fprintf(w, "%s\n\n", styles.RenderBoard(*s.Detail()))
	}
}

// Watch follows boardID until ctx is done. render is called with the
// initial board and after every change. A dropped stream is re-established
// with exponential backoff and followed by a full refresh.
func Watch(ctx context.Context, client *api.Client, boardID types.BoardID, render func(boardstate.Snapshot), opts ...boardstate.Option) error {
	detail, err := client.LoadBoard(ctx, boardID)
	if err != nil {
		return err
	}

	opts = append([]boardstate.Option{boardstate.WithOnChange(render)}, opts...)
	r := boardstate.NewReconciler(detail, client, client, boardstate.NewDeduplicator(client.Actor().Session), opts...)
	render(r.Snapshot())

	go func() { _ = r.Run(ctx) }()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0

	for reconnect := false; ; reconnect = true {
		var sub events.Subscription
		err := backoff.Retry(func() error {
			var err error
			sub, err = r.Attach(ctx, client)
			if errors.Is(err, models.ErrNotFound) {
				return backoff.Permanent(err)
			}
			if err != nil {
				slog.Warn("board stream unavailable, retrying", "board_id", boardID, "error", err)
			}
			return err
		}, backoff.WithContext(b, ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		b.Reset()

		if reconnect {
			// Anything committed while disconnected was never streamed
			r.RequestRefresh()
		}

		if lost := waitLost(ctx, sub); !lost {
			return sub.Close()
		}
		slog.Warn("board stream lost, reconnecting", "board_id", boardID)
	}
}

// waitLost blocks until ctx is done (false) or the server ends the stream
// (true)
func waitLost(ctx context.Context, sub events.Subscription) bool {
	ended, ok := sub.(interface{ Done() <-chan struct{} })
	if !ok {
		<-ctx.Done()
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-ended.Done():
		return ctx.Err() == nil
	}
}
