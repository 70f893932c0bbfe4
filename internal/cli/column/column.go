// Package column implements the column commands
package column

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"github.com/thenoetrevino/tablero/internal/cli"
	"github.com/thenoetrevino/tablero/internal/cli/handler"
	columnservice "github.com/thenoetrevino/tablero/internal/services/column"
)

// Cmd returns the column parent command
func Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "column",
		Short: "Manage columns",
	}
	cmd.AddCommand(CreateCmd(), ListCmd(), UpdateCmd(), DeleteCmd(), MoveCmd())
	return cmd
}

func requireFlag(cmd *cobra.Command, name string) {
	if err := cmd.MarkFlagRequired(name); err != nil {
		log.Printf("Error marking flag as required: %v", err)
	}
}

// CreateCmd returns the column create subcommand
func CreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new column",
		Long: `Create a new column on a board.

Examples:
  # Create column at end (human-readable output)
  tablero column create --title="Review" --board=1

  # Insert as the second column with a WIP limit of 3
  tablero column create --title="Review" --board=1 --position=1 --wip-limit=3

  # Quiet mode for bash capture
  COLUMN_ID=$(tablero column create --title="Review" --board=1 --quiet)
`,
		RunE: handler.SimpleCommand(handler.Func(runCreate)),
	}

	// Required flags
	cmd.Flags().String("title", "", "Column title (required)")
	requireFlag(cmd, "title")
	cmd.Flags().Int("board", 0, "Board ID (required)")
	requireFlag(cmd, "board")

	// Optional flags
	cmd.Flags().Int("wip-limit", 0, "Maximum cards in the column (0 = unlimited)")
	cmd.Flags().Int("position", 0, "Insert at this position (default: append to end)")

	cli.AddOutputFlags(cmd)
	return cmd
}

func runCreate(ctx context.Context, c *cli.CLI, args *handler.Arguments) (any, error) {
	boardID, err := args.BoardID("board")
	if err != nil {
		return nil, err
	}
	title, err := args.RequireString("title")
	if err != nil {
		return nil, err
	}

	req := columnservice.CreateColumnRequest{
		Actor:    c.Actor,
		BoardID:  boardID,
		Title:    title,
		WipLimit: args.GetInt("wip-limit", 0),
	}
	if args.Has("position") {
		pos, err := args.Position("position")
		if err != nil {
			return nil, err
		}
		req.Position = &pos
	}
	return c.App.ColumnService.CreateColumn(ctx, req)
}

// ListCmd returns the column list subcommand
func ListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a board's columns in order",
		RunE:  handler.SimpleCommand(handler.Func(runList)),
	}

	cmd.Flags().Int("board", 0, "Board ID (required)")
	requireFlag(cmd, "board")

	cli.AddOutputFlags(cmd)
	return cmd
}

func runList(ctx context.Context, c *cli.CLI, args *handler.Arguments) (any, error) {
	boardID, err := args.BoardID("board")
	if err != nil {
		return nil, err
	}
	return c.App.ColumnService.ListColumns(ctx, boardID)
}

// UpdateCmd returns the column update subcommand
func UpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Rename a column or change its WIP limit",
		Long: `Update a column's title and/or WIP limit.

Lowering the limit below the column's current card count is allowed; it only
blocks further cards from entering.

Examples:
  tablero column update --id=3 --title="Code Review"
  tablero column update --id=3 --wip-limit=2
  tablero column update --id=3 --wip-limit=0   # remove the limit
`,
		RunE: handler.Command(handler.Func(runUpdate), func(cmd *cobra.Command) error {
			if !cmd.Flags().Changed("title") && !cmd.Flags().Changed("wip-limit") {
				return cli.UsageError("at least one of --title or --wip-limit is required")
			}
			return nil
		}),
	}

	cmd.Flags().Int("id", 0, "Column ID (required)")
	requireFlag(cmd, "id")
	cmd.Flags().String("title", "", "New title")
	cmd.Flags().Int("wip-limit", 0, "New WIP limit (0 = unlimited)")

	cli.AddOutputFlags(cmd)
	return cmd
}

func runUpdate(ctx context.Context, c *cli.CLI, args *handler.Arguments) (any, error) {
	id, err := args.ColumnID("id")
	if err != nil {
		return nil, err
	}
	return c.App.ColumnService.UpdateColumn(ctx, columnservice.UpdateColumnRequest{
		Actor:    c.Actor,
		ColumnID: id,
		Title:    args.OptionalString("title"),
		WipLimit: args.OptionalInt("wip-limit"),
	})
}

// DeleteCmd returns the column delete subcommand
func DeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an empty column",
		Long: `Delete a column by ID. A column that still holds cards is refused;
move or delete its cards first.

Examples:
  tablero column delete --id=4
  tablero column delete --id=4 --json
`,
		RunE: handler.SimpleCommand(handler.Func(runDelete)),
	}

	cmd.Flags().Int("id", 0, "Column ID (required)")
	requireFlag(cmd, "id")

	cli.AddOutputFlags(cmd)
	return cmd
}

func runDelete(ctx context.Context, c *cli.CLI, args *handler.Arguments) (any, error) {
	id, err := args.ColumnID("id")
	if err != nil {
		return nil, err
	}
	if err := c.App.ColumnService.DeleteColumn(ctx, columnservice.DeleteColumnRequest{Actor: c.Actor, ColumnID: id}); err != nil {
		return nil, err
	}
	return cli.Deleted{Kind: "column", ID: int64(id)}, nil
}

// MoveCmd returns the column move subcommand
func MoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move",
		Short: "Reorder a column within its board",
		Long: `Move a column to a new position. Positions past the end place the
column last.

Examples:
  tablero column move --id=4 --position=0
`,
		RunE: handler.SimpleCommand(handler.Func(runMove)),
	}

	cmd.Flags().Int("id", 0, "Column ID (required)")
	requireFlag(cmd, "id")
	cmd.Flags().Int("position", 0, "Target position (required)")
	requireFlag(cmd, "position")

	cli.AddOutputFlags(cmd)
	return cmd
}

func runMove(ctx context.Context, c *cli.CLI, args *handler.Arguments) (any, error) {
	id, err := args.ColumnID("id")
	if err != nil {
		return nil, err
	}
	pos, err := args.Position("position")
	if err != nil {
		return nil, err
	}
	return c.App.ColumnService.MoveColumn(ctx, columnservice.MoveColumnRequest{
		Actor:    c.Actor,
		ColumnID: id,
		Position: pos,
	})
}
