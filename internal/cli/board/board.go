// Package board implements the board commands
package board

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"github.com/thenoetrevino/tablero/internal/cli"
	"github.com/thenoetrevino/tablero/internal/cli/handler"
	boardservice "github.com/thenoetrevino/tablero/internal/services/board"
	"github.com/thenoetrevino/tablero/internal/types"
)

// Cmd returns the board parent command
func Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Manage boards",
	}
	cmd.AddCommand(CreateCmd(), ListCmd(), ShowCmd())
	return cmd
}

// CreateCmd returns the board create subcommand
func CreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new board",
		Long: `Create a board, seeded with Todo, In Progress and Done columns.

Examples:
  # Create a board with the default columns
  tablero board create --title="Platform" --project=1

  # Custom columns
  tablero board create --title="Hiring" --project=1 --columns="Applied,Interview,Offer"

  # Quiet mode for bash capture
  BOARD_ID=$(tablero board create --title="Platform" --project=1 --quiet)
`,
		RunE: handler.Command(handler.Func(runCreate), func(cmd *cobra.Command) error {
			if cmd.Flags().Changed("columns") && cmd.Flags().Changed("no-columns") {
				return cli.UsageError("--columns and --no-columns are mutually exclusive")
			}
			return nil
		}),
	}

	// Required flags
	cmd.Flags().String("title", "", "Board title (required)")
	if err := cmd.MarkFlagRequired("title"); err != nil {
		log.Printf("Error marking flag as required: %v", err)
	}

	// Optional flags
	cmd.Flags().Int("project", 1, "Owning project ID")
	cmd.Flags().StringSlice("columns", nil, "Column titles, in order (default: Todo,In Progress,Done)")
	cmd.Flags().Bool("no-columns", false, "Create the board without columns")

	cli.AddOutputFlags(cmd)
	return cmd
}

func runCreate(ctx context.Context, c *cli.CLI, args *handler.Arguments) (any, error) {
	title, err := args.RequireString("title")
	if err != nil {
		return nil, err
	}

	columns := args.GetStringSlice("columns", nil)
	if args.GetBool("no-columns") {
		columns = []string{}
	}

	return c.App.BoardService.CreateBoard(ctx, boardservice.CreateBoardRequest{
		ProjectID: types.ProjectID(args.GetInt("project", 1)),
		Title:     title,
		Columns:   columns,
	})
}

// ListCmd returns the board list subcommand
func ListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's boards",
		Long: `List boards in a project.

Examples:
  tablero board list --project=1
  tablero board list --project=1 --json
`,
		RunE: handler.SimpleCommand(handler.Func(runList)),
	}

	cmd.Flags().Int("project", 1, "Project ID")
	cli.AddOutputFlags(cmd)
	return cmd
}

func runList(ctx context.Context, c *cli.CLI, args *handler.Arguments) (any, error) {
	return c.App.BoardService.ListBoards(ctx, types.ProjectID(args.GetInt("project", 1)))
}

// ShowCmd returns the board show subcommand
func ShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a board with its columns and cards",
		Long: `Show a board's columns and cards in position order.

Examples:
  tablero board show --id=1
  tablero board show --id=1 --json
`,
		RunE: handler.SimpleCommand(handler.Func(runShow)),
	}

	cmd.Flags().Int("id", 0, "Board ID (required)")
	if err := cmd.MarkFlagRequired("id"); err != nil {
		log.Printf("Error marking flag as required: %v", err)
	}

	cli.AddOutputFlags(cmd)
	return cmd
}

func runShow(ctx context.Context, c *cli.CLI, args *handler.Arguments) (any, error) {
	id, err := args.BoardID("id")
	if err != nil {
		return nil, err
	}
	return c.App.BoardService.GetBoard(ctx, id)
}
