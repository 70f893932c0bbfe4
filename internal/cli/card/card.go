// Package card implements the card commands
package card

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/thenoetrevino/tablero/internal/cli"
	"github.com/thenoetrevino/tablero/internal/cli/handler"
	cardservice "github.com/thenoetrevino/tablero/internal/services/card"
	"github.com/thenoetrevino/tablero/internal/types"
)

// Cmd returns the card parent command
func Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Manage cards",
	}
	cmd.AddCommand(CreateCmd(), ShowCmd(), UpdateCmd(), DeleteCmd(), MoveCmd())
	return cmd
}

func requireFlag(cmd *cobra.Command, name string) {
	if err := cmd.MarkFlagRequired(name); err != nil {
		log.Printf("Error marking flag as required: %v", err)
	}
}

// addFieldFlags registers the editable card fields
func addFieldFlags(cmd *cobra.Command) {
	cmd.Flags().String("description", "", "Card description")
	cmd.Flags().String("priority", "", "Priority: low, medium, high, urgent")
	cmd.Flags().String("due", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().Int("milestone", 0, "Milestone ID")
	cmd.Flags().StringSlice("assignee", nil, "Assigned user (repeatable)")
	cmd.Flags().IntSlice("label", nil, "Label ID (repeatable)")
}

// CreateCmd returns the card create subcommand
func CreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a card at the end of a column",
		Long: `Create a card. It is appended to the end of the column, subject to the
column's WIP limit.

Examples:
  tablero card create --column=2 --title="Fix login redirect"

  # With details
  tablero card create --column=2 --title="Fix login redirect" \
    --priority=high --due=2026-11-01 --assignee=ana --label=4

  # Quiet mode for bash capture
  CARD_ID=$(tablero card create --column=2 --title="Fix login redirect" --quiet)
`,
		RunE: handler.SimpleCommand(handler.Func(runCreate)),
	}

	// Required flags
	cmd.Flags().Int("column", 0, "Column ID (required)")
	requireFlag(cmd, "column")
	cmd.Flags().String("title", "", "Card title (required)")
	requireFlag(cmd, "title")

	addFieldFlags(cmd)
	cli.AddOutputFlags(cmd)
	return cmd
}

func runCreate(ctx context.Context, c *cli.CLI, args *handler.Arguments) (any, error) {
	columnID, err := args.ColumnID("column")
	if err != nil {
		return nil, err
	}
	title, err := args.RequireString("title")
	if err != nil {
		return nil, err
	}

	req := cardservice.CreateCardRequest{
		Actor:       c.Actor,
		ColumnID:    columnID,
		Title:       title,
		Description: args.GetString("description", ""),
		Assignees:   args.UserIDs("assignee"),
		Labels:      args.LabelIDs("label"),
	}
	if args.Has("priority") {
		if req.Priority, err = cli.ParsePriority(args.GetString("priority", "")); err != nil {
			return nil, err
		}
	}
	if args.Has("due") {
		if req.DueDate, err = cli.ParseDueDate(args.GetString("due", "")); err != nil {
			return nil, err
		}
	}
	if args.Has("milestone") {
		id, err := args.RequireID("milestone")
		if err != nil {
			return nil, err
		}
		m := types.MilestoneID(id)
		req.MilestoneID = &m
	}
	return c.App.CardService.CreateCard(ctx, req)
}

// ShowCmd returns the card show subcommand
func ShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a card",
		RunE:  handler.SimpleCommand(handler.Func(runShow)),
	}

	cmd.Flags().Int("id", 0, "Card ID (required)")
	requireFlag(cmd, "id")

	cli.AddOutputFlags(cmd)
	return cmd
}

func runShow(ctx context.Context, c *cli.CLI, args *handler.Arguments) (any, error) {
	id, err := args.CardID("id")
	if err != nil {
		return nil, err
	}
	return c.App.CardService.GetCard(ctx, id)
}

// UpdateCmd returns the card update subcommand
func UpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Edit a card's fields",
		Long: `Update a card. Only the flags given are changed; the card keeps its
column and position.

Examples:
  tablero card update --id=12 --title="Fix SSO redirect" --priority=urgent
  tablero card update --id=12 --clear-due
  tablero card update --id=12 --assignee=ana --assignee=bo
`,
		RunE: handler.Command(handler.Func(runUpdate), func(cmd *cobra.Command) error {
			for _, pair := range [][2]string{{"due", "clear-due"}, {"milestone", "clear-milestone"}} {
				if cmd.Flags().Changed(pair[0]) && cmd.Flags().Changed(pair[1]) {
					return cli.UsageError("--%s and --%s are mutually exclusive", pair[0], pair[1])
				}
			}
			return nil
		}),
	}

	cmd.Flags().Int("id", 0, "Card ID (required)")
	requireFlag(cmd, "id")
	cmd.Flags().String("title", "", "New title")
	addFieldFlags(cmd)
	cmd.Flags().Bool("clear-due", false, "Remove the due date")
	cmd.Flags().Bool("clear-milestone", false, "Remove the milestone")

	cli.AddOutputFlags(cmd)
	return cmd
}

func runUpdate(ctx context.Context, c *cli.CLI, args *handler.Arguments) (any, error) {
	id, err := args.CardID("id")
	if err != nil {
		return nil, err
	}

	req := cardservice.UpdateCardRequest{
		Actor:          c.Actor,
		CardID:         id,
		Title:          args.OptionalString("title"),
		Description:    args.OptionalString("description"),
		ClearDueDate:   args.GetBool("clear-due"),
		ClearMilestone: args.GetBool("clear-milestone"),
	}
	if args.Has("priority") {
		p, err := cli.ParsePriority(args.GetString("priority", ""))
		if err != nil {
			return nil, err
		}
		req.Priority = &p
	}
	if args.Has("due") {
		if req.DueDate, err = cli.ParseDueDate(args.GetString("due", "")); err != nil {
			return nil, err
		}
	}
	if args.Has("milestone") {
		mid, err := args.RequireID("milestone")
		if err != nil {
			return nil, err
		}
		m := types.MilestoneID(mid)
		req.MilestoneID = &m
	}
	if args.Has("assignee") {
		assignees := args.UserIDs("assignee")
		req.Assignees = &assignees
	}
	if args.Has("label") {
		labels := args.LabelIDs("label")
		req.Labels = &labels
	}
	return c.App.CardService.UpdateCard(ctx, req)
}

// DeleteCmd returns the card delete subcommand
func DeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a card",
		Long: `Delete a card by ID (requires confirmation unless --force, --quiet or --json).
The cards below it in its column move up one position.

Examples:
  # Delete with confirmation
  tablero card delete --id=12

  # Skip confirmation
  tablero card delete --id=12 --force
`,
		RunE: handler.SimpleCommand(handler.Func(runDelete)),
	}

	cmd.Flags().Int("id", 0, "Card ID (required)")
	requireFlag(cmd, "id")
	cmd.Flags().Bool("force", false, "Skip confirmation")

	cli.AddOutputFlags(cmd)
	return cmd
}

func runDelete(ctx context.Context, c *cli.CLI, args *handler.Arguments) (any, error) {
	id, err := args.CardID("id")
	if err != nil {
		return nil, err
	}

	if !args.GetBool("force") && !args.GetBool("quiet") && !args.GetBool("json") {
		card, err := c.App.CardService.GetCard(ctx, id)
		if err != nil {
			return nil, err
		}

		cmd := args.GetCmd()
		fmt.Fprintf(cmd.OutOrStdout(), "Delete card #%d: '%s'? (y/N): ", id, card.Title)
		response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			return "Cancelled", nil
		}
	}

	if _, err := c.App.CardService.DeleteCard(ctx, cardservice.DeleteCardRequest{Actor: c.Actor, CardID: id}); err != nil {
		return nil, err
	}
	return cli.Deleted{Kind: "card", ID: int64(id)}, nil
}

// MoveCmd returns the card move subcommand
func MoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move",
		Short: "Move a card to a column and position",
		Long: `Move a card. Within a column this reorders it; across columns the source
closes its gap and the destination makes room. The destination's WIP limit
applies to cards entering from another column. Positions past the end place
the card last.

Examples:
  # Move card 12 to the top of column 3
  tablero card move --id=12 --column=3 --position=0

  # Reorder within its own column
  tablero card move --id=12 --column=2 --position=4

  # Move through a running server; the board is updated locally first and
  # restored if the server refuses
  tablero card move --id=12 --column=3 --server=http://127.0.0.1:7420
`,
		RunE: handler.SimpleCommand(handler.Func(runMove)),
	}

	cmd.Flags().Int("id", 0, "Card ID (required)")
	requireFlag(cmd, "id")
	cmd.Flags().Int("column", 0, "Destination column ID (required)")
	requireFlag(cmd, "column")
	cmd.Flags().Int("position", 0, "Destination position (default: top)")
	cmd.Flags().String("server", "", "Move through a tablero server instead of the local store")

	cli.AddOutputFlags(cmd)
	return cmd
}

func runMove(ctx context.Context, c *cli.CLI, args *handler.Arguments) (any, error) {
	id, err := args.CardID("id")
	if err != nil {
		return nil, err
	}
	columnID, err := args.ColumnID("column")
	if err != nil {
		return nil, err
	}
	pos, err := args.Position("position")
	if err != nil {
		return nil, err
	}
	if server := args.GetString("server", ""); server != "" {
		return moveRemote(ctx, c, server, id, columnID, pos)
	}
	return c.App.CardService.MoveCard(ctx, cardservice.MoveCardRequest{
		Actor:    c.Actor,
		CardID:   id,
		ColumnID: columnID,
		Position: pos,
	})
}
