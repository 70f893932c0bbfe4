package handler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thenoetrevino/tablero/internal/cli"
	"github.com/thenoetrevino/tablero/internal/models"
	clitest "github.com/thenoetrevino/tablero/internal/testutil/cli"
	"github.com/thenoetrevino/tablero/internal/types"
)

func newTestCommand(h Handler, parse func(*cobra.Command) error) *cobra.Command {
	if parse == nil {
		parse = func(*cobra.Command) error { return nil }
	}
	cmd := &cobra.Command{Use: "test", RunE: Command(h, parse)}
	cmd.Flags().Int("id", 0, "")
	cmd.Flags().String("title", "", "")
	cmd.Flags().StringSlice("assignee", nil, "")
	cmd.Flags().IntSlice("label", nil, "")
	cli.AddOutputFlags(cmd)
	return cmd
}

func TestCommand_PassesParsedFlags(t *testing.T) {
	_, testApp, _ := clitest.SetupCLITest(t)

	var got *Arguments
	h := Func(func(ctx context.Context, c *cli.CLI, args *Arguments) (any, error) {
		got = args
		assert.Same(t, testApp, c.App)
		return &models.Card{ID: 5, Title: "x"}, nil
	})

	out, err := clitest.ExecuteCLICommand(t, testApp, newTestCommand(h, nil), []string{
		"--id=5", "--title=hello", "--assignee=ana,bo", "--label=1,2", "--json",
	})
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, 5, got.GetInt("id", 0))
	assert.Equal(t, "hello", got.GetString("title", ""))
	assert.Equal(t, []types.UserID{"ana", "bo"}, got.UserIDs("assignee"))
	assert.Equal(t, []types.LabelID{1, 2}, got.LabelIDs("label"))
	assert.NotNil(t, got.GetCmd())

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, true, result["success"])
}

func TestCommand_HandlerErrorCarriesExitCode(t *testing.T) {
	_, testApp, _ := clitest.SetupCLITest(t)

	h := Func(func(ctx context.Context, c *cli.CLI, args *Arguments) (any, error) {
		return nil, &models.WipLimitError{ColumnID: 1, Limit: 1, Count: 1}
	})

	out, err := clitest.ExecuteCLICommand(t, testApp, newTestCommand(h, nil), []string{"--json"})
	require.Error(t, err)
	assert.Equal(t, cli.ExitConflict, cli.ExitCodeFor(err))
	assert.ErrorIs(t, err, models.ErrWipLimitExceeded)
	assert.Contains(t, out, "WIP_LIMIT_EXCEEDED")
}

func TestCommand_ParseFlagsErrorSkipsHandler(t *testing.T) {
	_, testApp, _ := clitest.SetupCLITest(t)

	called := false
	h := Func(func(ctx context.Context, c *cli.CLI, args *Arguments) (any, error) {
		called = true
		return nil, nil
	})
	parse := func(*cobra.Command) error { return cli.UsageError("nope") }

	_, err := clitest.ExecuteCLICommand(t, testApp, newTestCommand(h, parse), []string{"--quiet"})
	require.Error(t, err)
	assert.False(t, called)
	assert.Equal(t, cli.ExitUsage, cli.ExitCodeFor(err))
}

func TestArguments_Accessors(t *testing.T) {
	args := &Arguments{Flags: map[string]any{
		"id":       3,
		"position": -1,
		"title":    "  ",
		"name":     "kanban",
		"limit":    0,
		"flag":     true,
	}}

	id, err := args.RequireID("id")
	require.NoError(t, err)
	assert.Equal(t, 3, id)

	_, err = args.CardID("missing")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = args.Position("position")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = args.RequireString("title")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	name, err := args.RequireString("name")
	require.NoError(t, err)
	assert.Equal(t, "kanban", name)

	require.NotNil(t, args.OptionalInt("limit"))
	assert.Equal(t, 0, *args.OptionalInt("limit"))
	assert.Nil(t, args.OptionalInt("other"))
	assert.Nil(t, args.OptionalString("description"))

	assert.True(t, args.GetBool("flag"))
	assert.False(t, args.GetBool("name"))
	assert.Equal(t, 7, args.GetInt("name", 7))
	assert.Nil(t, args.UserIDs("assignee"))
}

func TestSimpleCommand(t *testing.T) {
	_, testApp, _ := clitest.SetupCLITest(t)

	h := Func(func(ctx context.Context, c *cli.CLI, args *Arguments) (any, error) {
		return nil, errors.New("boom")
	})
	cmd := &cobra.Command{Use: "simple", RunE: SimpleCommand(h)}
	cli.AddOutputFlags(cmd)

	out, err := clitest.ExecuteCLICommand(t, testApp, cmd, nil)
	require.Error(t, err)
	assert.Equal(t, cli.ExitError, cli.ExitCodeFor(err))
	assert.Contains(t, out, "boom")
}
