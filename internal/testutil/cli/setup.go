// Package cli holds helpers for command tests. It is separate from testutil
// so service tests can import testutil without pulling in the app container.
package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/thenoetrevino/tablero/internal/app"
	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/testutil"
)

// SetupCLITest creates an in-memory store and an App over it. Events are
// recorded rather than broadcast.
func SetupCLITest(t *testing.T) (*database.Store, *app.App, *testutil.Recorder) {
	t.Helper()
	store := testutil.SetupTestStore(t)
	rec := &testutil.Recorder{}
	return store, app.New(store, rec), rec
}

// ExecuteCLICommand executes a CLI command with a test app instance. The
// app travels in the command context, where the CLI package looks for it
// before opening the real store. stdin feeds any confirmation prompt.
func ExecuteCLICommand(t *testing.T, testApp *app.App, cmd *cobra.Command, args []string, stdin ...string) (string, error) {
	t.Helper()

	if testApp == nil {
		t.Fatal("testApp cannot be nil - SetupCLITest must be called first")
	}

	ctx := context.WithValue(context.Background(), testutil.TestAppKey, testApp)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(strings.Join(stdin, "\n")))
	testutil.SetupCobraCommand(cmd, args)

	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}
