package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thenoetrevino/tablero/internal/testutil"
)

func TestNewRootCmd_RegistersCommands(t *testing.T) {
	root := NewRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"board", "column", "card", "serve", "daemon", "watch"} {
		assert.Contains(t, names, want)
	}
}

func TestNewRootCmd_Help(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"card", "move", "--help"})

	out, err := testutil.ExecuteCommand(t, root)
	require.NoError(t, err)
	assert.Contains(t, out, "--column")
	assert.Contains(t, out, "--position")
}

func TestNewRootCmd_UnknownCommand(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"sprint"})

	_, err := testutil.ExecuteCommand(t, root)
	assert.Error(t, err)
}
