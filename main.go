package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/thenoetrevino/tablero/cmd"
	"github.com/thenoetrevino/tablero/internal/cli"
)

func main() {
	err := cmd.Execute()
	if err == nil {
		return
	}

	// Command failures have already been reported by the output formatter
	var reported *cli.ExitCodeError
	if !errors.As(err, &reported) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.ExitCodeFor(err))
}
