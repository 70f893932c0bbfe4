package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/thenoetrevino/tablero/internal/models"
)

// dateLayout is the format accepted by --due
const dateLayout = "2006-01-02"

// ParsePriority maps a priority name to its value, classified as invalid
// input when unknown
func ParsePriority(priority string) (models.Priority, error) {
	p, err := models.ParsePriority(priority)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", models.ErrInvalidInput, err)
	}
	return p, nil
}

// ParseDueDate parses a YYYY-MM-DD date as midnight UTC
func ParseDueDate(s string) (*time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid due date '%s' (must be YYYY-MM-DD): %w", s, models.ErrInvalidInput)
	}
	return &d, nil
}

// AddOutputFlags registers the agent-friendly --json and --quiet flags
func AddOutputFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("json", false, "Output in JSON format")
	cmd.Flags().Bool("quiet", false, "Minimal output (ID only)")
}

// UsageError reports incorrect flag usage with ExitUsage
func UsageError(format string, a ...any) error {
	return &ExitCodeError{Code: ExitUsage, Err: fmt.Errorf(format, a...)}
}
