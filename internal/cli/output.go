package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/thenoetrevino/tablero/internal/cli/styles"
	"github.com/thenoetrevino/tablero/internal/models"
)

// OutputFormatter handles three output modes: JSON, quiet, and human-readable
type OutputFormatter struct {
	JSON  bool
	Quiet bool

	// Out and ErrOut default to os.Stdout and os.Stderr
	Out    io.Writer
	ErrOut io.Writer
}

// Deleted is the result of a delete command
type Deleted struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id"`
}

// Success outputs successful operation result
func (f *OutputFormatter) Success(data any) error {
	if f.Quiet {
		if id, ok := idOf(data); ok {
			_, err := fmt.Fprintf(f.out(), "%d\n", id)
			return err
		}
		if ids, ok := idsOf(data); ok {
			for _, id := range ids {
				if _, err := fmt.Fprintf(f.out(), "%d\n", id); err != nil {
					return err
				}
			}
			return nil
		}
		return nil
	}

	if f.JSON {
		return json.NewEncoder(f.out()).Encode(map[string]any{
			"success": true,
			"data":    data,
		})
	}

	// Human-readable format
	return f.prettyPrint(data)
}

// Error outputs error information
func (f *OutputFormatter) Error(code string, message string) error {
	return f.ErrorWithSuggestion(code, message, "")
}

// ErrorWithSuggestion outputs error information with an optional suggestion
func (f *OutputFormatter) ErrorWithSuggestion(code string, message string, suggestion string) error {
	if f.JSON {
		errData := map[string]any{
			"code":    code,
			"message": message,
		}
		if suggestion != "" {
			errData["suggestion"] = suggestion
		}
		return json.NewEncoder(f.out()).Encode(map[string]any{
			"success": false,
			"error":   errData,
		})
	}

	// Human-readable error
	fmt.Fprintf(f.errOut(), "%s %s\n", styles.ErrorStyle.Render("Error"), message)
	if suggestion != "" {
		fmt.Fprintf(f.errOut(), "Suggestion: %s\n", suggestion)
	}
	return nil
}

// Fail reports err and returns an ExitCodeError carrying its exit code
func (f *OutputFormatter) Fail(err error) error {
	if fmtErr := f.ErrorWithSuggestion(errorCode(err), err.Error(), suggestionFor(err)); fmtErr != nil {
		fmt.Fprintf(os.Stderr, "Error formatting error message: %v\n", fmtErr)
	}
	return &ExitCodeError{Code: ExitCodeFor(err), Err: err}
}

func suggestionFor(err error) string {
	var wip *models.WipLimitError
	if errors.As(err, &wip) {
		return fmt.Sprintf("Raise the limit with: tablero column update --id=%d --wip-limit=%d", wip.ColumnID, wip.Limit+1)
	}
	if errors.Is(err, models.ErrColumnNotEmpty) {
		return "Move or delete the column's cards first"
	}
	return ""
}

// prettyPrint formats data for human-readable output
func (f *OutputFormatter) prettyPrint(data any) error {
	var out string
	switch v := data.(type) {
	case *models.BoardDetail:
		out = styles.RenderBoard(*v)
	case []models.Board:
		lines := make([]string, 0, len(v))
		for _, b := range v {
			lines = append(lines, fmt.Sprintf("%s %s",
				styles.SubtitleStyle.Render(fmt.Sprintf("#%d", b.ID)),
				styles.TitleStyle.Render(b.Title)))
		}
		if len(lines) == 0 {
			lines = append(lines, styles.SubtitleStyle.Render("No boards"))
		}
		out = strings.Join(lines, "\n")
	case []models.Column:
		lines := make([]string, 0, len(v))
		for _, col := range v {
			lines = append(lines, fmt.Sprintf("%s %s",
				styles.SubtitleStyle.Render(fmt.Sprintf("%d. #%d", col.Position, col.ID)),
				styles.RenderColumnHeader(col, -1)))
		}
		out = strings.Join(lines, "\n")
	case *models.Column:
		out = fmt.Sprintf("%s Column '%s' (ID: %d, position %d)",
			styles.SuccessStyle.Render("✓"), v.Title, v.ID, v.Position)
	case *models.Card:
		out = styles.RenderCardDetail(*v)
	case Deleted:
		out = fmt.Sprintf("%s %s %d deleted successfully", styles.SuccessStyle.Render("✓"), v.Kind, v.ID)
	default:
		out = fmt.Sprintf("%+v", data)
	}
	_, err := fmt.Fprintln(f.out(), out)
	return err
}

func (f *OutputFormatter) out() io.Writer {
	if f.Out == nil {
		return os.Stdout
	}
	return f.Out
}

func (f *OutputFormatter) errOut() io.Writer {
	if f.ErrOut == nil {
		return os.Stderr
	}
	return f.ErrOut
}

func idOf(data any) (int64, bool) {
	switch v := data.(type) {
	case *models.BoardDetail:
		return int64(v.Board.ID), true
	case *models.Column:
		return int64(v.ID), true
	case *models.Card:
		return int64(v.ID), true
	case Deleted:
		return v.ID, true
	}
	return 0, false
}

func idsOf(data any) ([]int64, bool) {
	var ids []int64
	switch v := data.(type) {
	case []models.Board:
		for _, b := range v {
			ids = append(ids, int64(b.ID))
		}
	case []models.Column:
		for _, col := range v {
			ids = append(ids, int64(col.ID))
		}
	default:
		return nil, false
	}
	return ids, true
}
