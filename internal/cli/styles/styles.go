package styles

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/thenoetrevino/tablero/internal/config"
	"github.com/thenoetrevino/tablero/internal/models"
)

var (
	// Card styles
	CardStyle lipgloss.Style
	CardWidth = 80

	// Column styles for board rendering
	ColumnStyle lipgloss.Style
	ColumnWidth = 28

	// Text styles
	TitleStyle    lipgloss.Style
	SubtitleStyle lipgloss.Style
	LabelStyle    lipgloss.Style // For field labels like "Priority:", "Column:"
	ValueStyle    lipgloss.Style // For field values

	// Status styles
	SuccessStyle lipgloss.Style
	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style

	priorityColors map[models.Priority]string
)

func init() {
	Init(config.Default().ColorScheme)
}

// Init initializes all CLI styles with the given color scheme
func Init(colors config.ColorScheme) {
	CardStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(colors.Accent)).
		Padding(1, 2).
		Width(CardWidth)

	ColumnStyle = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(colors.Accent)).
		Padding(0, 1).
		Width(ColumnWidth)

	TitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(colors.Title))

	SubtitleStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(colors.Subtle))

	LabelStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(colors.Accent))

	ValueStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(colors.Normal))

	SuccessStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(colors.InfoFg)).
		Background(lipgloss.Color(colors.InfoBg)).
		Padding(0, 1)

	ErrorStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(colors.ErrorFg)).
		Background(lipgloss.Color(colors.ErrorBg)).
		Padding(0, 1)

	WarningStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(colors.WarningFg)).
		Background(lipgloss.Color(colors.WarningBg)).
		Padding(0, 1)

	priorityColors = map[models.Priority]string{
		models.PriorityLow:    colors.Low,
		models.PriorityMedium: colors.Medium,
		models.PriorityHigh:   colors.High,
		models.PriorityUrgent: colors.Urgent,
	}
}

// ═══════════════════════════════════════════════════════════════════
// HELPER FUNCTIONS
// ═══════════════════════════════════════════════════════════════════

// ColoredText renders text with a hex color
func ColoredText(text, hexColor string) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(hexColor)).
		Render(text)
}

// RenderPriority renders a priority name in its configured color
func RenderPriority(p models.Priority) string {
	return ColoredText(p.String(), priorityColors[p])
}

// RenderField renders "Label: value"
func RenderField(label, value string) string {
	return LabelStyle.Render(label+":") + " " + ValueStyle.Render(value)
}

// RenderCard wraps content in a styled card border
func RenderCard(content string) string {
	return CardStyle.Render(content)
}

// RenderCardLine renders a card as a single line: "#12 [high] Title"
func RenderCardLine(card models.Card) string {
	return fmt.Sprintf("%s %s %s",
		SubtitleStyle.Render(fmt.Sprintf("#%d", card.ID)),
		RenderPriority(card.Priority),
		ValueStyle.Render(card.Title))
}

// RenderCardDetail renders every field of a card inside a card border
func RenderCardDetail(card models.Card) string {
	lines := []string{
		TitleStyle.Render(card.Title),
		RenderField("ID", fmt.Sprintf("%d", card.ID)),
		RenderField("Column", fmt.Sprintf("%d", card.ColumnID)),
		RenderField("Position", fmt.Sprintf("%d", card.Position)),
		RenderField("Priority", RenderPriority(card.Priority)),
	}
	if card.DueDate != nil {
		lines = append(lines, RenderField("Due", card.DueDate.Format("2006-01-02")))
	}
	if card.MilestoneID != nil {
		lines = append(lines, RenderField("Milestone", fmt.Sprintf("%d", *card.MilestoneID)))
	}
	if len(card.Assignees) > 0 {
		names := make([]string, len(card.Assignees))
		for i, a := range card.Assignees {
			names[i] = string(a)
		}
		lines = append(lines, RenderField("Assignees", strings.Join(names, ", ")))
	}
	if card.Description != "" {
		lines = append(lines, "", ValueStyle.Render(card.Description))
	}
	return RenderCard(strings.Join(lines, "\n"))
}

// RenderColumnHeader renders "Title (count/limit)". A negative count
// renders the limit alone.
func RenderColumnHeader(col models.Column, count int) string {
	limit := "∞"
	if !col.Unlimited() {
		limit = fmt.Sprintf("%d", col.WipLimit)
	}
	if count < 0 {
		return TitleStyle.Render(col.Title) + " " + SubtitleStyle.Render("limit "+limit)
	}

	header := TitleStyle.Render(col.Title) + " " + SubtitleStyle.Render(fmt.Sprintf("(%d/%s)", count, limit))
	if !col.Unlimited() && count >= col.WipLimit {
		header += " " + WarningStyle.Render("FULL")
	}
	return header
}

// RenderBoard lays columns out side by side
func RenderBoard(detail models.BoardDetail) string {
	blocks := make([]string, 0, len(detail.Columns))
	for _, col := range detail.Columns {
		lines := []string{RenderColumnHeader(col.Column, len(col.Cards)), ""}
		for _, card := range col.Cards {
			lines = append(lines, RenderCardLine(card))
		}
		blocks = append(blocks, ColumnStyle.Render(strings.Join(lines, "\n")))
	}

	title := TitleStyle.Render(detail.Board.Title) + " " +
		SubtitleStyle.Render(fmt.Sprintf("board %d", detail.Board.ID))
	return lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinHorizontal(lipgloss.Top, blocks...))
}
