package console

import (
	"github.com/charmbracelet/lipgloss"
)

// Warm base16 palette shared by every console element
var (
	colorBase03 = lipgloss.Color("#5c5044") // muted
	colorBase05 = lipgloss.Color("#ab937b") // default foreground
	colorBase07 = lipgloss.Color("#f5d7b9") // lightest foreground

	colorRed    = lipgloss.Color("#d95f5f")
	colorOrange = lipgloss.Color("#eb8755")
	colorYellow = lipgloss.Color("#f5b761")
	colorGreen  = lipgloss.Color("#93b56b")
	colorCyan   = lipgloss.Color("#61afaf")
)

// Styles defines the lipgloss styles for console output
type Styles struct {
	UserPrefix      lipgloss.Style
	AssistantPrefix lipgloss.Style
	AssistantText   lipgloss.Style
	Reasoning       lipgloss.Style
	ToolNotice      lipgloss.Style
	ErrorNotice     lipgloss.Style
	WarnNotice      lipgloss.Style
	StatusLine      lipgloss.Style
	Header          lipgloss.Style
	InlineCode      lipgloss.Style
	Hint            lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		UserPrefix: lipgloss.NewStyle().
			Foreground(colorOrange).
			Bold(true),

		AssistantPrefix: lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true),

		AssistantText: lipgloss.NewStyle().
			Foreground(colorBase05),

		Reasoning: lipgloss.NewStyle().
			Foreground(colorBase03).
			Italic(true),

		ToolNotice: lipgloss.NewStyle().
			Foreground(colorCyan),

		ErrorNotice: lipgloss.NewStyle().
			Foreground(colorRed),

		WarnNotice: lipgloss.NewStyle().
			Foreground(colorYellow),

		StatusLine: lipgloss.NewStyle().
			Foreground(colorBase03),

		Header: lipgloss.NewStyle().
			Foreground(colorBase07).
			Bold(true),

		InlineCode: lipgloss.NewStyle().
			Foreground(colorYellow),

		Hint: lipgloss.NewStyle().
			Foreground(colorBase03).
			Italic(true),
	}
}
