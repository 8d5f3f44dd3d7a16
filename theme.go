package main

import "github.com/charmbracelet/lipgloss"

// globalTheme is the application-wide theme instance
var globalTheme *Theme

// Theme defines the colors and styles for the UI.
type Theme struct {
	EditorBorder   lipgloss.Color
	ChatBorder     lipgloss.Color
	TextColor      lipgloss.Color
	Muted          lipgloss.Color
	Warning        lipgloss.Color
	Error          lipgloss.Color
	PaneBackground lipgloss.Color
	DarkBorder     lipgloss.Color

	// Tab bar
	TabActive   lipgloss.Style
	TabInactive lipgloss.Style
	TabDirty    lipgloss.Style

	// Focus indicators
	FocusOnBorder  lipgloss.Color // Border color of the focused pane
	FocusOffBorder lipgloss.Color // Border color of unfocused panes

	// Text rendering
	RenderAI       func(string) lipgloss.Style
	RenderUser     func(string) lipgloss.Style
	RenderThinking func(string) lipgloss.Style

	// Borders and highlights
	Border    lipgloss.Style
	Highlight lipgloss.Style
}

// NewTheme creates and returns a new Theme with the Inkwell palette.
// It also sets the global theme instance.
func NewTheme() *Theme {
	editorBorder := lipgloss.Color("#7D56F4")
	chatBorder := lipgloss.Color("#04B575")
	textColor := lipgloss.Color("#FAFAFA")
	muted := lipgloss.Color("#626262")
	warning := lipgloss.Color("#F4DB53")
	errorColor := lipgloss.Color("#F54545")
	paneBackground := lipgloss.Color("#1A1A2E")
	darkBorder := lipgloss.Color("#3C3C3C")

	focusOnBorder := lipgloss.Color("#7D56F4")
	focusOffBorder := lipgloss.Color("#3C3C3C")

	theme := &Theme{
		EditorBorder:   editorBorder,
		ChatBorder:     chatBorder,
		TextColor:      textColor,
		Muted:          muted,
		Warning:        warning,
		Error:          errorColor,
		PaneBackground: paneBackground,
		DarkBorder:     darkBorder,

		FocusOnBorder:  focusOnBorder,
		FocusOffBorder: focusOffBorder,

		TabActive: lipgloss.NewStyle().
			Foreground(textColor).
			Background(editorBorder).
			Padding(0, 1),
		TabInactive: lipgloss.NewStyle().
			Foreground(muted).
			Padding(0, 1),
		TabDirty: lipgloss.NewStyle().
			Foreground(warning).
			Padding(0, 1),

		RenderAI: func(text string) lipgloss.Style {
			return lipgloss.NewStyle().Foreground(chatBorder).SetString(text)
		},
		RenderUser: func(text string) lipgloss.Style {
			return lipgloss.NewStyle().Foreground(editorBorder).SetString(text)
		},
		RenderThinking: func(text string) lipgloss.Style {
			return lipgloss.NewStyle().Foreground(muted).Italic(true).SetString(text)
		},

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(chatBorder),

		Highlight: lipgloss.NewStyle().
			Foreground(textColor).
			Background(editorBorder),
	}

	// Set the global theme
	globalTheme = theme

	return theme
}
