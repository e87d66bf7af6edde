// Package ui holds the lipgloss styles used by CLI rendering, with TTY
// and NO_COLOR detection.
package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette - single cyan accent.
const (
	ColorCyan     = "51"  // Primary accent - titles, highlights
	ColorCyanDim  = "37"  // Dimmed cyan - provenance badges
	ColorWhite    = "255" // Important text
	ColorGray     = "245" // Secondary text, URLs, scores
	ColorDarkGray = "238" // Separators
	ColorGreen    = "42"  // Success
	ColorRed      = "196" // Errors
	ColorYellow   = "220" // Warnings
)

// Styles holds the render styles for CLI output.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style

	// Search result rendering
	Title     lipgloss.Style
	URL       lipgloss.Style
	Score     lipgloss.Style
	Snippet   lipgloss.Style
	Highlight lipgloss.Style
	Badge     lipgloss.Style
	Separator lipgloss.Style
}

// DefaultStyles returns the colored style set.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorWhite)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGreen)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),

		Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorCyan)),
		URL:       lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)).Underline(true),
		Score:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Snippet:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWhite)),
		Highlight: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorCyan)),
		Badge:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorCyanDim)),
		Separator: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
	}
}

// NoColorStyles returns an unstyled set for plain output.
func NoColorStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle(),
		Success:   lipgloss.NewStyle(),
		Warning:   lipgloss.NewStyle(),
		Error:     lipgloss.NewStyle(),
		Dim:       lipgloss.NewStyle(),
		Title:     lipgloss.NewStyle(),
		URL:       lipgloss.NewStyle(),
		Score:     lipgloss.NewStyle(),
		Snippet:   lipgloss.NewStyle(),
		Highlight: lipgloss.NewStyle(),
		Badge:     lipgloss.NewStyle(),
		Separator: lipgloss.NewStyle(),
	}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}

// ShouldColor reports whether colored output makes sense for w: a real
// terminal, with NO_COLOR unset.
func ShouldColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// StylesFor resolves the style set for a writer, honoring an explicit
// no-color override.
func StylesFor(w io.Writer, noColor bool) Styles {
	if noColor || !ShouldColor(w) {
		return NoColorStyles()
	}
	return DefaultStyles()
}
