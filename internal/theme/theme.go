package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the run banner.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// SummaryStyle wraps the end-of-run counters.
var SummaryStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// KeyStyle renders the key half of key=value log fields.
var KeyStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// LevelStyle returns a color-coded style for the given log level name.
func LevelStyle(level string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Width(5)

	switch level {
	case "DEBUG":
		return base.Foreground(ColorGray)
	case "INFO":
		return base.Foreground(ColorBlue)
	case "WARN":
		return base.Foreground(ColorYellow)
	case "ERROR":
		return base.Foreground(ColorRed)
	default:
		return base
	}
}

// OutcomeStyle colours a counter in the run summary.
func OutcomeStyle(ok bool) lipgloss.Style {
	if ok {
		return lipgloss.NewStyle().Foreground(ColorGreen)
	}
	return lipgloss.NewStyle().Foreground(ColorRed)
}
