package style

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	Cyan    = lipgloss.Color("#00E5FF") // Primary highlight
	Magenta = lipgloss.Color("#FF1B6B") // Accent
	Yellow  = lipgloss.Color("#FFB500") // Warnings
	Green   = lipgloss.Color("#2AFFAA") // Positive PnL / success
	Red     = lipgloss.Color("#FF5555") // Negative PnL / errors
	Blue    = lipgloss.Color("#3B82F6") // Info

	Base01 = lipgloss.Color("#6C7280") // Muted text
	Base2  = lipgloss.Color("#ECEFF4") // Primary text
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(Cyan).
			Bold(true).
			Padding(0, 1)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Base01).
			Padding(0, 1)

	ActivePanelStyle = PanelStyle.
				BorderForeground(Cyan)

	MutedStyle   = lipgloss.NewStyle().Foreground(Base01)
	TextStyle    = lipgloss.NewStyle().Foreground(Base2)
	ProfitStyle  = lipgloss.NewStyle().Foreground(Green)
	LossStyle    = lipgloss.NewStyle().Foreground(Red)
	WarningStyle = lipgloss.NewStyle().Foreground(Yellow)
	InfoStyle    = lipgloss.NewStyle().Foreground(Blue)
	AccentStyle  = lipgloss.NewStyle().Foreground(Magenta).Bold(true)
)

// LevelStyle colors a log level.
func LevelStyle(level string) lipgloss.Style {
	switch level {
	case "error", "fatal", "panic", "dpanic":
		return LossStyle
	case "warn":
		return WarningStyle
	case "debug":
		return MutedStyle
	default:
		return InfoStyle
	}
}

// ChangeStyle colors a signed ratio.
func ChangeStyle(negative bool) lipgloss.Style {
	if negative {
		return LossStyle
	}
	return ProfitStyle
}
