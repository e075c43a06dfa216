package notice

import "github.com/charmbracelet/lipgloss"

var (
	baseStyle = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder())

	colorStyles = map[Color]lipgloss.Style{
		ColorInfo:    baseStyle.BorderForeground(lipgloss.Color("12")),
		ColorSuccess: baseStyle.BorderForeground(lipgloss.Color("10")),
		ColorWarning: baseStyle.BorderForeground(lipgloss.Color("11")),
		ColorError:   baseStyle.BorderForeground(lipgloss.Color("9")),
	}
)

// Render formats a notice for the terminal
func Render(n Notice) string {
	style, ok := colorStyles[n.Color]
	if !ok {
		style = colorStyles[ColorInfo]
	}
	return style.Render(n.Text)
}
