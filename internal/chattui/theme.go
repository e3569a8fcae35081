package chattui

import "github.com/charmbracelet/lipgloss"

// Theme names a palette.
type Theme string

const (
	ThemeDefault      Theme = "default"
	ThemeHighContrast Theme = "high-contrast"
)

// palette holds the ANSI-256 color tokens the views render with.
type palette struct {
	Foreground string
	Muted      string
	Accent     string
	Border     string

	Header string
	Footer string

	Own      string
	Other    string
	Pending  string
	Failed   string
	Badge    string
	Selected string
	Toast    string
}

var palettes = map[Theme]palette{
	ThemeDefault: {
		Foreground: "252",
		Muted:      "245",
		Accent:     "75",
		Border:     "240",
		Header:     "24",
		Footer:     "236",
		Own:        "81",
		Other:      "147",
		Pending:    "220",
		Failed:     "203",
		Badge:      "41",
		Selected:   "75",
		Toast:      "60",
	},
	ThemeHighContrast: {
		Foreground: "231",
		Muted:      "250",
		Accent:     "51",
		Border:     "231",
		Header:     "19",
		Footer:     "16",
		Own:        "87",
		Other:      "225",
		Pending:    "226",
		Failed:     "196",
		Badge:      "46",
		Selected:   "51",
		Toast:      "90",
	},
}

func paletteFor(theme Theme) palette {
	if p, ok := palettes[theme]; ok {
		return p
	}
	return palettes[ThemeDefault]
}

func (p palette) fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

func (p palette) muted() lipgloss.Style {
	return p.fg(p.Muted)
}

func (p palette) border(active bool) lipgloss.Style {
	color := p.Border
	if active {
		color = p.Accent
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(color))
}
