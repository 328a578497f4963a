package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Panel frames a run summary.
	Panel = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#3a5a40")).
		Padding(0, 1)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#a3b18a"))

	Subtle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688"))

	MetricValue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true)

	MetricLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899"))

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#444466"))

	// element type colors in lattice listings
	TypeFocus  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
	TypeBend   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00"))
	TypeActive = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))

	SparkHigh = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
	SparkMid  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00"))
	SparkLow  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
)

func typeStyle(typ string) lipgloss.Style {
	switch typ {
	case "quadrupole", "solenoid":
		return TypeFocus
	case "sbend", "edipole":
		return TypeBend
	case "rfcavity", "source", "stripper":
		return TypeActive
	}
	return Subtle
}

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// SparklineChart renders values as one line of at most width blocks.
// Each block shows the peak of its bin so a waist or a maximum between
// samples is never dropped; blocks above 70% of the range are drawn hot.
func SparklineChart(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo, hi = min(lo, v), max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	bins := min(width, len(values))
	var b strings.Builder
	for i := 0; i < bins; i++ {
		from, to := i*len(values)/bins, (i+1)*len(values)/bins
		peak := values[from]
		for _, v := range values[from:to] {
			peak = max(peak, v)
		}

		norm := (peak - lo) / span
		c := string(sparkBlocks[int(norm*float64(len(sparkBlocks)-1))])
		switch {
		case norm > 0.7:
			b.WriteString(SparkHigh.Render(c))
		case norm > 0.3:
			b.WriteString(SparkMid.Render(c))
		default:
			b.WriteString(SparkLow.Render(c))
		}
	}
	return b.String()
}
