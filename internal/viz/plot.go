package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/beamsim/internal/metrics"
	"github.com/san-kum/beamsim/internal/sim"
	"github.com/san-kum/beamsim/internal/storage"
)

// EnvelopeSeries extracts the rms size of one plane per element.
func EnvelopeSeries(rows []storage.EnvelopeRow, p metrics.Plane) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		if p == metrics.PlaneY {
			out[i] = r.YRMS
		} else {
			out[i] = r.XRMS
		}
	}
	return out
}

// EnvelopePlot draws the rms envelope of plane p against element index.
func EnvelopePlot(rows []storage.EnvelopeRow, p metrics.Plane) string {
	data := EnvelopeSeries(rows, p)
	if len(data) == 0 {
		return Subtle.Render("no envelope data")
	}
	if len(data) == 1 {
		data = append(data, data[0])
	}

	end := rows[len(rows)-1].Position
	return asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("%s_rms [mm] over %d elements, s = %.3g m", p, len(rows), end)),
	)
}

// RunSummary renders metrics in a panel, sorted by name.
func RunSummary(title string, vals map[string]float64) string {
	names := make([]string, 0, len(vals))
	width := 0
	for name := range vals {
		names = append(names, name)
		if len(name) > width {
			width = len(name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(Title.Render(title))
	for _, name := range names {
		b.WriteString("\n")
		b.WriteString(MetricLabel.Render(fmt.Sprintf("%-*s", width, name)))
		b.WriteString("  ")
		b.WriteString(MetricValue.Render(fmt.Sprintf("%.6g", vals[name])))
	}
	return Panel.Render(b.String())
}

// LatticeTable lists the elements of m, one per line.
func LatticeTable(m *sim.Machine) string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render(fmt.Sprintf("%s  %d elements", m.SimType(), m.Len())))
	for _, e := range m.Elements() {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%4d  %-12s %s", e.Index(), e.Name(), typeStyle(e.TypeName()).Render(e.TypeName()))
	}
	return b.String()
}
