package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/beamsim/internal/metrics"
	"github.com/san-kum/beamsim/internal/storage"
)

type Point struct{ X, Y float64 }

// Series is one polyline of an SVG plot.
type Series struct {
	Label  string
	Color  string
	Points []Point
}

// EnvelopeSeries turns envelope rows into rms size against position.
func EnvelopeSeries(rows []storage.EnvelopeRow, p metrics.Plane) Series {
	s := Series{Label: p.String() + "_rms", Color: "#00ccff"}
	if p == metrics.PlaneY {
		s.Color = "#ff00ff"
	}
	for _, r := range rows {
		y := r.XRMS
		if p == metrics.PlaneY {
			y = r.YRMS
		}
		s.Points = append(s.Points, Point{X: r.Position, Y: y})
	}
	return s
}

func finiteSeries(series []Series) []Series {
	out := make([]Series, 0, len(series))
	for _, s := range series {
		pts := make([]Point, 0, len(s.Points))
		for _, p := range s.Points {
			if math.IsNaN(p.X) || math.IsInf(p.X, 0) || math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
				continue
			}
			pts = append(pts, p)
		}
		s.Points = pts
		out = append(out, s)
	}
	return out
}

// EnvelopeSVG plots both transverse rms envelopes of a run.
func EnvelopeSVG(rows []storage.EnvelopeRow, width, height int) string {
	return SeriesToSVG([]Series{
		EnvelopeSeries(rows, metrics.PlaneX),
		EnvelopeSeries(rows, metrics.PlaneY),
	}, width, height)
}

// SeriesToSVG draws every series with at least two finite points on shared
// axes. Points with a NaN or infinite coordinate, such as rows after the beam
// was lost, are skipped. It returns "" when nothing can be drawn.
func SeriesToSVG(series []Series, width, height int) string {
	series = finiteSeries(series)

	first := true
	var minX, maxX, minY, maxY float64
	for _, s := range series {
		if len(s.Points) < 2 {
			continue
		}
		for _, p := range s.Points {
			if first {
				minX, maxX, minY, maxY = p.X, p.X, p.Y, p.Y
				first = false
			}
			minX, maxX = min(minX, p.X), max(maxX, p.X)
			minY, maxY = min(minY, p.Y), max(maxY, p.Y)
		}
	}
	if first {
		return ""
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.05
	maxX += rangeX * 0.05
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	var sb strings.Builder

	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	legendY := 16
	for _, s := range series {
		if len(s.Points) < 2 {
			continue
		}
		fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, s.Color)
		for i, p := range s.Points {
			x := (p.X - minX) / rangeX * float64(width)
			y := float64(height) - (p.Y-minY)/rangeY*float64(height)
			if i == 0 {
				fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
			} else {
				fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
			}
		}
		sb.WriteString("\"/>\n")
		fmt.Fprintf(&sb, `<text x="8" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>`+"\n", legendY, s.Color, s.Label)
		legendY += 16
	}

	sb.WriteString("</svg>")
	return sb.String()
}
