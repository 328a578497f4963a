// Package viz renders runs and lattices for the terminal.
//
//   - [EnvelopePlot]: rms beam size along the line, drawn with asciigraph
//   - [RunSummary]: styled metric block for a finished run
//   - [LatticeTable]: one styled line per element
//
// Styles are lipgloss styles and degrade to plain text when the output is
// not a terminal.
package viz
