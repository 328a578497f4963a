package storage

import (
	"math"

	"github.com/san-kum/beamsim/internal/experiment"
	"github.com/san-kum/beamsim/internal/moment"
)

// EnvelopeRow is one line of envelope.csv: the beam after one element.
type EnvelopeRow struct {
	Index         int       `json:"index"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	Position      float64   `json:"pos"`
	KineticEnergy float64   `json:"ek"`
	SyncPhase     float64   `json:"phase"`
	XRMS          float64   `json:"x_rms"`
	YRMS          float64   `json:"y_rms"`
	Moment0       []float64 `json:"moment0"`
}

// Envelope reduces snapshots to rms sizes and centroids.
func Envelope(snaps []experiment.Snapshot) []EnvelopeRow {
	rows := make([]EnvelopeRow, 0, len(snaps))
	for _, s := range snaps {
		rows = append(rows, EnvelopeRow{
			Index:         s.Index,
			Name:          s.Name,
			Type:          s.Type,
			Position:      s.Position,
			KineticEnergy: s.KineticEnergy,
			SyncPhase:     s.SyncPhase,
			XRMS:          rms(s.Sigma, moment.PSX),
			YRMS:          rms(s.Sigma, moment.PSY),
			Moment0:       s.Moment0,
		})
	}
	return rows
}

func rms(sigma []float64, i int) float64 {
	if len(sigma) != moment.MaxSize*moment.MaxSize {
		return 0
	}
	return math.Sqrt(math.Abs(sigma[i*moment.MaxSize+i]))
}
