package storage

import (
	"encoding/json"
	"io"
)

type ExportData struct {
	Run      RunMetadata   `json:"run"`
	Envelope []EnvelopeRow `json:"envelope"`
	Final    []Field       `json:"final,omitempty"`
}

// ExportJSON writes a stored run as one indented JSON document.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	rows, err := s.LoadEnvelope(runID)
	if err != nil {
		return err
	}
	data := ExportData{Run: *meta, Envelope: rows}

	if final, err := s.LoadFinal(runID); err == nil {
		data.Final = final.Fields
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
