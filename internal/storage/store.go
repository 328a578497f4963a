package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/beamsim/internal/experiment"
)

const (
	metadataFile = "metadata.json"
	envelopeFile = "envelope.csv"
	finalFile    = "final.cbor"
)

var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID        string             `json:"id"`
	Lattice   string             `json:"lattice"`
	SimType   string             `json:"sim_type"`
	Timestamp time.Time          `json:"timestamp"`
	Elements  int                `json:"elements"`
	Start     int                `json:"start"`
	Max       int                `json:"max"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Save writes one run directory and returns its id. ID, Timestamp, Elements
// and Metrics of meta are filled in from the result.
func (s *Store) Save(meta RunMetadata, res *experiment.Result) (string, error) {
	runID := fmt.Sprintf("%s_%s", meta.Lattice, uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = time.Now()
	meta.Elements = len(res.Snapshots)
	meta.Metrics = res.Metrics

	if err := writeMetadata(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeEnvelope(filepath.Join(runDir, envelopeFile), Envelope(res.Snapshots)); err != nil {
		return "", err
	}
	if res.Final != nil {
		data, err := EncodeFinal(res.Final)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(runDir, finalFile), data, 0644); err != nil {
			return "", err
		}
	}

	return runID, nil
}

func writeMetadata(path string, meta RunMetadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

var envelopeHeader = []string{"index", "name", "type", "pos", "ek", "phase", "x_rms", "y_rms"}

func writeEnvelope(path string, rows []EnvelopeRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := append([]string(nil), envelopeHeader...)
	if len(rows) > 0 {
		for i := range rows[0].Moment0 {
			header = append(header, fmt.Sprintf("m%d", i))
		}
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range rows {
		row := []string{
			strconv.Itoa(r.Index),
			r.Name,
			r.Type,
			formatFloat(r.Position),
			formatFloat(r.KineticEnergy),
			formatFloat(r.SyncPhase),
			formatFloat(r.XRMS),
			formatFloat(r.YRMS),
		}
		for _, v := range r.Moment0 {
			row = append(row, formatFloat(v))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// List returns the metadata of every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := s.read(runID, metadataFile)
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadEnvelope(runID string) ([]EnvelopeRow, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, envelopeFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []EnvelopeRow{}, nil
	}

	rows := make([]EnvelopeRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		row, err := parseEnvelopeRow(rec)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", runID, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseEnvelopeRow(rec []string) (EnvelopeRow, error) {
	if len(rec) < len(envelopeHeader) {
		return EnvelopeRow{}, fmt.Errorf("envelope row has %d fields, want at least %d", len(rec), len(envelopeHeader))
	}

	idx, err := strconv.Atoi(rec[0])
	if err != nil {
		return EnvelopeRow{}, err
	}
	nums := make([]float64, 0, len(rec)-3)
	for _, field := range rec[3:] {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return EnvelopeRow{}, err
		}
		nums = append(nums, v)
	}

	return EnvelopeRow{
		Index:         idx,
		Name:          rec[1],
		Type:          rec[2],
		Position:      nums[0],
		KineticEnergy: nums[1],
		SyncPhase:     nums[2],
		XRMS:          nums[3],
		YRMS:          nums[4],
		Moment0:       nums[5:],
	}, nil
}

// LoadFinal decodes the final state snapshot of a run.
func (s *Store) LoadFinal(runID string) (*FinalState, error) {
	data, err := s.read(runID, finalFile)
	if err != nil {
		return nil, err
	}
	return DecodeFinal(data)
}

func (s *Store) read(runID, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	return data, nil
}
