package viz

import (
	"strings"
	"testing"

	"github.com/san-kum/beamsim/internal/config"
	"github.com/san-kum/beamsim/internal/experiment"
	"github.com/san-kum/beamsim/internal/metrics"
	"github.com/san-kum/beamsim/internal/sim"
	"github.com/san-kum/beamsim/internal/storage"
)

func TestEnvelopeSeries(t *testing.T) {
	rows := []storage.EnvelopeRow{{XRMS: 1, YRMS: 2}, {XRMS: 3, YRMS: 4}}
	if got := EnvelopeSeries(rows, metrics.PlaneY); got[0] != 2 || got[1] != 4 {
		t.Errorf("unexpected y series %v", got)
	}
	if got := EnvelopeSeries(rows, metrics.PlaneX); got[0] != 1 || got[1] != 3 {
		t.Errorf("unexpected x series %v", got)
	}
}

func TestEnvelopePlot(t *testing.T) {
	if got := EnvelopePlot(nil, metrics.PlaneX); !strings.Contains(got, "no envelope data") {
		t.Errorf("expected placeholder, got %q", got)
	}

	rows := []storage.EnvelopeRow{{XRMS: 1, Position: 0.5}}
	if got := EnvelopePlot(rows, metrics.PlaneX); !strings.Contains(got, "x_rms") {
		t.Errorf("expected caption in plot, got %q", got)
	}
}

func TestRunSummary(t *testing.T) {
	got := RunSummary("fodo", map[string]float64{"transmission": 1, "emittance_x": 0.5})
	if strings.Index(got, "emittance_x") > strings.Index(got, "transmission") {
		t.Error("expected metrics sorted by name")
	}
}

func TestLatticeTable(t *testing.T) {
	m, err := sim.New(experiment.NewRegistry(), config.GetPreset("fodo"))
	if err != nil {
		t.Fatal(err)
	}
	got := LatticeTable(m)
	for _, want := range []string{"MomentMatrix2", "qf", "quadrupole", "bpm"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in table:\n%s", want, got)
		}
	}
}

func TestSparklineChart(t *testing.T) {
	if got := SparklineChart(nil, 4); got != "────" {
		t.Errorf("unexpected empty sparkline %q", got)
	}
	if got := SparklineChart([]float64{0, 1, 2, 3}, 4); !strings.Contains(got, "█") {
		t.Errorf("expected full block for the maximum, got %q", got)
	}
}

func TestSparklineChartKeepsPeaks(t *testing.T) {
	values := make([]float64, 100)
	values[37] = 10
	got := SparklineChart(values, 10)
	if !strings.Contains(got, "█") {
		t.Errorf("single-sample peak lost when downsampling: %q", got)
	}
}
