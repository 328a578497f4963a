// Package telemetry exports propagation counters in the prometheus
// exposition format, for scraping or node-exporter textfiles.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/san-kum/beamsim/internal/sim"
)

// counted is implemented by elements that track their own work.
type counted interface {
	Recomputes() int
	Advances() int
}

type Collector struct {
	reg *prometheus.Registry

	recomputes  *prometheus.CounterVec
	advances    *prometheus.CounterVec
	runDuration prometheus.Histogram

	// last seen element counters, so repeated observation only adds deltas
	seen map[sim.Element][2]int
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		reg: reg,
		recomputes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "beamsim_transfer_recompute_total",
			Help: "Energy-dependent transfer matrix recomputations by element type",
		}, []string{"element_type"}),
		advances: f.NewCounterVec(prometheus.CounterOpts{
			Name: "beamsim_element_advance_total",
			Help: "States advanced through an element, by element type",
		}, []string{"element_type"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "beamsim_run_duration_seconds",
			Help:    "Wall time of one lattice propagation",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
		}),
		seen: make(map[sim.Element][2]int),
	}
}

// ObserveMachine adds the counters accumulated by m's elements since the
// previous call.
func (c *Collector) ObserveMachine(m *sim.Machine) {
	for _, e := range m.Elements() {
		ce, ok := e.(counted)
		if !ok {
			continue
		}
		prev := c.seen[e]
		rc, ac := ce.Recomputes(), ce.Advances()

		c.recomputes.WithLabelValues(e.TypeName()).Add(float64(rc - prev[0]))
		c.advances.WithLabelValues(e.TypeName()).Add(float64(ac - prev[1]))
		c.seen[e] = [2]int{rc, ac}
	}
}

func (c *Collector) ObserveRun(d time.Duration) {
	c.runDuration.Observe(d.Seconds())
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// WriteTextfile writes every metric to path atomically.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.reg)
}
