package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/beamsim/internal/analysis"
	"github.com/san-kum/beamsim/internal/automation"
	"github.com/san-kum/beamsim/internal/config"
	"github.com/san-kum/beamsim/internal/experiment"
	"github.com/san-kum/beamsim/internal/export"
	"github.com/san-kum/beamsim/internal/metrics"
	"github.com/san-kum/beamsim/internal/moment"
	"github.com/san-kum/beamsim/internal/optim"
	"github.com/san-kum/beamsim/internal/sim"
	"github.com/san-kum/beamsim/internal/storage"
	"github.com/san-kum/beamsim/internal/telemetry"
	"github.com/san-kum/beamsim/internal/viz"
)

var (
	env     config.Env
	dataDir string
	// run window
	start  int
	maxN   int
	noSave bool
	// beam config file, overrides the lattice's own state keys
	beamFile string
	plane    string
	verbose  bool
	svgPath  string

	sweepElem  string
	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepSteps int

	mcTrials   int
	mcPerturb  float64
	mcAperture float64
	mcSeed     int64

	optParams []string
	optMetric string
	turns     int
)

func main() {
	var err error
	env, err = config.LoadEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: env.SlogLevel()})))

	rootCmd := &cobra.Command{
		Use:          "beamsim",
		Short:        "envelope tracking through beam-line lattices",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", env.DataDir, "data directory")

	runCmd := &cobra.Command{
		Use:   "run [lattice.yaml|preset]",
		Short: "propagate a beam through a lattice",
		Args:  cobra.ExactArgs(1),
		RunE:  runLattice,
	}
	runCmd.Flags().IntVar(&start, "start", 0, "index of the first element")
	runCmd.Flags().IntVar(&maxN, "max", -1, "maximum number of elements, negative for all")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().StringVar(&beamFile, "beam", "", "initial beam config (yaml)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the rms envelope of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&plane, "plane", "both", "x, y or both")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as JSON, or its envelope as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&svgPath, "svg", "", "write the envelope plot to this SVG file instead")

	showCmd := &cobra.Command{
		Use:   "show [lattice.yaml|preset]",
		Short: "describe a lattice",
		Args:  cobra.ExactArgs(1),
		RunE:  showLattice,
	}
	showCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print transfer matrices")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in lattices",
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range config.ListPresets() {
				fmt.Printf("  %s\n", p)
			}
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [preset] [path]",
		Short: "write a preset lattice as yaml",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := config.GetPreset(args[0])
			if c == nil {
				return fmt.Errorf("unknown preset: %s", args[0])
			}
			return config.Save(args[1], c)
		},
	}

	typesCmd := &cobra.Command{
		Use:   "types",
		Short: "list simulation and element types",
		Run: func(cmd *cobra.Command, args []string) {
			reg := experiment.NewRegistry()
			for _, st := range reg.SimTypes() {
				fmt.Printf("%s: %s\n", st, strings.Join(reg.ElementTypes(st), ", "))
			}
		},
	}

	batchCmd := &cobra.Command{
		Use:   "batch [scenario.yaml]",
		Short: "run a scripted scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	batchCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store any step")

	sweepCmd := &cobra.Command{
		Use:   "sweep [lattice.yaml|preset]",
		Short: "scan one element parameter",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&sweepElem, "element", "", "element name")
	sweepCmd.Flags().StringVar(&sweepParam, "param", "K", "parameter key")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 1, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 11, "number of values")
	_ = sweepCmd.MarkFlagRequired("element")

	mcCmd := &cobra.Command{
		Use:   "montecarlo [lattice.yaml|preset]",
		Short: "propagate randomly displaced beams",
		Args:  cobra.ExactArgs(1),
		RunE:  runMonteCarlo,
	}
	mcCmd.Flags().IntVar(&mcTrials, "trials", 100, "number of beams")
	mcCmd.Flags().Float64Var(&mcPerturb, "perturb", 0.5, "half-width of the x/y offsets [mm]")
	mcCmd.Flags().Float64Var(&mcAperture, "aperture", 2, "final centroid aperture [mm]")
	mcCmd.Flags().Int64Var(&mcSeed, "seed", 0, "random seed, 0 for time based")

	optimizeCmd := &cobra.Command{
		Use:   "optimize [lattice.yaml|preset]",
		Short: "grid search element parameters against a metric",
		Args:  cobra.ExactArgs(1),
		RunE:  runOptimize,
	}
	optimizeCmd.Flags().StringArrayVar(&optParams, "param", nil, "element.key=lo:hi:n, repeatable")
	optimizeCmd.Flags().StringVar(&optMetric, "metric", "envelope_max_x", "metric to minimize")
	_ = optimizeCmd.MarkFlagRequired("param")

	tuneCmd := &cobra.Command{
		Use:   "tune [lattice.yaml|preset]",
		Short: "betatron tune of a lattice taken as one periodic cell",
		Args:  cobra.ExactArgs(1),
		RunE:  runTune,
	}
	tuneCmd.Flags().IntVar(&turns, "turns", 512, "turns tracked for the spectral estimate")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, showCmd, presetsCmd, initCmd, typesCmd,
		batchCmd, sweepCmd, mcCmd, optimizeCmd, tuneCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadLattice resolves arg as a preset name first, then as a yaml path.
func loadLattice(arg string) (*config.Config, string, error) {
	if c := config.GetPreset(arg); c != nil {
		return c, arg, nil
	}
	c, err := config.Load(arg)
	if err != nil {
		return nil, "", err
	}
	name := strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))
	return c, name, nil
}

func runLattice(cmd *cobra.Command, args []string) error {
	lattice, name, err := loadLattice(args[0])
	if err != nil {
		return err
	}

	cfg := experiment.Config{Lattice: lattice, Start: start, Max: maxN}
	if beamFile != "" {
		if cfg.Beam, err = config.Load(beamFile); err != nil {
			return err
		}
	}

	exp := experiment.New(experiment.NewRegistry(), cfg)
	if err := exp.Setup(experiment.DefaultMetrics()...); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	began := time.Now()
	res, err := exp.Run(ctx)
	if err != nil {
		return err
	}

	collector := telemetry.NewCollector()
	collector.ObserveMachine(exp.Machine())
	collector.ObserveRun(time.Since(began))
	if env.MetricsFile != "" {
		if err := collector.WriteTextfile(env.MetricsFile); err != nil {
			slog.Warn("writing metrics textfile", "path", env.MetricsFile, "err", err)
		}
	}

	title := fmt.Sprintf("%s  %d elements", name, len(res.Snapshots))
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(storage.RunMetadata{
			Lattice: name,
			SimType: exp.Machine().SimType(),
			Start:   start,
			Max:     maxN,
		}, res)
		if err != nil {
			return err
		}
		title = fmt.Sprintf("%s  %s", runID, viz.Subtle.Render(fmt.Sprintf("%d elements", len(res.Snapshots))))
	}

	fmt.Println(viz.RunSummary(title, res.Metrics))

	rows := storage.Envelope(res.Snapshots)
	fmt.Printf("x_rms %s\n", viz.SparklineChart(viz.EnvelopeSeries(rows, metrics.PlaneX), 60))
	fmt.Printf("y_rms %s\n", viz.SparklineChart(viz.EnvelopeSeries(rows, metrics.PlaneY), 60))
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLATTICE\tTIME\tELEMENTS\tX_MAX\tY_MAX\tTRANSMISSION")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.4g\t%.4g\t%.2f\n",
			run.ID,
			run.Lattice,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Elements,
			run.Metrics["envelope_max_x"],
			run.Metrics["envelope_max_y"],
			run.Metrics["transmission"],
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	rows, err := st.LoadEnvelope(runID)
	if err != nil {
		return err
	}

	var planes []metrics.Plane
	switch plane {
	case "x":
		planes = []metrics.Plane{metrics.PlaneX}
	case "y":
		planes = []metrics.Plane{metrics.PlaneY}
	case "both":
		planes = []metrics.Plane{metrics.PlaneX, metrics.PlaneY}
	default:
		return fmt.Errorf("unknown plane: %s", plane)
	}

	fmt.Println(viz.HeaderStyle.Render(fmt.Sprintf("run: %s  lattice: %s", meta.ID, meta.Lattice)))
	for _, p := range planes {
		fmt.Println(viz.EnvelopePlot(rows, p))
		fmt.Println()
	}
	return nil
}

func showLattice(cmd *cobra.Command, args []string) error {
	lattice, _, err := loadLattice(args[0])
	if err != nil {
		return err
	}
	m, err := sim.New(experiment.NewRegistry(), lattice)
	if err != nil {
		return err
	}

	if verbose {
		m.Show(os.Stdout)
		return nil
	}
	fmt.Println(viz.LatticeTable(m))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	if svgPath == "" {
		return st.ExportJSON(os.Stdout, args[0])
	}

	rows, err := st.LoadEnvelope(args[0])
	if err != nil {
		return err
	}
	svg := export.EnvelopeSVG(rows, 800, 400)
	if svg == "" {
		return fmt.Errorf("run %s has too few elements to plot", args[0])
	}
	if err := os.WriteFile(svgPath, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", svgPath)
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	var st *storage.Store
	if !noSave {
		st = storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := automation.RunScenario(ctx, scenario, experiment.NewRegistry(), st)
	if err != nil {
		return err
	}
	for i, r := range results {
		fmt.Println(viz.RunSummary(fmt.Sprintf("%s step %d: %s", scenario.Name, i+1, scenario.Steps[i].Lattice), r.Metrics))
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	lattice, name, err := loadLattice(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := automation.RunSweep(ctx, &automation.ParameterSweep{
		Lattice:  lattice,
		Element:  sweepElem,
		Param:    sweepParam,
		Min:      sweepMin,
		Max:      sweepMax,
		NumSteps: sweepSteps,
	}, experiment.NewRegistry())
	if err != nil {
		return err
	}

	fmt.Println(viz.HeaderStyle.Render(fmt.Sprintf("%s: %s.%s", name, sweepElem, sweepParam)))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VALUE\tX_MAX\tY_MAX\tEMIT_X\tEMIT_Y\tTRANSMISSION")
	for _, r := range results {
		fmt.Fprintf(w, "%.4g\t%.4g\t%.4g\t%.4g\t%.4g\t%.2f\n",
			r.ParamValue,
			r.Metrics["envelope_max_x"],
			r.Metrics["envelope_max_y"],
			r.Metrics["emittance_x"],
			r.Metrics["emittance_y"],
			r.Metrics["transmission"],
		)
	}
	return w.Flush()
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	lattice, name, err := loadLattice(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := automation.RunMonteCarlo(ctx, &automation.MonteCarloConfig{
		Lattice:      lattice,
		Perturbation: mcPerturb,
		Aperture:     mcAperture,
		NumTrials:    mcTrials,
		Seed:         mcSeed,
	}, experiment.NewRegistry())
	if err != nil {
		return err
	}

	stable, lost := automation.MonteCarloStats(results)
	fmt.Println(viz.RunSummary(fmt.Sprintf("%s  %d trials", name, len(results)), map[string]float64{
		"inside_aperture":  float64(stable),
		"outside_aperture": float64(lost),
	}))
	return nil
}

func runOptimize(cmd *cobra.Command, args []string) error {
	lattice, name, err := loadLattice(args[0])
	if err != nil {
		return err
	}

	names := make([]string, 0, len(optParams))
	ranges := make([][]float64, 0, len(optParams))
	for _, spec := range optParams {
		n, vals, err := parseRange(spec)
		if err != nil {
			return err
		}
		names = append(names, n)
		ranges = append(ranges, vals)
	}

	exp := experiment.New(experiment.NewRegistry(), experiment.Config{Lattice: lattice, Max: sim.All})
	if err := exp.Setup(experiment.DefaultMetrics()...); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	best, val, err := optim.NewGridSearch(names, ranges).Search(ctx, exp, optMetric)
	if err != nil {
		return err
	}
	if best == nil {
		return fmt.Errorf("no grid point gave a finite %s", optMetric)
	}
	best[optMetric] = val
	fmt.Println(viz.RunSummary(fmt.Sprintf("%s  best %s", name, optMetric), best))
	return nil
}

// parseRange reads "element.key=lo:hi:n".
func parseRange(spec string) (string, []float64, error) {
	name, rng, ok := strings.Cut(spec, "=")
	parts := strings.Split(rng, ":")
	if !ok || len(parts) != 3 {
		return "", nil, fmt.Errorf("parameter %q: want element.key=lo:hi:n", spec)
	}
	lo, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return "", nil, fmt.Errorf("parameter %q: %w", spec, err)
	}
	hi, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return "", nil, fmt.Errorf("parameter %q: %w", spec, err)
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", nil, fmt.Errorf("parameter %q: %w", spec, err)
	}
	return name, optim.Linspace(lo, hi, n), nil
}

func runTune(cmd *cobra.Command, args []string) error {
	lattice, name, err := loadLattice(args[0])
	if err != nil {
		return err
	}
	m, err := sim.New(experiment.NewRegistry(), lattice)
	if err != nil {
		return err
	}

	vals := make(map[string]float64)
	for _, p := range []metrics.Plane{metrics.PlaneX, metrics.PlaneY} {
		nu, err := analysis.PeriodicTune(m, p)
		if err != nil {
			slog.Warn("no periodic tune", "plane", p, "err", err)
			continue
		}
		vals["tune_"+p.String()] = nu

		s, err := m.AllocState(lattice)
		if err != nil {
			return err
		}
		st, ok := s.(*moment.State)
		if !ok {
			return fmt.Errorf("%w: tracking needs %s states", sim.ErrIncompatibleType, moment.SimType)
		}
		st.Moment0.SetVec(int(p), 1)

		seq, err := analysis.TrackCentroid(m, st, turns, p)
		if err != nil {
			return err
		}
		if spectral, err := analysis.SpectralTune(seq); err == nil {
			vals["spectral_tune_"+p.String()] = spectral
		}
	}

	fmt.Println(viz.RunSummary(name, vals))
	return nil
}
