package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/tethersim/internal/analysis"
	"github.com/san-kum/tethersim/internal/automation"
	"github.com/san-kum/tethersim/internal/config"
	"github.com/san-kum/tethersim/internal/experiment"
	"github.com/san-kum/tethersim/internal/export"
	"github.com/san-kum/tethersim/internal/logging"
	"github.com/san-kum/tethersim/internal/metrics"
	"github.com/san-kum/tethersim/internal/scene"
	"github.com/san-kum/tethersim/internal/server"
	"github.com/san-kum/tethersim/internal/storage"
	"github.com/san-kum/tethersim/internal/verlet"
	"github.com/san-kum/tethersim/internal/viz"
)

var (
	dataDir    string
	logLevel   string
	configFile string
	saveConfig string

	dt         float64
	steps      int
	iterations int
	workers    int
	isolation  string
	tear       string
	tearStep   int
	tearCount  int

	frameRate int
	addr      string
	hz        float64
	outFile   string
	svgFile   string
	traceSVG  string

	sweepIterations []int
	sweepMetric     string
	sweepParallel   int

	logger = logging.NewNop()
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "tethersim",
		Short:         "verlet point-mass and link simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logger = logging.New(level)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".tethersim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml), overrides the preset")

	runCmd := &cobra.Command{
		Use:   "run [scene[/preset]]",
		Short: "run a simulation and save it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addSimFlags(runCmd)
	runCmd.Flags().StringVar(&saveConfig, "save-config", "", "write the effective config to this path")

	liveCmd := &cobra.Command{
		Use:   "live [scene[/preset]]",
		Short: "run a simulation with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addSimFlags(liveCmd)
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate")

	serveCmd := &cobra.Command{
		Use:   "serve [scene[/preset]]",
		Short: "step a simulation continuously and serve it over http",
		Args:  cobra.MaximumNArgs(1),
		RunE:  serve,
	}
	addSimFlags(serveCmd)
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	serveCmd.Flags().Float64Var(&hz, "hz", 60, "steps per second")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the tracked point and strain of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of the tracked point",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata, trace and final snapshot as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")
	exportCmd.Flags().StringVar(&svgFile, "svg", "", "also draw the final snapshot to this svg file")
	exportCmd.Flags().StringVar(&traceSVG, "trace-svg", "", "also draw the tracked point's path to this svg file")

	presetsCmd := &cobra.Command{
		Use:   "presets [scene]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	benchCmd := &cobra.Command{
		Use:   "bench [scene[/preset]]",
		Short: "benchmark step throughput",
		Args:  cobra.MaximumNArgs(1),
		RunE:  bench,
	}
	addSimFlags(benchCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep [scene[/preset]]",
		Short: "compare relaxation iteration counts on the same scene",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sweep,
	}
	addSimFlags(sweepCmd)
	sweepCmd.Flags().IntSliceVar(&sweepIterations, "over", []int{1, 3, 7, 15, 30}, "iteration counts to compare")
	sweepCmd.Flags().StringVar(&sweepMetric, "metric", "max_strain", "metric to minimise")
	sweepCmd.Flags().IntVar(&sweepParallel, "parallel", 0, "concurrent runs (0 = all at once)")

	scriptCmd := &cobra.Command{
		Use:   "script [scenario.yaml]",
		Short: "run a scripted sequence of simulations",
		Args:  cobra.ExactArgs(1),
		RunE:  runScript,
	}

	rootCmd.AddCommand(runCmd, liveCmd, serveCmd, listCmd, plotCmd, analyzeCmd, exportCmd, presetsCmd, benchCmd, sweepCmd, scriptCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addSimFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "number of steps")
	cmd.Flags().IntVar(&iterations, "iterations", config.DefaultIterations, "relaxation iterations per step")
	cmd.Flags().IntVar(&workers, "workers", 0, "integration workers (0 = one per cpu)")
	cmd.Flags().StringVar(&isolation, "isolation", "keep", "isolated point policy after a break (keep, remove)")
	cmd.Flags().StringVar(&tear, "tear", "", "tear links near x,y,radius")
	cmd.Flags().IntVar(&tearStep, "tear-step", 1, "step at which --tear applies")
	cmd.Flags().IntVar(&tearCount, "tear-count", 1, "maximum links broken by --tear")
}

// loadConfig resolves the preset argument, then the config file, then any
// flags set on the command line.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	ref := config.DefaultScene
	if len(args) > 0 {
		ref = args[0]
	}
	cfg, err := config.Resolve(ref)
	if err != nil {
		return nil, err
	}

	if configFile != "" {
		cfg, err = config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("steps") {
		cfg.Steps = steps
	}
	if flags.Changed("iterations") {
		cfg.Solver.Iterations = iterations
	}
	if flags.Changed("workers") {
		cfg.Solver.Workers = workers
	}
	if flags.Changed("isolation") {
		cfg.Solver.Isolation = isolation
	}
	if flags.Changed("tear") {
		x, y, r, err := parseTear(tear)
		if err != nil {
			return nil, err
		}
		cfg.Tear = config.TearConfig{Step: tearStep, X: x, Y: y, Radius: r, Count: tearCount}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseTear(s string) (x, y, r float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("--tear wants x,y,radius, got %q", s)
	}
	vals := make([]float64, 3)
	for i, p := range parts {
		vals[i], err = strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("--tear: %w", err)
		}
	}
	return vals[0], vals[1], vals[2], nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if saveConfig != "" {
		if err := config.Save(saveConfig, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp := experiment.New(cfg, logger)
	if err := exp.Setup(metrics.Defaults(-cfg.Solver.Gravity.Y, cfg.Dt)); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("running simulation", "scene", cfg.Scene, "steps", cfg.Steps, "dt", cfg.Dt, "iterations", cfg.Solver.Iterations)
	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}

	runID, err := st.Save(cfg, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", result.Elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	fmt.Printf("points: %d, links: %d\n", len(result.Final.Points), len(result.Final.Links))
	if result.Torn > 0 {
		fmt.Printf("torn: %d\n", result.Torn)
	}
	if result.Degenerate > 0 {
		fmt.Printf("degenerate link visits: %d\n", result.Degenerate)
	}

	fmt.Println("\nmetrics:")
	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, result.Metrics[name])
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	// The TUI owns the terminal.
	logger = logging.NewNop()
	sc, err := scene.Build(cfg, logger)
	if err != nil {
		return err
	}
	return viz.Run(sc, logger, frameRate)
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if hz <= 0 {
		return fmt.Errorf("--hz must be positive, got %v", hz)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sc, err := scene.Build(cfg, logger, verlet.WithObserver(metrics.NewCollector(reg)))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.NewHandler(sc.Solver, reg, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return stepLoop(ctx, sc, time.Duration(float64(time.Second)/hz))
	})
	g.Go(func() error {
		logger.Info("serving", "addr", addr, "scene", cfg.Scene, "hz", hz)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// stepLoop advances sc once per period until ctx is done. A configured tear
// fires once when its step is reached.
func stepLoop(ctx context.Context, sc *scene.Scene, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		pending, err := sc.Solver.StepAsync(sc.Config.Dt)
		if err != nil {
			return err
		}
		stats := pending.Wait()

		if t := sc.Config.Tear; t.Step > 0 && stats.Step == t.Step {
			n, err := sc.Tear(t.X, t.Y, t.Radius, t.Count)
			if err != nil {
				return err
			}
			logger.Info("tore links", "step", stats.Step, "count", n)
		}
		if stats.Degenerate > 0 {
			logger.Debug("degenerate links skipped", "step", stats.Step, "count", stats.Degenerate)
		}
	}
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
	fmt.Fprintln(w, "ID\tSCENE\tTIME\tSTEPS\tDT\tITER\tPOINTS\tLINKS\tTORN")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.4fs\t%d\t%d\t%d\t%d\n",
			run.ID,
			run.Scene,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Steps,
			run.Dt,
			run.Iterations,
			run.Points,
			run.Links,
			run.Torn,
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

	samples, err := st.LoadTrace(runID)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scene: %s\n", meta.Scene)
	fmt.Printf("samples: %d\n\n", len(samples))

	height := make([]float64, len(samples))
	strain := make([]float64, len(samples))
	for i, s := range samples {
		height[i] = s.Position.Y
		strain[i] = s.Strain
	}

	series := []struct {
		data    []float64
		caption string
	}{
		{height, "tracked point y"},
		{strain, "max link strain"},
	}
	for _, s := range series {
		graph := asciigraph.Plot(s.data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(s.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadTrace(runID)
	if err != nil {
		return err
	}
	if len(samples) < 4 {
		return fmt.Errorf("no data")
	}

	fmt.Printf("frequency analysis: %s\n", meta.ID)
	fmt.Printf("scene: %s\n\n", meta.Scene)

	data := make([]float64, len(samples))
	for i, s := range samples {
		data[i] = s.Position.Y
	}

	ps := analysis.PowerSpectrum(analysis.Detrend(data))
	plotData := ps[:len(ps)/4+1]
	graph := asciigraph.Plot(plotData,
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption("power spectrum (tracked y)"),
	)
	fmt.Println(graph)
	fmt.Println()

	freq, ok := analysis.DominantFrequency(data, meta.Dt)
	if !ok {
		fmt.Println("no dominant frequency")
		return nil
	}
	fmt.Printf("dominant frequency: %.3f hz\n", freq)
	fmt.Printf("period: %.3f s\n", 1.0/freq)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	data, err := st.Export(args[0])
	if err != nil {
		return err
	}
	if svgFile != "" {
		if err := export.WriteFile(svgFile, export.SnapshotToSVG(*data.Snapshot, 800, 600)); err != nil {
			return err
		}
	}
	if traceSVG != "" {
		svg := export.TrajectoryToSVG(data.Trace, 800, 600, "#00ff88")
		if svg == "" {
			return fmt.Errorf("run %s has too few samples to draw", args[0])
		}
		if err := export.WriteFile(traceSVG, svg); err != nil {
			return err
		}
	}
	if outFile != "" {
		if err := storage.ExportJSON(outFile, data); err != nil {
			return err
		}
		logger.Info("exported run", "run", args[0], "path", outFile)
		return nil
	}
	return storage.WriteJSON(os.Stdout, data)
}

func listPresets(cmd *cobra.Command, args []string) error {
	scenes := scene.Names()
	if len(args) > 0 {
		scenes = args[:1]
	}
	for _, name := range scenes {
		presets := config.ListPresets(name)
		if len(presets) == 0 {
			fmt.Printf("no presets for scene: %s\n", name)
			continue
		}
		fmt.Printf("presets for %s:\n", name)
		for _, p := range presets {
			marker := ""
			if p == config.DefaultPresetName(name) {
				marker = " (default)"
			}
			fmt.Printf("  %s%s\n", p, marker)
		}
	}
	return nil
}

func bench(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	iterationCounts := []int{1, cfg.Solver.Iterations, 4 * cfg.Solver.Iterations}
	workerCounts := []int{1, verlet.DefaultWorkers()}

	fmt.Printf("benchmarking %s (%d steps)\n\n", cfg.Scene, cfg.Steps)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ITERATIONS\tWORKERS\tPOINTS\tLINKS\tTIME\tSTEPS/SEC\tMAX ERROR")

	for _, iters := range iterationCounts {
		for _, n := range workerCounts {
			c := cfg.Clone()
			c.Solver.Iterations = iters
			sc, err := scene.Build(c, logging.NewNop(), verlet.WithWorkers(n))
			if err != nil {
				return err
			}

			var last verlet.StepStats
			start := time.Now()
			for i := 0; i < c.Steps; i++ {
				last, err = sc.Solver.Step(c.Dt)
				if err != nil {
					return err
				}
			}
			elapsed := time.Since(start)

			fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%v\t%.0f\t%.2e\n",
				iters, n, last.Points, last.Links, elapsed,
				float64(c.Steps)/elapsed.Seconds(), last.MaxError)
		}
	}

	return w.Flush()
}

func sweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("sweeping", "scene", cfg.Scene, "iterations", sweepIterations, "steps", cfg.Steps)
	points, err := experiment.Sweep(ctx, cfg, sweepIterations, sweepParallel, logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ITERATIONS\tMAX STRAIN\tMEAN STRETCH\tENERGY DRIFT\tTIME")
	for _, p := range points {
		m := p.Result.Metrics
		fmt.Fprintf(w, "%d\t%.4f\t%.4f\t%.2e\t%v\n",
			p.Iterations, m["max_strain"], m["mean_stretch"], m["energy_drift"], p.Result.Elapsed)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	best, ok := experiment.Best(points, sweepMetric)
	if !ok {
		return fmt.Errorf("unknown metric: %s", sweepMetric)
	}
	fmt.Printf("\nlowest %s: %d iterations (%.6f)\n", sweepMetric, best.Iterations, best.Result.Metrics[sweepMetric])
	return nil
}

func runScript(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := automation.RunScenario(ctx, scenario, st, logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tRUN\tSTEPS\tLINKS\tTORN\tMAX STRAIN")
	for _, r := range results {
		runID := r.RunID
		if runID == "" {
			runID = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%.4f\n",
			r.Name, runID, r.Result.StepsTaken, len(r.Result.Final.Links), r.Result.Torn, r.Result.Metrics["max_strain"])
	}
	return w.Flush()
}
