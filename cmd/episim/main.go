package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/episim/internal/config"
	"github.com/san-kum/episim/internal/experiment"
	"github.com/san-kum/episim/internal/export"
	"github.com/san-kum/episim/internal/logging"
	"github.com/san-kum/episim/internal/optim"
	"github.com/san-kum/episim/internal/sim"
	"github.com/san-kum/episim/internal/storage"
	"github.com/san-kum/episim/internal/viz"
)

var (
	dataDir    string
	logLevel   string
	configFile string
	preset     string
	// Shared model parameters
	beta       float64
	gamma      float64
	days       float64
	resolution int
	// Solver
	integrator string
	metricSet  string
	rtol       float64
	atol       float64
	dt         float64
	workers    int
	// Output
	outputPath string
	noSave     bool
	showPlot   bool
	svgOutput  string
	jsonOutput string
	// Charts
	plotWidth   int
	plotHeight  int
	onlySpecies string
	// Sweep
	sweepParams []string
	minimize    string
)

var logger *slog.Logger

func main() {
	rootCmd := &cobra.Command{
		Use:          "episim",
		Short:        "multi-species SIRV epidemic simulator",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.New(logLevel, os.Stderr)
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "run store directory (default from config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "simulate every species and write the result table",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addScenarioFlags(runCmd)
	runCmd.Flags().StringVarP(&outputPath, "output", "o", config.DefaultOutput, "CSV output path")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not record the run in the store")
	runCmd.Flags().BoolVar(&showPlot, "plot", false, "print a chart per species")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run in the terminal (latest by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "chart width")
	plotCmd.Flags().IntVar(&plotHeight, "height", 15, "chart height")
	plotCmd.Flags().StringVar(&onlySpecies, "species", "", "plot only this species")

	svgCmd := &cobra.Command{
		Use:   "svg [run_id]",
		Short: "render a stored run as stacked SVG charts",
		Args:  cobra.MaximumNArgs(1),
		RunE:  svgRun,
	}
	svgCmd.Flags().StringVarP(&svgOutput, "output", "o", "", "SVG path (default <run_id>.svg)")

	viewCmd := &cobra.Command{
		Use:   "view [run_id]",
		Short: "browse a stored run interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE:  viewRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&jsonOutput, "output", "o", "-", "JSON path, - for stdout")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				cfg := config.GetPreset(name)
				names := make([]string, len(cfg.Species))
				for i, s := range cfg.Species {
					names[i] = s.Name
				}
				fmt.Printf("  %-12s %s\n", name, strings.Join(names, ", "))
			}
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write a config file to start from",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "episim.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	addScenarioFlags(initCmd)

	compareCmd := &cobra.Command{
		Use:   "compare [integrator1] [integrator2] ...",
		Short: "compare integrators on the same scenario",
		RunE:  compareIntegrators,
	}
	addScenarioFlags(compareCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "grid search model parameters for the lowest metric total",
		Args:  cobra.NoArgs,
		RunE:  sweepParameters,
	}
	addScenarioFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepParams, "param", nil, "name=v1,v2,... (beta, gamma, vaccination_rate); repeatable")
	sweepCmd.Flags().StringVar(&minimize, "minimize", "peak_infectious", "metric summed over species")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, svgCmd, viewCmd, exportJSONCmd, presetsCmd, initCmd, compareCmd, sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addScenarioFlags(cmd *cobra.Command) {
	defaults := config.DefaultConfig()
	f := cmd.Flags()
	f.StringVarP(&configFile, "config", "c", "", "YAML config file, read over the preset")
	f.StringVarP(&preset, "preset", "p", "", "start from a named preset")
	f.Float64Var(&beta, "beta", defaults.Parameters.Beta, "transmission rate")
	f.Float64Var(&gamma, "gamma", defaults.Parameters.Gamma, "recovery rate")
	f.Float64Var(&days, "days", defaults.Parameters.DurationDays, "simulated duration in days")
	f.IntVar(&resolution, "resolution", defaults.Parameters.Resolution, "number of output time points")
	f.StringVar(&integrator, "integrator", defaults.Solver.Integrator, "integrator: "+strings.Join(experiment.NewRegistry().ListIntegrators(), ", "))
	f.StringVar(&metricSet, "metrics", defaults.Solver.Metrics, "metric set: "+strings.Join(experiment.NewRegistry().ListMetricSets(), ", "))
	f.Float64Var(&rtol, "rtol", defaults.Solver.Tolerance, "relative tolerance")
	f.Float64Var(&atol, "atol", defaults.Solver.AbsTolerance, "absolute tolerance")
	f.Float64Var(&dt, "dt", defaults.Solver.Dt, "maximum sub-step for fixed-step integrators")
	f.IntVar(&workers, "workers", 0, "species integrated in parallel (0 = all CPUs)")
}

// loadConfig layers the preset, the config file and any explicitly set
// flags, in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		loaded, err := config.LoadOver(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("beta") {
		cfg.Parameters.Beta = beta
	}
	if flags.Changed("gamma") {
		cfg.Parameters.Gamma = gamma
	}
	if flags.Changed("days") {
		cfg.Parameters.DurationDays = days
	}
	if flags.Changed("resolution") {
		cfg.Parameters.Resolution = resolution
	}
	if flags.Changed("integrator") {
		cfg.Solver.Integrator = integrator
	}
	if flags.Changed("metrics") {
		cfg.Solver.Metrics = metricSet
	}
	if flags.Changed("rtol") {
		cfg.Solver.Tolerance = rtol
	}
	if flags.Changed("atol") {
		cfg.Solver.AbsTolerance = atol
	}
	if flags.Changed("dt") {
		cfg.Solver.Dt = dt
	}
	if flags.Changed("workers") {
		cfg.Solver.Workers = workers
	}
	if flags.Lookup("output") != nil && flags.Changed("output") {
		cfg.Output.CSV = outputPath
	}
	if dataDir != "" {
		cfg.Output.DataDir = dataDir
	}
	return cfg, nil
}

func newExperiment(cfg *config.Config) *experiment.Experiment {
	return experiment.New(experiment.Config{
		Integrator: cfg.Solver.Integrator,
		Metrics:    cfg.Solver.Metrics,
		Solver:     cfg.GetSolverConfig(),
		Workers:    cfg.Solver.Workers,
	}, experiment.NewRegistry(), logger)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	species := cfg.GetSpecies()
	params := cfg.GetParameters()

	logger.Info("running simulation", "species", len(species), "days", params.DurationDays,
		"points", params.Resolution, "integrator", cfg.Solver.Integrator)
	start := time.Now()

	res, err := newExperiment(cfg).Run(ctx, species, params)
	if err != nil {
		var se *sim.SpeciesError
		if errors.As(err, &se) {
			logger.Error("species failed", "species", se.Species, "t", se.Time, "err", se.Err)
		}
		return err
	}
	elapsed := time.Since(start)

	if cfg.Output.CSV != "" {
		if err := storage.ExportCSV(cfg.Output.CSV, res.Table); err != nil {
			return err
		}
		logger.Info("wrote results", "path", cfg.Output.CSV, "rows", res.Table.Len())
	}

	if !noSave {
		st := storage.New(cfg.Output.DataDir)
		if err := st.Init(); err != nil {
			return err
		}
		name := preset
		if configFile != "" {
			name = strings.TrimSuffix(filepath.Base(configFile), filepath.Ext(configFile))
		}
		runID, err := st.Save(storage.RunMetadata{
			Name:       name,
			Integrator: cfg.Solver.Integrator,
			Parameters: params,
			Species:    species,
		}, res)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}

	fmt.Printf("completed in %v\n\n", elapsed)
	if err := printSummary(res); err != nil {
		return err
	}

	if showPlot {
		for _, name := range res.Order {
			fmt.Println()
			fmt.Println(viz.SpeciesChart(name, res.Times, res.Trajectories[name], 80, 15))
		}
	}
	return nil
}

func printSummary(res *sim.Result) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SPECIES\tPEAK I\tPEAK DAY\tATTACK\tDRIFT\tSTEPS\tSTIFF")
	for _, name := range res.Order {
		m := res.Metrics[name]
		st := res.Stats[name]
		fmt.Fprintf(w, "%s\t%.4g\t%.1f\t%.1f%%\t%.1e\t%d\t%v\n",
			name,
			m["peak_infectious"],
			m["peak_day"],
			100*m["attack_rate"],
			m["conservation_drift"],
			st.Steps,
			st.Stiff,
		)
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(storeDir())
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tSPECIES\tDAYS\tPOINTS\tINTEG")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.0f\t%d\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			len(run.Species),
			run.Parameters.DurationDays,
			run.Parameters.Resolution,
			run.Integrator,
		)
	}

	return w.Flush()
}

func storeDir() string {
	if dataDir != "" {
		return dataDir
	}
	return config.DefaultDataDir
}

// loadRun reads the run named in args, or the latest run.
func loadRun(args []string) (*storage.RunMetadata, *sim.Result, error) {
	st := storage.New(storeDir())
	if len(args) == 0 {
		latest, err := st.Latest()
		if err != nil {
			return nil, nil, err
		}
		args = []string{latest.ID}
	}
	return st.LoadResult(args[0])
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, res, err := loadRun(args)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s (beta=%g, gamma=%g)\n\n", meta.ID, meta.Parameters.Beta, meta.Parameters.Gamma)
	for _, name := range res.Order {
		if onlySpecies != "" && name != onlySpecies {
			continue
		}
		fmt.Println(viz.SpeciesChart(name, res.Times, res.Trajectories[name], plotWidth, plotHeight))
		fmt.Println()
	}
	return nil
}

func svgRun(cmd *cobra.Command, args []string) error {
	meta, res, err := loadRun(args)
	if err != nil {
		return err
	}
	path := svgOutput
	if path == "" {
		path = meta.ID + ".svg"
	}
	if err := export.WriteSVG(path, res); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func viewRun(cmd *cobra.Command, args []string) error {
	meta, res, err := loadRun(args)
	if err != nil {
		return err
	}
	return viz.RunBrowser(meta.ID, res)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, res, err := loadRun(args)
	if err != nil {
		return err
	}
	if jsonOutput == "-" {
		return storage.WriteJSON(os.Stdout, meta, res)
	}
	if err := storage.ExportJSON(jsonOutput, meta, res); err != nil {
		return err
	}
	logger.Info("exported run", "id", meta.ID, "path", jsonOutput)
	return nil
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	names := args
	if len(names) == 0 {
		names = experiment.NewRegistry().ListIntegrators()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	params := cfg.GetParameters()
	fmt.Printf("comparing integrators (%d species, %.0f days, rtol=%g, dt=%g)\n\n",
		len(cfg.Species), params.DurationDays, cfg.GetSolverConfig().Tolerance, cfg.GetSolverConfig().Dt)

	results, err := newExperiment(cfg).Compare(ctx, cfg.GetSpecies(), params, names)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INTEGRATOR\tSTEPS\tREJECTED\tDRIFT\tTIME")
	for _, c := range results {
		if c.Err != nil {
			fmt.Fprintf(w, "%s\terror: %v\n", c.Integrator, c.Err)
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%.2e\t%v\n",
			c.Integrator, c.Steps, c.Rejected, c.MaxDrift, c.Elapsed.Round(time.Microsecond))
	}
	return w.Flush()
}

func parseSweep(specs []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(specs))
	ranges := make([][]float64, 0, len(specs))
	for _, spec := range specs {
		name, list, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, nil, fmt.Errorf("invalid --param %q, want name=v1,v2", spec)
		}
		var vals []float64
		for _, field := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid value in --param %q: %w", spec, err)
			}
			vals = append(vals, v)
		}
		names = append(names, strings.TrimSpace(name))
		ranges = append(ranges, vals)
	}
	return names, ranges, nil
}

func sweepParameters(cmd *cobra.Command, args []string) error {
	if len(sweepParams) == 0 {
		return fmt.Errorf("at least one --param is required")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	names, ranges, err := parseSweep(sweepParams)
	if err != nil {
		return err
	}
	gs, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	points, best, err := gs.Search(ctx, newExperiment(cfg), cfg.GetSpecies(), cfg.GetParameters(), minimize)
	if err != nil && !errors.Is(err, optim.ErrNoFeasiblePoint) {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(names, "\t"))+"\t"+strings.ToUpper(minimize))
	for i, p := range points {
		row := make([]string, 0, len(names)+1)
		for _, n := range names {
			row = append(row, strconv.FormatFloat(p.Params[n], 'g', -1, 64))
		}
		switch {
		case p.Err != nil:
			row = append(row, "error: "+p.Err.Error())
		case i == best:
			row = append(row, fmt.Sprintf("%.6g  *", p.Value))
		default:
			row = append(row, fmt.Sprintf("%.6g", p.Value))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return err
}
