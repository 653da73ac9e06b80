package sim

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/integrators"
	"github.com/san-kum/episim/internal/logging"
	"github.com/san-kum/episim/internal/metrics"
)

// Runner integrates every species of a run independently and merges the
// trajectories into one table.
type Runner struct {
	newIntegrator func() dynamo.Integrator
	newMetrics    func() []dynamo.Metric
	solver        dynamo.Config
	workers       int
	logger        *slog.Logger
}

type Option func(*Runner)

// WithIntegrator sets the integrator factory. A fresh integrator is built
// per species.
func WithIntegrator(factory func() dynamo.Integrator) Option {
	return func(r *Runner) { r.newIntegrator = factory }
}

func WithSolverConfig(cfg dynamo.Config) Option {
	return func(r *Runner) { r.solver = cfg }
}

// WithWorkers bounds how many species integrate at once. 1 runs them
// sequentially in input order.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics sets the per-species metric factory; nil disables metrics.
func WithMetrics(factory func() []dynamo.Metric) Option {
	return func(r *Runner) { r.newMetrics = factory }
}

func New(opts ...Option) *Runner {
	r := &Runner{
		newIntegrator: func() dynamo.Integrator { return integrators.NewAuto() },
		newMetrics:    metrics.Default,
		solver:        dynamo.DefaultConfig(),
		workers:       runtime.GOMAXPROCS(0),
		logger:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type speciesRun struct {
	trajectory Trajectory
	metrics    map[string]float64
	stats      SolverStats
}

// Run validates the inputs, integrates each species over the shared grid
// and returns the merged table. Either every species succeeds or no table
// is returned; the first failure cancels the species still running.
func (r *Runner) Run(ctx context.Context, species []Species, params Parameters) (*Result, error) {
	if err := Validate(species, params); err != nil {
		return nil, err
	}

	grid := params.Grid()
	runs := make([]speciesRun, len(species))
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, sp := range species {
		i, sp := i, sp
		g.Go(func() error {
			run, err := r.simulate(gctx, sp, params, grid)
			if err != nil {
				return err
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Warn("simulation failed", "err", err)
		return nil, err
	}

	res := &Result{
		Times:        grid,
		Table:        NewResultTable(len(grid) * len(species)),
		Trajectories: make(map[string]Trajectory, len(species)),
		Order:        make([]string, 0, len(species)),
		Metrics:      make(map[string]map[string]float64, len(species)),
		Stats:        make(map[string]SolverStats, len(species)),
	}
	for i, sp := range species {
		res.Order = append(res.Order, sp.Name)
		res.Trajectories[sp.Name] = runs[i].trajectory
		res.Metrics[sp.Name] = runs[i].metrics
		res.Stats[sp.Name] = runs[i].stats
		res.Table.Append(sp.Name, grid, runs[i].trajectory)
	}

	r.logger.Debug("simulation complete", "species", len(species), "rows", res.Table.Len(), "elapsed", time.Since(start))
	return res, nil
}

func (r *Runner) simulate(ctx context.Context, sp Species, params Parameters, grid []float64) (speciesRun, error) {
	if err := ctx.Err(); err != nil {
		return speciesRun{}, &SpeciesError{Species: sp.Name, Kind: ErrCancelled, Err: err}
	}

	model := epidemic.NewSIRV(params.Beta, params.Gamma, sp.VaccinationRate)
	x0 := model.InitialState(sp.InitialSusceptible, sp.InitialInfectious)
	integ := r.newIntegrator()

	r.logger.Debug("integrating species", "species", sp.Name,
		"r0", model.R0(x0.Sum()), "herd_threshold", model.HerdThreshold())

	sol, err := dynamo.Solve(ctx, model, integ, x0, grid, r.solver)
	if err != nil {
		return speciesRun{}, speciesError(sp.Name, err)
	}

	run := speciesRun{
		trajectory: Trajectory(sol.States),
		stats:      SolverStats{Steps: sol.Steps, Rejected: sol.Rejected},
	}
	if s, ok := integ.(interface{ Stiff() bool }); ok {
		run.stats.Stiff = s.Stiff()
	}

	if r.newMetrics != nil {
		ms := r.newMetrics()
		for i, x := range sol.States {
			for _, m := range ms {
				m.Observe(x, nil, grid[i])
			}
		}
		run.metrics = make(map[string]float64, len(ms))
		for _, m := range ms {
			run.metrics[m.Name()] = m.Value()
		}
	}

	r.logger.Debug("species integrated", "species", sp.Name,
		"steps", run.stats.Steps, "rejected", run.stats.Rejected, "stiff", run.stats.Stiff)
	return run, nil
}

func speciesError(name string, err error) error {
	se := &SpeciesError{Species: name, Kind: ErrIntegrationFailure, Err: err}
	if errors.Is(err, dynamo.ErrContextCanceled) {
		se.Kind = ErrCancelled
	}
	var simErr *dynamo.SimulationError
	if errors.As(err, &simErr) {
		se.Time = simErr.Time
	}
	return se
}
