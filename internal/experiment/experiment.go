package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/sim"
)

// Config names the solver setup of one run. Integrator and Metrics are
// Registry keys.
type Config struct {
	Integrator string
	Metrics    string
	Solver     dynamo.Config
	Workers    int
}

type Experiment struct {
	cfg      Config
	registry *Registry
	logger   *slog.Logger
}

func New(cfg Config, registry *Registry, logger *slog.Logger) *Experiment {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Experiment{cfg: cfg, registry: registry, logger: logger}
}

// Runner resolves the configured names and builds a sim.Runner.
func (e *Experiment) Runner() (*sim.Runner, error) {
	integ, err := e.registry.Integrator(e.cfg.Integrator)
	if err != nil {
		return nil, err
	}
	opts := []sim.Option{
		sim.WithIntegrator(integ),
		sim.WithSolverConfig(e.cfg.Solver),
		sim.WithWorkers(e.cfg.Workers),
		sim.WithLogger(e.logger),
	}
	if e.cfg.Metrics != "" {
		ms, err := e.registry.Metrics(e.cfg.Metrics)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sim.WithMetrics(ms))
	}
	return sim.New(opts...), nil
}

func (e *Experiment) Run(ctx context.Context, species []sim.Species, params sim.Parameters) (*sim.Result, error) {
	runner, err := e.Runner()
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx, species, params)
}

// Comparison is the outcome of one integrator on a shared run.
type Comparison struct {
	Integrator string
	Steps      int
	Rejected   int
	MaxDrift   float64
	Elapsed    time.Duration
	Err        error
}

// Compare runs the same species once per integrator. A failing integrator
// is reported in its Comparison rather than aborting the others.
func (e *Experiment) Compare(ctx context.Context, species []sim.Species, params sim.Parameters, names []string) ([]Comparison, error) {
	if err := sim.Validate(species, params); err != nil {
		return nil, err
	}

	out := make([]Comparison, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("%w: %w", sim.ErrCancelled, err)
		}

		cfg := e.cfg
		cfg.Integrator = name
		cfg.Metrics = "conservation"

		start := time.Now()
		res, err := New(cfg, e.registry, e.logger).Run(ctx, species, params)
		c := Comparison{Integrator: name, Elapsed: time.Since(start), Err: err}
		if err == nil {
			for _, sp := range res.Order {
				st := res.Stats[sp]
				c.Steps += st.Steps
				c.Rejected += st.Rejected
				c.MaxDrift = max(c.MaxDrift, res.Metrics[sp]["conservation_drift"])
			}
		}
		out = append(out, c)
	}
	return out, nil
}
