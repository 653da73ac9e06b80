package optim

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/experiment"
	"github.com/san-kum/episim/internal/sim"
)

// ErrNoFeasiblePoint is returned when every grid point failed.
var ErrNoFeasiblePoint = errors.New("optim: no grid point ran successfully")

// GridSearch sweeps model parameters ("beta", "gamma", "vaccination_rate")
// over the cartesian product of their ranges. A vaccination rate applies to
// every species.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("%d parameters but %d ranges", len(params), len(ranges))
	}
	known := epidemic.NewSIRV(0, 0, 0).GetParams()
	for i, name := range params {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("unknown sweep parameter: %s", name)
		}
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("empty range for %s", name)
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Point is one evaluated grid point. Value is the metric summed over all
// species.
type Point struct {
	Params map[string]float64
	Value  float64
	Err    error
}

// Search runs every grid point and returns them in sweep order together
// with the index of the one minimising metric. Failed points are kept with
// their error; invalid parameter combinations fail only their own point.
func (g *GridSearch) Search(
	ctx context.Context,
	exp *experiment.Experiment,
	species []sim.Species,
	params sim.Parameters,
	metric string,
) ([]Point, int, error) {
	var points []Point
	best := -1
	bestVal := math.Inf(1)

	var walk func(depth int, current map[string]float64) error
	walk = func(depth int, current map[string]float64) error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", sim.ErrCancelled, err)
		}
		if depth == len(g.paramNames) {
			p := g.evaluate(ctx, exp, species, params, current, metric)
			if errors.Is(p.Err, sim.ErrCancelled) {
				return p.Err
			}
			if p.Err == nil && p.Value < bestVal {
				bestVal, best = p.Value, len(points)
			}
			points = append(points, p)
			return nil
		}

		name := g.paramNames[depth]
		for _, val := range g.ranges[depth] {
			next := maps.Clone(current)
			next[name] = val
			if err := walk(depth+1, next); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(0, map[string]float64{}); err != nil {
		return points, best, err
	}
	if best < 0 {
		return points, best, ErrNoFeasiblePoint
	}
	return points, best, nil
}

func (g *GridSearch) evaluate(
	ctx context.Context,
	exp *experiment.Experiment,
	species []sim.Species,
	params sim.Parameters,
	point map[string]float64,
	metric string,
) Point {
	p := Point{Params: point}

	sp, pr, err := Apply(species, params, point)
	if err != nil {
		p.Err = err
		return p
	}

	res, err := exp.Run(ctx, sp, pr)
	if err != nil {
		p.Err = err
		return p
	}

	for _, name := range res.Order {
		v, ok := res.Metrics[name][metric]
		if !ok {
			p.Err = fmt.Errorf("metric %s not recorded", metric)
			return p
		}
		p.Value += v
	}
	return p
}

// Apply returns copies of species and params with the named parameters
// set.
func Apply(species []sim.Species, params sim.Parameters, point map[string]float64) ([]sim.Species, sim.Parameters, error) {
	var model dynamo.Configurable = epidemic.NewSIRV(params.Beta, params.Gamma, 0)
	for name, v := range point {
		if err := model.SetParam(name, v); err != nil {
			return nil, params, err
		}
	}
	set := model.GetParams()
	params.Beta, params.Gamma = set["beta"], set["gamma"]

	out := make([]sim.Species, len(species))
	copy(out, species)
	if v, ok := point["vaccination_rate"]; ok {
		for i := range out {
			out[i].VaccinationRate = v
		}
	}
	return out, params, nil
}
