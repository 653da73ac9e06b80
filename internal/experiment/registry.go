package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/integrators"
	"github.com/san-kum/episim/internal/metrics"
)

// Registry maps the names used in config files and flags to integrator and
// metric-set factories.
type Registry struct {
	integrators map[string]func() dynamo.Integrator
	metricSets  map[string]func() []dynamo.Metric
}

func NewRegistry() *Registry {
	r := &Registry{
		integrators: make(map[string]func() dynamo.Integrator),
		metricSets:  make(map[string]func() []dynamo.Metric),
	}

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }
	r.integrators["rk45"] = func() dynamo.Integrator { return integrators.NewRK45() }
	r.integrators["rosenbrock"] = func() dynamo.Integrator { return integrators.NewRosenbrock() }
	r.integrators["auto"] = func() dynamo.Integrator { return integrators.NewAuto() }

	r.metricSets["default"] = metrics.Default
	r.metricSets["conservation"] = func() []dynamo.Metric {
		return []dynamo.Metric{metrics.NewConservationDrift(), metrics.NewNonNegative(1e-9)}
	}
	r.metricSets["none"] = func() []dynamo.Metric { return nil }

	return r
}

// Integrator returns the factory registered under name.
func (r *Registry) Integrator(name string) (func() dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn, nil
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, err := r.Integrator(name)
	if err != nil {
		return nil, err
	}
	return fn(), nil
}

func (r *Registry) Metrics(name string) (func() []dynamo.Metric, error) {
	fn, ok := r.metricSets[name]
	if !ok {
		return nil, fmt.Errorf("unknown metric set: %s", name)
	}
	return fn, nil
}

func (r *Registry) ListIntegrators() []string {
	return sortedKeys(r.integrators)
}

func (r *Registry) ListMetricSets() []string {
	return sortedKeys(r.metricSets)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
