package sim

import (
	"math"

	"github.com/san-kum/episim/internal/dynamo"
)

// Columns is the header of the long-format result table.
var Columns = []string{"Time (days)", "Susceptible", "Infectious", "Recovered", "Vaccinated", "Species"}

const (
	DefaultBeta       = 0.002
	DefaultGamma      = 0.1
	DefaultDuration   = 160.0
	DefaultResolution = 500
)

// SpeciesConfig holds the per-species inputs. Recovered and vaccinated
// counts always start at zero.
type SpeciesConfig struct {
	InitialSusceptible float64 `json:"initial_susceptible"`
	InitialInfectious  float64 `json:"initial_infectious"`
	VaccinationRate    float64 `json:"vaccination_rate"`
}

// Species is a named SpeciesConfig. Runs take an ordered slice of them so
// the output row order is the input order.
type Species struct {
	Name string `json:"name"`
	SpeciesConfig
}

// Parameters are shared by every species in a run.
type Parameters struct {
	Beta         float64 `json:"beta"`
	Gamma        float64 `json:"gamma"`
	DurationDays float64 `json:"duration_days"`
	Resolution   int     `json:"resolution"`
}

func DefaultParameters() Parameters {
	return Parameters{
		Beta:         DefaultBeta,
		Gamma:        DefaultGamma,
		DurationDays: DefaultDuration,
		Resolution:   DefaultResolution,
	}
}

// Grid is the uniform sample grid over [0, DurationDays].
func (p Parameters) Grid() []float64 {
	return dynamo.Linspace(0, p.DurationDays, p.Resolution)
}

// Trajectory is one (S, I, R, V) state per grid point.
type Trajectory []dynamo.State

// Series extracts one compartment, indexed as in package epidemic.
func (tr Trajectory) Series(compartment int) []float64 {
	out := make([]float64, len(tr))
	for i, x := range tr {
		out[i] = x[compartment]
	}
	return out
}

type Row struct {
	Time        float64
	Susceptible float64
	Infectious  float64
	Recovered   float64
	Vaccinated  float64
	Species     string
}

// SolverStats summarises the work done integrating one species.
type SolverStats struct {
	Steps    int  `json:"steps"`
	Rejected int  `json:"rejected"`
	Stiff    bool `json:"stiff"`
}

type Result struct {
	Times        []float64
	Table        *ResultTable
	Trajectories map[string]Trajectory
	Order        []string
	Metrics      map[string]map[string]float64
	Stats        map[string]SolverStats
}

// ResultFromTable rebuilds the per-species view of a table, e.g. one read
// back from disk. Times are taken from the first species.
func ResultFromTable(table *ResultTable) *Result {
	res := &Result{
		Table:        table,
		Order:        table.Species(),
		Trajectories: make(map[string]Trajectory),
	}
	for i, name := range res.Order {
		rows := table.Filter(name)
		tr := make(Trajectory, len(rows))
		for j, row := range rows {
			tr[j] = dynamo.State{row.Susceptible, row.Infectious, row.Recovered, row.Vaccinated}
			if i == 0 {
				res.Times = append(res.Times, row.Time)
			}
		}
		res.Trajectories[name] = tr
	}
	return res
}

// Peak returns the index of the largest value in xs, -1 when empty.
func Peak(xs []float64) int {
	idx := -1
	best := math.Inf(-1)
	for i, v := range xs {
		if v > best {
			best, idx = v, i
		}
	}
	return idx
}
