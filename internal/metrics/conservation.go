package metrics

import (
	"math"

	"github.com/san-kum/episim/internal/dynamo"
)

// ConservationDrift tracks the largest relative change of the total
// population S+I+R+V from its first observed value.
type ConservationDrift struct {
	name     string
	initial  float64
	maxDrift float64
	samples  int
}

func NewConservationDrift() *ConservationDrift {
	return &ConservationDrift{name: "conservation_drift"}
}

func (c *ConservationDrift) Name() string { return c.name }

func (c *ConservationDrift) Observe(x dynamo.State, u dynamo.Control, t float64) {
	total := x.Sum()
	if c.samples == 0 {
		c.initial = total
	}
	c.samples++

	if c.initial != 0 {
		drift := math.Abs(total-c.initial) / math.Abs(c.initial)
		c.maxDrift = math.Max(c.maxDrift, drift)
	}
}

func (c *ConservationDrift) Value() float64 {
	return c.maxDrift
}

func (c *ConservationDrift) Reset() {
	c.initial = 0
	c.maxDrift = 0
	c.samples = 0
}

// NonNegative is the fraction of samples whose compartments are all above
// -tol times the total population. Solver error near depletion can push a
// compartment slightly below zero; states are not clamped.
type NonNegative struct {
	name       string
	tol        float64
	violations int
	samples    int
}

func NewNonNegative(tol float64) *NonNegative {
	return &NonNegative{name: "non_negative", tol: tol}
}

func (n *NonNegative) Name() string { return n.name }

func (n *NonNegative) Observe(x dynamo.State, u dynamo.Control, t float64) {
	n.samples++
	floor := -n.tol * math.Abs(x.Sum())
	for _, v := range x {
		if v < floor {
			n.violations++
			break
		}
	}
}

func (n *NonNegative) Value() float64 {
	if n.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(n.violations)/float64(n.samples)
}

func (n *NonNegative) Reset() {
	n.violations = 0
	n.samples = 0
}
