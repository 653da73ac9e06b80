package integrators

import (
	"math"

	"github.com/san-kum/episim/internal/dynamo"
)

// Plain Step calls on an adaptive integrator run at stepTol. A sub-step
// still rejected after shrinking to dt/maxSplit is accepted as is.
const (
	stepTol  = 1e-6
	maxSplit = 1 << 20
)

// stepControlled advances x from t to t+dt, retrying rejected sub-steps
// with at most half the step and growing accepted ones as the integrator
// suggests.
func stepControlled(a dynamo.AdaptiveIntegrator, dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	end := t + dt
	minH := dt / maxSplit
	h := dt
	for {
		last := false
		if t+h >= end {
			h = end - t
			last = true
		}

		xNew, hNew, err := a.StepAdaptive(dyn, x, u, t, h, stepTol)
		if err != nil && h > minH {
			h = math.Max(math.Min(hNew, h/2), minH)
			continue
		}

		x = xNew
		if last {
			return x
		}
		t += h
		if err == nil {
			h = hNew
		}
	}
}
