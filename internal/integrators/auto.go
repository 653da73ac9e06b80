package integrators

import "github.com/san-kum/episim/internal/dynamo"

// Auto starts with Dormand-Prince and switches to Rosenbrock for the rest
// of the run once the stiffness test trips. The switch is one-way.
type Auto struct {
	nonStiff *RK45
	stiff    *Rosenbrock
	switched bool
}

func NewAuto() *Auto {
	return &Auto{
		nonStiff: NewRK45(),
		stiff:    NewRosenbrock(),
	}
}

func (a *Auto) SetAbsTolerance(atol float64) {
	a.nonStiff.SetAbsTolerance(atol)
	a.stiff.SetAbsTolerance(atol)
}

// Stiff reports whether the integrator has switched to the stiff method.
func (a *Auto) Stiff() bool { return a.switched }

// Reset returns to the explicit method.
func (a *Auto) Reset() {
	a.nonStiff.Reset()
	a.switched = false
}

func (a *Auto) current() dynamo.AdaptiveIntegrator {
	if !a.switched && a.nonStiff.Stiff() {
		a.switched = true
	}
	if a.switched {
		return a.stiff
	}
	return a.nonStiff
}

func (a *Auto) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	return a.current().Step(dyn, x, u, t, dt)
}

func (a *Auto) StepAdaptive(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt, tol float64) (dynamo.State, float64, error) {
	return a.current().StepAdaptive(dyn, x, u, t, dt, tol)
}
