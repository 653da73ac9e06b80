package dynamo

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// AbsToleranceSetter is implemented by adaptive integrators whose error
// norm mixes an absolute and a relative tolerance.
type AbsToleranceSetter interface {
	SetAbsTolerance(atol float64)
}

// Resetter is implemented by integrators that carry state between steps,
// such as a stiffness detector. Solve resets them before the first step.
type Resetter interface {
	Reset()
}

// Linspace returns n evenly spaced points over [start, stop], both ends
// included.
func Linspace(start, stop float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{start}
	}
	return floats.Span(make([]float64, n), start, stop)
}

// ErrorNorm is the RMS of e_i / (atol + rtol*max(|x_i|, |xNew_i|)).
func ErrorNorm(e, x, xNew State, rtol, atol float64) float64 {
	if len(e) == 0 {
		return 0
	}
	sum := 0.0
	for i := range e {
		sc := atol + rtol*math.Max(math.Abs(x[i]), math.Abs(xNew[i]))
		r := e[i] / sc
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(e)))
}

// InitialStep picks a starting step size for an adaptive integrator of the
// given order (Hairer, Norsett & Wanner, II.4).
func InitialStep(dyn System, x State, t, span float64, order int, rtol, atol float64) float64 {
	f0 := dyn.Derive(x, nil, t)
	d0 := ErrorNorm(x, x, x, rtol, atol)
	d1 := ErrorNorm(f0, x, x, rtol, atol)

	h0 := 1e-6
	if d0 > 1e-5 && d1 > 1e-5 {
		h0 = 0.01 * d0 / d1
	}
	h0 = math.Min(h0, span)

	x1 := make(State, len(x))
	for i := range x {
		x1[i] = x[i] + h0*f0[i]
	}
	f1 := dyn.Derive(x1, nil, t+h0)
	d2 := ErrorNorm(f1.Sub(f0), x, x, rtol, atol) / h0

	var h1 float64
	if m := math.Max(d1, d2); m <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/m, 1.0/float64(order+1))
	}

	return math.Min(math.Min(100*h0, h1), span)
}

// Solve integrates dyn from x0 and returns the state at every grid point.
// Adaptive integrators sub-step freely between grid points and land exactly
// on each one; fixed-step integrators take equal sub-steps no longer than
// cfg.Dt.
func Solve(ctx context.Context, dyn System, integ Integrator, x0 State, grid []float64, cfg Config) (*Solution, error) {
	if len(x0) != dyn.StateDim() {
		return nil, fmt.Errorf("%w: state has %d components, system expects %d", ErrDimensionMismatch, len(x0), dyn.StateDim())
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("%w: empty time grid", ErrParameterBounds)
	}
	for i := 1; i < len(grid); i++ {
		if !(grid[i] > grid[i-1]) {
			return nil, fmt.Errorf("%w: time grid not strictly increasing at index %d", ErrParameterBounds, i)
		}
	}

	adaptive, isAdaptive := integ.(AdaptiveIntegrator)
	if isAdaptive && cfg.Tolerance <= 0 {
		return nil, fmt.Errorf("%w: tolerance must be positive for adaptive stepping", ErrParameterBounds)
	}
	if !isAdaptive && cfg.Dt <= 0 {
		return nil, fmt.Errorf("%w: dt must be positive, got %g", ErrParameterBounds, cfg.Dt)
	}
	if r, ok := integ.(Resetter); ok {
		r.Reset()
	}
	if s, ok := integ.(AbsToleranceSetter); ok && cfg.AbsTolerance > 0 {
		s.SetAbsTolerance(cfg.AbsTolerance)
	}

	sol := &Solution{
		Times:  grid,
		States: make([]State, len(grid)),
	}

	x := x0.Clone()
	t := grid[0]
	sol.States[0] = x.Clone()

	if cfg.ValidateState && !x.IsValid() {
		return nil, &SimulationError{Time: t, State: x, Wrapped: ErrInvalidState}
	}

	var dt float64
	if isAdaptive && len(grid) > 1 {
		atol := cfg.AbsTolerance
		if atol <= 0 {
			atol = cfg.Tolerance
		}
		dt = InitialStep(dyn, x, t, grid[len(grid)-1]-t, 4, cfg.Tolerance, atol)
	}

	fail := func(err error) error {
		return &SimulationError{Step: sol.Steps, Time: t, State: x.Clone(), Wrapped: err}
	}

	for i := 1; i < len(grid); i++ {
		target := grid[i]

		if !isAdaptive {
			n := int(math.Ceil((target-t)/cfg.Dt - 1e-9))
			if n < 1 {
				n = 1
			}
			h := (target - t) / float64(n)
			for k := 0; k < n; k++ {
				if err := ctx.Err(); err != nil {
					return nil, fail(fmt.Errorf("%w: %w", ErrContextCanceled, err))
				}
				if cfg.MaxSteps > 0 && sol.Steps >= cfg.MaxSteps {
					return nil, fail(ErrStepBudget)
				}
				x = integ.Step(dyn, x, nil, t, h)
				if cfg.ValidateState && !x.IsValid() {
					return nil, fail(ErrInvalidState)
				}
				sol.Steps++
				if k == n-1 {
					t = target
				} else {
					t += h
				}
			}
			sol.States[i] = x.Clone()
			continue
		}

		for t < target {
			if err := ctx.Err(); err != nil {
				return nil, fail(fmt.Errorf("%w: %w", ErrContextCanceled, err))
			}
			if cfg.MaxSteps > 0 && sol.Steps+sol.Rejected >= cfg.MaxSteps {
				return nil, fail(ErrStepBudget)
			}

			h := dt
			if cfg.MaxDt > 0 && h > cfg.MaxDt {
				h = cfg.MaxDt
			}
			last := false
			if t+1.01*h >= target {
				h = target - t
				last = true
			}

			xNew, dtNew, err := adaptive.StepAdaptive(dyn, x, nil, t, h, cfg.Tolerance)
			if errors.Is(err, ErrStepRejected) {
				sol.Rejected++
				dt = dtNew
				if dt < cfg.MinDt {
					return nil, fail(ErrStepTooSmall)
				}
				continue
			}
			if err != nil {
				return nil, fail(err)
			}
			if cfg.ValidateState && !xNew.IsValid() {
				return nil, fail(ErrInvalidState)
			}

			x = xNew
			sol.Steps++
			if last {
				t = target
			} else {
				t += h
				dt = dtNew
			}
		}
		sol.States[i] = x.Clone()
	}

	return sol, nil
}
