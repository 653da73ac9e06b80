package integrators

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/episim/internal/dynamo"
)

type harmonicOscillator struct{}

func (h *harmonicOscillator) StateDim() int   { return 2 }
func (h *harmonicOscillator) ControlDim() int { return 0 }

func (h *harmonicOscillator) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func (h *harmonicOscillator) Energy(x dynamo.State) float64 {
	return 0.5 * (x[0]*x[0] + x[1]*x[1])
}

// linearDecay is x' = -lambda*x, stiff for large lambda.
type linearDecay struct{ lambda float64 }

func (d *linearDecay) StateDim() int   { return 1 }
func (d *linearDecay) ControlDim() int { return 0 }
func (d *linearDecay) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{-d.lambda * x[0]}
}
func (d *linearDecay) Jacobian(x dynamo.State, u dynamo.Control, t float64) [][]float64 {
	return [][]float64{{-d.lambda}}
}

func TestRK45_Step(t *testing.T) {
	integrator := NewRK45()
	dyn := &harmonicOscillator{}
	x := dynamo.State{1.0, 0.0}
	dt := 0.01

	for i := 0; i < 1000; i++ {
		x = integrator.Step(dyn, x, nil, float64(i)*dt, dt)
	}

	if !x.IsValid() {
		t.Error("RK45 produced invalid state")
	}
	if math.Abs(x[0]-math.Cos(10)) > 1e-7 {
		t.Errorf("x(10) = %.10f, want %.10f", x[0], math.Cos(10))
	}
}

func TestRK45_EnergyConservation(t *testing.T) {
	integrator := NewRK45()
	dyn := &harmonicOscillator{}
	x0 := dynamo.State{1.0, 0.0}

	initialEnergy := dyn.Energy(x0)
	x := x0.Clone()
	dt := 0.01

	for i := 0; i < 10000; i++ {
		x = integrator.Step(dyn, x, nil, float64(i)*dt, dt)
	}

	drift := math.Abs(dyn.Energy(x)-initialEnergy) / initialEnergy
	if drift > 1e-6 {
		t.Errorf("RK45 energy drift too high: %e", drift)
	}
}

func TestRK45_AdaptiveStep(t *testing.T) {
	integrator := NewRK45()
	dyn := &harmonicOscillator{}

	x, newDt, err := integrator.StepAdaptive(dyn, dynamo.State{1.0, 0.0}, nil, 0, 0.1, 1e-8)
	if err != nil {
		t.Errorf("StepAdaptive returned error: %v", err)
	}
	if !x.IsValid() {
		t.Error("StepAdaptive produced invalid state")
	}
	if newDt <= 0 {
		t.Errorf("StepAdaptive returned invalid dt: %f", newDt)
	}
}

func TestRK45_RejectsLargeStep(t *testing.T) {
	integrator := NewRK45()
	dyn := &harmonicOscillator{}

	_, newDt, err := integrator.StepAdaptive(dyn, dynamo.State{1.0, 0.0}, nil, 0, 2.0, 1e-10)
	if !errors.Is(err, dynamo.ErrStepRejected) {
		t.Fatalf("expected ErrStepRejected, got %v", err)
	}
	if newDt >= 2.0 {
		t.Errorf("rejected step should shrink dt, got %f", newDt)
	}
}

func TestRK45_StepSplitsLargeInterval(t *testing.T) {
	integrator := NewRK45()
	dyn := &harmonicOscillator{}

	if _, _, err := integrator.StepAdaptive(dyn, dynamo.State{1.0, 0.0}, nil, 0, 2.0, stepTol); !errors.Is(err, dynamo.ErrStepRejected) {
		t.Fatalf("expected a single step over the interval to be rejected, got %v", err)
	}

	x := integrator.Step(dyn, dynamo.State{1.0, 0.0}, nil, 0, 2.0)
	if math.Abs(x[0]-math.Cos(2)) > 1e-4 || math.Abs(x[1]+math.Sin(2)) > 1e-4 {
		t.Errorf("x(2) = %v, want (%.6f, %.6f)", x, math.Cos(2), -math.Sin(2))
	}
}

func TestRK45_DetectsStiffness(t *testing.T) {
	integrator := NewRK45()
	dyn := &linearDecay{lambda: 1e4}
	x := dynamo.State{1.0}
	dt := 1e-5

	for i := 0; i < 500 && !integrator.Stiff(); i++ {
		newX, newDt, err := integrator.StepAdaptive(dyn, x, nil, 0, dt, 1e-6)
		dt = newDt
		if err == nil {
			x = newX
		}
	}

	if !integrator.Stiff() {
		t.Error("stiffness not detected for lambda=1e4")
	}

	integrator.Reset()
	if integrator.Stiff() {
		t.Error("Reset did not clear stiffness flag")
	}
}

func TestRK45_NonStiffProblemStaysNonStiff(t *testing.T) {
	integrator := NewRK45()
	dyn := &harmonicOscillator{}
	x := dynamo.State{1.0, 0.0}
	dt := 0.01

	for i := 0; i < 2000; i++ {
		newX, newDt, err := integrator.StepAdaptive(dyn, x, nil, 0, dt, 1e-8)
		dt = newDt
		if err == nil {
			x = newX
		}
	}

	if integrator.Stiff() {
		t.Error("harmonic oscillator flagged as stiff")
	}
}
