package integrators

import (
	"context"
	"math"
	"testing"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epidemic"
)

func TestRosenbrock_StableOnStiffDecay(t *testing.T) {
	integ := NewRosenbrock()
	dyn := &linearDecay{lambda: 1e6}

	// dt is far beyond the explicit stability limit.
	x := dynamo.State{1.0}
	for i := 0; i < 100; i++ {
		x = integ.Step(dyn, x, nil, float64(i)*0.01, 0.01)
	}

	if !x.IsValid() || math.Abs(x[0]) > 1e-6 {
		t.Errorf("stiff decay diverged: %v", x)
	}
}

func TestRosenbrock_FiniteDifferenceJacobian(t *testing.T) {
	dyn := &harmonicOscillator{}
	x := dynamo.State{0.3, -0.7}
	jac := jacobian(dyn, x, nil, 0, dyn.Derive(x, nil, 0))

	want := [][]float64{{0, 1}, {-1, 0}}
	for i := range want {
		for j := range want[i] {
			if math.Abs(jac[i][j]-want[i][j]) > 1e-6 {
				t.Errorf("J[%d][%d] = %v, want %v", i, j, jac[i][j], want[i][j])
			}
		}
	}
}

func TestRosenbrock_Accuracy(t *testing.T) {
	dyn := &linearDecay{lambda: 1}
	sol, err := dynamo.Solve(context.Background(), dyn, NewRosenbrock(), dynamo.State{1}, dynamo.Linspace(0, 2, 5), dynamo.DefaultConfig())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	for i, ti := range sol.Times {
		if want := math.Exp(-ti); math.Abs(sol.States[i][0]-want) > 1e-5 {
			t.Errorf("x(%g) = %.8f, want %.8f", ti, sol.States[i][0], want)
		}
	}
}

func TestRosenbrock_ConservesPopulation(t *testing.T) {
	dyn := epidemic.NewSIRV(0.002, 0.1, 0.001)
	integ := NewRosenbrock()
	x := dynamo.State{283e6, 47e6, 0, 0}
	total := x.Sum()

	for i := 0; i < 50; i++ {
		x = integ.Step(dyn, x, nil, 0, 1e-3)
	}

	if rel := math.Abs(x.Sum()-total) / total; rel > 1e-10 {
		t.Errorf("population drift %e", rel)
	}
}

func TestAuto_SwitchesOnStiffEpidemic(t *testing.T) {
	dyn := epidemic.NewSIRV(0.002, 0.1, 0.001)
	integ := NewAuto()

	sol, err := dynamo.Solve(context.Background(), dyn, integ, dynamo.State{283e6, 47e6, 0, 0}, dynamo.Linspace(0, 160, 500), dynamo.DefaultConfig())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !integ.Stiff() {
		t.Error("expected switch to stiff method")
	}

	total := 330e6
	for i, x := range sol.States {
		if rel := math.Abs(x.Sum()-total) / total; rel > 1e-6 {
			t.Fatalf("t=%g: population drift %e", sol.Times[i], rel)
		}
	}
}

func TestAuto_StaysExplicitOnMildEpidemic(t *testing.T) {
	dyn := epidemic.NewSIRV(0.002, 0.1, 0)
	integ := NewAuto()

	_, err := dynamo.Solve(context.Background(), dyn, integ, dynamo.State{1000, 10, 0, 0}, dynamo.Linspace(0, 160, 500), dynamo.DefaultConfig())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if integ.Stiff() {
		t.Error("mild epidemic should not trigger the stiff method")
	}
}

func TestAuto_SolveResetsSwitch(t *testing.T) {
	integ := NewAuto()
	grid := dynamo.Linspace(0, 160, 500)

	_, err := dynamo.Solve(context.Background(), epidemic.NewSIRV(0.002, 0.1, 0.001), integ,
		dynamo.State{283e6, 47e6, 0, 0}, grid, dynamo.DefaultConfig())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !integ.Stiff() {
		t.Fatal("expected switch to stiff method")
	}

	_, err = dynamo.Solve(context.Background(), epidemic.NewSIRV(0.002, 0.1, 0), integ,
		dynamo.State{1000, 10, 0, 0}, grid, dynamo.DefaultConfig())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if integ.Stiff() {
		t.Error("second Solve kept the stiff method from the first run")
	}
}

func TestRosenbrock_StepSplitsLargeInterval(t *testing.T) {
	integ := NewRosenbrock()
	dyn := &linearDecay{lambda: 1}

	if _, _, err := integ.StepAdaptive(dyn, dynamo.State{1}, nil, 0, 2, stepTol); err == nil {
		t.Fatal("a single step over the interval should be rejected")
	}

	x := integ.Step(dyn, dynamo.State{1}, nil, 0, 2)
	if want := math.Exp(-2); math.Abs(x[0]-want) > 1e-4 {
		t.Errorf("x(2) = %.8f, want %.8f", x[0], want)
	}
}
