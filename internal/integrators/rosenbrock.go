package integrators

import (
	"math"

	"github.com/san-kum/episim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Shampine-Reichelt modified Rosenbrock 2(3) pair constants.
var (
	rosD   = 1.0 / (2.0 + math.Sqrt2)
	rosE32 = 6.0 + math.Sqrt2
)

// Rosenbrock is an L-stable linearly implicit stepper for stiff systems.
// It treats the system as autonomous. The Jacobian comes from
// dynamo.Jacobian when the system provides one, otherwise from forward
// differences.
type Rosenbrock struct {
	safety   float64
	minScale float64
	maxScale float64
	absTol   float64
}

func NewRosenbrock() *Rosenbrock {
	return &Rosenbrock{
		safety:   0.8,
		minScale: 0.2,
		maxScale: 5.0,
		absTol:   1e-6,
	}
}

func (r *Rosenbrock) SetAbsTolerance(atol float64) { r.absTol = atol }

// Step covers dt with error-controlled sub-steps at tolerance stepTol.
func (r *Rosenbrock) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	return stepControlled(r, dyn, x, u, t, dt)
}

func (r *Rosenbrock) StepAdaptive(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt, tol float64) (dynamo.State, float64, error) {
	n := len(x)

	f0 := dyn.Derive(x, u, t)
	jac := jacobian(dyn, x, u, t, f0)

	w := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := -dt * rosD * jac[i][j]
			if i == j {
				v += 1
			}
			w.Set(i, j, v)
		}
	}

	var lu mat.LU
	lu.Factorize(w)
	if lu.Det() == 0 {
		return x, dt * r.minScale, dynamo.ErrStepRejected
	}

	solve := func(b dynamo.State) (dynamo.State, bool) {
		var out mat.VecDense
		if err := lu.SolveVecTo(&out, false, mat.NewVecDense(n, b)); err != nil {
			return nil, false
		}
		return dynamo.State(out.RawVector().Data), true
	}

	k1, ok := solve(f0.Clone())
	if !ok {
		return x, dt * r.minScale, dynamo.ErrStepRejected
	}

	x1 := make(dynamo.State, n)
	axpy(x1, x, 0.5*dt, k1)
	f1 := dyn.Derive(x1, u, t+0.5*dt)

	k2, ok := solve(f1.Sub(k1))
	if !ok {
		return x, dt * r.minScale, dynamo.ErrStepRejected
	}
	for i := range k2 {
		k2[i] += k1[i]
	}

	xNew := make(dynamo.State, n)
	axpy(xNew, x, dt, k2)
	f2 := dyn.Derive(xNew, u, t+dt)

	rhs := make(dynamo.State, n)
	for i := range rhs {
		rhs[i] = f2[i] - rosE32*(k2[i]-f1[i]) - 2*(k1[i]-f0[i])
	}
	k3, ok := solve(rhs)
	if !ok {
		return x, dt * r.minScale, dynamo.ErrStepRejected
	}

	errEst := make(dynamo.State, n)
	for i := range errEst {
		errEst[i] = dt / 6 * (k1[i] - 2*k2[i] + k3[i])
	}
	errRatio := dynamo.ErrorNorm(errEst, x, xNew, tol, r.absTol)

	if errRatio > 1 {
		scale := math.Max(r.minScale, r.safety*math.Pow(errRatio, -1.0/3.0))
		return xNew, dt * scale, dynamo.ErrStepRejected
	}

	scale := r.maxScale
	if errRatio > 0 {
		scale = math.Min(r.maxScale, r.safety*math.Pow(errRatio, -1.0/3.0))
	}
	return xNew, dt * scale, nil
}

func jacobian(dyn dynamo.System, x dynamo.State, u dynamo.Control, t float64, f0 dynamo.State) [][]float64 {
	if j, ok := dyn.(dynamo.Jacobian); ok {
		return j.Jacobian(x, u, t)
	}

	n := len(x)
	jac := make([][]float64, n)
	for i := range jac {
		jac[i] = make([]float64, n)
	}

	eps := math.Sqrt(2.220446049250313e-16)
	xp := x.Clone()
	for j := 0; j < n; j++ {
		h := eps * math.Max(math.Abs(x[j]), 1)
		xp[j] = x[j] + h
		fp := dyn.Derive(xp, u, t)
		for i := 0; i < n; i++ {
			jac[i][j] = (fp[i] - f0[i]) / h
		}
		xp[j] = x[j]
	}
	return jac
}
