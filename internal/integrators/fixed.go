package integrators

import "github.com/san-kum/episim/internal/dynamo"

// Fixed-step schemes. The solver splits each output interval into equal
// sub-steps no longer than the configured dt.

type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	return x.Add(dyn.Derive(x, u, t).Scale(dt))
}

// RK4 is the classical fourth-order Runge-Kutta scheme. Stage buffers are
// reused between calls, so an RK4 must not be shared across goroutines.
type RK4 struct {
	k       [4]dynamo.State
	scratch dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) grow(n int) {
	if len(r.scratch) == n {
		return
	}
	for i := range r.k {
		r.k[i] = make(dynamo.State, n)
	}
	r.scratch = make(dynamo.State, n)
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	r.grow(len(x))
	half := 0.5 * dt

	copy(r.k[0], dyn.Derive(x, u, t))
	axpy(r.scratch, x, half, r.k[0])
	copy(r.k[1], dyn.Derive(r.scratch, u, t+half))
	axpy(r.scratch, x, half, r.k[1])
	copy(r.k[2], dyn.Derive(r.scratch, u, t+half))
	axpy(r.scratch, x, dt, r.k[2])
	copy(r.k[3], dyn.Derive(r.scratch, u, t+dt))

	next := make(dynamo.State, len(x))
	w := dt / 6
	for i := range x {
		next[i] = x[i] + w*(r.k[0][i]+2*r.k[1][i]+2*r.k[2][i]+r.k[3][i])
	}
	return next
}

// axpy writes x + a*k into dst.
func axpy(dst, x dynamo.State, a float64, k dynamo.State) {
	for i := range x {
		dst[i] = x[i] + a*k[i]
	}
}
