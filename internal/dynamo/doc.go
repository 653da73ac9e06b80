// Package dynamo provides core simulation primitives for dynamical systems.
//
// The package defines the fundamental interfaces and types for numerical
// solution of ordinary differential equations (ODEs):
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator], [AdaptiveIntegrator]: numerical stepper interfaces
//   - [Jacobian]: optional analytic df/dx used by implicit steppers
//   - [Solve]: integrates a system over a fixed output grid
//
// # Example
//
//	dyn := epidemic.NewSIRV(0.002, 0.1, 0)
//	grid := dynamo.Linspace(0, 160, 500)
//	sol, err := dynamo.Solve(ctx, dyn, integrators.NewAuto(), x0, grid, dynamo.DefaultConfig())
//
// # Thread Safety
//
// Integrators keep per-instance scratch and stiffness state and are NOT
// thread-safe. Use one integrator per concurrent [Solve] call; the grid
// itself is only read and may be shared.
package dynamo
