// Package epidemic provides compartmental epidemic models for simulation.
//
// [SIRV] implements [dynamo.System] over the state (S, I, R, V):
//
//	dS/dt = -beta*S*I - v*S
//	dI/dt =  beta*S*I - gamma*I
//	dR/dt =  gamma*I
//	dV/dt =  v*S
//
// Every flow leaves one compartment and enters another, so the derivative
// components always sum to zero and S+I+R+V is invariant. The model is
// autonomous; time and control inputs are ignored.
package epidemic
