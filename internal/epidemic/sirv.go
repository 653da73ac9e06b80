package epidemic

import (
	"fmt"

	"github.com/san-kum/episim/internal/dynamo"
)

// Compartment indices into a SIRV state vector.
const (
	Susceptible = iota
	Infectious
	Recovered
	Vaccinated
)

// CompartmentNames lists the compartments in state order.
var CompartmentNames = [4]string{"Susceptible", "Infectious", "Recovered", "Vaccinated"}

type SIRV struct {
	Beta            float64
	Gamma           float64
	VaccinationRate float64
}

func NewSIRV(beta, gamma, vaccinationRate float64) *SIRV {
	return &SIRV{Beta: beta, Gamma: gamma, VaccinationRate: vaccinationRate}
}

func (m *SIRV) StateDim() int   { return 4 }
func (m *SIRV) ControlDim() int { return 0 }

// Derive returns (dS/dt, dI/dt, dR/dt, dV/dt).
func (m *SIRV) Derive(x dynamo.State, _ dynamo.Control, _ float64) dynamo.State {
	s, i := x[Susceptible], x[Infectious]
	infection := m.Beta * s * i
	vaccination := m.VaccinationRate * s
	recovery := m.Gamma * i
	return dynamo.State{
		-infection - vaccination,
		infection - recovery,
		recovery,
		vaccination,
	}
}

func (m *SIRV) Jacobian(x dynamo.State, _ dynamo.Control, _ float64) [][]float64 {
	s, i := x[Susceptible], x[Infectious]
	return [][]float64{
		{-m.Beta*i - m.VaccinationRate, -m.Beta * s, 0, 0},
		{m.Beta * i, m.Beta*s - m.Gamma, 0, 0},
		{0, m.Gamma, 0, 0},
		{m.VaccinationRate, 0, 0, 0},
	}
}

// InitialState is (s0, i0, 0, 0).
func (m *SIRV) InitialState(s0, i0 float64) dynamo.State {
	return dynamo.State{s0, i0, 0, 0}
}

// Population is S+I+R+V.
func Population(x dynamo.State) float64 {
	return x.Sum()
}

// R0 is the basic reproduction number for a fully susceptible s0.
func (m *SIRV) R0(s0 float64) float64 {
	return m.Beta * s0 / m.Gamma
}

// HerdThreshold is the susceptible count below which infections decline.
func (m *SIRV) HerdThreshold() float64 {
	return m.Gamma / m.Beta
}

func (m *SIRV) GetParams() map[string]float64 {
	return map[string]float64{"beta": m.Beta, "gamma": m.Gamma, "vaccination_rate": m.VaccinationRate}
}

func (m *SIRV) SetParam(name string, value float64) error {
	switch name {
	case "beta":
		m.Beta = value
	case "gamma":
		m.Gamma = value
	case "vaccination_rate":
		m.VaccinationRate = value
	default:
		return fmt.Errorf("%w: unknown parameter %q", dynamo.ErrParameterBounds, name)
	}
	return nil
}
