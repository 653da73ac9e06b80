package metrics

import (
	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epidemic"
)

// PeakInfectious records the largest infectious count and when it occurred.
type PeakInfectious struct {
	peak    float64
	day     float64
	samples int
}

func NewPeakInfectious() *PeakInfectious { return &PeakInfectious{} }

func (p *PeakInfectious) Name() string { return "peak_infectious" }

func (p *PeakInfectious) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if i := x[epidemic.Infectious]; p.samples == 0 || i > p.peak {
		p.peak, p.day = i, t
	}
	p.samples++
}

func (p *PeakInfectious) Value() float64 { return p.peak }

// Day is the time of the peak.
func (p *PeakInfectious) Day() float64 { return p.day }

func (p *PeakInfectious) Reset() { *p = PeakInfectious{} }

// PeakDay exposes the peak time of a PeakInfectious as its own metric.
type PeakDay struct{ *PeakInfectious }

func (p PeakDay) Name() string { return "peak_day" }

// Observe is a no-op; the wrapped PeakInfectious does the observing.
func (p PeakDay) Observe(dynamo.State, dynamo.Control, float64) {}

func (p PeakDay) Value() float64 { return p.Day() }

// AttackRate is the share of the initial population that was ever
// infectious by the last observation: (I+R) at the end over the initial
// total, with the initial infectious counted as infected.
type AttackRate struct {
	initial float64
	last    dynamo.State
}

func NewAttackRate() *AttackRate { return &AttackRate{} }

func (a *AttackRate) Name() string { return "attack_rate" }

func (a *AttackRate) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if a.last == nil {
		a.initial = x.Sum()
	}
	a.last = x
}

func (a *AttackRate) Value() float64 {
	if a.last == nil || a.initial == 0 {
		return 0
	}
	return (a.last[epidemic.Infectious] + a.last[epidemic.Recovered]) / a.initial
}

func (a *AttackRate) Reset() { *a = AttackRate{} }

// Default returns a fresh set of the standard per-species metrics.
func Default() []dynamo.Metric {
	peak := NewPeakInfectious()
	return []dynamo.Metric{
		NewConservationDrift(),
		NewNonNegative(1e-9),
		peak,
		PeakDay{peak},
		NewAttackRate(),
	}
}
