package sim

import (
	"fmt"
	"math"
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidParameter}, args...)...)
}

// Validate checks the shared parameters.
func (p Parameters) Validate() error {
	switch {
	case !finite(p.Beta) || p.Beta <= 0:
		return invalid("beta must be positive, got %g", p.Beta)
	case !finite(p.Gamma) || p.Gamma <= 0:
		return invalid("gamma must be positive, got %g", p.Gamma)
	case !finite(p.DurationDays) || p.DurationDays <= 0:
		return invalid("duration must be positive, got %g", p.DurationDays)
	case p.Resolution < 2:
		return invalid("resolution must be at least 2, got %d", p.Resolution)
	}
	return nil
}

// Validate checks one species configuration.
func (s Species) Validate() error {
	if s.Name == "" {
		return invalid("species name is empty")
	}
	fields := []struct {
		name string
		v    float64
	}{
		{"initial susceptible", s.InitialSusceptible},
		{"initial infectious", s.InitialInfectious},
		{"vaccination rate", s.VaccinationRate},
	}
	for _, f := range fields {
		if !finite(f.v) || f.v < 0 {
			return invalid("species %q: %s must be a non-negative number, got %g", s.Name, f.name, f.v)
		}
	}
	return nil
}

// Validate checks a whole run up front so no integration starts on bad
// input.
func Validate(species []Species, params Parameters) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if len(species) == 0 {
		return invalid("no species given")
	}
	seen := make(map[string]bool, len(species))
	for _, s := range species {
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.Name] {
			return invalid("duplicate species %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}
