package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/sim"
)

const (
	DefaultIntegrator = "auto"
	DefaultMetrics    = "default"
	DefaultOutput     = "data/sirv_influenza_all_species.csv"
	DefaultDataDir    = "runs"
)

type Config struct {
	Species    []SpeciesConfig `yaml:"species"`
	Parameters ParameterConfig `yaml:"parameters"`
	Solver     SolverConfig    `yaml:"solver"`
	Output     OutputConfig    `yaml:"output"`
}

// SpeciesConfig is one entry of the ordered species list. The list order is
// the row order of the result table.
type SpeciesConfig struct {
	Name               string  `yaml:"name"`
	InitialSusceptible float64 `yaml:"initial_susceptible"`
	InitialInfectious  float64 `yaml:"initial_infectious"`
	VaccinationRate    float64 `yaml:"vaccination_rate"`
}

type ParameterConfig struct {
	Beta         float64 `yaml:"beta"`
	Gamma        float64 `yaml:"gamma"`
	DurationDays float64 `yaml:"duration_days"`
	Resolution   int     `yaml:"resolution"`
}

type SolverConfig struct {
	Integrator   string  `yaml:"integrator"`
	Metrics      string  `yaml:"metrics"`
	Tolerance    float64 `yaml:"tolerance"`
	AbsTolerance float64 `yaml:"abs_tolerance"`
	Dt           float64 `yaml:"dt"`
	MaxSteps     int     `yaml:"max_steps"`
	Workers      int     `yaml:"workers"`
}

type OutputConfig struct {
	CSV     string `yaml:"csv"`
	DataDir string `yaml:"data_dir"`
}

// DefaultConfig is the avian influenza run across humans, ducks and pigs.
func DefaultConfig() *Config {
	solver := dynamo.DefaultConfig()
	return &Config{
		Species: []SpeciesConfig{
			{Name: "Humans", InitialSusceptible: 283e6, InitialInfectious: 47e6, VaccinationRate: 0.001},
			{Name: "Mallard Ducks", InitialSusceptible: 6.27e6, InitialInfectious: 3.3e5, VaccinationRate: 0.0005},
			{Name: "Yorkshire Pigs", InitialSusceptible: 65.7e6, InitialInfectious: 7.3e6, VaccinationRate: 0.0008},
		},
		Parameters: ParameterConfig{
			Beta:         sim.DefaultBeta,
			Gamma:        sim.DefaultGamma,
			DurationDays: sim.DefaultDuration,
			Resolution:   sim.DefaultResolution,
		},
		Solver: SolverConfig{
			Integrator:   DefaultIntegrator,
			Metrics:      DefaultMetrics,
			Tolerance:    solver.Tolerance,
			AbsTolerance: solver.AbsTolerance,
			Dt:           solver.Dt,
			MaxSteps:     solver.MaxSteps,
		},
		Output: OutputConfig{
			CSV:     DefaultOutput,
			DataDir: DefaultDataDir,
		},
	}
}

// Load reads a YAML file over DefaultConfig. A species list in the file
// replaces the default list.
func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver reads a YAML file over a copy of base; keys absent from the
// file keep base's values. base is not modified.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := base.Clone()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) GetSpecies() []sim.Species {
	out := make([]sim.Species, len(c.Species))
	for i, s := range c.Species {
		out[i] = sim.Species{
			Name: s.Name,
			SpeciesConfig: sim.SpeciesConfig{
				InitialSusceptible: s.InitialSusceptible,
				InitialInfectious:  s.InitialInfectious,
				VaccinationRate:    s.VaccinationRate,
			},
		}
	}
	return out
}

func (c *Config) GetParameters() sim.Parameters {
	return sim.Parameters{
		Beta:         c.Parameters.Beta,
		Gamma:        c.Parameters.Gamma,
		DurationDays: c.Parameters.DurationDays,
		Resolution:   c.Parameters.Resolution,
	}
}

// GetSolverConfig overlays the non-zero solver settings on
// dynamo.DefaultConfig.
func (c *Config) GetSolverConfig() dynamo.Config {
	cfg := dynamo.DefaultConfig()
	if c.Solver.Tolerance > 0 {
		cfg.Tolerance = c.Solver.Tolerance
	}
	if c.Solver.AbsTolerance > 0 {
		cfg.AbsTolerance = c.Solver.AbsTolerance
	}
	if c.Solver.Dt > 0 {
		cfg.Dt = c.Solver.Dt
	}
	if c.Solver.MaxSteps > 0 {
		cfg.MaxSteps = c.Solver.MaxSteps
	}
	return cfg
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Species = append([]SpeciesConfig(nil), c.Species...)
	return &out
}
