package config

import "sort"

// Presets are complete run configurations selectable by name.
var Presets = map[string]*Config{
	"influenza": DefaultConfig(),
	"outbreak": func() *Config {
		cfg := DefaultConfig()
		cfg.Species = []SpeciesConfig{
			{Name: "Village", InitialSusceptible: 1000, InitialInfectious: 10, VaccinationRate: 0},
			{Name: "Town", InitialSusceptible: 5000, InitialInfectious: 5, VaccinationRate: 0.01},
		}
		cfg.Output.CSV = "data/sirv_outbreak.csv"
		return cfg
	}(),
	"no-vaccine": func() *Config {
		cfg := DefaultConfig()
		for i := range cfg.Species {
			cfg.Species[i].VaccinationRate = 0
		}
		cfg.Output.CSV = "data/sirv_influenza_no_vaccine.csv"
		return cfg
	}(),
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
