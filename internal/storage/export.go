package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/sim"
)

type SpeciesExport struct {
	Name        string             `json:"name"`
	Susceptible []float64          `json:"susceptible"`
	Infectious  []float64          `json:"infectious"`
	Recovered   []float64          `json:"recovered"`
	Vaccinated  []float64          `json:"vaccinated"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

type ExportData struct {
	ID         string          `json:"id,omitempty"`
	Integrator string          `json:"integrator,omitempty"`
	Parameters sim.Parameters  `json:"parameters"`
	Times      []float64       `json:"times"`
	Species    []SpeciesExport `json:"species"`
}

func newExportData(meta *RunMetadata, res *sim.Result) ExportData {
	data := ExportData{
		ID:         meta.ID,
		Integrator: meta.Integrator,
		Parameters: meta.Parameters,
		Times:      res.Times,
		Species:    make([]SpeciesExport, 0, len(res.Order)),
	}
	for _, name := range res.Order {
		tr := res.Trajectories[name]
		data.Species = append(data.Species, SpeciesExport{
			Name:        name,
			Susceptible: tr.Series(epidemic.Susceptible),
			Infectious:  tr.Series(epidemic.Infectious),
			Recovered:   tr.Series(epidemic.Recovered),
			Vaccinated:  tr.Series(epidemic.Vaccinated),
			Metrics:     res.Metrics[name],
		})
	}
	return data
}

// WriteJSON writes one series per compartment for each species, in run
// order.
func WriteJSON(w io.Writer, meta *RunMetadata, res *sim.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newExportData(meta, res))
}

func ExportJSON(path string, meta *RunMetadata, res *sim.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteJSON(f, meta, res)
}
