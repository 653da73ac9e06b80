package sim

// ResultTable is the long-format table: one row per (species, time), species
// in run order and times increasing within each species.
type ResultTable struct {
	Rows []Row
}

func NewResultTable(capacity int) *ResultTable {
	return &ResultTable{Rows: make([]Row, 0, capacity)}
}

func (t *ResultTable) Len() int { return len(t.Rows) }

// Append adds one row per sample of tr.
func (t *ResultTable) Append(species string, times []float64, tr Trajectory) {
	for i, x := range tr {
		t.Rows = append(t.Rows, Row{
			Time:        times[i],
			Susceptible: x[0],
			Infectious:  x[1],
			Recovered:   x[2],
			Vaccinated:  x[3],
			Species:     species,
		})
	}
}

// Species lists the distinct species labels in row order.
func (t *ResultTable) Species() []string {
	var names []string
	seen := make(map[string]bool)
	for _, r := range t.Rows {
		if !seen[r.Species] {
			seen[r.Species] = true
			names = append(names, r.Species)
		}
	}
	return names
}

// Filter returns the rows for one species.
func (t *ResultTable) Filter(species string) []Row {
	var rows []Row
	for _, r := range t.Rows {
		if r.Species == species {
			rows = append(rows, r)
		}
	}
	return rows
}
