package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/san-kum/episim/internal/sim"
)

// ErrMalformed is returned when a results file does not have the result
// table layout.
var ErrMalformed = errors.New("storage: malformed results file")

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteCSV writes the table with a header row and no index column. Floats
// use the shortest representation that parses back to the same value.
func WriteCSV(w io.Writer, table *sim.ResultTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(sim.Columns); err != nil {
		return err
	}

	record := make([]string, len(sim.Columns))
	for _, r := range table.Rows {
		record[0] = formatFloat(r.Time)
		record[1] = formatFloat(r.Susceptible)
		record[2] = formatFloat(r.Infectious)
		record[3] = formatFloat(r.Recovered)
		record[4] = formatFloat(r.Vaccinated)
		record[5] = r.Species
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportCSV writes the table to path, creating parent directories.
func ExportCSV(path string, table *sim.ResultTable) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteCSV(f, table)
}

// ReadCSV parses a table written by WriteCSV.
func ReadCSV(r io.Reader) (*sim.ResultTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(sim.Columns)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrMalformed)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	for i, col := range sim.Columns {
		if header[i] != col {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrMalformed, i, header[i], col)
		}
	}

	table := sim.NewResultTable(0)
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}

		var vals [5]float64
		for i := range vals {
			v, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %q: %w", ErrMalformed, line, sim.Columns[i], err)
			}
			vals[i] = v
		}
		table.Rows = append(table.Rows, sim.Row{
			Time:        vals[0],
			Susceptible: vals[1],
			Infectious:  vals[2],
			Recovered:   vals[3],
			Vaccinated:  vals[4],
			Species:     record[5],
		})
	}
	return table, nil
}

func LoadCSV(path string) (*sim.ResultTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}
