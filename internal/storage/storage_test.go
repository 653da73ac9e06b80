package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/episim/internal/sim"
)

func testResult() *sim.Result {
	times := []float64{0, 0.5, 1}
	x, y := 0.1, 0.2
	a := sim.Trajectory{{1000, 10, 0, 0}, {990.25, 18.5, 1.25, 0}, {x + y, 1e-17, 1.5e8, 3}}
	b := sim.Trajectory{{500, 5, 0, 0}, {499, 5.5, 0.5, 0}, {498, 6, 1, 0}}

	table := sim.NewResultTable(6)
	table.Append("Mallard Ducks", times, a)
	table.Append("Pigs", times, b)

	return &sim.Result{
		Times:        times,
		Table:        table,
		Order:        []string{"Mallard Ducks", "Pigs"},
		Trajectories: map[string]sim.Trajectory{"Mallard Ducks": a, "Pigs": b},
		Metrics: map[string]map[string]float64{
			"Mallard Ducks": {"peak_infectious": 18.5},
			"Pigs":          {"peak_infectious": 6},
		},
		Stats: map[string]sim.SolverStats{"Pigs": {Steps: 12, Rejected: 1, Stiff: true}},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testResult().Table))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "Time (days),Susceptible,Infectious,Recovered,Vaccinated,Species", lines[0])
	assert.Equal(t, "0,1000,10,0,0,Mallard Ducks", lines[1])
	assert.Equal(t, "0.5,990.25,18.5,1.25,0,Mallard Ducks", lines[2])
	assert.Equal(t, "1,0.30000000000000004,1e-17,1.5e+08,3,Mallard Ducks", lines[3])
	assert.Equal(t, "0,500,5,0,0,Pigs", lines[4])
}

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "out.csv")
	want := testResult().Table

	require.NoError(t, ExportCSV(path, want))
	got, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, want.Rows, got.Rows)
}

func TestReadCSV_Malformed(t *testing.T) {
	tests := map[string]string{
		"empty":        "",
		"wrong header": "time,S,I,R,V,Species\n",
		"bad number":   "Time (days),Susceptible,Infectious,Recovered,Vaccinated,Species\n0,abc,1,0,0,A\n",
		"short row":    "Time (days),Susceptible,Infectious,Recovered,Vaccinated,Species\n0,1,1\n",
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(data))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	res := testResult()
	meta := RunMetadata{
		Name:       "influenza",
		Integrator: "auto",
		Parameters: sim.DefaultParameters(),
		Species: []sim.Species{
			{Name: "Mallard Ducks", SpeciesConfig: sim.SpeciesConfig{InitialSusceptible: 1000, InitialInfectious: 10}},
			{Name: "Pigs", SpeciesConfig: sim.SpeciesConfig{InitialSusceptible: 500, InitialInfectious: 5}},
		},
	}

	runID, err := st.Save(meta, res)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(runID, "influenza_"))

	loaded, err := st.Load(runID)
	require.NoError(t, err)
	assert.Equal(t, runID, loaded.ID)
	assert.Equal(t, "auto", loaded.Integrator)
	assert.Equal(t, meta.Species, loaded.Species)
	assert.Equal(t, 18.5, loaded.Metrics["Mallard Ducks"]["peak_infectious"])
	assert.True(t, loaded.Stats["Pigs"].Stiff)

	_, back, err := st.LoadResult(runID)
	require.NoError(t, err)
	assert.Equal(t, res.Order, back.Order)
	assert.Equal(t, res.Times, back.Times)
	assert.Equal(t, res.Trajectories, back.Trajectories)
	assert.Equal(t, res.Metrics, back.Metrics)
}

func TestStoreSanitizesID(t *testing.T) {
	st := New(t.TempDir())
	runID, err := st.Save(RunMetadata{Name: "../my run"}, testResult())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(runID, "my-run_"), runID)

	runID, err = st.Save(RunMetadata{}, testResult())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(runID, "run_"), runID)
}

func TestStoreList(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)

	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = st.Latest()
	assert.Error(t, err)

	first, err := st.Save(RunMetadata{Name: "a"}, testResult())
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := st.Save(RunMetadata{Name: "b"}, testResult())
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "junk"), 0755))

	runs, err = st.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first, runs[0].ID)
	assert.Equal(t, second, runs[1].ID)

	latest, err := st.Latest()
	require.NoError(t, err)
	assert.Equal(t, second, latest.ID)
}

func TestStoreLoadMissing(t *testing.T) {
	st := New(t.TempDir())
	_, err := st.Load("nope")
	assert.Error(t, err)
	_, err = st.LoadTable("nope")
	assert.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	meta := &RunMetadata{ID: "x_1", Integrator: "rk45", Parameters: sim.DefaultParameters()}
	require.NoError(t, WriteJSON(&buf, meta, testResult()))

	var got ExportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "x_1", got.ID)
	assert.Equal(t, []float64{0, 0.5, 1}, got.Times)
	require.Len(t, got.Species, 2)
	assert.Equal(t, "Mallard Ducks", got.Species[0].Name)
	assert.Equal(t, []float64{10, 18.5, 1e-17}, got.Species[0].Infectious)
	assert.Equal(t, 6.0, got.Species[1].Metrics["peak_infectious"])
}

func TestExportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, ExportJSON(path, &RunMetadata{}, testResult()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"susceptible"`)
}
