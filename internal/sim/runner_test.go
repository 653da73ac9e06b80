package sim

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/integrators"
	"github.com/san-kum/episim/internal/logging"
)

func mildSpecies(name string, s0, i0, v float64) Species {
	return Species{Name: name, SpeciesConfig: SpeciesConfig{
		InitialSusceptible: s0,
		InitialInfectious:  i0,
		VaccinationRate:    v,
	}}
}

func TestRunner_Scenario(t *testing.T) {
	res, err := New().Run(context.Background(),
		[]Species{mildSpecies("A", 1000, 10, 0)}, DefaultParameters())
	require.NoError(t, err)

	tr := res.Trajectories["A"]
	require.Len(t, tr, DefaultResolution)
	assert.Equal(t, dynamo.State{1000, 10, 0, 0}, tr[0])
	assert.Equal(t, 0.0, res.Times[0])
	assert.Equal(t, DefaultDuration, res.Times[len(res.Times)-1])

	infectious := tr.Series(epidemic.Infectious)
	peak := Peak(infectious)
	assert.Greater(t, infectious[1], infectious[0], "infectious must rise initially")
	assert.Greater(t, peak, 0)
	assert.Less(t, peak, len(infectious)-1)
	assert.Less(t, infectious[len(infectious)-1], infectious[peak]/100, "epidemic should burn out")

	assert.Less(t, tr[len(tr)-1][epidemic.Susceptible], 50.0, "S must fall below gamma/beta")
	assert.InDelta(t, infectious[peak], res.Metrics["A"]["peak_infectious"], 1e-9)
}

func TestRunner_RowOrder(t *testing.T) {
	species := []Species{
		mildSpecies("A", 1000, 10, 0.01),
		mildSpecies("B", 500, 5, 0),
	}
	res, err := New(WithWorkers(4)).Run(context.Background(), species, DefaultParameters())
	require.NoError(t, err)

	require.Equal(t, 1000, res.Table.Len())
	assert.Equal(t, []string{"A", "B"}, res.Order)
	assert.Equal(t, []string{"A", "B"}, res.Table.Species())
	for i, row := range res.Table.Rows {
		want := "A"
		if i >= DefaultResolution {
			want = "B"
		}
		require.Equal(t, want, row.Species, "row %d", i)
	}
	assert.Len(t, res.Table.Filter("B"), DefaultResolution)
}

func TestRunner_InvalidInput(t *testing.T) {
	valid := []Species{mildSpecies("A", 1000, 10, 0)}

	tests := []struct {
		name    string
		species []Species
		mutate  func(*Parameters)
	}{
		{"resolution one", valid, func(p *Parameters) { p.Resolution = 1 }},
		{"zero beta", valid, func(p *Parameters) { p.Beta = 0 }},
		{"negative duration", valid, func(p *Parameters) { p.DurationDays = -1 }},
		{"negative susceptible", []Species{mildSpecies("A", -1, 10, 0)}, nil},
		{"negative vaccination", []Species{mildSpecies("A", 1000, 10, -0.1)}, nil},
		{"empty species list", nil, nil},
		{"empty name", []Species{mildSpecies("", 1000, 10, 0)}, nil},
		{"duplicate name", []Species{mildSpecies("A", 1, 1, 0), mildSpecies("A", 2, 2, 0)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultParameters()
			if tt.mutate != nil {
				tt.mutate(&params)
			}
			res, err := New().Run(context.Background(), tt.species, params)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrInvalidParameter)
		})
	}
}

func TestRunner_Deterministic(t *testing.T) {
	species := []Species{
		mildSpecies("A", 1000, 10, 0.01),
		mildSpecies("B", 800, 2, 0.002),
		mildSpecies("C", 300, 30, 0),
	}
	params := DefaultParameters()

	seq, err := New(WithWorkers(1)).Run(context.Background(), species, params)
	require.NoError(t, err)
	again, err := New(WithWorkers(1)).Run(context.Background(), species, params)
	require.NoError(t, err)
	par, err := New(WithWorkers(3)).Run(context.Background(), species, params)
	require.NoError(t, err)

	assert.Equal(t, seq.Table.Rows, again.Table.Rows)
	assert.Equal(t, seq.Table.Rows, par.Table.Rows)
}

func TestRunner_FixedStepIntegrator(t *testing.T) {
	cfg := dynamo.DefaultConfig()
	cfg.Dt = 0.01
	runner := New(
		WithIntegrator(func() dynamo.Integrator { return integrators.NewRK4() }),
		WithSolverConfig(cfg),
	)

	res, err := runner.Run(context.Background(),
		[]Species{mildSpecies("A", 1000, 10, 0.01)}, DefaultParameters())
	require.NoError(t, err)

	for _, x := range res.Trajectories["A"] {
		assert.InEpsilon(t, 1010.0, epidemic.Population(x), 1e-9)
	}
	assert.False(t, res.Stats["A"].Stiff)
}

func TestRunner_IntegrationFailure(t *testing.T) {
	cfg := dynamo.DefaultConfig()
	cfg.MaxSteps = 5

	_, err := New(WithSolverConfig(cfg)).Run(context.Background(),
		[]Species{mildSpecies("Ducks", 1000, 10, 0)}, DefaultParameters())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIntegrationFailure)
	assert.ErrorIs(t, err, dynamo.ErrStepBudget)

	var se *SpeciesError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Ducks", se.Species)
	assert.Greater(t, se.Time, 0.0)
	assert.Contains(t, err.Error(), `"Ducks"`)
}

func TestRunner_LogsThreshold(t *testing.T) {
	var buf bytes.Buffer
	_, err := New(WithLogger(logging.New("debug", &buf))).Run(context.Background(),
		[]Species{mildSpecies("A", 1000, 10, 0)}, DefaultParameters())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "species=A")
	assert.Contains(t, out, "herd_threshold=")
	assert.Contains(t, out, "r0=")
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New().Run(ctx, []Species{mildSpecies("A", 1000, 10, 0)}, DefaultParameters())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunner_MetricsDisabled(t *testing.T) {
	res, err := New(WithMetrics(nil)).Run(context.Background(),
		[]Species{mildSpecies("A", 1000, 10, 0)}, DefaultParameters())
	require.NoError(t, err)
	assert.Nil(t, res.Metrics["A"])
	assert.Greater(t, res.Stats["A"].Steps, 0)
}

func TestResultFromTable(t *testing.T) {
	params := DefaultParameters()
	params.Resolution = 20
	res, err := New().Run(context.Background(), []Species{
		mildSpecies("A", 1000, 10, 0.01),
		mildSpecies("B", 500, 5, 0),
	}, params)
	require.NoError(t, err)

	back := ResultFromTable(res.Table)
	assert.Equal(t, res.Order, back.Order)
	assert.Equal(t, res.Times, back.Times)
	assert.Equal(t, res.Trajectories, back.Trajectories)
}

func TestPeak(t *testing.T) {
	assert.Equal(t, -1, Peak(nil))
	assert.Equal(t, 0, Peak([]float64{3}))
	assert.Equal(t, 2, Peak([]float64{1, 2, 5, 4}))
	assert.Equal(t, 1, Peak([]float64{1, 5, 5}))
}
