package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/sim"
)

// SeriesColors matches export.SeriesColors as closely as the 16-colour
// palette allows.
var SeriesColors = []asciigraph.AnsiColor{
	asciigraph.Blue,
	asciigraph.Red,
	asciigraph.Green,
	asciigraph.Magenta,
}

// SpeciesChart plots the four compartments of one species on a shared axis.
func SpeciesChart(name string, times []float64, tr sim.Trajectory, width, height int) string {
	if len(tr) == 0 {
		return Subtle.Render(name + ": no data")
	}

	data := make([][]float64, len(epidemic.CompartmentNames))
	for c := range data {
		data[c] = tr.Series(c)
	}

	caption := name
	if len(times) > 1 {
		caption = fmt.Sprintf("%s, %.0f to %.0f days", name, times[0], times[len(times)-1])
		if i := sim.Peak(data[epidemic.Infectious]); i >= 0 && i < len(times) {
			caption += fmt.Sprintf(", infectious peak day %.1f", times[i])
		}
	}

	return asciigraph.PlotMany(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(0),
		asciigraph.SeriesColors(SeriesColors...),
		asciigraph.SeriesLegends(epidemic.CompartmentNames[:]...),
		asciigraph.Caption(caption),
	)
}

// metricOrder fixes the display order of the known metrics; unknown ones
// follow alphabetically.
var metricOrder = []string{"peak_infectious", "peak_day", "attack_rate", "conservation_drift", "non_negative"}

// Summary renders the metrics and solver stats of one species as aligned
// label/value lines.
func Summary(metrics map[string]float64, stats sim.SolverStats) string {
	var names []string
	seen := make(map[string]bool)
	for _, k := range metricOrder {
		if _, ok := metrics[k]; ok {
			names = append(names, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range metrics {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	names = append(names, rest...)

	var sb strings.Builder
	for _, k := range names {
		sb.WriteString(MetricLabel.Render(fmt.Sprintf("%-20s", k)))
		sb.WriteString(MetricValue.Render(formatMetric(k, metrics[k])))
		sb.WriteByte('\n')
	}

	solver := fmt.Sprintf("%d steps, %d rejected", stats.Steps, stats.Rejected)
	if stats.Stiff {
		solver += ", stiff"
	}
	sb.WriteString(MetricLabel.Render(fmt.Sprintf("%-20s", "solver")))
	sb.WriteString(MetricValue.Render(solver))
	return sb.String()
}

func formatMetric(name string, v float64) string {
	switch name {
	case "peak_day":
		return fmt.Sprintf("%.1f", v)
	case "attack_rate", "non_negative":
		return fmt.Sprintf("%.2f%%", 100*v)
	case "conservation_drift":
		return fmt.Sprintf("%.2e", v)
	default:
		return fmt.Sprintf("%.6g", v)
	}
}
