package export

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/sim"
)

// Series colours, indexed like epidemic.CompartmentNames.
var SeriesColors = [4]string{"#1f77b4", "#d62728", "#2ca02c", "#9467bd"}

const (
	panelWidth  = 900
	panelHeight = 320
	marginLeft  = 90
	marginRight = 150
	marginTop   = 40
	marginBot   = 50
	ticks       = 5
)

// StackedSVG draws one panel per species, stacked vertically in order, each
// with the four compartment curves against time.
func StackedSVG(times []float64, order []string, trajectories map[string]sim.Trajectory) string {
	height := panelHeight * len(order)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif" font-size="12">
<rect width="100%%" height="100%%" fill="#ffffff"/>
`, panelWidth, height, panelWidth, height)

	for i, name := range order {
		writePanel(&sb, float64(i*panelHeight), name, times, trajectories[name])
	}

	sb.WriteString("</svg>\n")
	return sb.String()
}

func writePanel(sb *strings.Builder, top float64, name string, times []float64, tr sim.Trajectory) {
	plotW := float64(panelWidth - marginLeft - marginRight)
	plotH := float64(panelHeight - marginTop - marginBot)
	x0, y0 := float64(marginLeft), top+float64(marginTop)

	fmt.Fprintf(sb, `<text x="%.1f" y="%.1f" font-size="15" font-weight="bold">%s</text>
`, x0, top+24, html.EscapeString(name))

	if len(times) < 2 || len(tr) != len(times) {
		return
	}

	tMin, tMax := times[0], times[len(times)-1]
	yMax := 0.0
	for c := range epidemic.CompartmentNames {
		yMax = max(yMax, floats.Max(tr.Series(c)))
	}
	if yMax <= 0 {
		yMax = 1
	}

	px := func(t float64) float64 { return x0 + (t-tMin)/(tMax-tMin)*plotW }
	py := func(v float64) float64 { return y0 + plotH - v/yMax*plotH }

	fmt.Fprintf(sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="none" stroke="#444"/>
`, x0, y0, plotW, plotH)

	for k := 0; k <= ticks; k++ {
		frac := float64(k) / ticks
		t := tMin + frac*(tMax-tMin)
		v := frac * yMax
		fmt.Fprintf(sb, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#ddd"/>
`, x0, py(v), x0+plotW, py(v))
		fmt.Fprintf(sb, `<text x="%.1f" y="%.1f" text-anchor="end">%s</text>
`, x0-6, py(v)+4, formatTick(v))
		fmt.Fprintf(sb, `<text x="%.1f" y="%.1f" text-anchor="middle">%s</text>
`, px(t), y0+plotH+16, formatTick(t))
	}

	fmt.Fprintf(sb, `<text x="%.1f" y="%.1f" text-anchor="middle">Time (days)</text>
`, x0+plotW/2, y0+plotH+36)
	fmt.Fprintf(sb, `<text x="%.1f" y="%.1f" text-anchor="middle" transform="rotate(-90 %.1f %.1f)">Population</text>
`, x0-70, y0+plotH/2, x0-70, y0+plotH/2)

	for c, label := range epidemic.CompartmentNames {
		series := tr.Series(c)
		sb.WriteString(`<polyline fill="none" stroke-width="1.5" stroke="`)
		sb.WriteString(SeriesColors[c])
		sb.WriteString(`" points="`)
		for i, v := range series {
			if i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(sb, "%.1f,%.1f", px(times[i]), py(v))
		}
		sb.WriteString("\"/>\n")

		ly := y0 + 10 + float64(c)*20
		lx := x0 + plotW + 16
		fmt.Fprintf(sb, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="3"/>
<text x="%.1f" y="%.1f">%s</text>
`, lx, ly, lx+20, ly, SeriesColors[c], lx+26, ly+4, label)
	}
}

func formatTick(v float64) string {
	switch {
	case v >= 1e6:
		return fmt.Sprintf("%.3gM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.3gk", v/1e3)
	default:
		return fmt.Sprintf("%.3g", v)
	}
}

// WriteSVG renders the result to path, creating parent directories.
func WriteSVG(path string, res *sim.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(StackedSVG(res.Times, res.Order, res.Trajectories)), 0644)
}
