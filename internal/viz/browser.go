package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/sim"
)

// Browser pages through the species of one result, one chart at a time.
type Browser struct {
	title       string
	res         *sim.Result
	cursor      int
	theme       int
	showSummary bool
	width       int
	height      int
}

func NewBrowser(title string, res *sim.Result) Browser {
	return Browser{
		title:       title,
		res:         res,
		showSummary: true,
		width:       100,
		height:      30,
	}
}

// Species is the name on the current page.
func (b Browser) Species() string {
	if len(b.res.Order) == 0 {
		return ""
	}
	return b.res.Order[b.cursor]
}

func (b Browser) Init() tea.Cmd { return nil }

func (b Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return b.handleKey(msg)
	case tea.WindowSizeMsg:
		b.width, b.height = msg.Width, msg.Height
	}
	return b, nil
}

func (b Browser) handleKey(msg tea.KeyMsg) (Browser, tea.Cmd) {
	n := len(b.res.Order)
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return b, tea.Quit
	case "right", "l", "tab", "n":
		if n > 0 {
			b.cursor = (b.cursor + 1) % n
		}
	case "left", "h", "shift+tab", "p":
		if n > 0 {
			b.cursor = (b.cursor - 1 + n) % n
		}
	case "home", "g":
		b.cursor = 0
	case "end", "G":
		b.cursor = max(n-1, 0)
	case "s":
		b.showSummary = !b.showSummary
	case "t":
		b.theme = (b.theme + 1) % len(Themes)
	}
	return b, nil
}

func (b Browser) View() string {
	theme := Themes[b.theme]
	title := Title.Foreground(theme.Primary)
	hint := KeyHint.Foreground(theme.Muted)

	var sb strings.Builder
	sb.WriteString(title.Render(b.title))
	if n := len(b.res.Order); n > 0 {
		sb.WriteString(hint.Render(fmt.Sprintf("  %d/%d", b.cursor+1, n)))
	}
	sb.WriteString("\n\n")

	name := b.Species()
	if name == "" {
		sb.WriteString(Subtle.Render("no species in this run"))
		return sb.String()
	}

	tr := b.res.Trajectories[name]
	chartHeight := max(b.height-14, 6)
	if !b.showSummary {
		chartHeight = max(b.height-6, 6)
	}
	chartWidth := max(b.width-16, 20)
	sb.WriteString(SpeciesChart(name, b.res.Times, tr, chartWidth, chartHeight))
	sb.WriteString("\n\n")

	if b.showSummary {
		infectious := Sparkline(tr.Series(epidemic.Infectious), min(chartWidth, 60))
		body := lipgloss.JoinVertical(lipgloss.Left,
			MetricLabel.Render("infectious  ")+infectious,
			Summary(b.res.Metrics[name], b.res.Stats[name]),
		)
		sb.WriteString(Panel.BorderForeground(theme.Accent).Render(body))
		sb.WriteString("\n")
	}

	sb.WriteString(hint.Render("←/→ species  s summary  t theme  q quit"))
	return sb.String()
}

// RunBrowser opens the browser full screen and blocks until it exits.
func RunBrowser(title string, res *sim.Result) error {
	_, err := tea.NewProgram(NewBrowser(title, res), tea.WithAltScreen()).Run()
	return err
}
