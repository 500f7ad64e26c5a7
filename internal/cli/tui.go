package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/forceweave/pkg/filter"
	"github.com/matzehuels/forceweave/pkg/layout"
	"github.com/matzehuels/forceweave/pkg/stats"
)

var (
	dashDimStyle   = lipgloss.NewStyle().Foreground(colorDim)
	dashLabelStyle = lipgloss.NewStyle().Foreground(colorGray).Width(10)
	dashErrorStyle = lipgloss.NewStyle().Foreground(colorRed)
)

// =============================================================================
// Messages
// =============================================================================

// stateMsg reports a layout state transition.
type stateMsg layout.State

// progressMsg reports layout progress.
type progressMsg layout.Progress

// refreshMsg carries the view after a refresh.
type refreshMsg struct {
	nodes, links int
	counters     stats.Counters
	indicators   stats.Indicators
	at           time.Time
}

// refreshErrMsg reports a failed refresh. The dashboard keeps showing the
// last good view.
type refreshErrMsg struct{ err error }

// =============================================================================
// DashboardModel - Live session view
// =============================================================================

// DashboardModel is the bubbletea model of the watch command: layout phase
// and progress, plus the statistics of the latest refresh.
type DashboardModel struct {
	Source string
	Mode   filter.Mode

	bar       progress.Model
	state     layout.State
	progress  layout.Progress
	last      *refreshMsg
	refreshes int
	err       error
}

// NewDashboardModel creates a dashboard for source in mode.
func NewDashboardModel(source string, mode filter.Mode) DashboardModel {
	return DashboardModel{
		Source: source,
		Mode:   mode,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m DashboardModel) Init() tea.Cmd {
	return nil
}

func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.bar.Width = min(60, max(10, msg.Width-20))
	case stateMsg:
		m.state = layout.State(msg)
		switch m.state {
		case layout.Interactive, layout.Stopped:
			return m, m.bar.SetPercent(1)
		case layout.StrategySelected:
			m.progress = layout.Progress{}
			return m, m.bar.SetPercent(0)
		}
	case progressMsg:
		m.progress = layout.Progress(msg)
		return m, m.bar.SetPercent(m.progress.Percent / 100)
	case refreshMsg:
		m.last = &msg
		m.refreshes++
		m.err = nil
	case refreshErrMsg:
		m.err = msg.err
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m DashboardModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(appName+" watch") + " " + dashDimStyle.Render(m.Source))
	b.WriteString("\n\n")

	b.WriteString(dashLabelStyle.Render("mode") + StyleValue.Render(string(m.Mode)) + "\n")
	phase := m.state.String()
	if m.progress.Strategy != "" {
		phase += dashDimStyle.Render(" · " + string(m.progress.Strategy))
	}
	b.WriteString(dashLabelStyle.Render("layout") + StyleValue.Render(phase) + "\n")
	b.WriteString(dashLabelStyle.Render("") + m.bar.View())
	if m.progress.Total > 0 {
		b.WriteString(dashDimStyle.Render(fmt.Sprintf("  %d/%d", m.progress.Iteration, m.progress.Total)))
	}
	b.WriteString("\n")

	if m.last != nil {
		b.WriteString(dashLabelStyle.Render("graph") + StyleNumber.Render(fmt.Sprintf("%d", m.last.nodes)) +
			dashDimStyle.Render(" nodes · ") + StyleNumber.Render(fmt.Sprintf("%d", m.last.links)) + dashDimStyle.Render(" links") + "\n")
		b.WriteString(dashLabelStyle.Render("refreshed") + StyleValue.Render(m.last.at.Format("15:04:05")) +
			dashDimStyle.Render(fmt.Sprintf(" (%d)", m.refreshes)) + "\n\n")
		b.WriteString(statsTable(m.last.counters, m.last.indicators))
		b.WriteString("\n")
	} else {
		b.WriteString("\n" + dashDimStyle.Render("waiting for first fetch...") + "\n")
	}

	if m.err != nil {
		b.WriteString("\n" + dashErrorStyle.Render(iconError+" refresh failed: "+m.err.Error()) + "\n")
	}
	b.WriteString("\n" + dashDimStyle.Render("q quit"))
	return b.String()
}
