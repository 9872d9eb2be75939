package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/deepagent/internal/orchestrator"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	progressWidth   = 40
	answerPreview   = 300
)

// Fetcher returns the state of a remote run.
type Fetcher interface {
	Fetch(ctx context.Context) (orchestrator.StateSummary, error)
}

// Model is the Bubble Tea run monitor. It is fed either by the event
// channel of a local run or by polling a Fetcher.
type Model struct {
	events   <-chan orchestrator.Event
	fetcher  Fetcher
	interval time.Duration
	now      func() time.Time

	state      RunState
	lastUpdate time.Time
	err        error
	closed     bool
	quitting   bool

	progress progress.Model
}

// Option configures a Model.
type Option func(*Model)

// WithClock replaces time.Now for elapsed-time rendering.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// WithInterval sets the refresh interval. The default is one second.
func WithInterval(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.interval = d
		}
	}
}

// NewRunModel monitors a local run by consuming its events. The program
// exits once the channel is closed.
func NewRunModel(query string, events <-chan orchestrator.Event, opts ...Option) Model {
	m := newModel(opts)
	m.events = events
	m.state.Query = query
	return m
}

// NewWatchModel monitors a remote server by polling f.
func NewWatchModel(f Fetcher, opts ...Option) Model {
	m := newModel(opts)
	m.fetcher = f
	return m
}

func newModel(opts []Option) Model {
	m := Model{
		interval: time.Second,
		now:      time.Now,
		progress: progress.New(
			progress.WithGradient("#00ffff", "#00ff00"),
			progress.WithWidth(progressWidth),
		),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// State returns what the monitor has observed so far.
func (m Model) State() RunState {
	return m.state
}

// Lipgloss styles (k9s-inspired color scheme)
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

func phaseBadge(p orchestrator.Phase) string {
	switch p {
	case orchestrator.PhaseDone:
		return healthyStyle.Render("✓ DONE")
	case orchestrator.PhaseError:
		return errorStyle.Render("✗ ERROR")
	case "":
		return dimStyle.Render("… WAITING")
	default:
		return warningStyle.Render("● " + strings.ToUpper(string(p)))
	}
}

func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	spark.Draw()

	return sparklineStyle.Render(spark.View())
}

type (
	tickMsg         time.Time
	eventMsg        orchestrator.Event
	streamClosedMsg struct{}
	stateMsg        orchestrator.StateSummary
	errMsg          struct{ err error }
)

// Init starts consuming the event stream or polling.
func (m Model) Init() tea.Cmd {
	if m.events != nil {
		return tea.Batch(waitForEvent(m.events), tick(m.interval))
	}
	return tea.Batch(fetchState(m.fetcher), tick(m.interval))
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForEvent(events <-chan orchestrator.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func fetchState(f Fetcher) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		sum, err := f.Fetch(ctx)
		if err != nil {
			return errMsg{err}
		}
		return stateMsg(sum)
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			if m.fetcher != nil {
				return m, fetchState(m.fetcher)
			}
		}

	case tea.WindowSizeMsg:
		if w := msg.Width - 20; w > 10 && w < progressWidth {
			m.progress.Width = w
		}

	case eventMsg:
		m.state.Apply(orchestrator.Event(msg))
		m.lastUpdate = m.now()
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		m.closed = true
		return m, tea.Quit

	case tickMsg:
		if m.closed || m.quitting {
			return m, nil
		}
		if m.fetcher != nil {
			return m, tea.Batch(tick(m.interval), fetchState(m.fetcher))
		}
		return m, tick(m.interval)

	case stateMsg:
		m.state.ApplySummary(orchestrator.StateSummary(msg))
		m.lastUpdate = m.now()
		m.err = nil

	case errMsg:
		m.err = msg.err
	}

	return m, nil
}

// View renders the monitor.
func (m Model) View() string {
	if m.quitting && !m.closed {
		return ""
	}

	var b strings.Builder
	st := &m.state

	b.WriteString(headerStyle.Render(" deepagent ") + "\n")
	fmt.Fprintf(&b, "%s   %s %s   %s\n",
		phaseBadge(st.Phase),
		dimStyle.Render("Elapsed:"),
		valueStyle.Render(FormatDuration(m.elapsed())),
		dimStyle.Render(m.updated()))
	if st.Query != "" {
		b.WriteString(labelStyle.Render("Query: ") + valueStyle.Render(Truncate(st.Query, 70)) + "\n")
	}
	if st.RunID != "" {
		b.WriteString(labelStyle.Render("Run:   ") + dimStyle.Render(st.RunID) + "\n")
	}
	if m.err != nil {
		if errors.Is(m.err, ErrNoRun) {
			b.WriteString(dimStyle.Render("Waiting for the first run") + "\n")
		} else {
			b.WriteString(errorStyle.Render("⚠ "+m.err.Error()) + "\n")
		}
	}

	b.WriteString("\n" + sectionStyle.Render("┃ Tasks") + "\n")
	b.WriteString(labelStyle.Render("  Progress: ") +
		m.progress.ViewAs(st.Progress()) + " " +
		dimStyle.Render(FormatPercentage(st.Progress())) + "\n")
	b.WriteString(labelStyle.Render("  Done: ") +
		valueStyle.Render(fmt.Sprintf("%d/%d", st.Completed, st.Total)) +
		labelStyle.Render("  Failed: ") + valueStyle.Render(fmt.Sprintf("%d", st.Failed)) + "\n")
	b.WriteString(labelStyle.Render("  Seconds per task: ") + createSparkline(st.TaskSeconds) + "\n")

	if len(st.Recent) > 0 {
		b.WriteString("\n" + sectionStyle.Render("┃ Events") + "\n")
		for _, line := range st.Recent {
			b.WriteString("  " + dimStyle.Render(line) + "\n")
		}
	}

	switch {
	case st.Err != "":
		b.WriteString("\n" + sectionStyle.Render("┃ Error") + "\n")
		b.WriteString("  " + errorStyle.Render(st.Err) + "\n")
	case st.Answer != "":
		b.WriteString("\n" + sectionStyle.Render("┃ Answer") + "\n")
		b.WriteString("  " + valueStyle.Render(Truncate(st.Answer, answerPreview)) + "\n")
	}

	footer := footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ")
	if m.fetcher != nil {
		footer += footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
			footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval))
	}
	b.WriteString("\n" + footer)

	return containerStyle.Render(b.String())
}

func (m Model) elapsed() time.Duration {
	st := &m.state
	if m.fetcher != nil {
		return time.Duration(st.ExecutionTime * float64(time.Second))
	}
	if st.Started.IsZero() {
		return 0
	}
	if !st.Finished.IsZero() {
		return st.Finished.Sub(st.Started)
	}
	return m.now().Sub(st.Started)
}

func (m Model) updated() string {
	if m.lastUpdate.IsZero() {
		return "Never"
	}
	return m.lastUpdate.Format("3:04:05 PM")
}
