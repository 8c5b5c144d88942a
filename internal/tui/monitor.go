package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/warden/internal/api"
	"github.com/mattjoyce/warden/internal/events"
	"github.com/mattjoyce/warden/internal/track"
)

const eventLogSize = 200

// Source is the part of the API client the monitor reads from.
type Source interface {
	Health(ctx context.Context) (*api.HealthzResponse, error)
	Scripts(ctx context.Context) ([]track.Record, error)
	Stats(ctx context.Context) (*track.Stats, error)
	Events(ctx context.Context, lastID int64, ch chan<- events.Event) error
}

type eventMsg events.Event

type snapshotMsg struct {
	health  api.HealthzResponse
	scripts []track.Record
	stats   track.Stats
}

type tickMsg time.Time

type errMsg struct{ err error }

type streamClosedMsg struct{ err error }

type reconnectMsg struct{}

// Model is the bubbletea model behind `warden monitor`.
type Model struct {
	ctx    context.Context
	source Source
	now    func() time.Time

	width  int
	height int

	health    api.HealthzResponse
	stats     track.Stats
	scripts   []track.Record
	eventLog  []events.Event
	lastID    int64
	connected bool
	lastError string

	hubEvents chan events.Event
	activity  Activity
	theme     Theme

	scriptTable table.Model
	eventView   viewport.Model
}

// NewMonitor returns a monitor reading from source until ctx is done.
func NewMonitor(ctx context.Context, source Source) *Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "Job", Width: 8},
			{Title: "Owner", Width: 12},
			{Title: "PID", Width: 8},
			{Title: "State", Width: 11},
			{Title: "Age", Width: 9},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return &Model{
		ctx:         ctx,
		source:      source,
		now:         time.Now,
		hubEvents:   make(chan events.Event, 100),
		theme:       NewDefaultTheme(),
		scriptTable: t,
		eventView:   viewport.New(80, 8),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribe(m.ctx, m.source, 0, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		fetchSnapshot(m.ctx, m.source),
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, fetchSnapshot(m.ctx, m.source)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.scriptTable.SetWidth(m.width - 6)
		m.eventView.Width = m.width - 6
		m.eventView.Height = max(m.height/3, 3)

	case tickMsg:
		m.activity.Decay(time.Time(msg))
		m.refreshRows()
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case eventMsg:
		e := events.Event(msg)
		if e.ID > m.lastID {
			m.lastID = e.ID
		}
		m.eventLog = append([]events.Event{e}, m.eventLog...)
		if len(m.eventLog) > eventLogSize {
			m.eventLog = m.eventLog[:eventLogSize]
		}
		m.activity.OnEvent(m.now())
		m.connected = true
		m.lastError = ""
		m.eventView.SetContent(m.renderEvents())
		return m, tea.Batch(receiveNextEvent(m.hubEvents), fetchSnapshot(m.ctx, m.source))

	case snapshotMsg:
		m.health = msg.health
		m.stats = msg.stats
		m.scripts = msg.scripts
		m.refreshRows()
		return m, nil

	case streamClosedMsg:
		m.connected = false
		if msg.err != nil {
			m.lastError = "event stream closed: " + msg.err.Error()
		} else {
			m.lastError = "event stream closed, reconnecting..."
		}
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, subscribe(m.ctx, m.source, m.lastID, m.hubEvents)

	case errMsg:
		m.lastError = msg.err.Error()
		return m, nil
	}

	var cmd tea.Cmd
	m.scriptTable, cmd = m.scriptTable.Update(msg)
	cmds = append(cmds, cmd)
	m.eventView, cmd = m.eventView.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) refreshRows() {
	now := m.now()
	rows := make([]table.Row, 0, len(m.scripts))
	for _, r := range m.scripts {
		rows = append(rows, table.Row{
			m.stateSymbol(r),
			fmt.Sprintf("%d", r.JobID),
			shortOwner(r.Owner),
			pidText(r.Process),
			r.Process.State.String(),
			FormatDuration(now.Sub(r.StartedAt)),
		})
	}
	m.scriptTable.SetRows(rows)
}

func (m Model) stateSymbol(r track.Record) string {
	switch {
	case r.Flushing:
		return m.theme.StatusFailed.Render("◑")
	case r.Process.State == track.ProcessTerminated:
		return m.theme.StatusFailed.Render("∅")
	case r.Process.State == track.ProcessRunning:
		return m.theme.StatusRunning.Render("◉")
	default:
		return m.theme.StatusIdle.Render("○")
	}
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}
	inner := m.width - 4

	scripts := m.theme.Border.Width(inner).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render(fmt.Sprintf("SCRIPTS (%d)", len(m.scripts))),
			m.scriptTable.View(),
		),
	)
	eventStream := m.theme.Border.Width(inner).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("EVENT STREAM"),
			m.eventView.View(),
		),
	)

	parts := []string{m.renderHeader(inner), scripts, eventStream}
	if m.lastError != "" {
		parts = append(parts, m.theme.StatusFailed.Render(" ⚠ "+m.lastError))
	}
	parts = append(parts, lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit • [r] Refresh • [↑/↓] Scroll"))

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

func (m Model) renderHeader(inner int) string {
	status := m.theme.StatusOK.Render("HEALTHY")
	switch {
	case !m.connected:
		status = m.theme.StatusFailed.Render("CONNECTING")
	case m.health.Flushing > 0:
		status = m.theme.StatusRunning.Render("FLUSHING")
	case m.health.Status != "ok" && m.health.Status != "":
		status = m.theme.StatusFailed.Render("DEGRADED")
	}

	anomalies := fmt.Sprintf("Anomalies: %d", m.stats.Anomalies())
	if m.stats.Anomalies() > 0 {
		anomalies = m.theme.StatusFailed.Render(anomalies)
	}

	lastEvent := "never"
	if at := m.activity.LastEvent(); !at.IsZero() {
		lastEvent = m.now().Sub(at).Round(time.Second).String() + " ago"
	}

	line1 := fmt.Sprintf(" WARDEN  %s  ⏱ %s  Active: %d  Flushing: %d",
		status,
		FormatDuration(time.Duration(m.health.UptimeSeconds)*time.Second),
		m.stats.Active,
		m.stats.Flushing,
	)
	line2 := fmt.Sprintf(" Kills: %d  Flushes: %d  %s",
		m.stats.KillsSent, m.stats.Flushes, anomalies)
	line3 := fmt.Sprintf(" Last event: %s %s", lastEvent, m.activity.Render(m.theme))

	return m.theme.Border.Width(inner).Render(
		lipgloss.JoinVertical(lipgloss.Left, line1, line2, line3),
	)
}

func (m Model) renderEvents() string {
	if len(m.eventLog) == 0 {
		return m.theme.Dim.Render("  Waiting for events...")
	}
	lines := make([]string, 0, len(m.eventLog))
	for _, e := range m.eventLog {
		lines = append(lines, FormatEvent(e, m.theme))
	}
	return strings.Join(lines, "\n")
}

func shortOwner(owner track.OwnerID) string {
	s := string(owner)
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

// --- Commands ---

func subscribe(ctx context.Context, source Source, lastID int64, ch chan<- events.Event) tea.Cmd {
	return func() tea.Msg {
		err := source.Events(ctx, lastID, ch)
		if ctx.Err() != nil {
			return nil
		}
		return streamClosedMsg{err: err}
	}
}

func receiveNextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

func fetchSnapshot(ctx context.Context, source Source) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		health, err := source.Health(ctx)
		if err != nil {
			return errMsg{err}
		}
		scripts, err := source.Scripts(ctx)
		if err != nil {
			return errMsg{err}
		}
		stats, err := source.Stats(ctx)
		if err != nil {
			return errMsg{err}
		}
		return snapshotMsg{health: *health, scripts: scripts, stats: *stats}
	}
}
