package tui

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mattjoyce/warden/internal/events"
	"github.com/mattjoyce/warden/internal/runlog"
	"github.com/mattjoyce/warden/internal/track"
)

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// RenderScripts draws records as a bordered table for `warden scripts list`.
func RenderScripts(records []track.Record, now time.Time) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("JOB", "OWNER", "PID", "STATE", "AGE", "FLUSHING").
		StyleFunc(func(row, col int) lipgloss.Style { return cellStyle })

	for _, r := range records {
		t.Row(
			strconv.FormatUint(uint64(r.JobID), 10),
			string(r.Owner),
			pidText(r.Process),
			r.Process.State.String(),
			FormatDuration(now.Sub(r.StartedAt)),
			yesNo(r.Flushing),
		)
	}
	return t.String()
}

// RenderRuns draws persisted script runs, newest first.
func RenderRuns(runs []runlog.Run) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("JOB", "OWNER", "PID", "OUTCOME", "STARTED", "DURATION").
		StyleFunc(func(row, col int) lipgloss.Style { return cellStyle })

	for _, r := range runs {
		outcome := string(r.State)
		if r.Outcome != nil {
			outcome = string(*r.Outcome)
		}
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		t.Row(
			strconv.FormatUint(uint64(r.JobID), 10),
			r.Owner,
			strconv.Itoa(r.PID),
			outcome,
			r.StartedAt.Local().Format(time.DateTime),
			duration,
		)
	}
	return t.String()
}

// RenderStats draws tracker counters as aligned key/value lines.
func RenderStats(s track.Stats) string {
	rows := [][2]string{
		{"active", strconv.Itoa(s.Active)},
		{"flushing", strconv.Itoa(s.Flushing)},
		{"registered", strconv.FormatInt(s.Registered, 10)},
		{"deregistered", strconv.FormatInt(s.Deregistered, 10)},
		{"kills sent", strconv.FormatInt(s.KillsSent, 10)},
		{"flushes", strconv.FormatInt(s.Flushes, 10)},
		{"anomalies", strconv.FormatInt(s.Anomalies(), 10)},
		{"  deregister misses", strconv.FormatInt(s.DeregisterMisses, 10)},
		{"  kill errors", strconv.FormatInt(s.KillErrors, 10)},
		{"  cleanup timeouts", strconv.FormatInt(s.CleanupTimeouts, 10)},
		{"  unknown owners", strconv.FormatInt(s.UnknownOwners, 10)},
	}
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%-20s %s\n", r[0], r[1])
	}
	return b.String()
}

// FormatEvent renders one event line for the monitor and `warden events`.
func FormatEvent(e events.Event, theme Theme) string {
	ts := theme.Dim.Render(e.At.Format("15:04:05"))

	var typeStyle lipgloss.Style
	switch {
	case track.IsAnomaly(e.Type):
		typeStyle = theme.StatusFailed
	case e.Type == track.EventKilled:
		typeStyle = theme.Highlight
	case strings.HasPrefix(e.Type, "flush."):
		typeStyle = theme.StatusRunning
	case e.Type == track.EventRegistered, e.Type == track.EventDeregistered:
		typeStyle = theme.StatusOK
	default:
		typeStyle = theme.Dim
	}

	return fmt.Sprintf("%s %s %s", ts, typeStyle.Render(fmt.Sprintf("%-24s", e.Type)), eventDesc(e))
}

func eventDesc(e events.Event) string {
	var data map[string]any
	_ = json.Unmarshal(e.Data, &data)

	var parts []string
	if job, ok := data["job_id"].(float64); ok {
		parts = append(parts, fmt.Sprintf("job=%d", int64(job)))
	}
	if owner, ok := data["owner_id"].(string); ok {
		if len(owner) > 8 {
			owner = owner[:8]
		}
		parts = append(parts, "owner="+owner)
	}
	if pid, ok := data["pid"].(float64); ok && pid > 0 {
		parts = append(parts, fmt.Sprintf("pid=%d", int64(pid)))
	}
	if count, ok := data["count"].(float64); ok {
		parts = append(parts, fmt.Sprintf("count=%d", int64(count)))
	}
	if ms, ok := data["duration_ms"].(float64); ok {
		parts = append(parts, fmt.Sprintf("took=%dms", int64(ms)))
	}
	if reason, ok := data["reason"].(string); ok {
		parts = append(parts, reason)
	}
	if errText, ok := data["error"].(string); ok {
		parts = append(parts, "error="+errText)
	}

	if len(parts) == 0 {
		raw := string(e.Data)
		if len(raw) > 60 {
			raw = raw[:60] + "..."
		}
		return raw
	}
	return strings.Join(parts, " ")
}

func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

func pidText(p track.Process) string {
	if p.PID == 0 {
		return "-"
	}
	return strconv.Itoa(p.PID)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
