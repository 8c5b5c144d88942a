package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Log persists script runs and tracker anomalies in SQLite.
type Log struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Log {
	return &Log{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Start inserts a running row for a registered script. The script file, when
// readable, is fingerprinted so that runs of changed scripts can be told apart.
func (l *Log) Start(ctx context.Context, req StartRequest) error {
	if req.Owner == "" {
		return fmt.Errorf("owner is empty")
	}

	var script, hash any
	if req.Script != "" {
		script = req.Script
		if h, err := Fingerprint(req.Script); err == nil {
			hash = h
		}
	}

	_, err := l.db.ExecContext(ctx, `
INSERT INTO script_runs(owner_id, job_id, script, script_hash, pid, state, started_at)
VALUES(?, ?, ?, ?, ?, ?, ?);
`, req.Owner, req.JobID, script, hash, req.PID, StateRunning, l.now().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// SetPID records a pid learned after registration.
func (l *Log) SetPID(ctx context.Context, owner string, pid int) error {
	res, err := l.db.ExecContext(ctx, `UPDATE script_runs SET pid = ? WHERE owner_id = ? AND state = ?;`,
		pid, owner, StateRunning)
	if err != nil {
		return fmt.Errorf("set run pid: %w", err)
	}
	return expectRow(res)
}

// MarkKilled stamps the time the tracker signalled owner's script.
func (l *Log) MarkKilled(ctx context.Context, owner string, at time.Time) error {
	res, err := l.db.ExecContext(ctx, `
UPDATE script_runs SET killed_at = ?
WHERE owner_id = ? AND killed_at IS NULL;
`, at.UTC().Format(time.RFC3339Nano), owner)
	if err != nil {
		return fmt.Errorf("mark run killed: %w", err)
	}
	return expectRow(res)
}

// Finish marks a run terminal.
func (l *Log) Finish(ctx context.Context, req FinishRequest) error {
	switch req.Outcome {
	case OutcomeSucceeded, OutcomeFailed, OutcomeKilled:
	default:
		return fmt.Errorf("invalid outcome: %q", req.Outcome)
	}

	res, err := l.db.ExecContext(ctx, `
UPDATE script_runs
SET state = ?, outcome = ?, exit_code = ?, signal = ?, finished_at = ?
WHERE owner_id = ? AND state = ?;
`, StateFinished, req.Outcome, nullInt(req.ExitCode), nullInt(req.Signal),
		l.now().Format(time.RFC3339Nano), req.Owner, StateRunning)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return expectRow(res)
}

// Get returns owner's run.
func (l *Log) Get(ctx context.Context, owner string) (*Run, error) {
	row := l.db.QueryRowContext(ctx, selectRuns+` WHERE owner_id = ?;`, owner)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return r, err
}

// Recent returns up to limit runs, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, selectRuns+` ORDER BY started_at DESC, rowid DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// RecordAnomaly stores one anomaly event.
func (l *Log) RecordAnomaly(ctx context.Context, eventID int64, kind string, payload json.RawMessage) error {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	var owner any
	var ref struct {
		Owner string `json:"owner_id"`
	}
	if json.Unmarshal(payload, &ref) == nil && ref.Owner != "" {
		owner = ref.Owner
	}

	_, err := l.db.ExecContext(ctx, `
INSERT INTO anomalies(event_id, kind, owner_id, payload, recorded_at)
VALUES(?, ?, ?, ?, ?);
`, eventID, kind, owner, string(payload), l.now().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record anomaly: %w", err)
	}
	return nil
}

// Anomalies returns up to limit anomalies, newest first.
func (l *Log) Anomalies(ctx context.Context, limit int) ([]Anomaly, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
SELECT id, event_id, kind, owner_id, payload, recorded_at
FROM anomalies ORDER BY id DESC LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list anomalies: %w", err)
	}
	defer rows.Close()

	var out []Anomaly
	for rows.Next() {
		var (
			a         Anomaly
			owner     sql.NullString
			payload   string
			recordedS string
		)
		if err := rows.Scan(&a.ID, &a.EventID, &a.Kind, &owner, &payload, &recordedS); err != nil {
			return nil, fmt.Errorf("scan anomaly: %w", err)
		}
		a.Owner = owner.String
		a.Payload = json.RawMessage(payload)
		if t, err := time.Parse(time.RFC3339Nano, recordedS); err == nil {
			a.RecordedAt = t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const selectRuns = `
SELECT owner_id, job_id, script, script_hash, pid, state, outcome, exit_code, signal,
  started_at, killed_at, finished_at
FROM script_runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		r         Run
		script    sql.NullString
		hash      sql.NullString
		stateS    string
		outcome   sql.NullString
		exitCode  sql.NullInt64
		signal    sql.NullInt64
		startedS  string
		killedS   sql.NullString
		finishedS sql.NullString
	)
	err := s.Scan(&r.Owner, &r.JobID, &script, &hash, &r.PID, &stateS, &outcome, &exitCode, &signal,
		&startedS, &killedS, &finishedS)
	if err != nil {
		return nil, err
	}

	r.Script = script.String
	r.ScriptHash = hash.String
	r.State = State(stateS)
	if outcome.Valid {
		o := Outcome(outcome.String)
		r.Outcome = &o
	}
	if exitCode.Valid {
		v := int(exitCode.Int64)
		r.ExitCode = &v
	}
	if signal.Valid {
		v := int(signal.Int64)
		r.Signal = &v
	}
	if t, err := time.Parse(time.RFC3339Nano, startedS); err == nil {
		r.StartedAt = t
	}
	r.KilledAt = parseNullTime(killedS)
	r.FinishedAt = parseNullTime(finishedS)
	return &r, nil
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}
