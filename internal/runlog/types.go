package runlog

import (
	"encoding/json"
	"errors"
	"time"
)

// State is the lifecycle position of a script run.
type State string

const (
	StateRunning  State = "running"
	StateFinished State = "finished"
)

// Outcome classifies how a finished script ended.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	// OutcomeKilled means the tracker terminated the script; the failure is
	// not the script's fault.
	OutcomeKilled Outcome = "killed"
)

// Run is one row of the run log.
type Run struct {
	Owner      string     `json:"owner_id"`
	JobID      uint32     `json:"job_id"`
	Script     string     `json:"script,omitempty"`
	ScriptHash string     `json:"script_hash,omitempty"`
	PID        int        `json:"pid"`
	State      State      `json:"state"`
	Outcome    *Outcome   `json:"outcome,omitempty"`
	ExitCode   *int       `json:"exit_code,omitempty"`
	Signal     *int       `json:"signal,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	KilledAt   *time.Time `json:"killed_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// StartRequest describes a newly registered script.
type StartRequest struct {
	Owner  string
	JobID  uint32
	PID    int
	Script string
}

// FinishRequest records how a script ended.
type FinishRequest struct {
	Owner    string
	Outcome  Outcome
	ExitCode *int
	Signal   *int
}

// Anomaly is a persisted tracker anomaly event.
type Anomaly struct {
	ID         int64           `json:"id"`
	EventID    int64           `json:"event_id"`
	Kind       string          `json:"kind"`
	Owner      string          `json:"owner_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	RecordedAt time.Time       `json:"recorded_at"`
}

var ErrRunNotFound = errors.New("run not found")
