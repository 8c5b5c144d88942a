package api

import (
	"github.com/mattjoyce/warden/internal/runlog"
	"github.com/mattjoyce/warden/internal/track"
)

// RegisterRequest is the JSON body for POST /scripts.
type RegisterRequest struct {
	JobID  uint32 `json:"job_id"`
	PID    int    `json:"pid,omitempty"`
	Script string `json:"script,omitempty"`
}

// RegisterResponse carries the owner id the launcher uses from then on.
type RegisterResponse struct {
	Owner string `json:"owner_id"`
}

// UpdatePIDRequest is the JSON body for PUT /scripts/{owner}/pid.
type UpdatePIDRequest struct {
	PID int `json:"pid"`
}

// ExitRequest reports a script's wait status for POST /scripts/{owner}/exit.
type ExitRequest struct {
	Signaled bool `json:"signaled"`
	Signal   int  `json:"signal,omitempty"`
	Exited   bool `json:"exited"`
	ExitCode int  `json:"exit_code"`
}

// ExitResponse tells the launcher whether the tracker killed the script.
type ExitResponse struct {
	Killed  bool           `json:"killed"`
	Outcome runlog.Outcome `json:"outcome"`
}

// ScriptsResponse is returned by GET /scripts.
type ScriptsResponse struct {
	Scripts []track.Record `json:"scripts"`
}

// KillJobResponse is returned by POST /jobs/{jobID}/kill.
type KillJobResponse struct {
	JobID    uint32 `json:"job_id"`
	Signaled int    `json:"signaled"`
}

// FlushResponse is returned once the flush barrier releases.
type FlushResponse struct {
	Flushed    int   `json:"flushed"`
	DurationMS int64 `json:"duration_ms"`
}

// RunsResponse is returned by GET /runs.
type RunsResponse struct {
	Runs []runlog.Run `json:"runs"`
}

// AnomaliesResponse is returned by GET /anomalies.
type AnomaliesResponse struct {
	Anomalies []runlog.Anomaly `json:"anomalies"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Active        int    `json:"active"`
	Flushing      int    `json:"flushing"`
}
