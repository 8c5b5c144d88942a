package track

import (
	"errors"
	"fmt"
	"syscall"
	"time"
)

// KillSignal is the signal the tracker delivers to a script's process group.
const KillSignal = syscall.SIGKILL

// DefaultCleanupTimeout bounds how long a termination supervisor waits for the
// owning worker to acknowledge a forced kill.
const DefaultCleanupTimeout = 5 * time.Second

var (
	ErrDuplicateOwner = errors.New("owner already has a tracked script")
	ErrInvalidOwner   = errors.New("owner id is empty")
	ErrClosed         = errors.New("tracker is closed")
)

// JobID identifies the job a script runs for. Several records may share one.
type JobID uint32

// OwnerID identifies the worker that owns a script. Unique among live records.
type OwnerID string

// ProcessState is the lifecycle of a record's process identity. It only moves
// forward: unassigned, running, terminated.
type ProcessState int

const (
	// ProcessUnassigned means the worker has not learned the child pid yet.
	ProcessUnassigned ProcessState = iota
	// ProcessRunning means the pid is known and nobody has killed it.
	ProcessRunning
	// ProcessTerminated means the process group was sent KillSignal. It must
	// not be signalled again.
	ProcessTerminated
)

func (s ProcessState) String() string {
	switch s {
	case ProcessUnassigned:
		return "unassigned"
	case ProcessRunning:
		return "running"
	case ProcessTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("ProcessState(%d)", int(s))
	}
}

func (s ProcessState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ProcessState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "unassigned":
		*s = ProcessUnassigned
	case "running":
		*s = ProcessRunning
	case "terminated":
		*s = ProcessTerminated
	default:
		return fmt.Errorf("unknown process state %q", string(b))
	}
	return nil
}

// Process is a record's process identity. PID is zero while unassigned and
// keeps the last known pid once terminated.
type Process struct {
	State ProcessState `json:"state"`
	PID   int          `json:"pid,omitempty"`
}

func processFor(pid int) *Process {
	if pid <= 0 {
		return &Process{State: ProcessUnassigned}
	}
	return &Process{State: ProcessRunning, PID: pid}
}

// Record is a point-in-time copy of a tracked script.
type Record struct {
	JobID        JobID     `json:"job_id"`
	Owner        OwnerID   `json:"owner_id"`
	Process      Process   `json:"process"`
	StartedAt    time.Time `json:"started_at"`
	Flushing     bool      `json:"flushing"`
	Acknowledged bool      `json:"acknowledged"`
}

// WaitStatus is the part of a child's wait status the tracker inspects.
// syscall.WaitStatus satisfies it on unix.
type WaitStatus interface {
	Signaled() bool
	Signal() syscall.Signal
}

// ExitStatus is a portable WaitStatus for callers that only have the decoded
// fields, such as a launcher reporting over the API.
type ExitStatus struct {
	Code int            `json:"exit_code"`
	Sig  syscall.Signal `json:"signal,omitempty"`
}

// Exit returns the status of a process that exited with code.
func Exit(code int) ExitStatus { return ExitStatus{Code: code} }

// SignaledBy returns the status of a process terminated by sig.
func SignaledBy(sig syscall.Signal) ExitStatus { return ExitStatus{Sig: sig} }

func (s ExitStatus) Signaled() bool         { return s.Sig != 0 }
func (s ExitStatus) Signal() syscall.Signal { return s.Sig }
func (s ExitStatus) Exited() bool           { return s.Sig == 0 }
func (s ExitStatus) ExitStatus() int {
	if s.Sig != 0 {
		return -1
	}
	return s.Code
}

func killedBySignal(status WaitStatus) bool {
	if status == nil {
		return false
	}
	return status.Signaled() && status.Signal() == KillSignal
}

// Killer delivers KillSignal to a whole process group.
type Killer interface {
	KillGroup(pid int) error
}

// KillerFunc adapts a function to Killer.
type KillerFunc func(pid int) error

func (f KillerFunc) KillGroup(pid int) error { return f(pid) }

// Publisher receives tracker events. events.Hub satisfies it.
type Publisher interface {
	Publish(eventType string, data any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) {}

// Event types published by the tracker.
const (
	EventRegistered     = "script.registered"
	EventDeregistered   = "script.deregistered"
	EventKilled         = "script.killed"
	EventFlushStarted   = "flush.started"
	EventFlushCompleted = "flush.completed"

	EventCleanupTimeout = "script.cleanup_timeout"
	EventUnknownOwner   = "script.unknown_owner"
	EventDeregisterMiss = "script.deregister_miss"
	EventKillError      = "script.kill_error"
)

// IsAnomaly reports whether eventType marks a bookkeeping or termination
// anomaly rather than normal control flow.
func IsAnomaly(eventType string) bool {
	switch eventType {
	case EventCleanupTimeout, EventUnknownOwner, EventDeregisterMiss, EventKillError:
		return true
	}
	return false
}
