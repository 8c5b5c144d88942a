package track

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mattjoyce/warden/internal/log"
)

// Options configures a Tracker. The zero value is usable.
type Options struct {
	// CleanupTimeout bounds the wait for a killed script's worker to
	// acknowledge. Defaults to DefaultCleanupTimeout.
	CleanupTimeout time.Duration
	// Killer signals process groups. Defaults to GroupKiller.
	Killer Killer
	Logger *slog.Logger
	Events Publisher
}

// Tracker is the registry of in-flight hook scripts.
type Tracker struct {
	active  *activeSet
	quiesce *quiesceSet

	cleanupTimeout time.Duration
	killer         Killer
	logger         *slog.Logger
	events         Publisher

	closed   atomic.Bool
	counters counters
}

// New creates a tracker with empty registries.
func New(opts Options) *Tracker {
	t := &Tracker{
		active:         &activeSet{},
		quiesce:        newQuiesceSet(),
		cleanupTimeout: opts.CleanupTimeout,
		killer:         opts.Killer,
		logger:         opts.Logger,
		events:         opts.Events,
	}
	if t.cleanupTimeout <= 0 {
		t.cleanupTimeout = DefaultCleanupTimeout
	}
	if t.killer == nil {
		t.killer = GroupKiller{}
	}
	if t.logger == nil {
		t.logger = log.WithComponent("track")
	}
	if t.events == nil {
		t.events = nopPublisher{}
	}
	return t
}

// Close discards both registries. Flush waiters are released; supervisors
// still running finish on their own. Register fails afterwards.
func (t *Tracker) Close() {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	dropped := len(t.active.takeAll()) + t.quiesce.clear()

	if dropped > 0 {
		t.logger.Warn("tracker closed with scripts still tracked", "count", dropped)
	}
}

// Register starts tracking a script. pid may be zero when the worker does
// not know the child pid yet; see UpdatePID.
func (t *Tracker) Register(job JobID, pid int, owner OwnerID) (*Handle, error) {
	if owner == "" {
		return nil, ErrInvalidOwner
	}
	if t.closed.Load() {
		return nil, ErrClosed
	}
	if err := t.quiesce.reserve(owner); err != nil {
		return nil, err
	}

	r := newRecord(job, pid, owner)
	if err := t.active.add(r); err != nil {
		return nil, err
	}
	t.counters.registered.Add(1)

	t.logger.Debug("tracking script", "job_id", job, "owner", owner, "pid", pid)
	t.events.Publish(EventRegistered, eventData(r))
	return &Handle{r: r}, nil
}

// UpdatePID sets the pid of owner's script once the child has forked. A
// missing owner is ignored; it may already have deregistered.
func (t *Tracker) UpdatePID(owner OwnerID, pid int) {
	r := t.active.find(owner)
	if r == nil {
		return
	}
	if !r.setPID(pid) {
		t.logger.Debug("ignoring pid update for killed script", "owner", owner, "pid", pid)
	}
}

// Deregister stops tracking owner's script. It reports whether the owner was
// known. A record claimed by a flush is left to its supervisor, which the
// call releases: a deregistering worker has finished its cleanup.
func (t *Tracker) Deregister(owner OwnerID) bool {
	if r := t.active.remove(owner); r != nil {
		t.counters.deregistered.Add(1)
		t.logger.Debug("script owner removed", "job_id", r.job, "owner", owner)
		t.events.Publish(EventDeregistered, eventData(r))
		return true
	}
	if r, found := t.quiesce.release(owner); found {
		if r != nil {
			r.acknowledge()
		}
		t.counters.deregistered.Add(1)
		t.logger.Debug("script owner claimed by flush", "owner", owner, "retired", r == nil)
		return true
	}

	t.counters.deregisterMisses.Add(1)
	t.logger.Error("script owner not found", "owner", owner)
	t.events.Publish(EventDeregisterMiss, map[string]any{"owner_id": owner})
	return false
}

// KillJob kills the process group of every active script of job. Records
// stay registered; their workers notice the death and deregister. Returns the
// number of kill signals sent.
func (t *Tracker) KillJob(job JobID) int {
	sent := 0
	t.active.forJob(job, func(r *record) {
		prev, ok := r.claimKill()
		if !ok {
			return
		}
		t.logger.Debug("killing running script for job", "job_id", job, "owner", r.owner, "pid", prev.PID)
		t.signal(r, prev.PID, "job")
		sent++
	})
	return sent
}

// Lookup returns a snapshot of owner's record from either registry.
func (t *Tracker) Lookup(owner OwnerID) (Record, bool) {
	if r := t.active.find(owner); r != nil {
		return r.snapshot(false), true
	}
	if r, _ := t.quiesce.find(owner); r != nil {
		return r.snapshot(true), true
	}
	return Record{}, false
}

// Snapshot returns every tracked record, active ones first.
func (t *Tracker) Snapshot() []Record {
	active := t.active.list()
	flushing := t.quiesce.list()

	out := make([]Record, 0, len(active)+len(flushing))
	for _, r := range active {
		out = append(out, r.snapshot(false))
	}
	for _, r := range flushing {
		out = append(out, r.snapshot(true))
	}
	return out
}

// signal delivers KillSignal to pid's process group. The caller must have
// won claimKill for r.
func (t *Tracker) signal(r *record, pid int, reason string) {
	if err := t.killer.KillGroup(pid); err != nil {
		t.counters.killErrors.Add(1)
		t.logger.Error("failed to kill script process group", "job_id", r.job, "owner", r.owner, "pid", pid, "error", err)
		t.events.Publish(EventKillError, map[string]any{
			"job_id":   r.job,
			"owner_id": r.owner,
			"pid":      pid,
			"error":    err.Error(),
		})
		return
	}
	t.counters.killsSent.Add(1)
	t.events.Publish(EventKilled, map[string]any{
		"job_id":   r.job,
		"owner_id": r.owner,
		"pid":      pid,
		"reason":   reason,
	})
}

func eventData(r *record) map[string]any {
	p := r.process()
	return map[string]any{
		"job_id":   r.job,
		"owner_id": r.owner,
		"pid":      p.PID,
		"state":    p.State.String(),
	}
}
