package track

import "sync/atomic"

type counters struct {
	registered       atomic.Int64
	deregistered     atomic.Int64
	deregisterMisses atomic.Int64
	killsSent        atomic.Int64
	killErrors       atomic.Int64
	flushes          atomic.Int64
	cleanupTimeouts  atomic.Int64
	unknownOwners    atomic.Int64
}

// Stats is a snapshot of tracker counters and registry sizes.
type Stats struct {
	Active           int   `json:"active"`
	Flushing         int   `json:"flushing"`
	Registered       int64 `json:"registered"`
	Deregistered     int64 `json:"deregistered"`
	DeregisterMisses int64 `json:"deregister_misses"`
	KillsSent        int64 `json:"kills_sent"`
	KillErrors       int64 `json:"kill_errors"`
	Flushes          int64 `json:"flushes"`
	CleanupTimeouts  int64 `json:"cleanup_timeouts"`
	UnknownOwners    int64 `json:"unknown_owners"`
}

// Anomalies is the number of events that indicate a bookkeeping or
// termination problem.
func (s Stats) Anomalies() int64 {
	return s.DeregisterMisses + s.KillErrors + s.CleanupTimeouts + s.UnknownOwners
}

func (t *Tracker) Stats() Stats {
	return Stats{
		Active:           len(t.active.list()),
		Flushing:         len(t.quiesce.list()),
		Registered:       t.counters.registered.Load(),
		Deregistered:     t.counters.deregistered.Load(),
		DeregisterMisses: t.counters.deregisterMisses.Load(),
		KillsSent:        t.counters.killsSent.Load(),
		KillErrors:       t.counters.killErrors.Load(),
		Flushes:          t.counters.flushes.Load(),
		CleanupTimeouts:  t.counters.cleanupTimeouts.Load(),
		UnknownOwners:    t.counters.unknownOwners.Load(),
	}
}
