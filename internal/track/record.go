package track

import (
	"sync"
	"sync/atomic"
	"time"
)

type record struct {
	job     JobID
	owner   OwnerID
	started time.Time

	proc atomic.Pointer[Process]

	// released is set under the quiescence lock when the owner deregisters
	// while a flush still holds the record. Its retirement leaves no tombstone.
	released bool

	mu           sync.Mutex
	acknowledged bool
	ack          chan struct{}
}

func newRecord(job JobID, pid int, owner OwnerID) *record {
	r := &record{
		job:     job,
		owner:   owner,
		started: time.Now(),
		ack:     make(chan struct{}),
	}
	r.proc.Store(processFor(pid))
	return r
}

func (r *record) process() Process {
	return *r.proc.Load()
}

// setPID records the child pid. A terminated record keeps its state.
func (r *record) setPID(pid int) bool {
	for {
		cur := r.proc.Load()
		if cur.State == ProcessTerminated {
			return false
		}
		if r.proc.CompareAndSwap(cur, processFor(pid)) {
			return true
		}
	}
}

// claimKill moves a running record to terminated and returns the state it
// replaced. Only the caller that gets ok == true may signal the process.
func (r *record) claimKill() (prev Process, ok bool) {
	for {
		cur := r.proc.Load()
		switch cur.State {
		case ProcessUnassigned, ProcessTerminated:
			return *cur, false
		case ProcessRunning:
			next := &Process{State: ProcessTerminated, PID: cur.PID}
			if r.proc.CompareAndSwap(cur, next) {
				return *cur, true
			}
		}
	}
}

// acknowledge is called by the owning worker once it has observed its child's
// exit. It primes the flag even if no supervisor is waiting yet.
func (r *record) acknowledge() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.acknowledged {
		return
	}
	r.acknowledged = true
	close(r.ack)
}

func (r *record) isAcknowledged() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acknowledged
}

// awaitAck waits for acknowledge or until timeout elapses. It reports whether
// the worker acknowledged.
func (r *record) awaitAck(timeout time.Duration) bool {
	r.mu.Lock()
	if r.acknowledged {
		r.mu.Unlock()
		return true
	}
	r.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-r.ack:
		return true
	case <-timer.C:
		return false
	}
}

func (r *record) snapshot(flushing bool) Record {
	return Record{
		JobID:        r.job,
		Owner:        r.owner,
		Process:      r.process(),
		StartedAt:    r.started,
		Flushing:     flushing,
		Acknowledged: r.isAcknowledged(),
	}
}

// Handle is the registering worker's view of its record.
type Handle struct {
	r *record
}

func (h *Handle) Owner() OwnerID       { return h.r.owner }
func (h *Handle) JobID() JobID         { return h.r.job }
func (h *Handle) Process() Process     { return h.r.process() }
func (h *Handle) StartedAt() time.Time { return h.r.started }
