package track

// Killed tells the worker that owns a script whether the tracker killed it.
// The worker calls it right after observing the child's wait status and
// before classifying a failure.
//
// A script claimed by a flush is always reported as killed, and the call
// releases the supervisor waiting on it. Otherwise the script counts as
// killed only if it died from KillSignal after the tracker signalled it.
// An owner found in neither registry is logged as an anomaly and reported as
// killed so that it is not mistaken for a script failure.
func (t *Tracker) Killed(owner OwnerID, status WaitStatus) bool {
	if t.acknowledgeFlushed(owner) {
		return true
	}

	if r := t.active.find(owner); r != nil {
		return killedBySignal(status) && r.process().State == ProcessTerminated
	}

	// A flush may have moved the record between the two lookups. Records
	// never move back, so a second look settles it.
	if t.acknowledgeFlushed(owner) {
		return true
	}

	t.counters.unknownOwners.Add(1)
	signaled, sig := false, 0
	if status != nil && status.Signaled() {
		signaled, sig = true, int(status.Signal())
	}
	t.logger.Error("no tracked script for owner, reporting it as killed",
		"owner", owner, "signaled", signaled, "signal", sig)
	t.events.Publish(EventUnknownOwner, map[string]any{
		"owner_id": owner,
		"signaled": signaled,
		"signal":   sig,
	})
	return true
}

func (t *Tracker) acknowledgeFlushed(owner OwnerID) bool {
	r, retired := t.quiesce.find(owner)
	switch {
	case r != nil:
		r.acknowledge()
		return true
	case retired:
		t.logger.Debug("script already retired by flush", "owner", owner)
		return true
	}
	return false
}
