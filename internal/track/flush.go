package track

import "time"

// Flush force-terminates every script in the active registry and blocks
// until each one has been retired by its termination supervisor. Scripts
// registered after Flush starts are not affected. A call that claims scripts
// returns once the quiescence registry is empty, including records claimed by
// a concurrent flush. A call that finds nothing active returns at once.
func (t *Tracker) Flush() {
	q := t.quiesce
	q.mu.Lock()
	defer q.mu.Unlock()

	claimed := t.active.takeAll()
	if len(claimed) == 0 {
		return
	}

	t.counters.flushes.Add(1)
	start := time.Now()
	t.logger.Info("flushing tracked scripts", "count", len(claimed))
	t.events.Publish(EventFlushStarted, map[string]any{"count": len(claimed)})

	for _, r := range claimed {
		go t.terminate(r)
	}
	q.records = append(q.records, claimed...)

	for n := len(q.records); n > 0; n = len(q.records) {
		t.logger.Debug("scripts left to flush", "count", n)
		q.drained.Wait()
	}

	t.logger.Info("flush complete", "count", len(claimed), "duration", time.Since(start))
	t.events.Publish(EventFlushCompleted, map[string]any{
		"count":       len(claimed),
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// terminate is the termination supervisor of one flushed record. Nothing
// joins it; its only effect is retiring r from the quiescence registry.
func (t *Tracker) terminate(r *record) {
	logger := t.logger.With("job_id", r.job, "owner", r.owner)
	logger.Info("script found running, force ending")

	prev, claimed := r.claimKill()
	if claimed {
		t.signal(r, prev.PID, "flush")
	}

	// Without a pid there is no child for the worker to reap, so there is
	// nothing to acknowledge.
	if prev.State != ProcessUnassigned && !r.awaitAck(t.cleanupTimeout) {
		t.counters.cleanupTimeouts.Add(1)
		logger.Warn("timed out waiting for script to clean up, this may indicate an unkillable process",
			"pid", prev.PID, "timeout", t.cleanupTimeout)
		t.events.Publish(EventCleanupTimeout, map[string]any{
			"job_id":     r.job,
			"owner_id":   r.owner,
			"pid":        prev.PID,
			"timeout_ms": t.cleanupTimeout.Milliseconds(),
		})
	}

	t.quiesce.retire(r)
}
