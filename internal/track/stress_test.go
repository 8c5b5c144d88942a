package track

import (
	"fmt"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestConcurrentKillAndDeregister(t *testing.T) {
	f := newFixture(t, Options{})
	const workers = 200

	for i := 0; i < workers; i++ {
		f.register(t, JobID(i%4), 10_000+i, OwnerID(fmt.Sprintf("w%d", i)))
	}

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		owner := OwnerID(fmt.Sprintf("w%d", i))
		g.Go(func() error {
			f.tracker.Killed(owner, SignaledBy(syscall.SIGKILL))
			if !f.tracker.Deregister(owner) {
				return fmt.Errorf("deregister %s: owner not found", owner)
			}
			return nil
		})
	}
	for round := 0; round < 3; round++ {
		for job := 0; job < 4; job++ {
			job := JobID(job)
			g.Go(func() error {
				f.tracker.KillJob(job)
				return nil
			})
		}
	}
	require.NoError(t, g.Wait())

	assert.LessOrEqual(t, f.killer.maxPerPID(), 1)
	assert.Empty(t, f.tracker.Snapshot())
	assert.Zero(t, f.tracker.Stats().Anomalies())
}

func TestFlushAgainstLiveWorkers(t *testing.T) {
	f := newFixture(t, Options{CleanupTimeout: 10 * time.Second})
	const workers = 64

	var mu sync.Mutex
	reaped := make(map[int]chan struct{})
	f.killer.onKill = func(pid int) {
		mu.Lock()
		defer mu.Unlock()
		close(reaped[pid])
	}

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		pid := 20_000 + i
		owner := OwnerID(fmt.Sprintf("w%d", i))
		ch := make(chan struct{})
		mu.Lock()
		reaped[pid] = ch
		mu.Unlock()
		f.register(t, 1, pid, owner)

		g.Go(func() error {
			<-ch
			if !f.tracker.Killed(owner, SignaledBy(syscall.SIGKILL)) {
				return fmt.Errorf("%s: flushed script not reported killed", owner)
			}
			if !f.tracker.Deregister(owner) {
				return fmt.Errorf("%s: deregister missed", owner)
			}
			return nil
		})
	}

	start := time.Now()
	f.tracker.Flush()
	require.NoError(t, g.Wait())

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, workers, f.killer.total())
	assert.Equal(t, 1, f.killer.maxPerPID())
	assert.Empty(t, f.tracker.Snapshot())
	assert.Zero(t, f.tracker.Stats().Anomalies())
}
