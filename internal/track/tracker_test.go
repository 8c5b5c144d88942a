package track

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	f := newFixture(t, Options{})

	h := f.register(t, 7, 100, "w1")
	assert.Equal(t, OwnerID("w1"), h.Owner())
	assert.Equal(t, JobID(7), h.JobID())
	assert.Equal(t, Process{State: ProcessRunning, PID: 100}, h.Process())

	t.Run("duplicate owner", func(t *testing.T) {
		_, err := f.tracker.Register(8, 200, "w1")
		assert.ErrorIs(t, err, ErrDuplicateOwner)
	})

	t.Run("empty owner", func(t *testing.T) {
		_, err := f.tracker.Register(8, 200, "")
		assert.ErrorIs(t, err, ErrInvalidOwner)
	})

	t.Run("unknown pid", func(t *testing.T) {
		h := f.register(t, 9, 0, "w2")
		assert.Equal(t, ProcessUnassigned, h.Process().State)
	})

	stats := f.tracker.Stats()
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, int64(2), stats.Registered)
	assert.Equal(t, 2, f.events.count(EventRegistered))
}

func TestRegisterAfterClose(t *testing.T) {
	f := newFixture(t, Options{})
	f.register(t, 1, 10, "w1")
	f.tracker.Close()

	_, err := f.tracker.Register(1, 11, "w2")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, f.tracker.Snapshot())
	assert.Contains(t, f.logs.String(), "tracker closed with scripts still tracked")
}

func TestUpdatePID(t *testing.T) {
	f := newFixture(t, Options{})
	h := f.register(t, 1, 0, "w1")

	f.tracker.UpdatePID("w1", 4242)
	assert.Equal(t, Process{State: ProcessRunning, PID: 4242}, h.Process())

	// Unknown owners are ignored.
	f.tracker.UpdatePID("nobody", 1)

	require.Equal(t, 1, f.tracker.KillJob(1))
	f.tracker.UpdatePID("w1", 5000)
	assert.Equal(t, Process{State: ProcessTerminated, PID: 4242}, h.Process(), "pid must not move back out of terminated")
}

func TestDeregister(t *testing.T) {
	f := newFixture(t, Options{})
	f.register(t, 1, 10, "w1")

	assert.True(t, f.tracker.Deregister("w1"))
	_, ok := f.tracker.Lookup("w1")
	assert.False(t, ok)

	assert.False(t, f.tracker.Deregister("w1"))
	stats := f.tracker.Stats()
	assert.Equal(t, int64(1), stats.Deregistered)
	assert.Equal(t, int64(1), stats.DeregisterMisses)
	assert.Contains(t, f.logs.String(), "script owner not found")
	assert.Equal(t, 1, f.events.count(EventDeregisterMiss))
}

func TestKillJobSignalsOncePerRecord(t *testing.T) {
	f := newFixture(t, Options{})
	a := f.register(t, 1, 101, "a")
	b := f.register(t, 2, 102, "b")
	c := f.register(t, 1, 103, "c")
	d := f.register(t, 1, 0, "d")

	assert.Equal(t, 2, f.tracker.KillJob(1))
	assert.Equal(t, 0, f.tracker.KillJob(1))

	assert.Equal(t, 1, f.killer.count(101))
	assert.Equal(t, 1, f.killer.count(103))
	assert.Equal(t, 0, f.killer.count(102))
	assert.Equal(t, 2, f.killer.total())

	assert.Equal(t, ProcessTerminated, a.Process().State)
	assert.Equal(t, ProcessRunning, b.Process().State)
	assert.Equal(t, ProcessTerminated, c.Process().State)
	assert.Equal(t, ProcessUnassigned, d.Process().State, "a script without a pid cannot be signalled")

	// Killing does not deregister; that is the worker's job.
	assert.Len(t, f.tracker.Snapshot(), 4)
	assert.Equal(t, int64(2), f.tracker.Stats().KillsSent)
	assert.Equal(t, 2, f.events.count(EventKilled))
}

func TestKillJobErrorIsNotRetried(t *testing.T) {
	f := newFixture(t, Options{})
	f.killer.err = errors.New("operation not permitted")
	h := f.register(t, 3, 300, "w1")

	assert.Equal(t, 1, f.tracker.KillJob(3))
	assert.Equal(t, 0, f.tracker.KillJob(3))

	assert.Equal(t, 1, f.killer.count(300))
	assert.Equal(t, ProcessTerminated, h.Process().State)
	stats := f.tracker.Stats()
	assert.Equal(t, int64(1), stats.KillErrors)
	assert.Equal(t, int64(0), stats.KillsSent)
	assert.Contains(t, f.logs.String(), "failed to kill script process group")
}

func TestKilledClassification(t *testing.T) {
	tests := []struct {
		name   string
		kill   bool
		status WaitStatus
		want   bool
	}{
		{name: "killed by tracker", kill: true, status: SignaledBy(syscall.SIGKILL), want: true},
		{name: "normal exit never killed", kill: false, status: Exit(0), want: false},
		{name: "failure never killed", kill: false, status: Exit(3), want: false},
		{name: "sigkill from elsewhere", kill: false, status: SignaledBy(syscall.SIGKILL), want: false},
		{name: "other signal after kill", kill: true, status: SignaledBy(syscall.SIGTERM), want: false},
		{name: "exited before kill landed", kill: true, status: Exit(0), want: false},
		{name: "nil status", kill: true, status: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			f.register(t, 1, 500, "w1")
			if tt.kill {
				f.tracker.KillJob(1)
			}
			assert.Equal(t, tt.want, f.tracker.Killed("w1", tt.status))
			assert.Equal(t, int64(0), f.tracker.Stats().UnknownOwners)
		})
	}
}

func TestKilledUnknownOwnerDefaultsToKilled(t *testing.T) {
	f := newFixture(t, Options{})

	assert.True(t, f.tracker.Killed("ghost", Exit(0)))
	assert.Equal(t, int64(1), f.tracker.Stats().UnknownOwners)
	assert.Equal(t, int64(1), f.tracker.Stats().Anomalies())
	assert.Equal(t, 1, f.events.count(EventUnknownOwner))
	assert.Contains(t, f.logs.String(), "no tracked script for owner")
	assert.Contains(t, f.logs.String(), `"level":"ERROR"`)
}

func TestKilledUnknownOwnerLogsStatus(t *testing.T) {
	f := newFixture(t, Options{})

	assert.True(t, f.tracker.Killed("ghost", SignaledBy(syscall.SIGKILL)))
	assert.True(t, f.tracker.Killed("ghost", nil))

	logs := f.logs.String()
	assert.Contains(t, logs, `"signaled":true,"signal":9`)
	assert.Contains(t, logs, `"signaled":false,"signal":0`)
	assert.Equal(t, int64(2), f.tracker.Stats().UnknownOwners)
}

func TestJobKillScenario(t *testing.T) {
	f := newFixture(t, Options{})
	a := f.register(t, 1, 11, "A")
	b := f.register(t, 2, 12, "B")
	c := f.register(t, 1, 13, "C")

	f.tracker.KillJob(1)

	assert.Equal(t, ProcessTerminated, a.Process().State)
	assert.Equal(t, ProcessRunning, b.Process().State)
	assert.Equal(t, ProcessTerminated, c.Process().State)

	assert.True(t, f.tracker.Killed("A", SignaledBy(KillSignal)))
	assert.True(t, f.tracker.Killed("C", SignaledBy(KillSignal)))
	assert.False(t, f.tracker.Killed("B", Exit(0)))

	for _, owner := range []OwnerID{"A", "B", "C"} {
		assert.True(t, f.tracker.Deregister(owner))
	}
	assert.Empty(t, f.tracker.Snapshot())
	assert.Zero(t, f.tracker.Stats().Anomalies())
}

func TestSnapshotAndLookup(t *testing.T) {
	f := newFixture(t, Options{})
	f.register(t, 1, 10, "first")
	f.register(t, 2, 20, "second")

	snap := f.tracker.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, OwnerID("first"), snap[0].Owner)
	assert.Equal(t, OwnerID("second"), snap[1].Owner)
	assert.False(t, snap[0].Flushing)

	rec, ok := f.tracker.Lookup("second")
	require.True(t, ok)
	assert.Equal(t, JobID(2), rec.JobID)
	assert.Equal(t, 20, rec.Process.PID)
}

func TestProcessStateText(t *testing.T) {
	for _, s := range []ProcessState{ProcessUnassigned, ProcessRunning, ProcessTerminated} {
		b, err := s.MarshalText()
		require.NoError(t, err)

		var back ProcessState
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, s, back)
	}

	var s ProcessState
	assert.Error(t, s.UnmarshalText([]byte("zombie")))
}
