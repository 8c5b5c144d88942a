package runlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/warden/internal/events"
	"github.com/mattjoyce/warden/internal/track"
)

func TestFollowPersistsTrackerEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := openTestLog(t)
	hub := events.NewHub(16)
	require.NoError(t, l.Start(ctx, StartRequest{Owner: "w1", JobID: 1, PID: 10}))

	var logs bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- l.Follow(ctx, hub, slog.New(slog.NewJSONHandler(&logs, nil)))
	}()

	tr := track.New(track.Options{
		Killer: track.KillerFunc(func(int) error { return nil }),
		Events: hub,
		Logger: slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)),
	})
	// Follow subscribes asynchronously; publish until it is listening.
	require.Eventually(t, func() bool {
		tr.Killed("ghost", track.Exit(0))
		got, err := l.Anomalies(ctx, 1)
		return err == nil && len(got) == 1
	}, 5*time.Second, 10*time.Millisecond)

	_, err := tr.Register(1, 10, "w1")
	require.NoError(t, err)
	tr.KillJob(1)

	require.Eventually(t, func() bool {
		run, err := l.Get(ctx, "w1")
		return err == nil && run.KilledAt != nil
	}, 5*time.Second, 10*time.Millisecond)

	got, err := l.Anomalies(ctx, 50)
	require.NoError(t, err)
	for _, a := range got {
		assert.Equal(t, track.EventUnknownOwner, a.Kind)
		assert.Equal(t, "ghost", a.Owner)
	}

	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, logs.String())
}
