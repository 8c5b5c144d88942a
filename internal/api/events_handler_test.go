package api

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/warden/internal/events"
	"github.com/mattjoyce/warden/internal/track"
)

func TestEventTypeFilter(t *testing.T) {
	cases := []struct {
		name   string
		values []string
		match  []string
		reject []string
	}{
		{
			name:  "empty matches all",
			match: []string{track.EventKilled, track.EventFlushStarted},
		},
		{
			name:   "exact types",
			values: []string{track.EventKilled, track.EventCleanupTimeout},
			match:  []string{track.EventKilled, track.EventCleanupTimeout},
			reject: []string{track.EventRegistered},
		},
		{
			name:   "family prefix and comma list",
			values: []string{"flush., script.kill_error", " "},
			match:  []string{track.EventFlushStarted, track.EventFlushCompleted, track.EventKillError},
			reject: []string{track.EventKilled},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			match := eventTypeFilter(tc.values)
			for _, typ := range tc.match {
				assert.True(t, match(typ), typ)
			}
			for _, typ := range tc.reject {
				assert.False(t, match(typ), typ)
			}
		})
	}
}

func TestHandleEvents_ReplaysAndFilters(t *testing.T) {
	hub := events.NewHub(16)
	hub.Publish(track.EventRegistered, map[string]any{"owner_id": "a"})
	hub.Publish(track.EventFlushStarted, map[string]any{"count": 1})

	srv := New(Config{APIKey: testKey}, nil, nil, hub, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events?type=flush.", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	nextType := func() string {
		for sc.Scan() {
			if typ, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
				return typ
			}
		}
		return ""
	}

	assert.Equal(t, track.EventFlushStarted, nextType(), "replayed event")

	hub.Publish(track.EventKilled, map[string]any{"owner_id": "a"})
	hub.Publish(track.EventFlushCompleted, map[string]any{"count": 1})
	assert.Equal(t, track.EventFlushCompleted, nextType(), "live event after the filtered kill")
}

func TestHandleEvents_RequiresEventScope(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodGet, "/events", "reader", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, ts.logs.String(), "request denied")
}

func TestServe_ShutdownEndsEventStreams(t *testing.T) {
	hub := events.NewHub(16)
	srv := New(Config{APIKey: testKey}, nil, nil, hub, slog.New(slog.NewJSONHandler(io.Discard, nil)))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, ln) }()

	req, err := http.NewRequest(http.MethodGet, "http://"+ln.Addr().String()+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sc := bufio.NewScanner(resp.Body)
	require.True(t, sc.Scan())
	assert.Equal(t, "retry: 3000", sc.Text())

	start := time.Now()
	stop()
	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return while an event stream was attached")
	}
	assert.Less(t, time.Since(start), 3*time.Second)

	// The stream ends with the server.
	_, err = io.Copy(io.Discard, resp.Body)
	assert.NoError(t, err)
}
