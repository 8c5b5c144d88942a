package track

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// syncBuffer is a log sink shared by supervisors and the test goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// countingKiller records every process group it is asked to kill.
type countingKiller struct {
	mu     sync.Mutex
	calls  map[int]int
	err    error
	onKill func(pid int)
}

func newCountingKiller() *countingKiller {
	return &countingKiller{calls: make(map[int]int)}
}

func (k *countingKiller) KillGroup(pid int) error {
	k.mu.Lock()
	k.calls[pid]++
	err := k.err
	onKill := k.onKill
	k.mu.Unlock()

	if onKill != nil {
		onKill(pid)
	}
	return err
}

func (k *countingKiller) count(pid int) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.calls[pid]
}

func (k *countingKiller) total() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for _, c := range k.calls {
		n += c
	}
	return n
}

func (k *countingKiller) maxPerPID() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	max := 0
	for _, c := range k.calls {
		if c > max {
			max = c
		}
	}
	return max
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(eventType string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	tracker *Tracker
	killer  *countingKiller
	logs    *syncBuffer
	events  *recordingPublisher
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	f := &fixture{
		killer: newCountingKiller(),
		logs:   &syncBuffer{},
		events: &recordingPublisher{},
	}
	if opts.Killer == nil {
		opts.Killer = f.killer
	}
	opts.Logger = slog.New(slog.NewJSONHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opts.Events = f.events
	f.tracker = New(opts)
	return f
}

func (f *fixture) register(t *testing.T, job JobID, pid int, owner OwnerID) *Handle {
	t.Helper()
	h, err := f.tracker.Register(job, pid, owner)
	if err != nil {
		t.Fatalf("Register(%d, %d, %q): %v", job, pid, owner, err)
	}
	return h
}

func (s *quiesceSet) tombstones() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.retired)
}
