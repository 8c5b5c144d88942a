package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mattjoyce/warden/internal/events"
)

const sseKeepAlive = 15 * time.Second

// handleEvents handles GET /events as a server-sent event stream. Buffered
// events newer than Last-Event-ID are replayed first. Repeated or
// comma-separated type parameters restrict the stream; a value ending in "."
// matches a whole family such as "flush.".
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	match := eventTypeFilter(r.URL.Query()["type"])

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Subscribe before replaying so nothing published in between is lost.
	ch, cancel := s.events.SubscribeMatching(match)
	defer cancel()

	stream := sseStream{w: w, flusher: flusher}
	lastID := parseLastEventID(r.Header.Get("Last-Event-ID"))
	if err := stream.retry(3 * time.Second); err != nil {
		return
	}
	for _, ev := range s.events.SnapshotSince(lastID) {
		if !match(ev.Type) {
			continue
		}
		if err := stream.event(ev); err != nil {
			return
		}
		lastID = ev.ID
	}
	stream.flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.closing:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			// Already sent during replay.
			if ev.ID <= lastID {
				continue
			}
			if err := stream.event(ev); err != nil {
				return
			}
			lastID = ev.ID
			stream.flush()
		case <-keepAlive.C:
			if err := stream.comment("keep-alive"); err != nil {
				return
			}
			stream.flush()
		}
	}
}

// eventTypeFilter builds the matcher for the type query parameter. No
// values matches everything.
func eventTypeFilter(values []string) func(string) bool {
	var exact []string
	var prefixes []string
	for _, v := range values {
		for _, t := range strings.Split(v, ",") {
			t = strings.TrimSpace(t)
			switch {
			case t == "":
			case strings.HasSuffix(t, "."):
				prefixes = append(prefixes, t)
			default:
				exact = append(exact, t)
			}
		}
	}
	if len(exact) == 0 && len(prefixes) == 0 {
		return func(string) bool { return true }
	}

	return func(eventType string) bool {
		for _, t := range exact {
			if eventType == t {
				return true
			}
		}
		for _, p := range prefixes {
			if strings.HasPrefix(eventType, p) {
				return true
			}
		}
		return false
	}
}

func parseLastEventID(v string) int64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

type sseStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s sseStream) event(ev events.Event) error {
	// Payloads are single-line JSON, so one data line is enough.
	_, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, ev.Data)
	return err
}

func (s sseStream) comment(text string) error {
	_, err := fmt.Fprintf(s.w, ": %s\n\n", text)
	return err
}

func (s sseStream) retry(d time.Duration) error {
	_, err := fmt.Fprintf(s.w, "retry: %d\n\n", d.Milliseconds())
	return err
}

func (s sseStream) flush() { s.flusher.Flush() }
