package runlog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/mattjoyce/warden/internal/events"
	"github.com/mattjoyce/warden/internal/track"
)

// Subscriber is the part of events.Hub that Follow needs.
type Subscriber interface {
	SubscribeMatching(match func(eventType string) bool) (<-chan events.Event, func())
}

// Follow persists tracker anomalies and kill times from sub until ctx is
// done. Write failures are logged and do not stop the follower.
func (l *Log) Follow(ctx context.Context, sub Subscriber, logger *slog.Logger) error {
	ch, cancel := sub.SubscribeMatching(func(eventType string) bool {
		return eventType == track.EventKilled || track.IsAnomaly(eventType)
	})
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := l.apply(ctx, ev); err != nil && ctx.Err() == nil {
				logger.Error("failed to persist tracker event", "event_id", ev.ID, "type", ev.Type, "error", err)
			}
		}
	}
}

func (l *Log) apply(ctx context.Context, ev events.Event) error {
	if ev.Type != track.EventKilled {
		return l.RecordAnomaly(ctx, ev.ID, ev.Type, ev.Data)
	}

	var data struct {
		Owner string `json:"owner_id"`
	}
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		return err
	}
	err := l.MarkKilled(ctx, data.Owner, ev.At)
	if errors.Is(err, ErrRunNotFound) {
		// Registered before the run log was attached.
		return nil
	}
	return err
}
