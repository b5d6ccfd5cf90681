package services

import (
	"context"
	"time"

	"transitbook/internal/events"
	"transitbook/internal/utils"

	"go.uber.org/zap"
)

// EventAppender is the write side of the event log.
type EventAppender interface {
	Append(ctx context.Context, channel string, ev events.Event) (int64, error)
}

// EventRecorder is a Bus that writes every event it emits to the event log
// and then hands it to the wrapped bus. Recording on the emitting side means
// each event is written once, by the process whose store produced it, no
// matter how many processes subscribe to the channel.
type EventRecorder struct {
	events.Bus
	Log     EventAppender
	Timeout time.Duration
}

var _ events.Bus = (*EventRecorder)(nil)

func NewEventRecorder(bus events.Bus, log EventAppender) *EventRecorder {
	return &EventRecorder{Bus: bus, Log: log, Timeout: 2 * time.Second}
}

// Emit records ev, then delivers it. A failed write is logged and never
// blocks delivery.
func (r *EventRecorder) Emit(channel string, ev events.Event) {
	r.record(channel, ev)
	r.Bus.Emit(channel, ev)
}

func (r *EventRecorder) record(channel string, ev events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
	defer cancel()
	if _, err := r.Log.Append(ctx, channel, ev); err != nil {
		utils.Logger().Warn("event log append failed",
			zap.String("channel", channel),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
	}
}
