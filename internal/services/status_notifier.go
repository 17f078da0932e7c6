package services

import (
	"context"
	"time"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
	"github.com/F-O-T/contentagen-nx-sub000/internal/realtime"
	"github.com/F-O-T/contentagen-nx-sub000/internal/realtime/bus"
)

// StatusNotifier publishes pipeline status transitions to subscribers of the
// event's subject. Publishing is fire-and-forget.
type StatusNotifier interface {
	Publish(ctx context.Context, evt domain.StatusEvent)
}

type statusNotifier struct {
	log *logger.Logger
	hub *realtime.SSEHub
	bus bus.Bus
	seq realtime.Sequencer
	now func() time.Time
}

// NewStatusNotifier delivers through b when set and straight into hub
// otherwise. seq may be nil, in which case an in-process counter is used.
func NewStatusNotifier(log *logger.Logger, hub *realtime.SSEHub, b bus.Bus, seq realtime.Sequencer) StatusNotifier {
	if seq == nil {
		seq = realtime.NewMemorySequencer()
	}
	return &statusNotifier{
		log: log.With("service", "StatusNotifier"),
		hub: hub,
		bus: b,
		seq: seq,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (n *statusNotifier) Publish(ctx context.Context, evt domain.StatusEvent) {
	subject := evt.SubjectID.String()
	seq, err := n.seq.Next(ctx, subject)
	if err != nil {
		n.log.Warn("status sequence unavailable", "subject_id", subject, "error", err)
	}
	evt.Seq = seq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = n.now()
	}

	msg := realtime.SSEMessage{
		Channel: subject,
		Event:   realtime.SSEEventStatus,
		Data:    evt,
	}
	if n.bus != nil {
		err := n.bus.Publish(ctx, msg)
		if err == nil {
			return
		}
		n.log.Warn("status bus publish failed; delivering locally", "subject_id", subject, "error", err)
	}
	if n.hub != nil {
		n.hub.Broadcast(msg)
	}
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, domain.StatusEvent) {}
