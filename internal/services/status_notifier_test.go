package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
	"github.com/F-O-T/contentagen-nx-sub000/internal/realtime"
)

type failingBus struct{ calls int }

func (b *failingBus) Publish(context.Context, realtime.SSEMessage) error {
	b.calls++
	return errors.New("redis down")
}

func (b *failingBus) StartForwarder(context.Context, func(realtime.SSEMessage)) error { return nil }

func (b *failingBus) Close() error { return nil }

func TestStatusNotifierStampsSeqAndTimestamp(t *testing.T) {
	hub := realtime.NewSSEHub(logger.Nop())
	subject := uuid.New()
	client := hub.NewSSEClient("")
	hub.AddChannel(client, subject.String())

	n := NewStatusNotifier(logger.Nop(), hub, nil, nil)
	for _, st := range []domain.Status{domain.StatusPending, domain.StatusAnalyzing} {
		n.Publish(context.Background(), domain.StatusEvent{
			SubjectID:   subject,
			SubjectType: domain.SubjectContent,
			Status:      st,
		})
	}

	var got []domain.StatusEvent
	for i := 0; i < 2; i++ {
		select {
		case msg := <-client.Outbound:
			if msg.Event != realtime.SSEEventStatus {
				t.Fatalf("event: want=%s got=%s", realtime.SSEEventStatus, msg.Event)
			}
			got = append(got, msg.Data.(domain.StatusEvent))
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
	if got[0].Seq != 1 || got[1].Seq != 2 {
		t.Fatalf("seq: want 1,2 got %d,%d", got[0].Seq, got[1].Seq)
	}
	if got[0].Timestamp.IsZero() || got[1].Status != domain.StatusAnalyzing {
		t.Fatalf("unexpected events: %+v", got)
	}
}

func TestStatusNotifierFallsBackToHubWhenBusFails(t *testing.T) {
	hub := realtime.NewSSEHub(logger.Nop())
	subject := uuid.New()
	client := hub.NewSSEClient("")
	hub.AddChannel(client, subject.String())

	b := &failingBus{}
	n := NewStatusNotifier(logger.Nop(), hub, b, nil)
	n.Publish(context.Background(), domain.StatusEvent{SubjectID: subject, Status: domain.StatusCompleted})

	if b.calls != 1 {
		t.Fatalf("bus publish calls: want=1 got=%d", b.calls)
	}
	select {
	case <-client.Outbound:
	case <-time.After(time.Second):
		t.Fatalf("event not delivered locally after bus failure")
	}
}
