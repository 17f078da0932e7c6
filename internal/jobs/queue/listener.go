package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/F-O-T/contentagen-nx-sub000/internal/pkg/httpx"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

// Listener holds a dedicated pgx connection LISTENing on NotifyChannel and
// forwards each notification's payload (a queue name) to onQueue.
type Listener struct {
	log        *logger.Logger
	dsn        string
	onQueue    func(queue string)
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewListener(log *logger.Logger, dsn string, onQueue func(queue string)) *Listener {
	return &Listener{
		log:        log.With("service", "QueueListener"),
		dsn:        dsn,
		onQueue:    onQueue,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

// Run blocks until ctx is done, reconnecting with backoff on failure.
func (l *Listener) Run(ctx context.Context) {
	backoff := l.minBackoff
	for {
		err := l.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		l.log.Warn("Queue listener disconnected; reconnecting", "error", err, "backoff", backoff.String())
		if httpx.Sleep(ctx, httpx.Jitter(backoff, 0.2)) != nil {
			return
		}
		backoff *= 2
		if backoff > l.maxBackoff {
			backoff = l.maxBackoff
		}
	}
}

func (l *Listener) listenOnce(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{NotifyChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.log.Info("Listening for queue notifications", "channel", NotifyChannel)
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if n.Payload != "" {
			l.onQueue(n.Payload)
		}
	}
}
