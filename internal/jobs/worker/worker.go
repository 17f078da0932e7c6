package worker

import (
	"context"
	"sync"
	"time"

	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/queue"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

type RuntimeOptions struct {
	// Concurrency maps each queue served to its pool size.
	Concurrency  map[string]int
	PollInterval time.Duration // default 2s
	StaleAfter   time.Duration // default 2m
}

// Runtime owns one pool per queue. Each pool has a single dispatcher that
// claims a job only when a slot is free, so no goroutine spins on an empty
// queue: idle pools sleep until a wakeup or the poll fallback.
type Runtime struct {
	log   *logger.Logger
	store queue.Store
	exec  *Executor
	opts  RuntimeOptions

	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

func NewRuntime(log *logger.Logger, store queue.Store, exec *Executor, opts RuntimeOptions) *Runtime {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 2 * time.Minute
	}
	return &Runtime{
		log:   log.With("component", "WorkerRuntime"),
		store: store,
		exec:  exec,
		opts:  opts,
	}
}

// Start launches every pool. Pools stop when ctx is canceled; Wait blocks
// until they have drained.
func (r *Runtime) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	for q, n := range r.opts.Concurrency {
		if n < 1 {
			n = 1
		}
		r.log.Info("Starting queue pool", "queue", q, "concurrency", n)
		r.wg.Add(1)
		go r.dispatch(ctx, q, n)
	}
}

func (r *Runtime) Wait() {
	r.wg.Wait()
}

func (r *Runtime) dispatch(ctx context.Context, q string, n int) {
	defer r.wg.Done()

	var inflight sync.WaitGroup
	defer inflight.Wait()

	slots := make(chan struct{}, n)
	wake := r.store.Wakeups(q)
	timer := time.NewTimer(r.opts.PollInterval)
	defer timer.Stop()

	for {
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			r.log.Info("Queue pool stopping", "queue", q)
			return
		}

		job, err := r.store.Claim(ctx, q, r.opts.StaleAfter)
		if err != nil || job == nil {
			<-slots
			if err != nil && ctx.Err() == nil {
				r.log.Warn("Claim failed", "queue", q, "error", err)
			}
			if !r.idle(ctx, wake, timer) {
				r.log.Info("Queue pool stopping", "queue", q)
				return
			}
			continue
		}

		inflight.Add(1)
		go func() {
			defer inflight.Done()
			defer func() { <-slots }()
			r.exec.Execute(ctx, job)
		}()
	}
}

// idle blocks until work may be available. It returns false once ctx ends.
func (r *Runtime) idle(ctx context.Context, wake <-chan struct{}, timer *time.Timer) bool {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(r.opts.PollInterval)
	select {
	case <-ctx.Done():
		return false
	case <-wake:
		return true
	case <-timer.C:
		return true
	}
}
