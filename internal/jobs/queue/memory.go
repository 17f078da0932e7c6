package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
	"github.com/F-O-T/contentagen-nx-sub000/internal/domain/jobs"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
)

// MemoryStore keeps runs and jobs in process. It backs QUEUE_BACKEND=memory
// and tests; nothing survives a restart.
type MemoryStore struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*domain.PipelineRun
	jobs map[uuid.UUID]*domain.PipelineJob
	sig  *signals
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: map[uuid.UUID]*domain.PipelineRun{},
		jobs: map[uuid.UUID]*domain.PipelineJob{},
		sig:  newSignals(),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) CreateRun(_ context.Context, run *domain.PipelineRun, first *domain.PipelineJob) error {
	m.mu.Lock()
	if _, ok := m.runs[run.ID]; ok {
		m.mu.Unlock()
		return fmt.Errorf("pipeline run %s already exists", run.ID)
	}
	now := m.now()
	run.CreatedAt, run.UpdatedAt = now, now
	cp := *run
	m.runs[run.ID] = &cp
	inserted := m.insertLocked(first)
	m.mu.Unlock()
	if inserted {
		m.sig.notify(first.Queue)
	}
	return nil
}

func (m *MemoryStore) insertLocked(job *domain.PipelineJob) bool {
	if job == nil {
		return false
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if _, exists := m.jobs[job.ID]; exists {
		return false
	}
	now := m.now()
	if job.RunAt.IsZero() {
		job.RunAt = now
	}
	job.CreatedAt, job.UpdatedAt = now, now
	cp := *job
	m.jobs[job.ID] = &cp
	return true
}

func (m *MemoryStore) GetRun(_ context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("pipeline run %s: %w", id, perrors.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) FinishRun(_ context.Context, id uuid.UUID, status domain.RunStatus, stage, errMsg string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return false, fmt.Errorf("pipeline run %s: %w", id, perrors.ErrNotFound)
	}
	if r.Status.Terminal() {
		return false, nil
	}
	r.Status = status
	if stage != "" {
		r.Stage = stage
	}
	r.Error = errMsg
	r.UpdatedAt = m.now()
	return true, nil
}

func (m *MemoryStore) MarkRunStage(_ context.Context, id uuid.UUID, stage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[id]; ok && !r.Status.Terminal() {
		r.Stage = stage
		r.UpdatedAt = m.now()
	}
	return nil
}

func (m *MemoryStore) Enqueue(_ context.Context, job *domain.PipelineJob) (bool, error) {
	m.mu.Lock()
	inserted := m.insertLocked(job)
	m.mu.Unlock()
	if inserted {
		m.sig.notify(job.Queue)
	}
	return inserted, nil
}

func (m *MemoryStore) GetJob(_ context.Context, id uuid.UUID) (*domain.PipelineJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("pipeline job %s: %w", id, perrors.ErrNotFound)
	}
	cp := *j
	return &cp, nil
}

func (m *MemoryStore) ListJobs(_ context.Context, pipelineID uuid.UUID) ([]*domain.PipelineJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.PipelineJob
	for _, j := range m.jobs {
		if j.PipelineID == pipelineID {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Claim(_ context.Context, queue string, staleAfter time.Duration) (*domain.PipelineJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var best *domain.PipelineJob
	for _, j := range m.jobs {
		if j.Queue != queue || !runnable(j, now, staleAfter) {
			continue
		}
		if j.Status == jobs.JobRunning && j.MaxAttempts > 0 && j.Attempt+1 >= j.MaxAttempts {
			m.abandonLocked(j, now)
			continue
		}
		if best == nil || j.RunAt.Before(best.RunAt) || (j.RunAt.Equal(best.RunAt) && j.CreatedAt.Before(best.CreatedAt)) {
			best = j
		}
	}
	if best == nil {
		return nil, nil
	}
	if best.Status == jobs.JobRunning {
		best.Attempt++
	}
	best.Status = jobs.JobRunning
	best.LockedAt = &now
	best.HeartbeatAt = &now
	best.UpdatedAt = now
	cp := *best
	return &cp, nil
}

// abandonLocked fails a stale job that has no attempts left, and its run.
func (m *MemoryStore) abandonLocked(j *domain.PipelineJob, now time.Time) {
	j.Attempt++
	j.Status = jobs.JobFailed
	j.Error = jobs.AbandonedMessage(j.Stage, j.Attempt)
	j.LockedAt = nil
	j.UpdatedAt = now
	if r, ok := m.runs[j.PipelineID]; ok && !r.Status.Terminal() {
		r.Status = jobs.RunFailed
		r.Stage = j.Stage
		r.Error = j.Error
		r.UpdatedAt = now
	}
}

func runnable(j *domain.PipelineJob, now time.Time, staleAfter time.Duration) bool {
	switch j.Status {
	case jobs.JobQueued, jobs.JobRetrying:
		return !j.RunAt.After(now)
	case jobs.JobRunning:
		return j.HeartbeatAt != nil && j.HeartbeatAt.Before(now.Add(-staleAfter))
	default:
		return false
	}
}

func (m *MemoryStore) Heartbeat(_ context.Context, jobID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[jobID]; ok && j.Status == jobs.JobRunning {
		now := m.now()
		j.HeartbeatAt = &now
	}
	return nil
}

func (m *MemoryStore) Complete(_ context.Context, jobID uuid.UUID, next *domain.PipelineJob) (bool, error) {
	m.mu.Lock()
	j, ok := m.jobs[jobID]
	if !ok || j.Status != jobs.JobRunning {
		m.mu.Unlock()
		return false, nil
	}
	j.Status = jobs.JobSucceeded
	j.Error = ""
	j.UpdatedAt = m.now()
	inserted := m.insertLocked(next)
	m.mu.Unlock()
	if inserted {
		m.sig.notify(next.Queue)
	}
	return true, nil
}

func (m *MemoryStore) transition(jobID uuid.UUID, from []jobs.JobStatus, apply func(j *domain.PipelineJob)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return fmt.Errorf("pipeline job %s: %w", jobID, perrors.ErrNotFound)
	}
	for _, s := range from {
		if j.Status == s {
			apply(j)
			j.UpdatedAt = m.now()
			return nil
		}
	}
	return nil
}

func (m *MemoryStore) Retry(_ context.Context, jobID uuid.UUID, attempt int, runAt time.Time, errMsg string) error {
	var queue string
	err := m.transition(jobID, []jobs.JobStatus{jobs.JobRunning}, func(j *domain.PipelineJob) {
		j.Status = jobs.JobRetrying
		j.Attempt = attempt
		j.RunAt = runAt.UTC()
		j.Error = errMsg
		j.LockedAt = nil
		queue = j.Queue
	})
	if err == nil && queue != "" {
		m.sig.notify(queue)
	}
	return err
}

func (m *MemoryStore) Fail(_ context.Context, jobID uuid.UUID, errMsg string) error {
	return m.transition(jobID, []jobs.JobStatus{jobs.JobRunning, jobs.JobQueued, jobs.JobRetrying}, func(j *domain.PipelineJob) {
		j.Status = jobs.JobFailed
		j.Error = errMsg
		j.LockedAt = nil
	})
}

func (m *MemoryStore) Cancel(_ context.Context, jobID uuid.UUID) error {
	return m.transition(jobID, []jobs.JobStatus{jobs.JobRunning, jobs.JobQueued, jobs.JobRetrying}, func(j *domain.PipelineJob) {
		j.Status = jobs.JobCanceled
		j.LockedAt = nil
	})
}

func (m *MemoryStore) Release(_ context.Context, jobID uuid.UUID) error {
	var queue string
	err := m.transition(jobID, []jobs.JobStatus{jobs.JobRunning}, func(j *domain.PipelineJob) {
		j.Status = jobs.JobQueued
		j.LockedAt = nil
		j.HeartbeatAt = nil
		queue = j.Queue
	})
	if err == nil && queue != "" {
		m.sig.notify(queue)
	}
	return err
}

func (m *MemoryStore) Wakeups(queue string) <-chan struct{} {
	return m.sig.channel(queue)
}
