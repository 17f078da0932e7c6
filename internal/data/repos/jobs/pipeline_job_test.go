package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/F-O-T/contentagen-nx-sub000/internal/data/repos/testutil"
	types "github.com/F-O-T/contentagen-nx-sub000/internal/domain/jobs"
	"github.com/F-O-T/contentagen-nx-sub000/internal/pkg/dbctx"
)

func newJob(queue string, status types.JobStatus, runAt time.Time) *types.PipelineJob {
	return &types.PipelineJob{
		ID:           uuid.New(),
		PipelineID:   uuid.New(),
		PipelineType: "knowledge",
		Stage:        queue,
		Queue:        queue,
		Status:       status,
		MaxAttempts:  3,
		Payload:      datatypes.JSON([]byte("{}")),
		RunAt:        runAt,
	}
}

func TestPipelineJobRepoClaimOrderAndEligibility(t *testing.T) {
	db := testutil.DB(t)
	repo := NewPipelineJobRepo(db, testutil.Logger(t))
	dbc := dbctx.For(context.Background())
	now := time.Now().UTC()
	queue := "q_" + uuid.NewString()[:8]

	older := newJob(queue, types.JobQueued, now.Add(-2*time.Minute))
	newer := newJob(queue, types.JobRetrying, now.Add(-time.Minute))
	future := newJob(queue, types.JobRetrying, now.Add(time.Hour))
	otherQueue := newJob(queue+"_other", types.JobQueued, now.Add(-time.Hour))
	done := newJob(queue, types.JobSucceeded, now.Add(-time.Hour))

	if err := repo.Create(dbc, []*types.PipelineJob{older, newer, future, otherQueue, done}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := repo.ClaimNext(dbc, queue, now, 10*time.Minute)
	if err != nil || first == nil {
		t.Fatalf("ClaimNext #1: job=%v err=%v", first, err)
	}
	if first.ID != older.ID || first.Status != types.JobRunning {
		t.Fatalf("ClaimNext #1: expected oldest job running, got %s %s", first.ID, first.Status)
	}

	second, err := repo.ClaimNext(dbc, queue, now, 10*time.Minute)
	if err != nil || second == nil || second.ID != newer.ID {
		t.Fatalf("ClaimNext #2: expected retrying job, got %v err=%v", second, err)
	}

	third, err := repo.ClaimNext(dbc, queue, now, 10*time.Minute)
	if err != nil {
		t.Fatalf("ClaimNext #3: %v", err)
	}
	if third != nil {
		t.Fatalf("ClaimNext #3: future job must not be claimed, got %s", third.ID)
	}
}

func TestPipelineJobRepoReclaimsStaleRunning(t *testing.T) {
	db := testutil.DB(t)
	repo := NewPipelineJobRepo(db, testutil.Logger(t))
	dbc := dbctx.For(context.Background())
	now := time.Now().UTC()
	queue := "stale_" + uuid.NewString()[:8]

	stale := newJob(queue, types.JobRunning, now.Add(-time.Hour))
	hb := now.Add(-time.Hour)
	stale.HeartbeatAt = &hb
	if err := repo.Create(dbc, []*types.PipelineJob{stale}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.ClaimNext(dbc, queue, now, 5*time.Minute)
	if err != nil || got == nil {
		t.Fatalf("ClaimNext: job=%v err=%v", got, err)
	}
	if got.Attempt != 1 {
		t.Fatalf("stale reclaim should count an attempt, got %d", got.Attempt)
	}
}

func TestPipelineJobRepoFailsStaleJobOutOfAttempts(t *testing.T) {
	db := testutil.DB(t)
	repo := NewPipelineJobRepo(db, testutil.Logger(t))
	dbc := dbctx.For(context.Background())
	now := time.Now().UTC()
	queue := "exhausted_" + uuid.NewString()[:8]

	hb := now.Add(-time.Hour)
	last := newJob(queue, types.JobRunning, now.Add(-time.Hour))
	last.Attempt = 2
	last.HeartbeatAt = &hb
	if err := repo.Create(dbc, []*types.PipelineJob{last}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if got, err := repo.ClaimNext(dbc, queue, now, 5*time.Minute); err != nil || got != nil {
		t.Fatalf("ClaimNext must skip a job with no attempts left: job=%v err=%v", got, err)
	}
	failed, err := repo.FailAbandoned(dbc, queue, now, 5*time.Minute)
	if err != nil || len(failed) != 1 || failed[0].ID != last.ID {
		t.Fatalf("FailAbandoned: %v err=%v", failed, err)
	}
	got, err := repo.GetByID(dbc, last.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.JobFailed || got.Attempt != 3 || got.Error == "" {
		t.Fatalf("abandoned job: %+v", got)
	}
	if again, err := repo.FailAbandoned(dbc, queue, now, 5*time.Minute); err != nil || len(again) != 0 {
		t.Fatalf("FailAbandoned twice: %v err=%v", again, err)
	}
}

func TestPipelineJobRepoCreateIgnoresDuplicateIDs(t *testing.T) {
	db := testutil.DB(t)
	repo := NewPipelineJobRepo(db, testutil.Logger(t))
	dbc := dbctx.For(context.Background())

	job := newJob("dup", types.JobQueued, time.Now().UTC())
	if err := repo.Create(dbc, []*types.PipelineJob{job}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	again := *job
	again.Status = types.JobFailed
	if err := repo.Create(dbc, []*types.PipelineJob{&again}); err != nil {
		t.Fatalf("Create duplicate: %v", err)
	}
	got, err := repo.GetByID(dbc, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.JobQueued {
		t.Fatalf("duplicate insert overwrote row: %s", got.Status)
	}
}

func TestPipelineJobRepoTransitionGuardsStatus(t *testing.T) {
	db := testutil.DB(t)
	repo := NewPipelineJobRepo(db, testutil.Logger(t))
	dbc := dbctx.For(context.Background())

	job := newJob("guard", types.JobQueued, time.Now().UTC())
	if err := repo.Create(dbc, []*types.PipelineJob{job}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	ok, err := repo.Transition(dbc, job.ID, []types.JobStatus{types.JobRunning}, map[string]interface{}{"status": types.JobSucceeded})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if ok {
		t.Fatalf("transition from running must not apply to a queued job")
	}
}
