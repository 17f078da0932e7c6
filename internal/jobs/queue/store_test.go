package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/F-O-T/contentagen-nx-sub000/internal/data/repos"
	"github.com/F-O-T/contentagen-nx-sub000/internal/data/repos/testutil"
	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
	"github.com/F-O-T/contentagen-nx-sub000/internal/domain/jobs"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"gorm":   NewGormStore(db, log, repos.New(db, log)),
	}
}

func newRun(stage string) (*domain.PipelineRun, *domain.PipelineJob) {
	runID := uuid.New()
	run := &domain.PipelineRun{
		ID:          runID,
		Type:        "knowledge",
		SubjectID:   uuid.New(),
		SubjectType: "knowledgeJob",
		Status:      jobs.RunRunning,
		Stage:       stage,
	}
	job := &domain.PipelineJob{
		ID:           jobs.StageJobID(runID, stage),
		PipelineID:   runID,
		PipelineType: "knowledge",
		Stage:        stage,
		Queue:        stage,
		Status:       jobs.JobQueued,
		MaxAttempts:  3,
		Payload:      datatypes.JSON([]byte(`{}`)),
	}
	return run, job
}

func TestStoreClaimCompleteAndNext(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stage := "extract_" + uuid.NewString()[:8]
			run, first := newRun(stage)
			if err := s.CreateRun(ctx, run, first); err != nil {
				t.Fatalf("CreateRun: %v", err)
			}

			claimed, err := s.Claim(ctx, stage, time.Minute)
			if err != nil || claimed == nil {
				t.Fatalf("Claim: job=%v err=%v", claimed, err)
			}
			if claimed.ID != first.ID || claimed.Status != jobs.JobRunning || claimed.Attempt != 0 {
				t.Fatalf("Claim: unexpected job %+v", claimed)
			}
			if again, err := s.Claim(ctx, stage, time.Minute); err != nil || again != nil {
				t.Fatalf("Claim twice: job=%v err=%v", again, err)
			}

			nextStage := stage + "_next"
			next := &domain.PipelineJob{
				ID:           jobs.StageJobID(run.ID, nextStage),
				PipelineID:   run.ID,
				PipelineType: "knowledge",
				Stage:        nextStage,
				Queue:        nextStage,
				Status:       jobs.JobQueued,
				MaxAttempts:  3,
				Payload:      datatypes.JSON([]byte(`{}`)),
			}
			ok, err := s.Complete(ctx, first.ID, next)
			if err != nil || !ok {
				t.Fatalf("Complete: ok=%v err=%v", ok, err)
			}
			ok, err = s.Complete(ctx, first.ID, next)
			if err != nil || ok {
				t.Fatalf("Complete twice: ok=%v err=%v", ok, err)
			}

			dup := *next
			inserted, err := s.Enqueue(ctx, &dup)
			if err != nil || inserted {
				t.Fatalf("Enqueue duplicate: inserted=%v err=%v", inserted, err)
			}

			list, err := s.ListJobs(ctx, run.ID)
			if err != nil || len(list) != 2 {
				t.Fatalf("ListJobs: %d jobs err=%v", len(list), err)
			}
			got, err := s.GetJob(ctx, first.ID)
			if err != nil || got.Status != jobs.JobSucceeded {
				t.Fatalf("GetJob: %+v err=%v", got, err)
			}
			claimedNext, err := s.Claim(ctx, nextStage, time.Minute)
			if err != nil || claimedNext == nil || claimedNext.ID != next.ID {
				t.Fatalf("Claim next: job=%v err=%v", claimedNext, err)
			}
		})
	}
}

func TestStoreRetryAndRelease(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stage := "structure_" + uuid.NewString()[:8]
			run, first := newRun(stage)
			if err := s.CreateRun(ctx, run, first); err != nil {
				t.Fatalf("CreateRun: %v", err)
			}
			if _, err := s.Claim(ctx, stage, time.Minute); err != nil {
				t.Fatalf("Claim: %v", err)
			}

			if err := s.Retry(ctx, first.ID, 1, time.Now().Add(time.Hour), "boom"); err != nil {
				t.Fatalf("Retry: %v", err)
			}
			if j, err := s.Claim(ctx, stage, time.Minute); err != nil || j != nil {
				t.Fatalf("Claim before runAt: job=%v err=%v", j, err)
			}

			got, _ := s.GetJob(ctx, first.ID)
			if got.Status != jobs.JobRetrying || got.Attempt != 1 || got.Error != "boom" {
				t.Fatalf("after Retry: %+v", got)
			}
			if err := s.Fail(ctx, first.ID, "gave up"); err != nil {
				t.Fatalf("Fail: %v", err)
			}
			got, _ = s.GetJob(ctx, first.ID)
			if got.Status != jobs.JobFailed {
				t.Fatalf("after Fail: %s", got.Status)
			}

			run2, job2 := newRun(stage)
			if err := s.CreateRun(ctx, run2, job2); err != nil {
				t.Fatalf("CreateRun #2: %v", err)
			}
			claimed, err := s.Claim(ctx, stage, time.Minute)
			if err != nil || claimed == nil || claimed.ID != job2.ID {
				t.Fatalf("Claim #2: job=%v err=%v", claimed, err)
			}
			if err := s.Release(ctx, job2.ID); err != nil {
				t.Fatalf("Release: %v", err)
			}
			reclaimed, err := s.Claim(ctx, stage, time.Minute)
			if err != nil || reclaimed == nil || reclaimed.ID != job2.ID {
				t.Fatalf("Claim after Release: job=%v err=%v", reclaimed, err)
			}
			if reclaimed.Attempt != 0 {
				t.Fatalf("Release must not consume an attempt, got %d", reclaimed.Attempt)
			}
		})
	}
}

func TestStoreFailsAbandonedJobOutOfAttempts(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stage := "abandon_" + uuid.NewString()[:8]
			run, first := newRun(stage)
			if err := s.CreateRun(ctx, run, first); err != nil {
				t.Fatalf("CreateRun: %v", err)
			}
			if j, err := s.Claim(ctx, stage, time.Minute); err != nil || j == nil {
				t.Fatalf("Claim: job=%v err=%v", j, err)
			}

			// A negative stale window treats every running job as abandoned.
			for want := 1; want < first.MaxAttempts; want++ {
				j, err := s.Claim(ctx, stage, -time.Second)
				if err != nil || j == nil {
					t.Fatalf("reclaim %d: job=%v err=%v", want, j, err)
				}
				if j.Attempt != want {
					t.Fatalf("reclaim %d: attempt=%d", want, j.Attempt)
				}
			}

			if j, err := s.Claim(ctx, stage, -time.Second); err != nil || j != nil {
				t.Fatalf("exhausted job must not be reclaimed: job=%v err=%v", j, err)
			}
			got, err := s.GetJob(ctx, first.ID)
			if err != nil || got.Status != jobs.JobFailed || got.Attempt != first.MaxAttempts {
				t.Fatalf("abandoned job: %+v err=%v", got, err)
			}
			gotRun, err := s.GetRun(ctx, run.ID)
			if err != nil || gotRun.Status != jobs.RunFailed || gotRun.Error == "" {
				t.Fatalf("abandoned run: %+v err=%v", gotRun, err)
			}
		})
	}
}

func TestStoreFinishRunOnce(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			run, first := newRun("persist_" + uuid.NewString()[:8])
			if err := s.CreateRun(ctx, run, first); err != nil {
				t.Fatalf("CreateRun: %v", err)
			}
			ok, err := s.FinishRun(ctx, run.ID, jobs.RunCanceled, "", "")
			if err != nil || !ok {
				t.Fatalf("FinishRun: ok=%v err=%v", ok, err)
			}
			ok, err = s.FinishRun(ctx, run.ID, jobs.RunSucceeded, "", "")
			if err != nil || ok {
				t.Fatalf("FinishRun on terminal run: ok=%v err=%v", ok, err)
			}
			got, err := s.GetRun(ctx, run.ID)
			if err != nil || got.Status != jobs.RunCanceled {
				t.Fatalf("GetRun: %+v err=%v", got, err)
			}
		})
	}
}

func TestStoreWakeupsOnEnqueue(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stage := "load_" + uuid.NewString()[:8]
			wake := s.Wakeups(stage)
			if wake == nil {
				t.Fatalf("Wakeups: nil channel")
			}
			run, first := newRun(stage)
			if err := s.CreateRun(ctx, run, first); err != nil {
				t.Fatalf("CreateRun: %v", err)
			}
			select {
			case <-wake:
			case <-time.After(time.Second):
				t.Fatalf("no wakeup after enqueue")
			}
		})
	}
}
