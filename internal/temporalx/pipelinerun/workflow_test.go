package pipelinerun

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain/jobs"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/payload"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
)

type fakeActivities struct {
	mu       sync.Mutex
	stages   []string
	finished []FinishInput
	stage    func(in StageInput) (StageResult, error)
}

func (f *fakeActivities) Stage(_ context.Context, in StageInput) (StageResult, error) {
	f.mu.Lock()
	f.stages = append(f.stages, in.Stage)
	f.mu.Unlock()
	return f.stage(in)
}

func (f *fakeActivities) Finish(_ context.Context, in FinishInput) error {
	f.mu.Lock()
	f.finished = append(f.finished, in)
	f.mu.Unlock()
	return nil
}

func runInput(t *testing.T, route ...string) RunInput {
	t.Helper()
	raw, err := payload.Payload{
		payload.KeyPipelineID: "6f1c2f8e-1b8e-4a36-9a55-0d7f4a1f0b11",
		payload.KeyRoute:      route,
		"agentId":             "a1",
	}.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return RunInput{
		PipelineID:   "6f1c2f8e-1b8e-4a36-9a55-0d7f4a1f0b11",
		PipelineType: "idea",
		Payload:      raw,
		Retry:        RetryParams{MaxAttempts: 3, MinBackoff: time.Second, MaxBackoff: 4 * time.Second},
		StageTimeout: time.Minute,
	}
}

func execute(t *testing.T, fake *fakeActivities, in RunInput) error {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivityWithOptions(fake.Stage, activity.RegisterOptions{Name: StageActivity})
	env.RegisterActivityWithOptions(fake.Finish, activity.RegisterOptions{Name: FinishActivity})
	env.ExecuteWorkflow(Workflow, in)
	if !env.IsWorkflowCompleted() {
		t.Fatalf("workflow did not complete")
	}
	return env.GetWorkflowError()
}

func TestWorkflowMergesStageOutputsInRouteOrder(t *testing.T) {
	fake := &fakeActivities{stage: func(in StageInput) (StageResult, error) {
		p, err := payload.Decode(in.Payload)
		if err != nil {
			return StageResult{}, err
		}
		out := map[string]any{"seen_" + in.Stage: len(p)}
		raw, _ := json.Marshal(out)
		return StageResult{Fields: raw}, nil
	}}
	if err := execute(t, fake, runInput(t, "idea_context", "idea_generation")); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	if strings.Join(fake.stages, ",") != "idea_context,idea_generation" {
		t.Fatalf("stages: %v", fake.stages)
	}
	if len(fake.finished) != 1 {
		t.Fatalf("want one finish got %d", len(fake.finished))
	}
	f := fake.finished[0]
	if f.Status != jobs.RunSucceeded || f.Stage != "idea_generation" {
		t.Fatalf("finish: %+v", f)
	}
	final, err := payload.Decode(f.Payload)
	if err != nil {
		t.Fatalf("decode final payload: %v", err)
	}
	if !final.Has("seen_idea_context") || !final.Has("seen_idea_generation") || final.String("agentId") != "a1" {
		t.Fatalf("final payload: %v", final)
	}
	// The second stage sees the first stage's output.
	if final.Int("seen_idea_generation", 0) != final.Int("seen_idea_context", 0)+1 {
		t.Fatalf("stage outputs not merged before the next stage: %v", final)
	}
}

func TestWorkflowFatalStageIsNotRetried(t *testing.T) {
	fake := &fakeActivities{stage: func(in StageInput) (StageResult, error) {
		if in.Stage == "idea_generation" {
			return StageResult{}, temporal.NewNonRetryableApplicationError("malformed output: no ideas", FatalErrorType, nil, perrors.ReasonMalformedOutput)
		}
		return StageResult{Fields: []byte(`{}`)}, nil
	}}
	if err := execute(t, fake, runInput(t, "idea_context", "idea_generation", "idea_validation")); err == nil {
		t.Fatalf("want workflow error")
	}
	if strings.Join(fake.stages, ",") != "idea_context,idea_generation" {
		t.Fatalf("fatal stage must run once and stop the chain: %v", fake.stages)
	}
	if len(fake.finished) != 1 {
		t.Fatalf("want one finish got %d", len(fake.finished))
	}
	f := fake.finished[0]
	if f.Status != jobs.RunFailed || f.Stage != "idea_generation" || f.Error != "malformed output: no ideas" {
		t.Fatalf("finish: %+v", f)
	}
	if f.Reason != perrors.ReasonMalformedOutput {
		t.Fatalf("finish reason: %q", f.Reason)
	}
}

func TestWorkflowRetriesTransientFailures(t *testing.T) {
	calls := 0
	fake := &fakeActivities{stage: func(in StageInput) (StageResult, error) {
		calls++
		if calls < 3 {
			return StageResult{}, temporal.NewApplicationError("http 503", "transient")
		}
		return StageResult{Fields: []byte(`{"ok":true}`)}, nil
	}}
	if err := execute(t, fake, runInput(t, "idea_generation")); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("want 3 attempts got %d", calls)
	}
	if len(fake.finished) != 1 || fake.finished[0].Status != jobs.RunSucceeded {
		t.Fatalf("finish: %+v", fake.finished)
	}
}

func TestWorkflowStopsQuietlyWhenCanceled(t *testing.T) {
	fake := &fakeActivities{stage: func(in StageInput) (StageResult, error) {
		return StageResult{Canceled: true}, nil
	}}
	if err := execute(t, fake, runInput(t, "idea_context", "idea_generation")); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	if len(fake.stages) != 1 || len(fake.finished) != 0 {
		t.Fatalf("stages=%v finished=%v", fake.stages, fake.finished)
	}
}
