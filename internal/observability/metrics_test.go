package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/F-O-T/contentagen-nx-sub000/internal/data/db"
	"github.com/F-O-T/contentagen-nx-sub000/internal/domain/jobs"
	"github.com/F-O-T/contentagen-nx-sub000/internal/observability"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

func scrape(t *testing.T, m *observability.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape: %d", rec.Code)
	}
	return rec.Body.String()
}

func TestDisabledMetricsAreNil(t *testing.T) {
	t.Cleanup(func() { observability.Init(nil, observability.MetricsConfig{}) })
	m := observability.Init(logger.Nop(), observability.MetricsConfig{})
	if m != nil || observability.Current() != nil {
		t.Fatalf("disabled metrics should be nil")
	}
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.ObserveStage("idea", "idea_generation", "succeeded", time.Millisecond)
	m.ObserveLLMRequest("gpt", "/responses", "200", time.Millisecond)
	m.APIInflightInc()
	m.APIInflightDec()
	if err := m.CollectJobQueue(context.Background(), nil); err != nil {
		t.Fatalf("CollectJobQueue on nil: %v", err)
	}
	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("nil handler: %d", rec.Code)
	}
}

func TestObservationsAreExposed(t *testing.T) {
	m := observability.NewMetrics(observability.MetricsConfig{Enabled: true})
	m.ObserveAPI("post", "/api/pipelines/:pipeline", "202", 20*time.Millisecond)
	m.ObserveStage("content", "content_writing", "retrying", time.Second)
	m.ObserveStage("content", "content_writing", "succeeded", time.Second)
	m.ObserveLLMRequest(" gpt-4o-mini ", "/responses", "", time.Second)

	body := scrape(t, m)
	for _, want := range []string{
		`contentagen_api_requests_total{method="POST",route="/api/pipelines/:pipeline",status="202"} 1`,
		`contentagen_pipeline_stage_runs_total{pipeline="content",stage="content_writing",status="retrying"} 1`,
		`contentagen_pipeline_stage_runs_total{pipeline="content",stage="content_writing",status="succeeded"} 1`,
		`contentagen_llm_requests_total{endpoint="/responses",model="gpt-4o-mini",status="0"} 1`,
		`contentagen_api_inflight_requests 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}

func TestCollectJobQueueCountsByQueueAndStatus(t *testing.T) {
	svc, err := db.NewSQLiteService(logger.Nop(), "file:metricstest?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	if err := db.AutoMigrateAll(svc.DB()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	add := func(queue string, status jobs.JobStatus) {
		t.Helper()
		j := &jobs.PipelineJob{
			PipelineID:   uuid.New(),
			PipelineType: "idea",
			Stage:        queue,
			Queue:        queue,
			Status:       status,
			Payload:      datatypes.JSON(`{}`),
		}
		if err := svc.DB().Create(j).Error; err != nil {
			t.Fatalf("create job: %v", err)
		}
	}
	add("idea_generation", jobs.JobQueued)
	add("idea_generation", jobs.JobQueued)
	add("idea_generation", jobs.JobRunning)
	add("idea_validation", jobs.JobFailed)

	m := observability.NewMetrics(observability.MetricsConfig{Enabled: true})
	if err := m.CollectJobQueue(context.Background(), svc.DB()); err != nil {
		t.Fatalf("CollectJobQueue: %v", err)
	}
	body := scrape(t, m)
	for _, want := range []string{
		`contentagen_pipeline_jobs{queue="idea_generation",status="queued"} 2`,
		`contentagen_pipeline_jobs{queue="idea_generation",status="running"} 1`,
		`contentagen_pipeline_jobs{queue="idea_validation",status="failed"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}

	if err := svc.DB().Where("1 = 1").Delete(&jobs.PipelineJob{}).Error; err != nil {
		t.Fatalf("clear jobs: %v", err)
	}
	if err := m.CollectJobQueue(context.Background(), svc.DB()); err != nil {
		t.Fatalf("CollectJobQueue: %v", err)
	}
	if body := scrape(t, m); strings.Contains(body, "contentagen_pipeline_jobs{") {
		t.Fatalf("stale queue gauges kept:\n%s", body)
	}
}
