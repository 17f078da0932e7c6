package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
	"github.com/F-O-T/contentagen-nx-sub000/internal/domain/jobs"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/payload"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
	"github.com/F-O-T/contentagen-nx-sub000/internal/realtime"
	"github.com/F-O-T/contentagen-nx-sub000/internal/similarity"
)

type stubPipelines struct {
	gotType    pipeline.Type
	gotInitial payload.Payload
	id         uuid.UUID
	err        error
	run        *domain.PipelineRun
}

func (s *stubPipelines) TriggerPipeline(_ context.Context, t pipeline.Type, initial payload.Payload) (uuid.UUID, error) {
	s.gotType, s.gotInitial = t, initial
	return s.id, s.err
}

func (s *stubPipelines) Status(_ context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	if s.run == nil || s.run.ID != id {
		return nil, perrors.ErrNotFound
	}
	return s.run, nil
}

func (s *stubPipelines) Jobs(_ context.Context, id uuid.UUID) ([]*domain.PipelineJob, error) {
	return []*domain.PipelineJob{{PipelineID: id, Stage: "idea_context", Status: jobs.JobSucceeded}}, nil
}

func (s *stubPipelines) Cancel(_ context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	if s.run == nil || s.run.ID != id {
		return nil, perrors.ErrNotFound
	}
	s.run.Status = jobs.RunCanceled
	return s.run, nil
}

func router(p PipelineService, sim Comparer, hub *realtime.SSEHub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ph := NewPipelineHandler(p)
	r.POST("/api/pipelines/:pipeline", ph.Trigger)
	r.GET("/api/pipelines/:pipeline", ph.Status)
	r.POST("/api/pipelines/:pipeline/cancel", ph.Cancel)
	if sim != nil {
		r.POST("/api/similarity", NewSimilarityHandler(sim).Compare)
	}
	if hub != nil {
		r.GET("/api/events/:subjectId", NewRealtimeHandler(logger.Nop(), hub).Events)
	}
	return r
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("error envelope: %v body=%s", err, rec.Body.String())
	}
	if env.Error.Message == "" {
		t.Fatalf("error envelope without message: %s", rec.Body.String())
	}
	return env.Error.Code
}

func TestTriggerReturnsAcceptedWithPipelineID(t *testing.T) {
	stub := &stubPipelines{id: uuid.New()}
	rec := do(router(stub, nil, nil), http.MethodPost, "/api/pipelines/idea", `{"agentId":"`+uuid.NewString()+`","count":3}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: %d body=%s", rec.Code, rec.Body.String())
	}
	var out struct {
		PipelineID uuid.UUID `json:"pipelineId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil || out.PipelineID != stub.id {
		t.Fatalf("body: %s err=%v", rec.Body.String(), err)
	}
	if stub.gotType != pipeline.TypeIdea || stub.gotInitial.Int("count", 0) != 3 {
		t.Fatalf("trigger args: %s %v", stub.gotType, stub.gotInitial)
	}
}

func TestTriggerErrors(t *testing.T) {
	cases := []struct {
		name   string
		path   string
		body   string
		err    error
		status int
		code   string
	}{
		{"unknown type", "/api/pipelines/podcast", `{}`, nil, http.StatusBadRequest, "invalid_pipeline_type"},
		{"not an object", "/api/pipelines/idea", `[1,2]`, nil, http.StatusBadRequest, "invalid_payload"},
		{"contract violation", "/api/pipelines/idea", `{}`, perrors.Contract("pipeline idea: missing [agentId]"), http.StatusBadRequest, "contract_violation"},
		{"store down", "/api/pipelines/idea", `{"agentId":"x"}`, perrors.Persistence("create run", context.DeadlineExceeded), http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(router(&stubPipelines{err: tc.err}, nil, nil), http.MethodPost, tc.path, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status: want %d got %d body=%s", tc.status, rec.Code, rec.Body.String())
			}
			if code := errorCode(t, rec); code != tc.code {
				t.Fatalf("code: want %s got %s", tc.code, code)
			}
		})
	}
}

func TestStatusAndCancel(t *testing.T) {
	run := &domain.PipelineRun{ID: uuid.New(), Type: "idea", Status: jobs.RunRunning, Stage: "idea_generation"}
	r := router(&stubPipelines{run: run}, nil, nil)

	rec := do(r, http.MethodGet, "/api/pipelines/"+run.ID.String(), "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"stage":"idea_context"`) {
		t.Fatalf("status: %d body=%s", rec.Code, rec.Body.String())
	}

	if rec := do(r, http.MethodGet, "/api/pipelines/"+uuid.NewString(), ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown run: %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/api/pipelines/not-a-uuid", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", rec.Code)
	}

	rec = do(r, http.MethodPost, "/api/pipelines/"+run.ID.String()+"/cancel", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"canceled"`) {
		t.Fatalf("cancel: %d body=%s", rec.Code, rec.Body.String())
	}
}

type fixedEmbedder map[string][]float32

func (f fixedEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		out[i] = f[in]
	}
	return out, nil
}

func TestSimilarityCompare(t *testing.T) {
	engine := similarity.NewEngine(fixedEmbedder{
		"cold brew": {1, 0},
		"iced tea":  {0, 1},
		"short":     {1},
	}, similarity.Thresholds{})
	r := router(&stubPipelines{}, engine, nil)

	rec := do(r, http.MethodPost, "/api/similarity", `{"a":"cold brew","b":"iced tea"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d body=%s", rec.Code, rec.Body.String())
	}
	var res similarity.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Category != similarity.CategorySuccess || res.Score != 0 {
		t.Fatalf("result: %+v", res)
	}

	rec = do(r, http.MethodPost, "/api/similarity", `{"a":"cold brew","b":"short"}`)
	if rec.Code != http.StatusUnprocessableEntity || errorCode(t, rec) != "dimension_mismatch" {
		t.Fatalf("mismatch: %d body=%s", rec.Code, rec.Body.String())
	}

	rec = do(r, http.MethodPost, "/api/similarity", `{"a":"cold brew"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing b: %d", rec.Code)
	}
}

func TestEventsStreamsSubjectStatus(t *testing.T) {
	hub := realtime.NewSSEHub(logger.Nop())
	srv := httptest.NewServer(router(&stubPipelines{}, nil, hub))
	defer srv.Close()

	subject := uuid.New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events/"+subject.String(), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(subject.String()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	hub.Broadcast(realtime.SSEMessage{
		Channel: subject.String(),
		Event:   realtime.SSEEventStatus,
		Data:    domain.StatusEvent{SubjectID: subject, Status: domain.StatusAnalyzing, Message: "Planning content", Seq: 2},
	})

	reader := bufio.NewReader(resp.Body)
	event, _ := reader.ReadString('\n')
	data, _ := reader.ReadString('\n')
	if strings.TrimSpace(event) != "event: status" {
		t.Fatalf("event line: %q", event)
	}
	var evt domain.StatusEvent
	if err := json.Unmarshal(bytes.TrimPrefix([]byte(strings.TrimSpace(data)), []byte("data: ")), &evt); err != nil {
		t.Fatalf("data line %q: %v", data, err)
	}
	if evt.SubjectID != subject || evt.Status != domain.StatusAnalyzing || evt.Seq != 2 {
		t.Fatalf("event: %+v", evt)
	}

	if rec := do(router(&stubPipelines{}, nil, hub), http.MethodGet, "/api/events/nope", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad subject: %d", rec.Code)
	}
}
