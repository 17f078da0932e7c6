package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/F-O-T/contentagen-nx-sub000/internal/observability"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

func newTestClient(t *testing.T, h http.HandlerFunc, retries int) *client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(logger.Nop(), Config{
		APIKey:      "sk-test",
		BaseURL:     srv.URL,
		Model:       "test-model",
		Temperature: 0.2,
		MaxRetries:  retries,
		Timeout:     5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	cl := c.(*client)
	cl.backoff = time.Millisecond
	return cl
}

func writeOutput(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"output": []map[string]any{{
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "output_text", "text": text},
			},
		}},
	})
}

func TestGenerateJSONSendsFormatAndAuth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/responses" {
			t.Errorf("path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization: %q", got)
		}
		var req responsesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Text == nil || req.Text.Format["type"] != "json_object" {
			t.Errorf("json format not requested: %+v", req.Text)
		}
		if len(req.Input) != 2 || req.Input[0].Role != "system" || req.Input[1].Content != "list ideas" {
			t.Errorf("input: %+v", req.Input)
		}
		writeOutput(w, `{"ideas":[]}`)
	}, 0)

	out, err := c.Generate(context.Background(), "You are a planner", "list ideas", FormatJSON)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != `{"ideas":[]}` {
		t.Fatalf("output: %q", out)
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeOutput(w, "draft")
	}, 2)

	out, err := c.Generate(context.Background(), "sys", "user", FormatText)
	if err != nil || out != "draft" {
		t.Fatalf("Generate: out=%q err=%v", out, err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("calls: want=2 got=%d", n)
	}
}

func TestGenerateExhaustedRetriesAreTransient(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}, 2)

	_, err := c.Generate(context.Background(), "sys", "user", FormatText)
	var te *perrors.TransientError
	if !errors.As(err, &te) {
		t.Fatalf("want transient error, got %v", err)
	}
	if perrors.Classify(err) != perrors.Retryable {
		t.Fatalf("exhausted provider failure must stay retryable")
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("calls: want=3 got=%d", n)
	}
}

func TestGenerateClientErrorIsFatal(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}, 3)

	_, err := c.Generate(context.Background(), "sys", "user", FormatText)
	if !errors.Is(err, perrors.ErrFatal) {
		t.Fatalf("want fatal, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("client errors must not be retried; calls=%d", n)
	}
}

func TestGenerateDropsRejectedTemperature(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req responsesRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if calls.Add(1) == 1 {
			if req.Temperature == nil {
				t.Errorf("first call should carry temperature")
			}
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Unsupported parameter: 'temperature'"}}`))
			return
		}
		if req.Temperature != nil {
			t.Errorf("retry still carries temperature")
		}
		writeOutput(w, "ok")
	}, 0)

	out, err := c.Generate(context.Background(), "sys", "user", FormatText)
	if err != nil || out != "ok" {
		t.Fatalf("Generate: out=%q err=%v", out, err)
	}
	if !c.modelRejectsTemperature("test-model") {
		t.Fatalf("rejection not remembered")
	}
}

func TestEmbedOrdersByIndex(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float64{0, 1}},
				{"index": 0, "embedding": []float64{1, 0}},
			},
		})
	}, 0)

	vecs, err := c.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Fatalf("vectors out of order: %v", vecs)
	}
}

func TestRequestsAreCountedInMetrics(t *testing.T) {
	m := observability.Init(nil, observability.MetricsConfig{Enabled: true})
	t.Cleanup(func() { observability.Init(nil, observability.MetricsConfig{}) })

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/embeddings" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeOutput(w, "draft")
	}, 0)

	if _, err := c.Generate(context.Background(), "sys", "user", FormatText); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := c.Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatalf("Embed: want error")
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`contentagen_llm_requests_total{endpoint="/v1/responses",model="test-model",status="200"} 1`,
		`contentagen_llm_requests_total{endpoint="/v1/embeddings",model="text-embedding-3-small",status="400"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}
