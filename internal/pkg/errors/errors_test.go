package errors

import (
	"context"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Class
	}{
		{"contract", Contract("missing %s", "agentId"), Fatal},
		{"malformed wrapped", fmt.Errorf("structuring: %w", ErrMalformedOutput), Fatal},
		{"not found", fmt.Errorf("agent %s: %w", "x", ErrNotFound), Fatal},
		{"canceled run", ErrCanceled, Fatal},
		{"transient", Transient("embed", context.DeadlineExceeded), Retryable},
		{"persistence", Persistence("insert chunks", New("connection reset")), Retryable},
		{"unknown", New("boom"), Retryable},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("%s: want %s got %s", tc.name, tc.want, got)
		}
	}
}

func TestPersistenceKeepsCause(t *testing.T) {
	cause := New("disk full")
	err := Persistence("create content", cause)
	if !Is(err, ErrPersistence) || !Is(err, cause) {
		t.Fatalf("expected both sentinel and cause in chain: %v", err)
	}
	if Persistence("noop", nil) != nil {
		t.Fatalf("nil error should stay nil")
	}
}

func TestReasonHidesErrorText(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{Contract("missing %s", "agentId"), ReasonInvalidInput},
		{fmt.Errorf("structuring: %w", ErrMalformedOutput), ReasonMalformedOutput},
		{fmt.Errorf("agent %s: %w", "x", ErrNotFound), ReasonNotFound},
		{ErrCanceled, ReasonCanceled},
		{Persistence("insert chunks", New("pq: password authentication failed for user admin")), ReasonStorage},
		{Transient("embed", context.DeadlineExceeded), ReasonTimeout},
		{Transient("generate", New("401 invalid api key sk-123")), ReasonProvider},
		{New("boom"), ReasonInternal},
	}
	for _, tc := range cases {
		got := Reason(tc.err)
		if got != tc.want {
			t.Fatalf("%v: want %s got %s", tc.err, tc.want, got)
		}
		if Describe(got) == "" || Describe(got) == tc.err.Error() {
			t.Fatalf("%v: describe %q", tc.err, Describe(got))
		}
	}
	if Reason(nil) != "" {
		t.Fatalf("nil error has no reason")
	}
	if Describe("unknown") != Describe(ReasonInternal) {
		t.Fatalf("unknown reason should read as internal")
	}
}
