package ctxutil

import (
	"context"
	"testing"
)

func TestLogFields(t *testing.T) {
	if got := LogFields(context.Background()); got != nil {
		t.Fatalf("bare context: %v", got)
	}
	ctx := WithTraceData(context.Background(), &TraceData{RequestID: "req-1"})
	got := LogFields(ctx)
	if len(got) != 2 || got[0] != "request_id" || got[1] != "req-1" {
		t.Fatalf("fields: %v", got)
	}
	ctx = WithTraceData(ctx, &TraceData{RequestID: "req-2", TraceID: "abc"})
	if got := LogFields(ctx); len(got) != 4 || got[3] != "abc" {
		t.Fatalf("fields: %v", got)
	}
}
