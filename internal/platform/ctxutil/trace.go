// Package ctxutil carries request identity from the HTTP edge into the
// pipeline code that logs on its behalf.
package ctxutil

import "context"

type traceDataKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// LogFields renders td as logger key/value pairs, skipping empty ids.
func LogFields(ctx context.Context) []interface{} {
	td := GetTraceData(ctx)
	if td == nil {
		return nil
	}
	var out []interface{}
	if td.RequestID != "" {
		out = append(out, "request_id", td.RequestID)
	}
	if td.TraceID != "" {
		out = append(out, "trace_id", td.TraceID)
	}
	return out
}
