// Package httputil holds small cross-cutting HTTP helpers shared by the
// middleware and handlers, adapted from the teacher's internal/utils
// request-id/respond helpers (internal/utils/http_utils.go).
package httputil

import "context"

type contextKey string

// TraceIDKey is the context key the request-logging middleware stores the
// generated trace id under (spec §4.9 "Trace id").
const TraceIDKey contextKey = "trace_id"

// TraceID retrieves the trace id from ctx, returning "" if absent.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(TraceIDKey).(string)
	return id
}
