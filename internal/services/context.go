package services

import "context"

type contextKey string

const (
	jobIDKey     contextKey = "job_id"
	parentIDKey  contextKey = "parent_id"
	requestIDKey contextKey = "request_id"
)

// WithJobID annotates context with the job identifier being processed.
func WithJobID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the job identifier if present.
func JobIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(jobIDKey)
	if v == nil {
		return 0, false
	}
	if val, ok := v.(int64); ok {
		return val, true
	}
	return 0, false
}

// WithParentID annotates context with the parent job identifier.
func WithParentID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, parentIDKey, id)
}

// ParentIDFromContext extracts the parent job identifier if present.
func ParentIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(parentIDKey)
	if v == nil {
		return 0, false
	}
	if val, ok := v.(int64); ok {
		return val, true
	}
	return 0, false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(requestIDKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}
