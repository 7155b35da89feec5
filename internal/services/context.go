package services

import "context"

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	cycleKey     contextKey = "cycle"
	serviceKey   contextKey = "service"
	requestIDKey contextKey = "request_id"
)

// WithSessionID annotates context with the recording session identifier.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext extracts the recording session identifier if present.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(sessionIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithCycle annotates context with the capture cycle number.
func WithCycle(ctx context.Context, cycle int64) context.Context {
	return context.WithValue(ctx, cycleKey, cycle)
}

// CycleFromContext extracts the capture cycle number if present.
func CycleFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(cycleKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithService annotates context with the external service name (inference, generation).
func WithService(ctx context.Context, service string) context.Context {
	if service == "" {
		return ctx
	}
	return context.WithValue(ctx, serviceKey, service)
}

// ServiceFromContext returns the external service name if present.
func ServiceFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(serviceKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
