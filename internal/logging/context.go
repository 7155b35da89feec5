package logging

import (
	"context"
	"log/slog"

	"emotrack/internal/services"
)

const (
	// FieldComponent is the structured logging key for component names.
	FieldComponent = "component"
	// FieldSessionID is the structured logging key for recording session identifiers.
	FieldSessionID = "session_id"
	// FieldCycle is the structured logging key for capture cycle numbers.
	FieldCycle = "cycle"
	// FieldService is the structured logging key for external service names.
	FieldService = "service"
	// FieldCorrelationID is the structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldKeyIndex is the zero-based index of the credential in use.
	FieldKeyIndex = "key_index"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.SessionIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSessionID, id))
	}
	if cycle, ok := services.CycleFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldCycle, cycle))
	}
	if svc, ok := services.ServiceFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldService, svc))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
