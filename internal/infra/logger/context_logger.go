package logger

import (
	"context"
	"log/slog"
)

type ContextKey string

// Business context keys propagated through request contexts so every log
// line of one question can be correlated.
const (
	RequestIDKey ContextKey = "qa.request.id"
	ProviderKey  ContextKey = "qa.provider"
	StageKey     ContextKey = "qa.stage"
)

// ContextLogger derives request-scoped loggers from context values.
type ContextLogger struct {
	logger      *slog.Logger
	serviceName string
}

// NewContextLogger creates a context-aware logger on top of base. A nil
// base falls back to the package default.
func NewContextLogger(serviceName string, base *slog.Logger) *ContextLogger {
	if base == nil {
		base = New()
	}
	return &ContextLogger{
		logger:      base,
		serviceName: serviceName,
	}
}

// WithContext returns a logger carrying the service name and any business
// context values present on ctx as fields.
func (cl *ContextLogger) WithContext(ctx context.Context) *slog.Logger {
	logger := cl.logger.With("service", cl.serviceName)

	var fields []any

	if requestID := ctx.Value(RequestIDKey); requestID != nil {
		fields = append(fields, string(RequestIDKey), requestID)
	}
	if provider := ctx.Value(ProviderKey); provider != nil {
		fields = append(fields, string(ProviderKey), provider)
	}
	if stage := ctx.Value(StageKey); stage != nil {
		fields = append(fields, string(StageKey), stage)
	}

	if len(fields) > 0 {
		logger = logger.With(fields...)
	}

	return logger
}

// WithRequestID adds the transport request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithProvider adds the provider tag to the context.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, ProviderKey, provider)
}

// WithStage adds the pipeline stage name to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, StageKey, stage)
}
