package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	dayDateKey
	partitionKey
)

// WithRequestID annotates ctx with a build request identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// WithDayDate annotates ctx with the day date and partition being built.
func WithDayDate(ctx context.Context, dayDate, partition string) context.Context {
	if dayDate != "" {
		ctx = context.WithValue(ctx, dayDateKey, dayDate)
	}
	if partition != "" {
		ctx = context.WithValue(ctx, partitionKey, partition)
	}
	return ctx
}

// RequestIDFromContext returns the request identifier stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}

// ContextFields extracts the standard attributes stored on ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRequestID, id))
	}
	if v, ok := ctx.Value(dayDateKey).(string); ok {
		fields = append(fields, slog.String(FieldDayDate, v))
	}
	if v, ok := ctx.Value(partitionKey).(string); ok {
		fields = append(fields, slog.String(FieldPartition, v))
	}
	return fields
}

// WithContext returns logger augmented with the fields carried by ctx.
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
