package observability

import (
	"context"
	"io"
	"log/slog"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// LoggerOptions control handler construction.
type LoggerOptions struct {
	JSON    bool
	Level   slog.Level
	Service string
}

func NewLogger(opts LoggerOptions, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: opts.Level})
	} else {
		handler = slog.NewTextHandler(writer, &slog.HandlerOptions{Level: opts.Level})
	}
	logger := slog.New(handler)
	if opts.Service != "" {
		logger = logger.With(slog.String("service", opts.Service))
	}
	return logger
}

func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	value, ok := ctx.Value(requestIDKey).(string)
	if !ok {
		return ""
	}
	return value
}
