package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Log attribute keys added by TracingHandler.
const (
	LogKeyTraceID = "trace_id"
	LogKeySpanID  = "span_id"
	LogKeyService = "service"
	LogKeyVersion = "version"
	LogKeyEnv     = "env"
	LogKeyMode    = "mode"
)

// NewLogger builds the CLI logger: a text or JSON handler on w, as chosen by
// cfg.LogJSON, wrapped in a TracingHandler.
func NewLogger(w io.Writer, cfg Config) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var inner slog.Handler = slog.NewTextHandler(w, handlerOpts)
	if cfg.LogJSON {
		inner = slog.NewJSONHandler(w, handlerOpts)
	}

	return slog.New(NewTracingHandler(inner, cfg))
}

// TracingHandler is an [slog.Handler] that adds the active span's trace_id
// and span_id to every record. Service metadata from the Config is attached
// once, before any group, so it stays at the top level.
type TracingHandler struct {
	slog.Handler
}

// NewTracingHandler wraps inner.
func NewTracingHandler(inner slog.Handler, cfg Config) *TracingHandler {
	attrs := []slog.Attr{
		slog.String(LogKeyService, cfg.ServiceName),
		slog.String(LogKeyMode, string(cfg.Mode)),
	}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, slog.String(LogKeyVersion, cfg.ServiceVersion))
	}

	if cfg.Environment != "" {
		attrs = append(attrs, slog.String(LogKeyEnv, cfg.Environment))
	}

	return &TracingHandler{Handler: inner.WithAttrs(attrs)}
}

// Handle adds the trace context, if any, and delegates.
func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(LogKeyTraceID, sc.TraceID().String()),
			slog.String(LogKeySpanID, sc.SpanID().String()),
		)
	}

	err := th.Handler.Handle(ctx, record)
	if err != nil {
		return fmt.Errorf("tracing handler: %w", err)
	}

	return nil
}

// WithAttrs keeps the wrapper around the derived handler.
func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{Handler: th.Handler.WithAttrs(attrs)}
}

// WithGroup keeps the wrapper around the derived handler.
func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{Handler: th.Handler.WithGroup(name)}
}
