package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// scrapeRecorder captures the status and body size of a scrape response.
type scrapeRecorder struct {
	http.ResponseWriter

	status int
	size   int
}

func (rec *scrapeRecorder) WriteHeader(code int) {
	if rec.status == 0 {
		rec.status = code
	}

	rec.ResponseWriter.WriteHeader(code)
}

func (rec *scrapeRecorder) Write(buf []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}

	n, err := rec.ResponseWriter.Write(buf)
	rec.size += n

	if err != nil {
		return n, fmt.Errorf("write scrape response: %w", err)
	}

	return n, nil
}

// ScrapeMiddleware wraps a metrics handler with one server span and one
// debug log line per scrape. Span names are "METHOD /path"; an incoming W3C
// traceparent becomes the span's parent.
func ScrapeMiddleware(tracer trace.Tracer, logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		started := time.Now()
		parentCtx := otel.GetTextMapPropagator().Extract(hr.Context(), propagation.HeaderCarrier(hr.Header))

		ctx, span := tracer.Start(parentCtx, hr.Method+" "+hr.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(hr.Method),
				attribute.String("url.path", hr.URL.Path),
			),
		)
		defer span.End()

		rec := &scrapeRecorder{ResponseWriter: rw}
		next.ServeHTTP(rec, hr.WithContext(ctx))

		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		span.SetAttributes(
			semconv.HTTPResponseStatusCode(rec.status),
			attribute.Int("http.response.body.size", rec.size),
		)

		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}

		logger.DebugContext(ctx, "metrics scraped",
			slog.String("remote", hr.RemoteAddr),
			slog.Int("status", rec.status),
			slog.Int("bytes", rec.size),
			slog.Duration("elapsed", time.Since(started)),
		)
	})
}
