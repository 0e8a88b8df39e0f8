package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	metricsPath = "/metrics"

	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// NewPrometheusReader creates a Prometheus exporter to be passed to Init via
// Config.MetricReaders, and the [http.Handler] serving its scrape endpoint.
// Each call creates an independent Prometheus registry to avoid collector
// conflicts when called multiple times.
func NewPrometheusReader() (sdkmetric.Reader, http.Handler, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return exporter, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// ServeMetrics serves handler on addr under /metrics, with a span per
// scrape, next to /healthz and a /readyz running checks, until ctx is
// canceled. Listen errors are returned immediately.
func ServeMetrics(
	ctx context.Context, addr string, handler http.Handler, tracer trace.Tracer, logger *slog.Logger, checks ...ReadyCheck,
) error {
	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, ScrapeMiddleware(tracer, logger, handler))
	mux.Handle(healthPath, HealthHandler())
	mux.Handle(readyPath, ReadyHandler(checks...))

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- server.Serve(listener)
	}()

	logger.InfoContext(ctx, "serving metrics", slog.String("addr", listener.Addr().String()), slog.String("path", metricsPath))

	select {
	case err = <-errCh:
		return fmt.Errorf("serve metrics: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}

	return nil
}
