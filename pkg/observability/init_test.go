package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/ordtree/pkg/observability"
)

func TestInit_NoopWhenNoEndpoint(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	require.NotNil(t, providers.Tracer)
	require.NotNil(t, providers.Meter)
	require.NotNil(t, providers.Logger)

	ctx, span := providers.Tracer.Start(context.Background(), "insert")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	providers.Logger.InfoContext(ctx, "noop span")

	// Shutdown twice must stay harmless.
	require.NoError(t, providers.Shutdown(context.Background()))
	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestInit_MetricReaderReceivesMeasurements(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()

	cfg := observability.DefaultConfig()
	cfg.MetricReaders = []sdkmetric.Reader{reader}

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	counter, err := providers.Meter.Int64Counter("ordtree.test.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)
}

func TestBuildResource(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = "1.2.3"
	cfg.Environment = "test"
	cfg.Mode = observability.ModeServe

	res, err := observability.ProbeBuildResource(cfg)
	require.NoError(t, err)

	attrs := map[string]string{}
	for _, attr := range res.Attributes() {
		attrs[string(attr.Key)] = attr.Value.Emit()
	}

	assert.Equal(t, "ordtree", attrs["service.name"])
	assert.Equal(t, "1.2.3", attrs["service.version"])
	assert.Equal(t, "test", attrs["deployment.environment"])
	assert.Equal(t, "serve", attrs["app.mode"])
	assert.NotEmpty(t, attrs["process.runtime.name"])
}

func TestParseOTLPHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{"empty", "", nil},
		{"single", "key=value", map[string]string{"key": "value"}},
		{"multiple", "k1=v1,k2=v2", map[string]string{"k1": "v1", "k2": "v2"}},
		{"spaces", " k1 = v1 , k2 = v2 ", map[string]string{"k1": "v1", "k2": "v2"}},
		{"no_equals", "invalid", nil},
		{"value with equals", "auth=a=b", map[string]string{"auth": "a=b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, observability.ParseOTLPHeaders(tt.input))
		})
	}
}

// Sampler tests set process env vars and cannot run in parallel.
func TestSelectSampler_Env(t *testing.T) {
	tests := []struct {
		sampler string
		arg     string
		debug   bool
		want    bool
	}{
		{sampler: "always_on", want: true},
		{sampler: "always_off", want: false},
		{sampler: "traceidratio", arg: "1.0", want: true},
		{sampler: "traceidratio", arg: "0", want: false},
		{sampler: "parentbased_always_on", want: true},
		{sampler: "parentbased_always_off", want: false},
		{sampler: "parentbased_traceidratio", arg: "bogus", want: true},
		{sampler: "unknown", want: true},
		{sampler: "always_off", debug: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.sampler+"/"+tt.arg, func(t *testing.T) {
			t.Setenv("OTEL_TRACES_SAMPLER", tt.sampler)
			t.Setenv("OTEL_TRACES_SAMPLER_ARG", tt.arg)

			cfg := observability.DefaultConfig()
			cfg.DebugTrace = tt.debug

			assert.Equal(t, tt.want, observability.ProbeSamplerSpan(cfg))
		})
	}
}

func TestSelectSampler_Config(t *testing.T) {
	t.Parallel()

	assert.True(t, observability.ProbeSamplerSpan(observability.DefaultConfig()))

	cfg := observability.DefaultConfig()
	cfg.SampleRatio = 1.0
	assert.True(t, observability.ProbeSamplerSpan(cfg))
}
