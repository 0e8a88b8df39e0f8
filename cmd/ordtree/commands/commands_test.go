//nolint:testpackage // Tests reach the unexported workload and oracle helpers.
package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/ordtree/pkg/config"
	"github.com/Sumatoshi-tech/ordtree/pkg/observability"
	"github.com/Sumatoshi-tech/ordtree/pkg/rbtree"
	"github.com/Sumatoshi-tech/ordtree/pkg/report"
)

const (
	testConfig = `logging:
  level: error
arena:
  hibernation_threshold: 0
`

	testBenchKeys = 500
)

func testGlobals(t *testing.T, content string) *Globals {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ordtree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return &Globals{ConfigPath: path}
}

func execute(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func decodeSummary(t *testing.T, out string) report.Summary {
	t.Helper()

	var summary report.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary), out)

	return summary
}

func TestInsertArgs(t *testing.T) {
	t.Parallel()

	out, err := execute(t, NewInsertCommand(testGlobals(t, testConfig)), "", "--format", "json", "5", "3", "8", "1")
	require.NoError(t, err)

	summary := decodeSummary(t, out)
	assert.Equal(t, []string{"1", "3", "5", "8"}, summary.Traversal)
	assert.Equal(t, 4, summary.Size)
	assert.LessOrEqual(t, summary.Height, summary.HeightBound)
	assert.Equal(t, uint64(4), summary.Inserts)
}

func TestInsertOrderings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "string", args: nil, want: []string{"10", "100", "9"}},
		{name: "numeric", args: []string{"--numeric"}, want: []string{"9", "10", "100"}},
		{name: "numeric reverse", args: []string{"--numeric", "--reverse"}, want: []string{"100", "10", "9"}},
		{name: "string reverse", args: []string{"--reverse"}, want: []string{"9", "100", "10"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			args := append([]string{"--format", "json", "10", "9", "100"}, tt.args...)

			out, err := execute(t, NewInsertCommand(testGlobals(t, testConfig)), "", args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, decodeSummary(t, out).Traversal)
		})
	}
}

func TestInsertStdin(t *testing.T) {
	t.Parallel()

	out, err := execute(t, NewInsertCommand(testGlobals(t, testConfig)), "b\n\n  a\nc\n", "--format", "json", "-", "d")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, decodeSummary(t, out).Traversal)
}

func TestInsertDuplicates(t *testing.T) {
	t.Parallel()

	out, err := execute(t, NewInsertCommand(testGlobals(t, testConfig)), "", "--format", "json", "a", "a", "b")
	require.NoError(t, err)

	summary := decodeSummary(t, out)
	assert.Equal(t, 2, summary.Size)
	assert.Equal(t, uint64(1), summary.Duplicates)
}

func TestInsertTable(t *testing.T) {
	t.Parallel()

	out, err := execute(t, NewInsertCommand(testGlobals(t, testConfig)), "", "7", "1", "2", "3", "4", "5", "6")
	require.NoError(t, err)
	assert.Contains(t, out, "1 2 3 4 5 6 7")
}

func TestInsertErrors(t *testing.T) {
	t.Parallel()

	_, err := execute(t, NewInsertCommand(testGlobals(t, testConfig)), "")
	require.ErrorIs(t, err, ErrNoKeys)

	_, err = execute(t, NewInsertCommand(testGlobals(t, testConfig)), "", "--numeric", "12", "twelve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "twelve")

	_, err = execute(t, NewInsertCommand(testGlobals(t, testConfig)), "", "--format", "xml", "1")
	require.ErrorIs(t, err, report.ErrUnknownFormat)
}

func TestInsertArenaLimit(t *testing.T) {
	t.Parallel()

	// Room for the sentinel and two nodes.
	content := fmt.Sprintf("arena:\n  max_bytes: \"%d\"\n", 3*rbtree.NodeSize[string, string]())

	_, err := execute(t, NewInsertCommand(testGlobals(t, content)), "", "a", "b")
	require.NoError(t, err)

	_, err = execute(t, NewInsertCommand(testGlobals(t, content)), "", "a", "b", "c")
	require.ErrorIs(t, err, rbtree.ErrArenaExhausted)
}

func TestInsertBatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{
			name: "numeric",
			doc: `{"ordering": "numeric", "ops": [
				{"op": "insert", "key": 30}, {"op": "insert", "key": 4},
				{"op": "insert", "key": 200}, {"op": "delete", "key": 30},
				{"op": "delete", "key": 5}]}`,
			want: []string{"4", "200"},
		},
		{
			name: "string",
			doc: `{"ops": [
				{"op": "insert", "key": "30", "value": "x"}, {"op": "insert", "key": "4"},
				{"op": "insert", "key": "200"}]}`,
			want: []string{"200", "30", "4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "ops.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.doc), 0o600))

			out, err := execute(t, NewInsertCommand(testGlobals(t, testConfig)), "", "--format", "json", "--batch", path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, decodeSummary(t, out).Traversal)
		})
	}
}

func TestInsertBatchInvalid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ops.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ops": [{"op": "upsert", "key": "a"}]}`), 0o600))

	_, err := execute(t, NewInsertCommand(testGlobals(t, testConfig)), "", "--batch", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)

	_, err = execute(t, NewInsertCommand(testGlobals(t, testConfig)), "", "--batch", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestBenchKeys(t *testing.T) {
	t.Parallel()

	bench := config.BenchConfig{Keys: 100, Order: config.OrderAscending, DeleteRatio: 0.25, Seed: 7}

	inserts, deletes := benchKeys(bench)
	assert.True(t, slices.IsSorted(inserts))
	assert.Len(t, deletes, 25)

	bench.Order = config.OrderDescending
	inserts, _ = benchKeys(bench)
	assert.Equal(t, int64(99), inserts[0])

	bench.Order = config.OrderRandom
	inserts, _ = benchKeys(bench)
	again, _ := benchKeys(bench)
	assert.Equal(t, inserts, again)
	assert.False(t, slices.IsSorted(inserts))

	slices.Sort(inserts)
	assert.Equal(t, int64(0), inserts[0])
	assert.Equal(t, int64(99), inserts[99])
	assert.Len(t, slices.Compact(inserts), 100)
}

func TestBench(t *testing.T) {
	t.Parallel()

	for _, order := range []string{config.OrderRandom, config.OrderAscending, config.OrderDescending} {
		t.Run(order, func(t *testing.T) {
			t.Parallel()

			out, err := execute(t, NewBenchCommand(testGlobals(t, testConfig)), "",
				"--format", "json", "--keys", fmt.Sprint(testBenchKeys), "--order", order, "--delete-ratio", "0.5")
			require.NoError(t, err)

			summary := decodeSummary(t, out)
			assert.Equal(t, testBenchKeys/2, summary.Size)
			assert.Equal(t, uint64(testBenchKeys), summary.Inserts)
			assert.Equal(t, uint64(testBenchKeys/2), summary.Deletes)
			assert.LessOrEqual(t, summary.Height, summary.HeightBound)
			assert.Empty(t, summary.Traversal)
		})
	}
}

func TestRunWorkloadLooksUpKeys(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(testGlobals(t, testConfig).ConfigPath)
	require.NoError(t, err)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observability.NewTreeMetrics(provider.Meter("test"), &observability.StatsHolder{})
	require.NoError(t, err)

	sess := &session{cfg: cfg, logger: slog.New(slog.DiscardHandler)}
	bench := config.BenchConfig{Keys: 200, Order: config.OrderRandom, DeleteRatio: 0.25, Seed: 3}

	result, err := runWorkload(context.Background(), sess, bench, metrics, false)
	require.NoError(t, err)
	assert.Equal(t, 150, result.found)
	assert.Equal(t, 50, result.missing)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	searches := map[string]int64{}

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if m.Name != "ordtree.ops.total" || !ok {
				continue
			}

			for _, point := range sum.DataPoints {
				op, _ := point.Attributes.Value("op")
				status, _ := point.Attributes.Value("status")

				if op.AsString() == observability.OpSearch {
					searches[status.AsString()] = point.Value
				}
			}
		}
	}

	assert.Equal(t, map[string]int64{observability.StatusFound: 150, observability.StatusMissing: 50}, searches)
}

func TestBenchHibernateAndPlot(t *testing.T) {
	t.Parallel()

	plot := filepath.Join(t.TempDir(), "height.html")

	out, err := execute(t, NewBenchCommand(testGlobals(t, testConfig)), "",
		"--keys", fmt.Sprint(testBenchKeys), "--hibernate", "--plot", plot)
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprint(testBenchKeys))

	page, err := os.ReadFile(plot)
	require.NoError(t, err)
	assert.Contains(t, string(page), "echarts")
}

func TestBenchInvalidFlags(t *testing.T) {
	t.Parallel()

	_, err := execute(t, NewBenchCommand(testGlobals(t, testConfig)), "", "--order", "sideways")
	require.ErrorIs(t, err, config.ErrInvalidOrder)

	_, err = execute(t, NewBenchCommand(testGlobals(t, testConfig)), "", "--delete-ratio", "1.5")
	require.ErrorIs(t, err, config.ErrInvalidDeleteRatio)
}

func TestBenchServesMetricsUntilCanceled(t *testing.T) {
	t.Parallel()

	canceled := func(ctx context.Context) (context.Context, context.CancelFunc) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()

		return ctx, cancel
	}

	cmd := newBenchCommand(testGlobals(t, testConfig), canceled)

	_, err := execute(t, cmd, "", "--keys", "64", "--metrics-addr", "127.0.0.1:0")
	require.NoError(t, err)
}

func TestVerifyPass(t *testing.T) {
	t.Parallel()

	out, err := execute(t, NewVerifyCommand(testGlobals(t, testConfig)), "",
		"--rounds", "3", "--ops", "400", "--key-space", "60", "--seed", "11")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS 3 rounds of 400 ops")
}

func TestVerifyHibernatesWithDefaultThreshold(t *testing.T) {
	t.Parallel()

	out, err := execute(t, NewVerifyCommand(testGlobals(t, "logging:\n  level: error\n")), "",
		"--rounds", "2", "--ops", "300", "--key-space", "100", "--seed", "5")
	require.NoError(t, err)
	assert.NotContains(t, out, "was not compressed")
	assert.Contains(t, out, "PASS 2 rounds of 300 ops")
}

func TestHibernateRound(t *testing.T) {
	t.Parallel()

	allocator := rbtree.NewAllocator[int, struct{}](rbtree.WithHibernationThreshold(config.DefaultArenaHibernationThreshold))
	tree := rbtree.NewSet[int](rbtree.WithAllocator(allocator))

	for key := range 50 {
		_, _, err := tree.Insert(key*3, struct{}{})
		require.NoError(t, err)
	}

	require.Less(t, allocator.Size(), config.DefaultArenaHibernationThreshold)

	compressed, err := hibernateRound(allocator)
	require.NoError(t, err)
	assert.True(t, compressed)
	assert.False(t, allocator.Hibernated())
	assert.Equal(t, config.DefaultArenaHibernationThreshold, allocator.HibernationThreshold)

	require.NoError(t, tree.Validate())
	assert.Equal(t, 50, tree.Len())
	assert.True(t, tree.Contains(147))
}

func TestVerifyInvalidFlags(t *testing.T) {
	t.Parallel()

	_, err := execute(t, NewVerifyCommand(testGlobals(t, testConfig)), "", "--key-space", "0")
	require.ErrorIs(t, err, config.ErrInvalidKeySpace)
}

func TestTraversalMatches(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	assert.True(t, traversalMatches(&out, "same", []int{1, 2, 3}, []int{1, 2, 3}, 1))
	assert.Empty(t, out.String())

	assert.False(t, traversalMatches(&out, "seed 1 tree forward", []int{1, 2, 3}, []int{1, 3, 4}, 1))
	assert.Contains(t, out.String(), "seed 1 tree forward: traversal differs from oracle")
	assert.Contains(t, out.String(), "- 2")
	assert.Contains(t, out.String(), "+ 4")
}

func TestSortedOracle(t *testing.T) {
	t.Parallel()

	orc := &sortedOracle{}
	assert.True(t, orc.insert(5))
	assert.True(t, orc.insert(1))
	assert.False(t, orc.insert(5))
	assert.True(t, orc.insert(3))
	assert.Equal(t, []int{1, 3, 5}, orc.keys)

	assert.True(t, orc.delete(3))
	assert.False(t, orc.delete(3))
	assert.Equal(t, []int{1, 5}, orc.keys)
}

func TestObservabilityConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Logging:   config.LoggingConfig{Level: "warn", Format: config.FormatText},
		Telemetry: config.TelemetryConfig{ServiceName: "bench-host", SampleRatio: 0.5},
	}

	obsCfg := (&Globals{}).observabilityConfig(cfg, nil)
	assert.Equal(t, slog.LevelWarn, obsCfg.LogLevel)
	assert.False(t, obsCfg.LogJSON)
	assert.Equal(t, "bench-host", obsCfg.ServiceName)
	assert.Equal(t, observability.ModeCLI, obsCfg.Mode)
	assert.InDelta(t, 0.5, obsCfg.SampleRatio, 1e-9)

	reader, _, err := observability.NewPrometheusReader()
	require.NoError(t, err)

	obsCfg = (&Globals{Verbose: true, LogJSON: true}).observabilityConfig(cfg, []sdkmetric.Reader{reader})
	assert.Equal(t, slog.LevelDebug, obsCfg.LogLevel)
	assert.True(t, obsCfg.LogJSON)
	assert.Equal(t, observability.ModeServe, obsCfg.Mode)
}
