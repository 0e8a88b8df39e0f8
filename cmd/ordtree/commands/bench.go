package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Sumatoshi-tech/ordtree/pkg/config"
	"github.com/Sumatoshi-tech/ordtree/pkg/observability"
	"github.com/Sumatoshi-tech/ordtree/pkg/rbtree"
	"github.com/Sumatoshi-tech/ordtree/pkg/report"
)

// plotSamples is the number of height samples taken for --plot.
const plotSamples = 64

// ErrInvariantViolated is returned when a tree fails validation.
var ErrInvariantViolated = errors.New("red-black invariant violated")

type prometheusEndpoint struct {
	handler http.Handler
	addr    string
}

// BenchCommand holds the flags of `ordtree bench`.
type BenchCommand struct {
	globals     *Globals
	order       string
	plotPath    string
	metricsAddr string
	format      string
	keys        int
	deleteRatio float64
	seed        int64
	hibernate   bool

	// notify derives the context that stops the metrics server.
	notify func(ctx context.Context) (context.Context, context.CancelFunc)
}

// NewBenchCommand creates the bench subcommand.
func NewBenchCommand(globals *Globals) *cobra.Command {
	return newBenchCommand(globals, func(ctx context.Context) (context.Context, context.CancelFunc) {
		return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	})
}

func newBenchCommand(globals *Globals, notify func(context.Context) (context.Context, context.CancelFunc)) *cobra.Command {
	bc := &BenchCommand{globals: globals, notify: notify}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run an insert/delete workload and report balance",
		Long: `Insert a configurable number of integer keys in random, ascending or
descending order, optionally delete a share of them, look every key up
again, validate every
red-black invariant and report height, rotations and arena usage.

Flags override the bench section of the config file.`,
		Args: cobra.NoArgs,
		RunE: bc.run,
	}

	cmd.Flags().IntVarP(&bc.keys, "keys", "n", config.DefaultBenchKeys, "Number of keys to insert")
	cmd.Flags().StringVar(&bc.order, "order", config.DefaultBenchOrder, "Insertion order: random, ascending, descending")
	cmd.Flags().Float64Var(&bc.deleteRatio, "delete-ratio", config.DefaultBenchDeleteRatio, "Share of keys deleted after insertion")
	cmd.Flags().Int64Var(&bc.seed, "seed", config.DefaultBenchSeed, "Random seed")
	cmd.Flags().BoolVar(&bc.hibernate, "hibernate", config.DefaultBenchHibernate, "Hibernate and boot the arena before validation")
	cmd.Flags().StringVar(&bc.plotPath, "plot", "", "Write an HTML chart of height against size to this file")
	cmd.Flags().StringVar(&bc.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address until interrupted")
	cmd.Flags().StringVar(&bc.format, "format", string(report.FormatTable), "Output format: table, yaml, json")

	return cmd
}

// applyFlags copies explicitly set flags over the bench config.
func (bc *BenchCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("keys") {
		cfg.Bench.Keys = bc.keys
	}

	if flags.Changed("order") {
		cfg.Bench.Order = bc.order
	}

	if flags.Changed("delete-ratio") {
		cfg.Bench.DeleteRatio = bc.deleteRatio
	}

	if flags.Changed("seed") {
		cfg.Bench.Seed = bc.seed
	}

	if flags.Changed("hibernate") {
		cfg.Bench.Hibernate = bc.hibernate
	}

	return cfg.Validate()
}

func (bc *BenchCommand) run(cmd *cobra.Command, _ []string) error {
	format, err := report.ParseFormat(bc.format)
	if err != nil {
		return err
	}

	var (
		readers []sdkmetric.Reader
		scrape  *prometheusEndpoint
	)

	if bc.metricsAddr != "" {
		reader, promHandler, promErr := observability.NewPrometheusReader()
		if promErr != nil {
			return promErr
		}

		readers = append(readers, reader)
		scrape = &prometheusEndpoint{addr: bc.metricsAddr, handler: promHandler}
	}

	sess, err := bc.globals.start(readers...)
	if err != nil {
		return err
	}
	defer sess.close()

	err = bc.applyFlags(cmd, sess.cfg)
	if err != nil {
		return fmt.Errorf("invalid bench flags: %w", err)
	}

	holder := &observability.StatsHolder{}

	metrics, err := observability.NewTreeMetrics(sess.providers.Meter, holder)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := metrics.Close()
		if closeErr != nil {
			sess.logger.Warn("close tree metrics", "error", closeErr)
		}
	}()

	ctx, span := sess.providers.Tracer.Start(cmd.Context(), "ordtree.bench")
	result, err := runWorkload(ctx, sess, sess.cfg.Bench, metrics, bc.plotPath != "")
	span.End()

	if err != nil {
		return err
	}

	holder.Store(result.stats)

	summary := report.NewSummary(result.stats, rbtree.NodeSize[int64, struct{}](), nil)

	err = report.Write(cmd.OutOrStdout(), format, summary)
	if err != nil {
		return err
	}

	if bc.plotPath != "" {
		err = bc.writePlot(sess.cfg.Bench, result.samples)
		if err != nil {
			return err
		}

		sess.logger.InfoContext(ctx, "height plot written", "path", bc.plotPath)
	}

	if scrape == nil {
		return nil
	}

	serveCtx, stop := bc.notify(cmd.Context())
	defer stop()

	return observability.ServeMetrics(serveCtx, scrape.addr, scrape.handler, sess.providers.Tracer, sess.logger, holder.Ready)
}

func (bc *BenchCommand) writePlot(bench config.BenchConfig, samples []report.HeightSample) error {
	file, err := os.Create(bc.plotPath)
	if err != nil {
		return fmt.Errorf("create plot: %w", err)
	}

	title := fmt.Sprintf("Height after %s insertion of %s keys", bench.Order, humanize.Comma(int64(bench.Keys)))

	err = report.HeightPlot(file, title, samples)
	if err != nil {
		file.Close()

		return err
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("close plot: %w", err)
	}

	return nil
}
