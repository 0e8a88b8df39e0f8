// Package commands implements the ordtree CLI subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Sumatoshi-tech/ordtree/pkg/config"
	"github.com/Sumatoshi-tech/ordtree/pkg/observability"
	"github.com/Sumatoshi-tech/ordtree/pkg/rbtree"
	"github.com/Sumatoshi-tech/ordtree/pkg/version"
)

// Globals holds the persistent flags shared by every subcommand.
type Globals struct {
	ConfigPath string
	Verbose    bool
	LogJSON    bool
}

// Bind registers the global flags on the root command.
func (globals *Globals) Bind(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.StringVar(&globals.ConfigPath, "config", "", "Config file (default: ./ordtree.yaml, ~/.config/ordtree, /etc/ordtree)")
	flags.BoolVarP(&globals.Verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVar(&globals.LogJSON, "log-json", false, "Emit logs as JSON")
}

// session is the configuration and telemetry of one command invocation.
type session struct {
	cfg       *config.Config
	providers observability.Providers
	logger    *slog.Logger
}

// start loads the configuration and initializes telemetry. Extra metric
// readers, e.g. a Prometheus exporter, are attached to the meter provider.
func (globals *Globals) start(readers ...sdkmetric.Reader) (*session, error) {
	cfg, err := config.LoadConfig(globals.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	providers, err := observability.Init(globals.observabilityConfig(cfg, readers))
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	return &session{cfg: cfg, providers: providers, logger: providers.Logger}, nil
}

func (globals *Globals) observabilityConfig(cfg *config.Config, readers []sdkmetric.Reader) observability.Config {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Environment = cfg.Telemetry.Environment
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	obsCfg.LogLevel = observability.ParseLevel(cfg.Logging.Level)
	obsCfg.LogJSON = globals.LogJSON || cfg.Logging.Format == config.FormatJSON
	obsCfg.MetricReaders = readers

	if cfg.Telemetry.ServiceName != "" {
		obsCfg.ServiceName = cfg.Telemetry.ServiceName
	}

	if globals.Verbose {
		obsCfg.LogLevel = slog.LevelDebug
	}

	if len(readers) > 0 {
		obsCfg.Mode = observability.ModeServe
	}

	return obsCfg
}

// close flushes telemetry. Failures are logged, not returned.
func (sess *session) close() {
	err := sess.providers.Shutdown(context.Background())
	if err != nil {
		sess.logger.Warn("telemetry shutdown failed", "error", err)
	}
}

// newAllocator builds an arena sized by the arena section of the config.
func newAllocator[K, V any](cfg *config.Config) (*rbtree.Allocator[K, V], error) {
	limit, err := cfg.Arena.NodeLimit(rbtree.NodeSize[K, V]())
	if err != nil {
		return nil, fmt.Errorf("arena limit: %w", err)
	}

	return rbtree.NewAllocator[K, V](
		rbtree.WithNodeLimit(limit),
		rbtree.WithHibernationThreshold(cfg.Arena.HibernationThreshold),
	), nil
}
