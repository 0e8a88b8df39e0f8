// Package config provides configuration loading and validation for the ordtree CLI.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidMaxBytes    = errors.New("invalid arena max bytes")
	ErrInvalidThreshold   = errors.New("hibernation threshold must not be negative")
	ErrInvalidKeys        = errors.New("bench keys must be positive")
	ErrInvalidOrder       = errors.New("unknown insertion order")
	ErrInvalidDeleteRatio = errors.New("delete ratio must be within [0, 1]")
	ErrInvalidRounds      = errors.New("verify rounds must be positive")
	ErrInvalidKeySpace    = errors.New("verify key space must be positive")
	ErrInvalidLogFormat   = errors.New("unknown log format")
	ErrInvalidSampleRatio = errors.New("sample ratio must be within [0, 1]")
)

// Insertion orders of the bench workload.
const (
	OrderRandom     = "random"
	OrderAscending  = "ascending"
	OrderDescending = "descending"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// EnvPrefix prefixes every environment override, e.g. ORDTREE_BENCH_KEYS.
const EnvPrefix = "ORDTREE"

// Config holds all configuration for the ordtree CLI.
type Config struct {
	Arena     ArenaConfig     `mapstructure:"arena"`
	Bench     BenchConfig     `mapstructure:"bench"`
	Verify    VerifyConfig    `mapstructure:"verify"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ArenaConfig holds node arena limits.
type ArenaConfig struct {
	// MaxBytes is a human readable size such as "64MB". "0" means unlimited.
	MaxBytes             string `mapstructure:"max_bytes"`
	HibernationThreshold int    `mapstructure:"hibernation_threshold"`
}

// BenchConfig describes the workload of `ordtree bench`.
type BenchConfig struct {
	Order       string  `mapstructure:"order"`
	DeleteRatio float64 `mapstructure:"delete_ratio"`
	Keys        int     `mapstructure:"keys"`
	Seed        int64   `mapstructure:"seed"`
	Hibernate   bool    `mapstructure:"hibernate"`
}

// VerifyConfig describes the randomized rounds of `ordtree verify`.
type VerifyConfig struct {
	Rounds      int   `mapstructure:"rounds"`
	OpsPerRound int   `mapstructure:"ops_per_round"`
	KeySpace    int   `mapstructure:"key_space"`
	Seed        int64 `mapstructure:"seed"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry settings. An empty OTLPEndpoint
// disables export.
type TelemetryConfig struct {
	ServiceName  string  `mapstructure:"service_name"`
	Environment  string  `mapstructure:"environment"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
}

// MaxBytesValue parses Arena.MaxBytes.
func (arena ArenaConfig) MaxBytesValue() (uint64, error) {
	if arena.MaxBytes == "" {
		return 0, nil
	}

	size, err := humanize.ParseBytes(arena.MaxBytes)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidMaxBytes, arena.MaxBytes, err)
	}

	return size, nil
}

// NodeLimit converts Arena.MaxBytes into a node count for slots of
// nodeSize bytes. Zero means unlimited.
func (arena ArenaConfig) NodeLimit(nodeSize int) (int, error) {
	maxBytes, err := arena.MaxBytesValue()
	if err != nil {
		return 0, err
	}

	if maxBytes == 0 || nodeSize <= 0 {
		return 0, nil
	}

	// The sentinel slot is part of the budget.
	slots := maxBytes / uint64(nodeSize)
	if slots < 2 {
		return 0, fmt.Errorf("%w: %s holds no node of %d bytes", ErrInvalidMaxBytes, arena.MaxBytes, nodeSize)
	}

	return int(min(slots-1, uint64(math.MaxInt))), nil
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	// Set defaults.
	setDefaults(viperCfg)

	// Read config file.
	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("ordtree")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME/.config/ordtree")
		viperCfg.AddConfigPath("/etc/ordtree")
	}

	// Read environment variables.
	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	// Arena defaults.
	viperCfg.SetDefault("arena.max_bytes", DefaultArenaMaxBytes)
	viperCfg.SetDefault("arena.hibernation_threshold", DefaultArenaHibernationThreshold)

	// Bench defaults.
	viperCfg.SetDefault("bench.keys", DefaultBenchKeys)
	viperCfg.SetDefault("bench.order", DefaultBenchOrder)
	viperCfg.SetDefault("bench.delete_ratio", DefaultBenchDeleteRatio)
	viperCfg.SetDefault("bench.seed", DefaultBenchSeed)
	viperCfg.SetDefault("bench.hibernate", DefaultBenchHibernate)

	// Verify defaults.
	viperCfg.SetDefault("verify.rounds", DefaultVerifyRounds)
	viperCfg.SetDefault("verify.ops_per_round", DefaultVerifyOpsPerRound)
	viperCfg.SetDefault("verify.key_space", DefaultVerifyKeySpace)
	viperCfg.SetDefault("verify.seed", DefaultVerifySeed)

	// Logging defaults.
	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.format", DefaultLoggingFormat)

	// Telemetry defaults.
	viperCfg.SetDefault("telemetry.service_name", DefaultTelemetryServiceName)
	viperCfg.SetDefault("telemetry.environment", DefaultTelemetryEnvironment)
	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultTelemetrySampleRatio)
}

// Validate checks the configuration again, e.g. after flags overrode it.
func (config *Config) Validate() error {
	return validateConfig(config)
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	_, err := config.Arena.MaxBytesValue()
	if err != nil {
		return err
	}

	if config.Arena.HibernationThreshold < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidThreshold, config.Arena.HibernationThreshold)
	}

	if config.Bench.Keys <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidKeys, config.Bench.Keys)
	}

	switch config.Bench.Order {
	case OrderRandom, OrderAscending, OrderDescending:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOrder, config.Bench.Order)
	}

	if config.Bench.DeleteRatio < 0 || config.Bench.DeleteRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidDeleteRatio, config.Bench.DeleteRatio)
	}

	if config.Verify.Rounds <= 0 || config.Verify.OpsPerRound <= 0 {
		return fmt.Errorf("%w: %d rounds of %d ops", ErrInvalidRounds, config.Verify.Rounds, config.Verify.OpsPerRound)
	}

	if config.Verify.KeySpace <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidKeySpace, config.Verify.KeySpace)
	}

	switch config.Logging.Format {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	if config.Telemetry.SampleRatio < 0 || config.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, config.Telemetry.SampleRatio)
	}

	return nil
}
