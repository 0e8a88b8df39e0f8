package config

// Arena defaults.
const (
	DefaultArenaMaxBytes             = "0"
	DefaultArenaHibernationThreshold = 1000
)

// Bench workload defaults.
const (
	DefaultBenchKeys        = 100000
	DefaultBenchOrder       = OrderRandom
	DefaultBenchDeleteRatio = 0.0
	DefaultBenchSeed        = 1
	DefaultBenchHibernate   = false
)

// Verify defaults.
const (
	DefaultVerifyRounds      = 20
	DefaultVerifyOpsPerRound = 2000
	DefaultVerifyKeySpace    = 1000
	DefaultVerifySeed        = 1
)

// Logging defaults.
const (
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = FormatText
)

// Telemetry defaults.
const (
	DefaultTelemetryServiceName = "ordtree"
	DefaultTelemetryEnvironment = "development"
	DefaultTelemetrySampleRatio = 1.0
)
