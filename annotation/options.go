package annotation

// Options configures a Bookkeeper.
type Options struct {
	// Behavior flags
	StrictMode      bool // If true, soft imprecision is an error instead of a warning (default: false)
	EnableWarnings  bool // If true, collect precision-loss warnings (default: true)
	EnableInterning bool // If true, intern immutable constants (default: true)

	// Tuples longer than this degrade to Top (default: 64, 0 = unlimited)
	MaxTupleArity int

	// Logging configuration
	LogLevel      string // Log level: "error", "warn", "info", "debug" (default: "warn")
	LogTimeFormat string // strftime layout for log timestamps (default: "%Y-%m-%dT%H:%M:%S")
	LogMaxItems   int    // Max tuple items or descriptions shown in log summaries (default: 5)

	// Logger overrides the default stderr logger when set.
	Logger Logger
}

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	return Options{
		StrictMode:      false,
		EnableWarnings:  true,
		EnableInterning: true,
		MaxTupleArity:   64,
		LogLevel:        "warn",
		LogTimeFormat:   "%Y-%m-%dT%H:%M:%S",
		LogMaxItems:     5,
	}
}
