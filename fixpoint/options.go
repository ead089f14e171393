package fixpoint

import "github.com/speakeasy-api/annotator/annotation"

// Options configures an Annotator.
type Options struct {
	annotation.Options

	// Safeguard against non-terminating runs: the number of block visits
	// after which Run fails (default: 100000, 0 = unlimited).
	MaxIterations int
}

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	return Options{
		Options:       annotation.DefaultOptions(),
		MaxIterations: 100000,
	}
}
