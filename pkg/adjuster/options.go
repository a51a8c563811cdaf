package adjuster

import "github.com/pion/logging"

// Option configures optional dependencies of an adjuster.
type Option func(*options)

type options struct {
	loggerFactory logging.LoggerFactory
}

// WithLoggerFactory sets the logger factory used by adaptive adjusters.
// Default: logging.NewDefaultLoggerFactory().
func WithLoggerFactory(lf logging.LoggerFactory) Option {
	return func(o *options) {
		o.loggerFactory = lf
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.loggerFactory == nil {
		o.loggerFactory = logging.NewDefaultLoggerFactory()
	}
	return o
}
