package interceptor

import (
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pkg/errors"

	"github.com/thesyncim/adjuster/pkg/adjuster"
	"github.com/thesyncim/adjuster/pkg/adjuster/internal"
	"github.com/thesyncim/adjuster/pkg/adjuster/metrics"
)

// Option configures a Factory or a standalone AdjusterInterceptor.
type Option func(*settings) error

type settings struct {
	config         adjuster.Config
	targetFps      int
	initialBitrate int64
	frameTimeout   time.Duration
	streamTimeout  time.Duration
	statsInterval  time.Duration
	sink           metrics.Sink
	onTargets      func(ssrc uint32, bitrateBps int64, fps int)
	onNew          func(id string, i *AdjusterInterceptor)
	loggerFactory  logging.LoggerFactory
	clock          internal.Clock
}

func defaultSettings() settings {
	return settings{
		config:        adjuster.DefaultConfig(),
		targetFps:     30,
		frameTimeout:  500 * time.Millisecond,
		streamTimeout: 10 * time.Second,
		statsInterval: time.Second,
		loggerFactory: logging.NewDefaultLoggerFactory(),
		clock:         internal.SystemClock{},
	}
}

func buildSettings(opts []Option) (settings, error) {
	s := defaultSettings()
	for _, opt := range opts {
		if err := opt(&s); err != nil {
			return settings{}, err
		}
	}
	return s, nil
}

// WithAdjusterConfig sets the configuration every stream's adjuster is
// built from. Default: adjuster.DefaultConfig().
func WithAdjusterConfig(cfg adjuster.Config) Option {
	return func(s *settings) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		s.config = cfg
		return nil
	}
}

// WithKind selects the adjuster strategy, keeping the rest of the config.
func WithKind(kind adjuster.Kind) Option {
	return func(s *settings) error {
		cfg := s.config
		cfg.Kind = kind
		if err := cfg.Validate(); err != nil {
			return err
		}
		s.config = cfg
		return nil
	}
}

// WithTargetFramerate sets the framerate passed to SetTargets when REMB
// feedback carries only a bitrate.
// Default: 30
func WithTargetFramerate(fps int) Option {
	return func(s *settings) error {
		if fps <= 0 {
			return errors.Wrapf(adjuster.ErrInvalidConfig, "target framerate %d must be positive", fps)
		}
		s.targetFps = fps
		return nil
	}
}

// WithInitialBitrate seeds every new stream's targets before any feedback
// arrives. Zero leaves streams uninitialized until the first REMB.
func WithInitialBitrate(bps int64) Option {
	return func(s *settings) error {
		if bps < 0 {
			return errors.Wrapf(adjuster.ErrInvalidConfig, "initial bitrate %d must not be negative", bps)
		}
		s.initialBitrate = bps
		return nil
	}
}

// WithFrameTimeout sets how long a partial frame may wait for more packets
// before it is reported as is.
// Default: 500ms
func WithFrameTimeout(d time.Duration) Option {
	return func(s *settings) error {
		if d <= 0 {
			return errors.Wrap(adjuster.ErrInvalidConfig, "frame timeout must be positive")
		}
		s.frameTimeout = d
		return nil
	}
}

// WithStreamTimeout sets how long a stream may stay idle before its adjuster
// is dropped. Zero disables the cleanup.
// Default: 10s
func WithStreamTimeout(d time.Duration) Option {
	return func(s *settings) error {
		if d < 0 {
			return errors.Wrap(adjuster.ErrInvalidConfig, "stream timeout must not be negative")
		}
		s.streamTimeout = d
		return nil
	}
}

// WithStatsInterval sets how often snapshots are pushed to the stats sink.
// Default: 1 second
func WithStatsInterval(d time.Duration) Option {
	return func(s *settings) error {
		if d <= 0 {
			return errors.Wrap(adjuster.ErrInvalidConfig, "stats interval must be positive")
		}
		s.statsInterval = d
		return nil
	}
}

// WithStatsSink sets the sink receiving per-stream snapshots, keyed by the
// decimal SSRC. Without a sink no stats loop runs.
func WithStatsSink(sink metrics.Sink) Option {
	return func(s *settings) error {
		s.sink = sink
		return nil
	}
}

// WithOnTargets sets a callback invoked after REMB feedback updates a
// stream's targets.
func WithOnTargets(fn func(ssrc uint32, bitrateBps int64, fps int)) Option {
	return func(s *settings) error {
		s.onTargets = fn
		return nil
	}
}

// WithOnNewInterceptor sets a callback receiving each interceptor the
// factory creates, so the application can reach its adjusters.
func WithOnNewInterceptor(fn func(id string, i *AdjusterInterceptor)) Option {
	return func(s *settings) error {
		s.onNew = fn
		return nil
	}
}

// WithLoggerFactory sets the logger factory for the interceptor and its
// adjusters.
func WithLoggerFactory(lf logging.LoggerFactory) Option {
	return func(s *settings) error {
		if lf != nil {
			s.loggerFactory = lf
		}
		return nil
	}
}

func withClock(c internal.Clock) Option {
	return func(s *settings) error {
		s.clock = c
		return nil
	}
}

// Factory creates an AdjusterInterceptor for each PeerConnection.
type Factory struct {
	settings settings
}

var _ interceptor.Factory = (*Factory)(nil)

// NewFactory creates a factory configured by opts.
//
// Example:
//
//	factory, err := NewFactory(
//	    WithKind(adjuster.KindWindowed),
//	    WithTargetFramerate(30),
//	)
//	if err != nil {
//	    return err
//	}
//	registry.Add(factory)
func NewFactory(opts ...Option) (*Factory, error) {
	s, err := buildSettings(opts)
	if err != nil {
		return nil, err
	}
	return &Factory{settings: s}, nil
}

// NewInterceptor implements interceptor.Factory.
func (f *Factory) NewInterceptor(id string) (interceptor.Interceptor, error) {
	i := newAdjusterInterceptor(f.settings)
	if f.settings.onNew != nil {
		f.settings.onNew(id, i)
	}
	return i, nil
}
