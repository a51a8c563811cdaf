package adjuster

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Kind selects an adjustment strategy.
type Kind string

const (
	// KindBase passes targets through unmodified.
	KindBase Kind = "base"
	// KindWindowed corrects bias measured over a sliding window.
	KindWindowed Kind = "windowed"
	// KindStep corrects bias in discrete multiplicative steps.
	KindStep Kind = "step"
	// KindFramerate pins the codec framerate and scales the bitrate.
	KindFramerate Kind = "framerate"
)

var (
	// ErrUnknownKind is returned for a strategy name that is not recognized.
	ErrUnknownKind = errors.New("unknown adjuster kind")
	// ErrInvalidConfig is returned when a configuration value is out of range.
	ErrInvalidConfig = errors.New("invalid adjuster config")
)

// ParseKind parses a strategy name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindBase, KindWindowed, KindStep, KindFramerate:
		return k, nil
	case "":
		return KindBase, nil
	}
	return "", errors.Wrapf(ErrUnknownKind, "%q", s)
}

// Config selects and configures an adjuster.
type Config struct {
	Kind      Kind            `yaml:"kind"`
	Windowed  WindowedConfig  `yaml:"windowed"`
	Step      StepConfig      `yaml:"step"`
	Framerate FramerateConfig `yaml:"framerate"`
}

// DefaultConfig returns a configuration selecting the windowed adjuster with
// default settings for every strategy.
func DefaultConfig() Config {
	return Config{
		Kind:      KindWindowed,
		Windowed:  DefaultWindowedConfig(),
		Step:      DefaultStepConfig(),
		Framerate: DefaultFramerateConfig(),
	}
}

// ParseConfig decodes a YAML configuration on top of DefaultConfig and
// validates it.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode adjuster config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read adjuster config %s", path)
	}
	return ParseConfig(data)
}

// Validate reports values that cannot be repaired by defaulting.
func (c *Config) Validate() error {
	kind, err := ParseKind(string(c.Kind))
	if err != nil {
		return err
	}
	c.Kind = kind

	w := c.Windowed
	if w.WindowSize < 0 {
		return errors.Wrapf(ErrInvalidConfig, "windowed.window_size %v is negative", w.WindowSize)
	}
	if w.MinRatio > 0 && w.MaxRatio > 0 && w.MinRatio > w.MaxRatio {
		return errors.Wrapf(ErrInvalidConfig, "windowed.min_ratio %v exceeds max_ratio %v", w.MinRatio, w.MaxRatio)
	}
	if w.MaxBitrateBps > 0 && w.MinBitrateBps > w.MaxBitrateBps {
		return errors.Wrapf(ErrInvalidConfig, "windowed.min_bitrate_bps %d exceeds max_bitrate_bps %d", w.MinBitrateBps, w.MaxBitrateBps)
	}
	if w.Smoothing < 0 || w.Smoothing > 1 {
		return errors.Wrapf(ErrInvalidConfig, "windowed.smoothing %v outside [0, 1]", w.Smoothing)
	}
	if w.FixedCodecFramerate < 0 {
		return errors.Wrapf(ErrInvalidConfig, "windowed.fixed_codec_framerate %d is negative", w.FixedCodecFramerate)
	}

	s := c.Step
	if s.MaxBitrateBps > 0 && s.MinBitrateBps > s.MaxBitrateBps {
		return errors.Wrapf(ErrInvalidConfig, "step.min_bitrate_bps %d exceeds max_bitrate_bps %d", s.MinBitrateBps, s.MaxBitrateBps)
	}
	if s.Steps < 0 {
		return errors.Wrapf(ErrInvalidConfig, "step.steps %d is negative", s.Steps)
	}

	if c.Framerate.CodecFramerate < 0 {
		return errors.Wrapf(ErrInvalidConfig, "framerate.codec_framerate %d is negative", c.Framerate.CodecFramerate)
	}
	return nil
}

// New builds the adjuster selected by cfg.
func New(cfg Config, opts ...Option) (Adjuster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case KindWindowed:
		return NewWindowedAdjuster(cfg.Windowed, opts...), nil
	case KindStep:
		return NewStepAdjuster(cfg.Step, opts...), nil
	case KindFramerate:
		return NewFramerateAdjuster(cfg.Framerate), nil
	default:
		return NewBaseAdjuster(), nil
	}
}
