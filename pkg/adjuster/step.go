package adjuster

import (
	"math"
	"time"

	"github.com/pion/logging"
)

// StepConfig configures the step adjuster.
type StepConfig struct {
	// MaxScale is the largest factor the bitrate can be scaled by, in either
	// direction. Default: 4.
	MaxScale float64 `yaml:"max_scale"`

	// Steps is the number of exponent steps between 1 and MaxScale.
	// Default: 20.
	Steps int `yaml:"steps"`

	// AdjustmentPeriod is the media time between scale updates.
	// Default: 3 seconds.
	AdjustmentPeriod time.Duration `yaml:"adjustment_period"`

	// DeviationCapSeconds caps the accumulated deviation, in seconds of
	// target output. Default: 3.
	DeviationCapSeconds float64 `yaml:"deviation_cap_seconds"`

	// ResetThreshold is the relative bitrate change above which a new target
	// discards the accumulated deviation and scale. Default: 0.01.
	ResetThreshold float64 `yaml:"reset_threshold"`

	// MinBitrateBps and MaxBitrateBps bound the adjusted bitrate.
	// A zero MaxBitrateBps means no upper bound.
	MinBitrateBps int64 `yaml:"min_bitrate_bps"`
	MaxBitrateBps int64 `yaml:"max_bitrate_bps"`
}

// DefaultStepConfig returns the default step adjuster configuration.
func DefaultStepConfig() StepConfig {
	return StepConfig{
		MaxScale:            4,
		Steps:               20,
		AdjustmentPeriod:    3 * time.Second,
		DeviationCapSeconds: 3,
		ResetThreshold:      0.01,
	}
}

// StepAdjuster accumulates how many bytes the encoder produced above or
// below its target and moves the bitrate in discrete multiplicative steps
// once the deviation exceeds one second of target output.
//
// The scale is MaxScale^(exp/Steps) with exp in [-Steps, Steps]. The
// exponent moves at most once per AdjustmentPeriod, by the rounded number of
// seconds of accumulated deviation.
type StepAdjuster struct {
	config StepConfig
	log    logging.LeveledLogger

	target          target
	deviationBytes  float64
	sinceAdjustment time.Duration
	scaleExp        int
	frames          uint64
}

var _ Adjuster = (*StepAdjuster)(nil)

// NewStepAdjuster creates a step adjuster with the given configuration.
func NewStepAdjuster(config StepConfig, opts ...Option) *StepAdjuster {
	defaults := DefaultStepConfig()
	if config.MaxScale <= 1 {
		config.MaxScale = defaults.MaxScale
	}
	if config.Steps <= 0 {
		config.Steps = defaults.Steps
	}
	if config.AdjustmentPeriod <= 0 {
		config.AdjustmentPeriod = defaults.AdjustmentPeriod
	}
	if config.DeviationCapSeconds <= 0 {
		config.DeviationCapSeconds = defaults.DeviationCapSeconds
	}
	if config.ResetThreshold <= 0 {
		config.ResetThreshold = defaults.ResetThreshold
	}
	if config.MinBitrateBps < 0 {
		config.MinBitrateBps = 0
	}

	o := buildOptions(opts)
	return &StepAdjuster{
		config: config,
		log:    o.loggerFactory.NewLogger("adjuster_step"),
	}
}

// SetTargets stores the new target. A small decrease rescales the pending
// deviation; a change above ResetThreshold discards it along with the scale.
func (s *StepAdjuster) SetTargets(targetBitrateBps int64, targetFps int) {
	prev := s.target.bitrateBps
	if s.target.set && prev > 0 && targetBitrateBps >= 0 && targetBitrateBps < prev {
		s.deviationBytes = s.deviationBytes * float64(targetBitrateBps) / float64(prev)
	}
	if !s.target.update(targetBitrateBps, targetFps, s.config.ResetThreshold) {
		return
	}
	if s.scaleExp != 0 {
		s.log.Debugf("target changed to %d bps @ %d fps, dropping scale exponent %d",
			s.target.bitrateBps, s.target.fps, s.scaleExp)
	}
	s.deviationBytes = 0
	s.sinceAdjustment = 0
	s.scaleExp = 0
}

// ReportEncodedFrame accumulates the frame's deviation from its target size
// and updates the scale once per AdjustmentPeriod.
func (s *StepAdjuster) ReportEncodedFrame(sizeBytes int) {
	s.frames++
	fps := s.target.fps
	if !s.target.set || fps <= 0 || s.target.bitrateBps == 0 {
		return
	}
	if sizeBytes < 0 {
		sizeBytes = 0
	}

	targetBytesPerSec := float64(s.target.bitrateBps) / 8
	s.deviationBytes += float64(sizeBytes) - targetBytesPerSec/float64(fps)
	s.sinceAdjustment += time.Second / time.Duration(fps)

	deviationCap := s.config.DeviationCapSeconds * targetBytesPerSec
	s.deviationBytes = clampFloat(s.deviationBytes, -deviationCap, deviationCap)

	if s.sinceAdjustment <= s.config.AdjustmentPeriod {
		return
	}

	threshold := targetBytesPerSec
	switch {
	case s.deviationBytes > threshold:
		s.scaleExp -= int(s.deviationBytes/threshold + 0.5)
		s.scaleExp = max(s.scaleExp, -s.config.Steps)
		s.deviationBytes = threshold
		s.log.Debugf("overshoot, scale exponent now %d", s.scaleExp)
	case s.deviationBytes < -threshold:
		s.scaleExp += int(-s.deviationBytes/threshold + 0.5)
		s.scaleExp = min(s.scaleExp, s.config.Steps)
		s.deviationBytes = -threshold
		s.log.Debugf("undershoot, scale exponent now %d", s.scaleExp)
	}
	s.sinceAdjustment = 0
}

// AdjustedBitrateBps returns target * scale, clamped to the configured bounds.
func (s *StepAdjuster) AdjustedBitrateBps() int64 {
	if !s.target.set || s.target.bitrateBps == 0 {
		return 0
	}
	adjusted := int64(float64(s.target.bitrateBps) * s.Scale())
	return clampBitrate(adjusted, s.config.MinBitrateBps, s.config.MaxBitrateBps)
}

// CodecConfigFramerate returns the target framerate.
func (s *StepAdjuster) CodecConfigFramerate() int {
	return s.target.fps
}

// Scale returns the factor currently applied to the target bitrate.
func (s *StepAdjuster) Scale() float64 {
	return math.Pow(s.config.MaxScale, float64(s.scaleExp)/float64(s.config.Steps))
}

// State returns the adjuster lifecycle state.
func (s *StepAdjuster) State() State {
	return s.target.state()
}

// Snapshot returns the current view of the adjuster.
func (s *StepAdjuster) Snapshot() Snapshot {
	return Snapshot{
		TargetBitrateBps:     s.target.bitrateBps,
		TargetFps:            s.target.fps,
		AdjustedBitrateBps:   s.AdjustedBitrateBps(),
		CodecConfigFramerate: s.target.fps,
		CorrectionRatio:      s.Scale(),
		FramesReported:       s.frames,
	}
}
