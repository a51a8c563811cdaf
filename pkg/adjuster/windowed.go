package adjuster

import (
	"math"
	"time"

	"github.com/pion/logging"
)

const (
	// minGain keeps the correction finite when the encoder produced nothing.
	minGain = 1e-9
	// minRateBps is the floor applied to the measured bitrate.
	minRateBps = 1.0
)

// WindowedConfig configures the windowed adjuster.
type WindowedConfig struct {
	// WindowSize is the media-time span over which output is measured.
	// Default: 1 second.
	WindowSize time.Duration `yaml:"window_size"`

	// MinFrames is the number of frames required before correcting.
	// Default: 0, meaning one full window at the current target framerate.
	MinFrames int `yaml:"min_frames"`

	// MinRatio and MaxRatio bound the correction ratio.
	// Default: 0.5 and 2.0.
	MinRatio float64 `yaml:"min_ratio"`
	MaxRatio float64 `yaml:"max_ratio"`

	// MinBitrateBps and MaxBitrateBps bound the adjusted bitrate.
	// A zero MaxBitrateBps means no upper bound.
	MinBitrateBps int64 `yaml:"min_bitrate_bps"`
	MaxBitrateBps int64 `yaml:"max_bitrate_bps"`

	// ResetThreshold is the relative bitrate change above which a new target
	// discards the window. Any framerate change discards it too.
	// Default: 0.01 (1%).
	ResetThreshold float64 `yaml:"reset_threshold"`

	// Smoothing is the EWMA alpha applied to the measured bitrate, or to the
	// encoder gain in closed-loop mode. Default: 0 (no smoothing).
	Smoothing float64 `yaml:"smoothing"`

	// FixedCodecFramerate pins the framerate presented to the codec. The
	// bitrate is scaled so the per-frame budget matches the live framerate.
	// Default: 0 (use the target framerate).
	FixedCodecFramerate int `yaml:"fixed_codec_framerate"`

	// ClosedLoop derives the ratio from the encoder gain against the budget
	// each frame was configured with, instead of from target/measured. Use it
	// when the adjusted bitrate is fed back into the codec that produces the
	// reported frames. Default: false.
	ClosedLoop bool `yaml:"closed_loop"`
}

// DefaultWindowedConfig returns the default windowed adjuster configuration.
func DefaultWindowedConfig() WindowedConfig {
	return WindowedConfig{
		WindowSize:     time.Second,
		MinRatio:       0.5,
		MaxRatio:       2.0,
		ResetThreshold: 0.01,
	}
}

// WindowedAdjuster measures the encoder's output over a sliding window and
// scales the configured bitrate to cancel its systematic bias.
//
// Once enough frames are in the window the correction ratio is
//
//	r = target / measured
//
// clamped to [MinRatio, MaxRatio]. A fixed output therefore yields a fixed
// ratio however long it is reported.
//
// In closed-loop mode every frame is accounted together with the per-frame
// budget the codec was configured with, and r = budgetedBits / producedBits.
// That equals target / measured while no correction was active, and settles
// once the codec follows the corrected value.
type WindowedAdjuster struct {
	config WindowedConfig
	log    logging.LeveledLogger

	target   target
	window   *FrameWindow
	smoother *ewma
	ratio    float64
	frames   uint64
}

var _ Adjuster = (*WindowedAdjuster)(nil)

// NewWindowedAdjuster creates a windowed adjuster with the given configuration.
func NewWindowedAdjuster(config WindowedConfig, opts ...Option) *WindowedAdjuster {
	defaults := DefaultWindowedConfig()
	if config.WindowSize <= 0 {
		config.WindowSize = defaults.WindowSize
	}
	if config.MinRatio <= 0 || config.MinRatio > 1 {
		config.MinRatio = defaults.MinRatio
	}
	if config.MaxRatio < 1 {
		config.MaxRatio = defaults.MaxRatio
	}
	if config.ResetThreshold <= 0 {
		config.ResetThreshold = defaults.ResetThreshold
	}
	if config.MinBitrateBps < 0 {
		config.MinBitrateBps = 0
	}
	if config.MinFrames < 0 {
		config.MinFrames = 0
	}

	o := buildOptions(opts)
	w := &WindowedAdjuster{
		config: config,
		log:    o.loggerFactory.NewLogger("adjuster_windowed"),
		window: NewFrameWindow(FrameWindowConfig{WindowSize: config.WindowSize}),
		ratio:  1,
	}
	if config.Smoothing > 0 && config.Smoothing <= 1 {
		w.smoother = newEWMA(config.Smoothing)
	}
	return w
}

// SetTargets stores the new target and discards the window when it changed
// by more than ResetThreshold.
func (w *WindowedAdjuster) SetTargets(targetBitrateBps int64, targetFps int) {
	if !w.target.update(targetBitrateBps, targetFps, w.config.ResetThreshold) {
		return
	}
	if w.window.Len() > 0 {
		w.log.Debugf("target changed to %d bps @ %d fps, discarding %d frames (ratio was %.3f)",
			w.target.bitrateBps, w.target.fps, w.window.Len(), w.ratio)
	}
	w.reset()
}

// ReportEncodedFrame accounts one frame and updates the correction ratio.
func (w *WindowedAdjuster) ReportEncodedFrame(sizeBytes int) {
	w.frames++
	fps := w.target.fps
	if !w.target.set || fps <= 0 || w.target.bitrateBps == 0 {
		return
	}
	if sizeBytes < 0 {
		sizeBytes = 0
	}

	budget := float64(w.AdjustedBitrateBps()) / float64(w.CodecConfigFramerate())
	w.window.Update(int64(sizeBytes)*8, budget, time.Second/time.Duration(fps))

	if w.window.Len() < w.minFrames() {
		return
	}
	ratio, ok := w.correction()
	if !ok {
		return
	}
	w.ratio = clampFloat(ratio, w.config.MinRatio, w.config.MaxRatio)
	w.log.Tracef("ratio=%.4f frames=%d", w.ratio, w.window.Len())
}

// correction returns the unclamped ratio for the frames in the window.
func (w *WindowedAdjuster) correction() (float64, bool) {
	if w.config.ClosedLoop {
		gain, ok := w.window.Gain()
		if !ok {
			return 0, false
		}
		return 1 / math.Max(w.smooth(gain), minGain), true
	}
	rate, ok := w.window.Rate()
	if !ok {
		return 0, false
	}
	measured := w.smooth(float64(rate))
	return float64(w.target.bitrateBps) / math.Max(measured, minRateBps), true
}

func (w *WindowedAdjuster) smooth(v float64) float64 {
	if w.smoother == nil {
		return v
	}
	w.smoother.update(v)
	return w.smoother.avg()
}

// AdjustedBitrateBps returns target * ratio, scaled for a pinned codec
// framerate and clamped to the configured bounds.
func (w *WindowedAdjuster) AdjustedBitrateBps() int64 {
	if !w.target.set || w.target.bitrateBps == 0 {
		return 0
	}
	adjusted := float64(w.target.bitrateBps) * w.ratio
	if fixed := w.config.FixedCodecFramerate; fixed > 0 && w.target.fps > 0 {
		adjusted = adjusted * float64(fixed) / float64(w.target.fps)
	}
	return clampBitrate(int64(adjusted), w.config.MinBitrateBps, w.config.MaxBitrateBps)
}

// CodecConfigFramerate returns the pinned framerate if configured, else the
// target framerate.
func (w *WindowedAdjuster) CodecConfigFramerate() int {
	if w.config.FixedCodecFramerate > 0 {
		return w.config.FixedCodecFramerate
	}
	return w.target.fps
}

// CorrectionRatio returns the ratio currently applied to the target bitrate.
func (w *WindowedAdjuster) CorrectionRatio() float64 {
	return w.ratio
}

// State returns the adjuster lifecycle state.
func (w *WindowedAdjuster) State() State {
	return w.target.state()
}

// Snapshot returns the current view of the adjuster.
func (w *WindowedAdjuster) Snapshot() Snapshot {
	measured, _ := w.window.Rate()
	return Snapshot{
		TargetBitrateBps:     w.target.bitrateBps,
		TargetFps:            w.target.fps,
		AdjustedBitrateBps:   w.AdjustedBitrateBps(),
		CodecConfigFramerate: w.CodecConfigFramerate(),
		MeasuredBitrateBps:   measured,
		CorrectionRatio:      w.ratio,
		FramesReported:       w.frames,
	}
}

// minFrames returns the frames required before the window is trusted.
func (w *WindowedAdjuster) minFrames() int {
	if w.config.MinFrames > 0 {
		return w.config.MinFrames
	}
	n := int(math.Round(w.config.WindowSize.Seconds() * float64(w.target.fps)))
	if n < 1 {
		n = 1
	}
	return n
}

func (w *WindowedAdjuster) reset() {
	w.window.Reset()
	if w.smoother != nil {
		w.smoother.reset()
	}
	w.ratio = 1
}
