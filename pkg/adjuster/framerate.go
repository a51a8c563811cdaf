package adjuster

// FramerateConfig configures the framerate adjuster.
type FramerateConfig struct {
	// CodecFramerate is the framerate always presented to the codec.
	// Default: 30.
	CodecFramerate int `yaml:"codec_framerate"`
}

// DefaultFramerateConfig returns the default framerate adjuster configuration.
func DefaultFramerateConfig() FramerateConfig {
	return FramerateConfig{CodecFramerate: 30}
}

// FramerateAdjuster serves codecs that only accept a fixed framerate. The
// codec always sees CodecFramerate and the bitrate is scaled so that its
// per-frame budget matches frames arriving at the target framerate.
type FramerateAdjuster struct {
	codecFps int

	targetBitrateBps int64
	targetFps        int
	set              bool
	frames           uint64
}

var _ Adjuster = (*FramerateAdjuster)(nil)

// NewFramerateAdjuster creates a framerate adjuster.
func NewFramerateAdjuster(config FramerateConfig) *FramerateAdjuster {
	if config.CodecFramerate <= 0 {
		config.CodecFramerate = DefaultFramerateConfig().CodecFramerate
	}
	return &FramerateAdjuster{codecFps: config.CodecFramerate}
}

// SetTargets stores the target. Negative bitrates clamp to zero.
func (f *FramerateAdjuster) SetTargets(targetBitrateBps int64, targetFps int) {
	if targetBitrateBps < 0 {
		targetBitrateBps = 0
	}
	f.targetBitrateBps = targetBitrateBps
	f.targetFps = targetFps
	f.set = true
}

// ReportEncodedFrame only counts the frame.
func (f *FramerateAdjuster) ReportEncodedFrame(int) {
	f.frames++
}

// AdjustedBitrateBps returns target * codecFps / targetFps. Without a usable
// target framerate the target is passed through.
func (f *FramerateAdjuster) AdjustedBitrateBps() int64 {
	if f.targetFps <= 0 {
		return f.targetBitrateBps
	}
	return f.targetBitrateBps * int64(f.codecFps) / int64(f.targetFps)
}

// CodecConfigFramerate returns the pinned codec framerate.
func (f *FramerateAdjuster) CodecConfigFramerate() int {
	return f.codecFps
}

// State returns the adjuster lifecycle state.
func (f *FramerateAdjuster) State() State {
	if f.set {
		return StateTracking
	}
	return StateUninitialized
}

// Snapshot returns the current view of the adjuster.
func (f *FramerateAdjuster) Snapshot() Snapshot {
	ratio := 1.0
	if f.targetFps > 0 {
		ratio = float64(f.codecFps) / float64(f.targetFps)
	}
	return Snapshot{
		TargetBitrateBps:     f.targetBitrateBps,
		TargetFps:            f.targetFps,
		AdjustedBitrateBps:   f.AdjustedBitrateBps(),
		CodecConfigFramerate: f.codecFps,
		CorrectionRatio:      ratio,
		FramesReported:       f.frames,
	}
}
