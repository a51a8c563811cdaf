package adjuster

// BaseAdjuster tracks bitrate and framerate but does not adjust them.
// It is the default when the codec's own rate controller can be trusted.
type BaseAdjuster struct {
	targetBitrateBps int64
	targetFps        int
	set              bool
	frames           uint64
}

var _ Adjuster = (*BaseAdjuster)(nil)

// NewBaseAdjuster creates a pass-through adjuster.
func NewBaseAdjuster() *BaseAdjuster {
	return &BaseAdjuster{}
}

// SetTargets stores the target as-is.
func (b *BaseAdjuster) SetTargets(targetBitrateBps int64, targetFps int) {
	b.targetBitrateBps = targetBitrateBps
	b.targetFps = targetFps
	b.set = true
}

// ReportEncodedFrame only counts the frame.
func (b *BaseAdjuster) ReportEncodedFrame(int) {
	b.frames++
}

// AdjustedBitrateBps returns the last target bitrate.
func (b *BaseAdjuster) AdjustedBitrateBps() int64 {
	return b.targetBitrateBps
}

// CodecConfigFramerate returns the last target framerate.
func (b *BaseAdjuster) CodecConfigFramerate() int {
	return b.targetFps
}

// State returns the adjuster lifecycle state.
func (b *BaseAdjuster) State() State {
	if b.set {
		return StateTracking
	}
	return StateUninitialized
}

// Snapshot returns the current view of the adjuster.
func (b *BaseAdjuster) Snapshot() Snapshot {
	return Snapshot{
		TargetBitrateBps:     b.targetBitrateBps,
		TargetFps:            b.targetFps,
		AdjustedBitrateBps:   b.targetBitrateBps,
		CodecConfigFramerate: b.targetFps,
		CorrectionRatio:      1,
		FramesReported:       b.frames,
	}
}
