// Package adjuster computes the bitrate and framerate to configure into a
// video encoder so that its real output converges on an externally supplied
// target.
package adjuster

// Adjuster is the contract shared by every bitrate adjustment strategy.
//
// The encoder wrapper owns one Adjuster for its lifetime. Targets arrive from
// the bandwidth estimator via SetTargets, every produced frame is reported via
// ReportEncodedFrame, and the two accessors are read right before the codec is
// (re)configured.
//
// Implementations are not safe for concurrent use; wrap them in Synchronized
// when targets and frames are delivered from different goroutines.
type Adjuster interface {
	// SetTargets overwrites the current target. Strategies that keep a rolling
	// estimate discard it when the target changes by more than a negligible
	// amount.
	SetTargets(targetBitrateBps int64, targetFps int)

	// ReportEncodedFrame records the size of one frame emitted by the encoder.
	// It must be called once per frame, in encode order. It never blocks.
	ReportEncodedFrame(sizeBytes int)

	// AdjustedBitrateBps returns the bitrate to configure into the codec.
	// Returns 0 before any target has been set.
	AdjustedBitrateBps() int64

	// CodecConfigFramerate returns the framerate to configure into the
	// codec's rate controller.
	CodecConfigFramerate() int

	// State reports whether a target has been received yet.
	State() State

	// Snapshot returns a read-only view of the adjuster for statistics.
	Snapshot() Snapshot
}

// State is the lifecycle state of an adjuster.
type State int

const (
	// StateUninitialized means no target has been set yet.
	StateUninitialized State = iota
	// StateTracking means a target is set and frames are being accounted.
	StateTracking
)

// String returns a string representation of the State.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateTracking:
		return "Tracking"
	default:
		return "Unknown"
	}
}

// Snapshot is a point-in-time view of an adjuster, consumed by the
// statistics boundary.
type Snapshot struct {
	TargetBitrateBps     int64 `json:"target_bitrate_bps"`
	TargetFps            int   `json:"target_fps"`
	AdjustedBitrateBps   int64 `json:"adjusted_bitrate_bps"`
	CodecConfigFramerate int   `json:"codec_config_framerate"`

	// MeasuredBitrateBps is the windowed estimate of what the encoder actually
	// produced. Zero for strategies that do not measure.
	MeasuredBitrateBps int64 `json:"measured_bitrate_bps"`

	// CorrectionRatio is the multiplier applied to the target bitrate.
	CorrectionRatio float64 `json:"correction_ratio"`

	// FramesReported counts frames reported since the adjuster was created.
	FramesReported uint64 `json:"frames_reported"`
}

// target holds the most recent request from the bandwidth estimator.
type target struct {
	bitrateBps int64
	fps        int
	set        bool
}

// update stores a new target and reports whether it differs from the old one
// by more than threshold (relative bitrate change) or by any fps change.
func (t *target) update(bitrateBps int64, fps int, threshold float64) bool {
	if bitrateBps < 0 {
		bitrateBps = 0
	}
	changed := !t.set || fps != t.fps || significantChange(t.bitrateBps, bitrateBps, threshold)
	t.bitrateBps = bitrateBps
	t.fps = fps
	t.set = true
	return changed
}

func (t *target) state() State {
	if t.set {
		return StateTracking
	}
	return StateUninitialized
}

// significantChange reports whether next differs from prev by more than the
// relative threshold.
func significantChange(prev, next int64, threshold float64) bool {
	if prev == next {
		return false
	}
	if prev == 0 || next == 0 {
		return true
	}
	diff := float64(next-prev) / float64(prev)
	if diff < 0 {
		diff = -diff
	}
	return diff > threshold
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampBitrate enforces [minBps, maxBps]. A non-positive maxBps means no
// upper bound.
func clampBitrate(v, minBps, maxBps int64) int64 {
	if v < minBps {
		v = minBps
	}
	if maxBps > 0 && v > maxBps {
		v = maxBps
	}
	if v < 0 {
		v = 0
	}
	return v
}
