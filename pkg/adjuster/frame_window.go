package adjuster

import "time"

// FrameWindowConfig configures the sliding frame window.
type FrameWindowConfig struct {
	// WindowSize is the media-time span covered by the window.
	// Default: 1 second.
	WindowSize time.Duration
}

// DefaultFrameWindowConfig returns the default frame window configuration.
func DefaultFrameWindowConfig() FrameWindowConfig {
	return FrameWindowConfig{
		WindowSize: time.Second,
	}
}

// frameSample is one encoded frame accounted in the window.
type frameSample struct {
	duration     time.Duration
	bits         int64
	expectedBits float64
}

// FrameWindow tracks encoded frames over a sliding window of media time.
//
// Frames carry no timestamps; each one occupies the frame interval it was
// produced at, so the window span is the sum of the intervals it holds. Next
// to the produced bits the window keeps the bits the codec was asked for,
// which lets callers derive the codec's gain over exactly the same frames.
//
// Usage:
//
//	w := NewFrameWindow(DefaultFrameWindowConfig())
//	w.Update(sizeBytes*8, budgetBits, time.Second/30)
//	if rate, ok := w.Rate(); ok {
//	    fmt.Printf("Produced: %d bps\n", rate)
//	}
type FrameWindow struct {
	windowSize    time.Duration
	samples       []frameSample
	span          time.Duration
	totalBits     int64
	totalExpected float64
}

// NewFrameWindow creates a frame window with the given configuration.
func NewFrameWindow(config FrameWindowConfig) *FrameWindow {
	windowSize := config.WindowSize
	if windowSize <= 0 {
		windowSize = time.Second
	}
	return &FrameWindow{
		windowSize: windowSize,
		samples:    make([]frameSample, 0, 64),
	}
}

// Update adds one frame of the given size and interval. expectedBits is the
// per-frame budget the codec was configured with when it produced the frame.
//
// The oldest frames are evicted until the span fits the window again. The
// newest frame is always kept, even if its interval alone exceeds the window.
func (w *FrameWindow) Update(bits int64, expectedBits float64, interval time.Duration) {
	if bits < 0 {
		bits = 0
	}
	w.samples = append(w.samples, frameSample{
		duration:     interval,
		bits:         bits,
		expectedBits: expectedBits,
	})
	w.span += interval
	w.totalBits += bits
	w.totalExpected += expectedBits

	w.removeExpired()
}

// Rate returns the produced bitrate in bits per second over the window.
// Returns (0, false) if the window is empty or spans no time.
func (w *FrameWindow) Rate() (bitsPerSec int64, ok bool) {
	if len(w.samples) == 0 || w.span <= 0 {
		return 0, false
	}
	return int64(float64(w.totalBits) / w.span.Seconds()), true
}

// Gain returns produced bits divided by budgeted bits over the window.
// Returns (0, false) if nothing was budgeted.
func (w *FrameWindow) Gain() (float64, bool) {
	if w.totalExpected <= 0 {
		return 0, false
	}
	return float64(w.totalBits) / w.totalExpected, true
}

// Len returns the number of frames currently in the window.
func (w *FrameWindow) Len() int {
	return len(w.samples)
}

// Span returns the media time covered by the frames in the window.
func (w *FrameWindow) Span() time.Duration {
	return w.span
}

// Reset clears all frames.
func (w *FrameWindow) Reset() {
	w.samples = w.samples[:0]
	w.span = 0
	w.totalBits = 0
	w.totalExpected = 0
}

func (w *FrameWindow) removeExpired() {
	expired := 0
	for expired < len(w.samples)-1 && w.span > w.windowSize {
		s := w.samples[expired]
		w.span -= s.duration
		w.totalBits -= s.bits
		w.totalExpected -= s.expectedBits
		expired++
	}
	if expired > 0 {
		w.samples = w.samples[expired:]
	}
	if w.totalExpected < 0 {
		// float residue after many evictions
		w.totalExpected = 0
	}
}
