package adjuster

import "sync"

// Synchronized serializes access to an Adjuster so targets and frame reports
// may arrive from different goroutines. Every wrapped operation is
// non-blocking apart from the mutex itself.
type Synchronized struct {
	mu sync.Mutex
	a  Adjuster
}

var _ Adjuster = (*Synchronized)(nil)

// NewSynchronized wraps a. Wrapping an already synchronized adjuster returns
// it unchanged.
func NewSynchronized(a Adjuster) *Synchronized {
	if s, ok := a.(*Synchronized); ok {
		return s
	}
	return &Synchronized{a: a}
}

// SetTargets implements Adjuster.
func (s *Synchronized) SetTargets(targetBitrateBps int64, targetFps int) {
	s.mu.Lock()
	s.a.SetTargets(targetBitrateBps, targetFps)
	s.mu.Unlock()
}

// ReportEncodedFrame implements Adjuster.
func (s *Synchronized) ReportEncodedFrame(sizeBytes int) {
	s.mu.Lock()
	s.a.ReportEncodedFrame(sizeBytes)
	s.mu.Unlock()
}

// AdjustedBitrateBps implements Adjuster.
func (s *Synchronized) AdjustedBitrateBps() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.AdjustedBitrateBps()
}

// CodecConfigFramerate implements Adjuster.
func (s *Synchronized) CodecConfigFramerate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.CodecConfigFramerate()
}

// Output returns the adjusted bitrate and codec framerate as one consistent
// pair.
func (s *Synchronized) Output() (bitrateBps int64, fps int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.AdjustedBitrateBps(), s.a.CodecConfigFramerate()
}

// State implements Adjuster.
func (s *Synchronized) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.State()
}

// Snapshot implements Adjuster.
func (s *Synchronized) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Snapshot()
}

// Unwrap returns the wrapped adjuster. The caller must not use it
// concurrently with s.
func (s *Synchronized) Unwrap() Adjuster {
	return s.a
}
