package interceptor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/thesyncim/adjuster/pkg/adjuster"
)

// streamState tracks one outgoing video SSRC: its adjuster, the frame being
// assembled and the framerate the application targets.
type streamState struct {
	ssrc uint32
	adj  *adjuster.Synchronized

	// mu guards the assembler and fps. The adjuster has its own lock and is
	// only ever locked after mu.
	mu         sync.Mutex
	asm        frameAssembler
	fps        int
	lastActive time.Time

	// evicted is set while the stream is dropped for idleness but still bound.
	evicted atomic.Bool
}

func newStreamState(ssrc uint32, adj *adjuster.Synchronized, fps int, now time.Time) *streamState {
	return &streamState{
		ssrc:       ssrc,
		adj:        adj,
		fps:        fps,
		lastActive: now,
	}
}

// onPacket feeds an outgoing packet into the assembler.
func (s *streamState) onPacket(timestamp uint32, marker bool, payloadBytes int, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = now
	s.asm.push(timestamp, marker, payloadBytes, now, s.adj.ReportEncodedFrame)
}

// flush emits a stale partial frame.
func (s *streamState) flush(now time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asm.flushStale(now, timeout, s.adj.ReportEncodedFrame)
}

// setTargets forwards targets to the adjuster. A non-positive fps keeps the
// stream's current framerate.
func (s *streamState) setTargets(bitrateBps int64, fps int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fps > 0 {
		s.fps = fps
	}
	s.adj.SetTargets(bitrateBps, s.fps)
	return s.fps
}

func (s *streamState) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActive)
}
