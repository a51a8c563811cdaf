package interceptor

import "time"

// frameAssembler groups outgoing RTP packets of one SSRC into encoded frames.
// All packets of a video frame share an RTP timestamp and the last one
// carries the marker bit.
type frameAssembler struct {
	inProgress bool
	timestamp  uint32
	bytes      int
	lastPacket time.Time

	// completed remembers the timestamp of the last emitted frame so that
	// packets reordered behind its marker are not counted as a new frame.
	completed    uint32
	hasCompleted bool
}

// push adds a packet's payload to the frame it belongs to and calls emit
// with the size of every frame it completes.
func (a *frameAssembler) push(timestamp uint32, marker bool, payloadBytes int, now time.Time, emit func(sizeBytes int)) {
	if a.inProgress && timestamp != a.timestamp {
		a.finish(emit)
	}
	if !a.inProgress {
		if a.hasCompleted && timestamp == a.completed {
			return
		}
		a.inProgress = true
		a.timestamp = timestamp
		a.bytes = 0
	}

	a.bytes += payloadBytes
	a.lastPacket = now

	if marker {
		a.finish(emit)
	}
}

// flushStale emits the frame in progress if no packet for it arrived within
// timeout. It reports whether a frame was emitted.
func (a *frameAssembler) flushStale(now time.Time, timeout time.Duration, emit func(sizeBytes int)) bool {
	if !a.inProgress || now.Sub(a.lastPacket) < timeout {
		return false
	}
	a.finish(emit)
	return true
}

func (a *frameAssembler) finish(emit func(sizeBytes int)) {
	emit(a.bytes)
	a.completed = a.timestamp
	a.hasCompleted = true
	a.inProgress = false
	a.bytes = 0
}
