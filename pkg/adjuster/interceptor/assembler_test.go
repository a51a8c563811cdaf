package interceptor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type frameLog struct {
	sizes []int
}

func (f *frameLog) emit(size int) {
	f.sizes = append(f.sizes, size)
}

func TestFrameAssembler_MarkerCompletesFrame(t *testing.T) {
	var a frameAssembler
	var log frameLog
	now := time.Unix(100, 0)

	a.push(1000, false, 1200, now, log.emit)
	a.push(1000, false, 1200, now, log.emit)
	assert.Empty(t, log.sizes)

	a.push(1000, true, 600, now, log.emit)
	assert.Equal(t, []int{3000}, log.sizes)
	assert.False(t, a.inProgress)
}

func TestFrameAssembler_TimestampChangeCompletesFrame(t *testing.T) {
	var a frameAssembler
	var log frameLog
	now := time.Unix(100, 0)

	// Marker lost: the next frame's first packet closes the previous frame.
	a.push(1000, false, 500, now, log.emit)
	a.push(1000, false, 500, now, log.emit)
	a.push(4000, false, 700, now, log.emit)
	assert.Equal(t, []int{1000}, log.sizes)

	// Single-packet frame with a marker emits both pending and new frame.
	a.push(7000, true, 300, now, log.emit)
	assert.Equal(t, []int{1000, 700, 300}, log.sizes)
}

func TestFrameAssembler_LatePacketOfCompletedFrameIgnored(t *testing.T) {
	var a frameAssembler
	var log frameLog
	now := time.Unix(100, 0)

	a.push(1000, true, 800, now, log.emit)
	a.push(1000, false, 200, now, log.emit)
	assert.Equal(t, []int{800}, log.sizes)
	assert.False(t, a.inProgress)

	a.push(4000, true, 900, now, log.emit)
	assert.Equal(t, []int{800, 900}, log.sizes)
}

func TestFrameAssembler_FlushStale(t *testing.T) {
	var a frameAssembler
	var log frameLog
	start := time.Unix(100, 0)

	assert.False(t, a.flushStale(start, time.Second, log.emit), "nothing in progress")

	a.push(1000, false, 400, start, log.emit)
	assert.False(t, a.flushStale(start.Add(100*time.Millisecond), 500*time.Millisecond, log.emit))
	assert.Empty(t, log.sizes)

	assert.True(t, a.flushStale(start.Add(500*time.Millisecond), 500*time.Millisecond, log.emit))
	assert.Equal(t, []int{400}, log.sizes)

	// The rest of the flushed frame must not count as a new frame.
	a.push(1000, true, 100, start.Add(600*time.Millisecond), log.emit)
	assert.Equal(t, []int{400}, log.sizes)
}
