package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock_Advance(t *testing.T) {
	c := NewManualClock(time.Time{})
	start := c.Now()
	assert.False(t, start.IsZero())

	c.Advance(250 * time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, c.Now().Sub(start))

	assert.Panics(t, func() { c.Advance(-time.Second) })
}

func TestSystemClock_NonDecreasing(t *testing.T) {
	var c Clock = SystemClock{}
	a := c.Now()
	b := c.Now()
	assert.False(t, b.Before(a))
}
