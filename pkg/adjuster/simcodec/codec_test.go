package simcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodec_UnconfiguredProducesEmptyFrames(t *testing.T) {
	c := New(Config{})

	assert.Equal(t, 0, c.NextFrame())
	assert.Equal(t, uint64(1), c.Frames())
}

func TestCodec_PerfectCodecHitsBudget(t *testing.T) {
	c := New(Config{})
	c.Configure(480_000, 30)

	// 480000 / 30 / 8 = 2000 bytes
	assert.Equal(t, 2000, c.NextFrame())
}

func TestCodec_Bias(t *testing.T) {
	c := New(Config{Bias: 1.2})
	c.Configure(500_000, 30)

	assert.Equal(t, 2500, c.NextFrame())

	c.Configure(500_000, 15)
	assert.Equal(t, 5000, c.NextFrame())
	assert.Equal(t, int64(7500), c.TotalBytes())
}

func TestCodec_JitterIsDeterministicPerSeed(t *testing.T) {
	a := New(Config{Jitter: 0.2, Seed: 7})
	b := New(Config{Jitter: 0.2, Seed: 7})
	a.Configure(1_000_000, 30)
	b.Configure(1_000_000, 30)

	var total int
	for i := 0; i < 3000; i++ {
		sa, sb := a.NextFrame(), b.NextFrame()
		assert.Equal(t, sa, sb)
		assert.GreaterOrEqual(t, sa, 0)
		total += sa
	}

	// Mean stays close to the 4166-byte budget
	assert.InDelta(t, 4166, float64(total)/3000, 60)
}
