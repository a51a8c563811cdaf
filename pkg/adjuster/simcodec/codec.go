// Package simcodec models a video encoder whose rate controller misses its
// configured bitrate by a constant bias plus per-frame noise.
package simcodec

import (
	"math"
	"math/rand"
)

// Config configures the simulated codec.
type Config struct {
	// Bias is the ratio of produced to configured bitrate.
	// Default: 1 (a perfect rate controller).
	Bias float64 `yaml:"bias"`

	// Jitter is the standard deviation of per-frame size noise, relative to
	// the frame budget. Default: 0.
	Jitter float64 `yaml:"jitter"`

	// Seed seeds the noise source.
	Seed int64 `yaml:"seed"`
}

// Codec produces frame sizes for a configured bitrate and framerate.
// It is not safe for concurrent use.
type Codec struct {
	bias   float64
	jitter float64
	rng    *rand.Rand

	bitrateBps int64
	fps        int
	frames     uint64
	totalBytes int64
}

// New creates a codec with the given configuration.
func New(cfg Config) *Codec {
	if cfg.Bias <= 0 {
		cfg.Bias = 1
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	return &Codec{
		bias:   cfg.Bias,
		jitter: cfg.Jitter,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Configure sets the bitrate and framerate the codec's rate controller
// assumes.
func (c *Codec) Configure(bitrateBps int64, fps int) {
	c.bitrateBps = bitrateBps
	c.fps = fps
}

// NextFrame encodes one frame and returns its size in bytes. An
// unconfigured codec produces empty frames.
func (c *Codec) NextFrame() int {
	if c.fps <= 0 || c.bitrateBps <= 0 {
		c.frames++
		return 0
	}
	budget := float64(c.bitrateBps) / float64(c.fps) / 8
	size := c.bias * budget
	if c.jitter > 0 {
		size *= 1 + c.jitter*c.rng.NormFloat64()
	}
	n := int(math.Round(math.Max(size, 0)))
	c.frames++
	c.totalBytes += int64(n)
	return n
}

// Frames returns the number of frames produced.
func (c *Codec) Frames() uint64 {
	return c.frames
}

// TotalBytes returns the bytes produced across all frames.
func (c *Codec) TotalBytes() int64 {
	return c.totalBytes
}
