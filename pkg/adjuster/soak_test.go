package adjuster

import (
	"math"
	"math/rand"
	"runtime"
	"testing"

	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/adjuster/pkg/adjuster/simcodec"
)

func quietLogger() Option {
	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = logging.LogLevelDisabled
	return WithLoggerFactory(lf)
}

// =============================================================================
// Accelerated Soak
// =============================================================================

// TestSoak1Hour_Accelerated drives every strategy through one hour of 30fps
// media with a noisy codec and a target that moves every ten seconds. Frame
// time is implied by the target framerate, so the hour runs instantly.
func TestSoak1Hour_Accelerated(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping soak test in short mode")
	}

	const (
		fps            = 30
		frames         = 60 * 60 * fps
		retargetFrames = 10 * fps
		memoryLimitMB  = 50
	)

	windowed := DefaultWindowedConfig()
	windowed.MinBitrateBps = 50_000
	windowed.MaxBitrateBps = 8_000_000

	strategies := map[string]func() Adjuster{
		"base":      func() Adjuster { return NewBaseAdjuster() },
		"windowed":  func() Adjuster { return NewWindowedAdjuster(windowed, quietLogger()) },
		"step":      func() Adjuster { return NewStepAdjuster(DefaultStepConfig(), quietLogger()) },
		"framerate": func() Adjuster { return NewFramerateAdjuster(DefaultFramerateConfig()) },
	}

	for name, build := range strategies {
		t.Run(name, func(t *testing.T) {
			a := build()
			codec := simcodec.New(simcodec.Config{Bias: 1.3, Jitter: 0.3, Seed: 7})
			rng := rand.New(rand.NewSource(11))

			var start, current runtime.MemStats
			runtime.GC()
			runtime.ReadMemStats(&start)

			for n := 0; n < frames; n++ {
				if n%retargetFrames == 0 {
					a.SetTargets(int64(100_000+rng.Intn(3_000_000)), fps)
				}
				codec.Configure(a.AdjustedBitrateBps(), a.CodecConfigFramerate())
				a.ReportEncodedFrame(codec.NextFrame())

				adjusted := a.AdjustedBitrateBps()
				require.GreaterOrEqual(t, adjusted, int64(0), "frame %d", n)
				if name == "windowed" {
					require.GreaterOrEqual(t, adjusted, windowed.MinBitrateBps, "frame %d", n)
					require.LessOrEqual(t, adjusted, windowed.MaxBitrateBps, "frame %d", n)
				}
				s := a.Snapshot()
				require.False(t, math.IsNaN(s.CorrectionRatio) || math.IsInf(s.CorrectionRatio, 0), "frame %d", n)
			}

			runtime.GC()
			runtime.ReadMemStats(&current)
			heapMB := float64(current.HeapAlloc) / (1024 * 1024)
			assert.Less(t, heapMB, float64(memoryLimitMB))
			assert.Equal(t, uint64(frames), a.Snapshot().FramesReported)
		})
	}
}

// TestSoak_WindowStaysBounded checks the frame window never grows past one
// window of frames however long it runs.
func TestSoak_WindowStaysBounded(t *testing.T) {
	w := NewWindowedAdjuster(DefaultWindowedConfig(), quietLogger())
	w.SetTargets(1_000_000, 60)

	for n := 0; n < 100_000; n++ {
		w.ReportEncodedFrame(2000 + n%700)
		require.LessOrEqual(t, w.window.Len(), 61)
	}
}
