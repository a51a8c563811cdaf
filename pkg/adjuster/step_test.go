package adjuster

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/adjuster/pkg/adjuster/simcodec"
)

func TestStepAdjuster_FreshReturnsZero(t *testing.T) {
	s := NewStepAdjuster(DefaultStepConfig())

	assert.Equal(t, int64(0), s.AdjustedBitrateBps())
	assert.Equal(t, 0, s.CodecConfigFramerate())
	assert.Equal(t, StateUninitialized, s.State())
	assert.Equal(t, 1.0, s.Scale())
}

func TestStepAdjuster_ZeroConfigUsesDefaults(t *testing.T) {
	s := NewStepAdjuster(StepConfig{})
	d := DefaultStepConfig()

	assert.Equal(t, d.MaxScale, s.config.MaxScale)
	assert.Equal(t, d.Steps, s.config.Steps)
	assert.Equal(t, d.AdjustmentPeriod, s.config.AdjustmentPeriod)
	assert.Equal(t, d.DeviationCapSeconds, s.config.DeviationCapSeconds)
}

func TestStepAdjuster_NoChangeWithinFirstPeriod(t *testing.T) {
	s := NewStepAdjuster(DefaultStepConfig())
	s.SetTargets(500_000, 30)

	// 90 frames at 30fps is exactly one period; the scale moves only after it
	for i := 0; i < 90; i++ {
		s.ReportEncodedFrame(2500)
	}

	assert.Equal(t, int64(500_000), s.AdjustedBitrateBps())
}

func TestStepAdjuster_OvershootStepsDown(t *testing.T) {
	s := NewStepAdjuster(DefaultStepConfig())
	s.SetTargets(500_000, 30)

	// 20% overshoot accumulates 12.5 kB/s. After the first period the
	// deviation (~38 kB) is below one second of target output (62.5 kB);
	// after the second it exceeds it and the exponent moves by one step.
	for i := 0; i < 91; i++ {
		s.ReportEncodedFrame(2500)
	}
	assert.Equal(t, int64(500_000), s.AdjustedBitrateBps())

	for i := 0; i < 91; i++ {
		s.ReportEncodedFrame(2500)
	}
	assert.InDelta(t, 500_000*math.Pow(4, -1.0/20), s.AdjustedBitrateBps(), 1)
	assert.Equal(t, 30, s.CodecConfigFramerate())
}

func TestStepAdjuster_UndershootStepsUp(t *testing.T) {
	s := NewStepAdjuster(DefaultStepConfig())
	s.SetTargets(500_000, 30)

	// Empty frames: 62.5 kB/s short, capped at 3 seconds' worth
	for i := 0; i < 91; i++ {
		s.ReportEncodedFrame(0)
	}

	// Deviation -187.5 kB = 3 seconds of output -> three steps up
	assert.InDelta(t, 500_000*math.Pow(4, 3.0/20), s.AdjustedBitrateBps(), 1)
}

func TestStepAdjuster_ScaleBounded(t *testing.T) {
	s := NewStepAdjuster(DefaultStepConfig())
	s.SetTargets(500_000, 30)

	for i := 0; i < 30*120; i++ {
		s.ReportEncodedFrame(1 << 24)
	}

	assert.InDelta(t, 0.25, s.Scale(), 1e-9)
	assert.Equal(t, int64(125_000), s.AdjustedBitrateBps())

	s.SetTargets(1_000_000, 30)
	for i := 0; i < 30*120; i++ {
		s.ReportEncodedFrame(0)
	}
	assert.InDelta(t, 4.0, s.Scale(), 1e-9)
}

func TestStepAdjuster_ClosedLoop(t *testing.T) {
	tests := []struct {
		name  string
		bias  float64
		below bool
	}{
		{"overshooting codec", 1.2, true},
		{"undershooting codec", 0.8, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStepAdjuster(DefaultStepConfig())
			s.SetTargets(500_000, 30)
			codec := simcodec.New(simcodec.Config{Bias: tt.bias})

			runClosedLoop(s, codec, 30*20)

			if tt.below {
				assert.Less(t, s.AdjustedBitrateBps(), int64(500_000))
			} else {
				assert.Greater(t, s.AdjustedBitrateBps(), int64(500_000))
			}
		})
	}
}

func TestStepAdjuster_NewTargetResets(t *testing.T) {
	s := NewStepAdjuster(DefaultStepConfig())
	s.SetTargets(500_000, 30)
	for i := 0; i < 91; i++ {
		s.ReportEncodedFrame(0)
	}
	require.Greater(t, s.Scale(), 1.0)

	s.SetTargets(800_000, 30)

	assert.Equal(t, int64(800_000), s.AdjustedBitrateBps())
	assert.Equal(t, 0.0, s.deviationBytes)
	assert.Equal(t, time.Duration(0), s.sinceAdjustment)
}

func TestStepAdjuster_SmallDecreaseRescalesDeviation(t *testing.T) {
	s := NewStepAdjuster(DefaultStepConfig())
	s.SetTargets(500_000, 30)
	for i := 0; i < 30; i++ {
		s.ReportEncodedFrame(2500)
	}
	before := s.deviationBytes
	require.Greater(t, before, 0.0)

	s.SetTargets(497_500, 30) // -0.5%, below the reset threshold

	assert.InDelta(t, before*0.995, s.deviationBytes, 1e-6)
}

func TestStepAdjuster_BitrateBounds(t *testing.T) {
	config := DefaultStepConfig()
	config.MaxBitrateBps = 600_000
	s := NewStepAdjuster(config)
	s.SetTargets(500_000, 30)
	for i := 0; i < 91; i++ {
		s.ReportEncodedFrame(0)
	}

	assert.Equal(t, int64(600_000), s.AdjustedBitrateBps())
}

func TestStepAdjuster_Snapshot(t *testing.T) {
	s := NewStepAdjuster(DefaultStepConfig())
	s.SetTargets(500_000, 30)
	s.ReportEncodedFrame(100)

	snap := s.Snapshot()
	assert.Equal(t, int64(500_000), snap.AdjustedBitrateBps)
	assert.Equal(t, 1.0, snap.CorrectionRatio)
	assert.Equal(t, uint64(1), snap.FramesReported)
}
