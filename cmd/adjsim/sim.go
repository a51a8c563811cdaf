package main

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/pion/logging"

	"github.com/thesyncim/adjuster/pkg/adjuster"
	"github.com/thesyncim/adjuster/pkg/adjuster/metrics"
	"github.com/thesyncim/adjuster/pkg/adjuster/simcodec"
)

const simStreamID = "sim"

// result summarizes a simulation run.
type result struct {
	Frames int
	// Errors holds the relative error of the produced bitrate against the
	// target, one sample per second of media.
	Errors stats.Float64Data
	Final  adjuster.Snapshot
}

// simulate runs the codec and adjuster in a closed loop: before every frame
// the codec is configured from the adjuster and the frame it produces is
// reported back. A snapshot goes to sink once per second of media.
func simulate(ctx context.Context, cfg simConfig, sink metrics.Sink, lf logging.LoggerFactory) (result, error) {
	a, err := adjuster.New(cfg.Adjuster, adjuster.WithLoggerFactory(lf))
	if err != nil {
		return result{}, err
	}
	codec := simcodec.New(cfg.Codec)

	bitrate, fps := cfg.BitrateBps, cfg.Fps
	a.SetTargets(bitrate, fps)

	var res result
	var secondBits int64
	var secondFrames int
	schedule := cfg.Schedule

	for n := 0; n < cfg.Frames; n++ {
		if n%256 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		for len(schedule) > 0 && schedule[0].Frame <= n {
			bitrate = schedule[0].BitrateBps
			if schedule[0].Fps > 0 {
				fps = schedule[0].Fps
			}
			schedule = schedule[1:]
			a.SetTargets(bitrate, fps)
			secondBits, secondFrames = 0, 0
		}

		codec.Configure(a.AdjustedBitrateBps(), a.CodecConfigFramerate())
		size := codec.NextFrame()
		a.ReportEncodedFrame(size)
		res.Frames++

		secondBits += int64(size) * 8
		secondFrames++
		if secondFrames == fps {
			if bitrate > 0 {
				res.Errors = append(res.Errors, float64(secondBits)/float64(bitrate)-1)
			}
			secondBits, secondFrames = 0, 0
			if sink != nil {
				sink.Observe(simStreamID, a.Snapshot())
			}
		}
	}

	res.Final = a.Snapshot()
	if sink != nil {
		sink.Observe(simStreamID, res.Final)
	}
	return res, nil
}

func printSummary(w io.Writer, cfg simConfig, res result) {
	fmt.Fprintf(w, "adjuster: %s\n", cfg.Adjuster.Kind)
	fmt.Fprintf(w, "codec:    bias %.2f, jitter %.2f\n", cfg.Codec.Bias, cfg.Codec.Jitter)
	fmt.Fprintf(w, "frames:   %d\n", res.Frames)

	if len(res.Errors) > 0 {
		abs := make(stats.Float64Data, len(res.Errors))
		for i, e := range res.Errors {
			abs[i] = math.Abs(e)
		}
		mean, _ := res.Errors.Mean()
		p50, _ := abs.Median()
		p95, _ := abs.Percentile(95)
		fmt.Fprintf(w, "bitrate error per second: mean %+.2f%%, |p50| %.2f%%, |p95| %.2f%%\n",
			mean*100, p50*100, p95*100)
	}

	s := res.Final
	fmt.Fprintf(w, "final:    target %d bps @ %d fps, adjusted %d bps @ %d fps, measured %d bps, ratio %.3f\n",
		s.TargetBitrateBps, s.TargetFps, s.AdjustedBitrateBps, s.CodecConfigFramerate,
		s.MeasuredBitrateBps, s.CorrectionRatio)
}
