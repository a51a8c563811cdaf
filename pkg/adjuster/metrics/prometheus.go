package metrics

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/thesyncim/adjuster/pkg/adjuster"
)

const streamLabel = "stream"

// PrometheusSink exports snapshots as Prometheus gauges labelled by stream.
type PrometheusSink struct {
	targetBitrate   *prometheus.GaugeVec
	adjustedBitrate *prometheus.GaugeVec
	codecFramerate  *prometheus.GaugeVec
	measuredBitrate *prometheus.GaugeVec
	ratio           *prometheus.GaugeVec
	frames          *prometheus.CounterVec

	mu         sync.Mutex
	lastFrames map[string]uint64
}

var _ Sink = (*PrometheusSink)(nil)

// NewPrometheusSink creates the collectors under namespace and registers
// them with reg.
func NewPrometheusSink(reg prometheus.Registerer, namespace string) (*PrometheusSink, error) {
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "adjuster",
			Name:      name,
			Help:      help,
		}, []string{streamLabel})
	}

	p := &PrometheusSink{
		targetBitrate:   gauge("target_bitrate_bps", "Target bitrate requested by the bandwidth estimator."),
		adjustedBitrate: gauge("adjusted_bitrate_bps", "Bitrate configured into the codec."),
		codecFramerate:  gauge("codec_config_framerate", "Framerate configured into the codec."),
		measuredBitrate: gauge("measured_bitrate_bps", "Windowed estimate of the bitrate the codec produced."),
		ratio:           gauge("correction_ratio", "Multiplier applied to the target bitrate."),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "adjuster",
			Name:      "frames_reported_total",
			Help:      "Encoded frames reported to the adjuster.",
		}, []string{streamLabel}),
		lastFrames: make(map[string]uint64),
	}

	for _, c := range []prometheus.Collector{
		p.targetBitrate, p.adjustedBitrate, p.codecFramerate, p.measuredBitrate, p.ratio, p.frames,
	} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "register adjuster collector")
		}
	}
	return p, nil
}

// Observe updates the collectors of streamID.
func (p *PrometheusSink) Observe(streamID string, s adjuster.Snapshot) {
	p.targetBitrate.WithLabelValues(streamID).Set(float64(s.TargetBitrateBps))
	p.adjustedBitrate.WithLabelValues(streamID).Set(float64(s.AdjustedBitrateBps))
	p.codecFramerate.WithLabelValues(streamID).Set(float64(s.CodecConfigFramerate))
	p.measuredBitrate.WithLabelValues(streamID).Set(float64(s.MeasuredBitrateBps))
	p.ratio.WithLabelValues(streamID).Set(s.CorrectionRatio)

	p.mu.Lock()
	last := p.lastFrames[streamID]
	p.lastFrames[streamID] = s.FramesReported
	p.mu.Unlock()
	if s.FramesReported > last {
		p.frames.WithLabelValues(streamID).Add(float64(s.FramesReported - last))
	}
}

// Forget removes every series of streamID.
func (p *PrometheusSink) Forget(streamID string) {
	for _, g := range []*prometheus.GaugeVec{
		p.targetBitrate, p.adjustedBitrate, p.codecFramerate, p.measuredBitrate, p.ratio,
	} {
		g.DeleteLabelValues(streamID)
	}
	p.frames.DeleteLabelValues(streamID)

	p.mu.Lock()
	delete(p.lastFrames, streamID)
	p.mu.Unlock()
}
