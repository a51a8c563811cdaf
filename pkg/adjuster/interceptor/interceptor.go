package interceptor

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"

	"github.com/thesyncim/adjuster/pkg/adjuster"
	"github.com/thesyncim/adjuster/pkg/adjuster/metrics"
)

// minHousekeepingInterval bounds how often stale frames are checked for.
const minHousekeepingInterval = 10 * time.Millisecond

// AdjusterInterceptor is a sender-side Pion interceptor that keeps one rate
// adjuster per outgoing video stream. It measures encoded frame sizes from
// the RTP packets it writes and retargets the adjusters from REMB feedback.
//
// The encoder reads the values to configure from Adjuster(ssrc).
type AdjusterInterceptor struct {
	interceptor.NoOp

	settings settings
	log      logging.LeveledLogger
	streams  sync.Map // SSRC (uint32) -> *streamState

	// sinkMu orders Observe calls against Forget for removed streams.
	sinkMu sync.Mutex

	closed    chan struct{}
	closeOnce sync.Once
	startOnce sync.Once
	wg        sync.WaitGroup
}

// NewAdjusterInterceptor creates an interceptor outside of a Factory.
func NewAdjusterInterceptor(opts ...Option) (*AdjusterInterceptor, error) {
	s, err := buildSettings(opts)
	if err != nil {
		return nil, err
	}
	return newAdjusterInterceptor(s), nil
}

func newAdjusterInterceptor(s settings) *AdjusterInterceptor {
	return &AdjusterInterceptor{
		settings: s,
		log:      s.loggerFactory.NewLogger("adjuster_interceptor"),
		closed:   make(chan struct{}),
	}
}

// Close stops the background loops.
func (i *AdjusterInterceptor) Close() error {
	i.closeOnce.Do(func() {
		close(i.closed)
	})
	i.wg.Wait()
	return nil
}

// BindLocalStream tracks outgoing video streams and observes their packets.
func (i *AdjusterInterceptor) BindLocalStream(info *interceptor.StreamInfo, writer interceptor.RTPWriter) interceptor.RTPWriter {
	if !isMeasuredVideo(info.MimeType) {
		return writer
	}

	a, err := adjuster.New(i.settings.config, adjuster.WithLoggerFactory(i.settings.loggerFactory))
	if err != nil {
		i.log.Errorf("ssrc %d: create adjuster: %v", info.SSRC, err)
		return writer
	}

	state := newStreamState(info.SSRC, adjuster.NewSynchronized(a), i.settings.targetFps, i.settings.clock.Now())
	if i.settings.initialBitrate > 0 {
		state.setTargets(i.settings.initialBitrate, 0)
	}
	i.streams.Store(info.SSRC, state)
	i.log.Debugf("tracking ssrc %d (%s)", info.SSRC, info.MimeType)

	i.startOnce.Do(i.startLoops)

	ssrc := info.SSRC
	return interceptor.RTPWriterFunc(func(header *rtp.Header, payload []byte, attributes interceptor.Attributes) (int, error) {
		n, err := writer.Write(header, payload, attributes)
		if err == nil && header.SSRC == ssrc && len(payload) > 0 {
			state.onPacket(header.Timestamp, header.Marker, len(payload), i.settings.clock.Now())
			if state.evicted.CompareAndSwap(true, false) {
				i.resumeStream(state)
			}
		}
		return n, err
	})
}

// UnbindLocalStream drops the stream's adjuster.
func (i *AdjusterInterceptor) UnbindLocalStream(info *interceptor.StreamInfo) {
	i.removeStream(info.SSRC)
}

// BindRTCPReader observes incoming RTCP for REMB feedback.
func (i *AdjusterInterceptor) BindRTCPReader(reader interceptor.RTCPReader) interceptor.RTCPReader {
	return interceptor.RTCPReaderFunc(func(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
		n, attr, err := reader.Read(b, a)
		if err != nil {
			return n, attr, err
		}
		if attr == nil {
			attr = make(interceptor.Attributes)
		}
		pkts, perr := attr.GetRTCPPackets(b[:n])
		if perr != nil {
			i.log.Debugf("unmarshal rtcp: %v", perr)
			return n, attr, nil
		}
		for _, p := range pkts {
			if remb, ok := p.(*rtcp.ReceiverEstimatedMaximumBitrate); ok {
				i.handleREMB(remb)
			}
		}
		return n, attr, nil
	})
}

// handleREMB splits the estimate evenly across the listed SSRCs this
// interceptor tracks.
func (i *AdjusterInterceptor) handleREMB(remb *rtcp.ReceiverEstimatedMaximumBitrate) {
	tracked := make([]*streamState, 0, len(remb.SSRCs))
	for _, ssrc := range remb.SSRCs {
		if v, ok := i.streams.Load(ssrc); ok {
			tracked = append(tracked, v.(*streamState))
		}
	}
	if len(tracked) == 0 {
		return
	}

	share := int64(remb.Bitrate) / int64(len(tracked))
	for _, s := range tracked {
		fps := s.setTargets(share, 0)
		if i.settings.onTargets != nil {
			i.settings.onTargets(s.ssrc, share, fps)
		}
	}
}

// SetTargets updates a stream's targets directly. A non-positive fps keeps
// the stream's current framerate. It reports whether the stream is tracked.
func (i *AdjusterInterceptor) SetTargets(ssrc uint32, bitrateBps int64, fps int) bool {
	v, ok := i.streams.Load(ssrc)
	if !ok {
		return false
	}
	v.(*streamState).setTargets(bitrateBps, fps)
	return true
}

// Adjuster returns the adjuster of a tracked stream.
func (i *AdjusterInterceptor) Adjuster(ssrc uint32) (*adjuster.Synchronized, bool) {
	v, ok := i.streams.Load(ssrc)
	if !ok {
		return nil, false
	}
	return v.(*streamState).adj, true
}

// Snapshots returns the current snapshot of every tracked stream.
func (i *AdjusterInterceptor) Snapshots() map[uint32]adjuster.Snapshot {
	out := make(map[uint32]adjuster.Snapshot)
	i.streams.Range(func(key, value any) bool {
		out[key.(uint32)] = value.(*streamState).adj.Snapshot()
		return true
	})
	return out
}

func (i *AdjusterInterceptor) removeStream(ssrc uint32) {
	if _, loaded := i.streams.LoadAndDelete(ssrc); !loaded {
		return
	}
	i.forget(ssrc)
	i.log.Debugf("dropped ssrc %d", ssrc)
}

// evictIdle drops an idle stream that is still bound. Its writer puts it
// back on the next packet.
func (i *AdjusterInterceptor) evictIdle(s *streamState) {
	if !i.streams.CompareAndDelete(s.ssrc, s) {
		return
	}
	s.evicted.Store(true)
	i.forget(s.ssrc)
	i.log.Debugf("ssrc %d idle, evicted", s.ssrc)
}

func (i *AdjusterInterceptor) resumeStream(s *streamState) {
	if _, loaded := i.streams.LoadOrStore(s.ssrc, s); loaded {
		return
	}
	i.log.Debugf("ssrc %d resumed", s.ssrc)
}

func (i *AdjusterInterceptor) forget(ssrc uint32) {
	f, ok := i.settings.sink.(metrics.Forgetter)
	if !ok {
		return
	}
	i.sinkMu.Lock()
	defer i.sinkMu.Unlock()
	f.Forget(streamID(ssrc))
}

func (i *AdjusterInterceptor) startLoops() {
	i.wg.Add(1)
	go i.housekeepingLoop()

	if i.settings.sink != nil {
		i.wg.Add(1)
		go i.statsLoop()
	}
}

// housekeepingLoop flushes stale frames and drops idle streams.
func (i *AdjusterInterceptor) housekeepingLoop() {
	defer i.wg.Done()

	interval := max(i.settings.frameTimeout/2, minHousekeepingInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-i.closed:
			return
		case <-ticker.C:
			i.housekeep(i.settings.clock.Now())
		}
	}
}

func (i *AdjusterInterceptor) housekeep(now time.Time) {
	i.streams.Range(func(_, value any) bool {
		s := value.(*streamState)
		s.flush(now, i.settings.frameTimeout)
		if i.settings.streamTimeout > 0 && s.idleSince(now) > i.settings.streamTimeout {
			i.evictIdle(s)
		}
		return true
	})
}

func (i *AdjusterInterceptor) statsLoop() {
	defer i.wg.Done()

	ticker := time.NewTicker(i.settings.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-i.closed:
			return
		case <-ticker.C:
			i.publishStats()
		}
	}
}

func (i *AdjusterInterceptor) publishStats() {
	if i.settings.sink == nil {
		return
	}
	i.sinkMu.Lock()
	defer i.sinkMu.Unlock()
	i.streams.Range(func(key, value any) bool {
		i.settings.sink.Observe(streamID(key.(uint32)), value.(*streamState).adj.Snapshot())
		return true
	})
}

func streamID(ssrc uint32) string {
	return strconv.FormatUint(uint64(ssrc), 10)
}

// isMeasuredVideo reports whether a stream carries encoded video frames.
// Retransmission and FEC streams are excluded.
func isMeasuredVideo(mimeType string) bool {
	m := strings.ToLower(mimeType)
	if !strings.HasPrefix(m, "video/") {
		return false
	}
	switch strings.TrimPrefix(m, "video/") {
	case "rtx", "ulpfec", "flexfec-03", "red":
		return false
	}
	return true
}
