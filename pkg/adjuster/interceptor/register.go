package interceptor

import (
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/pkg/errors"
)

// Register enables REMB feedback for video on m and adds an adjuster
// factory to r. The returned factory is already registered.
func Register(m *webrtc.MediaEngine, r *interceptor.Registry, opts ...Option) (*Factory, error) {
	m.RegisterFeedback(webrtc.RTCPFeedback{Type: webrtc.TypeRTCPFBGoogREMB}, webrtc.RTPCodecTypeVideo)

	f, err := NewFactory(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create adjuster factory")
	}
	r.Add(f)
	return f, nil
}
