// Package interceptor provides a sender-side Pion WebRTC interceptor that
// attaches a rate adjuster to every outgoing video stream.
//
// The interceptor measures the size of each encoded frame from the RTP
// packets it writes and turns receiver REMB feedback into adjuster targets.
// The application reads the bitrate and framerate to configure its encoder
// from the stream's adjuster.
//
// # Quick Start
//
//	m := &webrtc.MediaEngine{}
//	if err := m.RegisterDefaultCodecs(); err != nil {
//	    return err
//	}
//	registry := &interceptor.Registry{}
//
//	var ai *adjint.AdjusterInterceptor
//	if _, err := adjint.Register(m, registry,
//	    adjint.WithKind(adjuster.KindWindowed),
//	    adjint.WithOnNewInterceptor(func(_ string, i *adjint.AdjusterInterceptor) { ai = i }),
//	); err != nil {
//	    return err
//	}
//
//	api := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(registry))
//
// After every encoded frame the encoder loop reads its configuration:
//
//	if a, ok := ai.Adjuster(ssrc); ok {
//	    bitrate, fps := a.Output()
//	    encoder.Configure(bitrate, fps)
//	}
//
// # Frame Assembly
//
// Packets of one SSRC are grouped by RTP timestamp. A frame is complete when
// a packet carries the marker bit or the timestamp changes. Partial frames
// that see no packets for the frame timeout (500ms by default) are reported
// with the bytes seen so far. Padding-only packets and retransmission or FEC
// streams are ignored.
//
// # Feedback
//
// A REMB estimate is split evenly between the SSRCs it lists that this
// interceptor tracks. Each share is applied with the stream's current
// target framerate.
package interceptor
