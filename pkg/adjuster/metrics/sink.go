// Package metrics delivers adjuster snapshots to statistics observers.
//
// The adjuster core never imports this package; the interceptor pushes
// snapshots to a Sink on a timer.
package metrics

import (
	"sort"
	"sync"

	"github.com/thesyncim/adjuster/pkg/adjuster"
)

// Sink receives snapshots for a named stream. Implementations must be safe
// for concurrent use.
type Sink interface {
	Observe(streamID string, s adjuster.Snapshot)
}

// Forgetter is implemented by sinks that hold per-stream state.
type Forgetter interface {
	Forget(streamID string)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(streamID string, s adjuster.Snapshot)

// Observe calls f(streamID, s).
func (f SinkFunc) Observe(streamID string, s adjuster.Snapshot) {
	f(streamID, s)
}

// Tee returns a Sink forwarding every snapshot to all non-nil sinks. Forget
// reaches every member that implements Forgetter.
func Tee(sinks ...Sink) Sink {
	out := make(tee, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type tee []Sink

func (t tee) Observe(streamID string, s adjuster.Snapshot) {
	for _, sink := range t {
		sink.Observe(streamID, s)
	}
}

func (t tee) Forget(streamID string) {
	for _, sink := range t {
		if f, ok := sink.(Forgetter); ok {
			f.Forget(streamID)
		}
	}
}

// Recorder keeps the latest snapshot per stream.
type Recorder struct {
	mu     sync.RWMutex
	latest map[string]adjuster.Snapshot
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{latest: make(map[string]adjuster.Snapshot)}
}

// Observe stores s as the latest snapshot of streamID.
func (r *Recorder) Observe(streamID string, s adjuster.Snapshot) {
	r.mu.Lock()
	r.latest[streamID] = s
	r.mu.Unlock()
}

// Forget drops a stream.
func (r *Recorder) Forget(streamID string) {
	r.mu.Lock()
	delete(r.latest, streamID)
	r.mu.Unlock()
}

// Latest returns a copy of the latest snapshots keyed by stream.
func (r *Recorder) Latest() map[string]adjuster.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]adjuster.Snapshot, len(r.latest))
	for k, v := range r.latest {
		out[k] = v
	}
	return out
}

// Streams returns the recorded stream IDs in sorted order.
func (r *Recorder) Streams() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.latest))
	for k := range r.latest {
		ids = append(ids, k)
	}
	sort.Strings(ids)
	return ids
}
