// Package statsserver exposes adjuster statistics over HTTP.
//
// /metrics serves the Prometheus registry and /stats serves the latest
// snapshot of every stream as JSON.
package statsserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thesyncim/adjuster/pkg/adjuster/metrics"
)

// Config holds server configuration options.
type Config struct {
	Addr         string        `yaml:"addr"`          // Listen address (":0" picks a random port)
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // HTTP read timeout
	WriteTimeout time.Duration `yaml:"write_timeout"` // HTTP write timeout
}

// DefaultConfig returns a configuration bound to a random local port.
func DefaultConfig() Config {
	return Config{
		Addr:         ":0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server serves the metrics and stats endpoints.
type Server struct {
	httpServer *http.Server
	log        logging.LeveledLogger

	mu      sync.Mutex
	addr    string
	running bool
}

// New creates a server. gatherer may be nil to omit /metrics and recorder
// may be nil to omit /stats. The server is not started until Start is called.
func New(cfg Config, gatherer prometheus.Gatherer, recorder *metrics.Recorder, lf logging.LoggerFactory) *Server {
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	mux := http.NewServeMux()
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	if recorder != nil {
		mux.HandleFunc("/stats", statsHandler(recorder))
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      mux,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		log: lf.NewLogger("adjuster_stats"),
	}
}

// Start begins serving in the background and returns the bound address.
// Calling Start on a running server returns the existing address.
func (s *Server) Start() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return s.addr, nil
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return "", errors.Wrap(err, "listen")
	}

	s.addr = ln.Addr().String()
	s.running = true

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("stats server: %v", err)
		}
	}()

	s.log.Infof("stats server listening on %s", s.addr)
	return s.addr, nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func statsHandler(recorder *metrics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(recorder.Latest()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
