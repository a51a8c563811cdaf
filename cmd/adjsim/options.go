package main

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pion/logging"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/thesyncim/adjuster/pkg/adjuster"
	"github.com/thesyncim/adjuster/pkg/adjuster/simcodec"
)

// options holds the raw command line.
type options struct {
	configPath  string
	kind        string
	closedLoop  bool
	bitrateBps  int64
	fps         int
	bias        float64
	jitter      float64
	frames      int
	seed        int64
	schedule    string
	metricsAddr string
	hold        bool
	logLevel    string
}

func defaultOptions() *options {
	return &options{
		kind:       string(adjuster.KindWindowed),
		closedLoop: true,
		bitrateBps: 500000,
		fps:        30,
		bias:       1,
		frames:     900,
		seed:       1,
		logLevel:   "error",
	}
}

func (o *options) bindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.configPath, "config", o.configPath, "YAML simulation config; flags override its values")
	fs.StringVar(&o.kind, "kind", o.kind, "adjuster kind: base, windowed, step or framerate")
	fs.BoolVar(&o.closedLoop, "closed-loop", o.closedLoop, "windowed: correct against the budget fed back to the codec")
	fs.Int64Var(&o.bitrateBps, "bitrate", o.bitrateBps, "initial target bitrate in bps")
	fs.IntVar(&o.fps, "fps", o.fps, "target framerate")
	fs.Float64Var(&o.bias, "bias", o.bias, "ratio of produced to configured codec bitrate")
	fs.Float64Var(&o.jitter, "jitter", o.jitter, "per-frame size noise, relative to the frame budget")
	fs.IntVar(&o.frames, "frames", o.frames, "number of frames to encode")
	fs.Int64Var(&o.seed, "seed", o.seed, "noise seed")
	fs.StringVar(&o.schedule, "schedule", o.schedule, "target changes as frame:bitrate[:fps] pairs, comma separated")
	fs.StringVar(&o.metricsAddr, "metrics-addr", o.metricsAddr, "serve /metrics and /stats on this address")
	fs.BoolVar(&o.hold, "hold", o.hold, "keep the stats server running after the simulation")
	fs.StringVar(&o.logLevel, "log-level", o.logLevel, "log level: disabled, error, warn, info, debug or trace")
}

// simConfig is the resolved simulation, also the shape of the --config file.
type simConfig struct {
	Adjuster   adjuster.Config `yaml:"adjuster"`
	Codec      simcodec.Config `yaml:"codec"`
	BitrateBps int64           `yaml:"bitrate_bps"`
	Fps        int             `yaml:"fps"`
	Frames     int             `yaml:"frames"`
	Schedule   []targetChange  `yaml:"schedule"`
}

// targetChange retargets the adjuster before frame Frame is encoded.
type targetChange struct {
	Frame      int   `yaml:"frame"`
	BitrateBps int64 `yaml:"bitrate_bps"`
	Fps        int   `yaml:"fps"`
}

// resolve merges defaults, the config file and explicitly set flags.
func (o *options) resolve(fs *pflag.FlagSet) (simConfig, error) {
	cfg := simConfig{
		Adjuster:   adjuster.DefaultConfig(),
		Codec:      simcodec.Config{Bias: o.bias, Jitter: o.jitter, Seed: o.seed},
		BitrateBps: o.bitrateBps,
		Fps:        o.fps,
		Frames:     o.frames,
	}
	cfg.Adjuster.Kind = adjuster.Kind(o.kind)
	cfg.Adjuster.Windowed.ClosedLoop = o.closedLoop

	if o.configPath != "" {
		data, err := os.ReadFile(o.configPath)
		if err != nil {
			return simConfig{}, errors.Wrapf(err, "read config %s", o.configPath)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return simConfig{}, errors.Wrapf(err, "decode config %s", o.configPath)
		}
		o.applyChanged(fs, &cfg)
	}

	if o.schedule != "" && (o.configPath == "" || fs.Changed("schedule")) {
		changes, err := parseSchedule(o.schedule)
		if err != nil {
			return simConfig{}, err
		}
		cfg.Schedule = changes
	}

	if err := cfg.Adjuster.Validate(); err != nil {
		return simConfig{}, err
	}
	if cfg.Fps <= 0 {
		return simConfig{}, errors.Errorf("fps %d must be positive", cfg.Fps)
	}
	if cfg.Frames <= 0 {
		return simConfig{}, errors.Errorf("frames %d must be positive", cfg.Frames)
	}
	sort.SliceStable(cfg.Schedule, func(a, b int) bool {
		return cfg.Schedule[a].Frame < cfg.Schedule[b].Frame
	})
	return cfg, nil
}

// applyChanged lets flags given on the command line win over the file.
func (o *options) applyChanged(fs *pflag.FlagSet, cfg *simConfig) {
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "kind":
			cfg.Adjuster.Kind = adjuster.Kind(o.kind)
		case "closed-loop":
			cfg.Adjuster.Windowed.ClosedLoop = o.closedLoop
		case "bitrate":
			cfg.BitrateBps = o.bitrateBps
		case "fps":
			cfg.Fps = o.fps
		case "bias":
			cfg.Codec.Bias = o.bias
		case "jitter":
			cfg.Codec.Jitter = o.jitter
		case "frames":
			cfg.Frames = o.frames
		case "seed":
			cfg.Codec.Seed = o.seed
		}
	})
}

// parseSchedule parses "300:250000,600:800000:15".
func parseSchedule(s string) ([]targetChange, error) {
	var out []targetChange
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, errors.Errorf("schedule entry %q: want frame:bitrate[:fps]", item)
		}
		frame, err := strconv.Atoi(parts[0])
		if err != nil || frame < 0 {
			return nil, errors.Errorf("schedule entry %q: bad frame", item)
		}
		bitrate, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, errors.Errorf("schedule entry %q: bad bitrate", item)
		}
		change := targetChange{Frame: frame, BitrateBps: bitrate}
		if len(parts) == 3 {
			if change.Fps, err = strconv.Atoi(parts[2]); err != nil {
				return nil, errors.Errorf("schedule entry %q: bad fps", item)
			}
		}
		out = append(out, change)
	}
	return out, nil
}

var logLevels = map[string]logging.LogLevel{
	"disabled": logging.LogLevelDisabled,
	"error":    logging.LogLevelError,
	"warn":     logging.LogLevelWarn,
	"info":     logging.LogLevelInfo,
	"debug":    logging.LogLevelDebug,
	"trace":    logging.LogLevelTrace,
}

func parseLogLevel(s string) (logging.LogLevel, error) {
	level, ok := logLevels[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, errors.Errorf("unknown log level %q", s)
	}
	return level, nil
}
