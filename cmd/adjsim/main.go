// Command adjsim drives a rate adjuster against a simulated video encoder
// and reports how closely the produced bitrate tracks the target.
//
// Usage:
//
//	go run ./cmd/adjsim --kind windowed --bitrate 500000 --fps 30 --bias 1.2
//	go run ./cmd/adjsim --config sim.yaml --schedule 300:250000,600:800000
//
// With --metrics-addr the adjuster's statistics are served on /metrics and
// /stats while the simulation runs. Add --hold to keep serving afterwards
// until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/logging"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/thesyncim/adjuster/pkg/adjuster/metrics"
	"github.com/thesyncim/adjuster/pkg/adjuster/statsserver"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	o := defaultOptions()

	cmd := &cobra.Command{
		Use:           "adjsim",
		Short:         "Simulate an encoder rate adjuster",
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.resolve(cmd.Flags())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, o, cmd)
		},
	}
	o.bindFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, cfg simConfig, o *options, cmd *cobra.Command) error {
	lf := logging.NewDefaultLoggerFactory()
	level, err := parseLogLevel(o.logLevel)
	if err != nil {
		return err
	}
	lf.DefaultLogLevel = level
	log := lf.NewLogger("adjsim")

	var sink metrics.Sink
	var srv *statsserver.Server
	if o.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		prom, err := metrics.NewPrometheusSink(reg, "adjsim")
		if err != nil {
			return err
		}
		rec := metrics.NewRecorder()
		sink = metrics.Tee(prom, rec)

		srvCfg := statsserver.DefaultConfig()
		srvCfg.Addr = o.metricsAddr
		srv = statsserver.New(srvCfg, reg, rec, lf)
		addr, err := srv.Start()
		if err != nil {
			return errors.Wrap(err, "start stats server")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stats: http://%s/metrics http://%s/stats\n", addr, addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warnf("stats server shutdown: %v", err)
			}
		}()
	}

	res, err := simulate(ctx, cfg, sink, lf)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), cfg, res)

	if srv != nil && o.hold {
		fmt.Fprintln(cmd.OutOrStdout(), "holding stats server, interrupt to exit")
		<-ctx.Done()
	}
	return nil
}
