// cmd/lxpreplicator/run.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tamzrod/lxp-replicator/internal/metrics"
	"github.com/tamzrod/lxp-replicator/internal/poller"
	"github.com/tamzrod/lxp-replicator/internal/writer"
)

const (
	writerTimeout   = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "run",
		Short:   "Poll every configured unit and replicate into its targets",
		Example: `  lxpreplicator run --config /etc/lxpreplicator.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplicator(cmd.Context(), flags)
		},
	}
}

func runReplicator(parent context.Context, flags *rootFlags) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, log, err := loadConfig(flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()
	var wg sync.WaitGroup

	// Units already started are stopped before a build error is returned.
	fail := func(err error) error {
		stop()
		wg.Wait()
		return err
	}

	// --------------------
	// Build per-unit pipelines
	// --------------------

	for _, unit := range cfg.Units {
		ulog := log.With().Str("unit", unit.ID).Logger()

		// ---- writer plan ----
		plan, err := writer.BuildPlan(unit)
		if err != nil {
			return fail(err)
		}

		// ---- writer clients (DATA + STATUS) ----
		clients, closeWriters, err := writer.BuildEndpointClients(unit, writerTimeout)
		if err != nil {
			return fail(err)
		}
		defer func() {
			if err := closeWriters(); err != nil {
				ulog.Warn().Err(err).Msg("closing writer clients")
			}
		}()

		statusWriter, statusEnabled := writer.NewDeviceStatusWriter(plan, clients)

		u := &unitRunner{
			unitID:  unit.ID,
			data:    writer.New(plan, clients),
			observe: collector.ObservePoll,
			log:     ulog,
		}
		if statusEnabled {
			u.status = statusWriter
		}

		if unit.Disabled {
			u.announceDisabled()
			ulog.Info().Bool("status", statusEnabled).Msg("unit disabled, not polling")
			continue
		}

		// ---- poller ----
		p, client, err := poller.Build(unit, log)
		if err != nil {
			return fail(err)
		}
		collector.Add(unit.ID, client)
		u.stats = client

		// ---- channel between poller and writer ----
		out := make(chan poller.PollResult)

		wg.Add(2)
		go func() {
			defer wg.Done()
			u.run(ctx, out, time.Second)
		}()
		go func() {
			defer wg.Done()
			p.Run(ctx, out)
		}()

		ulog.Info().
			Str("dongle", unit.Source.DongleSerial).
			Str("host", unit.Source.Host).
			Int("targets", len(plan.Targets)).
			Bool("status", statusEnabled).
			Msg("unit started")
	}

	// --------------------
	// Metrics endpoint
	// --------------------

	if cfg.Metrics.Listen != "" {
		h, err := metrics.Handler(collector)
		if err != nil {
			return fail(err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", h)
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("listen", cfg.Metrics.Listen).Msg("metrics server failed")
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
		log.Info().Str("listen", cfg.Metrics.Listen).Msg("metrics enabled")
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	wg.Wait()
	return nil
}
