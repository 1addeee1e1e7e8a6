package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/runnerr0/broadcastmonitor/internal/config"
	"github.com/runnerr0/broadcastmonitor/internal/metrics"
	"github.com/runnerr0/broadcastmonitor/internal/monitor"
	"github.com/runnerr0/broadcastmonitor/internal/relay"
)

// Execute implements the go-flags Commander interface for MonitorCommand.
func (c *MonitorCommand) Execute(args []string) error {
	cfg, logger, err := setup(c.globals)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.executeWith(ctx, cfg, logger, os.Stdout)
}

// executeWith runs the observer until ctx is cancelled (for testing).
func (c *MonitorCommand) executeWith(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	rc, err := overrideTransport(cfg, c.Transport)
	if err != nil {
		return err
	}
	if rc.Transport == config.TransportLoopback {
		return errors.New("monitor needs a cross-process transport: use grpc or spool")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	opts := []monitor.Option{monitor.WithLogger(logger), monitor.WithMetrics(m)}
	if c.Archive || cfg.Archive.Enabled {
		store, db, err := openArchive(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		defer store.Close()
		opts = append(opts, monitor.WithArchive(store))
	}

	obs := monitor.New(monitor.Config{
		Capacity:  cfg.Monitor.Capacity,
		Workers:   cfg.Monitor.Workers,
		QueueSize: cfg.Monitor.QueueSize,
	}, opts...)

	listener, closeListener, err := openListener(rc, cfg.Monitor.Package, cfg.Monitor.QueueSize, relay.NewBus(), logger)
	if err != nil {
		return err
	}
	defer closeListener()

	asJSON := c.globals != nil && c.globals.JSON
	printer := monitor.NewPrinter(out, asJSON, c.Details)

	logger.Info("monitor started", "transport", rc.Transport, "package", cfg.Monitor.Package, "capacity", obs.Store().Capacity())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return obs.Serve(gctx, listener) })
	g.Go(func() error { return printer.Run(gctx, obs.Store()) })

	addr := c.MetricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		logger.Info("serving metrics", "addr", addr)
	}

	err = g.Wait()
	obs.Store().Close()
	logger.Info("monitor stopped", "events", obs.Store().Count())
	return err
}
