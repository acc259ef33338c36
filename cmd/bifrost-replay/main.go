// Command bifrost-replay reads decision requests as JSON lines on stdin, serves them
// against the configured datafile and writes one JSON result per line on stdout.
// Impressions and conversions go to the configured event transport.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rafaeljc/bifrost/internal/client"
	"github.com/rafaeljc/bifrost/internal/config"
	"github.com/rafaeljc/bifrost/internal/dispatch"
	"github.com/rafaeljc/bifrost/internal/event"
	"github.com/rafaeljc/bifrost/internal/logger"
	"github.com/rafaeljc/bifrost/internal/notification"
	"github.com/rafaeljc/bifrost/internal/observability"
	"github.com/rafaeljc/bifrost/internal/profile"
	"github.com/rafaeljc/bifrost/internal/projectconfig"
	"github.com/rafaeljc/bifrost/internal/replay"
	"github.com/rafaeljc/bifrost/internal/syncer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bifrost-replay: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Logs go to stderr; stdout carries the results.
	log := logger.NewWithWriter(&cfg.App, os.Stderr)
	slog.SetDefault(log)
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	center := notification.NewCenter(log)

	// Datafile
	holder := projectconfig.NewHolder(nil)
	datafile := syncer.FromConfig(&cfg.Datafile, holder, logger.Component(log, "syncer"),
		syncer.WithNotificationCenter(center),
	)
	syncCtx, stopSync := context.WithCancel(ctx)
	defer stopSync()
	go func() {
		_ = datafile.Run(syncCtx)
	}()

	// Sticky bucketing
	profiles, err := profile.Open(ctx, cfg.ProfileStore, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to open profile store: %w", err)
	}
	checkers := []observability.Checker{syncer.NewHealthChecker(datafile)}
	if profiles != nil {
		defer profiles.Close()
		if rs, ok := profiles.(*profile.RedisStore); ok {
			checkers = append(checkers, rs.HealthChecker())
		}
	}

	// Events
	sink, err := dispatch.Open(ctx, cfg, logger.Component(log, "dispatch"))
	if err != nil {
		return fmt.Errorf("failed to open event transport: %w", err)
	}
	defer sink.Close()
	if sink.Checker != nil {
		checkers = append(checkers, sink.Checker)
	}

	processor := event.NewProcessor(sink.Transport,
		event.WithLogger(logger.Component(log, "events")),
		event.WithBatchSize(cfg.Events.BatchSize),
		event.WithFlushInterval(cfg.Events.FlushInterval),
		event.WithDispatchTimeout(cfg.Events.DispatchTimeout),
		event.WithClientInfo(cfg.Events.ClientName, cfg.Events.ClientVersion),
	)

	var obs *observability.Server
	if cfg.Observability.Enabled {
		obs = observability.NewServer(log, &cfg.Observability, checkers...)
		obs.Start()
	}

	clientOpts := []client.Option{
		client.WithLogger(log),
		client.WithEventProcessor(processor),
		client.WithNotificationCenter(center),
	}
	if profiles != nil {
		clientOpts = append(clientOpts, client.WithProfileStore(profiles))
	}
	c := client.New(holder, clientOpts...)

	readyCtx, cancelReady := context.WithTimeout(ctx, cfg.Datafile.RequestTimeout)
	err = datafile.WaitReady(readyCtx)
	cancelReady()
	if err != nil {
		shutdown(cfg, log, processor, obs)
		return fmt.Errorf("datafile %s not available: %w", cfg.Datafile.Source(), err)
	}

	summary, runErr := replay.New(c, replay.WithLogger(logger.Component(log, "replay"))).Run(ctx, os.Stdin, os.Stdout)
	if errors.Is(runErr, context.Canceled) {
		log.Info("replay interrupted", slog.Int("lines", summary.Lines))
		runErr = nil
	}

	stopSync()
	shutdown(cfg, log, processor, obs)
	return runErr
}

// shutdown flushes pending events and stops the observability server within the
// configured shutdown timeout.
func shutdown(cfg *config.Config, log *slog.Logger, processor *event.Processor, obs *observability.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := processor.Close(ctx); err != nil {
		log.Error("failed to flush events", slog.Any("error", err))
	}
	if obs != nil {
		if err := obs.Shutdown(ctx); err != nil {
			log.Error("failed to stop observability server", slog.Any("error", err))
		}
	}
	log.Info("bifrost-replay stopped")
}
