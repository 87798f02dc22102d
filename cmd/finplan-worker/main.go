package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finplan/internal/amqp"
	"finplan/internal/cache"
	"finplan/internal/cli"
	"finplan/internal/core"
	"finplan/internal/events"
	"finplan/internal/log"
	"finplan/internal/records"
	"finplan/internal/services"
	"finplan/internal/worker"
)

const dialAttempts = 5

func main() {
	logger, cfg := cli.Bootstrap()
	logger.Info("Starting finplan-worker", log.FieldComponent, log.ComponentWorker)

	res, err := cli.OpenStore(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to open store", log.FieldError, err)
		os.Exit(1)
	}

	// The worker only consumes changes, so its bus has no forwarder.
	bus := events.NewBus()
	store := records.New(res.Store, core.NewIDGenerator(nil))
	summary := services.NewSummaryService(store, bus, cfg.PrimaryPerson,
		cache.NewLRU[core.Month, core.MonthlyAggregate](cfg.CacheSize, cfg.CacheTTL))
	w := worker.NewSnapshotWorker(summary, bus, nil)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, summary.Close)

	var client *amqp.Client
	if cfg.AMQPURL != "" {
		client, err = amqp.Dial(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, dialAttempts)
		if err != nil {
			logger.Error("Failed to connect to AMQP", log.FieldError, err)
			os.Exit(1)
		}
		go func() {
			if err := client.ConsumeChanges(ctx, w.HandleChange); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided, running periodic refresh only")
	}

	// Refresh the current month once before waiting for the first tick.
	if err := w.ProcessPending(ctx); err != nil {
		logger.Error("Startup snapshot failed", log.FieldError, err)
	}
	go w.Run(ctx, cfg.SnapshotInterval)
	go cache.RunCleanup(ctx, cfg.CacheTTL, summary.Cache())

	cli.WaitForShutdown(ctx, done)

	if client != nil {
		client.Close()
	}
	if res.Cleanup != nil {
		res.Cleanup()
	}
}
