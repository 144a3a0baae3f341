// Command expenses-worker consumes expense change events and keeps per-user
// category totals, logging a report at REPORT_INTERVAL.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"expenses/internal/amqp"
	"expenses/internal/backend"
	"expenses/internal/config"
	"expenses/internal/log"
	"expenses/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", log.FieldError, err)
		os.Exit(1)
	}
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger = log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), Writer: os.Stdout})
	log.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := consume(ctx, cfg, logger); err != nil {
		logger.Error("Worker error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

func consume(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	// The worker only reads; its own writes would never be published anyway.
	bcfg.AMQPURL = ""

	res, err := backend.NewFactory(logger, nil).CreateBackend(ctx, bcfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err)
		}
	}()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	w := worker.NewTotalsWorker(res.Collection, cfg.Collection, logger)

	logger.Info("Starting expenses worker",
		log.FieldBackend, cfg.Backend,
		log.FieldCollection, cfg.Collection,
		"queue", cfg.AMQPQueue,
		"report_interval", cfg.ReportInterval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.Consume(ctx, w.HandleChange)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return w.Run(ctx, cfg.ReportInterval)
	})
	return g.Wait()
}
