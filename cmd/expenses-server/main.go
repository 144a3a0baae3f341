// Command expenses-server serves a backend collection over HTTP for clients
// using the rest backend.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"expenses/internal/backend"
	"expenses/internal/cache"
	"expenses/internal/config"
	apphttp "expenses/internal/http"
	"expenses/internal/identity"
	"expenses/internal/log"
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
	if err := cfg.ValidateServer(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger = log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), Writer: os.Stdout})
	log.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func serve(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}

	caches := cache.NewManager(logger)
	defer caches.Stop()

	res, err := backend.NewFactory(logger, caches).CreateBackend(ctx, bcfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err)
		}
	}()
	caches.StartCleanup(time.Minute)

	verifier := identity.NewTokenVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	srv := apphttp.NewServer(apphttp.Config{
		Addr:         ":" + cfg.Port,
		RateLimit:    cfg.RateLimitRPS,
		RateBurst:    cfg.RateLimitBurst,
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	}, res.Collection, verifier, logger)
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting expenses server",
			"port", cfg.Port,
			log.FieldBackend, cfg.Backend,
			"change_events", res.Publishing)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
