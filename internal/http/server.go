// Package http serves the document collection API that the rest backend talks to.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"expenses/internal/cache"
	"expenses/internal/identity"
	"expenses/internal/log"
	"expenses/internal/remote"
)

type Config struct {
	Addr string

	// RateLimit is the sustained requests per second allowed per client IP;
	// zero disables limiting.
	RateLimit float64
	RateBurst int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Server struct {
	http.Server

	docs     remote.Collection
	verifier identity.Verifier
	logger   *log.Logger
	limiter  *rateLimiter
	caches   *cache.Manager
	metrics  securityMetrics

	shutdownOnce sync.Once
}

// NewServer wires the routes. Call Shutdown to stop the background cache cleanup.
func NewServer(cfg Config, docs remote.Collection, verifier identity.Verifier, logger *log.Logger) *Server {
	logger = log.OrDiscard(logger).WithComponent(log.ComponentHTTP)
	s := &Server{
		docs:     docs,
		verifier: verifier,
		logger:   logger,
		caches:   cache.NewManager(logger),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = newRateLimiter(cfg.RateLimit, burst, 10000, 10*time.Minute)
		s.caches.Register(s.limiter.clients)
		s.caches.StartCleanup(5 * time.Minute)
	}

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(withRequestID)
	r.Use(log.Middleware(s.logger, requestID, clientIP))
	r.Use(s.flagSuspicious)
	r.Use(securityHeaders)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", handleReady)

	r.Route("/v1/collections/{collection}", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Use(s.authenticate)
		r.Post("/documents", s.handleInsert)
		r.Get("/documents/{id}", s.handleGet)
		r.Patch("/documents/{id}", s.handleUpdate)
		r.Delete("/documents/{id}", s.handleDelete)
		r.Post("/query", s.handleQuery)
	})
	return r
}

func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSuspicious(r) {
			s.metrics.suspiciousRequests.Add(1)
			log.FromContext(r.Context()).Warn("Suspicious request",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, clientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the cache cleanup and drains the HTTP server. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.logger.Info("Shutting down HTTP server",
			"rate_limit_hits", s.metrics.rateLimitHits.Load(),
			"auth_failures", s.metrics.authFailures.Load(),
			"suspicious_requests", s.metrics.suspiciousRequests.Load())
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
