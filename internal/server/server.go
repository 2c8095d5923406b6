package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pipewatch/internal/config"
	"pipewatch/internal/handlers"
	"pipewatch/internal/kafka"
	"pipewatch/internal/ledger"
	"pipewatch/internal/logger"
	"pipewatch/internal/middleware"
	"pipewatch/internal/policy"
	"pipewatch/internal/series"
	"pipewatch/internal/storage"
	"pipewatch/internal/worker"
)

// Server is the high-level coordinator: ingestion, evaluation, alert
// publication, and the query API.
type Server struct {
	cfg        *config.Config
	registry   *policy.Registry
	ledger     *ledger.Ledger
	store      *series.Store
	archiver   storage.Archiver
	publisher  *kafka.Publisher
	workerPool *worker.Pool
	httpServer *http.Server
	wg         sync.WaitGroup
}

// New constructs a Server with the given config. The policy registry is
// built up front so a malformed threshold table fails fast.
func New(cfg *config.Config) (*Server, error) {
	registry, err := cfg.BuildRegistry()
	if err != nil {
		return nil, fmt.Errorf("build policy registry: %w", err)
	}

	return &Server{
		cfg:      cfg,
		registry: registry,
		ledger:   ledger.New(),
		store:    series.NewStore(cfg.SeriesLimit),
		archiver: storage.NewMemoryArchiver(),
	}, nil
}

// Run starts background goroutines and blocks until context cancelled.
func (s *Server) Run(ctx context.Context) error {
	log := logger.WithComponent("server")
	log.Info().
		Int("policies", len(s.registry.Metrics())).
		Msg("server starting")

	// Initialize Kafka publisher
	if err := s.initPublisher(); err != nil {
		log.Error().Err(err).Msg("failed to initialize publisher")
		return fmt.Errorf("failed to initialize publisher: %w", err)
	}

	// Initialize worker pool
	s.initWorkerPool()
	s.workerPool.Start()

	// Initialize HTTP server
	s.initHTTPServer()

	// Start HTTP server in background
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info().Str("addr", s.cfg.HTTPAddr).Msg("starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Stats reporting goroutine
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reportStats(ctx)
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	return s.shutdown()
}

// initPublisher initializes the Kafka transition publisher
func (s *Server) initPublisher() error {
	log := logger.WithComponent("server")
	publisher, err := kafka.NewPublisher(
		s.cfg.Kafka.Brokers,
		s.cfg.Kafka.Topic,
		s.cfg.Kafka.Producer,
	)
	if err != nil {
		return err
	}

	s.publisher = publisher
	log.Info().
		Strs("brokers", s.cfg.Kafka.Brokers).
		Str("topic", s.cfg.Kafka.Topic).
		Msg("kafka publisher initialized")
	return nil
}

// initWorkerPool initializes the evaluator pool
func (s *Server) initWorkerPool() {
	log := logger.WithComponent("server")
	s.workerPool = worker.NewPool(worker.Config{
		Publisher: s.publisher,
		Ledger:    s.ledger,
		Registry:  s.registry,
		Store:     s.store,
		Archiver:  s.archiver,
		Workers:   s.cfg.Workers.Count,
		QueueSize: s.cfg.Workers.QueueSize,
	})
	log.Info().Int("workers", s.cfg.Workers.Count).Msg("worker pool initialized")
}

// initHTTPServer initializes the HTTP server with handlers
func (s *Server) initHTTPServer() {
	mux := http.NewServeMux()

	// Every API endpoint sits behind the same chain; /health, /stats, and
	// /metrics stay open for probes and scrapers.
	auth := middleware.Auth(s.cfg.AuthToken)

	ingestHandler := handlers.NewIngestHandler(handlers.IngestConfig{
		Submitter:   s.workerPool,
		NodeID:      "",               // Will use hostname
		MaxBodySize: 10 * 1024 * 1024, // 10MB
	})
	mux.Handle("/ingest", middleware.Chain(
		ingestHandler,
		middleware.Recovery,
		middleware.Logging,
		auth,
	))

	alertsHandler := &handlers.AlertsHandler{Ledger: s.ledger, Store: s.store}
	mux.Handle("/alerts", middleware.Chain(alertsHandler, middleware.Recovery, middleware.Logging, auth))
	mux.Handle("/alerts/", middleware.Chain(alertsHandler, middleware.Recovery, middleware.Logging, auth))

	mux.Handle("/series", middleware.Chain(
		&handlers.SeriesHandler{Store: s.store},
		middleware.Recovery,
		middleware.Logging,
		auth,
	))

	mux.Handle("/status", middleware.Chain(
		&handlers.StatusHandler{Store: s.store, Registry: s.registry},
		middleware.Recovery,
		middleware.Logging,
		auth,
	))

	mux.Handle("/assist", middleware.Chain(
		&handlers.AssistHandler{},
		middleware.Recovery,
		middleware.Logging,
		auth,
	))

	// Health check
	mux.HandleFunc("/health", s.healthHandler)

	// Stats endpoint
	mux.HandleFunc("/stats", s.statsHandler)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         s.cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// shutdown performs graceful shutdown
func (s *Server) shutdown() error {
	log := logger.WithComponent("server")
	log.Info().Msg("initiating graceful shutdown")

	// 1. Stop accepting new HTTP requests
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("stopping HTTP server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop workers; Stop closes the shard queues and drains them
	done := make(chan struct{})
	go func() {
		s.workerPool.Stop()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("workers stopped gracefully")
	case <-time.After(15 * time.Second):
		log.Warn().Msg("worker shutdown timeout - forcing exit")
	}

	// 3. Close publisher
	log.Info().Msg("closing kafka publisher")
	if err := s.publisher.Close(); err != nil {
		log.Error().Err(err).Msg("publisher close error")
	}

	// 4. Close archiver
	if err := s.archiver.Close(); err != nil {
		log.Error().Err(err).Msg("archiver close error")
	}

	// 5. Wait for all goroutines
	s.wg.Wait()

	log.Info().Msg("server stopped gracefully")
	return nil
}

// reportStats periodically logs statistics
func (s *Server) reportStats(ctx context.Context) {
	log := logger.WithComponent("server")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			workerStats := s.workerPool.Stats()
			publisherStats := s.publisher.Stats()

			log.Info().
				Uint64("worker_processed", workerStats.Processed).
				Uint64("worker_failed", workerStats.Failed).
				Uint64("transitions_published", publisherStats.Published).
				Uint64("transitions_failed", publisherStats.Failed).
				Uint64("publisher_bytes", publisherStats.BytesWritten).
				Int("open_alerts", s.ledger.OpenCount()).
				Msg("stats")
		}
	}
}

// healthHandler handles health check requests
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	// Check Kafka connectivity
	if err := s.publisher.HealthCheck(ctx); err != nil {
		http.Error(w, fmt.Sprintf("unhealthy: %v", err), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// statsHandler returns current statistics
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	workerStats := s.workerPool.Stats()
	publisherStats := s.publisher.Stats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
		"worker": {
			"processed": %d,
			"failed": %d
		},
		"publisher": {
			"published": %d,
			"failed": %d,
			"bytes_written": %d
		},
		"ledger": {
			"open_alerts": %d
		}
	}`,
		workerStats.Processed,
		workerStats.Failed,
		publisherStats.Published,
		publisherStats.Failed,
		publisherStats.BytesWritten,
		s.ledger.OpenCount(),
	)
}
