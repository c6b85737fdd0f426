// Package server implements the HTTP API, middleware, and background detection workers.
package server

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/gamestatus/internal/config"
	"github.com/woozymasta/gamestatus/internal/models"
)

// New creates a new Server instance with the provided storage, query service, and configuration.
func New(store Store, game Querier, cfg *config.Config) *Server {
	queueSize := cfg.Query.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}

	return &Server{
		store:          store,
		game:           game,
		authToken:      cfg.Server.AuthToken,
		maxBody:        cfg.Server.MaxBodySize,
		trustProxy:     cfg.Server.TrustProxy,
		hardLimitCount: cfg.RateLimit.HardLimitCount,
		hardLimitWin:   cfg.RateLimit.HardLimitWin,
		workers:        max(cfg.Query.Workers, 1),

		queue:    make(chan detectJob, queueSize),
		shutdown: make(chan struct{}),
	}
}

// StartWorkers launches the background protocol detection pool.
func (s *Server) StartWorkers() {
	for range s.workers {
		s.wg.Add(1)
		go s.worker()
	}
}

// StopWorkers stops accepting jobs and waits for queued detections to finish.
func (s *Server) StopWorkers() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.shutdown)
		close(s.queue)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/servers", http.HandlerFunc(s.handleListServers))
	mux.Handle("POST /api/servers", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleCreateServer)))
	mux.Handle("DELETE /api/servers", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleDeleteServer)))
	mux.Handle("GET /api/status", http.HandlerFunc(s.handleStatus))
	mux.Handle("GET /api/status/all", http.HandlerFunc(s.handleStatusAll))
	mux.Handle("GET /api/rules", http.HandlerFunc(s.handleRules))
	mux.Handle("GET /api/query", s.RateLimitMiddleware(http.HandlerFunc(s.handleQuery)))
	mux.Handle("GET /api/version", http.HandlerFunc(handleVersion))

	return s.LoggingMiddleware(mux)
}

// enqueue hands rec to the detection workers without blocking the request.
func (s *Server) enqueue(rec models.ServerRecord) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stopped {
		return false
	}

	select {
	case s.queue <- detectJob{Record: rec}:
		return true
	default:
		log.Warn().Str("id", rec.ID).Str("address", rec.Address).Msg("detection queue full, record left for on-demand detection")
		return false
	}
}

// worker is a background goroutine that processes jobs from the detection queue.
func (s *Server) worker() {
	defer s.wg.Done()

	for job := range s.queue {
		s.processJob(job)
	}
}

// processJob queries an auto record and persists the detected protocol.
func (s *Server) processJob(job detectJob) {
	rec := job.Record
	status := s.game.Fetch(context.Background(), &rec)
	s.persistDetection(job.Record.Protocol, rec)

	log.Debug().
		Str("id", rec.ID).
		Stringer("protocol", rec.Protocol).
		Bool("online", status.Online).
		Msg("background detection finished")
}

// persistDetection stores rec's protocol and port when a fetch resolved an auto record.
func (s *Server) persistDetection(before models.Protocol, rec models.ServerRecord) {
	if before != models.ProtocolAuto || rec.Protocol == models.ProtocolAuto {
		return
	}

	if _, err := s.store.SetDetected(rec.ID, rec.Protocol, rec.Port); err != nil {
		log.Error().Err(err).Str("id", rec.ID).Msg("failed to persist detected protocol")
		return
	}

	log.Info().
		Str("id", rec.ID).
		Stringer("protocol", rec.Protocol).
		Int("port", rec.Port).
		Msg("protocol detected")
}
