// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the support-chat HTTP API: streaming and
// non-streaming chat, health, the scenario catalog, and the best-effort
// persistence endpoints for transcripts, participants, and telemetry.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/vodacare/support-chat/internal/agent"
	"github.com/vodacare/support-chat/internal/config"
	"github.com/vodacare/support-chat/internal/session"
	"github.com/vodacare/support-chat/internal/storage"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// maxRequestBody caps JSON request bodies.
	maxRequestBody = 1 << 20 // 1MB

	// Server timeouts. WriteTimeout stays generous because SSE responses
	// are long-lived.
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 120 * time.Second
	idleTimeout       = 120 * time.Second

	// shutdownTimeout bounds graceful shutdown.
	shutdownTimeout = 10 * time.Second
)

// =============================================================================
// SERVER
// =============================================================================

// Server wires the chat agent, session store, and persistence behind the
// HTTP API.
type Server struct {
	cfg      *config.Config
	agent    *agent.Agent
	sessions session.Store
	store    *storage.Store // nil disables persistence endpoints' backing
	mux      *http.ServeMux
	httpSrv  *http.Server
}

// New assembles a server. store may be nil; persistence endpoints then
// acknowledge without storing.
func New(cfg *config.Config, ag *agent.Agent, sessions session.Store, store *storage.Store) *Server {
	s := &Server{
		cfg:      cfg,
		agent:    ag,
		sessions: sessions,
		store:    store,
		mux:      http.NewServeMux(),
	}
	s.setupRoutes()

	handler := Chain(s.mux,
		RecoveryMiddleware(),
		CORSMiddleware(cfg.Server.AllowedOrigins),
		LoggingMiddleware(),
		RateLimitMiddleware(NewRateLimiter(cfg.Server.RateLimitPerMin)),
	)
	s.httpSrv = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

// setupRoutes registers all endpoints with method-qualified patterns.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("POST /api/chat/stream", s.handleChatStream)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/scenarios", s.handleScenarios)
	s.mux.HandleFunc("POST /api/messages", s.handlePostMessage)
	s.mux.HandleFunc("GET /api/messages", s.handleGetMessages)
	s.mux.HandleFunc("POST /api/participants", s.handleParticipants)
	s.mux.HandleFunc("POST /api/interaction", s.handleInteraction)
}

// Handler returns the fully wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Printf("SERVER_START | addr=%s mode=%s engine=%s", s.cfg.Server.Addr, s.cfg.Mode, s.agent.Engine())
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen on %s: %w", s.cfg.Server.Addr, err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	log.Printf("SERVER_STOP | addr=%s", s.cfg.Server.Addr)
	return s.httpSrv.Shutdown(ctx)
}

// =============================================================================
// JSON HELPERS
// =============================================================================

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("RESPONSE_WRITE_FAILED | error=%v", err)
	}
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a bounded request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	return json.NewDecoder(r.Body).Decode(dst)
}
