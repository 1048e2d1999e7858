// Package api implements the FleetMind HTTP API: chat, session
// management, history rendering, and the live-reasoning WebSocket.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fleetmind/fleetmind-agent/internal/agent"
	"github.com/fleetmind/fleetmind-agent/internal/archive"
	"github.com/fleetmind/fleetmind-agent/internal/buildinfo"
	"github.com/fleetmind/fleetmind-agent/internal/catalog"
)

// examplePrompts are starter requests surfaced to clients building a
// chat UI.
var examplePrompts = []string{
	"Show me all available drivers",
	"Create a new driver named John Smith with a van",
	"List all pending orders",
	"Create an urgent order for Sarah at 456 Oak Street, due in 2 hours",
	"Find the best driver for the latest order using AI",
	"What's the status of my fleet right now?",
	"Geocode the address: 1600 Amphitheatre Parkway, Mountain View, CA",
}

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, map[string]string{"error": message}, logger)
}

// Server is the HTTP API server.
type Server struct {
	address  string
	port     int
	sessions *SessionManager
	catalog  *catalog.Catalog
	archive  *archive.Store // nil when archiving is disabled
	logger   *slog.Logger
	server   *http.Server
}

// NewServer creates the API server.
func NewServer(address string, port int, sessions *SessionManager, cat *catalog.Catalog, logger *slog.Logger) *Server {
	return &Server{
		address:  address,
		port:     port,
		sessions: sessions,
		catalog:  cat,
		logger:   logger,
	}
}

// SetArchive enables the turn archive endpoints and write-behind.
func (s *Server) SetArchive(store *archive.Store) {
	s.archive = store
}

// Start begins serving HTTP requests. Blocks until the server stops.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/version", s.handleVersion)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/tools", s.handleTools)
	mux.HandleFunc("GET /api/examples", s.handleExamples)

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/session/clear", s.handleSessionClear)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/archive", s.handleArchive)

	// Live reasoning stream.
	mux.HandleFunc("GET /ws/chat", s.handleWSChat)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.withLogging(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // turns are slow: multiple oracle round-trips
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"name":    "FleetMind",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":    "healthy",
		"connected": s.catalog.Connected(),
		"tools":     s.catalog.Len(),
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"connected":   s.catalog.Connected(),
		"tools_count": s.catalog.Len(),
		"tools":       s.catalog.Names(),
		"sessions":    s.sessions.Count(),
		"version":     buildinfo.Version,
	}, s.logger)
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"count":  s.catalog.Len(),
		"names":  s.catalog.Names(),
		"schema": s.catalog.Describe(),
	}, s.logger)
}

func (s *Server) handleExamples(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"examples": examplePrompts}, s.logger)
}

// ChatRequest is the /api/chat request body.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), s.logger)
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required", s.logger)
		return
	}

	sess := s.sessions.GetOrCreate(req.SessionID)

	resp, err := sess.Process(r.Context(), req.Message, nil)
	if err != nil {
		s.logger.Error("turn failed", "session", sess.ID, "error", err)
	}

	s.recordTurn(r.Context(), sess.ID, req.Message, resp)

	writeJSON(w, map[string]any{
		"session_id": sess.ID,
		"response":   resp,
	}, s.logger)
}

// recordTurn archives a completed turn when archiving is enabled.
// Archive failures are logged and swallowed; they never affect the
// turn result.
func (s *Server) recordTurn(ctx context.Context, sessionID, message string, resp *agent.Response) {
	if s.archive == nil || resp == nil {
		return
	}
	if err := s.archive.RecordTurn(ctx, sessionID, message, resp); err != nil {
		s.logger.Warn("failed to archive turn", "session", sessionID, "error", err)
	}
}

func (s *Server) handleSessionClear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), s.logger)
		return
	}

	sess := s.sessions.Get(req.SessionID)
	if sess == nil {
		writeError(w, http.StatusNotFound, "unknown session", s.logger)
		return
	}

	sess.Clear()
	writeJSON(w, map[string]any{"session_id": sess.ID, "cleared": true}, s.logger)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Get(r.URL.Query().Get("session_id"))
	if sess == nil {
		writeError(w, http.StatusNotFound, "unknown session", s.logger)
		return
	}

	if r.URL.Query().Get("format") == "html" {
		html, err := renderTranscriptHTML(sess.Memory.History(), sess.Memory.Summary())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "render transcript: "+err.Error(), s.logger)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := w.Write(html); err != nil {
			s.logger.Debug("failed to write transcript", "error", err)
		}
		return
	}

	writeJSON(w, map[string]any{
		"session_id":  sess.ID,
		"history":     sess.Memory.History(),
		"summary":     sess.Memory.Summary(),
		"preferences": sess.Memory.Preferences(),
	}, s.logger)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "turn archive is not enabled", s.logger)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required", s.logger)
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}

	turns, err := s.archive.RecentTurns(r.Context(), sessionID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query archive: "+err.Error(), s.logger)
		return
	}

	writeJSON(w, map[string]any{"session_id": sessionID, "turns": turns}, s.logger)
}
