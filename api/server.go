package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/wricardo/pinshare/logging"
	"github.com/wricardo/pinshare/share/service"
	"github.com/wricardo/pinshare/transport/websocket"
)

// Server represents the HTTP server: websocket endpoint, health, metrics,
// admin API and static assets.
type Server struct {
	service service.PairingService
	hub     *websocket.Hub
	router  *mux.Router
	log     zerolog.Logger

	admin     bool
	metrics   http.Handler
	mcp       http.Handler
	staticDir string
}

// Option configures a Server.
type Option func(*Server)

// WithAdmin mounts the /api/sessions routes.
func WithAdmin(enabled bool) Option { return func(s *Server) { s.admin = enabled } }

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

// WithMCP mounts h at /mcp for POST requests.
func WithMCP(h http.Handler) Option { return func(s *Server) { s.mcp = h } }

// WithStaticDir serves files from dir at the root path.
func WithStaticDir(dir string) Option { return func(s *Server) { s.staticDir = dir } }

func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = logging.Component(log, "api") }
}

// NewServer creates a new API server
func NewServer(pairing service.PairingService, hub *websocket.Hub, opts ...Option) *Server {
	s := &Server{
		service: pairing,
		hub:     hub,
		router:  mux.NewRouter(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods("GET")
	}

	if s.admin {
		api := s.router.PathPrefix("/api").Subrouter()
		api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
		api.HandleFunc("/sessions/{pin}", s.handleGetSession).Methods("GET")
		api.HandleFunc("/sessions/{pin}", s.handleEndSession).Methods("DELETE")
	}

	if s.mcp != nil {
		s.router.Handle("/mcp", s.mcp).Methods("POST")
	}

	// WebSocket
	if s.hub != nil {
		s.router.HandleFunc("/ws", s.hub.ServeWS)
	}

	// Static files
	if s.staticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.staticDir)))
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// logRequests leaves the ResponseWriter untouched so /ws can still hijack it.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidPIN):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Session Handlers

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total := len(sessions)

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(sessions) {
			sessions = sessions[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	pin := mux.Vars(r)["pin"]

	info, err := s.service.GetSession(r.Context(), pin)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	pin := mux.Vars(r)["pin"]

	if err := s.service.EndSession(r.Context(), pin); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	s.log.Info().Str("pin", pin).Msg("session ended by operator")
	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s ended", pin),
	})
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	connections := 0
	if s.hub != nil {
		connections = s.hub.ConnectionCount()
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"sessions":    s.service.SessionCount(r.Context()),
		"connections": connections,
	})
}
