// Package api serves the generation relay and the session endpoints over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/mnrezaali/ai-prompt-generator/internal/access"
	"github.com/mnrezaali/ai-prompt-generator/internal/conversation"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
	"github.com/mnrezaali/ai-prompt-generator/internal/relay"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Deps are the collaborators a Server needs.
type Deps struct {
	Relay    relay.Submitter
	Manager  *conversation.Manager
	Gate     *access.Gate
	Sessions *access.Sessions
	// Model is reported by the health endpoint.
	Model string
	// AllowedOrigins extends the localhost CORS allowlist.
	AllowedOrigins []string
}

// Server represents the API server
type Server struct {
	relay    relay.Submitter
	manager  *conversation.Manager
	gate     *access.Gate
	sessions *access.Sessions
	model    string
	origins  []string

	upgrader   websocket.Upgrader
	clients    atomic.Int64
	started    time.Time
	httpServer *http.Server
}

// NewServer creates a new API server
func NewServer(deps Deps) *Server {
	s := &Server{
		relay:    deps.Relay,
		manager:  deps.Manager,
		gate:     deps.Gate,
		sessions: deps.Sessions,
		model:    deps.Model,
		origins:  deps.AllowedOrigins,
		started:  time.Now(),
	}
	if s.sessions == nil {
		s.sessions = access.NewSessions(0)
	}
	if s.gate == nil {
		s.gate = access.NewGate(context.Background(), nil, access.Options{})
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return s.originAllowed(r.Header.Get("Origin"))
		},
	}
	return s
}

// Start serves on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("Starting API server", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve is Start on an existing listener.
func (s *Server) Serve(l net.Listener) error {
	s.httpServer = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.setupRoutes())
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()
	router.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "Not found", http.StatusNotFound)
	})

	// Browser-compatible relay endpoint.
	router.HandleFunc("/api/generate", s.handleGenerate).Methods(http.MethodPost)

	api := router.PathPrefix("/api/v1").Subrouter()

	// Public endpoints
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/access", s.handleAccessStatus).Methods(http.MethodGet)
	api.HandleFunc("/access", s.handleUnlock).Methods(http.MethodPost)
	api.HandleFunc("/recommendations", s.handleRecommendations).Methods(http.MethodGet)

	// Admin endpoints
	api.Handle("/settings", s.requireAdmin(http.HandlerFunc(s.handleGetSettings))).Methods(http.MethodGet)
	api.Handle("/settings", s.requireAdmin(http.HandlerFunc(s.handleUpdateSettings))).Methods(http.MethodPut)

	// Session endpoints, gated while the access gate is enabled
	protected := func(path string, h http.HandlerFunc, methods ...string) {
		route := api.Handle(path, s.requireAccess(h))
		if len(methods) > 0 {
			route.Methods(methods...)
		}
	}
	protected("/session", s.handleGetSession, http.MethodGet)
	protected("/session/generate", s.handleSessionGenerate, http.MethodPost)
	protected("/session/refine", s.handleSessionRefine, http.MethodPost)
	protected("/session/ws", s.handleSessionWebSocket)
	protected("/session/events", s.handleSessionSSE, http.MethodGet)
	protected("/history", s.handleListHistory, http.MethodGet)
	protected("/history", s.handleClearHistory, http.MethodDelete)
	protected("/history/{id}", s.handleGetHistoryEntry, http.MethodGet)
	protected("/history/{id}/load", s.handleLoadHistory, http.MethodPost)
	protected("/history/{id}/diff", s.handleDiffHistory, http.MethodGet)

	return router
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allow := "http://localhost:47000"
		if origin != "" && s.originAllowed(origin) {
			allow = origin
		}
		w.Header().Set("Access-Control-Allow-Origin", allow)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Add("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	if strings.HasPrefix(origin, "http://localhost:") ||
		strings.HasPrefix(origin, "http://127.0.0.1:") ||
		strings.HasPrefix(origin, "http://[::1]:") {
		return true
	}
	for _, o := range s.origins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, "Method Not Allowed", http.StatusMethodNotAllowed)
}

// Response helpers
func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, message string, code int) {
	writeJSONStatus(w, code, relay.WireError{Error: message})
}

// writeFailure maps err onto a status code and the {error, details} body.
func writeFailure(w http.ResponseWriter, err error) {
	body := relay.WireError{Error: err.Error()}
	var ue *llm.UpstreamError
	if errors.As(err, &ue) {
		body.Error = ue.Message
		if body.Error == "" {
			body.Error = llm.ErrUpstream.Error()
		}
		body.Details = ue.Details
		if body.Details == "" && ue.Err != nil {
			body.Details = ue.Err.Error()
		}
	}
	if errors.Is(err, llm.ErrConfiguration) {
		body.Error = llm.ErrConfiguration.Error()
	}
	writeJSONStatus(w, statusFor(err), body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, llm.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, access.ErrInvalidCode),
		errors.Is(err, access.ErrTokenRequired),
		errors.Is(err, access.ErrInvalidToken),
		errors.Is(err, access.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, access.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, conversation.ErrUnknownEntry):
		return http.StatusNotFound
	case errors.Is(err, conversation.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, conversation.ErrEmptyGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", llm.ErrInvalidRequest, err)
	}
	return nil
}

// Health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"model":     s.model,
		"services": map[string]any{
			"relay":         s.relay != nil,
			"session":       s.manager != nil,
			"gate_enabled":  s.gate.Enabled(),
			"ws_clients":    s.clients.Load(),
			"access_tokens": s.sessions.Len(),
		},
	}
	writeJSON(w, health)
}
