package api

import (
	"bufio"
	"net"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mnrezaali/ai-prompt-generator/internal/access"
)

// tokenFromRequest reads a bearer token, falling back to the token query
// parameter for WebSocket and EventSource clients.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// sessionFor validates the request token, if any.
func (s *Server) sessionFor(r *http.Request) (*access.Session, error) {
	return s.sessions.Validate(tokenFromRequest(r))
}

// requireAccess lets requests through when the gate is off. Otherwise a
// valid token of any role is required.
func (s *Server) requireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.sessionFor(r)
		if err != nil {
			if s.gate != nil && s.gate.Enabled() {
				writeFailure(w, err)
				return
			}
			session = &access.Session{Role: access.RoleGuest}
		}

		r = r.WithContext(access.WithSession(r.Context(), session))
		next.ServeHTTP(newHijackerResponseWriter(w), r)
	})
}

// requireAdmin requires a token issued for the master key.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.sessionFor(r)
		if err != nil {
			writeFailure(w, err)
			return
		}
		if session.Role != access.RoleAdmin {
			log.Warn("Rejected non-admin settings request", "role", session.Role)
			writeFailure(w, access.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(access.WithSession(r.Context(), session)))
	})
}

// hijackerResponseWriter wraps http.ResponseWriter and preserves http.Hijacker interface
type hijackerResponseWriter struct {
	http.ResponseWriter
	hijacker http.Hijacker
}

// Hijack implements http.Hijacker interface
func (hrw *hijackerResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return hrw.hijacker.Hijack()
}

// Flush keeps streaming responses working through the wrapper.
func (hrw *hijackerResponseWriter) Flush() {
	if f, ok := hrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// newHijackerResponseWriter creates a new hijacker-aware response writer
func newHijackerResponseWriter(w http.ResponseWriter) http.ResponseWriter {
	if hijacker, ok := w.(http.Hijacker); ok {
		return &hijackerResponseWriter{
			ResponseWriter: w,
			hijacker:       hijacker,
		}
	}
	return w
}
