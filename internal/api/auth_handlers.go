package api

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mnrezaali/ai-prompt-generator/internal/access"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm/prompt"
)

// UnlockRequest carries an access code. An empty code asks for guest access.
type UnlockRequest struct {
	Code string `json:"code"`
}

// UnlockResponse represents a successful unlock
type UnlockResponse struct {
	Role      access.Role `json:"role"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// AccessStatusResponse describes the gate and the caller's role.
type AccessStatusResponse struct {
	GateEnabled  bool        `json:"gateEnabled"`
	GuestAllowed bool        `json:"guestAllowed"`
	Role         access.Role `json:"role,omitempty"`
}

// SettingsResponse is the admin view of the gate.
type SettingsResponse struct {
	SecretWord  string `json:"secretWord"`
	GateEnabled bool   `json:"gateEnabled"`
	ClientCode  string `json:"clientCode"`
}

// SettingsUpdate changes any subset of the gate settings.
type SettingsUpdate struct {
	SecretWord  *string `json:"secretWord,omitempty"`
	GateEnabled *bool   `json:"gateEnabled,omitempty"`
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req UnlockRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}

	var role access.Role
	if req.Code == "" && s.gate.GuestAllowed() {
		role = access.RoleGuest
	} else {
		var err error
		if role, err = s.gate.Check(req.Code); err != nil {
			log.Info("Rejected access code")
			writeFailure(w, err)
			return
		}
	}

	session, token, err := s.sessions.Issue(role)
	if err != nil {
		writeFailure(w, err)
		return
	}
	log.Info("Access granted", "role", role, "session", session.ID)
	writeJSON(w, UnlockResponse{Role: role, Token: token, ExpiresAt: session.ExpiresAt})
}

func (s *Server) handleAccessStatus(w http.ResponseWriter, r *http.Request) {
	resp := AccessStatusResponse{
		GateEnabled:  s.gate.Enabled(),
		GuestAllowed: s.gate.GuestAllowed(),
	}
	if session, err := s.sessionFor(r); err == nil {
		resp.Role = session.Role
	}
	writeJSON(w, resp)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.settingsResponse())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsUpdate
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}

	if req.SecretWord != nil {
		if err := s.gate.SetSecretWord(r.Context(), *req.SecretWord); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		// Outstanding client codes were derived from the old word.
		if n := s.sessions.Revoke(access.RoleClient); n > 0 {
			log.Info("Revoked client sessions", "count", n)
		}
	}
	if req.GateEnabled != nil {
		if err := s.gate.SetEnabled(r.Context(), *req.GateEnabled); err != nil {
			writeFailure(w, err)
			return
		}
	}
	writeJSON(w, s.settingsResponse())
}

func (s *Server) settingsResponse() SettingsResponse {
	return SettingsResponse{
		SecretWord:  s.gate.Settings().SecretWord,
		GateEnabled: s.gate.Enabled(),
		ClientCode:  s.gate.CurrentClientCode(),
	}
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"recommendations": prompt.RecommendedPrompts,
		"tones":           prompt.ToneOptions,
	})
}
