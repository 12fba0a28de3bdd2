// Package access implements the access-code gate in front of the generator.
//
// Clients unlock with a code derived from a secret word and the current UTC
// date. A master key grants the admin role, which can change the secret word
// and toggle the gate. None of this is meant as a security boundary.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mnrezaali/ai-prompt-generator/internal/storage"
)

const (
	// DefaultSecretWord seeds the client code until an admin changes it.
	DefaultSecretWord = "SHOWCASE"
	// DefaultMasterKey is the admin code when none is configured.
	DefaultMasterKey = "ADMIN_MASTER_KEY"
)

var (
	// ErrInvalidCode is returned by Check for unknown or expired codes.
	ErrInvalidCode = errors.New("access code is invalid or has expired")
	// ErrForbidden is returned when a role may not perform an action.
	ErrForbidden = errors.New("forbidden")
)

// Role is the access level granted by a code.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
	RoleGuest  Role = "guest"
)

// Settings are the admin-editable gate settings.
type Settings struct {
	SecretWord string `json:"secretWord"`
}

// Options configures a Gate.
type Options struct {
	MasterKey string
	Now       func() time.Time
}

// Gate checks access codes against the persisted settings.
type Gate struct {
	kv        storage.KV
	masterKey string
	now       func() time.Time

	mu       sync.RWMutex
	settings Settings
	enabled  bool
}

// NewGate loads settings from kv. Missing or unreadable values fall back to
// the defaults: secret word SHOWCASE with the gate enabled.
func NewGate(ctx context.Context, kv storage.KV, opts Options) *Gate {
	if opts.MasterKey == "" {
		opts.MasterKey = DefaultMasterKey
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	g := &Gate{
		kv:        kv,
		masterKey: opts.MasterKey,
		now:       opts.Now,
		settings:  Settings{SecretWord: DefaultSecretWord},
		enabled:   true,
	}
	g.load(ctx)
	return g
}

func (g *Gate) load(ctx context.Context) {
	if g.kv == nil {
		return
	}

	var s Settings
	if err := storage.GetJSON(ctx, g.kv, storage.KeyAccessSettings, &s); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn("Failed to load access settings, using defaults", "error", err)
		}
	} else if strings.TrimSpace(s.SecretWord) != "" {
		g.settings = s
	}

	var enabled bool
	if err := storage.GetJSON(ctx, g.kv, storage.KeyGateEnabled, &enabled); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn("Failed to load gate flag, using default", "error", err)
		}
	} else {
		g.enabled = enabled
	}
}

// ClientCode builds the client code for the UTC date of t.
func ClientCode(secretWord string, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s-%02d-%02d-%04d", secretWord, t.Day(), int(t.Month()), t.Year())
}

// CurrentClientCode is today's client code.
func (g *Gate) CurrentClientCode() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return ClientCode(g.settings.SecretWord, g.now())
}

// Check resolves a code to a role. The master key wins over the client code.
func (g *Gate) Check(code string) (Role, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrInvalidCode
	}
	if code == g.masterKey {
		return RoleAdmin, nil
	}
	if code == g.CurrentClientCode() {
		return RoleClient, nil
	}
	return "", ErrInvalidCode
}

// GuestAllowed reports whether the generator can be used without a code.
func (g *Gate) GuestAllowed() bool {
	return !g.Enabled()
}

// Enabled reports whether the gate is on.
func (g *Gate) Enabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.enabled
}

// Settings returns the current settings.
func (g *Gate) Settings() Settings {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.settings
}

// SetSecretWord changes the secret word and persists it. The in-memory value
// is updated even if persisting fails.
func (g *Gate) SetSecretWord(ctx context.Context, word string) error {
	word = strings.TrimSpace(word)
	if word == "" {
		return fmt.Errorf("secret word cannot be empty")
	}

	g.mu.Lock()
	g.settings.SecretWord = word
	s := g.settings
	g.mu.Unlock()

	if g.kv == nil {
		return nil
	}
	if err := storage.SetJSON(ctx, g.kv, storage.KeyAccessSettings, s); err != nil {
		return fmt.Errorf("failed to save access settings: %w", err)
	}
	log.Info("Access secret word updated")
	return nil
}

// SetEnabled toggles the gate and persists the flag.
func (g *Gate) SetEnabled(ctx context.Context, enabled bool) error {
	g.mu.Lock()
	g.enabled = enabled
	g.mu.Unlock()

	if g.kv == nil {
		return nil
	}
	if err := storage.SetJSON(ctx, g.kv, storage.KeyGateEnabled, enabled); err != nil {
		return fmt.Errorf("failed to save gate flag: %w", err)
	}
	log.Info("Access gate toggled", "enabled", enabled)
	return nil
}
