package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mnrezaali/ai-prompt-generator/internal/conversation"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, vars := range credentialEnv {
		for _, name := range vars {
			t.Setenv(name, "")
		}
	}
	t.Setenv("AWS_REGION", "")
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "promptgen.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearCredentialEnv(t)
	cfg, err := Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "missing.json")})
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, 47000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:47000", cfg.Server.Addr())
	assert.Equal(t, 10, cfg.History.Capacity)
	assert.True(t, cfg.History.Dedupe)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "ADMIN_MASTER_KEY", cfg.Access.MasterKey)
	assert.Same(t, cfg, Get())
}

func TestLoadFile(t *testing.T) {
	clearCredentialEnv(t)
	path := writeConfig(t, `{
		"provider": "Anthropic",
		"model": "claude-sonnet-4-20250514",
		"providers": {"anthropic": {"apiKey": "file-key", "baseURL": "http://proxy"}},
		"server": {"port": 9000},
		"history": {"capacity": 3, "dedupe": false}
	}`)

	cfg, err := Load(LoadOptions{ConfigFile: path, Debug: true})
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 3, cfg.History.Capacity)
	assert.False(t, cfg.History.Dedupe)
	assert.Equal(t, "debug", cfg.Log.Level)

	provider, err := cfg.ProviderType("")
	require.NoError(t, err)
	opts := cfg.HandlerOptions(provider, "")
	assert.Equal(t, "file-key", opts.APIKey)
	assert.Equal(t, "claude-sonnet-4-20250514", opts.ModelID)
	assert.Equal(t, "http://proxy", opts.AnthropicBaseURL)
	assert.Equal(t, 4096, opts.MaxOutputTokens)
}

func TestLoadInvalidFile(t *testing.T) {
	path := writeConfig(t, `{not json`)
	_, err := Load(LoadOptions{ConfigFile: path})
	assert.Error(t, err)
}

func TestCredentialsFromEnv(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("GEMINI_API_KEY", "gemini-env")
	t.Setenv("OPENAI_API_KEY", "openai-env")
	t.Setenv("AWS_REGION", "eu-west-1")

	cfg, err := Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "none.json")})
	require.NoError(t, err)

	assert.Equal(t, "gemini-env", cfg.HandlerOptions(llm.ProviderGemini, "").APIKey)
	assert.Equal(t, "openai-env", cfg.HandlerOptions(llm.ProviderOpenAI, "").APIKey)
	assert.Empty(t, cfg.HandlerOptions(llm.ProviderAnthropic, "").APIKey)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)

	t.Setenv("API_KEY", "generic")
	cfg, err = Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "none.json")})
	require.NoError(t, err)
	assert.Equal(t, "generic", cfg.HandlerOptions(llm.ProviderGemini, "").APIKey)
}

func TestHandlerOptionsModelPrecedence(t *testing.T) {
	cfg := &Config{Provider: "gemini", Model: "gemini-2.5-pro"}

	assert.Equal(t, "gemini-2.5-pro", cfg.HandlerOptions(llm.ProviderGemini, "").ModelID)
	assert.Equal(t, "explicit", cfg.HandlerOptions(llm.ProviderGemini, "explicit").ModelID)
	assert.Equal(t, llm.ProviderOpenAI.DefaultModel(), cfg.HandlerOptions(llm.ProviderOpenAI, "").ModelID)

	_, err := cfg.ProviderType("nope")
	assert.Error(t, err)
}

func TestUpdateModel(t *testing.T) {
	clearCredentialEnv(t)
	path := writeConfig(t, `{"server": {"port": 9100}}`)
	_, err := Load(LoadOptions{ConfigFile: path})
	require.NoError(t, err)

	require.NoError(t, UpdateModel(llm.ProviderOpenAI, "gpt-4o"))
	assert.Equal(t, "openai", Get().Provider)

	cfg, err := Load(LoadOptions{ConfigFile: path})
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, 9100, cfg.Server.Port)
}

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.toml")

	empty, err := LoadState(path)
	require.NoError(t, err)
	assert.True(t, empty.Empty())

	state := NewState()
	state.Provider = "gemini"
	state.Capture(conversation.State{
		Artifact: "**Persona**\nA \"quoted\" tutor.",
		Transcript: []llm.Turn{
			{Role: llm.RoleModel, Content: "seed"},
			{Role: llm.RoleUser, Content: "shorter"},
			{Role: llm.RoleModel, Content: "oops", Failed: true},
		},
		Brief: conversation.Brief{Purpose: "tutor", Tone: "Witty"},
	}, time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC))
	require.NoError(t, SaveState(path, state))

	loaded, err := LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, state.Artifact, loaded.Artifact)
	assert.Equal(t, state.Transcript, loaded.Transcript)
	assert.Equal(t, state.Brief, loaded.Brief)
	assert.Equal(t, "gemini", loaded.ModelDisplay())

	session := loaded.Session()
	assert.Equal(t, state.Artifact, session.Artifact)
	assert.Len(t, session.Transcript, 3)

	require.NoError(t, ClearState(path))
	require.NoError(t, ClearState(path))
}

func TestLoadStateCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.toml")
	require.NoError(t, os.WriteFile(path, []byte("artifact = "), 0o600))
	_, err := LoadState(path)
	assert.Error(t, err)
}
