package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
	"github.com/spf13/viper"
)

// Provider holds credentials and endpoint overrides for one upstream.
type Provider struct {
	APIKey   string `json:"apiKey,omitempty"`
	BaseURL  string `json:"baseURL,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// HistoryConfig bounds the prompt history.
type HistoryConfig struct {
	Capacity int  `json:"capacity"`
	Dedupe   bool `json:"dedupe"`
}

// GenerationConfig tunes upstream requests.
type GenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

// AccessConfig configures the access gate.
type AccessConfig struct {
	MasterKey string `json:"masterKey,omitempty"`
}

// AWSConfig configures Bedrock.
type AWSConfig struct {
	Region string `json:"region,omitempty"`
}

// OpenRouterConfig carries the app identification headers.
type OpenRouterConfig struct {
	HTTPReferer string `json:"httpReferer,omitempty"`
	XTitle      string `json:"xTitle,omitempty"`
}

// RemoteConfig points the CLI at a running server instead of a provider.
type RemoteConfig struct {
	URL   string `json:"url,omitempty"`
	Token string `json:"token,omitempty"`
}

// Data defines storage configuration
type Data struct {
	Directory string `json:"directory,omitempty"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file,omitempty"`
}

// TUIConfig defines terminal UI configuration
type TUIConfig struct {
	Theme string `json:"theme"`
	// DiffStyle is the chroma style for highlighted diffs.
	DiffStyle string `json:"diffStyle,omitempty"`
}

// Config is the main configuration structure for the application
type Config struct {
	Provider   string              `json:"provider"`
	Model      string              `json:"model,omitempty"`
	Providers  map[string]Provider `json:"providers,omitempty"`
	Server     ServerConfig        `json:"server"`
	History    HistoryConfig       `json:"history"`
	Generation GenerationConfig    `json:"generation"`
	Access     AccessConfig        `json:"access"`
	AWS        AWSConfig           `json:"aws"`
	OpenRouter OpenRouterConfig    `json:"openrouter"`
	Remote     RemoteConfig        `json:"remote"`
	Data       Data                `json:"data"`
	Log        LogConfig           `json:"log"`
	TUI        TUIConfig           `json:"tui"`
	Debug      bool                `json:"debug,omitempty"`
}

// Application constants
const (
	appName         = "promptgen"
	defaultLogLevel = "info"
	defaultPort     = 47000
	defaultTheme    = "mocha"
)

// credentialEnv lists the environment variables read for each provider, in
// order of precedence.
var credentialEnv = map[llm.ProviderType][]string{
	llm.ProviderGemini:     {"API_KEY", "GEMINI_API_KEY"},
	llm.ProviderAnthropic:  {"ANTHROPIC_API_KEY"},
	llm.ProviderOpenAI:     {"OPENAI_API_KEY"},
	llm.ProviderOpenRouter: {"OPENROUTER_API_KEY"},
}

var (
	mu  sync.RWMutex
	cfg *Config
	v   *viper.Viper
)

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ConfigFile overrides the search paths.
	ConfigFile string
	Debug      bool
}

// Load reads configuration from the config file, environment variables and
// defaults, in viper's usual precedence.
func Load(opts LoadOptions) (*Config, error) {
	nv := viper.New()
	configureViper(nv, opts.ConfigFile)
	setDefaults(nv, opts.Debug)

	c, err := readConfig(nv, nv.ReadInConfig())
	if err != nil {
		return nil, err
	}
	if opts.Debug {
		c.Debug = true
		c.Log.Level = "debug"
	}
	loadProvidersFromEnv(c)
	normalize(c)

	mu.Lock()
	cfg = c
	v = nv
	mu.Unlock()
	return c, nil
}

// Get returns the loaded configuration, or nil before Load.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// configureViper sets up viper's configuration paths and environment variables
func configureViper(v *viper.Viper, configFile string) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(fmt.Sprintf(".%s", appName))
		v.AddConfigPath("$HOME")
		v.AddConfigPath(fmt.Sprintf("$XDG_CONFIG_HOME/%s", appName))
		v.AddConfigPath(fmt.Sprintf("$HOME/.config/%s", appName))
	}
	v.SetConfigType("json")
	v.SetEnvPrefix(strings.ToUpper(appName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// setDefaults configures default values for configuration options
func setDefaults(v *viper.Viper, debug bool) {
	v.SetDefault("provider", string(llm.ProviderGemini))
	v.SetDefault("model", "")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", defaultPort)
	v.SetDefault("history.capacity", 10)
	v.SetDefault("history.dedupe", true)
	v.SetDefault("generation.maxOutputTokens", 4096)
	v.SetDefault("generation.temperature", 0.7)
	v.SetDefault("access.masterKey", "ADMIN_MASTER_KEY")
	v.SetDefault("aws.region", "us-east-1")
	_ = v.BindEnv("aws.region", "PROMPTGEN_AWS_REGION", "AWS_REGION")
	v.SetDefault("openrouter.xTitle", "AI System Prompt Generator")
	v.SetDefault("data.directory", "")
	v.SetDefault("tui.theme", defaultTheme)
	v.SetDefault("tui.diffStyle", "monokai")

	if debug {
		v.SetDefault("debug", true)
		v.Set("log.level", "debug")
	} else {
		v.SetDefault("debug", false)
		v.SetDefault("log.level", defaultLogLevel)
	}
}

// readConfig decodes the configuration. A missing config file is not an error.
func readConfig(v *viper.Viper, err error) (*Config, error) {
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	c := &Config{Providers: make(map[string]Provider)}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return c, nil
}

// loadProvidersFromEnv fills in API keys from the environment when the
// config file does not set them.
func loadProvidersFromEnv(c *Config) {
	if c.Providers == nil {
		c.Providers = make(map[string]Provider)
	}
	for provider, vars := range credentialEnv {
		p := c.Providers[string(provider)]
		if p.APIKey != "" {
			continue
		}
		for _, name := range vars {
			if key := os.Getenv(name); key != "" {
				p.APIKey = key
				c.Providers[string(provider)] = p
				break
			}
		}
	}
}

func normalize(c *Config) {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.History.Capacity <= 0 {
		c.History.Capacity = 10
	}
	if c.Server.Port <= 0 {
		c.Server.Port = defaultPort
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
}

// ProviderType resolves the configured provider, honouring an override.
func (c *Config) ProviderType(override string) (llm.ProviderType, error) {
	name := c.Provider
	if override != "" {
		name = override
	}
	return llm.ParseProviderType(name)
}

// HandlerOptions builds the options for a provider handler. An explicit model
// wins over the configured one, which wins over the provider default.
func (c *Config) HandlerOptions(provider llm.ProviderType, model string) llm.ApiHandlerOptions {
	if model == "" && strings.EqualFold(c.Provider, string(provider)) {
		model = c.Model
	}
	if model == "" {
		model = provider.DefaultModel()
	}

	p := c.Providers[string(provider)]
	opts := llm.ApiHandlerOptions{
		APIKey:          p.APIKey,
		ModelID:         model,
		MaxOutputTokens: c.Generation.MaxOutputTokens,
		Temperature:     c.Generation.Temperature,
		AWSRegion:       c.AWS.Region,
		HTTPReferer:     c.OpenRouter.HTTPReferer,
		XTitle:          c.OpenRouter.XTitle,
	}
	switch provider {
	case llm.ProviderAnthropic:
		opts.AnthropicBaseURL = p.BaseURL
	case llm.ProviderOpenAI:
		opts.OpenAIBaseURL = p.BaseURL
	}
	return opts
}

// DataDir returns the configured data directory, or "" for the default.
func (c *Config) DataDir() string {
	dir := c.Data.Directory
	if strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, dir[2:])
		}
	}
	return dir
}

// Watch reloads the configuration when the config file changes and passes
// the new value to onChange. It is a no-op when no config file was found.
func Watch(onChange func(*Config)) {
	mu.RLock()
	nv := v
	mu.RUnlock()
	if nv == nil || nv.ConfigFileUsed() == "" {
		return
	}
	if _, err := os.Stat(nv.ConfigFileUsed()); err != nil {
		return
	}

	nv.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		c, err := readConfig(nv, nil)
		if err != nil {
			log.Warn("Ignoring invalid config change", "file", e.Name, "error", err)
			return
		}
		loadProvidersFromEnv(c)
		normalize(c)

		mu.Lock()
		cfg = c
		mu.Unlock()

		log.Info("Configuration reloaded", "file", e.Name)
		if onChange != nil {
			onChange(c)
		}
	})
	nv.WatchConfig()
}

// updateCfgFile updates the configuration file with the provided update function
func updateCfgFile(updateCfg func(raw map[string]any)) error {
	mu.RLock()
	nv := v
	mu.RUnlock()
	if nv == nil {
		return fmt.Errorf("config not loaded")
	}

	configFile := nv.ConfigFileUsed()
	configData := []byte(`{}`)
	if configFile == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		configFile = filepath.Join(homeDir, fmt.Sprintf(".%s.json", appName))
	} else if data, err := os.ReadFile(configFile); err == nil {
		configData = data
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	raw := map[string]any{}
	if err := json.Unmarshal(configData, &raw); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	updateCfg(raw)

	updatedData, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configFile, updatedData, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// UpdateModel persists the default provider and model.
func UpdateModel(provider llm.ProviderType, model string) error {
	mu.Lock()
	if cfg != nil {
		cfg.Provider = string(provider)
		cfg.Model = model
	}
	mu.Unlock()

	return updateCfgFile(func(raw map[string]any) {
		raw["provider"] = string(provider)
		if model == "" {
			delete(raw, "model")
		} else {
			raw["model"] = model
		}
	})
}
