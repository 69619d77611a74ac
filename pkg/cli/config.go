package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/studio/pkg/mediastore"
	"github.com/haivivi/studio/pkg/studio"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".studio"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
)

// Config represents the main configuration structure for a CLI app
type Config struct {
	// AppName is the application name (e.g., "studio")
	AppName string `yaml:"-"`

	// CurrentContext is the name of the currently active context
	CurrentContext string `yaml:"current_context,omitempty"`

	// Contexts is a map of context name to context configuration
	Contexts map[string]*Context `yaml:"contexts,omitempty"`

	// configPath is the path to the config file
	configPath string
}

// Context is one named credential and backend setup.
type Context struct {
	// Name is the context name
	Name string `json:"name" yaml:"name"`

	// APIKey is the Gemini API key
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the Gemini API endpoint (optional)
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// OpenAI routes plain text generation to an OpenAI-compatible API (optional)
	OpenAI *studio.OpenAIConfig `json:"openai,omitempty" yaml:"openai,omitempty"`

	// Models overrides individual model names (optional)
	Models studio.Models `json:"models,omitempty" yaml:"models,omitempty"`

	// Voice is the prebuilt speech voice (optional)
	Voice string `json:"voice,omitempty" yaml:"voice,omitempty"`

	// Store is the session database directory. Empty uses the app data dir.
	Store string `json:"store,omitempty" yaml:"store,omitempty"`

	// Media selects where generated media lives: "local:<dir>", "memory",
	// "s3" or "s3://<bucket>/<prefix>". Empty uses a local directory under
	// the app data dir. S3 settings come from the S3 section.
	Media string `json:"media,omitempty" yaml:"media,omitempty"`

	// S3 configures the "s3" media backend
	S3 *mediastore.S3Config `json:"s3,omitempty" yaml:"s3,omitempty"`

	// PollInterval is the video poll interval in seconds (optional)
	PollInterval int `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`

	// MaxPollAttempts bounds video polling; negative disables the bound
	MaxPollAttempts int `json:"max_poll_attempts,omitempty" yaml:"max_poll_attempts,omitempty"`

	// OutputSampleRate resamples synthesized speech (optional)
	OutputSampleRate int `json:"output_sample_rate,omitempty" yaml:"output_sample_rate,omitempty"`

	// Timeout is the per-turn timeout in seconds (optional)
	Timeout int `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Extra stores free-form settings
	Extra map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// LoadConfig loads or creates configuration for the specified app
func LoadConfig(appName string) (*Config, error) {
	return LoadConfigWithPath(appName, "")
}

// LoadConfigWithPath loads configuration from a custom path
func LoadConfigWithPath(appName, customPath string) (*Config, error) {
	var configPath string

	if customPath != "" {
		configPath = customPath
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, DefaultBaseDir, appName, DefaultConfigFile)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := &Config{
		AppName:    appName,
		Contexts:   make(map[string]*Context),
		configPath: configPath,
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}

	cfg.AppName = appName
	cfg.configPath = configPath

	return cfg, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the config directory path
func (c *Config) Dir() string {
	return filepath.Dir(c.configPath)
}

// AddContext adds or replaces a context. The first context added becomes
// current.
func (c *Config) AddContext(name string, ctx *Context) error {
	ctx.Name = name
	c.Contexts[name] = ctx
	if c.CurrentContext == "" {
		c.CurrentContext = name
	}
	return c.Save()
}

// DeleteContext removes a context
func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext sets the current context
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// GetContext returns a specific context
func (c *Config) GetContext(name string) (*Context, error) {
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("context %q not found", name)
	}
	return ctx, nil
}

// GetCurrentContext returns the current context
func (c *Config) GetCurrentContext() (*Context, error) {
	if c.CurrentContext == "" {
		return nil, fmt.Errorf("no current context set")
	}
	return c.GetContext(c.CurrentContext)
}

// ResolveContext returns the context by name, or current context if name is empty
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name == "" {
		return c.GetCurrentContext()
	}
	return c.GetContext(name)
}

// ListContexts returns all context names
func (c *Config) ListContexts() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	return names
}

// GetExtra returns an extra value for the context
func (ctx *Context) GetExtra(key string) string {
	if ctx.Extra == nil {
		return ""
	}
	return ctx.Extra[key]
}

// SetExtra sets an extra value for the context
func (ctx *Context) SetExtra(key, value string) {
	if ctx.Extra == nil {
		ctx.Extra = make(map[string]string)
	}
	ctx.Extra[key] = value
}

// EngineConfig converts the context into studio engine settings. Media,
// logging and metrics are left for the caller to fill in.
func (ctx *Context) EngineConfig() studio.EngineConfig {
	return studio.EngineConfig{
		BaseURL:          ctx.BaseURL,
		Models:           ctx.Models,
		Voice:            ctx.Voice,
		PollInterval:     time.Duration(ctx.PollInterval) * time.Second,
		MaxPollAttempts:  ctx.MaxPollAttempts,
		OutputSampleRate: ctx.OutputSampleRate,
		OpenAI:           ctx.OpenAI,
	}
}

// TurnTimeout returns the per-turn timeout, zero if unset.
func (ctx *Context) TurnTimeout() time.Duration {
	return time.Duration(ctx.Timeout) * time.Second
}

// MediaBackend opens the media backend selected by the context. dataDir is
// used when no explicit location is configured.
func (ctx *Context) MediaBackend(dataDir string) (mediastore.Backend, error) {
	backend := ctx.Media
	switch {
	case backend == "" || backend == "local":
		return mediastore.NewLocal(filepath.Join(dataDir, "media"))
	case backend == "memory":
		return mediastore.NewMemory(), nil
	case backend == "s3":
		if ctx.S3 == nil {
			return nil, fmt.Errorf("media backend s3 requires an s3 section")
		}
		return mediastore.NewS3FromConfig(*ctx.S3)
	case strings.HasPrefix(backend, "local:"):
		return mediastore.NewLocal(strings.TrimPrefix(backend, "local:"))
	case strings.HasPrefix(backend, "s3://"):
		var cfg mediastore.S3Config
		if ctx.S3 != nil {
			cfg = *ctx.S3
		}
		cfg.Bucket, cfg.Prefix, _ = strings.Cut(strings.TrimPrefix(backend, "s3://"), "/")
		return mediastore.NewS3FromConfig(cfg)
	}
	return nil, fmt.Errorf("unknown media backend %q", backend)
}

// StoreDir returns the session database directory.
func (ctx *Context) StoreDir(dataDir string) string {
	if ctx.Store != "" {
		return ctx.Store
	}
	return filepath.Join(dataDir, "sessions")
}

// MaskAPIKey masks the API key for display
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
