// Package config loads relay settings from a TOML file and the environment.
//
// Environment variables override file values; the file is optional.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/fwojciec/relay"
)

// Service kinds. Each names the adapter that reaches the backend.
const (
	KindREST      = "rest"      // plain request/response
	KindSSE       = "sse"       // server-sent events
	KindWebSocket = "websocket" // duplex channel
	KindGemini    = "gemini"    // Gemini API
	KindAnthropic = "anthropic" // Anthropic Messages API
)

// File is the on-disk configuration.
type File struct {
	Service   ServiceConfig   `toml:"service" envPrefix:"RELAY_SERVICE_"`
	Gemini    GeminiConfig    `toml:"gemini"`
	Anthropic AnthropicConfig `toml:"anthropic"`
	Logging   LoggingConfig   `toml:"logging" envPrefix:"RELAY_LOG_"`
	Session   SessionConfig   `toml:"session" envPrefix:"RELAY_SESSION_"`
}

// ServiceConfig describes the backend and how its responses are handled.
type ServiceConfig struct {
	Kind    string            `toml:"kind" env:"KIND"`
	URL     string            `toml:"url" env:"URL"`
	Headers map[string]string `toml:"headers"`
	Routes  []RouteConfig     `toml:"route"`

	Simulate             bool          `toml:"simulate" env:"SIMULATE"`
	SimulationInterval   time.Duration `toml:"simulation_interval" env:"SIMULATION_INTERVAL"`
	StreamEndMarker      string        `toml:"stream_end_marker" env:"STREAM_END_MARKER"`
	DisplayServiceErrors bool          `toml:"display_service_errors" env:"DISPLAY_SERVICE_ERRORS"`
	PartialOnError       string        `toml:"partial_on_error" env:"PARTIAL_ON_ERROR"`

	MaxMessages     int            `toml:"max_messages" env:"MAX_MESSAGES"`
	MaxHistoryChars int            `toml:"max_history_chars" env:"MAX_HISTORY_CHARS"`
	Extra           map[string]any `toml:"extra"`
}

// RouteConfig sends requests whose attachments all match Pattern to URL.
type RouteConfig struct {
	Pattern string `toml:"pattern"`
	URL     string `toml:"url"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	APIKey string `toml:"api_key" env:"GEMINI_API_KEY"`
	Model  string `toml:"model" env:"GEMINI_MODEL"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey       string `toml:"api_key" env:"ANTHROPIC_API_KEY"`
	Model        string `toml:"model" env:"ANTHROPIC_MODEL"`
	MaxTokens    int    `toml:"max_tokens" env:"ANTHROPIC_MAX_TOKENS"`
	SystemPrompt string `toml:"system_prompt"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `toml:"level" env:"LEVEL"`
	File  string `toml:"file" env:"FILE"`
}

// SessionConfig holds session persistence settings.
type SessionConfig struct {
	Dir string `toml:"dir" env:"DIR"`
}

// Default returns the configuration used when no file exists.
func Default() File {
	return File{
		Service: ServiceConfig{
			Kind:               KindSSE,
			SimulationInterval: relay.DefaultSimulationInterval,
			PartialOnError:     "discard",
		},
		Logging: LoggingConfig{Level: "info"},
		Session: SessionConfig{Dir: filepath.Join(StateDir(), "sessions")},
	}
}

// Path returns the configuration file path: $RELAY_CONFIG or the state
// directory's config.toml.
func Path() string {
	if p := os.Getenv("RELAY_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(StateDir(), "config.toml")
}

// StateDir returns the relay state directory.
func StateDir() string {
	if p := os.Getenv("RELAY_STATE_DIR"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".relay")
}

// Load reads path, applies environment overrides and validates the result.
// A missing file yields the defaults. environ replaces the process
// environment when non-nil.
func Load(path string, environ map[string]string) (*File, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	switch {
	case err == nil:
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			sort.Strings(keys)
			return nil, fmt.Errorf("config: %s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first setting that cannot be used.
func (f *File) Validate() error {
	switch f.Service.Kind {
	case KindREST, KindSSE, KindWebSocket:
		if f.Service.URL == "" {
			return fmt.Errorf("config: service.url is required for %s", f.Service.Kind)
		}
	case KindGemini, KindAnthropic:
	default:
		return fmt.Errorf("config: unknown service.kind %q", f.Service.Kind)
	}
	if _, err := partialPolicy(f.Service.PartialOnError); err != nil {
		return err
	}
	if f.Service.MaxMessages < 0 || f.Service.MaxHistoryChars < 0 || f.Anthropic.MaxTokens < 0 {
		return errors.New("config: limits must not be negative")
	}
	if f.Service.SimulationInterval < 0 {
		return errors.New("config: service.simulation_interval must not be negative")
	}
	for i, r := range f.Service.Routes {
		if r.Pattern == "" || r.URL == "" {
			return fmt.Errorf("config: service.route[%d] needs pattern and url", i)
		}
	}
	return nil
}

// Relay returns the core settings described by the service section.
func (f *File) Relay() relay.Config {
	policy, _ := partialPolicy(f.Service.PartialOnError)
	cfg := relay.DefaultConfig()
	cfg.Simulate = f.Service.Simulate
	cfg.SimulationInterval = f.Service.SimulationInterval
	cfg.StreamEndMarker = f.Service.StreamEndMarker
	cfg.DisplayServiceErrors = f.Service.DisplayServiceErrors
	cfg.PartialOnError = policy
	cfg.MaxMessages = f.Service.MaxMessages
	cfg.MaxHistoryChars = f.Service.MaxHistoryChars
	cfg.Extra = f.Service.Extra
	return cfg
}

// Encode writes f as TOML.
func (f *File) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(f)
}

func partialPolicy(s string) (relay.PartialPolicy, error) {
	switch strings.ToLower(s) {
	case "", "discard":
		return relay.PartialDiscard, nil
	case "keep":
		return relay.PartialKeep, nil
	default:
		return 0, fmt.Errorf("config: unknown service.partial_on_error %q", s)
	}
}
