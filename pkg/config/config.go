// Package config loads listingwriter settings from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/nstogner/listingwriter/pkg/model/gemini"
	"github.com/nstogner/listingwriter/pkg/model/generativeai"
	"github.com/nstogner/listingwriter/pkg/post"
	"github.com/nstogner/listingwriter/pkg/resolver"
	"gopkg.in/yaml.v3"
)

// LevelTrace is a custom log level for detailed HTTP traffic.
const LevelTrace = generativeai.LevelTrace

// Config holds every tunable setting. Retry and pacing timings are fixed and
// not configurable.
type Config struct {
	// Provider selects the SDK: "gemini" (default) or "generativeai".
	Provider string `yaml:"provider"`
	// Candidates is the ranked model list, most preferred first.
	Candidates []string `yaml:"candidates"`
	// FallbackModel is used when no candidate is available.
	FallbackModel string `yaml:"fallback_model"`
	// Addr is the web server listen address.
	Addr string `yaml:"addr"`
	// EnvFile is the secret file loaded before reading the API key.
	EnvFile string `yaml:"env_file"`
	// Prompts overrides the built-in prompt templates.
	Prompts post.PromptSet `yaml:"prompts"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider:      gemini.ProviderName,
		Candidates:    append([]string(nil), resolver.DefaultCandidates...),
		FallbackModel: resolver.FallbackModel,
		Addr:          ":8080",
		EnvFile:       ".env",
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("Config file not found, using defaults", "path", path)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	switch c.Provider {
	case gemini.ProviderName, generativeai.ProviderName:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if _, err := post.NewPrompts(c.Prompts); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values give INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
