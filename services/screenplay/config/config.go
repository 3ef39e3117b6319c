// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the screenplay analyzer configuration.
//
// Sources are applied in order, later ones winning: defaults, the config
// file (YAML or JSON), the named preset, then environment variables.
// The provider API key never lives in a plain string field; it is sealed
// in a memguard enclave and opened only while a client is built.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianScreenplay/pkg/telemetry"
	"github.com/AleutianAI/AleutianScreenplay/services/llm"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/pipeline"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/stations"
)

// Preset names.
const (
	PresetQuick    = "quick"
	PresetStandard = "standard"
	PresetRobust   = "robust"
)

// Backend names.
const (
	BackendOllama = "ollama"
)

// ErrUnknownPreset indicates a preset name that is not defined.
var ErrUnknownPreset = errors.New("unknown preset")

var validate = validator.New()

// Config is the complete analyzer configuration.
type Config struct {
	// Preset tunes retries and pacing. Empty means standard.
	Preset string `json:"preset" yaml:"preset" validate:"omitempty,oneof=quick standard robust"`

	Pipeline  pipeline.Config  `json:"pipeline" yaml:"pipeline"`
	Stations  stations.Options `json:"stations" yaml:"stations"`
	LLM       LLMConfig        `json:"llm" yaml:"llm"`
	Cache     CacheConfig      `json:"cache" yaml:"cache"`
	Server    ServerConfig     `json:"server" yaml:"server"`
	Log       LogConfig        `json:"log" yaml:"log"`
	Telemetry telemetry.Config `json:"telemetry" yaml:"telemetry"`

	apiKey *memguard.Enclave
}

// LLMConfig selects the collaborator backends.
type LLMConfig struct {
	Backend string `json:"backend" yaml:"backend" validate:"required,oneof=ollama openai anthropic gemini"`
	Model   string `json:"model" yaml:"model"`
	BaseURL string `json:"base_url" yaml:"base_url" validate:"omitempty,url"`

	// Fallback is tried when the primary fails. Empty disables it.
	Fallback      string `json:"fallback" yaml:"fallback" validate:"omitempty,oneof=ollama openai anthropic gemini,nefield=Backend"`
	FallbackModel string `json:"fallback_model" yaml:"fallback_model"`

	RequestsPerMinute int           `json:"requests_per_minute" yaml:"requests_per_minute" validate:"gte=0"`
	Timeout           time.Duration `json:"timeout" yaml:"timeout" validate:"gte=0"`
}

// CacheConfig selects the response cache.
type CacheConfig struct {
	Kind       string        `json:"kind" yaml:"kind" validate:"oneof=memory badger none"`
	Dir        string        `json:"dir" yaml:"dir"`
	TTL        time.Duration `json:"ttl" yaml:"ttl" validate:"gte=0"`
	MaxEntries int           `json:"max_entries" yaml:"max_entries" validate:"gte=0"`
}

// ServerConfig configures `serve`.
type ServerConfig struct {
	Addr         string        `json:"addr" yaml:"addr" validate:"required"`
	MaxBodyBytes int64         `json:"max_body_bytes" yaml:"max_body_bytes" validate:"gt=0"`
	RunTimeout   time.Duration `json:"run_timeout" yaml:"run_timeout" validate:"gte=0"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `json:"dir" yaml:"dir"`
	JSON  bool   `json:"json" yaml:"json"`
}

// DefaultConfig returns the standard configuration with a local Ollama
// collaborator.
func DefaultConfig() Config {
	return Config{
		Preset:   PresetStandard,
		Pipeline: pipeline.DefaultConfig(),
		Stations: stations.DefaultOptions(),
		LLM: LLMConfig{
			Backend:           BackendOllama,
			RequestsPerMinute: llm.DefaultRequestsPerMinute,
			Timeout:           llm.DefaultRequestTimeout,
		},
		Cache: CacheConfig{
			Kind:       "memory",
			TTL:        llm.DefaultCacheTTL,
			MaxEntries: 1000,
		},
		Server: ServerConfig{
			Addr:         ":8088",
			MaxBodyBytes: 5 << 20,
			RunTimeout:   30 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Presets returns the pipeline settings of every preset.
func Presets() map[string]pipeline.Config {
	std := pipeline.DefaultConfig()
	return map[string]pipeline.Config{
		PresetQuick: {
			Retry:           pipeline.RetryPolicy{MaxRetries: 2, RetryDelay: 3 * time.Second, Enabled: true},
			InterStageDelay: 4 * time.Second,
		},
		PresetStandard: std,
		PresetRobust: {
			Retry:           pipeline.RetryPolicy{MaxRetries: 5, RetryDelay: 10 * time.Second, Enabled: true},
			InterStageDelay: 8 * time.Second,
		},
	}
}

// ApplyPreset replaces the pipeline settings with the named preset.
func (c *Config) ApplyPreset(name string) error {
	if name == "" {
		name = PresetStandard
	}
	p, ok := Presets()[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	c.Preset = name
	c.Pipeline = p
	return nil
}

// LoadConfig builds a Config from defaults, an optional file, the
// preset and the environment.
//
// Inputs:
//
//	path - YAML or JSON file. Empty or missing files are skipped.
//
// Outputs:
//
//	Config - The validated configuration.
//	error - Non-nil if the file cannot be parsed or validation fails.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	preset := cfg.Preset
	if v := os.Getenv("SCREENPLAY_PRESET"); v != "" {
		preset = v
	}
	if err := cfg.ApplyPreset(preset); err != nil {
		return cfg, err
	}

	loadConfigFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

func loadConfigFromEnv(cfg *Config) {
	// Pipeline
	if v := os.Getenv("SCREENPLAY_MAX_RETRIES"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Retry.MaxRetries = i
		}
	}
	if v := os.Getenv("SCREENPLAY_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pipeline.Retry.RetryDelay = d
		}
	}
	if v := os.Getenv("SCREENPLAY_RETRY_ENABLED"); v != "" {
		cfg.Pipeline.Retry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("SCREENPLAY_INTER_STAGE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pipeline.InterStageDelay = d
		}
	}

	// LLM
	if v := os.Getenv("SCREENPLAY_LLM_BACKEND"); v != "" {
		cfg.LLM.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("SCREENPLAY_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("SCREENPLAY_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("SCREENPLAY_LLM_FALLBACK"); v != "" {
		cfg.LLM.Fallback = strings.ToLower(v)
	}
	if v := os.Getenv("SCREENPLAY_LLM_RPM"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.LLM.RequestsPerMinute = i
		}
	}
	if v := os.Getenv("SCREENPLAY_LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LLM.Timeout = d
		}
	}
	if key := apiKeyFromEnv(cfg.LLM.Backend); key != "" {
		cfg.SetAPIKey(key)
	}

	// Cache
	if v := os.Getenv("SCREENPLAY_CACHE"); v != "" {
		cfg.Cache.Kind = strings.ToLower(v)
	}
	if v := os.Getenv("SCREENPLAY_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("SCREENPLAY_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}

	// Server and logging
	if v := os.Getenv("SCREENPLAY_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SCREENPLAY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("SCREENPLAY_LOG_DIR"); v != "" {
		cfg.Log.Dir = v
	}
	if v := os.Getenv("SCREENPLAY_LOG_JSON"); v != "" {
		cfg.Log.JSON = v == "true" || v == "1"
	}
}

// apiKeyFromEnv reads SCREENPLAY_API_KEY, then the backend's own variable.
func apiKeyFromEnv(backend string) string {
	if v := os.Getenv("SCREENPLAY_API_KEY"); v != "" {
		return v
	}
	switch backend {
	case llm.ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case llm.ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case llm.ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	}
	return ""
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Cache.Kind == "badger" && c.Cache.Dir == "" {
		return errors.New("cache.dir is required for the badger cache")
	}
	if c.LLM.Backend != BackendOllama && c.apiKey == nil {
		return fmt.Errorf("llm backend %s needs an API key: %w", c.LLM.Backend, llm.ErrMissingAPIKey)
	}
	return nil
}

// SetAPIKey seals key in an enclave. An empty key clears it.
func (c *Config) SetAPIKey(key string) {
	if key == "" {
		c.apiKey = nil
		return
	}
	c.apiKey = memguard.NewEnclave([]byte(key))
}

// HasAPIKey reports whether a key is sealed.
func (c *Config) HasAPIKey() bool {
	return c.apiKey != nil
}

// WithAPIKey opens the enclave for the duration of fn.
//
// Description:
//
//	The plaintext buffer is destroyed when fn returns. fn must not keep
//	references to the key beyond the call unless the callee copies it.
func (c *Config) WithAPIKey(fn func(key string) error) error {
	if c.apiKey == nil {
		return fn("")
	}
	buf, err := c.apiKey.Open()
	if err != nil {
		return fmt.Errorf("open api key: %w", err)
	}
	defer buf.Destroy()
	return fn(string(buf.Bytes()))
}
