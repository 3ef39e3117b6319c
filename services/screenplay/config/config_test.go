// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianScreenplay/services/llm"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, PresetStandard, cfg.Preset)
	assert.Equal(t, 3, cfg.Pipeline.Retry.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.Retry.RetryDelay)
	assert.Equal(t, 6*time.Second, cfg.Pipeline.InterStageDelay)
	assert.Equal(t, BackendOllama, cfg.LLM.Backend)
}

func TestApplyPreset(t *testing.T) {
	tests := []struct {
		name    string
		retries int
		delay   time.Duration
		pause   time.Duration
	}{
		{PresetQuick, 2, 3 * time.Second, 4 * time.Second},
		{PresetStandard, 3, 5 * time.Second, 6 * time.Second},
		{PresetRobust, 5, 10 * time.Second, 8 * time.Second},
		{"", 3, 5 * time.Second, 6 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			require.NoError(t, cfg.ApplyPreset(tt.name))
			assert.Equal(t, tt.retries, cfg.Pipeline.Retry.MaxRetries)
			assert.Equal(t, tt.delay, cfg.Pipeline.Retry.RetryDelay)
			assert.Equal(t, tt.pause, cfg.Pipeline.InterStageDelay)
			assert.True(t, cfg.Pipeline.Retry.Enabled)
		})
	}

	cfg := DefaultConfig()
	assert.ErrorIs(t, cfg.ApplyPreset("turbo"), ErrUnknownPreset)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "screenplay.yaml", `
preset: quick
llm:
  backend: ollama
  model: llama3
  requests_per_minute: 30
cache:
  kind: badger
  dir: `+filepath.Join(dir, "cache")+`
log:
  level: debug
`)

	t.Setenv("SCREENPLAY_INTER_STAGE_DELAY", "1s")
	t.Setenv("SCREENPLAY_LLM_MODEL", "mistral")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, PresetQuick, cfg.Preset)
	assert.Equal(t, 2, cfg.Pipeline.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Pipeline.InterStageDelay, "env wins over preset")
	assert.Equal(t, "mistral", cfg.LLM.Model, "env wins over file")
	assert.Equal(t, 30, cfg.LLM.RequestsPerMinute)
	assert.Equal(t, "badger", cfg.Cache.Kind)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_EnvPreset(t *testing.T) {
	t.Setenv("SCREENPLAY_PRESET", PresetRobust)
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Pipeline.Retry.MaxRetries)
}

func TestLoadConfig_JSONAndMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c.json", `{"llm": {"backend": "ollama", "model": "phi3"}}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "phi3", cfg.LLM.Model)

	cfg, err = LoadConfig(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, BackendOllama, cfg.LLM.Backend)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := writeFile(t, dir, "bad.yaml", "log:\n  level: loud\n")
	_, err := LoadConfig(bad)
	assert.Error(t, err)

	garbage := writeFile(t, dir, "garbage.yaml", "{{{")
	_, err = LoadConfig(garbage)
	assert.Error(t, err)
}

func TestValidate_CrossField(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Kind = "badger"
	assert.Error(t, cfg.Validate(), "badger needs a dir")

	cfg = DefaultConfig()
	cfg.LLM.Backend = llm.ProviderOpenAI
	assert.ErrorIs(t, cfg.Validate(), llm.ErrMissingAPIKey)

	cfg.SetAPIKey("sk-test")
	assert.NoError(t, cfg.Validate())

	cfg.LLM.Fallback = llm.ProviderOpenAI
	assert.Error(t, cfg.Validate(), "fallback must differ from primary")
}

func TestAPIKeyEnclave(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.HasAPIKey())

	cfg.SetAPIKey("sk-secret")
	require.True(t, cfg.HasAPIKey())

	var seen string
	require.NoError(t, cfg.WithAPIKey(func(key string) error {
		seen = key
		return nil
	}))
	assert.Equal(t, "sk-secret", seen)

	cfg.SetAPIKey("")
	assert.False(t, cfg.HasAPIKey())
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("SCREENPLAY_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "ak-1")
	t.Setenv("SCREENPLAY_LLM_BACKEND", "anthropic")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.True(t, cfg.HasAPIKey())
}

func TestBuildClient(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Model = "llama3"
	cfg.LLM.BaseURL = "http://127.0.0.1:1"

	c, err := cfg.BuildClient(nil)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "ollama/llama3", c.Generator.Name())
	assert.NotNil(t, c.Backend)
}

func TestBuildClient_BadgerCache(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Kind = "badger"
	cfg.Cache.Dir = filepath.Join(t.TempDir(), "cache")

	c, err := cfg.BuildClient(nil)
	require.NoError(t, err)
	require.NoError(t, c.Close())
}

func TestBuildClient_Fallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Kind = "none"
	cfg.LLM.Fallback = llm.ProviderOpenAI
	cfg.SetAPIKey("sk-test")

	c, err := cfg.BuildClient(nil)
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "screenplay.yaml", "preset: quick\n")

	changes := make(chan Config, 4)
	w, err := NewWatcher(path, func(c Config) { changes <- c }, nil)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	writeFile(t, dir, "other.yaml", "preset: robust\n")
	writeFile(t, dir, "screenplay.yaml", "preset: robust\n")

	// A truncating write can be observed half done; wait for the final one.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Preset == PresetRobust {
				return
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}
