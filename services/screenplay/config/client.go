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
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/AleutianAI/AleutianScreenplay/services/llm"
)

const defaultOllamaURL = "http://localhost:11434"

// Client is a collaborator together with the resources it holds.
type Client struct {
	// Generator is the decorated collaborator the stations use.
	Generator *llm.ResilientClient

	// Backend is the undecorated primary, for health checks.
	Backend llm.LLMClient

	cache llm.Cache
}

// Close releases the response cache.
func (c *Client) Close() error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Close()
}

// BuildClient constructs the configured collaborator stack.
//
// Description:
//
//	Builds the primary backend, the optional fallback and the response
//	cache, then wraps them in a ResilientClient. The API key is opened
//	from its enclave only while the backends are constructed.
//
// Outputs:
//
//	*Client - The collaborator. Caller must call Close().
//	error - Non-nil if a backend or the cache cannot be created.
func (c *Config) BuildClient(logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var primary, fallback llm.LLMClient
	err := c.WithAPIKey(func(key string) error {
		var err error
		primary, err = newBackend(c.LLM.Backend, c.LLM.Model, c.LLM.BaseURL, key, logger)
		if err != nil {
			return fmt.Errorf("primary backend: %w", err)
		}
		if c.LLM.Fallback != "" {
			fallback, err = newBackend(c.LLM.Fallback, c.LLM.FallbackModel, "", key, logger)
			if err != nil {
				return fmt.Errorf("fallback backend: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cache, err := c.openCache(logger)
	if err != nil {
		return nil, err
	}

	opts := []llm.ResilientOption{}
	if fallback != nil {
		opts = append(opts, llm.WithFallback(fallback))
	}
	if cache != nil {
		opts = append(opts, llm.WithCache(cache))
	}
	rc, err := llm.NewResilientClient(primary, llm.ResilientConfig{
		RequestsPerMinute: c.LLM.RequestsPerMinute,
		CacheTTL:          c.Cache.TTL,
		Timeout:           c.LLM.Timeout,
	}, logger, opts...)
	if err != nil {
		if cache != nil {
			_ = cache.Close()
		}
		return nil, err
	}
	return &Client{Generator: rc, Backend: primary, cache: cache}, nil
}

func newBackend(name, model, baseURL, key string, logger *slog.Logger) (llm.LLMClient, error) {
	switch name {
	case BackendOllama:
		if baseURL == "" {
			baseURL = os.Getenv("OLLAMA_BASE_URL")
		}
		if baseURL == "" {
			baseURL = defaultOllamaURL
		}
		if model == "" {
			model = os.Getenv("OLLAMA_MODEL")
		}
		return llm.NewOllamaClient(baseURL, model, logger)
	case llm.ProviderOpenAI, llm.ProviderAnthropic, llm.ProviderGemini:
		return llm.NewOpenAIClient(llm.OpenAIConfig{
			Provider: name,
			APIKey:   key,
			Model:    model,
			BaseURL:  baseURL,
		}, logger)
	}
	return nil, fmt.Errorf("unknown backend %q: %w", name, llm.ErrNoBackend)
}

func (c *Config) openCache(logger *slog.Logger) (llm.Cache, error) {
	switch c.Cache.Kind {
	case "", "none":
		return nil, nil
	case "memory":
		return llm.NewMemoryCache(c.Cache.MaxEntries), nil
	case "badger":
		bc, err := llm.OpenBadgerCache(c.Cache.Dir, logger)
		if err != nil {
			return nil, fmt.Errorf("response cache: %w", err)
		}
		return bc, nil
	}
	return nil, errors.New("unknown cache kind " + c.Cache.Kind)
}
