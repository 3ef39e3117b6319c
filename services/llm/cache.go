// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

// Cache stores generated responses keyed by CacheKey.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Close() error
}

// CacheKey hashes everything that influences a response.
func CacheKey(backend, prompt string, params GenerationParams) string {
	payload, _ := json.Marshal(struct {
		Backend string           `json:"backend"`
		Prompt  string           `json:"prompt"`
		Params  GenerationParams `json:"params"`
	}{backend, prompt, params})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// DefaultMaxCacheEntries bounds a MemoryCache created with max <= 0.
const DefaultMaxCacheEntries = 1024

type cacheEntry struct {
	value   string
	expires time.Time
}

// MemoryCache is an in-process TTL cache.
//
// Thread Safety: Safe for concurrent use.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	max     int
	now     func() time.Time
}

// NewMemoryCache creates a cache holding at most max entries.
func NewMemoryCache(max int) *MemoryCache {
	if max <= 0 {
		max = DefaultMaxCacheEntries
	}
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		max:     max,
		now:     time.Now,
	}
}

// Get returns a live entry.
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return "", false
	}
	return e.value, true
}

// Set stores value for ttl. When full, expired entries are dropped first,
// then the entry closest to expiry.
func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.max {
		c.evictLocked(now)
	}
	c.entries[key] = cacheEntry{value: value, expires: now.Add(ttl)}
	return nil
}

func (c *MemoryCache) evictLocked(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) < c.max {
		return
	}
	var oldest string
	var oldestExp time.Time
	for k, e := range c.entries {
		if oldest == "" || e.expires.Before(oldestExp) {
			oldest, oldestExp = k, e.expires
		}
	}
	delete(c.entries, oldest)
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close drops all entries.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	return nil
}
