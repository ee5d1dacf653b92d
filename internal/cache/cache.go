// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

// Package cache provides the short-lived in-process cache that absorbs
// repeated dashboard requests between synchronization runs.
//
// Eviction is lazy: an expired entry is removed the next time its key is
// looked up, never by a background sweeper. Entries are read-only until
// expiry. Concurrent misses for the same key may both compute and both
// write; the last writer wins. Recomputation is idempotent and side-effect
// free, so this duplicate work is accepted rather than serialized behind a
// per-key lock.
package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// Entry is a cached value with its expiration and creation time.
type Entry struct {
	Data      any
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Cache is a thread-safe in-memory TTL cache with lazy eviction.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration

	statsMu sync.Mutex
	stats   Stats

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// Stats tracks cache performance counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// New creates a cache with the given default TTL.
func New(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the value for key and how long ago it was stored.
// An expired entry is deleted on lookup and reported as a miss.
func (c *Cache) Get(key string) (any, time.Duration, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		c.recordMiss()
		return nil, 0, false
	}

	now := c.now()
	if now.After(entry.ExpiresAt) {
		c.mu.Lock()
		// Re-check under the write lock: another goroutine may have
		// replaced the entry since the read.
		if cur, ok := c.entries[key]; ok && now.After(cur.ExpiresAt) {
			delete(c.entries, key)
			c.recordEviction()
		}
		c.mu.Unlock()
		c.recordMiss()
		return nil, 0, false
	}

	c.recordHit()
	return entry.Data, now.Sub(entry.CreatedAt), true
}

// Set stores a value with the cache's default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL, overwriting any existing
// entry for the key.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	now := c.now()
	c.mu.Lock()
	c.entries[key] = Entry{
		Data:      value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	c.mu.Unlock()
}

// GetOrCompute returns the cached value for key, or invokes compute on a
// miss and stores the result with the given TTL. The hit flag and age refer
// to the returned value. compute runs outside the cache lock, so concurrent
// misses may compute twice (last writer wins).
func (c *Cache) GetOrCompute(key string, ttl time.Duration, compute func() (any, error)) (any, time.Duration, bool, error) {
	if value, age, ok := c.Get(key); ok {
		return value, age, true, nil
	}

	value, err := compute()
	if err != nil {
		return nil, 0, false, err
	}

	c.SetWithTTL(key, value, ttl)
	return value, 0, false, nil
}

// Delete removes a cache entry. No-op for absent keys.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.recordEviction()
	}
	c.mu.Unlock()
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	evicted := int64(len(c.entries))
	c.entries = make(map[string]Entry)
	c.mu.Unlock()

	c.statsMu.Lock()
	c.stats.Evictions += evicted
	c.statsMu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Contains reports whether key is present in internal storage, without
// expiry checking or stats side effects. Intended for tests and
// introspection.
func (c *Cache) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

// GetStats returns a snapshot of the cache counters.
func (c *Cache) GetStats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// HitRate returns the cache hit rate as a percentage.
func (c *Cache) HitRate() float64 {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total) * 100.0
}

func (c *Cache) recordHit() {
	c.statsMu.Lock()
	c.stats.Hits++
	c.statsMu.Unlock()
}

func (c *Cache) recordMiss() {
	c.statsMu.Lock()
	c.stats.Misses++
	c.statsMu.Unlock()
}

func (c *Cache) recordEviction() {
	c.statsMu.Lock()
	c.stats.Evictions++
	c.statsMu.Unlock()
}

// GenerateKey builds a cache key from a name and the parameters that define
// the query shape (filter, window). Parameters are serialized and hashed so
// equivalent queries share an entry.
func GenerateKey(name string, params any) string {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%s:%v", name, params)
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", name, hash[:16])
}
