// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

package cache

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.cur = f.cur.Add(d)
	f.mu.Unlock()
}

func newTestCache(ttl time.Duration) (*Cache, *fakeClock) {
	clock := &fakeClock{cur: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
	c := New(ttl)
	c.now = clock.Now
	return c, clock
}

func TestCacheBasicOperations(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	c.Set("key1", "value1")
	value, _, exists := c.Get("key1")
	if !exists {
		t.Error("expected key1 to exist")
	}
	if value != "value1" {
		t.Errorf("expected value1, got %v", value)
	}

	if _, _, exists = c.Get("key2"); exists {
		t.Error("expected key2 to not exist")
	}
}

func TestCacheExpirationAndLazyEviction(t *testing.T) {
	c, clock := newTestCache(time.Minute)

	c.SetWithTTL("key1", "value1", 1*time.Second)

	if _, _, exists := c.Get("key1"); !exists {
		t.Fatal("expected key1 immediately after set")
	}

	clock.Advance(1500 * time.Millisecond)

	if _, _, exists := c.Get("key1"); exists {
		t.Error("expected key1 to be expired after 1.5s")
	}
	// The expired entry must be gone from internal storage after the
	// lookup, not just hidden.
	if c.Contains("key1") {
		t.Error("expected expired key1 to be evicted on lookup")
	}
}

func TestCacheNoProactiveSweep(t *testing.T) {
	c, clock := newTestCache(time.Minute)

	c.SetWithTTL("stale", 1, 1*time.Second)
	clock.Advance(10 * time.Second)

	// Nothing has looked the key up, so it must still occupy storage.
	if !c.Contains("stale") {
		t.Error("expired entry evicted without a lookup")
	}
}

func TestCacheAge(t *testing.T) {
	c, clock := newTestCache(time.Minute)

	c.Set("k", "v")
	clock.Advance(12 * time.Second)

	_, age, exists := c.Get("k")
	if !exists {
		t.Fatal("expected k to exist")
	}
	if age != 12*time.Second {
		t.Errorf("expected age 12s, got %s", age)
	}
}

func TestGetOrComputeMissThenHit(t *testing.T) {
	c, clock := newTestCache(time.Minute)

	calls := 0
	compute := func() (any, error) {
		calls++
		return "payload", nil
	}

	value, age, hit, err := c.GetOrCompute("dash", 30*time.Second, compute)
	if err != nil {
		t.Fatal(err)
	}
	if hit || value != "payload" || age != 0 {
		t.Errorf("first call: hit=%v value=%v age=%s, want miss/payload/0", hit, value, age)
	}

	clock.Advance(5 * time.Second)

	value, age, hit, err = c.GetOrCompute("dash", 30*time.Second, compute)
	if err != nil {
		t.Fatal(err)
	}
	if !hit || value != "payload" {
		t.Errorf("second call: hit=%v value=%v, want hit/payload", hit, value)
	}
	if age != 5*time.Second {
		t.Errorf("second call: age=%s, want 5s", age)
	}
	if calls != 1 {
		t.Errorf("compute ran %d times, want 1", calls)
	}
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	boom := errors.New("remote down")
	_, _, _, err := c.GetOrCompute("dash", time.Minute, func() (any, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}
	if c.Contains("dash") {
		t.Error("failed compute must not be cached")
	}
}

func TestCacheDeleteAndClear(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	c.Set("key1", "value1")
	c.Delete("key1")
	if _, _, exists := c.Get("key1"); exists {
		t.Error("expected key1 to be deleted")
	}

	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after Clear, got %d entries", c.Len())
	}
}

func TestCacheStats(t *testing.T) {
	c, clock := newTestCache(time.Minute)

	c.Set("k", "v")
	c.Get("k")         // hit
	c.Get("absent")    // miss
	clock.Advance(2 * time.Minute)
	c.Get("k") // expired: miss + eviction

	stats := c.GetStats()
	if stats.Hits != 1 || stats.Misses != 2 || stats.Evictions != 1 {
		t.Errorf("stats = %+v, want hits=1 misses=2 evictions=1", stats)
	}
	if rate := c.HitRate(); rate < 33.0 || rate > 34.0 {
		t.Errorf("hit rate = %.2f, want ~33.33", rate)
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.Set("shared", n)
				c.Get("shared")
			}
		}(i)
	}
	wg.Wait()

	if _, _, exists := c.Get("shared"); !exists {
		t.Error("expected shared key to survive concurrent writes")
	}
}

func TestGenerateKeyStableForEqualParams(t *testing.T) {
	type params struct {
		Client string
		Window int
	}

	k1 := GenerateKey("dashboard", params{"acme", 7})
	k2 := GenerateKey("dashboard", params{"acme", 7})
	k3 := GenerateKey("dashboard", params{"acme", 14})

	if k1 != k2 {
		t.Errorf("equal params produced different keys: %s vs %s", k1, k2)
	}
	if k1 == k3 {
		t.Error("different params produced the same key")
	}
}
