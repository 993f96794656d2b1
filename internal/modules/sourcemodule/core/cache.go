// Package core implements source resolution: the process-lifetime
// resolution cache, per-base HLS readiness tracking and the resolver.
package core

import (
	"sync"

	"github.com/mantonx/streamgate/internal/types"
)

type probeState int

const (
	stateUncached probeState = iota
	stateProbing
	stateSettled
)

func (s probeState) String() string {
	switch s {
	case stateProbing:
		return "probing"
	case stateSettled:
		return "settled"
	default:
		return "uncached"
	}
}

// readinessEntry tracks one base URL. done is closed when the entry moves
// from probing to settled; ready is only meaningful once settled.
type readinessEntry struct {
	state probeState
	ready bool
	done  chan struct{}
}

// Cache owns all resolver state. Entries live for the lifetime of the
// Cache; there is no TTL and no eviction.
type Cache struct {
	mu        sync.Mutex
	sources   map[types.AssetPath]types.VideoSource
	readiness map[string]*readinessEntry
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		sources:   make(map[types.AssetPath]types.VideoSource),
		readiness: make(map[string]*readinessEntry),
	}
}

// Source returns the cached resolution for path.
func (c *Cache) Source(path types.AssetPath) (types.VideoSource, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	src, ok := c.sources[path]
	return src, ok
}

// StoreSource caches src for path unless a source is already present, and
// returns the cached value. The first stored source wins.
func (c *Cache) StoreSource(path types.AssetPath, src types.VideoSource) types.VideoSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.sources[path]; ok {
		return existing
	}
	c.sources[path] = src
	return src
}

// acquireProbe moves an uncached base to probing and reports whether the
// caller won the probe. Losers receive the existing entry to wait on.
func (c *Cache) acquireProbe(base string) (*readinessEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.readiness[base]
	if !ok {
		entry = &readinessEntry{state: stateUncached}
		c.readiness[base] = entry
	}
	if entry.state != stateUncached {
		return entry, false
	}
	entry.state = stateProbing
	entry.done = make(chan struct{})
	return entry, true
}

// settleProbe records the probe outcome and releases waiters.
func (c *Cache) settleProbe(entry *readinessEntry, ready bool) {
	c.mu.Lock()
	entry.state = stateSettled
	entry.ready = ready
	c.mu.Unlock()
	close(entry.done)
}

// releaseProbe returns a probing entry to uncached without recording an
// outcome, so the next caller probes again. Waiters are released and see
// no settled answer.
func (c *Cache) releaseProbe(entry *readinessEntry) {
	c.mu.Lock()
	entry.state = stateUncached
	entry.ready = false
	c.mu.Unlock()
	close(entry.done)
}

// readinessOf returns the state of base and, when settled, its outcome.
func (c *Cache) readinessOf(base string) (probeState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.readiness[base]
	if !ok {
		return stateUncached, false
	}
	return entry.state, entry.ready
}

// Stats summarizes the cache contents.
func (c *Cache) Stats() types.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := types.CacheStats{Sources: len(c.sources)}
	for _, entry := range c.readiness {
		switch entry.state {
		case stateProbing:
			stats.ProbesActive++
		case stateSettled:
			if entry.ready {
				stats.ReadyHLS++
			} else {
				stats.NotReadyHLS++
			}
		}
	}
	return stats
}
