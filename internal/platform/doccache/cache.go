// Package doccache provides a TTL-bounded, capacity-bounded in-memory cache
// for resolved documents. Expiry-on-read is the ground truth: a read after
// an entry's deadline behaves identically to a miss whether or not the
// advisory background sweep has run. Eviction on insert is by insertion
// order: the oldest-inserted live entry goes first, and updating an existing
// key never changes its insertion rank.
package doccache

import (
	"log/slog"
	"sync"
	"time"

	"github.com/langkit/opcore/internal/domain/document"
)

// Policy defaults, overridable per cache instance via Config.
const (
	DefaultTTL             = 5 * time.Minute
	DefaultMaxEntries      = 100
	DefaultCleanupInterval = 60 * time.Second
)

// Config holds cache policy settings. Zero values fall back to the package
// defaults.
type Config struct {
	DefaultTTL      time.Duration
	MaxEntries      int
	CleanupInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = DefaultTTL
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	return c
}

// Stats is a point-in-time snapshot of cache effectiveness counters.
// HitRate is hits/(hits+misses), or 0 when there have been no lookups.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Size    int
	HitRate float64
}

type entry struct {
	doc       *document.Document
	etag      string
	expiresAt time.Time
	// seq orders entries by first insertion; Set on an existing key keeps
	// the original value so eviction stays insertion-ordered.
	seq uint64
}

// Cache is a mutex-guarded document cache. All methods are safe for
// concurrent use. The zero value is not usable; construct with New.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	nextSeq uint64
	hits    uint64
	misses  uint64

	cfg    Config
	logger *slog.Logger

	// nowFn is swapped in tests to drive expiry deterministically.
	nowFn func() time.Time

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// New creates an empty cache with the given policy. A nil-safe discard
// logger is substituted when logger is nil.
func New(cfg Config, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		entries: make(map[string]*entry),
		cfg:     cfg.withDefaults(),
		logger:  logger,
		nowFn:   time.Now,
	}
}

// Set inserts or overwrites the entry under key. A ttl of 0 uses the
// configured default. Inserting a new key beyond capacity first purges
// expired entries, then evicts the oldest-inserted live entry.
func (c *Cache) Set(key string, doc *document.Document, etag string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFn()

	if existing, ok := c.entries[key]; ok {
		if now.Before(existing.expiresAt) {
			existing.doc = doc
			existing.etag = etag
			existing.expiresAt = now.Add(ttl)
			return
		}
		// An expired entry behaves like a miss, so re-setting it is a
		// fresh insert with a new insertion rank.
		delete(c.entries, key)
	}

	c.purgeExpiredLocked(now)
	if len(c.entries) >= c.cfg.MaxEntries {
		c.evictOldestLocked()
	}

	c.nextSeq++
	c.entries[key] = &entry{
		doc:       doc,
		etag:      etag,
		expiresAt: now.Add(ttl),
		seq:       c.nextSeq,
	}
}

// Get returns the live document stored under key. Absent and expired
// entries both count as misses; an expired read never resurrects the entry.
func (c *Cache) Get(key string) (*document.Document, bool) {
	doc, _, ok := c.GetWithETag(key)
	return doc, ok
}

// GetWithETag is Get plus the entry's integrity tag.
func (c *Cache) GetWithETag(key string) (*document.Document, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.liveEntryLocked(key)
	if !ok {
		c.misses++
		return nil, "", false
	}
	c.hits++
	return e.doc, e.etag, true
}

// Has reports whether a live entry exists under key, with the same expiry
// and stats semantics as Get.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.liveEntryLocked(key); !ok {
		c.misses++
		return false
	}
	c.hits++
	return true
}

// Invalidate removes the entry under key. Idempotent; absent keys are a
// no-op.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries and resets the hit/miss counters to zero.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.hits = 0
	c.misses = 0
}

// GetStats returns a snapshot of the cache counters. Size counts stored
// entries including any expired ones not yet swept.
func (c *Cache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Hits: c.hits, Misses: c.misses, Size: len(c.entries)}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// StartCleanup launches the advisory background sweep that physically
// removes expired entries on the configured interval. Starting twice is a
// no-op. Correctness of reads never depends on the sweep having run.
func (c *Cache) StartCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sweepStop != nil {
		return
	}
	c.sweepStop = make(chan struct{})
	c.sweepDone = make(chan struct{})

	go c.sweepLoop(c.sweepStop, c.sweepDone)
}

// StopCleanup stops the background sweep and waits for it to exit.
// Stopping when not started is a no-op.
func (c *Cache) StopCleanup() {
	c.mu.Lock()
	stop, done := c.sweepStop, c.sweepDone
	c.sweepStop = nil
	c.sweepDone = nil
	c.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (c *Cache) sweepLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			before := len(c.entries)
			c.purgeExpiredLocked(c.nowFn())
			removed := before - len(c.entries)
			c.mu.Unlock()

			if removed > 0 {
				c.logger.Debug("cache sweep removed expired entries",
					slog.Int("removed", removed),
				)
			}
		}
	}
}

// liveEntryLocked returns the entry under key when it has not expired.
// Expired entries are removed so that a later insert cannot resurrect them.
func (c *Cache) liveEntryLocked(key string) (*entry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.nowFn().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e, true
}

func (c *Cache) purgeExpiredLocked(now time.Time) {
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// evictOldestLocked removes the entry with the smallest insertion sequence.
// Callers purge expired entries first, so the victim is always live.
func (c *Cache) evictOldestLocked() {
	var (
		victim string
		oldest uint64
		found  bool
	)
	for key, e := range c.entries {
		if !found || e.seq < oldest {
			victim, oldest, found = key, e.seq, true
		}
	}
	if found {
		delete(c.entries, victim)
	}
}
