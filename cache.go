// cache.go: disk-backed cache core
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// subjectParam is the canonical parameter name carrying the subject code,
// mirrored into CacheEntry.Subject for query and reporting.
const subjectParam = "ts_code"

// Cache is a disk-backed market-bar cache with byte-budget LRU eviction,
// TTL expiry and per-subject full-history synchronization.
//
// The API is synchronous and single-call-at-a-time: an internal mutex
// guards against accidental concurrent use within a process, but there is
// no cross-process locking on the metadata table or access log. Concurrent
// writer processes sharing one cache directory can lose interleaved index
// updates; run one writing process per directory, or shard the directory
// per worker.
type Cache struct {
	mu        sync.Mutex
	dir       string
	codecName string

	index  *metaIndex
	access *accessLog
	store  *barStore

	calendars *CalendarOracle // nil without a CalendarProvider
	eval      *Evaluator

	budgetBytes atomic.Int64
	ttlNanos    atomic.Int64

	logger       Logger
	timeProvider TimeProvider
}

// New creates a cache rooted at config.Dir, creating the directory if
// needed and loading the existing metadata table and access log.
func New(config Config) (*Cache, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, NewErrInvalidConfig("cannot create cache dir: " + err.Error())
	}

	index, err := openIndex(config.Dir, config.Logger)
	if err != nil {
		return nil, err
	}
	store, err := newBarStore(config.Dir, config.Codec)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		dir:          config.Dir,
		codecName:    config.Codec,
		index:        index,
		access:       openAccessLog(config.Dir, config.Logger),
		store:        store,
		logger:       config.Logger,
		timeProvider: config.TimeProvider,
	}
	c.budgetBytes.Store(config.BudgetBytes)
	c.ttlNanos.Store(int64(config.TTLDays) * int64(24*time.Hour))

	if config.Calendars != nil {
		c.calendars = NewCalendarOracle(c, config.Calendars)
	}
	c.eval = NewEvaluator(c.calendars, config.Logger)

	return c, nil
}

// Get returns the cached table for (kind, params), range-filtered and
// completeness-checked per opts. The boolean result distinguishes a miss
// from a hit; misses are normal negative results, never errors.
//
// Lookups are where TTL expiry runs: an entry older than the configured
// TTL is deleted (file, metadata and access-log row) and reported as a
// miss. Corrupt entries are likewise deleted and reported as misses.
func (c *Cache) Get(kind string, params map[string]string, opts GetOptions) (*Table, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(kind, params, opts)
}

func (c *Cache) get(kind string, params map[string]string, opts GetOptions) (*Table, bool) {
	if kind == "" {
		return nil, false
	}
	key := cacheKey(kind, params)
	entry, ok := c.index.find(key)
	if !ok {
		return nil, false
	}

	if c.expired(entry) {
		c.logger.Info("entry past TTL, removing", "key", key, "kind", entry.Kind)
		c.removeEntry(key)
		return nil, false
	}

	bars, err := c.store.read(entry.Path)
	if err != nil {
		c.logger.Warn("corrupt entry removed", "key", key, "error", err)
		c.removeEntry(key)
		return nil, false
	}

	table := NewTable(bars)
	slice := table.Slice(opts.RangeStart, opts.RangeEnd)
	if slice.Len() == 0 {
		return nil, false
	}

	if opts.ExpectedDays > 0 {
		actual := slice.Len()
		if actual < opts.ExpectedDays {
			c.logger.Debug("cached range incomplete, treating as miss",
				"key", key, "actual", actual, "expected", opts.ExpectedDays)
			return nil, false
		}
		if opts.Exact && actual > opts.ExpectedDays {
			// Never silently truncate: surplus bars mean duplicate or
			// anomalous upstream data and the entry cannot be trusted.
			c.logger.Warn("duplicate-data anomaly, treating as miss",
				"key", key, "actual", actual, "expected", opts.ExpectedDays,
				"error", NewErrCompletenessViolation(key, actual, opts.ExpectedDays))
			return nil, false
		}
		if opts.Exact && !entry.Complete &&
			opts.RangeStart == entry.RangeStart && opts.RangeEnd == entry.RangeEnd {
			entry.Complete = true
			if err := c.index.save(); err != nil {
				c.logger.Warn("failed to re-mark entry complete", "key", key, "error", err)
			}
		}
	}

	c.access.touch(key, c.timeProvider.Now())
	return slice, true
}

// Set stores table under (kind, params), marking it complete when the
// caller verified the record count against the expected trading days.
// Eviction runs first, so a write never pushes the directory further past
// budget. A store failure aborts the write and leaves any previous entry
// for the key untouched.
//
// The params value under "ts_code", if present, is recorded as the
// entry's subject for querying and eviction protection.
func (c *Cache) Set(kind string, params map[string]string, table *Table, complete bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set(kind, params, table, complete)
}

func (c *Cache) set(kind string, params map[string]string, table *Table, complete bool) error {
	if kind == "" {
		return NewErrEmptyKind("Set")
	}
	c.evictIfNeeded()

	key := cacheKey(kind, params)
	now := c.timeProvider.Now()

	name, err := c.store.write(key, table.Bars(), time.Unix(0, now))
	if err != nil {
		return err
	}

	entry := &CacheEntry{
		Key:         key,
		Kind:        kind,
		Subject:     params[subjectParam],
		Path:        name,
		RangeStart:  table.MinDate(),
		RangeEnd:    table.MaxDate(),
		LastUpdated: now,
		Complete:    complete,
		RecordCount: table.Len(),
	}
	if err := c.index.put(entry); err != nil {
		return err
	}
	c.access.touch(key, now)
	c.logger.Debug("cached entry", "key", key, "records", entry.RecordCount, "complete", complete)
	return nil
}

// Clear removes entries older than the given number of days, or all
// entries when olderThanDays <= 0. Access-log rows for removed entries
// are pruned.
func (c *Cache) Clear(olderThanDays int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var cutoff int64
	if olderThanDays > 0 {
		cutoff = c.timeProvider.Now() - int64(olderThanDays)*int64(24*time.Hour)
	}

	var firstErr error
	for _, e := range c.index.all() {
		if cutoff > 0 && e.LastUpdated >= cutoff {
			continue
		}
		if err := c.index.remove(e.Key); err != nil {
			c.logger.Warn("failed to clear entry", "key", e.Key, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	live := make(map[string]struct{}, len(c.index.entries))
	for k := range c.index.entries {
		live[k] = struct{}{}
	}
	c.access.prune(live)
	return firstErr
}

// Report summarizes the live cache contents.
func (c *Cache) Report() Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := Report{
		ByKind:    make(map[string]int),
		BySubject: make(map[string]int),
	}
	for _, e := range c.index.all() {
		r.TotalEntries++
		r.TotalBytes += c.store.fileSize(e.Path)
		if e.Complete {
			r.CompleteCount++
		} else {
			r.IncompleteCount++
		}
		r.ByKind[e.Kind]++
		if e.Subject != "" {
			r.BySubject[e.Subject]++
		}
	}
	return r
}

// Calendars returns the calendar oracle, or nil when the cache was built
// without a CalendarProvider.
func (c *Cache) Calendars() *CalendarOracle {
	return c.calendars
}

// SetBudgetBytes updates the eviction byte budget at runtime.
// Non-positive values are ignored.
func (c *Cache) SetBudgetBytes(n int64) {
	if n > 0 {
		c.budgetBytes.Store(n)
	}
}

// BudgetBytes returns the current eviction byte budget.
func (c *Cache) BudgetBytes() int64 {
	return c.budgetBytes.Load()
}

// SetTTLDays updates the entry TTL at runtime. Negative values are
// ignored; 0 disables expiry.
func (c *Cache) SetTTLDays(days int) {
	if days >= 0 {
		c.ttlNanos.Store(int64(days) * int64(24*time.Hour))
	}
}

// TTLDays returns the current TTL in days (0 = entries never expire).
func (c *Cache) TTLDays() int {
	return int(c.ttlNanos.Load() / int64(24*time.Hour))
}

// SetCodec switches the compression codec for subsequent writes.
// Existing payload files are not rewritten; use Convert for that.
func (c *Cache) SetCodec(name string) error {
	store, err := newBarStore(c.dir, name)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = store
	c.codecName = name
	return nil
}

// Codec returns the codec identifier used for writes.
func (c *Cache) Codec() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codecName
}

// Close flushes nothing (all mutations are persisted eagerly) and exists
// for symmetry with other resource-holding types.
func (c *Cache) Close() error {
	return nil
}

// expired reports whether the entry is past TTL. Full-history entries are
// exempt by policy: their content is monotonically extended, not
// time-sensitive as a whole.
func (c *Cache) expired(entry *CacheEntry) bool {
	ttl := c.ttlNanos.Load()
	if ttl <= 0 || entry.Kind == KindDailyFull {
		return false
	}
	return c.timeProvider.Now()-entry.LastUpdated > ttl
}

// removeEntry deletes metadata, backing file and access-log row.
func (c *Cache) removeEntry(key string) {
	if err := c.index.remove(key); err != nil {
		c.logger.Warn("failed to remove entry", "key", key, "error", err)
	}
	c.access.remove(key)
}
