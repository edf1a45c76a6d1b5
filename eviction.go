// eviction.go: byte-budget LRU eviction
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

// evictIfNeeded enforces the byte budget. It runs before every write, not
// on a timer: if the live payload files fit the budget it is a no-op,
// otherwise it walks the access log least-recently-used first and removes
// entries until total size drops to evictTargetRatio of the budget. The
// margin below budget avoids re-evicting on every subsequent write.
//
// Full-history entries are never evicted: they represent entire trading
// histories that are expensive or impossible to re-fetch. Per-entry
// eviction failures are logged and skipped, not fatal.
func (c *Cache) evictIfNeeded() {
	budget := c.budgetBytes.Load()
	if budget <= 0 {
		return
	}
	total := c.totalBytes()
	if total <= budget {
		return
	}

	target := int64(float64(budget) * evictTargetRatio)
	c.logger.Info("cache over budget, evicting",
		"total_bytes", total, "budget_bytes", budget, "target_bytes", target)

	for _, key := range c.access.oldestFirst() {
		if total <= target {
			break
		}
		entry, ok := c.index.find(key)
		if !ok {
			// Inert log row for a key no longer indexed.
			c.access.remove(key)
			continue
		}
		if entry.Kind == KindDailyFull {
			continue // protected
		}
		size := c.store.fileSize(entry.Path)
		if err := c.index.remove(key); err != nil {
			c.logger.Warn("eviction failed, skipping entry",
				"key", key, "error", NewErrEvictionFailed(key, err))
			continue
		}
		c.access.remove(key)
		total -= size
		c.logger.Debug("evicted entry", "key", key, "bytes", size)
	}

	if total > target {
		c.logger.Warn("eviction could not reach target, remaining entries are protected or untracked",
			"total_bytes", total, "target_bytes", target)
	}
}

// totalBytes sums the sizes of all live payload files.
func (c *Cache) totalBytes() int64 {
	var total int64
	for _, e := range c.index.all() {
		total += c.store.fileSize(e.Path)
	}
	return total
}
