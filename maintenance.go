// maintenance.go: offline cache maintenance (verify, convert, rebuild)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Verify cross-checks the metadata table against the payload files and
// returns one issue per problem found. It never mutates the cache: the
// caller decides whether to remove offenders (Clear, Rebuild) or leave
// them for inspection.
func (c *Cache) Verify() []VerifyIssue {
	c.mu.Lock()
	defer c.mu.Unlock()

	var issues []VerifyIssue
	for _, e := range c.index.all() {
		full := c.index.filePath(e)
		if _, err := os.Stat(full); err != nil {
			issues = append(issues, VerifyIssue{
				Key: e.Key, Path: e.Path,
				Problem: "missing-file", Detail: err.Error(),
			})
			continue
		}
		bars, err := c.store.read(e.Path)
		if err != nil {
			issues = append(issues, VerifyIssue{
				Key: e.Key, Path: e.Path,
				Problem: "unreadable", Detail: err.Error(),
			})
			continue
		}
		if len(bars) != e.RecordCount {
			issues = append(issues, VerifyIssue{
				Key: e.Key, Path: e.Path,
				Problem: "count-mismatch",
				Detail:  "index says " + strconv.Itoa(e.RecordCount) + ", file has " + strconv.Itoa(len(bars)),
			})
		}
		if dups := duplicateDates(bars); len(dups) > 0 {
			issues = append(issues, VerifyIssue{
				Key: e.Key, Path: e.Path,
				Problem: "duplicate-dates",
				Detail:  strings.Join(dups, ","),
			})
		}
	}
	c.logger.Info("verify finished", "entries", len(c.index.entries), "issues", len(issues))
	return issues
}

// Convert re-encodes every payload file with the given codec and makes it
// the codec for subsequent writes. Entries whose payload cannot be read
// are skipped with a warning; the first write failure aborts, leaving the
// already converted entries valid under their new files.
func (c *Cache) Convert(codecName string) error {
	store, err := newBarStore(c.dir, codecName)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	converted := 0
	for _, e := range c.index.all() {
		bars, err := c.store.read(e.Path)
		if err != nil {
			c.logger.Warn("skipping unreadable entry during conversion",
				"key", e.Key, "error", err)
			continue
		}
		name, err := store.write(e.Key, bars, time.Unix(0, c.timeProvider.Now()))
		if err != nil {
			return err
		}
		oldPath := e.Path
		e.Path = name
		if err := c.index.put(e); err != nil {
			return err
		}
		// put compares against the already-mutated entry, so the
		// superseded payload must go explicitly.
		if oldPath != name {
			c.removeStrayFile(oldPath)
		}
		converted++
	}

	c.store = store
	c.codecName = codecName
	c.logger.Info("converted cache", "codec", codecName, "entries", converted)
	return nil
}

// payloadNamePattern splits a payload file name into its key and write
// timestamp. The key itself may contain underscores, so the timestamp is
// anchored to the end.
var payloadNamePattern = regexp.MustCompile(`^(.+)_(\d{8}_\d{6})\.parquet$`)

// knownKinds in longest-prefix-first order, so "daily_full" wins over
// "daily" when classifying a reconstructed key.
var knownKinds = []string{
	KindSuspendCalendarYear, KindTradeCalendarYear, KindDailyFull, KindDaily,
}

// Rebuild reconstructs the metadata table from the payload files on disk,
// for recovery after index corruption or manual file surgery. Every
// readable *.parquet file whose name parses becomes an entry; when several
// files share a key the newest timestamp wins and older files are deleted.
// Rebuilt entries are conservatively marked incomplete, except calendars
// for past years which are complete by construction.
func (c *Cache) Rebuild() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	names, err := filepath.Glob(filepath.Join(c.dir, "*"+payloadExt))
	if err != nil {
		return NewErrLoadFailed(c.dir, err)
	}
	sort.Strings(names)

	entries := make(map[string]*CacheEntry)
	for _, full := range names {
		name := filepath.Base(full)
		m := payloadNamePattern.FindStringSubmatch(name)
		if m == nil {
			c.logger.Warn("unrecognized payload file name, skipping", "file", name)
			continue
		}
		key, stamp := m[1], m[2]

		written, err := time.Parse(fileTimestampLayout, stamp)
		if err != nil {
			c.logger.Warn("unparseable timestamp in payload file name, skipping", "file", name)
			continue
		}

		if prev, ok := entries[key]; ok && written.UnixNano() <= prev.LastUpdated {
			// Newest file per key wins; the loser is stale.
			c.removeStrayFile(name)
			continue
		}

		bars, err := c.store.read(name)
		if err != nil {
			// The unreadable file is left in place for inspection. A
			// previous generation, if any, stays the live entry.
			c.logger.Warn("unreadable payload file, skipping", "file", name, "error", err)
			continue
		}
		// Only a verified newer generation may displace the previous one.
		if prev, ok := entries[key]; ok {
			c.removeStrayFile(prev.Path)
		}
		table := NewTable(bars)
		kind, params := classifyKey(key)

		entries[key] = &CacheEntry{
			Key:         key,
			Kind:        kind,
			Subject:     params[subjectParam],
			Path:        name,
			RangeStart:  table.MinDate(),
			RangeEnd:    table.MaxDate(),
			LastUpdated: written.UnixNano(),
			Complete:    rebuiltComplete(kind, params, c.timeProvider.Now()),
			RecordCount: table.Len(),
		}
	}

	c.index.entries = entries
	if err := c.index.save(); err != nil {
		return err
	}

	live := make(map[string]struct{}, len(entries))
	for k := range entries {
		live[k] = struct{}{}
	}
	c.access.prune(live)

	c.logger.Info("rebuilt metadata table", "entries", len(entries))
	return nil
}

func (c *Cache) removeStrayFile(name string) {
	if err := os.Remove(filepath.Join(c.dir, name)); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("failed to remove stray payload file", "file", name, "error", err)
	}
}

// classifyKey splits a reconstructed key back into its kind and whatever
// k=v parameters survive in it. Overlong keys were hashed at write time
// and yield no parameters, only the kind prefix.
func classifyKey(key string) (string, map[string]string) {
	kind := key
	rest := ""
	for _, k := range knownKinds {
		if key == k {
			kind, rest = k, ""
			break
		}
		if strings.HasPrefix(key, k+"_") {
			kind, rest = k, key[len(k)+1:]
			break
		}
	}

	// Parameter names themselves may contain underscores ("ts_code"), so a
	// segment without "=" is the leading piece of the next parameter name.
	params := make(map[string]string)
	var pending string
	for _, part := range strings.Split(rest, "_") {
		if k, v, ok := strings.Cut(part, "="); ok {
			params[pending+k] = v
			pending = ""
			continue
		}
		if part != "" {
			pending += part + "_"
		}
	}
	return kind, params
}

// rebuiltComplete decides the Complete flag for a reconstructed entry.
// Only past-year calendars can be trusted as complete without the
// evaluator; everything else must re-earn the flag on a verified fetch.
func rebuiltComplete(kind string, params map[string]string, nowNanos int64) bool {
	if kind != KindTradeCalendarYear && kind != KindSuspendCalendarYear {
		return false
	}
	year, err := strconv.Atoi(params["year"])
	if err != nil {
		return false
	}
	return year < time.Unix(0, nowNanos).Year()
}
