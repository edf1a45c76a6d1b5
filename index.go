// index.go: flat-table metadata index over cache entries
//
// The index is the single source of truth for what exists on disk. It is
// persisted as one CSV file and rewritten in full on every mutation; index
// writes are therefore O(total entries). Mutation frequency is low relative
// to reads, but this is a scaling limit, and concurrent writer processes
// can lose interleaved updates (see package documentation).
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// CacheEntry is one row of the metadata index: a single cached payload.
type CacheEntry struct {
	// Key is the stable hash of (kind, sorted params). Exactly one entry
	// exists per key at any time.
	Key string

	// Kind classifies the payload, e.g. KindDaily or KindDailyFull.
	Kind string

	// Subject is the security the payload belongs to. Empty for entries
	// not tied to one subject (exchange calendars).
	Subject string

	// Path is the payload file name, relative to the cache directory.
	Path string

	// RangeStart and RangeEnd are the inclusive date bounds covered by
	// the payload. A full-history entry's RangeEnd is simply its current
	// maximum date; it grows monotonically toward the present.
	RangeStart string
	RangeEnd   string

	// LastUpdated is the write time in nanoseconds since epoch.
	LastUpdated int64

	// Complete records that RecordCount matched the evaluator's expected
	// count for the declared range when the entry was written.
	Complete bool

	// RecordCount is the number of bars in the payload.
	RecordCount int
}

const indexFileName = "metadata.csv"

var indexHeader = []string{
	"key", "kind", "ts_code", "path", "start_date", "end_date",
	"updated_at", "is_complete", "record_count",
}

// metaIndex holds the in-memory view of the metadata table and persists
// every mutation back to disk in full. Not safe for concurrent use; the
// cache serializes access.
type metaIndex struct {
	dir     string
	path    string
	entries map[string]*CacheEntry
	log     Logger
}

// openIndex loads the metadata table from dir, creating an empty index if
// the file does not exist. An unparseable table is a hard error: the index
// is the source of truth and must not be silently reset (the rebuild tool
// exists for recovery).
func openIndex(dir string, log Logger) (*metaIndex, error) {
	ix := &metaIndex{
		dir:     dir,
		path:    filepath.Join(dir, indexFileName),
		entries: make(map[string]*CacheEntry),
		log:     log,
	}

	f, err := os.Open(ix.path)
	if os.IsNotExist(err) {
		return ix, nil
	}
	if err != nil {
		return nil, NewErrIndexCorrupt(ix.path, err)
	}
	defer func() { _ = f.Close() }()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, NewErrIndexCorrupt(ix.path, err)
	}

	for i, rec := range records {
		if i == 0 && len(rec) > 0 && rec[0] == "key" {
			continue // header
		}
		entry, ok := parseIndexRecord(rec)
		if !ok {
			log.Warn("skipping malformed index row", "file", ix.path, "row", i)
			continue
		}
		ix.entries[entry.Key] = entry
	}
	return ix, nil
}

func parseIndexRecord(rec []string) (*CacheEntry, bool) {
	if len(rec) != len(indexHeader) || rec[0] == "" {
		return nil, false
	}
	updated, err := strconv.ParseInt(rec[6], 10, 64)
	if err != nil {
		return nil, false
	}
	count, err := strconv.Atoi(rec[8])
	if err != nil {
		return nil, false
	}
	return &CacheEntry{
		Key:         rec[0],
		Kind:        rec[1],
		Subject:     rec[2],
		Path:        rec[3],
		RangeStart:  rec[4],
		RangeEnd:    rec[5],
		LastUpdated: updated,
		Complete:    rec[7] == "true",
		RecordCount: count,
	}, true
}

// find returns the entry for key, if present.
func (ix *metaIndex) find(key string) (*CacheEntry, bool) {
	e, ok := ix.entries[key]
	return e, ok
}

// put inserts entry, first removing any existing entry with the same key
// and deleting its backing file. Delete-then-insert keeps the
// one-entry-per-key invariant even under repeated re-fetch of the same
// parameters.
func (ix *metaIndex) put(entry *CacheEntry) error {
	if old, ok := ix.entries[entry.Key]; ok && old.Path != entry.Path {
		ix.deleteFile(old)
	}
	ix.entries[entry.Key] = entry
	return ix.save()
}

// remove deletes the entry's metadata and, if the file still exists, its
// backing file.
func (ix *metaIndex) remove(key string) error {
	entry, ok := ix.entries[key]
	if !ok {
		return nil
	}
	ix.deleteFile(entry)
	delete(ix.entries, key)
	return ix.save()
}

// query returns entries filtered by kind and/or subject; empty filters
// match everything. Results are ordered by key for stable reporting.
func (ix *metaIndex) query(kind, subject string) []*CacheEntry {
	var out []*CacheEntry
	for _, e := range ix.entries {
		if kind != "" && e.Kind != kind {
			continue
		}
		if subject != "" && e.Subject != subject {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// all returns every entry, ordered by key.
func (ix *metaIndex) all() []*CacheEntry {
	return ix.query("", "")
}

// filePath resolves an entry's payload path under the cache directory.
func (ix *metaIndex) filePath(entry *CacheEntry) string {
	return filepath.Join(ix.dir, entry.Path)
}

func (ix *metaIndex) deleteFile(entry *CacheEntry) {
	err := os.Remove(ix.filePath(entry))
	if err != nil && !os.IsNotExist(err) {
		ix.log.Warn("failed to delete payload file", "path", entry.Path, "error", err)
	}
}

// save rewrites the whole table. Written to a temp file and renamed so a
// crash mid-write cannot leave a truncated index behind.
func (ix *metaIndex) save() error {
	tmp := ix.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return NewErrSaveFailed(ix.path, err)
	}

	w := csv.NewWriter(f)
	writeErr := w.Write(indexHeader)
	for _, e := range ix.all() {
		if writeErr != nil {
			break
		}
		writeErr = w.Write([]string{
			e.Key, e.Kind, e.Subject, e.Path, e.RangeStart, e.RangeEnd,
			strconv.FormatInt(e.LastUpdated, 10),
			strconv.FormatBool(e.Complete),
			strconv.Itoa(e.RecordCount),
		})
	}
	w.Flush()
	if writeErr == nil {
		writeErr = w.Error()
	}
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		_ = os.Remove(tmp)
		return NewErrSaveFailed(ix.path, writeErr)
	}
	if err := os.Rename(tmp, ix.path); err != nil {
		_ = os.Remove(tmp)
		return NewErrSaveFailed(ix.path, err)
	}
	return nil
}
