// accesslog.go: recency log backing LRU eviction
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
)

const accessLogFileName = "access_log.json"

// accessLog maps entry keys to last-access timestamps. It is consulted
// only by the eviction engine, so persistence is best-effort: a lost touch
// degrades LRU ordering, never correctness of returned data. Entries for
// keys no longer in the index are inert until pruned.
type accessLog struct {
	path string
	seen map[string]int64
	log  Logger
}

// openAccessLog loads the access log from dir. A missing or unreadable
// file starts an empty log.
func openAccessLog(dir string, log Logger) *accessLog {
	al := &accessLog{
		path: filepath.Join(dir, accessLogFileName),
		seen: make(map[string]int64),
		log:  log,
	}
	data, err := os.ReadFile(al.path)
	if err != nil {
		return al
	}
	if err := json.Unmarshal(data, &al.seen); err != nil {
		log.Warn("access log unreadable, starting fresh", "path", al.path, "error", err)
		al.seen = make(map[string]int64)
	}
	return al
}

// touch records an access at the given time and saves best-effort.
func (al *accessLog) touch(key string, now int64) {
	al.seen[key] = now
	al.save()
}

// remove drops a key from the log and saves best-effort.
func (al *accessLog) remove(key string) {
	if _, ok := al.seen[key]; !ok {
		return
	}
	delete(al.seen, key)
	al.save()
}

// oldestFirst returns all logged keys in least-recently-used order.
func (al *accessLog) oldestFirst() []string {
	type pair struct {
		key  string
		last int64
	}
	pairs := make([]pair, 0, len(al.seen))
	for k, t := range al.seen {
		pairs = append(pairs, pair{k, t})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].last != pairs[j].last {
			return pairs[i].last < pairs[j].last
		}
		return pairs[i].key < pairs[j].key
	})
	keys := make([]string, len(pairs))
	for i, p := range pairs {
		keys[i] = p.key
	}
	return keys
}

// prune removes log rows whose keys are not in live.
func (al *accessLog) prune(live map[string]struct{}) {
	changed := false
	for k := range al.seen {
		if _, ok := live[k]; !ok {
			delete(al.seen, k)
			changed = true
		}
	}
	if changed {
		al.save()
	}
}

// save persists the log. Failures are logged and ignored.
func (al *accessLog) save() {
	data, err := json.Marshal(al.seen)
	if err != nil {
		al.log.Warn("failed to encode access log", "error", err)
		return
	}
	if err := os.WriteFile(al.path, data, 0o644); err != nil {
		al.log.Warn("failed to write access log", "path", al.path, "error", err)
	}
}
