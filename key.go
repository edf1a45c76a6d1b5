// key.go: deterministic cache key generation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// cacheKey derives the stable key for (kind, params): the kind followed by
// the sorted k=v parameter pairs. Keys become file name prefixes, so a
// canonical string past maxCanonicalKeyLength is replaced by a hash —
// without this, two long parameter sets could collide on a truncated
// filename.
func cacheKey(kind string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(kind)
	for _, k := range keys {
		sb.WriteByte('_')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
	}
	canonical := sb.String()

	if len(canonical) > maxCanonicalKeyLength {
		sum := sha256.Sum256([]byte(canonical))
		return kind + "_" + hex.EncodeToString(sum[:])[:40]
	}
	return canonical
}
