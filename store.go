// store.go: columnar payload file I/O
//
// Pure, stateless with respect to cache policy: the store reads and writes
// parquet files and knows nothing about completeness, TTL or eviction.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
)

const payloadExt = ".parquet"

// fileTimestampLayout suffixes payload file names so a rewritten key gets
// a fresh file instead of truncating the one a reader may hold open.
const fileTimestampLayout = "20060102_150405"

// codecFor maps a codec identifier to its parquet compression codec.
func codecFor(name string) (compress.Codec, error) {
	switch name {
	case "", "snappy":
		return &parquet.Snappy, nil
	case "uncompressed", "none":
		return &parquet.Uncompressed, nil
	case "gzip":
		return &parquet.Gzip, nil
	case "zstd":
		return &parquet.Zstd, nil
	case "brotli":
		return &parquet.Brotli, nil
	default:
		return nil, NewErrInvalidCodec(name)
	}
}

// barStore persists bar tables as compressed parquet files under dir.
type barStore struct {
	dir   string
	codec compress.Codec
}

func newBarStore(dir, codecName string) (*barStore, error) {
	codec, err := codecFor(codecName)
	if err != nil {
		return nil, err
	}
	return &barStore{dir: dir, codec: codec}, nil
}

// write persists bars under a name derived from the key and write time,
// returning the file name relative to the store directory. The file is
// written to a temp path and renamed so a failed write never leaves a
// half-written payload under a live name.
func (s *barStore) write(key string, bars []Bar, now time.Time) (string, error) {
	name := key + "_" + now.Format(fileTimestampLayout) + payloadExt
	full := filepath.Join(s.dir, name)
	tmp := full + ".tmp"

	if err := parquet.WriteFile(tmp, bars, parquet.Compression(s.codec)); err != nil {
		_ = os.Remove(tmp)
		return "", NewErrSaveFailed(full, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return "", NewErrSaveFailed(full, err)
	}
	return name, nil
}

// read loads the payload file with the given relative name.
func (s *barStore) read(name string) ([]Bar, error) {
	full := filepath.Join(s.dir, name)
	bars, err := parquet.ReadFile[Bar](full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NewErrLoadFailed(full, err)
		}
		return nil, NewErrCorruptEntry(full, err)
	}
	return bars, nil
}

// fileSize returns the payload file's size, or 0 if it is gone.
func (s *barStore) fileSize(name string) int64 {
	info, err := os.Stat(filepath.Join(s.dir, name))
	if err != nil {
		return 0
	}
	return info.Size()
}
