// config.go: configuration for Xanthos
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"github.com/agilira/go-timecache"
)

// Config holds configuration parameters for the cache.
type Config struct {
	// Dir is the cache directory holding payload files, the metadata
	// table and the access log. Required.
	Dir string

	// BudgetBytes is the on-disk byte budget enforced by eviction.
	// If 0, DefaultBudgetBytes is used. If negative, Validate fails.
	BudgetBytes int64

	// TTLDays is the maximum age in days of range-scoped and calendar
	// entries before a lookup proactively deletes them. Full-history
	// entries are exempt. If 0, entries never expire.
	TTLDays int

	// Codec selects the compression codec for payload files:
	// "uncompressed", "snappy", "gzip", "zstd" or "brotli".
	// Default: DefaultCodec.
	Codec string

	// Calendars supplies trading and suspension calendars to the
	// completeness evaluator. If nil, expected bar counts are estimated
	// from calendar arithmetic and entries are never marked complete.
	Calendars CalendarProvider

	// Logger is used for debugging and monitoring.
	// If nil, NoOpLogger is used. Default: NoOpLogger.
	Logger Logger

	// TimeProvider provides current time for TTL and LRU bookkeeping.
	// If nil, a default implementation is used. Default: system time.
	TimeProvider TimeProvider
}

// Validate checks configuration parameters and applies sensible defaults.
//
// This method is automatically called by New, so you typically don't need
// to call it manually. However, it's provided as a public API if you want
// to inspect the normalized configuration before creating a cache.
//
// Default values applied:
//   - BudgetBytes: DefaultBudgetBytes if 0
//   - Codec: DefaultCodec if empty
//   - Logger: NoOpLogger{} if nil
//   - TimeProvider: systemTimeProvider{} if nil
func (c *Config) Validate() error {
	if c.Dir == "" {
		return NewErrInvalidConfig("dir is required")
	}

	if c.BudgetBytes < 0 {
		return NewErrInvalidBudget(c.BudgetBytes)
	}
	if c.BudgetBytes == 0 {
		c.BudgetBytes = DefaultBudgetBytes
	}

	if c.TTLDays < 0 {
		return NewErrInvalidTTL(c.TTLDays)
	}

	if c.Codec == "" {
		c.Codec = DefaultCodec
	}
	if _, err := codecFor(c.Codec); err != nil {
		return err
	}

	if c.Logger == nil {
		c.Logger = NoOpLogger{}
	}

	if c.TimeProvider == nil {
		c.TimeProvider = &systemTimeProvider{}
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
// Dir must still be set by the caller.
func DefaultConfig() Config {
	return Config{
		BudgetBytes:  DefaultBudgetBytes,
		Codec:        DefaultCodec,
		Logger:       NoOpLogger{},
		TimeProvider: &systemTimeProvider{},
	}
}

// systemTimeProvider is the default time provider using go-timecache.
// This provides ~121x faster time access compared to time.Now() with zero allocations.
type systemTimeProvider struct{}

func (t *systemTimeProvider) Now() int64 {
	return timecache.CachedTimeNano()
}
