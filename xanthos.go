// Package xanthos provides a disk-backed cache for historical market bars
// with incremental full-history synchronization.
//
// Xanthos keeps columnar, compressed payload files under a single cache
// directory, tracks them in a flat metadata table, and reconciles
// incrementally fetched date ranges into long-lived per-subject history
// records without duplication.
//
// Example usage:
//
//	cache, err := xanthos.New(xanthos.Config{
//		Dir:         "./bar_cache",
//		BudgetBytes: 4 << 30,
//		TTLDays:     30,
//	})
//
//	table, err := cache.GetOrFetch(xanthos.Request{
//		Subject: "000001.SZ",
//		Start:   "20240101",
//		End:     "20240930",
//		Adjust:  "qfq",
//	}, fetchDailyBars)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

const (
	// Version of Xanthos cache library
	Version = "v0.1.0-dev"

	// KindDaily is the entry kind for range-scoped daily bar payloads.
	KindDaily = "daily"

	// KindDailyFull is the entry kind for per-subject full-history records.
	// Entries of this kind are exempt from eviction and TTL expiry.
	KindDailyFull = "daily_full"

	// KindTradeCalendarYear is the entry kind for per-exchange, per-year
	// trading calendars.
	KindTradeCalendarYear = "trade_cal_year"

	// KindSuspendCalendarYear is the entry kind for per-subject, per-year
	// suspension calendars.
	KindSuspendCalendarYear = "suspend_cal_year"

	// DefaultBudgetBytes is the default on-disk byte budget (2 GiB).
	DefaultBudgetBytes = int64(2) << 30

	// DefaultCodec is the default compression codec for payload files.
	DefaultCodec = "snappy"

	// DateLayout is the wire format for all dates handled by the cache.
	DateLayout = "20060102"
)

const (
	// evictTargetRatio is the hysteresis margin: eviction reclaims space
	// until total size is at or below this fraction of the budget.
	evictTargetRatio = 0.8

	// maxCanonicalKeyLength bounds generated keys. Longer canonical
	// parameter strings are replaced by a hash to keep file names within
	// filesystem path limits.
	maxCanonicalKeyLength = 120

	// estimatedTradingDaysPerYear drives the date-arithmetic fallback used
	// when the trading calendar is unavailable.
	estimatedTradingDaysPerYear = 250
)
