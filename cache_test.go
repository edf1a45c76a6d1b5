// cache_test.go: unit tests for the disk-backed cache core
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// MockTimeProvider allows controlling time in tests
type MockTimeProvider struct {
	currentTime int64
}

func (m *MockTimeProvider) Now() int64 {
	return m.currentTime
}

func (m *MockTimeProvider) Advance(duration time.Duration) {
	m.currentTime += int64(duration)
}

// testBaseTime anchors mock clocks at a known trading day.
var testBaseTime = time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC).UnixNano()

func newTestClock() *MockTimeProvider {
	return &MockTimeProvider{currentTime: testBaseTime}
}

func newTestCache(t *testing.T, config Config) (*Cache, *MockTimeProvider) {
	t.Helper()
	clock := newTestClock()
	if config.Dir == "" {
		config.Dir = t.TempDir()
	}
	if config.TimeProvider == nil {
		config.TimeProvider = clock
	}
	cache, err := New(config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return cache, clock
}

func dailyParams(subject string) map[string]string {
	return map[string]string{"ts_code": subject, "adj": "qfq"}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(Config{}); !IsConfigError(err) {
		t.Errorf("expected config error for missing dir, got %v", err)
	}
	if _, err := New(Config{Dir: t.TempDir(), BudgetBytes: -1}); !IsConfigError(err) {
		t.Errorf("expected config error for negative budget, got %v", err)
	}
	if _, err := New(Config{Dir: t.TempDir(), TTLDays: -1}); !IsConfigError(err) {
		t.Errorf("expected config error for negative TTL, got %v", err)
	}
	if _, err := New(Config{Dir: t.TempDir(), Codec: "lzma"}); !IsConfigError(err) {
		t.Errorf("expected config error for unknown codec, got %v", err)
	}
}

func TestCache_SetGet_RoundTrip(t *testing.T) {
	cache, _ := newTestCache(t, Config{})
	table := NewTable(barsFor("20240101", "20240102", "20240103"))

	if err := cache.Set(KindDaily, dailyParams("000001.SZ"), table, false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, found := cache.Get(KindDaily, dailyParams("000001.SZ"), GetOptions{})
	if !found {
		t.Fatal("expected to find cached table")
	}
	if got.Len() != 3 {
		t.Errorf("expected 3 bars, got %d", got.Len())
	}
	if got.MinDate() != "20240101" || got.MaxDate() != "20240103" {
		t.Errorf("unexpected range: %s..%s", got.MinDate(), got.MaxDate())
	}
}

func TestCache_Get_Miss(t *testing.T) {
	cache, _ := newTestCache(t, Config{})
	if _, found := cache.Get(KindDaily, dailyParams("999999.SZ"), GetOptions{}); found {
		t.Error("expected miss for never-cached params")
	}
	if _, found := cache.Get("", nil, GetOptions{}); found {
		t.Error("expected miss for empty kind")
	}
}

func TestCache_Set_EmptyKind(t *testing.T) {
	cache, _ := newTestCache(t, Config{})
	err := cache.Set("", nil, NewTable(barsFor("20240101")), false)
	if GetErrorCode(err) != ErrCodeEmptyKind {
		t.Errorf("expected %s, got %v", ErrCodeEmptyKind, err)
	}
}

func TestCache_Set_Overwrite(t *testing.T) {
	cache, clock := newTestCache(t, Config{})
	params := dailyParams("000001.SZ")

	if err := cache.Set(KindDaily, params, NewTable(barsFor("20240101")), false); err != nil {
		t.Fatalf("first Set failed: %v", err)
	}
	clock.Advance(time.Minute)
	if err := cache.Set(KindDaily, params, NewTable(barsFor("20240101", "20240102")), false); err != nil {
		t.Fatalf("second Set failed: %v", err)
	}

	got, found := cache.Get(KindDaily, params, GetOptions{})
	if !found || got.Len() != 2 {
		t.Fatalf("expected 2 bars after overwrite, found=%v len=%d", found, got.Len())
	}

	// One payload file per key: the first write's file must be gone.
	files, _ := filepath.Glob(filepath.Join(cache.dir, "*"+payloadExt))
	if len(files) != 1 {
		t.Errorf("expected 1 payload file, got %d", len(files))
	}
}

func TestCache_RangeSlicing(t *testing.T) {
	cache, _ := newTestCache(t, Config{})
	params := dailyParams("000001.SZ")
	cache.Set(KindDaily, params, NewTable(barsFor("20240101", "20240102", "20240103", "20240104")), false)

	got, found := cache.Get(KindDaily, params, GetOptions{RangeStart: "20240102", RangeEnd: "20240103"})
	if !found || got.Len() != 2 {
		t.Fatalf("expected 2 bars in range, found=%v", found)
	}

	// A slice with no overlap is a miss, not an empty hit.
	if _, found := cache.Get(KindDaily, params, GetOptions{RangeStart: "20250101"}); found {
		t.Error("expected miss for non-overlapping range")
	}
}

func TestCache_CompletenessCheck(t *testing.T) {
	cache, _ := newTestCache(t, Config{})
	params := dailyParams("000001.SZ")
	cache.Set(KindDaily, params, NewTable(barsFor("20240101", "20240102", "20240103")), false)

	opts := func(expected int, exact bool) GetOptions {
		return GetOptions{RangeStart: "20240101", RangeEnd: "20240110", ExpectedDays: expected, Exact: exact}
	}

	// Fewer bars than expected: miss.
	if _, found := cache.Get(KindDaily, params, opts(4, true)); found {
		t.Error("expected miss when entry has fewer bars than expected")
	}
	// Exact match: hit.
	if _, found := cache.Get(KindDaily, params, opts(3, true)); !found {
		t.Error("expected hit when bar count matches expectation")
	}
	// More bars than an exact expectation: duplicate-data anomaly, miss.
	if _, found := cache.Get(KindDaily, params, opts(2, true)); found {
		t.Error("expected miss for duplicate-data anomaly")
	}
	// More bars than an estimated expectation: acceptable hit.
	if _, found := cache.Get(KindDaily, params, opts(2, false)); !found {
		t.Error("expected hit when estimate is exceeded")
	}
}

func TestCache_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	clock := newTestClock()

	cache, err := New(Config{Dir: dir, TimeProvider: clock})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	params := dailyParams("000001.SZ")
	if err := cache.Set(KindDaily, params, NewTable(barsFor("20240101", "20240102")), true); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	reopened, err := New(Config{Dir: dir, TimeProvider: clock})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, found := reopened.Get(KindDaily, params, GetOptions{})
	if !found || got.Len() != 2 {
		t.Fatalf("expected entry to survive reopen, found=%v", found)
	}

	r := reopened.Report()
	if r.CompleteCount != 1 {
		t.Errorf("expected complete flag to survive reopen, got %+v", r)
	}
}

func TestCache_CorruptEntryRemoved(t *testing.T) {
	cache, _ := newTestCache(t, Config{})
	params := dailyParams("000001.SZ")
	cache.Set(KindDaily, params, NewTable(barsFor("20240101")), false)

	// Truncate the payload file behind the cache's back.
	entry, ok := cache.index.find(cacheKey(KindDaily, params))
	if !ok {
		t.Fatal("entry missing from index")
	}
	if err := os.WriteFile(cache.index.filePath(entry), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("failed to corrupt payload: %v", err)
	}

	if _, found := cache.Get(KindDaily, params, GetOptions{}); found {
		t.Error("expected miss for corrupt entry")
	}
	if _, ok := cache.index.find(cacheKey(KindDaily, params)); ok {
		t.Error("corrupt entry should have been removed from the index")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	cache, clock := newTestCache(t, Config{TTLDays: 30})
	params := dailyParams("000001.SZ")
	cache.Set(KindDaily, params, NewTable(barsFor("20240101")), false)

	clock.Advance(30 * 24 * time.Hour)
	if _, found := cache.Get(KindDaily, params, GetOptions{}); !found {
		t.Error("entry exactly at TTL should still be served")
	}

	clock.Advance(24 * time.Hour)
	if _, found := cache.Get(KindDaily, params, GetOptions{}); found {
		t.Error("entry past TTL should be a miss")
	}
	if _, ok := cache.index.find(cacheKey(KindDaily, params)); ok {
		t.Error("expired entry should have been deleted")
	}
}

func TestCache_TTL_FullHistoryExempt(t *testing.T) {
	cache, clock := newTestCache(t, Config{TTLDays: 30})
	params := dailyParams("000001.SZ")
	cache.Set(KindDailyFull, params, NewTable(barsFor("20240101", "20240102")), true)

	clock.Advance(365 * 24 * time.Hour)
	if _, found := cache.Get(KindDailyFull, params, GetOptions{}); !found {
		t.Error("full-history entries must never expire")
	}
}

func TestCache_TTL_ZeroDisablesExpiry(t *testing.T) {
	cache, clock := newTestCache(t, Config{TTLDays: 0})
	params := dailyParams("000001.SZ")
	cache.Set(KindDaily, params, NewTable(barsFor("20240101")), false)

	clock.Advance(10 * 365 * 24 * time.Hour)
	if _, found := cache.Get(KindDaily, params, GetOptions{}); !found {
		t.Error("TTL 0 should disable expiry")
	}
}

func TestCache_Clear_All(t *testing.T) {
	cache, _ := newTestCache(t, Config{})
	cache.Set(KindDaily, dailyParams("000001.SZ"), NewTable(barsFor("20240101")), false)
	cache.Set(KindDaily, dailyParams("000002.SZ"), NewTable(barsFor("20240101")), false)

	if err := cache.Clear(0); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if r := cache.Report(); r.TotalEntries != 0 {
		t.Errorf("expected empty cache after Clear(0), got %d entries", r.TotalEntries)
	}

	files, _ := filepath.Glob(filepath.Join(cache.dir, "*"+payloadExt))
	if len(files) != 0 {
		t.Errorf("expected payload files removed, found %d", len(files))
	}
}

func TestCache_Clear_OlderThan(t *testing.T) {
	cache, clock := newTestCache(t, Config{})
	cache.Set(KindDaily, dailyParams("000001.SZ"), NewTable(barsFor("20240101")), false)
	clock.Advance(10 * 24 * time.Hour)
	cache.Set(KindDaily, dailyParams("000002.SZ"), NewTable(barsFor("20240101")), false)

	if err := cache.Clear(5); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if _, found := cache.Get(KindDaily, dailyParams("000001.SZ"), GetOptions{}); found {
		t.Error("old entry should have been cleared")
	}
	if _, found := cache.Get(KindDaily, dailyParams("000002.SZ"), GetOptions{}); !found {
		t.Error("recent entry should have survived")
	}
}

func TestCache_Report(t *testing.T) {
	cache, _ := newTestCache(t, Config{})
	cache.Set(KindDaily, dailyParams("000001.SZ"), NewTable(barsFor("20240101")), false)
	cache.Set(KindDailyFull, dailyParams("000001.SZ"), NewTable(barsFor("20240101", "20240102")), true)
	cache.Set(KindDaily, dailyParams("600000.SH"), NewTable(barsFor("20240101")), false)

	r := cache.Report()
	if r.TotalEntries != 3 {
		t.Errorf("expected 3 entries, got %d", r.TotalEntries)
	}
	if r.CompleteCount != 1 || r.IncompleteCount != 2 {
		t.Errorf("unexpected completeness counts: %+v", r)
	}
	if r.ByKind[KindDaily] != 2 || r.ByKind[KindDailyFull] != 1 {
		t.Errorf("unexpected kind counts: %v", r.ByKind)
	}
	if r.BySubject["000001.SZ"] != 2 || r.BySubject["600000.SH"] != 1 {
		t.Errorf("unexpected subject counts: %v", r.BySubject)
	}
	if r.TotalBytes <= 0 {
		t.Error("expected non-zero total bytes")
	}
}

func TestCache_RuntimeSettings(t *testing.T) {
	cache, _ := newTestCache(t, Config{BudgetBytes: 1 << 20, TTLDays: 7})

	cache.SetBudgetBytes(2 << 20)
	if cache.BudgetBytes() != 2<<20 {
		t.Errorf("budget not updated: %d", cache.BudgetBytes())
	}
	cache.SetBudgetBytes(-5)
	if cache.BudgetBytes() != 2<<20 {
		t.Error("negative budget must be ignored")
	}

	cache.SetTTLDays(14)
	if cache.TTLDays() != 14 {
		t.Errorf("TTL not updated: %d", cache.TTLDays())
	}
	cache.SetTTLDays(-1)
	if cache.TTLDays() != 14 {
		t.Error("negative TTL must be ignored")
	}

	if err := cache.SetCodec("zstd"); err != nil {
		t.Fatalf("SetCodec failed: %v", err)
	}
	if cache.Codec() != "zstd" {
		t.Errorf("codec not updated: %s", cache.Codec())
	}
	if err := cache.SetCodec("lzma"); GetErrorCode(err) != ErrCodeInvalidCodec {
		t.Errorf("expected invalid codec error, got %v", err)
	}
}
