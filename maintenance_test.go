// maintenance_test.go: unit tests for verify, convert and rebuild
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

func TestVerify_CleanCache(t *testing.T) {
	cache, _ := newTestCache(t, Config{})
	cache.Set(KindDaily, dailyParams("000001.SZ"), NewTable(barsFor("20240101", "20240102")), false)

	if issues := cache.Verify(); len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
}

func TestVerify_MissingFile(t *testing.T) {
	cache, _ := newTestCache(t, Config{})
	cache.Set(KindDaily, dailyParams("000001.SZ"), NewTable(barsFor("20240101")), false)

	entry, _ := cache.index.find(cacheKey(KindDaily, dailyParams("000001.SZ")))
	os.Remove(cache.index.filePath(entry))

	issues := cache.Verify()
	if len(issues) != 1 || issues[0].Problem != "missing-file" {
		t.Errorf("expected one missing-file issue, got %v", issues)
	}
}

func TestVerify_UnreadableFile(t *testing.T) {
	cache, _ := newTestCache(t, Config{})
	cache.Set(KindDaily, dailyParams("000001.SZ"), NewTable(barsFor("20240101")), false)

	entry, _ := cache.index.find(cacheKey(KindDaily, dailyParams("000001.SZ")))
	os.WriteFile(cache.index.filePath(entry), []byte("garbage"), 0o644)

	issues := cache.Verify()
	if len(issues) != 1 || issues[0].Problem != "unreadable" {
		t.Errorf("expected one unreadable issue, got %v", issues)
	}
}

func TestVerify_CountMismatch(t *testing.T) {
	cache, _ := newTestCache(t, Config{})
	cache.Set(KindDaily, dailyParams("000001.SZ"), NewTable(barsFor("20240101", "20240102")), false)

	entry, _ := cache.index.find(cacheKey(KindDaily, dailyParams("000001.SZ")))
	entry.RecordCount = 5
	cache.index.save()

	issues := cache.Verify()
	if len(issues) != 1 || issues[0].Problem != "count-mismatch" {
		t.Errorf("expected one count-mismatch issue, got %v", issues)
	}
}

func TestConvert_ReencodesAllEntries(t *testing.T) {
	cache, _ := newTestCache(t, Config{Codec: "snappy"})
	cache.Set(KindDaily, dailyParams("000001.SZ"), NewTable(barsFor("20240101", "20240102")), false)
	cache.Set(KindDailyFull, dailyParams("000001.SZ"), NewTable(barsFor("20240101", "20240102", "20240103")), true)

	if err := cache.Convert("zstd"); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if cache.Codec() != "zstd" {
		t.Errorf("write codec not switched: %s", cache.Codec())
	}

	// All entries still readable and intact after conversion.
	got, found := cache.Get(KindDailyFull, dailyParams("000001.SZ"), GetOptions{})
	if !found || got.Len() != 3 {
		t.Fatalf("full-history entry lost in conversion, found=%v", found)
	}
	if issues := cache.Verify(); len(issues) != 0 {
		t.Errorf("conversion left inconsistencies: %v", issues)
	}
}

func TestConvert_UnknownCodec(t *testing.T) {
	cache, _ := newTestCache(t, Config{})
	if err := cache.Convert("lzma"); GetErrorCode(err) != ErrCodeInvalidCodec {
		t.Errorf("expected invalid codec error, got %v", err)
	}
}

func TestRebuild_ReconstructsIndex(t *testing.T) {
	dir := t.TempDir()
	clock := newTestClock()
	cache, err := New(Config{Dir: dir, TimeProvider: clock})
	if err != nil {
		t.Fatal(err)
	}
	cache.Set(KindDaily, dailyParams("000001.SZ"), NewTable(barsFor("20240101", "20240102")), false)
	cache.Set(KindDailyFull, dailyParams("600000.SH"), NewTable(barsFor("20230101", "20240102")), true)

	// Lose the metadata table, reopen, rebuild from payload files.
	os.Remove(filepath.Join(dir, indexFileName))
	reopened, err := New(Config{Dir: dir, TimeProvider: clock})
	if err != nil {
		t.Fatal(err)
	}
	if r := reopened.Report(); r.TotalEntries != 0 {
		t.Fatalf("expected empty index before rebuild, got %d", r.TotalEntries)
	}
	if err := reopened.Rebuild(); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	got, found := reopened.Get(KindDaily, dailyParams("000001.SZ"), GetOptions{})
	if !found || got.Len() != 2 {
		t.Fatalf("daily entry not reconstructed, found=%v", found)
	}
	full, found := reopened.Get(KindDailyFull, dailyParams("600000.SH"), GetOptions{})
	if !found || full.Len() != 2 {
		t.Fatalf("full-history entry not reconstructed, found=%v", found)
	}

	entry, _ := reopened.index.find(cacheKey(KindDailyFull, dailyParams("600000.SH")))
	if entry.Kind != KindDailyFull {
		t.Errorf("kind misclassified: %s", entry.Kind)
	}
	if entry.Subject != "600000.SH" {
		t.Errorf("subject not recovered from key: %q", entry.Subject)
	}
	if entry.RangeStart != "20230101" || entry.RangeEnd != "20240102" {
		t.Errorf("range not recovered: %s..%s", entry.RangeStart, entry.RangeEnd)
	}
	if entry.Complete {
		t.Error("rebuilt bar entries must be marked incomplete")
	}
}

func TestRebuild_NewestFileWinsPerKey(t *testing.T) {
	dir := t.TempDir()
	clock := newTestClock()
	cache, err := New(Config{Dir: dir, TimeProvider: clock})
	if err != nil {
		t.Fatal(err)
	}

	// Two generations of the same key on disk: fake the older one by
	// writing a second payload file, bypassing the index.
	key := cacheKey(KindDaily, dailyParams("000001.SZ"))
	if _, err := cache.store.write(key, barsFor("20240101"), time.Unix(0, clock.Now())); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Minute)
	if _, err := cache.store.write(key, barsFor("20240101", "20240102"), time.Unix(0, clock.Now())); err != nil {
		t.Fatal(err)
	}

	if err := cache.Rebuild(); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	got, found := cache.Get(KindDaily, dailyParams("000001.SZ"), GetOptions{})
	if !found || got.Len() != 2 {
		t.Fatalf("expected the newer generation, found=%v len=%d", found, got.Len())
	}
	files, _ := filepath.Glob(filepath.Join(dir, "*"+payloadExt))
	if len(files) != 1 {
		t.Errorf("stale generation should have been deleted, %d files remain", len(files))
	}
}

func TestRebuild_CorruptNewerGenerationKeepsOlder(t *testing.T) {
	dir := t.TempDir()
	clock := newTestClock()
	cache, err := New(Config{Dir: dir, TimeProvider: clock})
	if err != nil {
		t.Fatal(err)
	}

	// A readable older generation, then a corrupt newer file for the same
	// key: rebuild must not destroy the only readable copy.
	key := cacheKey(KindDaily, dailyParams("000001.SZ"))
	oldName, err := cache.store.write(key, barsFor("20240101", "20240102"), time.Unix(0, clock.Now()))
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Minute)
	newName := key + "_" + time.Unix(0, clock.Now()).Format(fileTimestampLayout) + payloadExt
	if err := os.WriteFile(filepath.Join(dir, newName), []byte("not parquet"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := cache.Rebuild(); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	got, found := cache.Get(KindDaily, dailyParams("000001.SZ"), GetOptions{})
	if !found || got.Len() != 2 {
		t.Fatalf("older generation should remain the live entry, found=%v", found)
	}
	if _, err := os.Stat(filepath.Join(dir, oldName)); err != nil {
		t.Errorf("older generation file should still exist: %v", err)
	}
}

func TestRebuild_PastYearCalendarStaysComplete(t *testing.T) {
	provider := &mockCalendarProvider{trading: []string{"20230103", "20230104"}}
	dir := t.TempDir()
	cache, _ := newTestCache(t, Config{Dir: dir, Calendars: provider})
	if _, err := cache.Calendars().TradingDates("SSE", "20230101", "20231231"); err != nil {
		t.Fatal(err)
	}

	os.Remove(filepath.Join(dir, indexFileName))
	reopened, _ := newTestCache(t, Config{Dir: dir, Calendars: provider})
	if err := reopened.Rebuild(); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	params := map[string]string{"exchange": "SSE", "year": "2023"}
	entry, ok := reopened.index.find(cacheKey(KindTradeCalendarYear, params))
	if !ok {
		t.Fatal("calendar entry not reconstructed")
	}
	if !entry.Complete {
		t.Error("past-year calendar should be rebuilt as complete")
	}
}

func TestClassifyKey(t *testing.T) {
	tests := []struct {
		key      string
		wantKind string
		wantSubj string
	}{
		{"daily_adj=qfq_end=20240131_start=20240101_ts_code=000001.SZ", KindDaily, "000001.SZ"},
		{"daily_full_adj=qfq_ts_code=600000.SH", KindDailyFull, "600000.SH"},
		{"trade_cal_year_exchange=SSE_year=2024", KindTradeCalendarYear, ""},
		{"suspend_cal_year_ts_code=000001.SZ_year=2024", KindSuspendCalendarYear, "000001.SZ"},
	}
	for _, tc := range tests {
		kind, params := classifyKey(tc.key)
		if kind != tc.wantKind {
			t.Errorf("classifyKey(%q) kind = %q, want %q", tc.key, kind, tc.wantKind)
		}
		if params[subjectParam] != tc.wantSubj {
			t.Errorf("classifyKey(%q) subject = %q, want %q", tc.key, params[subjectParam], tc.wantSubj)
		}
	}
}
