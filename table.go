// table.go: ordered bar tables and date helpers
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"sort"
	"time"
)

// Bar is one trading day of a subject. Date is the row identity: a table
// never holds two bars for the same date. Calendar entries reuse the type
// with only Date populated.
type Bar struct {
	Date   string  `parquet:"trade_date"`
	Open   float64 `parquet:"open"`
	High   float64 `parquet:"high"`
	Low    float64 `parquet:"low"`
	Close  float64 `parquet:"close"`
	Volume float64 `parquet:"vol"`
	Amount float64 `parquet:"amount"`
}

// Table is an ordered set of bars, ascending by date, duplicate-free.
type Table struct {
	bars []Bar
}

// NewTable builds a table from bars in any order. Bars are sorted
// ascending by date; for duplicate dates the first occurrence wins.
func NewTable(bars []Bar) *Table {
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date < sorted[j].Date
	})

	out := sorted[:0]
	var prev string
	for _, b := range sorted {
		if b.Date == prev && len(out) > 0 {
			continue
		}
		out = append(out, b)
		prev = b.Date
	}
	return &Table{bars: out}
}

// Len returns the number of bars.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.bars)
}

// Bars returns the underlying rows. Callers must not mutate the slice.
func (t *Table) Bars() []Bar {
	if t == nil {
		return nil
	}
	return t.bars
}

// MinDate returns the earliest date, or "" for an empty table.
func (t *Table) MinDate() string {
	if t.Len() == 0 {
		return ""
	}
	return t.bars[0].Date
}

// MaxDate returns the latest date, or "" for an empty table.
func (t *Table) MaxDate() string {
	if t.Len() == 0 {
		return ""
	}
	return t.bars[len(t.bars)-1].Date
}

// Slice returns the bars within [start, end]. Empty bounds are open.
// YYYYMMDD strings compare lexicographically, so no parsing is needed.
func (t *Table) Slice(start, end string) *Table {
	if t.Len() == 0 {
		return &Table{}
	}
	lo := 0
	if start != "" {
		lo = sort.Search(len(t.bars), func(i int) bool { return t.bars[i].Date >= start })
	}
	hi := len(t.bars)
	if end != "" {
		hi = sort.Search(len(t.bars), func(i int) bool { return t.bars[i].Date > end })
	}
	if lo >= hi {
		return &Table{}
	}
	return &Table{bars: t.bars[lo:hi]}
}

// CountInRange returns the number of bars within [start, end].
func (t *Table) CountInRange(start, end string) int {
	return t.Slice(start, end).Len()
}

// Merge combines a stored table with newly fetched bars. When both hold a
// bar for the same date, the incoming bar wins: upstream corrections can
// legitimately reissue dates the history already has.
func Merge(stored, incoming *Table) *Table {
	merged := make([]Bar, 0, stored.Len()+incoming.Len())
	seen := make(map[string]struct{}, incoming.Len())
	for _, b := range incoming.Bars() {
		seen[b.Date] = struct{}{}
	}
	for _, b := range stored.Bars() {
		if _, dup := seen[b.Date]; dup {
			continue
		}
		merged = append(merged, b)
	}
	merged = append(merged, incoming.Bars()...)
	return NewTable(merged)
}

// duplicateDates reports dates appearing more than once, in order.
func duplicateDates(bars []Bar) []string {
	counts := make(map[string]int, len(bars))
	for _, b := range bars {
		counts[b.Date]++
	}
	var dups []string
	seen := make(map[string]struct{})
	for _, b := range bars {
		if counts[b.Date] > 1 {
			if _, ok := seen[b.Date]; !ok {
				dups = append(dups, b.Date)
				seen[b.Date] = struct{}{}
			}
		}
	}
	return dups
}

// parseDate parses a YYYYMMDD string.
func parseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// formatDate renders a time as YYYYMMDD.
func formatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// nextDay returns the day after a YYYYMMDD date.
func nextDay(s string) (string, error) {
	d, err := parseDate(s)
	if err != nil {
		return "", err
	}
	return formatDate(d.AddDate(0, 0, 1)), nil
}

// validRange checks that both bounds parse and start does not exceed end.
// Empty bounds are accepted as open.
func validRange(start, end string) error {
	if start != "" {
		if _, err := parseDate(start); err != nil {
			return NewErrInvalidRange(start, end)
		}
	}
	if end != "" {
		if _, err := parseDate(end); err != nil {
			return NewErrInvalidRange(start, end)
		}
	}
	if start != "" && end != "" && start > end {
		return NewErrInvalidRange(start, end)
	}
	return nil
}
