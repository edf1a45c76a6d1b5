// calendar.go: trading and suspension calendar oracle
//
// Calendars are fetched once per (exchange, year) or (subject, year) and
// cached as their own entries. A past year's calendar is immutable; the
// current year is refetched once per session so newly published holidays
// and suspensions are picked up.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// CalendarOracle answers trading-date and suspension-date queries, backed
// by per-year cache entries and an upstream CalendarProvider.
//
// The oracle shares the cache's synchronous single-call model: do not call
// it concurrently with other cache operations.
type CalendarOracle struct {
	cache    *Cache
	provider CalendarProvider

	// refreshed tracks current-year calendar keys already refetched this
	// session, so only the first access bypasses the cache.
	refreshed map[string]struct{}
}

// NewCalendarOracle creates an oracle storing its per-year calendars in
// cache and fetching them from provider. New wires one automatically when
// Config.Calendars is set.
func NewCalendarOracle(cache *Cache, provider CalendarProvider) *CalendarOracle {
	return &CalendarOracle{
		cache:     cache,
		provider:  provider,
		refreshed: make(map[string]struct{}),
	}
}

// TradingDates returns the sorted dates the exchange was open in
// [start, end], both YYYYMMDD inclusive.
func (o *CalendarOracle) TradingDates(exchange, start, end string) ([]string, error) {
	return o.yearRange(start, end, func(year int) ([]string, error) {
		return o.tradingYear(exchange, year)
	})
}

// SuspendedDates returns the sorted dates trading in subject was
// suspended in [start, end]. Years the provider cannot answer for are
// skipped: a missing suspension calendar means zero known suspensions,
// not a failed query.
func (o *CalendarOracle) SuspendedDates(subject, start, end string) ([]string, error) {
	return o.yearRange(start, end, func(year int) ([]string, error) {
		dates, err := o.suspendYear(subject, year)
		if err != nil {
			o.cache.logger.Debug("suspension calendar unavailable",
				"subject", subject, "year", year, "error", err)
			return nil, nil
		}
		return dates, nil
	})
}

// yearRange iterates the years covered by [start, end], collects each
// year's dates and filters the union back to the requested bounds.
func (o *CalendarOracle) yearRange(start, end string, fetch func(year int) ([]string, error)) ([]string, error) {
	startDate, err := parseDate(start)
	if err != nil {
		return nil, NewErrInvalidRange(start, end)
	}
	endDate, err := parseDate(end)
	if err != nil || start > end {
		return nil, NewErrInvalidRange(start, end)
	}

	var all []string
	for year := startDate.Year(); year <= endDate.Year(); year++ {
		dates, err := fetch(year)
		if err != nil {
			return nil, err
		}
		all = append(all, dates...)
	}

	sort.Strings(all)
	out := all[:0]
	var prev string
	for _, d := range all {
		if d == prev || d < start || d > end {
			continue
		}
		out = append(out, d)
		prev = d
	}
	return out, nil
}

// tradingYear returns the full-year trading calendar for (exchange, year),
// consulting the cache first.
func (o *CalendarOracle) tradingYear(exchange string, year int) ([]string, error) {
	params := map[string]string{"exchange": exchange, "year": strconv.Itoa(year)}
	pastYear := year < o.currentYear()
	key := cacheKey(KindTradeCalendarYear, params)

	_, alreadyRefreshed := o.refreshed[key]
	if pastYear || alreadyRefreshed {
		if table, ok := o.cache.get(KindTradeCalendarYear, params, GetOptions{}); ok {
			return tableDates(table), nil
		}
	}

	dates, err := o.provider.TradingDates(exchange, yearStart(year), yearEnd(year))
	if err != nil {
		// Availability over freshness: a stale current-year calendar
		// beats no calendar at all.
		if table, ok := o.cache.get(KindTradeCalendarYear, params, GetOptions{}); ok {
			o.cache.logger.Warn("calendar refresh failed, using cached calendar",
				"exchange", exchange, "year", year, "error", err)
			o.refreshed[key] = struct{}{}
			return tableDates(table), nil
		}
		return nil, err
	}

	if err := o.cache.set(KindTradeCalendarYear, params, datesTable(dates), pastYear); err != nil {
		o.cache.logger.Warn("failed to cache trading calendar",
			"exchange", exchange, "year", year, "error", err)
	}
	o.refreshed[key] = struct{}{}
	return dates, nil
}

// suspendYear returns the full-year suspension calendar for
// (subject, year). Empty calendars are not cached; most subjects have no
// suspensions in most years and a missing entry already means "none".
func (o *CalendarOracle) suspendYear(subject string, year int) ([]string, error) {
	params := map[string]string{subjectParam: subject, "year": strconv.Itoa(year)}
	pastYear := year < o.currentYear()
	key := cacheKey(KindSuspendCalendarYear, params)

	_, alreadyRefreshed := o.refreshed[key]
	if pastYear || alreadyRefreshed {
		if table, ok := o.cache.get(KindSuspendCalendarYear, params, GetOptions{}); ok {
			return tableDates(table), nil
		}
	}

	dates, err := o.provider.SuspendedDates(subject, yearStart(year), yearEnd(year))
	if err != nil {
		return nil, err
	}
	o.refreshed[key] = struct{}{}
	if len(dates) == 0 {
		return nil, nil
	}

	if err := o.cache.set(KindSuspendCalendarYear, params, datesTable(dates), pastYear); err != nil {
		o.cache.logger.Warn("failed to cache suspension calendar",
			"subject", subject, "year", year, "error", err)
	}
	return dates, nil
}

func (o *CalendarOracle) currentYear() int {
	return time.Unix(0, o.cache.timeProvider.Now()).Year()
}

func yearStart(year int) string { return strconv.Itoa(year) + "0101" }
func yearEnd(year int) string   { return strconv.Itoa(year) + "1231" }

// datesTable wraps bare dates as a bar table for storage.
func datesTable(dates []string) *Table {
	bars := make([]Bar, len(dates))
	for i, d := range dates {
		bars[i] = Bar{Date: d}
	}
	return NewTable(bars)
}

// tableDates unwraps a calendar table back into its dates.
func tableDates(t *Table) []string {
	dates := make([]string, 0, t.Len())
	for _, b := range t.Bars() {
		dates = append(dates, b.Date)
	}
	return dates
}

// ExchangeFor infers the exchange a subject trades on from its code:
// suffix first (".SH", ".SZ", ".BJ"), then leading digit.
func ExchangeFor(subject string) string {
	switch {
	case strings.HasSuffix(subject, ".SH"):
		return "SSE"
	case strings.HasSuffix(subject, ".SZ"):
		return "SZSE"
	case strings.HasSuffix(subject, ".BJ"):
		return "BJSE"
	}
	switch {
	case strings.HasPrefix(subject, "6"):
		return "SSE"
	case strings.HasPrefix(subject, "0"), strings.HasPrefix(subject, "3"):
		return "SZSE"
	default:
		return "BJSE"
	}
}
