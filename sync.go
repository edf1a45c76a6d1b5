// sync.go: full-history synchronization and fetch-through lookups
//
// GetOrFetch reconciles a subject's long-lived full-history record with
// newly fetched incremental ranges. Per subject the record is in one of
// three states: no-history (nothing cached yet), stale (maximum cached
// date before the requested end) or current. Any failure on the
// full-history path degrades to a range-scoped fetch-and-cache;
// availability is preferred over strict full-history bookkeeping.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"time"
)

// GetOrFetch returns bars for the request, fetching through the callback
// only what the cache does not already hold. When a full-history record
// exists for the subject (or req.FullHistory asks for one), the record is
// extended incrementally and the requested slice served from it;
// otherwise the request is satisfied by a range-scoped entry validated
// against the completeness evaluator.
//
// The cache never retries a fetch. Errors returned by the callback are
// classified (quota, rate limit, permission, network) and surfaced
// unchanged so the caller can decide whether to retry, back off or abort.
func (c *Cache) GetOrFetch(req Request, fetch FetchFunc) (*Table, error) {
	if req.Subject == "" {
		return nil, NewErrEmptySubject("GetOrFetch")
	}
	if fetch == nil {
		return nil, NewErrInvalidFetcher(req.Subject)
	}
	if req.End == "" {
		req.End = formatDate(time.Unix(0, c.timeProvider.Now()))
	}
	if err := validRange(req.Start, req.End); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, haveHistory := c.index.find(cacheKey(KindDailyFull, fullHistoryParams(req)))
	if haveHistory || req.FullHistory {
		table, err := c.syncFullHistory(req, fetch)
		if err == nil {
			return table, nil
		}
		c.logger.Warn("full-history sync failed, falling back to range-scoped path",
			"subject", req.Subject, "error", err)
	}
	return c.fetchRange(req, fetch)
}

func fullHistoryParams(req Request) map[string]string {
	return map[string]string{subjectParam: req.Subject, "adj": req.Adjust}
}

// syncFullHistory drives the per-subject state machine and returns the
// requested slice of the (possibly just extended) full-history record.
func (c *Cache) syncFullHistory(req Request, fetch FetchFunc) (*Table, error) {
	params := fullHistoryParams(req)
	key := cacheKey(KindDailyFull, params)

	var stored *Table
	if entry, ok := c.index.find(key); ok {
		bars, err := c.store.read(entry.Path)
		if err != nil {
			c.logger.Warn("full-history entry unreadable, rebuilding",
				"key", key, "error", err)
			c.removeEntry(key)
		} else {
			stored = NewTable(bars)
		}
	}

	// no-history -> current: fetch everything from the listing date.
	if stored.Len() == 0 {
		bars, err := callFetch(fetch, req.Subject, req.ListingDate, req.End)
		if err != nil {
			return nil, wrapFetchError(req.Subject, err)
		}
		table := NewTable(bars)
		if table.Len() == 0 {
			c.logger.Info("no history available upstream", "subject", req.Subject)
			return table, nil
		}
		if err := c.set(KindDailyFull, params, table, true); err != nil {
			c.logger.Warn("failed to persist full history",
				"subject", req.Subject, "error", err)
		}
		c.logger.Info("created full history",
			"subject", req.Subject, "from", table.MinDate(), "to", table.MaxDate())
		return table.Slice(req.Start, req.End), nil
	}

	// current: nothing beyond the stored maximum can exist upstream.
	if stored.MaxDate() >= c.effectiveEnd(req.Subject, req.End) {
		c.access.touch(key, c.timeProvider.Now())
		return stored.Slice(req.Start, req.End), nil
	}

	// stale -> current: fetch only the trailing gap.
	from, err := nextDay(stored.MaxDate())
	if err != nil {
		return nil, err
	}
	bars, err := callFetch(fetch, req.Subject, from, req.End)
	if err != nil {
		err = wrapFetchError(req.Subject, err)
		slice := stored.Slice(req.Start, req.End)
		if slice.Len() == 0 {
			return nil, err
		}
		// Partial result beats no result: serve what we have and leave
		// the record stale for the next attempt.
		c.logger.Warn("incremental fetch failed, returning cached partial history",
			"subject", req.Subject, "error", err)
		return slice, nil
	}

	incoming := NewTable(bars)
	if incoming.Len() == 0 {
		c.access.touch(key, c.timeProvider.Now())
		return stored.Slice(req.Start, req.End), nil
	}

	if incoming.MinDate() <= stored.MaxDate() {
		// A correct trailing fetch starts after the stored maximum, but
		// upstream corrections can reissue dates we already hold.
		c.logger.Warn("incremental range overlaps stored history, later-fetched data wins",
			"subject", req.Subject, "incoming_from", incoming.MinDate(),
			"stored_to", stored.MaxDate())
	}

	merged := Merge(stored, incoming)
	if err := c.set(KindDailyFull, params, merged, true); err != nil {
		c.logger.Warn("failed to persist extended history",
			"subject", req.Subject, "error", err)
	}
	c.logger.Info("extended full history",
		"subject", req.Subject, "fetched", incoming.Len(), "to", merged.MaxDate())
	return merged.Slice(req.Start, req.End), nil
}

// effectiveEnd maps the requested end date onto the last trading date at
// or before it, so a request ending on a weekend or holiday does not keep
// a current record looking stale. Without a calendar the raw end is used.
func (c *Cache) effectiveEnd(subject, end string) string {
	if c.calendars == nil {
		return end
	}
	endDate, err := parseDate(end)
	if err != nil {
		return end
	}
	// 45 days reaches across any holiday cluster.
	from := formatDate(endDate.AddDate(0, 0, -45))
	dates, err := c.calendars.TradingDates(ExchangeFor(subject), from, end)
	if err != nil || len(dates) == 0 {
		return end
	}
	return dates[len(dates)-1]
}

// fetchRange satisfies a request with a range-scoped entry: the cached
// bytes are accepted only if the completeness evaluator's expected count
// holds, otherwise the range is refetched and re-cached.
func (c *Cache) fetchRange(req Request, fetch FetchFunc) (*Table, error) {
	params := map[string]string{
		subjectParam: req.Subject,
		"start":      req.Start,
		"end":        req.End,
		"adj":        req.Adjust,
	}

	expected, exact := c.eval.ExpectedBars(req.Subject, req.Start, req.End)
	opts := GetOptions{
		RangeStart:   req.Start,
		RangeEnd:     req.End,
		ExpectedDays: expected,
		Exact:        exact,
	}
	if cached, ok := c.get(KindDaily, params, opts); ok {
		c.logger.Debug("cache hit", "subject", req.Subject, "start", req.Start, "end", req.End)
		return cached, nil
	}

	bars, err := callFetch(fetch, req.Subject, req.Start, req.End)
	if err != nil {
		return nil, wrapFetchError(req.Subject, err)
	}
	table := NewTable(bars)
	if table.Len() == 0 {
		c.logger.Info("fetch returned no data",
			"subject", req.Subject, "start", req.Start, "end", req.End)
		return table, nil
	}
	if dups := duplicateDates(bars); len(dups) > 0 {
		c.logger.Warn("duplicate rows in fetched data, kept first occurrence",
			"subject", req.Subject, "duplicates", len(dups))
	}

	actual := table.Len()
	complete := exact && actual == expected
	if exact && actual > expected {
		c.logger.Warn("fetched more bars than expected trading days",
			"subject", req.Subject,
			"error", NewErrCompletenessViolation(cacheKey(KindDaily, params), actual, expected))
		complete = false
	}

	if err := c.set(KindDaily, params, table, complete); err != nil {
		c.logger.Warn("failed to cache fetched range",
			"subject", req.Subject, "error", err)
	}
	c.logger.Info("fetched range", "subject", req.Subject,
		"actual", actual, "expected", expected, "complete", complete)
	return table, nil
}

// callFetch invokes the callback with panic recovery, in case a provider
// client blows up on malformed upstream data.
func callFetch(fetch FetchFunc, subject, start, end string) (bars []Bar, err error) {
	defer func() {
		if r := recover(); r != nil {
			bars, err = nil, NewErrPanicRecovered("fetch:"+subject, r)
		}
	}()
	return fetch(subject, start, end)
}

// wrapFetchError passes already-classified fetch errors through unchanged
// and wraps everything else as a generic fetch failure.
func wrapFetchError(subject string, err error) error {
	if IsFetchError(err) || GetErrorCode(err) == ErrCodePanicRecovered {
		return err
	}
	return NewErrFetchFailed(subject, err)
}
