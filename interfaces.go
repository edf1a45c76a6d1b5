// interfaces.go: public interfaces for Xanthos
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

// FetchFunc retrieves bars for a subject over an inclusive date range from
// an upstream provider. An empty start means "from the earliest available
// date". The cache treats the callback as opaque: it never retries, and it
// only classifies returned errors (quota, rate limit, permission, network)
// for logging. Timeouts and retry policy belong to the callback itself.
type FetchFunc func(subject, start, end string) ([]Bar, error)

// CalendarProvider supplies trading and suspension calendars from an
// upstream data source. Dates are YYYYMMDD strings, inclusive bounds.
type CalendarProvider interface {
	// TradingDates returns the dates the exchange was open in [start, end].
	TradingDates(exchange, start, end string) ([]string, error)

	// SuspendedDates returns the dates trading in the subject was
	// suspended in [start, end].
	SuspendedDates(subject, start, end string) ([]string, error)
}

// GetOptions narrows a Get lookup to a date range and, optionally, a
// completeness requirement.
type GetOptions struct {
	// RangeStart and RangeEnd bound the returned slice (inclusive,
	// YYYYMMDD). Empty means unbounded on that side.
	RangeStart string
	RangeEnd   string

	// ExpectedDays, when > 0, is the number of bars a trustworthy entry
	// must contain within the range. Entries with fewer bars are treated
	// as misses.
	ExpectedDays int

	// Exact controls how ExpectedDays is enforced. When true, an entry
	// with more bars than expected is rejected as a duplicate-data
	// anomaly. When false (calendar unavailable, estimated count), any
	// entry with at least ExpectedDays bars is accepted.
	Exact bool
}

// Request describes one bar lookup routed through GetOrFetch.
type Request struct {
	// Subject is the security the bars belong to, e.g. "000001.SZ".
	Subject string

	// Adjust is the price adjustment mode ("qfq", "hfq", or empty).
	Adjust string

	// Start and End are the requested inclusive date bounds (YYYYMMDD).
	Start string
	End   string

	// ListingDate, when known, is used as the lower bound of the first
	// full-history fetch. Empty means the callback is asked for
	// everything available.
	ListingDate string

	// FullHistory requests that a full-history record be created for the
	// subject if none exists yet. When false, an existing full-history
	// record is still used, but a missing one falls back to a
	// range-scoped entry.
	FullHistory bool
}

// Report summarizes the cache contents.
type Report struct {
	// TotalBytes is the summed size of all live payload files.
	TotalBytes int64

	// TotalEntries is the number of live metadata entries.
	TotalEntries int

	// CompleteCount is the number of entries marked complete.
	CompleteCount int

	// IncompleteCount is the number of entries not marked complete.
	IncompleteCount int

	// ByKind counts entries per entry kind.
	ByKind map[string]int

	// BySubject counts entries per subject.
	BySubject map[string]int
}

// VerifyIssue describes one problem found by Verify.
type VerifyIssue struct {
	// Key identifies the affected entry.
	Key string

	// Path is the entry's payload file.
	Path string

	// Problem is a short machine-friendly classification:
	// "missing-file", "unreadable", "count-mismatch" or "duplicate-dates".
	Problem string

	// Detail is a human-readable explanation.
	Detail string
}

// Logger defines a minimal logging interface with zero overhead.
// Implementations should use structured logging and be allocation-free.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, keyvals ...interface{})

	// Info logs an info message with optional key-value pairs.
	Info(msg string, keyvals ...interface{})

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, keyvals ...interface{})

	// Error logs an error message with optional key-value pairs.
	Error(msg string, keyvals ...interface{})
}

// NoOpLogger is a logger that does nothing. Used as default to avoid nil checks.
type NoOpLogger struct{}

// Debug does nothing (no-op implementation).
func (NoOpLogger) Debug(msg string, keyvals ...interface{}) {}

// Info does nothing (no-op implementation).
func (NoOpLogger) Info(msg string, keyvals ...interface{}) {}

// Warn does nothing (no-op implementation).
func (NoOpLogger) Warn(msg string, keyvals ...interface{}) {}

// Error does nothing (no-op implementation).
func (NoOpLogger) Error(msg string, keyvals ...interface{}) {}

// TimeProvider provides current time with caching for performance.
// This interface allows injecting optimized time implementations.
type TimeProvider interface {
	// Now returns the current time in nanoseconds since epoch.
	// This method must be very fast and allocation-free.
	Now() int64
}
