// completeness.go: expected-bar evaluator
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

// Evaluator computes how many bars a complete cache entry for a subject
// and date range must contain: the exchange's trading days minus the
// subject's suspension days.
type Evaluator struct {
	oracle *CalendarOracle // nil means estimate-only
	log    Logger
}

// NewEvaluator creates an evaluator over the given oracle. A nil oracle
// is allowed; every answer is then an estimate.
func NewEvaluator(oracle *CalendarOracle, log Logger) *Evaluator {
	return &Evaluator{oracle: oracle, log: log}
}

// ExpectedBars returns the expected bar count for subject over
// [start, end] and whether the count is exact. When the oracle cannot
// answer, a date-arithmetic estimate is returned with exact=false; the
// estimate trades precision for availability and must never be used to
// mark an entry complete.
func (e *Evaluator) ExpectedBars(subject, start, end string) (int, bool) {
	if e.oracle != nil {
		trading, err := e.oracle.TradingDates(ExchangeFor(subject), start, end)
		if err == nil && len(trading) > 0 {
			suspended := 0
			if dates, serr := e.oracle.SuspendedDates(subject, start, end); serr == nil {
				suspended = len(dates)
			}
			expected := len(trading) - suspended
			if expected < 0 {
				expected = 0
			}
			return expected, true
		}
		e.log.Debug("trading calendar unavailable, estimating expected bars",
			"subject", subject, "start", start, "end", end, "error", err)
	}
	return estimateBars(start, end), false
}

// estimateBars approximates the trading days in [start, end] assuming
// estimatedTradingDaysPerYear open days per calendar year.
func estimateBars(start, end string) int {
	startDate, err := parseDate(start)
	if err != nil {
		return 0
	}
	endDate, err := parseDate(end)
	if err != nil {
		return 0
	}
	days := int(endDate.Sub(startDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days * estimatedTradingDaysPerYear / 365
}
