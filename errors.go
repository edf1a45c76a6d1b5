// errors.go: comprehensive error handling for xanthos cache operations
//
// This file provides structured error types using the go-errors library,
// enabling rich error context, categorization, and standardized error codes
// for all cache and fetch operations.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
package xanthos

import (
	goerrors "errors"
	"fmt"
	"strconv"

	"github.com/agilira/go-errors"
)

// Error codes for Xanthos cache operations
const (
	// Configuration errors
	ErrCodeInvalidConfig errors.ErrorCode = "XANTHOS_INVALID_CONFIG"
	ErrCodeInvalidBudget errors.ErrorCode = "XANTHOS_INVALID_BUDGET"
	ErrCodeInvalidTTL    errors.ErrorCode = "XANTHOS_INVALID_TTL"
	ErrCodeInvalidCodec  errors.ErrorCode = "XANTHOS_INVALID_CODEC"

	// Operation errors
	ErrCodeEmptyKind      errors.ErrorCode = "XANTHOS_EMPTY_KIND"
	ErrCodeEmptySubject   errors.ErrorCode = "XANTHOS_EMPTY_SUBJECT"
	ErrCodeInvalidRange   errors.ErrorCode = "XANTHOS_INVALID_RANGE"
	ErrCodeInvalidFetcher errors.ErrorCode = "XANTHOS_INVALID_FETCHER"

	// Integrity errors
	ErrCodeCorruptEntry          errors.ErrorCode = "XANTHOS_CORRUPT_ENTRY"
	ErrCodeIndexCorrupt          errors.ErrorCode = "XANTHOS_INDEX_CORRUPT"
	ErrCodeCompletenessViolation errors.ErrorCode = "XANTHOS_COMPLETENESS_VIOLATION"

	// Persistence errors
	ErrCodeSaveFailed     errors.ErrorCode = "XANTHOS_SAVE_FAILED"
	ErrCodeLoadFailed     errors.ErrorCode = "XANTHOS_LOAD_FAILED"
	ErrCodeEvictionFailed errors.ErrorCode = "XANTHOS_EVICTION_FAILED"

	// Fetch errors, surfaced distinctly so callers can decide whether to
	// retry, back off, or abort. The cache itself never retries a fetch.
	ErrCodeFetchFailed           errors.ErrorCode = "XANTHOS_FETCH_FAILED"
	ErrCodeFetchQuotaExceeded    errors.ErrorCode = "XANTHOS_FETCH_QUOTA_EXCEEDED"
	ErrCodeFetchRateLimited      errors.ErrorCode = "XANTHOS_FETCH_RATE_LIMITED"
	ErrCodeFetchPermissionDenied errors.ErrorCode = "XANTHOS_FETCH_PERMISSION_DENIED"
	ErrCodeFetchNetwork          errors.ErrorCode = "XANTHOS_FETCH_NETWORK"

	// Internal errors
	ErrCodePanicRecovered errors.ErrorCode = "XANTHOS_PANIC_RECOVERED"
)

// Common error messages
const (
	msgInvalidConfig         = "invalid cache configuration"
	msgInvalidBudget         = "invalid byte budget: must be non-negative"
	msgInvalidTTL            = "invalid TTL: must be non-negative"
	msgInvalidCodec          = "unknown compression codec"
	msgEmptyKind             = "entry kind cannot be empty"
	msgEmptySubject          = "subject cannot be empty"
	msgInvalidRange          = "invalid date range"
	msgInvalidFetcher        = "fetch callback cannot be nil"
	msgCorruptEntry          = "cache entry unreadable or unparseable"
	msgIndexCorrupt          = "metadata index unparseable"
	msgCompletenessViolation = "record count exceeds expected trading days"
	msgSaveFailed            = "failed to persist cache entry"
	msgLoadFailed            = "failed to load cache entry"
	msgEvictionFailed        = "failed to evict cache entry"
	msgFetchFailed           = "fetch callback failed"
	msgFetchQuotaExceeded    = "fetch rejected: provider quota exhausted"
	msgFetchRateLimited      = "fetch rejected: provider rate limit"
	msgFetchPermissionDenied = "fetch rejected: permission denied"
	msgFetchNetwork          = "fetch failed: network error"
	msgPanicRecovered        = "panic recovered in cache operation"
)

// =============================================================================
// CONFIGURATION ERRORS
// =============================================================================

// NewErrInvalidConfig creates an error for an invalid configuration
func NewErrInvalidConfig(reason string) error {
	return errors.NewWithField(ErrCodeInvalidConfig, msgInvalidConfig, "reason", reason)
}

// NewErrInvalidBudget creates an error for an invalid byte budget
func NewErrInvalidBudget(budget int64) error {
	return errors.NewWithField(ErrCodeInvalidBudget, msgInvalidBudget, "provided_budget", strconv.FormatInt(budget, 10))
}

// NewErrInvalidTTL creates an error for an invalid TTL
func NewErrInvalidTTL(ttlDays int) error {
	return errors.NewWithField(ErrCodeInvalidTTL, msgInvalidTTL, "provided_ttl_days", strconv.Itoa(ttlDays))
}

// NewErrInvalidCodec creates an error for an unknown compression codec
func NewErrInvalidCodec(codec string) error {
	return errors.NewWithContext(ErrCodeInvalidCodec, msgInvalidCodec, map[string]interface{}{
		"provided_codec": codec,
		"supported":      "uncompressed, snappy, gzip, zstd, brotli",
	})
}

// =============================================================================
// OPERATION ERRORS
// =============================================================================

// NewErrEmptyKind creates an error when the entry kind is empty
func NewErrEmptyKind(operation string) error {
	return errors.NewWithField(ErrCodeEmptyKind, msgEmptyKind, "operation", operation)
}

// NewErrEmptySubject creates an error when the subject is empty
func NewErrEmptySubject(operation string) error {
	return errors.NewWithField(ErrCodeEmptySubject, msgEmptySubject, "operation", operation)
}

// NewErrInvalidRange creates an error for an unparseable or inverted date range
func NewErrInvalidRange(start, end string) error {
	return errors.NewWithContext(ErrCodeInvalidRange, msgInvalidRange, map[string]interface{}{
		"start": start,
		"end":   end,
	})
}

// NewErrInvalidFetcher creates an error when the fetch callback is nil
func NewErrInvalidFetcher(subject string) error {
	return errors.NewWithField(ErrCodeInvalidFetcher, msgInvalidFetcher, "subject", subject)
}

// =============================================================================
// INTEGRITY ERRORS
// =============================================================================

// NewErrCorruptEntry creates an error for an unreadable payload file
func NewErrCorruptEntry(path string, cause error) error {
	return errors.Wrap(cause, ErrCodeCorruptEntry, msgCorruptEntry).
		WithContext("path", path)
}

// NewErrIndexCorrupt creates an error for an unparseable metadata table
func NewErrIndexCorrupt(path string, cause error) error {
	return errors.Wrap(cause, ErrCodeIndexCorrupt, msgIndexCorrupt).
		WithContext("path", path)
}

// NewErrCompletenessViolation creates an error for a duplicate-data anomaly,
// where an entry holds more bars than the calendar says it should
func NewErrCompletenessViolation(key string, actual, expected int) error {
	return errors.NewWithContext(ErrCodeCompletenessViolation, msgCompletenessViolation, map[string]interface{}{
		"key":      key,
		"actual":   actual,
		"expected": expected,
	})
}

// =============================================================================
// PERSISTENCE ERRORS
// =============================================================================

// NewErrSaveFailed creates an error when persisting an entry fails
func NewErrSaveFailed(path string, cause error) error {
	return errors.Wrap(cause, ErrCodeSaveFailed, msgSaveFailed).
		WithContext("path", path).
		AsRetryable()
}

// NewErrLoadFailed creates an error when reading an entry fails
func NewErrLoadFailed(path string, cause error) error {
	return errors.Wrap(cause, ErrCodeLoadFailed, msgLoadFailed).
		WithContext("path", path).
		AsRetryable()
}

// NewErrEvictionFailed creates an error when removing an entry fails
func NewErrEvictionFailed(key string, cause error) error {
	return errors.Wrap(cause, ErrCodeEvictionFailed, msgEvictionFailed).
		WithContext("key", key)
}

// =============================================================================
// FETCH ERRORS
// =============================================================================

// NewErrFetchFailed wraps an unclassified fetch callback error
func NewErrFetchFailed(subject string, cause error) error {
	return errors.Wrap(cause, ErrCodeFetchFailed, msgFetchFailed).
		WithContext("subject", subject)
}

// NewErrFetchQuotaExceeded creates an error for an exhausted provider quota
func NewErrFetchQuotaExceeded(subject string) error {
	return errors.NewWithField(ErrCodeFetchQuotaExceeded, msgFetchQuotaExceeded, "subject", subject)
}

// NewErrFetchRateLimited creates an error for a provider rate limit
func NewErrFetchRateLimited(subject string) error {
	return errors.NewWithField(ErrCodeFetchRateLimited, msgFetchRateLimited, "subject", subject).
		AsRetryable()
}

// NewErrFetchPermissionDenied creates an error for a provider permission failure
func NewErrFetchPermissionDenied(subject string) error {
	return errors.NewWithField(ErrCodeFetchPermissionDenied, msgFetchPermissionDenied, "subject", subject)
}

// NewErrFetchNetwork creates an error for a network failure during fetch
func NewErrFetchNetwork(subject string, cause error) error {
	return errors.Wrap(cause, ErrCodeFetchNetwork, msgFetchNetwork).
		WithContext("subject", subject).
		AsRetryable()
}

// =============================================================================
// INTERNAL ERRORS
// =============================================================================

// NewErrPanicRecovered creates an error when a panic is recovered
func NewErrPanicRecovered(operation string, panicValue interface{}) error {
	return errors.NewWithContext(ErrCodePanicRecovered, msgPanicRecovered, map[string]interface{}{
		"operation":   operation,
		"panic_value": fmt.Sprintf("%v", panicValue),
	}).WithSeverity("critical")
}

// =============================================================================
// ERROR CHECKING HELPERS
// =============================================================================

// IsCorruptEntry checks if error is a corrupt entry error
func IsCorruptEntry(err error) bool {
	return errors.HasCode(err, ErrCodeCorruptEntry)
}

// IsCompletenessViolation checks if error is a duplicate-data anomaly
func IsCompletenessViolation(err error) bool {
	return errors.HasCode(err, ErrCodeCompletenessViolation)
}

// IsConfigError checks if error is a configuration error
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		code := coder.ErrorCode()
		return code == ErrCodeInvalidConfig || code == ErrCodeInvalidBudget ||
			code == ErrCodeInvalidTTL || code == ErrCodeInvalidCodec
	}
	return false
}

// IsFetchError checks if error originated in the fetch callback
func IsFetchError(err error) bool {
	if err == nil {
		return false
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		code := coder.ErrorCode()
		return code == ErrCodeFetchFailed || code == ErrCodeFetchQuotaExceeded ||
			code == ErrCodeFetchRateLimited || code == ErrCodeFetchPermissionDenied ||
			code == ErrCodeFetchNetwork
	}
	return false
}

// IsPersistenceError checks if error is a persistence error
func IsPersistenceError(err error) bool {
	if err == nil {
		return false
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		code := coder.ErrorCode()
		return code == ErrCodeSaveFailed || code == ErrCodeLoadFailed ||
			code == ErrCodeEvictionFailed || code == ErrCodeCorruptEntry ||
			code == ErrCodeIndexCorrupt
	}
	return false
}

// IsRetryable checks if the error can be retried
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var retryable errors.Retryable
	if goerrors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) errors.ErrorCode {
	if err == nil {
		return ""
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		return coder.ErrorCode()
	}
	return ""
}

// GetErrorContext extracts context from an error
func GetErrorContext(err error) map[string]interface{} {
	if err == nil {
		return nil
	}
	var xerr *errors.Error
	if goerrors.As(err, &xerr) {
		return xerr.Context
	}
	return nil
}
