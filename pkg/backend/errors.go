package backend

import (
	"context"
	"errors"
	"fmt"
)

// Error detail strings surfaced in JobResult.ErrorDetail.
const (
	DetailUnreachable       = "unreachable"
	DetailMalformedResponse = "malformed_response"
	DetailTimeout           = "timeout"
	DetailRateLimited       = "rate_limited"
	DetailAuth              = "auth_error"
	DetailEmptyOutput       = "empty_output"
)

// ErrUnavailable is returned when the registry has no usable adapter
// for a requested model. It is rejected synchronously, before any
// dispatch happens.
var ErrUnavailable = errors.New("backend unavailable")

// ProviderError is a classified adapter failure. Transient failures
// (network reset, 5xx, rate limit) are eligible for retry; permanent
// ones (auth, validation, malformed payloads) are not.
type ProviderError struct {
	Provider  Provider
	Detail    string
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Detail)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// TransientError wraps err as a retryable provider failure.
func TransientError(p Provider, detail string, err error) *ProviderError {
	return &ProviderError{Provider: p, Detail: detail, Transient: true, Err: err}
}

// PermanentError wraps err as a non-retryable provider failure.
func PermanentError(p Provider, detail string, err error) *ProviderError {
	return &ProviderError{Provider: p, Detail: detail, Transient: false, Err: err}
}

// IsTransient reports whether err may succeed on retry. Context
// timeouts count as transient: the bound may simply have been too
// tight for the provider's current latency.
func IsTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}

// Detail extracts the error_detail string for a failed invocation.
func Detail(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return DetailTimeout
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Detail
	}
	return err.Error()
}
