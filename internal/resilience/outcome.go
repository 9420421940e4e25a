// Package resilience tracks per-instance health and drives failover across
// credentialed instances of external services.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
)

// Outcome classifies the result of one call to a provider or finder instance.
type Outcome int

const (
	// OutcomeSuccess means the call completed and returned a usable result.
	OutcomeSuccess Outcome = iota
	// OutcomeRateLimited means the service rejected the call with a rate limit.
	OutcomeRateLimited
	// OutcomeTransient covers network timeouts, 5xx, and other retryable failures.
	OutcomeTransient
	// OutcomeFatal covers credential and malformed-request errors; the
	// instance is unusable until the process restarts with fixed config.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeTransient:
		return "transient_error"
	case OutcomeFatal:
		return "fatal_error"
	default:
		return "unknown"
	}
}

// ErrNoInstanceAvailable is returned when every instance for a role is
// exhausted or still cooling down.
var ErrNoInstanceAvailable = eris.New("no provider instance available")

// RateLimitedError wraps a rate-limit rejection. RetryAfter is zero when the
// service did not say how long to wait.
type RateLimitedError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string { return e.Err.Error() }
func (e *RateLimitedError) Unwrap() error { return e.Err }

// NewRateLimitedError wraps err as a rate-limit outcome.
func NewRateLimitedError(err error, retryAfter time.Duration) *RateLimitedError {
	return &RateLimitedError{Err: err, RetryAfter: retryAfter}
}

// TransientError wraps an error that is safe to retry (network timeout, 5xx).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// FatalCredentialError wraps a 401/403 or malformed-request class error.
type FatalCredentialError struct {
	Err        error
	StatusCode int
}

func (e *FatalCredentialError) Error() string { return e.Err.Error() }
func (e *FatalCredentialError) Unwrap() error { return e.Err }

// NewFatalCredentialError wraps an error as fatal for the instance.
func NewFatalCredentialError(err error, statusCode int) *FatalCredentialError {
	return &FatalCredentialError{Err: err, StatusCode: statusCode}
}

// Classify maps an error to its outcome. Unclassified errors are treated as
// transient so flaky failures never remove capacity permanently.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return OutcomeRateLimited
	}
	var fc *FatalCredentialError
	if errors.As(err, &fc) {
		return OutcomeFatal
	}
	return OutcomeTransient
}

// RetryAfter extracts the service-provided retry hint from a rate-limit
// error chain, or zero if absent.
func RetryAfter(err error) time.Duration {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}

// IsTransient reports whether the error (or anything in its chain) matches
// common transient network patterns. The API clients consult it before
// wrapping transport errors; anything it does not recognize is left
// unmarked and falls through to Classify's transient default.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
		"proxyconnect",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus reports whether the status code indicates a
// server-side issue that is safe to retry on another instance.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}
