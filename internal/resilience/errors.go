package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// ErrorKind classifies a provider error for retry and fallback decisions.
type ErrorKind int

const (
	// KindPermanent errors (bad input, auth failure) are never retried.
	KindPermanent ErrorKind = iota
	// KindTransient errors (timeout, 5xx, rate limit) are safe to retry.
	KindTransient
	// KindDegraded marks partial or low-confidence outcomes: proceed with
	// a warning rather than retrying or failing.
	KindDegraded
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindDegraded:
		return "degraded"
	default:
		return "permanent"
	}
}

// TransientError wraps an error that is safe to retry (e.g., 429, 5xx,
// network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// DegradedError wraps an error describing a partial result the caller can
// still use. It is neither retried nor fatal.
type DegradedError struct {
	Err error
}

func (e *DegradedError) Error() string {
	return e.Err.Error()
}

func (e *DegradedError) Unwrap() error {
	return e.Err
}

// NewDegradedError wraps an error as a degraded (proceed-with-warning) condition.
func NewDegradedError(err error) *DegradedError {
	return &DegradedError{Err: err}
}

// Classify maps an error into its ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindPermanent
	}
	var de *DegradedError
	if errors.As(err, &de) {
		return KindDegraded
	}
	if IsTransient(err) {
		return KindTransient
	}
	return KindPermanent
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient error patterns (network
// timeouts, connection resets, DNS failures).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// Check for explicit TransientError in chain.
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	// Check for network-level transient errors.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Connection reset / refused / DNS.
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"rate limit",
		"overloaded",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		529, // Anthropic overloaded
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}
