package httpclient

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/specado/specado/internal/providers"
)

// Classification mirrors the eleven HTTP failure categories the execution
// layer distinguishes for retry and diagnostic purposes. It is a local
// type (not the root package's HttpErrorClassification) so this package
// stays import-cycle-safe; the root wrapper translates between the two.
type Classification string

const (
	ClassAuthenticationError Classification = "AuthenticationError"
	ClassRateLimitError      Classification = "RateLimitError"
	ClassNetworkError        Classification = "NetworkError"
	ClassClientError         Classification = "ClientError"
	ClassServerError         Classification = "ServerError"
	ClassTimeoutError        Classification = "TimeoutError"
	ClassTlsError            Classification = "TlsError"
	ClassDnsError            Classification = "DnsError"
	ClassConnectionError     Classification = "ConnectionError"
	ClassCircuitBreakerOpen  Classification = "CircuitBreakerOpen"
	ClassUnknown             Classification = "Unknown"
)

// Retryable reports whether this classification is worth another attempt.
func (c Classification) Retryable() bool {
	switch c {
	case ClassRateLimitError, ClassNetworkError, ClassServerError, ClassTimeoutError, ClassConnectionError, ClassDnsError:
		return true
	default:
		return false
	}
}

// CountsAsBreakerFailure reports whether this classification should count
// toward a circuit breaker's consecutive-failure threshold. Client-side
// errors (bad request, auth, rate limit, TLS) reflect the caller or the
// request, not the provider's availability, and an already-open breaker
// obviously can't be the thing that trips itself.
func (c Classification) CountsAsBreakerFailure() bool {
	switch c {
	case ClassServerError, ClassNetworkError, ClassTimeoutError, ClassConnectionError, ClassDnsError, ClassUnknown:
		return true
	default:
		return false
	}
}

// ClassifiedError is a structured, classified HTTP execution failure.
type ClassifiedError struct {
	StatusCode     *int
	Classification Classification
	Message        string
	RetryAfterSecs *int
	Cause          error
}

func (e *ClassifiedError) Error() string {
	if e.StatusCode != nil {
		return fmt.Sprintf("httpclient: %s (status %d): %s", e.Classification, *e.StatusCode, e.Message)
	}
	return fmt.Sprintf("httpclient: %s: %s", e.Classification, e.Message)
}

func (e *ClassifiedError) Unwrap() error { return e.Cause }

// Classify assigns a Classification to err, following the same decision
// table as the original implementation's suggest_actions_for_error: status
// code family first, then transport-level error kind.
func Classify(err error) Classification {
	if err == nil {
		return ClassUnknown
	}

	var circuitOpen *CircuitOpenError
	if errors.As(err, &circuitOpen) {
		return ClassCircuitBreakerOpen
	}

	var statusErr *providers.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden:
			return ClassAuthenticationError
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return ClassRateLimitError
		case statusErr.StatusCode >= 400 && statusErr.StatusCode < 500:
			return ClassClientError
		case statusErr.StatusCode >= 500:
			return ClassServerError
		}
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Classification
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeoutError
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ClassDnsError
	}

	var tlsErr *tls.CertificateVerificationError
	if errors.As(err, &tlsErr) {
		return ClassTlsError
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ClassConnectionError
	}

	return ClassNetworkError
}

// classifyTransportError wraps a raw net/http transport error (one that
// never reached a server response) into a ClassifiedError carrying its
// Classification, so retry logic downstream only has to call Classify once.
func classifyTransportError(err error) error {
	return &ClassifiedError{
		Classification: Classify(err),
		Message:        err.Error(),
		Cause:          err,
	}
}
