package httpclient

import (
	"errors"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/specado/specado/internal/providers"
)

func TestClassifyStatusErrorAuthentication(t *testing.T) {
	err := &providers.StatusError{StatusCode: http.StatusUnauthorized}
	assert.Equal(t, ClassAuthenticationError, Classify(err))
}

func TestClassifyStatusErrorRateLimit(t *testing.T) {
	err := &providers.StatusError{StatusCode: http.StatusTooManyRequests}
	assert.Equal(t, ClassRateLimitError, Classify(err))
}

func TestClassifyStatusErrorClient(t *testing.T) {
	err := &providers.StatusError{StatusCode: http.StatusBadRequest}
	assert.Equal(t, ClassClientError, Classify(err))
}

func TestClassifyStatusErrorServer(t *testing.T) {
	err := &providers.StatusError{StatusCode: http.StatusBadGateway}
	assert.Equal(t, ClassServerError, Classify(err))
}

func TestClassifyCircuitOpen(t *testing.T) {
	err := &CircuitOpenError{Endpoint: "POST /v1/chat"}
	assert.Equal(t, ClassCircuitBreakerOpen, Classify(err))
}

func TestClassifyDNSError(t *testing.T) {
	err := &net.DNSError{Err: "no such host", Name: "nope.invalid"}
	assert.Equal(t, ClassDnsError, Classify(err))
}

func TestClassifyUnknownFallsBackToNetwork(t *testing.T) {
	assert.Equal(t, ClassNetworkError, Classify(errors.New("boom")))
}

func TestClassificationRetryable(t *testing.T) {
	assert.True(t, ClassServerError.Retryable())
	assert.True(t, ClassRateLimitError.Retryable())
	assert.True(t, ClassDnsError.Retryable())
	assert.False(t, ClassAuthenticationError.Retryable())
	assert.False(t, ClassCircuitBreakerOpen.Retryable())
}

func TestCountsAsBreakerFailure(t *testing.T) {
	assert.True(t, ClassServerError.CountsAsBreakerFailure())
	assert.True(t, ClassNetworkError.CountsAsBreakerFailure())
	assert.True(t, ClassTimeoutError.CountsAsBreakerFailure())
	assert.True(t, ClassConnectionError.CountsAsBreakerFailure())
	assert.True(t, ClassDnsError.CountsAsBreakerFailure())
	assert.True(t, ClassUnknown.CountsAsBreakerFailure())
	assert.False(t, ClassClientError.CountsAsBreakerFailure())
	assert.False(t, ClassAuthenticationError.CountsAsBreakerFailure())
	assert.False(t, ClassRateLimitError.CountsAsBreakerFailure())
	assert.False(t, ClassTlsError.CountsAsBreakerFailure())
	assert.False(t, ClassCircuitBreakerOpen.CountsAsBreakerFailure())
}

func TestDiagnoseSuggestedActions(t *testing.T) {
	diag := Diagnose(&providers.StatusError{StatusCode: http.StatusUnauthorized}, ErrorContext{Provider: "openai"}, nil)
	assert.Equal(t, ClassAuthenticationError, diag.Classification)
	assert.NotEmpty(t, diag.SuggestedActions)
	assert.NotEmpty(t, diag.HelpLinks)
}
