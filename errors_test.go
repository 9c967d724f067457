package specado

import "testing"

func TestHttpErrorRetryable(t *testing.T) {
	cases := []struct {
		class HttpErrorClassification
		want  bool
	}{
		{ClassServerError, true},
		{ClassNetworkError, true},
		{ClassTimeoutError, true},
		{ClassConnectionError, true},
		{ClassRateLimitError, true},
		{ClassDnsError, true},
		{ClassClientError, false},
		{ClassAuthenticationError, false},
		{ClassTlsError, false},
		{ClassCircuitBreakerOpen, false},
		{ClassUnknown, false},
	}
	for _, c := range cases {
		err := &HttpError{Classification: c.class}
		if got := err.Retryable(); got != c.want {
			t.Errorf("HttpError{Classification: %s}.Retryable() = %v, want %v", c.class, got, c.want)
		}
	}
}
