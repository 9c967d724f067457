package httpclient

import "time"

// HelpLink points a caller at documentation relevant to a failure.
type HelpLink struct {
	Title string
	URL   string
}

// RecoveryAttempt records one retry this package made while handling a
// request, for inclusion in Diagnostics.
type RecoveryAttempt struct {
	Strategy   string
	Succeeded  bool
	DurationMS int64
}

// ErrorContext carries the request coordinates a Diagnostics report is
// about, so a caller logging or displaying it doesn't have to thread them
// through separately.
type ErrorContext struct {
	Provider  string
	Model     string
	Endpoint  string
	Timestamp time.Time
	RequestID string
}

// Diagnostics bundles a classified failure with actionable next steps, the
// retries already attempted, and links to relevant provider documentation.
// Grounded on the original implementation's ErrorDiagnostics/suggested
// actions table.
type Diagnostics struct {
	Err              error
	Classification   Classification
	Context          ErrorContext
	RecoveryAttempts []RecoveryAttempt
	SuggestedActions []string
	HelpLinks        []HelpLink
}

// Diagnose builds a Diagnostics report for err within ctx, having already
// tried the given recovery attempts.
func Diagnose(err error, ctx ErrorContext, attempts []RecoveryAttempt) *Diagnostics {
	class := Classify(err)
	return &Diagnostics{
		Err:              err,
		Classification:   class,
		Context:          ctx,
		RecoveryAttempts: attempts,
		SuggestedActions: suggestedActionsFor(class),
		HelpLinks:        helpLinksFor(class, ctx.Provider),
	}
}

func suggestedActionsFor(c Classification) []string {
	switch c {
	case ClassAuthenticationError:
		return []string{
			"Verify the API key is set and has not expired",
			"Check that the key has access to the requested model",
			"Regenerate the key from the provider's dashboard if in doubt",
		}
	case ClassRateLimitError:
		return []string{
			"Reduce request concurrency or add client-side throttling",
			"Respect the Retry-After header before retrying",
			"Consider requesting a higher rate limit tier from the provider",
		}
	case ClassNetworkError:
		return []string{
			"Check local network connectivity",
			"Verify the provider's status page for an ongoing incident",
			"Retry with backoff; transient network failures usually clear",
		}
	case ClassClientError:
		return []string{
			"Inspect the request body against the provider's API reference",
			"Check for an unsupported parameter or malformed field",
			"Confirm the model ID is still valid for this provider",
		}
	case ClassServerError:
		return []string{
			"Retry with backoff; this is the provider's failure, not the request's",
			"Check the provider's status page",
			"If persistent, open a support ticket with the provider",
		}
	case ClassTimeoutError:
		return []string{
			"Increase the client timeout if the model is known to be slow",
			"Reduce max_output_tokens or prompt size",
			"Retry; timeouts are frequently transient under load",
		}
	case ClassTlsError:
		return []string{
			"Verify the server's certificate chain is valid and not expired",
			"Check custom CA configuration if connecting to a private endpoint",
			"Confirm the negotiated TLS version range matches the server's support",
		}
	case ClassDnsError:
		return []string{
			"Verify the provider's base URL hostname is correct",
			"Check local DNS resolution",
			"Retry; DNS propagation issues are usually transient",
		}
	case ClassConnectionError:
		return []string{
			"Verify the provider endpoint is reachable from this network",
			"Check for a firewall or proxy blocking outbound HTTPS",
			"Retry with backoff",
		}
	case ClassCircuitBreakerOpen:
		return []string{
			"Wait for the circuit breaker's cooldown to elapse before retrying",
			"Investigate the underlying failures that tripped the breaker",
			"Consider routing to a fallback provider in the meantime",
		}
	default:
		return []string{
			"Inspect the underlying error for more detail",
			"Retry with backoff",
		}
	}
}

func helpLinksFor(c Classification, provider string) []HelpLink {
	switch provider {
	case "openai":
		if c == ClassAuthenticationError {
			return []HelpLink{{Title: "OpenAI API keys", URL: "https://platform.openai.com/api-keys"}}
		}
		if c == ClassRateLimitError {
			return []HelpLink{{Title: "OpenAI rate limits", URL: "https://platform.openai.com/docs/guides/rate-limits"}}
		}
	case "anthropic":
		if c == ClassAuthenticationError {
			return []HelpLink{{Title: "Anthropic API keys", URL: "https://console.anthropic.com/settings/keys"}}
		}
		if c == ClassRateLimitError {
			return []HelpLink{{Title: "Anthropic rate limits", URL: "https://docs.anthropic.com/en/api/rate-limits"}}
		}
	}
	return nil
}
