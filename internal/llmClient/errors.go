package llmclient

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrEmptyResponse is returned when a provider replies without any usable content.
var ErrEmptyResponse = errors.New("empty response from model")

// ErrorKind classifies a provider failure for retry policy decisions.
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindCredentialMissing
	KindAuthRejected
	KindRateLimited
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindCredentialMissing:
		return "credential_missing"
	case KindAuthRejected:
		return "auth_rejected"
	case KindRateLimited:
		return "rate_limited"
	case KindUnavailable:
		return "provider_unavailable"
	default:
		return "transport"
	}
}

// APIError is a classified provider failure. RetryAfter is the provider's own
// retry hint when one was supplied (header or embedded in the error body).
type APIError struct {
	Kind       ErrorKind
	Status     int
	RetryAfter time.Duration
	Provider   string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Provider, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

// Retryable reports whether the gateway may retry this failure.
// Auth-class and missing-credential failures are never retried.
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case KindCredentialMissing, KindAuthRejected:
		return false
	default:
		return true
	}
}

// statusOverloaded is the provider-specific overload status some gateways
// return instead of 429. It carries rate-limit semantics.
const statusOverloaded = 529

// ClassifyStatus maps a non-2xx HTTP status plus the response body to an
// APIError. The body is scanned for rate-limit phrasing and embedded retry
// delays so that upstream backoff can honor provider hints.
func ClassifyStatus(provider string, status int, body string, retryAfter time.Duration) *APIError {
	e := &APIError{Status: status, Provider: provider, Message: truncateBody(body)}
	switch {
	case status == 401 || status == 403:
		e.Kind = KindAuthRejected
	case status == 429 || status == statusOverloaded || hasRateLimitPhrase(body):
		e.Kind = KindRateLimited
	case status >= 500:
		e.Kind = KindUnavailable
	default:
		e.Kind = KindTransport
	}
	if e.Kind == KindRateLimited {
		if retryAfter > 0 {
			e.RetryAfter = retryAfter
		} else if d, ok := parseEmbeddedRetryDelay(body); ok {
			e.RetryAfter = d
		}
	}
	return e
}

// NewTransportError wraps a network-level failure (dial, TLS, timeout).
func NewTransportError(provider string, err error) *APIError {
	return &APIError{Kind: KindTransport, Provider: provider, Message: err.Error()}
}

// NewCredentialMissingError reports an absent API key before any call is made.
func NewCredentialMissingError(provider, envVar string) *APIError {
	return &APIError{
		Kind:     KindCredentialMissing,
		Provider: provider,
		Message:  envVar + " is not set",
	}
}

func hasRateLimitPhrase(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "rate_limit") ||
		strings.Contains(lower, "quota exceeded") ||
		strings.Contains(lower, "resource_exhausted")
}

// Providers often embed the wait inside the message, e.g.
// "Please try again in 7.66s" or "retry after 12 seconds".
var (
	reTryAgainIn = regexp.MustCompile(`(?i)try again in\s+([0-9]+(?:\.[0-9]+)?)\s*s`)
	reRetryAfter = regexp.MustCompile(`(?i)retry after\s+([0-9]+(?:\.[0-9]+)?)\s*s`)
)

func parseEmbeddedRetryDelay(body string) (time.Duration, bool) {
	for _, re := range []*regexp.Regexp{reTryAgainIn, reRetryAfter} {
		m := re.FindStringSubmatch(body)
		if len(m) != 2 {
			continue
		}
		secs, err := strconv.ParseFloat(m[1], 64)
		if err != nil || secs <= 0 {
			continue
		}
		return time.Duration(secs * float64(time.Second)), true
	}
	return 0, false
}

func truncateBody(body string) string {
	const max = 2048
	body = strings.TrimSpace(body)
	if len(body) > max {
		return body[:max]
	}
	return body
}
