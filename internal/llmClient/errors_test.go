package llmclient

import (
	"testing"
	"time"

	"draftforge/internal/tester"
)

func TestClassifyStatusAuth(t *testing.T) {
	for _, status := range []int{401, 403} {
		e := ClassifyStatus("groq", status, "invalid api key", 0)
		tester.Eq(t, e.Kind, KindAuthRejected)
		tester.False(t, e.Retryable(), "auth failures must not be retried")
	}
}

func TestClassifyStatusRateLimited(t *testing.T) {
	e := ClassifyStatus("groq", 429, "rate limit reached", 5*time.Second)
	tester.Eq(t, e.Kind, KindRateLimited)
	tester.True(t, e.Retryable())
	tester.Eq(t, e.RetryAfter, 5*time.Second)
}

func TestClassifyStatusOverloadedCountsAsRateLimit(t *testing.T) {
	e := ClassifyStatus("groq", 529, "overloaded", 0)
	tester.Eq(t, e.Kind, KindRateLimited)
}

func TestClassifyStatusRateLimitPhraseWins(t *testing.T) {
	// A 400 whose body carries a rate-limit phrase is still a rate limit.
	e := ClassifyStatus("gemini", 400, "RESOURCE_EXHAUSTED: quota exceeded", 0)
	tester.Eq(t, e.Kind, KindRateLimited)
}

func TestClassifyStatusEmbeddedRetryDelay(t *testing.T) {
	e := ClassifyStatus("groq", 429, "Rate limit reached. Please try again in 7.66s.", 0)
	tester.Eq(t, e.Kind, KindRateLimited)
	tester.Eq(t, e.RetryAfter, time.Duration(7.66*float64(time.Second)))
}

func TestClassifyStatusServerError(t *testing.T) {
	e := ClassifyStatus("groq", 503, "service unavailable", 0)
	tester.Eq(t, e.Kind, KindUnavailable)
	tester.True(t, e.Retryable())
}

func TestCredentialMissingNotRetryable(t *testing.T) {
	e := NewCredentialMissingError("gemini", "GEMINI_API_KEY")
	tester.Eq(t, e.Kind, KindCredentialMissing)
	tester.False(t, e.Retryable())
	tester.Contains(t, e.Error(), "GEMINI_API_KEY")
}

func TestParseEmbeddedRetryDelay(t *testing.T) {
	d, ok := parseEmbeddedRetryDelay("please retry after 12s")
	tester.True(t, ok)
	tester.Eq(t, d, 12*time.Second)

	_, ok = parseEmbeddedRetryDelay("no hint here")
	tester.False(t, ok)
}
