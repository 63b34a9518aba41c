package llmclient

import (
	"net/http"
	"testing"
	"time"

	"draftforge/internal/tester"
)

func TestParseRetryAfterSeconds(t *testing.T) {
	h := http.Header{}
	h.Set("retry-after", "5")
	d, ok := parseRetryAfterHeaders(h)
	tester.True(t, ok)
	tester.Eq(t, d, 5*time.Second)
}

func TestParseRetryAfterResetDurations(t *testing.T) {
	h := http.Header{}
	h.Set("x-ratelimit-reset-requests", "7.66s")
	d, ok := parseRetryAfterHeaders(h)
	tester.True(t, ok)
	tester.Eq(t, d, 7660*time.Millisecond)

	h = http.Header{}
	h.Set("x-ratelimit-reset-tokens", "2m")
	d, ok = parseRetryAfterHeaders(h)
	tester.True(t, ok)
	tester.Eq(t, d, 2*time.Minute)
}

func TestParseRetryAfterPriority(t *testing.T) {
	h := http.Header{}
	h.Set("retry-after", "3")
	h.Set("x-ratelimit-reset-requests", "30s")
	d, ok := parseRetryAfterHeaders(h)
	tester.True(t, ok)
	tester.Eq(t, d, 3*time.Second, "retry-after takes priority over reset headers")
}

func TestParseRetryAfterAbsent(t *testing.T) {
	_, ok := parseRetryAfterHeaders(http.Header{})
	tester.False(t, ok)

	h := http.Header{}
	h.Set("retry-after", "garbage")
	_, ok = parseRetryAfterHeaders(h)
	tester.False(t, ok)
}
