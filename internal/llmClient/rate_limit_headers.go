package llmclient

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// parseRetryAfterHeaders extracts a retry hint from rate-limit response
// headers. Checked in priority order:
// - retry-after (seconds)
// - x-ratelimit-reset-requests / x-ratelimit-reset-tokens (Go durations, e.g. "7.66s")
func parseRetryAfterHeaders(h http.Header) (time.Duration, bool) {
	readInt := func(key string) (int, bool) {
		v := strings.TrimSpace(h.Get(key))
		if v == "" {
			return 0, false
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	readDur := func(key string) (time.Duration, bool) {
		v := strings.TrimSpace(h.Get(key))
		if v == "" {
			return 0, false
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, false
		}
		return d, true
	}

	if v, ok := readInt("retry-after"); ok && v > 0 {
		return time.Duration(v) * time.Second, true
	}
	if d, ok := readDur("x-ratelimit-reset-requests"); ok && d > 0 {
		return d, true
	}
	if d, ok := readDur("x-ratelimit-reset-tokens"); ok && d > 0 {
		return d, true
	}
	return 0, false
}
