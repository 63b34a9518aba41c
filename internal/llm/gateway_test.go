package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	llmclient "draftforge/internal/llmClient"
	"draftforge/internal/tester"
)

type recordedWait struct {
	attempt int
	delay   time.Duration
}

func newTestGateway(client llmclient.Client) (*Gateway, *[]recordedWait) {
	waits := &[]recordedWait{}
	g := New(Options{
		Observer: func(attempt int, delay time.Duration) {
			*waits = append(*waits, recordedWait{attempt, delay})
		},
		Sleep:  func(ctx context.Context, d time.Duration) error { return nil },
		Jitter: func() float64 { return 0.5 },
	})
	g.Register("groq", client)
	return g, waits
}

func TestGenerateSuccessFirstAttempt(t *testing.T) {
	fake := NewFakeClient(FakeResult{Resp: llmclient.Response{Content: "hello", InputTokens: 3, OutputTokens: 5}})
	g, waits := newTestGateway(fake)

	resp, err := g.Generate(context.Background(), llmclient.Request{Model: "llama-3.3-70b"})
	tester.NoErr(t, err)
	tester.Eq(t, resp.Content, "hello")
	tester.Eq(t, fake.Calls(), 1)
	tester.Eq(t, len(*waits), 0)
}

func TestGenerateRateLimitHintHonored(t *testing.T) {
	fake := NewFakeClient(
		FakeResult{Err: llmclient.ClassifyStatus("groq", 429, "rate limit", 5*time.Second)},
		FakeResult{Resp: llmclient.Response{Content: "second try"}},
	)
	g, waits := newTestGateway(fake)

	resp, err := g.Generate(context.Background(), llmclient.Request{Model: "llama-3.3-70b"})
	tester.NoErr(t, err)
	tester.Eq(t, resp.Content, "second try")
	tester.Eq(t, fake.Calls(), 2)
	tester.Eq(t, len(*waits), 1)
	tester.Eq(t, (*waits)[0].attempt, 1)
	tester.Eq(t, (*waits)[0].delay, 5*time.Second+retryHintBuffer)
}

func TestGenerateAuthNeverRetried(t *testing.T) {
	fake := NewFakeClient(FakeResult{Err: llmclient.ClassifyStatus("groq", 401, "bad key", 0)})
	g, waits := newTestGateway(fake)

	_, err := g.Generate(context.Background(), llmclient.Request{Model: "llama-3.3-70b"})
	tester.Err(t, err)
	tester.Eq(t, fake.Calls(), 1)
	tester.Eq(t, len(*waits), 0)

	var apiErr *llmclient.APIError
	tester.True(t, errors.As(err, &apiErr))
	tester.Eq(t, apiErr.Kind, llmclient.KindAuthRejected)
}

func TestGenerateExhaustionNamesAttempts(t *testing.T) {
	fake := NewFakeClient(FakeResult{Err: llmclient.ClassifyStatus("groq", 503, "unavailable", 0)})
	g, waits := newTestGateway(fake)

	_, err := g.Generate(context.Background(), llmclient.Request{Model: "llama-3.3-70b"})
	tester.Err(t, err)
	tester.Eq(t, fake.Calls(), defaultMaxAttempts)
	tester.Eq(t, len(*waits), defaultMaxAttempts-1)
	tester.Contains(t, err.Error(), "5 attempts")

	var apiErr *llmclient.APIError
	tester.True(t, errors.As(err, &apiErr), "classified cause must be wrapped")
}

func TestGenerateServerErrorUsesExponentialBackoff(t *testing.T) {
	fake := NewFakeClient(
		FakeResult{Err: llmclient.ClassifyStatus("groq", 500, "boom", 0)},
		FakeResult{Err: llmclient.ClassifyStatus("groq", 500, "boom", 0)},
		FakeResult{Resp: llmclient.Response{Content: "ok"}},
	)
	g, waits := newTestGateway(fake)

	_, err := g.Generate(context.Background(), llmclient.Request{Model: "llama-3.3-70b"})
	tester.NoErr(t, err)
	tester.Eq(t, fake.Calls(), 3)
	tester.Eq(t, len(*waits), 2)
	// jitter pinned to 0.5: exact doubling
	tester.Eq(t, (*waits)[0].delay, defaultBaseDelay)
	tester.Eq(t, (*waits)[1].delay, 2*defaultBaseDelay)
}

func TestGenerateMissingProviderFailsBeforeCall(t *testing.T) {
	g := New(Options{Sleep: func(ctx context.Context, d time.Duration) error { return nil }})

	_, err := g.Generate(context.Background(), llmclient.Request{Model: "gemini-2.5-flash"})
	tester.Err(t, err)
	var apiErr *llmclient.APIError
	tester.True(t, errors.As(err, &apiErr))
	tester.Eq(t, apiErr.Kind, llmclient.KindCredentialMissing)
}

func TestPreflight(t *testing.T) {
	fake := NewFakeClient()
	g, _ := newTestGateway(fake)

	tester.NoErr(t, g.Preflight("llama-3.3-70b"))

	err := g.Preflight("llama-3.3-70b", "gemini-2.5-pro")
	tester.Err(t, err)
	tester.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestProviderFor(t *testing.T) {
	tester.Eq(t, ProviderFor("gemini-2.5-pro"), "gemini")
	tester.True(t, strings.EqualFold(ProviderFor("llama-3.3-70b-versatile"), "groq"))
}
