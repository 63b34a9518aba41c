package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	llmclient "draftforge/internal/llmClient"
)

// Gateway unifies the provider calling conventions behind a single Generate
// and applies the retry/backoff policy for transient failures. Retry state is
// scoped per call and the gateway itself is scoped per run, so one run's
// backoff never leaks into another.
type Gateway struct {
	mu        sync.Mutex
	providers map[string]llmclient.Client

	observer    WaitObserver
	maxAttempts int
	backoff     backoffPolicy
	sleep       func(ctx context.Context, d time.Duration) error
}

// WaitObserver is notified before each backoff wait with the attempt number
// that just failed and the computed delay. Status display only.
type WaitObserver func(attempt int, delay time.Duration)

// Options configure a Gateway. Zero values pick the defaults from §retry policy.
type Options struct {
	Observer    WaitObserver
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Sleep and Jitter are seams for tests; production uses a context-aware
	// timer and rand-based ±20% jitter.
	Sleep  func(ctx context.Context, d time.Duration) error
	Jitter func() float64
}

// New creates a Gateway with no providers registered. Register providers for
// which credentials are present; Preflight reports the rest.
func New(opts Options) *Gateway {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultMaxDelay
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	jitter := opts.Jitter
	if jitter == nil {
		jitter = newJitterSource()
	}
	return &Gateway{
		providers:   make(map[string]llmclient.Client),
		observer:    opts.Observer,
		maxAttempts: opts.MaxAttempts,
		backoff: backoffPolicy{
			base:   opts.BaseDelay,
			max:    opts.MaxDelay,
			jitter: jitter,
		},
		sleep: opts.Sleep,
	}
}

// Register binds a provider name to a client. Registration implies the
// provider's credentials were present at construction time.
func (g *Gateway) Register(provider string, c llmclient.Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.providers[provider] = c
}

// ProviderFor maps a model identifier to its provider name.
func ProviderFor(model string) string {
	if strings.HasPrefix(model, "gemini") {
		return "gemini"
	}
	return "groq"
}

// Preflight verifies that every given model's provider is registered. It is
// called before any network call so that a missing credential never causes
// partial spend.
func (g *Gateway) Preflight(models ...string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range models {
		provider := ProviderFor(m)
		if _, ok := g.providers[provider]; !ok {
			return llmclient.NewCredentialMissingError(provider, credentialEnvVar(provider))
		}
	}
	return nil
}

func credentialEnvVar(provider string) string {
	return strings.ToUpper(provider) + "_API_KEY"
}

// Generate dispatches the request to its provider and retries transient
// failures up to the attempt ceiling. Auth-class failures fail immediately;
// rate limits honor the provider hint; everything retryable uses exponential
// backoff with jitter, capped at the maximum delay.
func (g *Gateway) Generate(ctx context.Context, req llmclient.Request) (llmclient.Response, error) {
	client, err := g.clientFor(req.Model)
	if err != nil {
		return llmclient.Response{}, err
	}

	state := retryState{}
	for {
		state.attempt++
		resp, err := client.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}

		apiErr := asAPIError(req.Model, err)
		if !apiErr.Retryable() {
			return llmclient.Response{}, apiErr
		}
		if state.attempt >= g.maxAttempts {
			return llmclient.Response{}, fmt.Errorf(
				"llm: %s: giving up after %d attempts: %w", req.Model, state.attempt, apiErr)
		}

		state.lastHint = 0
		if apiErr.Kind == llmclient.KindRateLimited {
			state.lastHint = apiErr.RetryAfter
		}
		delay := g.backoff.delay(state.attempt, state.lastHint)
		if g.observer != nil {
			g.observer(state.attempt, delay)
		}
		if err := g.sleep(ctx, delay); err != nil {
			return llmclient.Response{}, err
		}
	}
}

// retryState is transient backoff bookkeeping for one call sequence.
type retryState struct {
	attempt  int
	lastHint time.Duration
}

func (g *Gateway) clientFor(model string) (llmclient.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	provider := ProviderFor(model)
	c, ok := g.providers[provider]
	if !ok {
		return nil, llmclient.NewCredentialMissingError(provider, credentialEnvVar(provider))
	}
	return c, nil
}

// asAPIError normalizes any client failure into a classified APIError.
// Unclassified failures (decode errors, empty responses) count as transport.
func asAPIError(model string, err error) *llmclient.APIError {
	var apiErr *llmclient.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return llmclient.NewTransportError(ProviderFor(model), err)
}

// Close releases every registered provider client.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var first error
	for _, c := range g.providers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
