package llm

import (
	"context"
	"sync"

	llmclient "draftforge/internal/llmClient"
)

// FakeClient replays a scripted sequence of results for offline/testing use.
// Once the script is exhausted it keeps returning the last step.
type FakeClient struct {
	mu     sync.Mutex
	script []FakeResult
	calls  int

	// Requests records every request seen, in order.
	Requests []llmclient.Request
}

// FakeResult is one scripted step.
type FakeResult struct {
	Resp llmclient.Response
	Err  error
}

func NewFakeClient(script ...FakeResult) *FakeClient {
	return &FakeClient{script: script}
}

func (f *FakeClient) Name() string { return "fake" }
func (f *FakeClient) Close() error { return nil }

// Calls reports how many Generate calls were made.
func (f *FakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeClient) Generate(ctx context.Context, req llmclient.Request) (llmclient.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, req)
	idx := f.calls
	f.calls++
	if len(f.script) == 0 {
		return llmclient.Response{Content: "ok"}, nil
	}
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	step := f.script[idx]
	return step.Resp, step.Err
}
