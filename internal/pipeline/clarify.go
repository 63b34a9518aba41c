package pipeline

import (
	"context"
	"fmt"
	"sync"
)

// ClarificationWaiter blocks until the user answers a stage's question. The
// CLI reads stdin; the API server waits on a submit endpoint.
type ClarificationWaiter interface {
	Await(ctx context.Context, runID, question string) (string, error)
}

// ClarifierFunc adapts a function to the ClarificationWaiter interface.
type ClarifierFunc func(ctx context.Context, runID, question string) (string, error)

func (f ClarifierFunc) Await(ctx context.Context, runID, question string) (string, error) {
	return f(ctx, runID, question)
}

// ChannelClarifier routes answers submitted out-of-band (an HTTP endpoint)
// to the run that is waiting on them.
type ChannelClarifier struct {
	mu      sync.Mutex
	pending map[string]chan string
}

func NewChannelClarifier() *ChannelClarifier {
	return &ChannelClarifier{pending: make(map[string]chan string)}
}

func (c *ChannelClarifier) Await(ctx context.Context, runID, question string) (string, error) {
	c.mu.Lock()
	ch, ok := c.pending[runID]
	if !ok {
		ch = make(chan string, 1)
		c.pending[runID] = ch
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, runID)
		c.mu.Unlock()
	}()

	select {
	case answer := <-ch:
		return answer, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Submit delivers an answer for a run. It errors when no run with that ID is
// waiting and no slot has been opened for it.
func (c *ChannelClarifier) Submit(runID, answer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.pending[runID]
	if !ok {
		return fmt.Errorf("pipeline: no clarification pending for run %s", runID)
	}
	select {
	case ch <- answer:
		return nil
	default:
		return fmt.Errorf("pipeline: clarification for run %s already submitted", runID)
	}
}

// Pending reports whether a run is currently waiting for an answer.
func (c *ChannelClarifier) Pending(runID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[runID]
	return ok
}
