package cycle

import (
	"context"
	"errors"
	"strings"
	"testing"

	"draftforge/internal/artifact"
	llmclient "draftforge/internal/llmClient"
	"draftforge/internal/prompt"
	"draftforge/internal/tester"
)

// scriptedGen replays canned responses and records every request.
type scriptedGen struct {
	steps    []scriptStep
	requests []llmclient.Request
}

type scriptStep struct {
	content string
	err     error
}

func (s *scriptedGen) Generate(ctx context.Context, req llmclient.Request) (llmclient.Response, error) {
	s.requests = append(s.requests, req)
	if len(s.steps) == 0 {
		return llmclient.Response{Content: "unscripted"}, nil
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	if step.err != nil {
		return llmclient.Response{}, step.err
	}
	return llmclient.Response{Content: step.content}, nil
}

func baseRequest() Request {
	return Request{
		Type:           artifact.TypeBrief,
		StageIndex:     0,
		Goal:           "a todo app for gardeners",
		GeneratorModel: "llama-3.3-70b",
		ReviewerModel:  "gemini-2.5-flash",
	}
}

func TestProduceApprovedThirdCycle(t *testing.T) {
	// Two rejections, then approval: 3 generate + 3 review calls and the
	// final artifact is the third generation.
	gen := &scriptedGen{steps: []scriptStep{
		{content: "draft one"},
		{content: "NEEDS_REVISION: too vague"},
		{content: "draft two"},
		{content: "NEEDS_REVISION: still too vague"},
		{content: "draft three"},
		{content: "APPROVED"},
	}}
	var cycles []int
	req := baseRequest()
	req.OnCycle = func(c int) { cycles = append(cycles, c) }

	e := New(gen, prompt.Defaults(), 3)
	res, err := e.Produce(context.Background(), req)
	tester.NoErr(t, err)
	tester.Eq(t, res.CyclesUsed, 3)
	tester.True(t, res.Approved)
	tester.Eq(t, res.Artifact.Content, "draft three")
	tester.Eq(t, res.Artifact.Version, 3)
	tester.Eq(t, len(gen.requests), 6)
	tester.Eq(t, cycles, []int{1, 2, 3})
}

func TestProduceBudgetExhaustedKeepsLastDraft(t *testing.T) {
	gen := &scriptedGen{steps: []scriptStep{
		{content: "draft one"},
		{content: "NEEDS_REVISION: no"},
		{content: "draft two"},
		{content: "NEEDS_REVISION: no"},
		{content: "draft three"},
		{content: "NEEDS_REVISION: no"},
	}}
	e := New(gen, prompt.Defaults(), 3)
	res, err := e.Produce(context.Background(), baseRequest())
	tester.NoErr(t, err, "budget exhaustion is not an error")
	tester.Eq(t, res.CyclesUsed, 3)
	tester.False(t, res.Approved)
	tester.Eq(t, res.Artifact.Content, "draft three")
	tester.False(t, res.Artifact.Approved)
}

func TestProduceFeedbackAccumulatesInPrompts(t *testing.T) {
	gen := &scriptedGen{steps: []scriptStep{
		{content: "draft one"},
		{content: "NEEDS_REVISION: mention watering schedules"},
		{content: "draft two"},
		{content: "APPROVED"},
	}}
	e := New(gen, prompt.Defaults(), 3)
	_, err := e.Produce(context.Background(), baseRequest())
	tester.NoErr(t, err)

	// Request 2 (index 2) is the second generate call; it must carry cycle-1
	// feedback while the first generate call carried none.
	tester.False(t, strings.Contains(gen.requests[0].UserMessage, "watering schedules"))
	tester.Contains(t, gen.requests[2].UserMessage, "watering schedules")
}

func TestProduceUnparseableReviewForcesRevision(t *testing.T) {
	gen := &scriptedGen{steps: []scriptStep{
		{content: "draft one"},
		{content: "hmm, hard to say"},
		{content: "draft two"},
		{content: "APPROVED"},
	}}
	e := New(gen, prompt.Defaults(), 3)
	res, err := e.Produce(context.Background(), baseRequest())
	tester.NoErr(t, err)
	tester.Eq(t, res.CyclesUsed, 2)
	tester.Contains(t, gen.requests[2].UserMessage, "hmm, hard to say")
}

func TestProduceStripsFenceBeforeReview(t *testing.T) {
	gen := &scriptedGen{steps: []scriptStep{
		{content: "```markdown\n# Brief\n```"},
		{content: "APPROVED"},
	}}
	e := New(gen, prompt.Defaults(), 3)
	res, err := e.Produce(context.Background(), baseRequest())
	tester.NoErr(t, err)
	tester.Eq(t, res.Artifact.Content, "# Brief")
	tester.Contains(t, gen.requests[1].UserMessage, "# Brief")
	tester.False(t, strings.Contains(gen.requests[1].UserMessage, "```markdown"))
}

func TestProduceSiblingsTruncatedForReviewer(t *testing.T) {
	long := strings.Repeat("x", maxSiblingChars+500)
	req := baseRequest()
	req.Type = artifact.TypeProductSpec
	req.Siblings = []artifact.Artifact{{Type: artifact.TypeBrief, Content: long}}

	gen := &scriptedGen{steps: []scriptStep{
		{content: "spec draft"},
		{content: "APPROVED"},
	}}
	e := New(gen, prompt.Defaults(), 3)
	_, err := e.Produce(context.Background(), req)
	tester.NoErr(t, err)

	// Generation sees the full sibling; review sees the truncated one.
	tester.Contains(t, gen.requests[0].UserMessage, long)
	tester.Contains(t, gen.requests[1].UserMessage, "[... truncated ...]")
}

func TestProduceGatewayErrorPropagates(t *testing.T) {
	boom := errors.New("terminal gateway failure")
	gen := &scriptedGen{steps: []scriptStep{{err: boom}}}
	e := New(gen, prompt.Defaults(), 3)
	_, err := e.Produce(context.Background(), baseRequest())
	tester.Err(t, err)
	tester.True(t, errors.Is(err, boom))
	tester.Eq(t, len(gen.requests), 1, "no review call after a failed generate")
}

func TestProduceUsesConfiguredModels(t *testing.T) {
	gen := &scriptedGen{steps: []scriptStep{
		{content: "draft"},
		{content: "APPROVED"},
	}}
	e := New(gen, prompt.Defaults(), 3)
	_, err := e.Produce(context.Background(), baseRequest())
	tester.NoErr(t, err)
	tester.Eq(t, gen.requests[0].Model, "llama-3.3-70b")
	tester.Eq(t, gen.requests[1].Model, "gemini-2.5-flash")
}
