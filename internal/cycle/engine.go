// Package cycle drives the generate→review→accept-or-revise loop for one
// artifact at a time.
package cycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"draftforge/internal/artifact"
	llmclient "draftforge/internal/llmClient"
	"draftforge/internal/prompt"
	"draftforge/internal/review"
)

// Generator is the model-call surface the engine needs. *llm.Gateway
// satisfies it; tests substitute scripted fakes.
type Generator interface {
	Generate(ctx context.Context, req llmclient.Request) (llmclient.Response, error)
}

// maxSiblingChars bounds sibling artifact content inside reviewer requests.
const maxSiblingChars = 2000

const (
	generatorTemperature = 0.7
	reviewerTemperature  = 0
)

// Engine runs bounded feedback cycles. It holds no per-artifact state; each
// Produce call owns its own feedback list.
type Engine struct {
	gen       Generator
	prompts   prompt.Source
	maxCycles int
}

func New(gen Generator, prompts prompt.Source, maxCycles int) *Engine {
	if maxCycles < 1 {
		maxCycles = 1
	}
	return &Engine{gen: gen, prompts: prompts, maxCycles: maxCycles}
}

// Request describes one artifact to produce. Siblings are the artifacts
// already finalized in the run, in production order.
type Request struct {
	Type          artifact.Type
	StageIndex    int
	Goal          string
	Clarification string
	Siblings      []artifact.Artifact

	GeneratorModel string
	ReviewerModel  string
	MaxTokens      int

	// OnCycle, when set, is invoked with the 1-based cycle number before each
	// generate call. Status display only.
	OnCycle func(cycle int)
}

// Result is the terminal state of one feedback loop. Approved=false with a
// non-nil artifact means the cycle budget ran out and the last generation is
// returned as best effort; the pipeline continues.
type Result struct {
	Artifact   artifact.Artifact
	CyclesUsed int
	Approved   bool
}

// Produce runs up to maxCycles generate/review pairs and returns the
// finalized artifact. Only gateway-terminal errors propagate; a rejected
// final cycle is not an error.
func (e *Engine) Produce(ctx context.Context, req Request) (Result, error) {
	var feedback []artifact.FeedbackEntry
	var lastContent string

	for cycle := 1; cycle <= e.maxCycles; cycle++ {
		if req.OnCycle != nil {
			req.OnCycle(cycle)
		}

		genResp, err := e.gen.Generate(ctx, llmclient.Request{
			SystemPrompt: e.prompts.Generation(req.Type),
			UserMessage:  buildGenerationMessage(req, feedback),
			Model:        req.GeneratorModel,
			MaxTokens:    req.MaxTokens,
			Temperature:  generatorTemperature,
		})
		if err != nil {
			return Result{}, fmt.Errorf("generate %s (cycle %d): %w", req.Type, cycle, err)
		}
		content := review.StripFence(genResp.Content)
		lastContent = content

		revResp, err := e.gen.Generate(ctx, llmclient.Request{
			SystemPrompt: e.prompts.Review(),
			UserMessage:  buildReviewMessage(req, content),
			Model:        req.ReviewerModel,
			MaxTokens:    req.MaxTokens,
			Temperature:  reviewerTemperature,
		})
		if err != nil {
			return Result{}, fmt.Errorf("review %s (cycle %d): %w", req.Type, cycle, err)
		}

		verdict := review.Classify(revResp.Content)
		if verdict.Approved() {
			return Result{
				Artifact:   e.finalize(req, content, cycle, true),
				CyclesUsed: cycle,
				Approved:   true,
			}, nil
		}

		fb := verdict.Feedback
		if fb == "" {
			fb = "the reviewer rejected the draft without usable feedback; tighten structure and resolve ambiguity"
		}
		feedback = append(feedback, artifact.FeedbackEntry{
			Cycle:    cycle,
			Type:     req.Type,
			Feedback: fb,
			Rejected: content,
			At:       time.Now(),
		})
	}

	// Cycle budget exhausted: the last generation is the best-effort artifact.
	return Result{
		Artifact:   e.finalize(req, lastContent, e.maxCycles, false),
		CyclesUsed: e.maxCycles,
		Approved:   false,
	}, nil
}

func (e *Engine) finalize(req Request, content string, cycles int, approved bool) artifact.Artifact {
	return artifact.Artifact{
		Type:       req.Type,
		Content:    content,
		Version:    cycles,
		Approved:   approved,
		StageIndex: req.StageIndex,
		CreatedAt:  time.Now().UTC(),
	}
}

func buildGenerationMessage(req Request, feedback []artifact.FeedbackEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[GOAL]\n%s\n", req.Goal)
	if req.Clarification != "" {
		fmt.Fprintf(&b, "\n[CLARIFICATION FROM THE USER]\n%s\n", req.Clarification)
	}
	if len(req.Siblings) > 0 {
		b.WriteString("\n[COMPANION DOCUMENTS]\n")
		for _, sib := range req.Siblings {
			fmt.Fprintf(&b, "--- %s ---\n%s\n", sib.Type, sib.Content)
		}
	}
	if len(feedback) > 0 {
		b.WriteString("\n[REVIEWER FEEDBACK ON YOUR EARLIER DRAFTS]\n")
		for _, f := range feedback {
			fmt.Fprintf(&b, "cycle %d: %s\n", f.Cycle, f.Feedback)
		}
		b.WriteString("Address every point above in the next draft.\n")
	}
	fmt.Fprintf(&b, "\nProduce the %s document now.\n", req.Type)
	return b.String()
}

func buildReviewMessage(req Request, candidate string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[GOAL]\n%s\n", req.Goal)
	fmt.Fprintf(&b, "\n[CANDIDATE: %s]\n%s\n", req.Type, candidate)
	if len(req.Siblings) > 0 {
		b.WriteString("\n[COMPANION DOCUMENTS]\n")
		for _, sib := range req.Siblings {
			fmt.Fprintf(&b, "--- %s ---\n%s\n", sib.Type,
				review.TruncateForContext(sib.Content, maxSiblingChars))
		}
	}
	return b.String()
}
