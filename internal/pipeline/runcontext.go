package pipeline

import (
	"fmt"

	"draftforge/internal/artifact"
)

// RunContext accumulates the finalized artifacts of a run in production
// order. Every generation sees the union of what came before it.
type RunContext struct {
	order          []artifact.Type
	byType         map[artifact.Type]artifact.Artifact
	clarifications map[string]string
}

func NewRunContext() *RunContext {
	return &RunContext{
		byType:         make(map[artifact.Type]artifact.Artifact),
		clarifications: make(map[string]string),
	}
}

// Put records a finalized artifact. Each type is finalized at most once per
// run; a second Put for the same type is a bug in the caller.
func (rc *RunContext) Put(a artifact.Artifact) error {
	if _, dup := rc.byType[a.Type]; dup {
		return fmt.Errorf("pipeline: artifact %s already finalized", a.Type)
	}
	rc.order = append(rc.order, a.Type)
	rc.byType[a.Type] = a
	return nil
}

func (rc *RunContext) Has(t artifact.Type) bool {
	_, ok := rc.byType[t]
	return ok
}

// Artifacts returns the finalized artifacts in the order they were produced.
func (rc *RunContext) Artifacts() []artifact.Artifact {
	out := make([]artifact.Artifact, 0, len(rc.order))
	for _, t := range rc.order {
		out = append(out, rc.byType[t])
	}
	return out
}

func (rc *RunContext) SetClarification(stage, answer string) {
	rc.clarifications[stage] = answer
}

func (rc *RunContext) Clarification(stage string) (string, bool) {
	v, ok := rc.clarifications[stage]
	return v, ok
}

// Clarifications returns a copy suitable for checkpointing.
func (rc *RunContext) Clarifications() map[string]string {
	if len(rc.clarifications) == 0 {
		return nil
	}
	out := make(map[string]string, len(rc.clarifications))
	for k, v := range rc.clarifications {
		out[k] = v
	}
	return out
}

// restore rebuilds a RunContext from checkpointed state.
func restore(arts []artifact.Artifact, clar map[string]string) (*RunContext, error) {
	rc := NewRunContext()
	for _, a := range arts {
		if err := rc.Put(a); err != nil {
			return nil, err
		}
	}
	for k, v := range clar {
		rc.clarifications[k] = v
	}
	return rc, nil
}
