// Package prompt supplies the instruction text used by the feedback cycle.
// The engine consumes these as opaque strings.
package prompt

import (
	"fmt"

	"draftforge/internal/artifact"
	"draftforge/internal/review"
)

// Source provides the generation instruction per artifact type and the shared
// reviewer instruction.
type Source interface {
	Generation(t artifact.Type) string
	Review() string
}

// Defaults returns the built-in instruction set.
func Defaults() Source { return defaults{} }

type defaults struct{}

var generationInstructions = map[artifact.Type]string{
	artifact.TypeBrief: "You are a senior product strategist. Write a concise project brief " +
		"for the stated goal: the problem, the target users, the desired outcome, and " +
		"explicit non-goals. Plain markdown, no code fences around the whole document.",
	artifact.TypeProductSpec: "You are a product manager. Write a product specification " +
		"grounded in the brief: feature list with priorities, acceptance criteria per " +
		"feature, and open risks. Plain markdown.",
	artifact.TypeUserStories: "You are a product manager. Derive user stories from the brief " +
		"and product specification. One story per line in the classic as-a/i-want/so-that " +
		"form, grouped by persona. Plain markdown.",
	artifact.TypeArchitecture: "You are a software architect. Propose the system architecture " +
		"for the specified product: components, responsibilities, boundaries, and the " +
		"rationale for each major choice. Plain markdown.",
	artifact.TypeDataModel: "You are a software architect. Define the data model implied by " +
		"the specification and architecture: entities, attributes, relations, and lifecycle " +
		"notes. Plain markdown.",
	artifact.TypeBuildPlan: "You are an engineering lead. Write the build plan: milestones in " +
		"dependency order, the artifacts each milestone delivers, and a rough estimate per " +
		"milestone. Plain markdown.",
}

func (defaults) Generation(t artifact.Type) string {
	if s, ok := generationInstructions[t]; ok {
		return s
	}
	return "Produce the requested document for the stated goal. Plain markdown."
}

func (defaults) Review() string {
	return fmt.Sprintf(
		"You are a strict reviewer. Judge whether the candidate document fulfils the goal "+
			"and is consistent with the companion documents provided. Reply with %q on the "+
			"first line if it is acceptable as-is. Otherwise reply with %q on the first line "+
			"followed by specific, actionable feedback. Use no other lead-in.",
		review.ApprovedMarker, review.RevisionMarker)
}

// ClarificationQuestion is the question the driver asks before the concept
// stage when the goal needs sharpening.
const ClarificationQuestion = "Before drafting begins: who is the primary audience for this " +
	"project, and is there a constraint (budget, platform, deadline) the documents must respect?"
