// Package pipeline sequences the fixed document stages and owns resume,
// clarification, and progress reporting for a run.
package pipeline

import (
	"draftforge/internal/artifact"
	"draftforge/internal/prompt"
)

// Stage is one step of the run. Outputs are produced in order within the
// stage; every artifact of earlier stages is visible as context.
type Stage struct {
	Index   int
	Name    string
	Outputs []artifact.Type

	// ClarifyPrompt, when non-empty, is put to the user once before the
	// stage's first artifact is generated.
	ClarifyPrompt string
}

// DefaultStages is the standard four-stage plan: concept, definition,
// architecture, delivery.
func DefaultStages() []Stage {
	return []Stage{
		{
			Index:         0,
			Name:          "concept",
			Outputs:       []artifact.Type{artifact.TypeBrief},
			ClarifyPrompt: prompt.ClarificationQuestion,
		},
		{
			Index:   1,
			Name:    "definition",
			Outputs: []artifact.Type{artifact.TypeProductSpec, artifact.TypeUserStories},
		},
		{
			Index:   2,
			Name:    "architecture",
			Outputs: []artifact.Type{artifact.TypeArchitecture, artifact.TypeDataModel},
		},
		{
			Index:   3,
			Name:    "delivery",
			Outputs: []artifact.Type{artifact.TypeBuildPlan},
		},
	}
}
