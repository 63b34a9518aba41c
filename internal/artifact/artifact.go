package artifact

import "time"

// Type tags one finalized output unit of a pipeline stage. Types are unique
// within a run: a later stage never re-produces a type an earlier one owns.
type Type string

const (
	TypeBrief        Type = "brief"
	TypeProductSpec  Type = "product_spec"
	TypeUserStories  Type = "user_stories"
	TypeArchitecture Type = "architecture"
	TypeDataModel    Type = "data_model"
	TypeBuildPlan    Type = "build_plan"
)

// Artifact is one finalized output unit. It is created exactly once per
// (stage, type) when its feedback cycle reaches a terminal state, and is
// immutable afterwards.
type Artifact struct {
	Type       Type      `json:"type"`
	Content    string    `json:"content"`
	Version    int       `json:"version"` // number of feedback cycles it took
	Approved   bool      `json:"approved"`
	StageIndex int       `json:"stage_index"`
	CreatedAt  time.Time `json:"created_at"`
}

// FeedbackEntry records one rejected attempt during an artifact's own feedback
// loop. Entries are scoped to the artifact currently being produced; they are
// not retained after the loop terminates and siblings never see them.
type FeedbackEntry struct {
	Cycle    int       `json:"cycle"`
	Type     Type      `json:"type"`
	Feedback string    `json:"feedback"`
	Rejected string    `json:"rejected"`
	At       time.Time `json:"at"`
}
