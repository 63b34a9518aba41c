// Package review classifies reviewer output and normalizes generated content.
package review

import "strings"

// Decision is the three-way outcome of classifying reviewer text.
type Decision int

const (
	// DecisionApproved accepts the candidate as-is.
	DecisionApproved Decision = iota
	// DecisionNeedsRevision rejects the candidate with feedback.
	DecisionNeedsRevision
	// DecisionUnparseable means the reviewer followed neither marker. Callers
	// must treat it as a required revision, never as silent acceptance.
	DecisionUnparseable
)

// ApprovedMarker and RevisionMarker are the prefixes the reviewer instruction
// asks the model to lead with.
const (
	ApprovedMarker = "APPROVED"
	RevisionMarker = "NEEDS_REVISION"
)

// Verdict is the classified reviewer output. Feedback is empty for approvals.
type Verdict struct {
	Decision Decision
	Feedback string
}

// Approved reports whether the candidate was accepted.
func (v Verdict) Approved() bool { return v.Decision == DecisionApproved }

// Classify maps raw reviewer text to a Verdict:
//   - text starting with the approved marker → approved, trailing content ignored
//   - text starting with the revision marker → revision, feedback = trailing text
//   - anything else → unparseable, feedback = full text
func Classify(text string) Verdict {
	trimmed := strings.TrimSpace(StripFence(text))

	if _, ok := cutMarker(trimmed, ApprovedMarker); ok {
		return Verdict{Decision: DecisionApproved}
	}
	if rest, ok := cutMarker(trimmed, RevisionMarker); ok {
		return Verdict{Decision: DecisionNeedsRevision, Feedback: rest}
	}
	return Verdict{Decision: DecisionUnparseable, Feedback: trimmed}
}

// cutMarker matches marker as a case-insensitive prefix and returns the
// remaining text with separator punctuation removed.
func cutMarker(text, marker string) (string, bool) {
	if len(text) < len(marker) {
		return "", false
	}
	if !strings.EqualFold(text[:len(marker)], marker) {
		return "", false
	}
	rest := text[len(marker):]
	rest = strings.TrimLeft(rest, ":.- \t\r\n")
	return strings.TrimSpace(rest), true
}
