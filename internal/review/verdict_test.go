package review

import (
	"testing"

	"draftforge/internal/tester"
)

func TestClassifyApproved(t *testing.T) {
	for _, text := range []string{
		"APPROVED",
		"APPROVED: looks great",
		"approved - ship it",
		"  APPROVED\nwith trailing commentary that must be ignored",
	} {
		v := Classify(text)
		tester.Eq(t, v.Decision, DecisionApproved, text)
		tester.True(t, v.Approved(), text)
		tester.Eq(t, v.Feedback, "", text)
	}
}

func TestClassifyNeedsRevision(t *testing.T) {
	v := Classify("NEEDS_REVISION: the data model is missing an index")
	tester.Eq(t, v.Decision, DecisionNeedsRevision)
	tester.False(t, v.Approved())
	tester.Eq(t, v.Feedback, "the data model is missing an index")

	v = Classify("NEEDS_REVISION\nSection 2 contradicts the brief.")
	tester.Eq(t, v.Decision, DecisionNeedsRevision)
	tester.Eq(t, v.Feedback, "Section 2 contradicts the brief.")
}

func TestClassifyUnparseableFailsOpenToRevision(t *testing.T) {
	v := Classify("The plan seems mostly fine but I am unsure.")
	tester.Eq(t, v.Decision, DecisionUnparseable)
	tester.False(t, v.Approved(), "unknown text must never count as acceptance")
	tester.Eq(t, v.Feedback, "The plan seems mostly fine but I am unsure.")
}

func TestClassifyEmpty(t *testing.T) {
	v := Classify("   \n ")
	tester.Eq(t, v.Decision, DecisionUnparseable)
}

func TestClassifyFencedVerdict(t *testing.T) {
	v := Classify("```\nAPPROVED\n```")
	tester.Eq(t, v.Decision, DecisionApproved)
}

func TestClassifyMarkerNotAtStart(t *testing.T) {
	v := Classify("I think this is APPROVED material")
	tester.Eq(t, v.Decision, DecisionUnparseable)
}
