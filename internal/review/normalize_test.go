package review

import (
	"testing"

	"draftforge/internal/tester"
)

func TestStripFencePlainText(t *testing.T) {
	tester.Eq(t, StripFence("  hello world \n"), "hello world")
}

func TestStripFenceWholeDocument(t *testing.T) {
	tester.Eq(t, StripFence("```markdown\n# Brief\nbody\n```"), "# Brief\nbody")
	tester.Eq(t, StripFence("```\ncontent\n```"), "content")
}

func TestStripFenceUnclosedLeftAlone(t *testing.T) {
	in := "```\npartial output with no closing fence"
	tester.Eq(t, StripFence(in), in)
}

func TestStripFenceInteriorFencePreserved(t *testing.T) {
	in := "intro\n```go\ncode\n```\noutro"
	tester.Eq(t, StripFence(in), in)
}

func TestTruncateForContext(t *testing.T) {
	tester.Eq(t, TruncateForContext("short", 100), "short")
	out := TruncateForContext("abcdefghij", 4)
	tester.Eq(t, out, "abcd\n[... truncated ...]")
	tester.Eq(t, TruncateForContext("anything", 0), "anything")
}
