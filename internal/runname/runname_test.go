package runname

import (
	"testing"

	"draftforge/internal/tester"
)

func TestFromGoal(t *testing.T) {
	cases := []struct {
		goal string
		want string
	}{
		{"an app for logging birdwatching trips", "app-logging-birdwatching-trips"},
		{"Build a CRM for small bakeries!", "crm-small-bakeries"},
		{"todo", "todo"},
		{"", "run"},
		{"the a an of", "run"},
		{"one two three four five six", "one-two-three-four"},
	}
	for _, c := range cases {
		tester.Eq(t, c.want, FromGoal(c.goal))
	}
}
