package completion

import (
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"

	"github.com/jacksonhunter/PowerAuger-sub000/internal/shellparse"
	"github.com/jacksonhunter/PowerAuger-sub000/pkg/pool"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

// fakeSlot resolves every command except the ones listed in unresolvable,
// and serves canned candidates for Complete.
type fakeSlot struct {
	unresolvable map[string]bool
	candidates   []pool.Candidate
	completeErr  error
	completions  int
	resets       int
}

func (s *fakeSlot) Complete(string, int) ([]pool.Candidate, error) {
	s.completions++
	return s.candidates, s.completeErr
}

func (s *fakeSlot) ResolveCommand(name string) bool {
	return !s.unresolvable[name]
}

func (s *fakeSlot) Parse(line string) (*shellparse.Statement, error) {
	return shellparse.Parse(line)
}

func (s *fakeSlot) Reset() { s.resets++ }

func texts(candidates []pool.Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Text
	}
	return out
}

func TestValidateCandidates(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		accepted bool
	}{
		{"plain command", "Get-ChildItem", true},
		{"command with args", "git status --short", true},
		{"pipeline", "Get-Process | sort", true},
		{"assignment with sigil", "$x = Get-Item", false},
		{"plain assignment", "count=3", false},
		{"conditional", "if ($true) { Get-Item }", false},
		{"loop", "foreach ($f in $files) { rm $f }", false},
		{"while loop", "while true; do sleep 1; done", false},
		{"unterminated quote", `echo "oops`, false},
		{"empty", "   ", false},
	}

	slot := &fakeSlot{unresolvable: map[string]bool{}}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kept := ValidateCandidates(slot, []pool.Candidate{{Text: tc.text}})
			if tc.accepted {
				assert.Len(t, kept, 1)
			} else {
				assert.Empty(t, kept)
			}
		})
	}
}

func TestValidateRejectsUnresolvablePipelineStage(t *testing.T) {
	slot := &fakeSlot{unresolvable: map[string]bool{"frobnicate": true}}

	kept := ValidateCandidates(slot, []pool.Candidate{
		{Text: "ls | frobnicate"},
		{Text: "ls | grep foo"},
	})
	assert.Equal(t, []string{"ls | grep foo"}, texts(kept))
}

func TestValidateKeepsMetadata(t *testing.T) {
	slot := &fakeSlot{unresolvable: map[string]bool{}}

	kept := ValidateCandidates(slot, []pool.Candidate{
		{Text: "git status", Tooltip: "show working tree status", Kind: "command"},
	})
	assert.Len(t, kept, 1)
	assert.Equal(t, "show working tree status", kept[0].Tooltip)
	assert.Equal(t, "command", kept[0].Kind)
}
