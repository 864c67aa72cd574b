package completion

import (
	"github.com/charmbracelet/log"

	"github.com/jacksonhunter/PowerAuger-sub000/internal/shellparse"
	"github.com/jacksonhunter/PowerAuger-sub000/pkg/pool"
)

// ValidateCandidates filters syntactic candidates down to ones worth
// suggesting as command completions. Rejections are silent drops, not
// errors: a candidate that fails to parse, has no top-level statement, or
// whose top-level statement is an assignment, conditional or loop is not a
// useful completion of a command prefix. Command and pipeline candidates
// additionally need every stage's command name to resolve through the
// slot. Survivors keep their metadata.
func ValidateCandidates(slot pool.Slot, candidates []pool.Candidate) []pool.Candidate {
	var kept []pool.Candidate
	for _, c := range candidates {
		if validateCandidate(slot, c) {
			kept = append(kept, c)
		}
	}
	return kept
}

func validateCandidate(slot pool.Slot, c pool.Candidate) bool {
	stmt, err := slot.Parse(c.Text)
	if err != nil {
		log.Debugf("candidate %q rejected: %v", c.Text, err)
		return false
	}
	switch stmt.Kind {
	case shellparse.KindCommand, shellparse.KindPipeline:
	default:
		log.Debugf("candidate %q rejected: %s statement", c.Text, stmt.Kind)
		return false
	}
	for _, stage := range stmt.Stages {
		if !slot.ResolveCommand(stage.Name) {
			log.Debugf("candidate %q rejected: %q does not resolve", c.Text, stage.Name)
			return false
		}
	}
	return true
}
