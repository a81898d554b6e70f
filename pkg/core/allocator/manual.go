package allocator

import (
	"errors"
	"fmt"

	"github.com/jakechorley/autoroster/pkg/core/model"
)

var (
	ErrUnknownCandidate = errors.New("decision for unknown candidate")
	ErrInvalidState     = errors.New("invalid roster state")
)

// Decision is an operator's handpicked state for one candidate
type Decision struct {
	Email string            `json:"email" yaml:"email"`
	State model.RosterState `json:"state" yaml:"state"`
}

// AssignManually applies operator decisions to candidates. Candidates without a decision are
// Rejected. Capacity is not enforced; see Counts.Exceeds. A later decision for the same email
// replaces an earlier one. The input slice is not modified.
func AssignManually(candidates []model.Applicant, decisions []Decision) ([]model.Applicant, error) {
	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[model.NormalizeEmail(c.Email)] = true
	}

	states := make(map[string]model.RosterState, len(decisions))
	for _, d := range decisions {
		email := model.NormalizeEmail(d.Email)
		if !known[email] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCandidate, d.Email)
		}
		if !d.State.IsValid() {
			return nil, fmt.Errorf("%w %q for %s", ErrInvalidState, d.State, email)
		}
		states[email] = d.State
	}

	result := copyApplicants(candidates)
	for i := range result {
		state, ok := states[model.NormalizeEmail(result[i].Email)]
		if !ok {
			state = model.StateRejected
		}
		result[i].RosterState = state
	}
	return result, nil
}
