package allocator

import (
	"fmt"

	"github.com/jakechorley/autoroster/pkg/core/capacity"
	"github.com/jakechorley/autoroster/pkg/core/model"
)

type settings struct {
	femaleThreshold float64
}

// Option configures an allocation run
type Option func(*settings)

// WithFemaleThreshold overrides DefaultFemaleThreshold for the gender balancing policies.
// The threshold is a share between 0 and 1.
func WithFemaleThreshold(threshold float64) Option {
	return func(s *settings) { s.femaleThreshold = threshold }
}

func newSettings(opts []Option) (settings, error) {
	s := settings{femaleThreshold: DefaultFemaleThreshold}
	for _, opt := range opts {
		opt(&s)
	}
	if s.femaleThreshold < 0 || s.femaleThreshold > 1 {
		return settings{}, fmt.Errorf("female threshold must be between 0 and 1, got %v", s.femaleThreshold)
	}
	return s, nil
}

// Allocate orders candidates under policy and assigns each a roster state.
//
// The result is alreadyRostered (unchanged, in order) followed by the candidates in policy order.
// Candidate i in that order is Rostered if i < RemainingRosterSlots, Waitlisted if it falls within
// the next WaitlistSize places and Rejected otherwise. The input slices are not modified.
func Allocate(candidates, alreadyRostered []model.Applicant, cap capacity.Capacity, policy Policy, opts ...Option) ([]model.Applicant, error) {
	if !policy.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPolicy, policy)
	}
	s, err := newSettings(opts)
	if err != nil {
		return nil, err
	}

	ordered := orderCandidates(policy, copyApplicants(candidates), alreadyRostered, s.femaleThreshold)
	partition(ordered, cap.RemainingRosterSlots, cap.WaitlistSize)

	result := make([]model.Applicant, 0, len(alreadyRostered)+len(ordered))
	result = append(result, alreadyRostered...)
	result = append(result, ordered...)
	return result, nil
}

// partition assigns roster states by position
func partition(ordered []model.Applicant, remaining, waitlist int) {
	for i := range ordered {
		switch {
		case i < remaining:
			ordered[i].RosterState = model.StateRostered
		case i < remaining+waitlist:
			ordered[i].RosterState = model.StateWaitlisted
		default:
			ordered[i].RosterState = model.StateRejected
		}
	}
}

// Candidates returns the entries of an allocation result that were not already rostered
func Candidates(result []model.Applicant, alreadyRostered int) []model.Applicant {
	if alreadyRostered >= len(result) {
		return nil
	}
	return result[alreadyRostered:]
}

func copyApplicants(in []model.Applicant) []model.Applicant {
	out := make([]model.Applicant, len(in))
	copy(out, in)
	return out
}
