package allocator

import (
	"fmt"

	"github.com/jakechorley/autoroster/pkg/core/capacity"
	"github.com/jakechorley/autoroster/pkg/core/model"
)

// Comparison lays out the trade-off between the two gender balancing policies so an operator can
// choose one
type Comparison struct {
	Tiered []model.Applicant `json:"-"`
	Global []model.Applicant `json:"-"`

	PriorityFemalePercent float64 `json:"priorityFemalePercent"`
	TieredFemalePercent   float64 `json:"tieredFemalePercent"`
	GlobalFemalePercent   float64 `json:"globalFemalePercent"`

	// PriorityLost counts people with a positive priority rostered under the tiered policy who are
	// not rostered under the global policy
	PriorityLost int `json:"priorityLost"`
}

// Message is the question put to the operator
func (c Comparison) Message() string {
	return fmt.Sprintf(
		"Balance gender across priorities: the roster will be %.1f%% female, and %d people with priority will lose their spot.\n"+
			"Balance gender within priorities: the roster will be %.1f%% female.",
		c.GlobalFemalePercent, c.PriorityLost, c.TieredFemalePercent)
}

// ComparePolicies runs the priority, tiered and global policies over the same input
func ComparePolicies(candidates, alreadyRostered []model.Applicant, cap capacity.Capacity, opts ...Option) (Comparison, error) {
	byPriority, err := Allocate(candidates, alreadyRostered, cap, PolicyPriority, opts...)
	if err != nil {
		return Comparison{}, err
	}
	tiered, err := Allocate(candidates, alreadyRostered, cap, PolicyGenderTiered, opts...)
	if err != nil {
		return Comparison{}, err
	}
	global, err := Allocate(candidates, alreadyRostered, cap, PolicyGenderGlobal, opts...)
	if err != nil {
		return Comparison{}, err
	}

	rosteredGlobal := make(map[string]bool)
	for _, a := range global {
		if a.RosterState == model.StateRostered {
			rosteredGlobal[a.Email] = true
		}
	}

	lost := 0
	for _, a := range tiered {
		if a.RosterState == model.StateRostered && a.PriorityValue() > 0 && !rosteredGlobal[a.Email] {
			lost++
		}
	}

	return Comparison{
		Tiered:                tiered,
		Global:                global,
		PriorityFemalePercent: FemalePercent(byPriority),
		TieredFemalePercent:   FemalePercent(tiered),
		GlobalFemalePercent:   FemalePercent(global),
		PriorityLost:          lost,
	}, nil
}

// FemalePercent is the female share of the Rostered entries, as a percentage
func FemalePercent(result []model.Applicant) float64 {
	rostered := make([]model.Applicant, 0, len(result))
	for _, a := range result {
		if a.RosterState == model.StateRostered {
			rostered = append(rostered, a)
		}
	}
	return FemaleShare(rostered) * 100
}
