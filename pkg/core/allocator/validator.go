package allocator

import (
	"fmt"

	"github.com/jakechorley/autoroster/pkg/core/capacity"
	"github.com/jakechorley/autoroster/pkg/core/model"
)

// Violation describes an allocation result that breaks a partition rule
type Violation struct {
	Rule        string
	Description string
}

// ValidateAllocation checks an Allocate result against the capacity it was run with.
// Returns an empty slice when the result is consistent.
func ValidateAllocation(result []model.Applicant, alreadyRostered int, cap capacity.Capacity) []Violation {
	var violations []Violation

	if alreadyRostered > len(result) {
		return []Violation{{
			Rule:        "Prefix",
			Description: fmt.Sprintf("result has %d entries but %d were already rostered", len(result), alreadyRostered),
		}}
	}

	seen := make(map[string]bool, len(result))
	for _, a := range result {
		if seen[a.Email] {
			violations = append(violations, Violation{
				Rule:        "UniqueEmail",
				Description: fmt.Sprintf("%s appears more than once", a.Email),
			})
		}
		seen[a.Email] = true
	}

	candidates := Candidates(result, alreadyRostered)
	counts := Tally(candidates)

	if counts.Unassigned > 0 {
		violations = append(violations, Violation{
			Rule:        "Assigned",
			Description: fmt.Sprintf("%d candidates have no roster state", counts.Unassigned),
		})
	}
	if counts.Total() != len(candidates) {
		violations = append(violations, Violation{
			Rule:        "Partition",
			Description: fmt.Sprintf("counted %d states for %d candidates", counts.Total(), len(candidates)),
		})
	}
	if counts.Rostered > cap.RemainingRosterSlots {
		violations = append(violations, Violation{
			Rule:        "RosterCapacity",
			Description: fmt.Sprintf("%d rostered but only %d slots remain", counts.Rostered, cap.RemainingRosterSlots),
		})
	}
	if counts.Rostered+counts.Waitlisted > cap.MaxPlaced() {
		violations = append(violations, Violation{
			Rule:        "PlacementCapacity",
			Description: fmt.Sprintf("%d placed but only %d places exist", counts.Rostered+counts.Waitlisted, cap.MaxPlaced()),
		})
	}

	return violations
}
