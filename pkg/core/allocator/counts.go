package allocator

import (
	"github.com/jakechorley/autoroster/pkg/core/capacity"
	"github.com/jakechorley/autoroster/pkg/core/model"
)

// Counts is the number of applicants in each roster state
type Counts struct {
	Rostered   int `json:"rostered"`
	Waitlisted int `json:"waitlisted"`
	Rejected   int `json:"rejected"`
	Unassigned int `json:"unassigned"`
}

// Tally counts applicants by roster state
func Tally(applicants []model.Applicant) Counts {
	var c Counts
	for _, a := range applicants {
		switch a.RosterState {
		case model.StateRostered:
			c.Rostered++
		case model.StateWaitlisted:
			c.Waitlisted++
		case model.StateRejected:
			c.Rejected++
		default:
			c.Unassigned++
		}
	}
	return c
}

func (c Counts) Total() int {
	return c.Rostered + c.Waitlisted + c.Rejected + c.Unassigned
}

// Overage is how far a set of new placements goes past the planned capacity
type Overage struct {
	Roster   int `json:"roster"`
	Waitlist int `json:"waitlist"`
}

// Exceeds compares new placements against the remaining roster slots and waitlist size.
// Handpicked rosters are allowed to exceed capacity; this is reported for reference only.
func (c Counts) Exceeds(cap capacity.Capacity) (Overage, bool) {
	o := Overage{
		Roster:   max(c.Rostered-cap.RemainingRosterSlots, 0),
		Waitlist: max(c.Waitlisted-cap.WaitlistSize, 0),
	}
	return o, o.Roster > 0 || o.Waitlist > 0
}
