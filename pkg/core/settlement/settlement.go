package settlement

import (
	"fmt"
	"sort"

	"github.com/jakechorley/autoroster/pkg/core/capacity"
	"github.com/jakechorley/autoroster/pkg/core/model"
)

// Line is the settled outcome for one person after a trip
type Line struct {
	Name     string            `json:"name"`
	Email    string            `json:"email"`
	State    model.RosterState `json:"state"`
	IsEboard bool              `json:"isEboard"`
	Delta    int               `json:"delta"`
}

// Plan is the proposed set of priority changes for a finished trip
type Plan struct {
	Capacity int    `json:"capacity"`
	Lines    []Line `json:"lines"`
}

// Compute proposes priority changes from the final roster and the commitment form responses.
//
// The first drivers × seatsPerDriver roster rows went on the trip and lose a point. Later roster
// rows were waitlisted and gain a point, as do submitters who never made the roster. Eboard
// members are never adjusted. Lines are ordered rostered, waitlisted, rejected.
func Compute(roster, submitters []model.Applicant, seatsPerDriver int) (Plan, error) {
	drivers := 0
	for _, r := range roster {
		if r.IsDriver {
			drivers++
		}
	}

	c, err := capacity.Compute(capacity.Input{DriverCount: drivers, SeatsPerDriver: seatsPerDriver})
	if err != nil {
		return Plan{}, fmt.Errorf("failed to size trip: %w", err)
	}

	plan := Plan{Capacity: c.TotalRosterCapacity}
	onRoster := make(map[string]bool, len(roster))

	for i, r := range roster {
		email := model.NormalizeEmail(r.Email)
		if email == "" || onRoster[email] {
			continue
		}
		onRoster[email] = true

		line := Line{Name: r.Name, Email: email, IsEboard: r.IsEboard}
		if i < c.TotalRosterCapacity {
			line.State = model.StateRostered
			line.Delta = -1
		} else {
			line.State = model.StateWaitlisted
			line.Delta = 1
		}
		if r.IsEboard {
			line.Delta = 0
		}
		plan.Lines = append(plan.Lines, line)
	}

	seen := make(map[string]bool, len(submitters))
	for _, s := range submitters {
		email := model.NormalizeEmail(s.Email)
		if email == "" || onRoster[email] || seen[email] {
			continue
		}
		seen[email] = true

		line := Line{Name: s.Name, Email: email, IsEboard: s.IsEboard, State: model.StateRejected, Delta: 1}
		if s.IsEboard {
			line.Delta = 0
		}
		plan.Lines = append(plan.Lines, line)
	}

	order := map[model.RosterState]int{model.StateRostered: 0, model.StateWaitlisted: 1, model.StateRejected: 2}
	sort.SliceStable(plan.Lines, func(i, j int) bool {
		return order[plan.Lines[i].State] < order[plan.Lines[j].State]
	})

	return plan, nil
}

// Override replaces the proposed delta for email. It reports false if email is not in the plan.
func (p *Plan) Override(email string, delta int) bool {
	email = model.NormalizeEmail(email)
	for i := range p.Lines {
		if p.Lines[i].Email == email {
			p.Lines[i].Delta = delta
			return true
		}
	}
	return false
}

// Adjustments returns the non-zero changes, ready for a ledger batch
func (p Plan) Adjustments() []model.Adjustment {
	adjustments := make([]model.Adjustment, 0, len(p.Lines))
	for _, l := range p.Lines {
		if l.Delta == 0 {
			continue
		}
		adjustments = append(adjustments, model.Adjustment{Email: l.Email, Name: l.Name, Delta: l.Delta})
	}
	return adjustments
}
