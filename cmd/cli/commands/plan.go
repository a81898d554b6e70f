package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jakechorley/autoroster/pkg/core/allocator"
	"github.com/jakechorley/autoroster/pkg/core/model"
	"github.com/jakechorley/autoroster/pkg/core/services"
)

// tripPlan is the YAML file read by buildRoster. It answers every question the trip would
// otherwise ask: who on the eboard is going, which volunteers drive, and how to decide the rest.
//
//	rosterSheetID: 1AbC...
//	commitmentSheetID: 1XyZ...
//	waitlistSize: 4
//	eboard:
//	  - email: grace@club.edu
//	    status: driver
//	drivers:
//	  - email: ada@club.edu
//	    drives: true
//	policy: gender-tiered
type tripPlan struct {
	RosterSheetID     string `yaml:"rosterSheetID" validate:"required"`
	CommitmentSheetID string `yaml:"commitmentSheetID" validate:"required"`
	WaitlistSize      *int   `yaml:"waitlistSize" validate:"omitempty,min=0"`
	RosterLimit       int    `yaml:"rosterLimit" validate:"min=0"`

	// SkipSetup starts at the decision, for a sheet whose eboard and drivers were entered by hand
	SkipSetup bool `yaml:"skipSetup"`

	Eboard  []eboardAnswer             `yaml:"eboard" validate:"dive"`
	Drivers []services.DriverSelection `yaml:"drivers"`

	Policy    string               `yaml:"policy,omitempty"`
	Decisions []allocator.Decision `yaml:"decisions,omitempty"`
}

type eboardAnswer struct {
	Email  string `yaml:"email" validate:"required,email"`
	Name   string `yaml:"name,omitempty"`
	Status string `yaml:"status" validate:"required"`
}

var planValidate = validator.New()

var errPolicyAndDecisions = errors.New("trip plan sets both policy and decisions")

func loadTripPlan(path string) (*tripPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trip plan: %w", err)
	}
	return parseTripPlan(data)
}

func parseTripPlan(data []byte) (*tripPlan, error) {
	var plan tripPlan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse trip plan: %w", err)
	}

	if err := planValidate.Struct(&plan); err != nil {
		return nil, fmt.Errorf("trip plan validation failed: %w", err)
	}
	if plan.Policy != "" && len(plan.Decisions) > 0 {
		return nil, errPolicyAndDecisions
	}
	if plan.Policy != "" {
		if _, err := allocator.ParsePolicy(plan.Policy); err != nil {
			return nil, err
		}
	}
	for _, e := range plan.Eboard {
		if _, err := services.ParseEboardStatus(e.Status); err != nil {
			return nil, err
		}
	}
	for i, d := range plan.Decisions {
		state, ok := model.ParseRosterState(string(d.State))
		if !ok {
			return nil, fmt.Errorf("%w: %q for %s", allocator.ErrInvalidState, d.State, d.Email)
		}
		plan.Decisions[i].State = state
	}

	return &plan, nil
}

// eboardSelections pairs every eboard member with the plan's answer. Members the plan does not
// mention are not going.
func (p *tripPlan) eboardSelections(members []model.Member) ([]services.EboardSelection, []string) {
	answers := make(map[string]eboardAnswer, len(p.Eboard))
	for _, e := range p.Eboard {
		answers[model.NormalizeEmail(e.Email)] = e
	}

	selections := make([]services.EboardSelection, 0, len(members))
	var unanswered []string
	for _, m := range members {
		email := model.NormalizeEmail(m.Email)
		answer, ok := answers[email]
		if !ok {
			unanswered = append(unanswered, email)
			selections = append(selections, services.EboardSelection{Name: m.Name, Email: email, Status: services.EboardNotGoing})
			continue
		}
		delete(answers, email)

		// Validated in parseTripPlan
		status, _ := services.ParseEboardStatus(answer.Status)
		name := answer.Name
		if name == "" {
			name = m.Name
		}
		selections = append(selections, services.EboardSelection{Name: name, Email: email, Status: status})
	}

	// Answers for people missing from the eboard sheet are still honoured, in plan order
	for _, e := range p.Eboard {
		email := model.NormalizeEmail(e.Email)
		answer, ok := answers[email]
		if !ok {
			continue
		}
		delete(answers, email)
		status, _ := services.ParseEboardStatus(answer.Status)
		selections = append(selections, services.EboardSelection{Name: answer.Name, Email: email, Status: status})
	}

	return selections, unanswered
}
