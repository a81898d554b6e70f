package pool

import (
	"strings"
	"time"

	"github.com/jakechorley/autoroster/pkg/core/ledger"
	"github.com/jakechorley/autoroster/pkg/core/model"
)

// Reason explains why a row was left out of the pool
type Reason string

const (
	ReasonMissingName         Reason = "missing name"
	ReasonMissingEmail        Reason = "missing email"
	ReasonWrongDomain         Reason = "email outside allowed domain"
	ReasonMissingDriverAnswer Reason = "missing driver answer"
	ReasonAlreadyRostered     Reason = "already on roster"
	ReasonDuplicate           Reason = "duplicate submission"
	ReasonDuplicateRoster     Reason = "duplicate roster row"
)

// Submission is one raw commitment form response
type Submission struct {
	Name         string
	Email        string
	DriverAnswer string
	SubmittedAt  *time.Time
}

// Exclusion records a row dropped while building the pool. Exclusions are not errors.
type Exclusion struct {
	Email       string
	Name        string
	Reason      Reason
	SubmittedAt *time.Time
}

// Options controls admission and priority lookup
type Options struct {
	// EmailDomain restricts candidates to one email domain, e.g. "binghamton.edu". Empty allows any.
	EmailDomain string

	// Priorities is a ledger snapshot read before allocation. Missing emails get 0.
	Priorities ledger.Snapshot

	// Eboard lists the emails of eboard members. They are exempt from ranking.
	Eboard []string
}

// Pool is the set of applicants for one allocation run. Each email appears at most once across
// Rostered and Candidates.
type Pool struct {
	Rostered   []model.Applicant
	Candidates []model.Applicant
	Exclusions []Exclusion
}

// Build merges the current roster with the commitment submissions.
//
// Roster entries keep their order and are marked Rostered. Submissions are admitted in order
// after the checks below; the first failing check decides the exclusion reason:
//  1. name present
//  2. email present
//  3. email in the allowed domain
//  4. driver answer present
//  5. email not already on the roster
//  6. email not already submitted (the earliest submission is kept)
func Build(rostered []model.Applicant, submissions []Submission, opts Options) *Pool {
	eboard := make(map[string]bool, len(opts.Eboard))
	for _, email := range opts.Eboard {
		if e := model.NormalizeEmail(email); e != "" {
			eboard[e] = true
		}
	}

	p := &Pool{
		Rostered:   make([]model.Applicant, 0, len(rostered)),
		Candidates: make([]model.Applicant, 0, len(submissions)),
		Exclusions: []Exclusion{},
	}

	onRoster := make(map[string]bool, len(rostered))
	for _, r := range rostered {
		a := r
		a.Email = model.NormalizeEmail(a.Email)
		if a.Email == "" {
			p.exclude(a.Email, a.Name, ReasonMissingEmail, a.SubmittedAt)
			continue
		}
		if onRoster[a.Email] {
			p.exclude(a.Email, a.Name, ReasonDuplicateRoster, a.SubmittedAt)
			continue
		}
		onRoster[a.Email] = true

		applyPriority(&a, opts.Priorities, eboard)
		if a.Gender == "" {
			a.Gender = model.GenderUnknown
		}
		a.RosterState = model.StateRostered
		p.Rostered = append(p.Rostered, a)
	}

	domain := normalizeDomain(opts.EmailDomain)
	candidateIndex := make(map[string]int)

	for _, s := range submissions {
		name := strings.TrimSpace(s.Name)
		email := model.NormalizeEmail(s.Email)

		switch {
		case name == "":
			p.exclude(email, name, ReasonMissingName, s.SubmittedAt)
			continue
		case email == "":
			p.exclude(email, name, ReasonMissingEmail, s.SubmittedAt)
			continue
		case domain != "" && !strings.HasSuffix(email, domain):
			p.exclude(email, name, ReasonWrongDomain, s.SubmittedAt)
			continue
		case strings.TrimSpace(s.DriverAnswer) == "":
			p.exclude(email, name, ReasonMissingDriverAnswer, s.SubmittedAt)
			continue
		case onRoster[email]:
			p.exclude(email, name, ReasonAlreadyRostered, s.SubmittedAt)
			continue
		}

		a := model.Applicant{
			Name:          name,
			Email:         email,
			OffersToDrive: model.IsDriverAnswer(s.DriverAnswer),
			SubmittedAt:   s.SubmittedAt,
			Gender:        model.GenderUnknown,
			RosterState:   model.StateNone,
		}
		applyPriority(&a, opts.Priorities, eboard)

		if idx, seen := candidateIndex[email]; seen {
			existing := p.Candidates[idx]
			if submittedBefore(a.SubmittedAt, existing.SubmittedAt) {
				// Keep the earlier submission in the slot of the first one seen
				p.Candidates[idx] = a
				p.exclude(existing.Email, existing.Name, ReasonDuplicate, existing.SubmittedAt)
			} else {
				p.exclude(email, name, ReasonDuplicate, s.SubmittedAt)
			}
			continue
		}

		candidateIndex[email] = len(p.Candidates)
		p.Candidates = append(p.Candidates, a)
	}

	return p
}

// ExclusionsByReason groups exclusion counts for reporting
func (p *Pool) ExclusionsByReason() map[Reason]int {
	counts := make(map[Reason]int)
	for _, e := range p.Exclusions {
		counts[e.Reason]++
	}
	return counts
}

func (p *Pool) exclude(email, name string, reason Reason, at *time.Time) {
	p.Exclusions = append(p.Exclusions, Exclusion{
		Email:       email,
		Name:        name,
		Reason:      reason,
		SubmittedAt: at,
	})
}

func applyPriority(a *model.Applicant, priorities ledger.Snapshot, eboard map[string]bool) {
	if eboard[a.Email] {
		a.IsEboard = true
		a.Priority = nil
		return
	}
	a.IsEboard = false
	a.Priority = model.IntPtr(priorities.Priority(a.Email))
}

func normalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	if d == "" {
		return ""
	}
	return "@" + strings.TrimPrefix(d, "@")
}

// submittedBefore orders nil timestamps after all real ones
func submittedBefore(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.Before(*b)
}
