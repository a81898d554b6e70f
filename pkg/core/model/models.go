package model

import (
	"strings"
	"time"
)

type RosterState string

const (
	StateNone       RosterState = ""
	StateRostered   RosterState = "Rostered"
	StateWaitlisted RosterState = "Waitlisted"
	StateRejected   RosterState = "Rejected"
)

func (s RosterState) IsValid() bool {
	return s == StateRostered || s == StateWaitlisted || s == StateRejected
}

// ParseRosterState accepts the state names case-insensitively
func ParseRosterState(s string) (RosterState, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rostered":
		return StateRostered, true
	case "waitlisted":
		return StateWaitlisted, true
	case "rejected":
		return StateRejected, true
	}
	return StateNone, false
}

type Gender string

const (
	GenderUnknown Gender = "unknown"
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
)

// ParseGender maps classifier and sheet values onto the three known genders.
// Anything unrecognised is unknown.
func ParseGender(s string) Gender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m":
		return GenderMale
	case "female", "f":
		return GenderFemale
	}
	return GenderUnknown
}

// Applicant is one candidate for a trip
type Applicant struct {
	Name  string
	Email string // Normalized, see NormalizeEmail

	// Priority is nil for eboard members, who are exempt from ranking
	Priority *int

	IsDriver      bool
	IsEboard      bool
	OffersToDrive bool // Driver answer on the commitment form

	SubmittedAt *time.Time // nil for eboard and roster-only entries
	Gender      Gender
	RosterState RosterState
}

// PriorityValue returns the applicant's priority, treating eboard (nil) as 0
func (a Applicant) PriorityValue() int {
	if a.Priority == nil {
		return 0
	}
	return *a.Priority
}

// Member is a name and email read from a membership list such as the eboard sheet
type Member struct {
	Name  string
	Email string
}

// PriorityEntry is one row of the priority ledger
type PriorityEntry struct {
	Email    string
	Name     string
	Priority int
}

// Adjustment is a signed change to one member's priority
type Adjustment struct {
	Email string `json:"email" yaml:"email"`
	Name  string `json:"name" yaml:"name"`
	Delta int    `json:"amountChange" yaml:"amountChange"`
}

// NormalizeEmail trims and lowercases an email address so it can be used as an identity key
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IntPtr is a helper for building applicants with a priority
func IntPtr(v int) *int {
	return &v
}

// IsDriverAnswer reports whether a form or sheet drive answer means yes ("y", "yes", "true", ...)
func IsDriverAnswer(answer string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	return strings.HasPrefix(a, "y") || a == "true"
}

// Layouts the commitment form and sheets have been seen to emit
var timestampLayouts = []string{
	time.RFC3339,
	"1/2/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
	"2006-01-02 15:04:05",
	"1/2/2006",
	"2006-01-02",
}

// ParseTimestamp parses a submission timestamp. Blank or unparseable values return nil,
// which sorts after every real timestamp.
func ParseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
