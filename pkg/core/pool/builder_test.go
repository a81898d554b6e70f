package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/autoroster/pkg/core/ledger"
	"github.com/jakechorley/autoroster/pkg/core/model"
)

func at(minute int) *time.Time {
	t := time.Date(2024, 9, 1, 12, minute, 0, 0, time.UTC)
	return &t
}

func TestBuild_AdmitsValidSubmissions(t *testing.T) {
	submissions := []Submission{
		{Name: "Alice", Email: " Alice@Binghamton.edu ", DriverAnswer: "No", SubmittedAt: at(1)},
		{Name: "Bob", Email: "bob@binghamton.edu", DriverAnswer: "Yes", SubmittedAt: at(2)},
	}
	opts := Options{
		EmailDomain: "binghamton.edu",
		Priorities:  ledger.Snapshot{"alice@binghamton.edu": 3},
	}

	p := Build(nil, submissions, opts)

	require.Len(t, p.Candidates, 2)
	assert.Empty(t, p.Exclusions)

	alice := p.Candidates[0]
	assert.Equal(t, "alice@binghamton.edu", alice.Email)
	require.NotNil(t, alice.Priority)
	assert.Equal(t, 3, *alice.Priority)
	assert.False(t, alice.OffersToDrive)
	assert.Equal(t, model.StateNone, alice.RosterState)
	assert.Equal(t, model.GenderUnknown, alice.Gender)

	bob := p.Candidates[1]
	require.NotNil(t, bob.Priority)
	assert.Equal(t, 0, *bob.Priority)
	assert.True(t, bob.OffersToDrive)
	assert.False(t, bob.IsDriver, "commitment candidates are never drivers")
}

func TestBuild_FilterOrder(t *testing.T) {
	rostered := []model.Applicant{{Name: "Driver", Email: "driver@binghamton.edu", IsDriver: true}}

	tests := []struct {
		name     string
		sub      Submission
		expected Reason
	}{
		{"missing name wins over everything", Submission{Name: " ", Email: "", DriverAnswer: ""}, ReasonMissingName},
		{"missing email", Submission{Name: "X", Email: "  ", DriverAnswer: "Yes"}, ReasonMissingEmail},
		{"wrong domain", Submission{Name: "X", Email: "x@gmail.com", DriverAnswer: ""}, ReasonWrongDomain},
		{"missing driver answer", Submission{Name: "X", Email: "x@binghamton.edu", DriverAnswer: " "}, ReasonMissingDriverAnswer},
		{"already rostered", Submission{Name: "Driver", Email: "DRIVER@binghamton.edu", DriverAnswer: "No"}, ReasonAlreadyRostered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Build(rostered, []Submission{tt.sub}, Options{EmailDomain: "@binghamton.edu"})

			assert.Empty(t, p.Candidates)
			require.Len(t, p.Exclusions, 1)
			assert.Equal(t, tt.expected, p.Exclusions[0].Reason)
		})
	}
}

func TestBuild_DuplicateKeepsEarliest(t *testing.T) {
	submissions := []Submission{
		{Name: "Late", Email: "a@x.edu", DriverAnswer: "No", SubmittedAt: at(30)},
		{Name: "Other", Email: "b@x.edu", DriverAnswer: "No", SubmittedAt: at(10)},
		{Name: "Early", Email: "A@x.edu", DriverAnswer: "No", SubmittedAt: at(5)},
		{Name: "NoTime", Email: "a@x.edu", DriverAnswer: "No"},
	}

	p := Build(nil, submissions, Options{})

	require.Len(t, p.Candidates, 2)
	assert.Equal(t, "Early", p.Candidates[0].Name)
	assert.Equal(t, "b@x.edu", p.Candidates[1].Email)

	require.Len(t, p.Exclusions, 2)
	assert.Equal(t, "Late", p.Exclusions[0].Name)
	assert.Equal(t, "NoTime", p.Exclusions[1].Name)
	assert.Equal(t, 2, p.ExclusionsByReason()[ReasonDuplicate])
}

func TestBuild_EboardHasNoPriority(t *testing.T) {
	submissions := []Submission{{Name: "Pres", Email: "pres@x.edu", DriverAnswer: "No", SubmittedAt: at(1)}}
	opts := Options{
		Priorities: ledger.Snapshot{"pres@x.edu": 7},
		Eboard:     []string{"PRES@x.edu"},
	}

	p := Build(nil, submissions, opts)

	require.Len(t, p.Candidates, 1)
	assert.True(t, p.Candidates[0].IsEboard)
	assert.Nil(t, p.Candidates[0].Priority)
}

func TestBuild_RosterEntries(t *testing.T) {
	rostered := []model.Applicant{
		{Name: "D1", Email: "D1@x.edu", IsDriver: true},
		{Name: "Blank", Email: ""},
		{Name: "D1 again", Email: "d1@x.edu"},
		{Name: "E1", Email: "e1@x.edu"},
	}

	p := Build(rostered, nil, Options{Eboard: []string{"e1@x.edu"}, Priorities: ledger.Snapshot{"d1@x.edu": 2}})

	require.Len(t, p.Rostered, 2)
	assert.Equal(t, "d1@x.edu", p.Rostered[0].Email)
	assert.Equal(t, model.StateRostered, p.Rostered[0].RosterState)
	assert.True(t, p.Rostered[0].IsDriver)
	assert.Equal(t, 2, p.Rostered[0].PriorityValue())
	assert.True(t, p.Rostered[1].IsEboard)

	counts := p.ExclusionsByReason()
	assert.Equal(t, 1, counts[ReasonMissingEmail])
	assert.Equal(t, 1, counts[ReasonDuplicateRoster])
}

func TestBuild_DoesNotMutateInputs(t *testing.T) {
	rostered := []model.Applicant{{Name: "D", Email: " D@x.edu "}}

	Build(rostered, nil, Options{})

	assert.Equal(t, " D@x.edu ", rostered[0].Email)
	assert.Equal(t, model.StateNone, rostered[0].RosterState)
}

func TestBuild_OneApplicantPerEmail(t *testing.T) {
	rostered := []model.Applicant{{Name: "A", Email: "a@x.edu"}}
	submissions := []Submission{
		{Name: "A", Email: "a@x.edu", DriverAnswer: "No"},
		{Name: "B", Email: "b@x.edu", DriverAnswer: "No"},
		{Name: "B", Email: "b@x.edu", DriverAnswer: "No"},
	}

	p := Build(rostered, submissions, Options{})

	seen := map[string]int{}
	for _, a := range append(append([]model.Applicant{}, p.Rostered...), p.Candidates...) {
		seen[a.Email]++
	}
	for email, n := range seen {
		assert.Equal(t, 1, n, email)
	}
}
