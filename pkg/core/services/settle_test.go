package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/autoroster/pkg/core/model"
	"github.com/jakechorley/autoroster/pkg/core/pool"
)

// mockRosterReader implements RosterReader
type mockRosterReader struct {
	applicants []model.Applicant
	err        error
}

func (m *mockRosterReader) Read(ctx context.Context) ([]model.Applicant, error) {
	if m.err != nil {
		return nil, m.err
	}
	return append([]model.Applicant{}, m.applicants...), nil
}

type settleFixture struct {
	roster      *mockRosterReader
	commitments *mockCommitments
	eboard      *mockEboard
	adjuster    *mockAdjuster
}

func newSettleFixture() *settleFixture {
	return &settleFixture{
		roster: &mockRosterReader{applicants: []model.Applicant{
			{Name: "Grace", Email: "grace@x.edu", IsDriver: true},
			{Name: "Ada", Email: "ada@x.edu", IsDriver: true},
			{Name: "Barbara", Email: "barbara@x.edu"},
			{Name: "Charles", Email: "charles@x.edu"},
			{Name: "Alan", Email: "alan@x.edu"},
		}},
		commitments: &mockCommitments{submissions: []pool.Submission{
			{Name: "Ada", Email: "ada@x.edu", DriverAnswer: "Yes", SubmittedAt: at(1)},
			{Name: "Alan", Email: "alan@x.edu", DriverAnswer: "No", SubmittedAt: at(2)},
			{Name: "Dennis", Email: "dennis@x.edu", DriverAnswer: "No", SubmittedAt: at(3)},
			{Name: "Outsider", Email: "out@gmail.com", DriverAnswer: "No", SubmittedAt: at(4)},
			{Name: "Ida", Email: "ida@x.edu", DriverAnswer: "No", SubmittedAt: at(5)},
		}},
		eboard: &mockEboard{members: []model.Member{
			{Name: "Grace", Email: "grace@x.edu"},
			{Name: "Ida", Email: "ida@x.edu"},
		}},
		adjuster: &mockAdjuster{},
	}
}

func (f *settleFixture) settle(opts SettleOptions) (*SettleResult, error) {
	return SettlePriorities(context.Background(), f.roster, f.commitments, f.eboard, f.adjuster, opts, zap.NewNop())
}

func TestSettlePriorities(t *testing.T) {
	f := newSettleFixture()

	// Two drivers seat four: Grace, Ada, Barbara and Charles went; Alan was waitlisted
	result, err := f.settle(SettleOptions{EmailDomain: "x.edu", SeatsPerDriver: 2})
	require.NoError(t, err)

	assert.Equal(t, 4, result.Plan.Capacity)
	assert.Equal(t, []model.Adjustment{
		{Email: "ada@x.edu", Name: "Ada", Delta: -1},
		{Email: "barbara@x.edu", Name: "Barbara", Delta: -1},
		{Email: "charles@x.edu", Name: "Charles", Delta: -1},
		{Email: "alan@x.edu", Name: "Alan", Delta: 1},
		{Email: "dennis@x.edu", Name: "Dennis", Delta: 1},
	}, f.adjuster.adjustments, "eboard members and outside emails are not adjusted")

	require.NotNil(t, result.Summary)
	assert.Equal(t, 5, result.Summary.Processed)
}

func TestSettlePriorities_DryRun(t *testing.T) {
	f := newSettleFixture()

	result, err := f.settle(SettleOptions{EmailDomain: "x.edu", SeatsPerDriver: 2, DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 0, f.adjuster.calls)
	assert.Nil(t, result.Summary)
	assert.Len(t, result.Plan.Adjustments(), 5)
}

func TestSettlePriorities_Overrides(t *testing.T) {
	f := newSettleFixture()

	_, err := f.settle(SettleOptions{
		EmailDomain:    "x.edu",
		SeatsPerDriver: 2,
		Overrides:      map[string]int{"DENNIS@x.edu": 0, "alan@x.edu": 3, "nobody@x.edu": 1},
	})
	require.NoError(t, err)

	byEmail := make(map[string]int)
	for _, a := range f.adjuster.adjustments {
		byEmail[a.Email] = a.Delta
	}
	assert.NotContains(t, byEmail, "dennis@x.edu")
	assert.NotContains(t, byEmail, "nobody@x.edu")
	assert.Equal(t, 3, byEmail["alan@x.edu"])
}

func TestSettlePriorities_Errors(t *testing.T) {
	f := newSettleFixture()
	f.adjuster.err = errors.New("timed out")

	result, err := f.settle(SettleOptions{SeatsPerDriver: 2})
	assert.ErrorContains(t, err, "failed to apply priority adjustments")
	require.NotNil(t, result, "the plan is still returned")

	f.roster.err = errors.New("no access")
	_, err = f.settle(SettleOptions{})
	assert.ErrorContains(t, err, "failed to read roster")
}
