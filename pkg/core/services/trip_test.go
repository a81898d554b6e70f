package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/autoroster/pkg/core/allocator"
	"github.com/jakechorley/autoroster/pkg/core/ledger"
	"github.com/jakechorley/autoroster/pkg/core/model"
	"github.com/jakechorley/autoroster/pkg/core/pool"
	"github.com/jakechorley/autoroster/pkg/core/roster"
	"github.com/jakechorley/autoroster/pkg/core/workflow"
)

type tripFixture struct {
	trip     *Trip
	sheet    *fakeRosterSheet
	recorder *mockRecorder
	observer *mockObserver
	resolver *mockResolver
}

func newTripFixture(t *testing.T) *tripFixture {
	t.Helper()

	f := &tripFixture{
		sheet:    newFakeRosterSheet(20),
		recorder: &mockRecorder{},
		observer: &mockObserver{},
		resolver: &mockResolver{genders: map[string]model.Gender{}},
	}

	deps := TripDeps{
		Commitments: &mockCommitments{submissions: []pool.Submission{
			{Name: "Ada", Email: "ada@x.edu", DriverAnswer: "Yes", SubmittedAt: at(1)},
			{Name: "Alan", Email: "alan@x.edu", DriverAnswer: "No", SubmittedAt: at(2)},
			{Name: "Outsider", Email: "out@gmail.com", DriverAnswer: "No", SubmittedAt: at(3)},
			{Name: "Barbara", Email: "barbara@x.edu", DriverAnswer: "No", SubmittedAt: at(4)},
			{Name: "Charles", Email: "charles@x.edu", DriverAnswer: "No", SubmittedAt: at(5)},
			{Name: "Dennis", Email: "dennis@x.edu", DriverAnswer: "No", SubmittedAt: at(6)},
			{Name: "Ada", Email: "ADA@x.edu", DriverAnswer: "Yes", SubmittedAt: at(7)},
		}},
		Eboard: &mockEboard{members: []model.Member{
			{Name: "Grace", Email: "grace@x.edu"},
			{Name: "Hedy", Email: "hedy@x.edu"},
			{Name: "Ida", Email: "ida@x.edu"},
		}},
		Priorities: &mockPriorities{snapshot: ledger.Snapshot{
			"ada@x.edu":     2,
			"barbara@x.edu": 1,
			"charles@x.edu": 1,
		}},
		Roster:     roster.NewWriter(f.sheet, zap.NewNop()),
		Genders:    f.resolver,
		Exclusions: f.recorder,
		Observer:   f.observer,
	}

	f.trip = NewTrip(deps, TripOptions{EmailDomain: "x.edu", SeatsPerDriver: 2, WaitlistSize: 2}, zap.NewNop())
	return f
}

func (f *tripFixture) addEboardAndDrivers(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	_, err := f.trip.AddEboard(ctx, []EboardSelection{
		{Name: "Grace", Email: "grace@x.edu", Status: EboardDriver},
		{Name: "Hedy", Email: "hedy@x.edu", Status: EboardGoing},
		{Name: "Ida", Email: "ida@x.edu", Status: EboardNotGoing},
	})
	require.NoError(t, err)

	_, err = f.trip.AddDrivers(ctx, []DriverSelection{{Email: "ada@x.edu", Drives: true}})
	require.NoError(t, err)
}

func TestTrip_FullAutomatedFlow(t *testing.T) {
	ctx := context.Background()
	f := newTripFixture(t)

	result, err := f.trip.AddEboard(ctx, []EboardSelection{
		{Name: "Grace", Email: "grace@x.edu", Status: EboardDriver},
		{Name: "Hedy", Email: "hedy@x.edu", Status: EboardGoing},
		{Name: "Ida", Email: "ida@x.edu", Status: EboardNotGoing},
	})
	require.NoError(t, err)
	assert.Len(t, result.Written, 2, "not going is left off")
	assert.Equal(t, workflow.CollectingDrivers, f.trip.State())
	assert.Equal(t, "Yes", f.sheet.rows[0].Drive)
	assert.Equal(t, "No", f.sheet.rows[1].Drive)

	offered, err := f.trip.DriverCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, offered, 1)
	assert.Equal(t, "ada@x.edu", offered[0].Email)

	_, err = f.trip.AddDrivers(ctx, []DriverSelection{{Email: "ADA@x.edu", Drives: true}})
	require.NoError(t, err)
	assert.Equal(t, workflow.DecidingRoster, f.trip.State())

	// Grace and Ada drive two seats each; three are already rostered, one slot remains
	decision, err := f.trip.DecideAutomated(ctx, allocator.PolicyPriority)
	require.NoError(t, err)

	assert.Equal(t, 4, decision.Capacity.TotalRosterCapacity)
	assert.Equal(t, 1, decision.Capacity.RemainingRosterSlots)
	assert.Equal(t, allocator.Counts{Rostered: 1, Waitlisted: 2, Rejected: 1}, decision.Counts)
	assert.Equal(t, workflow.Done, f.trip.State())

	assert.Equal(t, []string{
		"grace@x.edu", "hedy@x.edu", "ada@x.edu",
		"barbara@x.edu", "charles@x.edu", "alan@x.edu",
	}, f.sheet.emails(), "rostered then waitlisted, rejected never written")

	assert.Equal(t, 0, f.resolver.calls, "the priority policy does not need genders")
	assert.Equal(t, []allocator.Policy{allocator.PolicyPriority}, f.observer.policies)
}

func TestTrip_ExclusionsReportedOnce(t *testing.T) {
	f := newTripFixture(t)
	f.addEboardAndDrivers(t)

	_, err := f.trip.Plan(context.Background())
	require.NoError(t, err)

	require.Len(t, f.recorder.exclusions, 2)
	assert.Equal(t, pool.ReasonWrongDomain, f.recorder.exclusions[0].Reason)
	assert.Equal(t, pool.ReasonDuplicate, f.recorder.exclusions[1].Reason)
	assert.Equal(t, []string{f.trip.RunID()}, f.recorder.runIDs)
	assert.Equal(t, 1, f.observer.exclusionCalls)
}

func TestTrip_ExclusionAuditFailureDoesNotStopTrip(t *testing.T) {
	f := newTripFixture(t)
	f.recorder.err = errors.New("sheet unavailable")

	require.NoError(t, f.trip.SkipTo(workflow.DecidingRoster))
	_, err := f.trip.Plan(context.Background())
	assert.NoError(t, err)
}

func TestTrip_StepsOutOfOrder(t *testing.T) {
	ctx := context.Background()
	f := newTripFixture(t)

	_, err := f.trip.DecideAutomated(ctx, allocator.PolicyPriority)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = f.trip.AddDrivers(ctx, nil)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	assert.Empty(t, f.sheet.emails())
	assert.Equal(t, workflow.CollectingEboard, f.trip.State())
}

func TestTrip_AddDriversUnknownEmail(t *testing.T) {
	ctx := context.Background()
	f := newTripFixture(t)
	require.NoError(t, f.trip.SkipTo(workflow.CollectingDrivers))

	_, err := f.trip.AddDrivers(ctx, []DriverSelection{{Email: "out@gmail.com", Drives: true}})
	assert.ErrorIs(t, err, allocator.ErrUnknownCandidate, "excluded people cannot be picked")
	assert.Equal(t, workflow.CollectingDrivers, f.trip.State())
	assert.Empty(t, f.sheet.emails())
}

func TestTrip_DecideManually(t *testing.T) {
	ctx := context.Background()
	f := newTripFixture(t)
	f.addEboardAndDrivers(t)

	decision, err := f.trip.DecideManually(ctx, []allocator.Decision{
		{Email: "dennis@x.edu", State: model.StateRostered},
		{Email: "alan@x.edu", State: model.StateRostered},
		{Email: "charles@x.edu", State: model.StateWaitlisted},
	})
	require.NoError(t, err)

	assert.Equal(t, allocator.PolicyManual, decision.Policy)
	assert.Equal(t, allocator.Counts{Rostered: 2, Waitlisted: 1, Rejected: 1}, decision.Counts)
	assert.Equal(t, allocator.Overage{Roster: 1}, decision.Overage, "one slot remained but two were picked")
	assert.Len(t, decision.Allocation, 7)

	assert.Equal(t, []string{
		"grace@x.edu", "hedy@x.edu", "ada@x.edu",
		"alan@x.edu", "dennis@x.edu", "charles@x.edu",
	}, f.sheet.emails(), "rostered in submission order, then waitlisted")
	assert.Equal(t, workflow.Done, f.trip.State())
}

func TestTrip_FailedWriteCanBeRetried(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		decide func(*Trip) (DecisionResult, error)
	}{
		{
			name: "automated",
			decide: func(trip *Trip) (DecisionResult, error) {
				return trip.DecideAutomated(ctx, allocator.PolicyPriority)
			},
		},
		{
			name: "manual",
			decide: func(trip *Trip) (DecisionResult, error) {
				return trip.DecideManually(ctx, []allocator.Decision{
					{Email: "barbara@x.edu", State: model.StateRostered},
				})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTripFixture(t)
			f.addEboardAndDrivers(t)

			f.sheet.writeErr = errors.New("quota exceeded")
			_, err := tt.decide(f.trip)
			assert.ErrorContains(t, err, "failed to write roster decision")
			assert.Equal(t, workflow.DecidingRoster, f.trip.State())
			assert.Empty(t, f.observer.policies)

			f.sheet.writeErr = nil
			decision, err := tt.decide(f.trip)
			require.NoError(t, err)
			assert.Equal(t, 1, decision.Counts.Rostered)
			assert.Equal(t, workflow.Done, f.trip.State())
			assert.Contains(t, f.sheet.emails(), "barbara@x.edu")
		})
	}
}

func TestTrip_DecideManuallyRejectsUnknownCandidate(t *testing.T) {
	f := newTripFixture(t)
	f.addEboardAndDrivers(t)

	_, err := f.trip.DecideManually(context.Background(), []allocator.Decision{
		{Email: "grace@x.edu", State: model.StateRostered},
	})
	assert.ErrorIs(t, err, allocator.ErrUnknownCandidate, "already rostered people are not candidates")
	assert.Equal(t, workflow.DecidingRoster, f.trip.State())
}

func TestTrip_GenderPolicyResolvesEveryone(t *testing.T) {
	ctx := context.Background()
	f := newTripFixture(t)
	f.addEboardAndDrivers(t)

	f.resolver.genders = map[string]model.Gender{
		"alan@x.edu":   model.GenderMale,
		"dennis@x.edu": model.GenderFemale,
	}

	decision, err := f.trip.DecideAutomated(ctx, allocator.PolicyGenderGlobal)
	require.NoError(t, err)

	assert.Equal(t, 1, f.resolver.calls)
	assert.Equal(t, 7, f.resolver.asked, "rostered people count toward the balance")
	assert.Equal(t, 1, decision.Counts.Rostered)
}

func TestTrip_GenderResolverError(t *testing.T) {
	f := newTripFixture(t)
	f.addEboardAndDrivers(t)
	f.resolver.err = errors.New("classifier down")

	_, err := f.trip.DecideAutomated(context.Background(), allocator.PolicyGenderTiered)
	assert.ErrorContains(t, err, "failed to resolve genders")
	assert.Equal(t, workflow.DecidingRoster, f.trip.State(), "nothing was written")
}

func TestTrip_ComparePolicies(t *testing.T) {
	f := newTripFixture(t)
	f.addEboardAndDrivers(t)

	comparison, c, err := f.trip.ComparePolicies(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, c.RemainingRosterSlots)
	assert.Len(t, comparison.Tiered, 7)
	assert.Len(t, comparison.Global, 7)
	assert.Equal(t, 1, f.resolver.calls)
	assert.Equal(t, workflow.DecidingRoster, f.trip.State(), "comparing does not decide")
}

func TestTrip_SourceErrors(t *testing.T) {
	f := newTripFixture(t)
	f.trip.deps.Priorities = &mockPriorities{err: errors.New("lock held")}

	_, err := f.trip.Plan(context.Background())
	assert.ErrorContains(t, err, "failed to read priorities")

	f.trip.deps.Commitments = &mockCommitments{err: errors.New("quota")}
	_, err = f.trip.Plan(context.Background())
	assert.ErrorContains(t, err, "failed to read commitments")
}

func TestTrip_ResetStartsNewRun(t *testing.T) {
	f := newTripFixture(t)
	require.NoError(t, f.trip.SkipTo(workflow.Done))

	first := f.trip.RunID()
	f.trip.Reset()

	assert.Equal(t, workflow.CollectingEboard, f.trip.State())
	assert.NotEqual(t, first, f.trip.RunID())
	assert.NoError(t, f.trip.SkipTo(workflow.CollectingEboard))
}

func TestParseEboardStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    EboardStatus
		wantErr bool
	}{
		{in: "Driver", want: EboardDriver},
		{in: " going ", want: EboardGoing},
		{in: "not-going", want: EboardNotGoing},
		{in: "NOT_GOING", want: EboardNotGoing},
		{in: "maybe", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEboardStatus(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlanCapacity(t *testing.T) {
	rostered := []model.Applicant{
		{Email: "a@x.edu", IsDriver: true},
		{Email: "b@x.edu", IsDriver: true},
		{Email: "c@x.edu"},
	}

	c, err := PlanCapacity(rostered, TripOptions{WaitlistSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 10, c.TotalRosterCapacity)
	assert.Equal(t, 7, c.RemainingRosterSlots)
	assert.Equal(t, 3, c.WaitlistSize)

	c, err = PlanCapacity(rostered, TripOptions{RosterLimit: 2})
	require.NoError(t, err)
	assert.True(t, c.Overbooked)
	assert.Equal(t, 0, c.RemainingRosterSlots)

	_, err = PlanCapacity(rostered, TripOptions{WaitlistSize: -1})
	assert.Error(t, err)
}
