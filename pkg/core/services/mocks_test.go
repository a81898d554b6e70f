package services

import (
	"context"
	"time"

	"github.com/jakechorley/autoroster/pkg/core/allocator"
	"github.com/jakechorley/autoroster/pkg/core/ledger"
	"github.com/jakechorley/autoroster/pkg/core/model"
	"github.com/jakechorley/autoroster/pkg/core/pool"
	"github.com/jakechorley/autoroster/pkg/core/roster"
)

// fakeRosterSheet implements roster.Sheet over a fixed number of in-memory rows
type fakeRosterSheet struct {
	rows     []roster.Row
	writeErr error
	clearErr error
	writes   int
}

func newFakeRosterSheet(size int) *fakeRosterSheet {
	return &fakeRosterSheet{rows: make([]roster.Row, size)}
}

func (f *fakeRosterSheet) ReadRows(ctx context.Context) ([]roster.Row, error) {
	return append([]roster.Row{}, f.rows...), nil
}

func (f *fakeRosterSheet) WriteRows(ctx context.Context, rows []roster.PlacedRow) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes++
	for _, r := range rows {
		f.rows[r.Index] = r.Row
	}
	return nil
}

func (f *fakeRosterSheet) ClearRows(ctx context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	for i := range f.rows {
		f.rows[i] = roster.Row{}
	}
	return nil
}

func (f *fakeRosterSheet) emails() []string {
	var emails []string
	for _, r := range f.rows {
		if !r.IsBlank() {
			emails = append(emails, r.Email)
		}
	}
	return emails
}

// mockCommitments implements CommitmentSource
type mockCommitments struct {
	submissions []pool.Submission
	err         error
}

func (m *mockCommitments) Commitments(ctx context.Context) ([]pool.Submission, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.submissions, nil
}

// mockEboard implements EboardSource
type mockEboard struct {
	members []model.Member
	err     error
}

func (m *mockEboard) Eboard(ctx context.Context) ([]model.Member, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.members, nil
}

// mockPriorities implements PrioritySource
type mockPriorities struct {
	snapshot ledger.Snapshot
	err      error
}

func (m *mockPriorities) Snapshot(ctx context.Context) (ledger.Snapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.snapshot, nil
}

// mockResolver implements gender.Resolver
type mockResolver struct {
	genders map[string]model.Gender
	err     error
	calls   int
	asked   int
}

func (m *mockResolver) Resolve(ctx context.Context, applicants []model.Applicant) (map[string]model.Gender, error) {
	m.calls++
	m.asked += len(applicants)
	if m.err != nil {
		return nil, m.err
	}
	return m.genders, nil
}

// mockRecorder implements ExclusionRecorder
type mockRecorder struct {
	runIDs     []string
	exclusions []pool.Exclusion
	err        error
}

func (m *mockRecorder) RecordExclusions(ctx context.Context, runID string, exclusions []pool.Exclusion) error {
	if m.err != nil {
		return m.err
	}
	m.runIDs = append(m.runIDs, runID)
	m.exclusions = append(m.exclusions, exclusions...)
	return nil
}

// mockObserver implements Observer
type mockObserver struct {
	exclusionCalls int
	policies       []allocator.Policy
	counts         []allocator.Counts
}

func (m *mockObserver) ObserveExclusions(exclusions []pool.Exclusion) {
	m.exclusionCalls++
}

func (m *mockObserver) ObserveAllocation(policy allocator.Policy, counts allocator.Counts) {
	m.policies = append(m.policies, policy)
	m.counts = append(m.counts, counts)
}

// mockAdjuster implements PriorityAdjuster
type mockAdjuster struct {
	adjustments []model.Adjustment
	calls       int
	err         error
}

func (m *mockAdjuster) AdjustBatch(ctx context.Context, adjustments []model.Adjustment) (ledger.BatchSummary, error) {
	m.calls++
	if m.err != nil {
		return ledger.BatchSummary{}, m.err
	}
	m.adjustments = append(m.adjustments, adjustments...)
	return ledger.BatchSummary{Processed: len(adjustments)}, nil
}

func at(minute int) *time.Time {
	t := time.Date(2026, 3, 2, 9, minute, 0, 0, time.UTC)
	return &t
}
