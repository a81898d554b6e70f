package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/autoroster/pkg/core/allocator"
	"github.com/jakechorley/autoroster/pkg/core/capacity"
	"github.com/jakechorley/autoroster/pkg/core/gender"
	"github.com/jakechorley/autoroster/pkg/core/ledger"
	"github.com/jakechorley/autoroster/pkg/core/model"
	"github.com/jakechorley/autoroster/pkg/core/pool"
	"github.com/jakechorley/autoroster/pkg/core/roster"
	"github.com/jakechorley/autoroster/pkg/core/workflow"
)

// ErrInvalidAllocation is returned when an allocation result breaks the capacity partition
var ErrInvalidAllocation = errors.New("allocation failed validation")

// CommitmentSource reads the commitment form responses for a trip
type CommitmentSource interface {
	Commitments(ctx context.Context) ([]pool.Submission, error)
}

// EboardSource reads the eboard membership list
type EboardSource interface {
	Eboard(ctx context.Context) ([]model.Member, error)
}

// PrioritySource provides a point-in-time read of the priority ledger. Implemented by ledger.Ledger.
type PrioritySource interface {
	Snapshot(ctx context.Context) (ledger.Snapshot, error)
}

// RosterStore is the trip roster. Implemented by roster.Writer.
type RosterStore interface {
	Read(ctx context.Context) ([]model.Applicant, error)
	Commit(ctx context.Context, applicants []model.Applicant) (roster.CommitResult, error)
	Clear(ctx context.Context) error
}

// ExclusionRecorder keeps an audit row per excluded commitment. Implemented by db.DB and postgres.DB.
type ExclusionRecorder interface {
	RecordExclusions(ctx context.Context, runID string, exclusions []pool.Exclusion) error
}

// Observer receives trip outcomes for metrics. Implemented by metrics.Metrics.
type Observer interface {
	ObserveExclusions(exclusions []pool.Exclusion)
	ObserveAllocation(policy allocator.Policy, counts allocator.Counts)
}

// TripDeps are the collaborators a Trip reads from and writes to. Genders, Exclusions and
// Observer are optional.
type TripDeps struct {
	Commitments CommitmentSource
	Eboard      EboardSource
	Priorities  PrioritySource
	Roster      RosterStore
	Genders     gender.Resolver
	Exclusions  ExclusionRecorder
	Observer    Observer
}

// TripOptions size the trip and control admission
type TripOptions struct {
	EmailDomain     string
	SeatsPerDriver  int
	WaitlistSize    int
	RosterLimit     int // Overrides drivers × seats when > 0
	FemaleThreshold float64
}

// Trip walks one trip's roster through the eboard, driver and decision phases
type Trip struct {
	deps    TripDeps
	opts    TripOptions
	machine *workflow.Machine
	logger  *zap.Logger

	runID           string
	exclusionsTaken bool
}

func NewTrip(deps TripDeps, opts TripOptions, logger *zap.Logger) *Trip {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trip{
		deps:    deps,
		opts:    opts,
		machine: workflow.New(),
		logger:  logger,
		runID:   uuid.NewString(),
	}
}

func (t *Trip) State() workflow.State {
	return t.machine.State()
}

// RunID tags the audit rows written by this trip
func (t *Trip) RunID() string {
	return t.runID
}

// SkipTo advances past phases already done by hand, e.g. a roster whose eboard and drivers were
// entered directly on the sheet
func (t *Trip) SkipTo(state workflow.State) error {
	for t.machine.State() != state {
		n, ok := workflow.Next(t.machine.State())
		if !ok {
			return fmt.Errorf("%w: cannot reach %s", workflow.ErrInvalidTransition, state)
		}
		if err := t.machine.Advance(n); err != nil {
			return err
		}
	}
	return nil
}

// Reset starts the trip over with a new run ID. The roster sheet is left alone.
func (t *Trip) Reset() {
	t.machine.Reset()
	t.runID = uuid.NewString()
	t.exclusionsTaken = false
}

// EboardStatus is an eboard member's answer for the trip
type EboardStatus string

const (
	EboardGoing    EboardStatus = "going"
	EboardDriver   EboardStatus = "driver"
	EboardNotGoing EboardStatus = "not going"
)

// ParseEboardStatus accepts the status names case-insensitively, with "-" or "_" for the space
func ParseEboardStatus(s string) (EboardStatus, error) {
	normalized := strings.NewReplacer("-", " ", "_", " ").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch EboardStatus(normalized) {
	case EboardGoing, EboardDriver, EboardNotGoing:
		return EboardStatus(normalized), nil
	}
	return "", fmt.Errorf("invalid eboard status %q", s)
}

// EboardSelection is one eboard member's status for the trip
type EboardSelection struct {
	Name   string       `json:"name" yaml:"name"`
	Email  string       `json:"email" yaml:"email"`
	Status EboardStatus `json:"status" yaml:"status"`
}

// EboardMembers lists the people the eboard phase asks about
func (t *Trip) EboardMembers(ctx context.Context) ([]model.Member, error) {
	members, err := t.deps.Eboard.Eboard(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read eboard: %w", err)
	}
	return members, nil
}

// AddEboard writes every eboard member who is going to the roster, drivers flagged, and moves
// the trip on to the driver phase
func (t *Trip) AddEboard(ctx context.Context, selections []EboardSelection) (roster.CommitResult, error) {
	if err := t.machine.Require(workflow.CollectingEboard); err != nil {
		return roster.CommitResult{}, err
	}

	t.logger.Debug("Adding eboard", zap.Int("selections", len(selections)))

	going := make([]model.Applicant, 0, len(selections))
	for _, s := range selections {
		if s.Status == EboardNotGoing {
			continue
		}
		going = append(going, model.Applicant{
			Name:        s.Name,
			Email:       model.NormalizeEmail(s.Email),
			IsDriver:    s.Status == EboardDriver,
			IsEboard:    true,
			RosterState: model.StateRostered,
		})
	}

	result, err := t.deps.Roster.Commit(ctx, going)
	if err != nil {
		return roster.CommitResult{}, fmt.Errorf("failed to add eboard: %w", err)
	}

	if err := t.machine.Advance(workflow.CollectingDrivers); err != nil {
		return result, err
	}

	t.logger.Info("Added eboard to roster", zap.Int("added", len(result.Written)))
	return result, nil
}

// DriverSelection is the operator's choice for one person who offered to drive
type DriverSelection struct {
	Email  string `json:"email" yaml:"email"`
	Drives bool   `json:"drives" yaml:"drives"`
}

// DriverCandidates returns the admitted commitment submitters who offered to drive and are not
// yet on the roster
func (t *Trip) DriverCandidates(ctx context.Context) ([]model.Applicant, error) {
	p, err := t.loadPool(ctx)
	if err != nil {
		return nil, err
	}

	var offered []model.Applicant
	for _, c := range p.Candidates {
		if c.OffersToDrive {
			offered = append(offered, c)
		}
	}
	return offered, nil
}

// AddDrivers writes the selected people to the roster, in selection order, and moves the trip
// on to the decision. Each selection must name an admitted candidate.
func (t *Trip) AddDrivers(ctx context.Context, selections []DriverSelection) (roster.CommitResult, error) {
	if err := t.machine.Require(workflow.CollectingDrivers); err != nil {
		return roster.CommitResult{}, err
	}

	p, err := t.loadPool(ctx)
	if err != nil {
		return roster.CommitResult{}, err
	}

	byEmail := make(map[string]model.Applicant, len(p.Candidates))
	for _, c := range p.Candidates {
		byEmail[c.Email] = c
	}

	drivers := make([]model.Applicant, 0, len(selections))
	for _, s := range selections {
		email := model.NormalizeEmail(s.Email)
		c, ok := byEmail[email]
		if !ok {
			return roster.CommitResult{}, fmt.Errorf("%w: %s", allocator.ErrUnknownCandidate, email)
		}
		c.IsDriver = s.Drives
		c.RosterState = model.StateRostered
		drivers = append(drivers, c)
	}

	t.logger.Debug("Adding drivers", zap.Int("count", len(drivers)))

	result, err := t.deps.Roster.Commit(ctx, drivers)
	if err != nil {
		return roster.CommitResult{}, fmt.Errorf("failed to add drivers: %w", err)
	}

	if err := t.machine.Advance(workflow.DecidingRoster); err != nil {
		return result, err
	}

	t.logger.Info("Added drivers to roster", zap.Int("added", len(result.Written)))
	return result, nil
}

// Plan is the state of the trip at decision time
type Plan struct {
	Pool     *pool.Pool
	Capacity capacity.Capacity
}

// Plan reads the roster and commitments and sizes the trip from the drivers already rostered
func (t *Trip) Plan(ctx context.Context) (Plan, error) {
	p, err := t.loadPool(ctx)
	if err != nil {
		return Plan{}, err
	}

	c, err := PlanCapacity(p.Rostered, t.opts)
	if err != nil {
		return Plan{}, err
	}

	t.logger.Debug("Planned trip",
		zap.Int("drivers", c.DriverCount),
		zap.Int("rostered", c.AlreadyRostered),
		zap.Int("remaining", c.RemainingRosterSlots),
		zap.Int("waitlist", c.WaitlistSize),
		zap.Int("candidates", len(p.Candidates)))

	if c.Overbooked {
		t.logger.Warn("Roster already holds more people than the drivers can seat",
			zap.Int("rostered", c.AlreadyRostered),
			zap.Int("capacity", c.TotalRosterCapacity))
	}

	return Plan{Pool: p, Capacity: c}, nil
}

// PlanCapacity counts the drivers among rostered and sizes the trip
func PlanCapacity(rostered []model.Applicant, opts TripOptions) (capacity.Capacity, error) {
	drivers := 0
	for _, r := range rostered {
		if r.IsDriver {
			drivers++
		}
	}

	c, err := capacity.Compute(capacity.Input{
		DriverCount:     drivers,
		SeatsPerDriver:  opts.SeatsPerDriver,
		AlreadyRostered: len(rostered),
		WaitlistSize:    opts.WaitlistSize,
		RosterLimit:     opts.RosterLimit,
	})
	if err != nil {
		return capacity.Capacity{}, fmt.Errorf("failed to compute capacity: %w", err)
	}
	return c, nil
}

// DecisionResult reports a roster decision and what was written
type DecisionResult struct {
	Policy     allocator.Policy
	Capacity   capacity.Capacity
	Allocation []model.Applicant // Already rostered first, then every candidate with its state
	Counts     allocator.Counts  // Candidates only
	Overage    allocator.Overage // Handpicked placements beyond capacity
	Commit     roster.CommitResult
}

// Allocate runs policy over the current plan without writing anything
func (t *Trip) Allocate(ctx context.Context, policy allocator.Policy) (DecisionResult, error) {
	plan, err := t.Plan(ctx)
	if err != nil {
		return DecisionResult{}, err
	}

	rostered, candidates := plan.Pool.Rostered, plan.Pool.Candidates
	if policy.UsesGender() {
		rostered, candidates, err = t.applyGenders(ctx, rostered, candidates)
		if err != nil {
			return DecisionResult{}, err
		}
	}

	t.logger.Info("Running allocation", zap.String("policy", string(policy)))

	result, err := allocator.Allocate(candidates, rostered, plan.Capacity, policy, t.allocatorOptions()...)
	if err != nil {
		return DecisionResult{}, fmt.Errorf("failed to allocate: %w", err)
	}

	if violations := allocator.ValidateAllocation(result, len(rostered), plan.Capacity); len(violations) > 0 {
		for _, v := range violations {
			t.logger.Error("Allocation violation", zap.String("rule", v.Rule), zap.String("description", v.Description))
		}
		return DecisionResult{}, fmt.Errorf("%w: %s", ErrInvalidAllocation, violations[0].Description)
	}

	counts := allocator.Tally(allocator.Candidates(result, len(rostered)))
	t.logger.Info("Allocation completed",
		zap.Int("rostered", counts.Rostered),
		zap.Int("waitlisted", counts.Waitlisted),
		zap.Int("rejected", counts.Rejected))

	return DecisionResult{
		Policy:     policy,
		Capacity:   plan.Capacity,
		Allocation: result,
		Counts:     counts,
	}, nil
}

// DecideAutomated allocates with policy and writes the Rostered candidates, then the
// Waitlisted ones, to the roster. Rejected candidates are never written.
func (t *Trip) DecideAutomated(ctx context.Context, policy allocator.Policy) (DecisionResult, error) {
	if err := t.machine.Require(workflow.DecidingRoster); err != nil {
		return DecisionResult{}, err
	}

	decision, err := t.Allocate(ctx, policy)
	if err != nil {
		return DecisionResult{}, err
	}

	candidates := allocator.Candidates(decision.Allocation, decision.Capacity.AlreadyRostered)
	decision.Commit, err = t.writeDecision(ctx, candidates)
	if err != nil {
		return decision, err
	}

	if t.deps.Observer != nil {
		t.deps.Observer.ObserveAllocation(policy, decision.Counts)
	}
	return decision, nil
}

// DecideManually applies the operator's handpicked states and writes the result the same way as
// DecideAutomated. Capacity is reported in Overage but not enforced.
func (t *Trip) DecideManually(ctx context.Context, decisions []allocator.Decision) (DecisionResult, error) {
	if err := t.machine.Require(workflow.DecidingRoster); err != nil {
		return DecisionResult{}, err
	}

	plan, err := t.Plan(ctx)
	if err != nil {
		return DecisionResult{}, err
	}

	assigned, err := allocator.AssignManually(plan.Pool.Candidates, decisions)
	if err != nil {
		return DecisionResult{}, fmt.Errorf("failed to apply decisions: %w", err)
	}

	counts := allocator.Tally(assigned)
	overage, exceeds := counts.Exceeds(plan.Capacity)
	if exceeds {
		t.logger.Warn("Handpicked roster exceeds capacity",
			zap.Int("rosterOver", overage.Roster),
			zap.Int("waitlistOver", overage.Waitlist))
	}

	decision := DecisionResult{
		Policy:     allocator.PolicyManual,
		Capacity:   plan.Capacity,
		Allocation: append(append([]model.Applicant{}, plan.Pool.Rostered...), assigned...),
		Counts:     counts,
		Overage:    overage,
	}

	decision.Commit, err = t.writeDecision(ctx, assigned)
	if err != nil {
		return decision, err
	}

	if t.deps.Observer != nil {
		t.deps.Observer.ObserveAllocation(allocator.PolicyManual, counts)
	}
	return decision, nil
}

// ComparePolicies runs both gender balancing policies over the current plan for the operator to
// choose between
func (t *Trip) ComparePolicies(ctx context.Context) (allocator.Comparison, capacity.Capacity, error) {
	plan, err := t.Plan(ctx)
	if err != nil {
		return allocator.Comparison{}, capacity.Capacity{}, err
	}

	rostered, candidates, err := t.applyGenders(ctx, plan.Pool.Rostered, plan.Pool.Candidates)
	if err != nil {
		return allocator.Comparison{}, capacity.Capacity{}, err
	}

	comparison, err := allocator.ComparePolicies(candidates, rostered, plan.Capacity, t.allocatorOptions()...)
	if err != nil {
		return allocator.Comparison{}, capacity.Capacity{}, fmt.Errorf("failed to compare policies: %w", err)
	}
	return comparison, plan.Capacity, nil
}

// writeDecision writes Rostered then Waitlisted candidates and finishes the trip
func (t *Trip) writeDecision(ctx context.Context, candidates []model.Applicant) (roster.CommitResult, error) {
	placed := make([]model.Applicant, 0, len(candidates))
	for _, state := range []model.RosterState{model.StateRostered, model.StateWaitlisted} {
		for _, c := range candidates {
			if c.RosterState == state {
				placed = append(placed, c)
			}
		}
	}

	// The trip stays in DecidingRoster until the write lands so a failed commit can be retried
	result, err := t.deps.Roster.Commit(ctx, placed)
	if err != nil {
		return roster.CommitResult{}, fmt.Errorf("failed to write roster decision: %w", err)
	}

	for _, state := range []workflow.State{workflow.CollectingNonDrivers, workflow.Done} {
		if err := t.machine.Advance(state); err != nil {
			return result, err
		}
	}

	t.logger.Info("Wrote roster decision", zap.Int("added", len(result.Written)), zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

// loadPool reads the current roster, commitments, eboard list and ledger snapshot and builds the
// applicant pool. Exclusions are reported the first time only.
func (t *Trip) loadPool(ctx context.Context) (*pool.Pool, error) {
	t.logger.Debug("Reading roster")
	rostered, err := t.deps.Roster.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}

	t.logger.Debug("Reading commitments")
	submissions, err := t.deps.Commitments.Commitments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read commitments: %w", err)
	}

	members, err := t.EboardMembers(ctx)
	if err != nil {
		return nil, err
	}
	eboard := make([]string, 0, len(members))
	for _, m := range members {
		eboard = append(eboard, m.Email)
	}

	snapshot, err := t.deps.Priorities.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read priorities: %w", err)
	}

	p := pool.Build(rostered, submissions, pool.Options{
		EmailDomain: t.opts.EmailDomain,
		Priorities:  snapshot,
		Eboard:      eboard,
	})

	t.logger.Debug("Built applicant pool",
		zap.Int("rostered", len(p.Rostered)),
		zap.Int("candidates", len(p.Candidates)),
		zap.Int("excluded", len(p.Exclusions)))

	if !t.exclusionsTaken {
		t.exclusionsTaken = true
		t.reportExclusions(ctx, p.Exclusions)
	}

	return p, nil
}

// reportExclusions logs, counts and audits excluded rows. A failed audit write is logged and
// does not stop the trip.
func (t *Trip) reportExclusions(ctx context.Context, exclusions []pool.Exclusion) {
	for _, e := range exclusions {
		t.logger.Warn("Excluded commitment",
			zap.String("email", e.Email),
			zap.String("name", e.Name),
			zap.String("reason", string(e.Reason)))
	}

	if t.deps.Observer != nil {
		t.deps.Observer.ObserveExclusions(exclusions)
	}

	if t.deps.Exclusions == nil || len(exclusions) == 0 {
		return
	}
	if err := t.deps.Exclusions.RecordExclusions(ctx, t.runID, exclusions); err != nil {
		t.logger.Warn("Failed to record exclusions", zap.String("runID", t.runID), zap.Error(err))
	}
}

// applyGenders resolves genders for everyone in the allocation. Without a resolver everyone
// stays unknown.
func (t *Trip) applyGenders(ctx context.Context, rostered, candidates []model.Applicant) ([]model.Applicant, []model.Applicant, error) {
	if t.deps.Genders == nil {
		t.logger.Warn("No gender resolver configured; everyone is treated as unknown")
		return rostered, candidates, nil
	}

	everyone := append(append([]model.Applicant{}, rostered...), candidates...)
	genders, err := t.deps.Genders.Resolve(ctx, everyone)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve genders: %w", err)
	}

	t.logger.Debug("Resolved genders", zap.Int("count", len(genders)))
	return gender.Apply(rostered, genders), gender.Apply(candidates, genders), nil
}

func (t *Trip) allocatorOptions() []allocator.Option {
	if t.opts.FemaleThreshold <= 0 {
		return nil
	}
	return []allocator.Option{allocator.WithFemaleThreshold(t.opts.FemaleThreshold)}
}
