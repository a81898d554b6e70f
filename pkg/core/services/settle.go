package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/autoroster/pkg/core/ledger"
	"github.com/jakechorley/autoroster/pkg/core/model"
	"github.com/jakechorley/autoroster/pkg/core/pool"
	"github.com/jakechorley/autoroster/pkg/core/settlement"
)

// RosterReader reads a finished roster in sheet order
type RosterReader interface {
	Read(ctx context.Context) ([]model.Applicant, error)
}

// PriorityAdjuster applies a batch of priority changes. Implemented by ledger.Ledger.
type PriorityAdjuster interface {
	AdjustBatch(ctx context.Context, adjustments []model.Adjustment) (ledger.BatchSummary, error)
}

// SettleOptions controls SettlePriorities
type SettleOptions struct {
	EmailDomain    string
	SeatsPerDriver int

	// Overrides replaces the proposed delta for an email
	Overrides map[string]int

	// DryRun computes the plan without touching the ledger
	DryRun bool
}

// SettleResult is the plan and, unless it was a dry run, what the ledger did with it
type SettleResult struct {
	Plan    settlement.Plan
	Summary *ledger.BatchSummary
}

// SettlePriorities adjusts priorities after a trip: people who went lose a point, people who were
// waitlisted or never made the roster gain one, and eboard members are left alone
func SettlePriorities(
	ctx context.Context,
	rosterReader RosterReader,
	commitments CommitmentSource,
	eboard EboardSource,
	adjuster PriorityAdjuster,
	opts SettleOptions,
	logger *zap.Logger,
) (*SettleResult, error) {
	logger.Debug("Starting settlePriorities", zap.Bool("dryRun", opts.DryRun))

	finalRoster, err := rosterReader.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}
	logger.Debug("Read roster", zap.Int("rows", len(finalRoster)))

	submissions, err := commitments.Commitments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read commitments: %w", err)
	}

	members, err := eboard.Eboard(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read eboard: %w", err)
	}
	eboardEmails := make([]string, 0, len(members))
	isEboard := make(map[string]bool, len(members))
	for _, m := range members {
		eboardEmails = append(eboardEmails, m.Email)
		isEboard[model.NormalizeEmail(m.Email)] = true
	}

	for i := range finalRoster {
		finalRoster[i].IsEboard = isEboard[model.NormalizeEmail(finalRoster[i].Email)]
	}

	// Only admissible submitters are owed a point for missing out
	submitters := pool.Build(nil, submissions, pool.Options{
		EmailDomain: opts.EmailDomain,
		Eboard:      eboardEmails,
	})
	logger.Debug("Admitted submitters",
		zap.Int("count", len(submitters.Candidates)),
		zap.Int("excluded", len(submitters.Exclusions)))

	plan, err := settlement.Compute(finalRoster, submitters.Candidates, opts.SeatsPerDriver)
	if err != nil {
		return nil, err
	}

	for email, delta := range opts.Overrides {
		if !plan.Override(email, delta) {
			logger.Warn("Override for someone not in the plan", zap.String("email", email))
		}
	}

	result := &SettleResult{Plan: plan}
	adjustments := plan.Adjustments()

	if opts.DryRun {
		logger.Info("Dry run, priorities not changed", zap.Int("adjustments", len(adjustments)))
		return result, nil
	}

	summary, err := adjuster.AdjustBatch(ctx, adjustments)
	if err != nil {
		return result, fmt.Errorf("failed to apply priority adjustments: %w", err)
	}
	result.Summary = &summary

	logger.Info("Settled priorities",
		zap.Int("processed", summary.Processed),
		zap.Int("added", summary.Added))
	return result, nil
}
