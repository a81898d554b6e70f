package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/jakechorley/autoroster/pkg/core/model"
	"github.com/jakechorley/autoroster/pkg/core/roster"
)

// ErrPartialRebuild is returned when the roster was cleared but could not be written back. The
// roster sheet must be reconciled by hand from RebuildResult.Applicants.
var ErrPartialRebuild = errors.New("roster cleared but not rewritten")

// RebuildResult holds what a rebuild read and wrote
type RebuildResult struct {
	Applicants []model.Applicant
	Commit     roster.CommitResult
}

// RebuildRoster rewrites the roster with its drivers first, keeping everyone else in their
// current order. The clear and the rewrite are separate writes.
func RebuildRoster(ctx context.Context, store RosterStore, logger *zap.Logger) (RebuildResult, error) {
	logger.Debug("Reading roster for rebuild")
	applicants, err := store.Read(ctx)
	if err != nil {
		return RebuildResult{}, fmt.Errorf("failed to read roster: %w", err)
	}

	sort.SliceStable(applicants, func(i, j int) bool {
		return applicants[i].IsDriver && !applicants[j].IsDriver
	})
	result := RebuildResult{Applicants: applicants}

	logger.Debug("Clearing roster", zap.Int("rows", len(applicants)))
	if err := store.Clear(ctx); err != nil {
		return result, fmt.Errorf("failed to clear roster: %w", err)
	}

	commit, err := store.Commit(ctx, applicants)
	if err != nil {
		logger.Error("Roster was cleared but not rewritten", zap.Int("rows", len(applicants)), zap.Error(err))
		return result, fmt.Errorf("%w: %w", ErrPartialRebuild, err)
	}
	result.Commit = commit

	logger.Info("Rebuilt roster", zap.Int("rows", len(commit.Written)))
	return result, nil
}

// ClearRoster blanks the roster
func ClearRoster(ctx context.Context, store RosterStore, logger *zap.Logger) error {
	logger.Debug("Clearing roster")
	return store.Clear(ctx)
}
