package db

import (
	"context"
	"time"

	"github.com/jakechorley/autoroster/pkg/core/gender"
	"github.com/jakechorley/autoroster/pkg/core/ledger"
	"github.com/jakechorley/autoroster/pkg/core/pool"
)

// ExclusionRecorder keeps the rows each allocation run left out, for later review
type ExclusionRecorder interface {
	RecordExclusions(ctx context.Context, runID string, exclusions []pool.Exclusion) error
}

// AuditLog reads back the adjustment audit trail
type AuditLog interface {
	AdjustmentsSince(ctx context.Context, since time.Time) ([]ledger.AdjustmentRecord, error)
}

// Database defines the interface for all database operations.
// Both the SheetsSQL-backed db.DB and postgres.DB implement this interface.
type Database interface {
	ledger.Store
	ledger.AuditSink
	AuditLog
	gender.Cache
	ExclusionRecorder
}
