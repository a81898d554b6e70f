package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/autoroster/pkg/core/ledger"
	"github.com/jakechorley/autoroster/pkg/core/model"
)

// ListPriorities returns every ledger entry in insertion order
func (d *DB) ListPriorities(ctx context.Context) ([]model.PriorityEntry, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT email, name, priority
		FROM priority_entry
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query priorities: %w", err)
	}

	entries, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.PriorityEntry])
	if err != nil {
		return nil, fmt.Errorf("failed to scan priorities: %w", err)
	}
	return entries, nil
}

// UpsertPriorities writes all entries in one transaction. An empty name never overwrites a
// stored one.
func (d *DB) UpsertPriorities(ctx context.Context, entries []model.PriorityEntry) error {
	if len(entries) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range entries {
			email := model.NormalizeEmail(e.Email)
			if email == "" {
				continue
			}
			batch.Queue(`
				INSERT INTO priority_entry (email, name, priority, updated_at)
				VALUES ($1, $2, $3, NOW())
				ON CONFLICT (email) DO UPDATE SET
					priority = EXCLUDED.priority,
					name = COALESCE(NULLIF(EXCLUDED.name, ''), priority_entry.name),
					updated_at = NOW()
			`, email, e.Name, e.Priority)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to upsert priorities: %w", err)
		}
		return nil
	})
}

// RecordAdjustments copies audit rows for applied ledger changes
func (d *DB) RecordAdjustments(ctx context.Context, records []ledger.AdjustmentRecord) error {
	if len(records) == 0 {
		return nil
	}

	_, err := d.pool.CopyFrom(ctx,
		pgx.Identifier{"priority_adjustment"},
		[]string{"id", "email", "name", "delta", "previous", "new", "mode", "created_at"},
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			return []any{uuid.New(), r.Email, r.Name, r.Delta, r.Previous, r.New, r.Mode, r.At.UTC()}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to insert priority adjustments: %w", err)
	}
	return nil
}

// AdjustmentsSince returns audit rows created at or after since, oldest first
func (d *DB) AdjustmentsSince(ctx context.Context, since time.Time) ([]ledger.AdjustmentRecord, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT email, name, delta, previous, new, mode, created_at
		FROM priority_adjustment
		WHERE created_at >= $1
		ORDER BY created_at
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query priority adjustments: %w", err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToStructByPos[ledger.AdjustmentRecord])
	if err != nil {
		return nil, fmt.Errorf("failed to scan priority adjustments: %w", err)
	}
	return records, nil
}
