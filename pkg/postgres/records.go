package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/autoroster/pkg/core/gender"
	"github.com/jakechorley/autoroster/pkg/core/model"
	"github.com/jakechorley/autoroster/pkg/core/pool"
)

// RecordExclusions copies one row per excluded commitment, tagged with the run
func (d *DB) RecordExclusions(ctx context.Context, runID string, exclusions []pool.Exclusion) error {
	if len(exclusions) == 0 {
		return nil
	}

	run, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", runID, err)
	}
	now := time.Now().UTC()

	_, err = d.pool.CopyFrom(ctx,
		pgx.Identifier{"exclusion_record"},
		[]string{"id", "run_id", "email", "name", "reason", "submitted_at", "created_at"},
		pgx.CopyFromSlice(len(exclusions), func(i int) ([]any, error) {
			e := exclusions[i]
			return []any{uuid.New(), run, e.Email, e.Name, string(e.Reason), e.SubmittedAt, now}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to insert exclusions: %w", err)
	}
	return nil
}

// ListGenders returns the cached classifications
func (d *DB) ListGenders(ctx context.Context) ([]gender.Record, error) {
	rows, err := d.pool.Query(ctx, `SELECT email, name, gender FROM gender_record ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("failed to query gender records: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (gender.Record, error) {
		var r gender.Record
		var g string
		if err := row.Scan(&r.Email, &r.Name, &g); err != nil {
			return r, err
		}
		r.Gender = model.ParseGender(g)
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan gender records: %w", err)
	}
	return records, nil
}

// SaveGenders upserts classifications by email
func (d *DB) SaveGenders(ctx context.Context, records []gender.Record) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO gender_record (email, name, gender)
			VALUES ($1, $2, $3)
			ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, gender = EXCLUDED.gender
		`, model.NormalizeEmail(r.Email), r.Name, string(r.Gender))
	}

	if err := d.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save gender records: %w", err)
	}
	return nil
}
