package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jakechorley/autoroster/pkg/core/gender"
	"github.com/jakechorley/autoroster/pkg/core/ledger"
	"github.com/jakechorley/autoroster/pkg/core/model"
	"github.com/jakechorley/autoroster/pkg/core/pool"
	"github.com/jakechorley/autoroster/pkg/sheetssql"
)

// DB provides database operations using SheetsSQL.
//
// The priority table may live in its own spreadsheet; the audit, exclusion and gender tables
// always live in the database spreadsheet.
type DB struct {
	ssql       *sheetssql.DB
	priorities *sheetssql.DB
	now        func() time.Time
}

var _ Database = (*DB)(nil)

// Open connects to the database spreadsheet, and to a separate priority spreadsheet when
// priorityID differs from databaseID, creating any missing tables
func Open(client sheetssql.SheetsClient, databaseID, priorityID string) (*DB, error) {
	if priorityID == "" || priorityID == databaseID {
		schema, err := sheetssql.SchemaFromModels(PriorityEntry{}, PriorityAdjustment{}, ExclusionRecord{}, GenderRecord{})
		if err != nil {
			return nil, fmt.Errorf("failed to build schema: %w", err)
		}
		ssql, err := sheetssql.NewDB(client, databaseID, schema)
		if err != nil {
			return nil, fmt.Errorf("failed to open database sheet: %w", err)
		}
		return NewDB(ssql, ssql), nil
	}

	schema, err := sheetssql.SchemaFromModels(PriorityAdjustment{}, ExclusionRecord{}, GenderRecord{})
	if err != nil {
		return nil, fmt.Errorf("failed to build schema: %w", err)
	}
	ssql, err := sheetssql.NewDB(client, databaseID, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to open database sheet: %w", err)
	}

	prioritySchema, err := sheetssql.SchemaFromModels(PriorityEntry{})
	if err != nil {
		return nil, fmt.Errorf("failed to build priority schema: %w", err)
	}
	priorities, err := sheetssql.NewDB(client, priorityID, prioritySchema)
	if err != nil {
		return nil, fmt.Errorf("failed to open priority sheet: %w", err)
	}

	return NewDB(ssql, priorities), nil
}

// NewDB creates a new database instance over already opened sheets
func NewDB(ssql, priorities *sheetssql.DB) *DB {
	return &DB{
		ssql:       ssql,
		priorities: priorities,
		now:        time.Now,
	}
}

// ListPriorities returns every ledger row in sheet order
func (db *DB) ListPriorities(ctx context.Context) ([]model.PriorityEntry, error) {
	rows, err := sheetssql.GetTableAs[PriorityEntry](db.priorities, tablePriorityEntry)
	if err != nil {
		return nil, fmt.Errorf("failed to get priorities: %w", err)
	}

	entries := make([]model.PriorityEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, model.PriorityEntry{
			Email:    r.Email,
			Name:     r.Name,
			Priority: r.Priority,
		})
	}
	return entries, nil
}

// UpsertPriorities updates the first row for each email in place and appends rows for new
// emails. Updates are written before appends; the two are separate requests.
func (db *DB) UpsertPriorities(ctx context.Context, entries []model.PriorityEntry) error {
	if len(entries) == 0 {
		return nil
	}

	rows, err := sheetssql.GetTableRows[PriorityEntry](db.priorities, tablePriorityEntry)
	if err != nil {
		return fmt.Errorf("failed to get priorities: %w", err)
	}

	byEmail := make(map[string]sheetssql.Row[PriorityEntry], len(rows))
	for _, r := range rows {
		email := model.NormalizeEmail(r.Value.Email)
		if _, exists := byEmail[email]; !exists && email != "" {
			byEmail[email] = r
		}
	}

	now := db.now().UTC()
	var updates []sheetssql.Row[PriorityEntry]
	var inserts []PriorityEntry
	pending := make(map[string]int)

	for _, e := range entries {
		email := model.NormalizeEmail(e.Email)
		if email == "" {
			continue
		}

		if existing, ok := byEmail[email]; ok {
			existing.Value.Priority = e.Priority
			if e.Name != "" {
				existing.Value.Name = e.Name
			}
			existing.Value.UpdatedAt = now
			byEmail[email] = existing
			updates = append(updates, existing)
			continue
		}

		// The same new email twice in one call becomes one appended row
		if idx, ok := pending[email]; ok {
			inserts[idx].Priority = e.Priority
			continue
		}
		pending[email] = len(inserts)
		inserts = append(inserts, PriorityEntry{
			Email:     email,
			Name:      e.Name,
			Priority:  e.Priority,
			UpdatedAt: now,
		})
	}

	if err := sheetssql.UpdateModels(db.priorities, updates); err != nil {
		return fmt.Errorf("failed to update priorities: %w", err)
	}
	if err := sheetssql.InsertModels(db.priorities, inserts); err != nil {
		return fmt.Errorf("failed to insert priorities: %w", err)
	}
	return nil
}

// RecordAdjustments appends audit rows for applied ledger changes
func (db *DB) RecordAdjustments(ctx context.Context, records []ledger.AdjustmentRecord) error {
	rows := make([]PriorityAdjustment, 0, len(records))
	for _, r := range records {
		rows = append(rows, PriorityAdjustment{
			ID:        uuid.NewString(),
			Email:     r.Email,
			Name:      r.Name,
			Delta:     r.Delta,
			Previous:  r.Previous,
			New:       r.New,
			Mode:      r.Mode,
			CreatedAt: r.At.UTC(),
		})
	}

	if err := sheetssql.InsertModels(db.ssql, rows); err != nil {
		return fmt.Errorf("failed to insert priority adjustments: %w", err)
	}
	return nil
}

// AdjustmentsSince returns audit rows created at or after since, in the order they were written
func (db *DB) AdjustmentsSince(ctx context.Context, since time.Time) ([]ledger.AdjustmentRecord, error) {
	rows, err := sheetssql.GetTableAs[PriorityAdjustment](db.ssql, tablePriorityAdjustment)
	if err != nil {
		return nil, fmt.Errorf("failed to get priority adjustments: %w", err)
	}

	records := make([]ledger.AdjustmentRecord, 0, len(rows))
	for _, r := range rows {
		if r.CreatedAt.Before(since) {
			continue
		}
		records = append(records, ledger.AdjustmentRecord{
			Email:    r.Email,
			Name:     r.Name,
			Delta:    r.Delta,
			Previous: r.Previous,
			New:      r.New,
			Mode:     r.Mode,
			At:       r.CreatedAt,
		})
	}
	return records, nil
}

// RecordExclusions appends one row per excluded commitment, tagged with the run
func (db *DB) RecordExclusions(ctx context.Context, runID string, exclusions []pool.Exclusion) error {
	now := db.now().UTC()
	rows := make([]ExclusionRecord, 0, len(exclusions))
	for _, e := range exclusions {
		var submittedAt time.Time
		if e.SubmittedAt != nil {
			submittedAt = e.SubmittedAt.UTC()
		}
		rows = append(rows, ExclusionRecord{
			ID:          uuid.NewString(),
			RunID:       runID,
			Email:       e.Email,
			Name:        e.Name,
			Reason:      string(e.Reason),
			SubmittedAt: submittedAt,
			CreatedAt:   now,
		})
	}

	if err := sheetssql.InsertModels(db.ssql, rows); err != nil {
		return fmt.Errorf("failed to insert exclusions: %w", err)
	}
	return nil
}

// ListGenders returns the cached classifications
func (db *DB) ListGenders(ctx context.Context) ([]gender.Record, error) {
	rows, err := sheetssql.GetTableAs[GenderRecord](db.ssql, tableGenderRecord)
	if err != nil {
		return nil, fmt.Errorf("failed to get gender records: %w", err)
	}

	records := make([]gender.Record, 0, len(rows))
	for _, r := range rows {
		email := model.NormalizeEmail(r.Email)
		if email == "" {
			continue
		}
		records = append(records, gender.Record{
			Email:  email,
			Name:   r.Name,
			Gender: model.ParseGender(r.Gender),
		})
	}
	return records, nil
}

// SaveGenders overwrites cached rows for known emails and appends the rest
func (db *DB) SaveGenders(ctx context.Context, records []gender.Record) error {
	if len(records) == 0 {
		return nil
	}

	rows, err := sheetssql.GetTableRows[GenderRecord](db.ssql, tableGenderRecord)
	if err != nil {
		return fmt.Errorf("failed to get gender records: %w", err)
	}

	byEmail := make(map[string]sheetssql.Row[GenderRecord], len(rows))
	for _, r := range rows {
		byEmail[model.NormalizeEmail(r.Value.Email)] = r
	}

	var updates []sheetssql.Row[GenderRecord]
	var inserts []GenderRecord
	for _, rec := range records {
		email := model.NormalizeEmail(rec.Email)
		row := GenderRecord{Email: email, Name: rec.Name, Gender: string(rec.Gender)}

		if existing, ok := byEmail[email]; ok {
			existing.Value = row
			updates = append(updates, existing)
			continue
		}
		inserts = append(inserts, row)
	}

	if err := sheetssql.UpdateModels(db.ssql, updates); err != nil {
		return fmt.Errorf("failed to update gender records: %w", err)
	}
	if err := sheetssql.InsertModels(db.ssql, inserts); err != nil {
		return fmt.Errorf("failed to insert gender records: %w", err)
	}
	return nil
}
