package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jakechorley/autoroster/pkg/core/model"
)

// ErrRosterFull is returned when there are more people to write than blank rows on the roster
var ErrRosterFull = errors.New("no blank rows left on roster")

// Row holds the tracked columns of one roster row
type Row struct {
	Name  string
	Email string
	Drive string
}

func (r Row) IsBlank() bool {
	return strings.TrimSpace(r.Name) == "" && strings.TrimSpace(r.Email) == "" && strings.TrimSpace(r.Drive) == ""
}

// PlacedRow is a row with its position in the data range (0 is the first data row)
type PlacedRow struct {
	Index int
	Row   Row
}

// Sheet is the roster target. Implemented by sheetsclient.RosterSheet.
type Sheet interface {
	// ReadRows returns every row in the data range, blank rows included
	ReadRows(ctx context.Context) ([]Row, error)
	WriteRows(ctx context.Context, rows []PlacedRow) error
	// ClearRows blanks the tracked columns across the data range
	ClearRows(ctx context.Context) error
}

// CommitResult reports what Commit wrote
type CommitResult struct {
	Written []PlacedRow
	Skipped []string
}

// Message mirrors the operator feedback after adding people
func (r CommitResult) Message() string {
	return fmt.Sprintf("Added %d people, skipped %d (duplicates or invalid).", len(r.Written), len(r.Skipped))
}

// Writer appends applicants to a roster sheet
type Writer struct {
	sheet  Sheet
	logger *zap.Logger
}

func NewWriter(sheet Sheet, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{sheet: sheet, logger: logger}
}

// Commit writes applicants to the first blank rows of the roster, in order.
//
// Commit is idempotent by email: applicants already on the roster, applicants with an empty
// email, and repeats within applicants are skipped. If there are not enough blank rows nothing
// is written and ErrRosterFull is returned.
func (w *Writer) Commit(ctx context.Context, applicants []model.Applicant) (CommitResult, error) {
	rows, err := w.sheet.ReadRows(ctx)
	if err != nil {
		return CommitResult{}, fmt.Errorf("failed to read roster: %w", err)
	}

	existing := make(map[string]bool, len(rows))
	for _, r := range rows {
		if email := model.NormalizeEmail(r.Email); email != "" {
			existing[email] = true
		}
	}

	result := CommitResult{Written: []PlacedRow{}, Skipped: []string{}}
	next := 0

	for _, a := range applicants {
		email := model.NormalizeEmail(a.Email)
		if email == "" || existing[email] {
			result.Skipped = append(result.Skipped, email)
			continue
		}

		for next < len(rows) && !rows[next].IsBlank() {
			next++
		}
		if next >= len(rows) {
			return CommitResult{}, fmt.Errorf("%w: %d rows in range", ErrRosterFull, len(rows))
		}

		row := Row{
			Name:  strings.TrimSpace(a.Name),
			Email: email,
			Drive: driveFlag(a.IsDriver),
		}
		rows[next] = row
		result.Written = append(result.Written, PlacedRow{Index: next, Row: row})
		existing[email] = true
	}

	if len(result.Written) == 0 {
		w.logger.Debug("Nothing new to write to roster", zap.Int("skipped", len(result.Skipped)))
		return result, nil
	}

	if err := w.sheet.WriteRows(ctx, result.Written); err != nil {
		return CommitResult{}, fmt.Errorf("failed to write roster rows: %w", err)
	}

	w.logger.Info("Wrote people to roster",
		zap.Int("added", len(result.Written)),
		zap.Int("skipped", len(result.Skipped)))

	return result, nil
}

// Clear blanks the roster's tracked columns
func (w *Writer) Clear(ctx context.Context) error {
	if err := w.sheet.ClearRows(ctx); err != nil {
		return fmt.Errorf("failed to clear roster: %w", err)
	}
	w.logger.Info("Cleared roster")
	return nil
}

// Read returns the non-blank roster rows as rostered applicants, in sheet order
func (w *Writer) Read(ctx context.Context) ([]model.Applicant, error) {
	rows, err := w.sheet.ReadRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}

	var applicants []model.Applicant
	for _, r := range rows {
		if r.IsBlank() {
			continue
		}
		applicants = append(applicants, model.Applicant{
			Name:        strings.TrimSpace(r.Name),
			Email:       model.NormalizeEmail(r.Email),
			IsDriver:    model.IsDriverAnswer(r.Drive),
			Gender:      model.GenderUnknown,
			RosterState: model.StateRostered,
		})
	}
	return applicants, nil
}

func driveFlag(isDriver bool) string {
	if isDriver {
		return "Yes"
	}
	return "No"
}
