package sheetsclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jakechorley/autoroster/pkg/core/model"
	"github.com/jakechorley/autoroster/pkg/core/pool"
)

// ErrMissingHeader is returned when a source sheet lacks a required column
var ErrMissingHeader = errors.New("missing required header")

// firstSheetRange addresses the first tab of a spreadsheet
const firstSheetRange = "A:Z"

// headerSearchRows is how far down a roster sheet the header row may sit
const headerSearchRows = 50

// ValuesReader reads a range of values. Implemented by Client.
type ValuesReader interface {
	GetValues(spreadsheetID, sheetRange string) ([][]interface{}, error)
}

// ReadCommitments reads the commitment form responses from the first tab of spreadsheetID
func ReadCommitments(r ValuesReader, spreadsheetID string, logger *zap.Logger) ([]pool.Submission, error) {
	values, err := r.GetValues(spreadsheetID, firstSheetRange)
	if err != nil {
		return nil, fmt.Errorf("failed to get commitment data: %w", err)
	}

	submissions, err := parseCommitments(values, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to parse commitments: %w", err)
	}
	return submissions, nil
}

// ReadEboard reads the eboard roster: name in column A, email in column B, one header row
func ReadEboard(r ValuesReader, spreadsheetID string) ([]model.Member, error) {
	values, err := r.GetValues(spreadsheetID, firstSheetRange)
	if err != nil {
		return nil, fmt.Errorf("failed to get eboard data: %w", err)
	}
	return parseEboard(values), nil
}

// ReadRoster reads a filled-in roster, finding its header row by the NAME, MAIL and DRIVE columns
func ReadRoster(r ValuesReader, spreadsheetID string) ([]model.Applicant, error) {
	values, err := r.GetValues(spreadsheetID, firstSheetRange)
	if err != nil {
		return nil, fmt.Errorf("failed to get roster data: %w", err)
	}

	applicants, err := parseRoster(values)
	if err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}
	return applicants, nil
}

// parseCommitments converts form responses into submissions. The first row holds headers and
// the timestamp is always column 0. Only the email column is required; rows missing other
// answers are passed through for the pool builder to exclude. A timestamp that is present but
// cannot be parsed is logged and treated as missing, which sorts the row last among its ties.
func parseCommitments(raw [][]interface{}, logger *zap.Logger) ([]pool.Submission, error) {
	if len(raw) < 1 {
		return []pool.Submission{}, nil
	}

	headerRow := raw[0]
	nameIdx := findColumn(headerRow, "NAME")
	emailIdx := findColumn(headerRow, "MAIL")
	driveIdx := findColumn(headerRow, "DRIVE", "CAR")

	if emailIdx == -1 {
		return nil, fmt.Errorf("%w: email column", ErrMissingHeader)
	}

	submissions := make([]pool.Submission, 0, len(raw)-1)
	for i, row := range raw[1:] {
		if isBlankRow(row) {
			continue
		}

		email := cellString(row, emailIdx)
		stamp := cellString(row, 0)
		submittedAt := model.ParseTimestamp(stamp)
		if submittedAt == nil && stamp != "" {
			logger.Warn("Unparseable submission timestamp, sorting it last",
				zap.Int("row", i+2),
				zap.String("email", email),
				zap.String("timestamp", stamp))
		}

		submissions = append(submissions, pool.Submission{
			Name:         cellString(row, nameIdx),
			Email:        email,
			DriverAnswer: cellString(row, driveIdx),
			SubmittedAt:  submittedAt,
		})
	}

	return submissions, nil
}

func parseEboard(raw [][]interface{}) []model.Member {
	members := []model.Member{}
	if len(raw) < 2 {
		return members
	}

	for _, row := range raw[1:] {
		name := cellString(row, 0)
		email := model.NormalizeEmail(cellString(row, 1))
		if name == "" || email == "" {
			continue
		}
		members = append(members, model.Member{Name: name, Email: email})
	}
	return members
}

// parseRoster searches the first rows for a header row naming all three columns, then reads
// every complete row under it as a rostered applicant
func parseRoster(raw [][]interface{}) ([]model.Applicant, error) {
	headerRowIdx, nameIdx, emailIdx, driveIdx := -1, -1, -1, -1

	for i := 0; i < len(raw) && i < headerSearchRows; i++ {
		n := findColumn(raw[i], "NAME")
		e := findColumn(raw[i], "MAIL")
		d := findColumn(raw[i], "DRIVE")
		if n != -1 && e != -1 && d != -1 {
			headerRowIdx, nameIdx, emailIdx, driveIdx = i, n, e, d
			break
		}
	}

	if headerRowIdx == -1 {
		return nil, fmt.Errorf("%w: no row containing Name, Mail and Drive in the first %d rows",
			ErrMissingHeader, headerSearchRows)
	}

	applicants := []model.Applicant{}
	for _, row := range raw[headerRowIdx+1:] {
		name := cellString(row, nameIdx)
		email := model.NormalizeEmail(cellString(row, emailIdx))
		drive := cellString(row, driveIdx)
		if name == "" || email == "" || drive == "" {
			continue
		}

		applicants = append(applicants, model.Applicant{
			Name:        name,
			Email:       email,
			IsDriver:    model.IsDriverAnswer(drive),
			Gender:      model.GenderUnknown,
			RosterState: model.StateRostered,
		})
	}

	return applicants, nil
}

// findColumn returns the index of the first header cell containing any of the substrings,
// compared case-insensitively, or -1
func findColumn(headerRow []interface{}, substrings ...string) int {
	for i, cell := range headerRow {
		header := strings.ToUpper(fmt.Sprint(cell))
		for _, sub := range substrings {
			if strings.Contains(header, sub) {
				return i
			}
		}
	}
	return -1
}

// cellString returns the trimmed cell at index, or "" when the row is short or index is -1
func cellString(row []interface{}, index int) string {
	if index < 0 || index >= len(row) || row[index] == nil {
		return ""
	}
	if str, ok := row[index].(string); ok {
		return strings.TrimSpace(str)
	}
	return strings.TrimSpace(fmt.Sprint(row[index]))
}

func isBlankRow(row []interface{}) bool {
	for i := range row {
		if cellString(row, i) != "" {
			return false
		}
	}
	return true
}

// CommitmentForm reads commitment responses from one spreadsheet. Logger may be nil.
type CommitmentForm struct {
	Reader        ValuesReader
	SpreadsheetID string
	Logger        *zap.Logger
}

func (f CommitmentForm) Commitments(ctx context.Context) ([]pool.Submission, error) {
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return ReadCommitments(f.Reader, f.SpreadsheetID, logger)
}

// EboardSheet reads the eboard membership list
type EboardSheet struct {
	Reader        ValuesReader
	SpreadsheetID string
}

func (s EboardSheet) Eboard(ctx context.Context) ([]model.Member, error) {
	return ReadEboard(s.Reader, s.SpreadsheetID)
}

// FilledRoster reads a finished roster by its header row, for settling priorities after a trip
type FilledRoster struct {
	Reader        ValuesReader
	SpreadsheetID string
}

func (r FilledRoster) Read(ctx context.Context) ([]model.Applicant, error) {
	return ReadRoster(r.Reader, r.SpreadsheetID)
}
