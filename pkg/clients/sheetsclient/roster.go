package sheetsclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/jakechorley/autoroster/internal/config"
	"github.com/jakechorley/autoroster/pkg/core/roster"
)

// Helper columns on the roster template, derived from the name column
const (
	firstNameColumn = "B"
	surnameColumn   = "C"
	shortNameColumn = "E"

	namePlaceholder = "Paste Full Name into Column %s"
)

// RosterClient is the subset of Client a RosterSheet needs
type RosterClient interface {
	ValuesReader
	BatchUpdateValues(spreadsheetID string, data []RangeValues) error
	ClearValues(spreadsheetID string, ranges ...string) error
}

// RosterSheet is a positional roster: fixed name, email and drive columns between two rows.
// It implements roster.Sheet.
type RosterSheet struct {
	client        RosterClient
	spreadsheetID string
	layout        config.RosterLayout
}

var _ roster.Sheet = (*RosterSheet)(nil)

func NewRosterSheet(client RosterClient, spreadsheetID string, layout config.RosterLayout) *RosterSheet {
	return &RosterSheet{
		client:        client,
		spreadsheetID: spreadsheetID,
		layout:        layout,
	}
}

// ReadRows returns one Row per sheet row in the data range, blank rows included
func (s *RosterSheet) ReadRows(ctx context.Context) ([]roster.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	first, last := s.columnSpan()
	values, err := s.client.GetValues(s.spreadsheetID,
		s.a1(fmt.Sprintf("%s%d:%s%d", columnLetter(first), s.layout.StartRow, columnLetter(last), s.layout.LastRow)))
	if err != nil {
		return nil, fmt.Errorf("failed to read roster rows: %w", err)
	}

	nameIdx := columnIndex(s.layout.NameColumn) - first
	emailIdx := columnIndex(s.layout.EmailColumn) - first
	driveIdx := columnIndex(s.layout.DriveColumn) - first

	// The API omits trailing blank rows and cells
	rows := make([]roster.Row, s.rowCount())
	for i := range rows {
		if i >= len(values) {
			break
		}
		rows[i] = roster.Row{
			Name:  cellString(values[i], nameIdx),
			Email: cellString(values[i], emailIdx),
			Drive: cellString(values[i], driveIdx),
		}
	}

	return rows, nil
}

// WriteRows sets the name, email and drive cells of each placed row in a single request
func (s *RosterSheet) WriteRows(ctx context.Context, rows []roster.PlacedRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data := make([]RangeValues, 0, len(rows)*3)
	for _, r := range rows {
		if r.Index < 0 || r.Index >= s.rowCount() {
			return fmt.Errorf("row index %d outside roster range", r.Index)
		}
		rowNum := s.layout.StartRow + r.Index
		data = append(data,
			s.cell(s.layout.NameColumn, rowNum, r.Row.Name),
			s.cell(s.layout.EmailColumn, rowNum, r.Row.Email),
			s.cell(s.layout.DriveColumn, rowNum, r.Row.Drive),
		)
	}

	if err := s.client.BatchUpdateValues(s.spreadsheetID, data); err != nil {
		return fmt.Errorf("failed to write roster rows: %w", err)
	}
	return nil
}

// ClearRows blanks the name, email and drive columns. With ResetFormulas the helper columns
// are rewritten so a roster pasted from a template works again.
func (s *RosterSheet) ClearRows(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ranges := []string{
		s.columnRange(s.layout.NameColumn),
		s.columnRange(s.layout.EmailColumn),
		s.columnRange(s.layout.DriveColumn),
	}
	if err := s.client.ClearValues(s.spreadsheetID, ranges...); err != nil {
		return fmt.Errorf("failed to clear roster columns: %w", err)
	}

	if !s.layout.ResetFormulas {
		return nil
	}

	if err := s.client.BatchUpdateValues(s.spreadsheetID, s.formulaRanges()); err != nil {
		return fmt.Errorf("failed to reset roster formulas: %w", err)
	}
	return nil
}

func (s *RosterSheet) formulaRanges() []RangeValues {
	name := s.layout.NameColumn
	placeholder := fmt.Sprintf(namePlaceholder, name)
	first := make([][]interface{}, 0, s.rowCount())
	surname := make([][]interface{}, 0, s.rowCount())
	short := make([][]interface{}, 0, s.rowCount())

	for row := s.layout.StartRow; row <= s.layout.LastRow; row++ {
		first = append(first, []interface{}{
			fmt.Sprintf(`=IFERROR(LEFT(%s%d,SEARCH(" ",%s%d)),"%s")`, name, row, name, row, placeholder),
		})
		surname = append(surname, []interface{}{
			fmt.Sprintf(`=REPLACE(%s%d,1,LEN(%s%d),"")`, name, row, firstNameColumn, row),
		})
		short = append(short, []interface{}{
			fmt.Sprintf(`=IF(%s%d="%s","",%s%d&" "&LEFT(%s%d,1))`,
				firstNameColumn, row, placeholder, surnameColumn, row, firstNameColumn, row),
		})
	}

	return []RangeValues{
		{Range: s.columnRange(firstNameColumn), Values: first},
		{Range: s.columnRange(surnameColumn), Values: surname},
		{Range: s.columnRange(shortNameColumn), Values: short},
	}
}

func (s *RosterSheet) rowCount() int {
	return s.layout.LastRow - s.layout.StartRow + 1
}

// columnSpan returns the zero-based indexes of the leftmost and rightmost tracked columns
func (s *RosterSheet) columnSpan() (int, int) {
	first, last := -1, -1
	for _, col := range []string{s.layout.NameColumn, s.layout.EmailColumn, s.layout.DriveColumn} {
		idx := columnIndex(col)
		if first == -1 || idx < first {
			first = idx
		}
		if idx > last {
			last = idx
		}
	}
	return first, last
}

func (s *RosterSheet) columnRange(column string) string {
	return s.a1(fmt.Sprintf("%s%d:%s%d", column, s.layout.StartRow, column, s.layout.LastRow))
}

func (s *RosterSheet) cell(column string, row int, value string) RangeValues {
	return RangeValues{
		Range:  s.a1(fmt.Sprintf("%s%d", column, row)),
		Values: [][]interface{}{{value}},
	}
}

// a1 prefixes the tab name when the layout names one; otherwise the first tab is used
func (s *RosterSheet) a1(r string) string {
	if s.layout.Tab == "" {
		return r
	}
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(s.layout.Tab, "'", "''"), r)
}

// columnIndex converts a column letter ("A", "AB") to a zero-based index
func columnIndex(column string) int {
	idx := 0
	for _, r := range strings.ToUpper(column) {
		idx = idx*26 + int(r-'A'+1)
	}
	return idx - 1
}

func columnLetter(index int) string {
	letters := ""
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		letters = string(rune('A'+(n-1)%26)) + letters
	}
	return letters
}
