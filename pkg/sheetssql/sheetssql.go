package sheetssql

import (
	"fmt"
	"maps"
	"slices"

	"github.com/jakechorley/autoroster/pkg/clients/sheetsclient"
)

// SheetsClient defines the interface for sheets operations
type SheetsClient interface {
	GetValues(spreadsheetID, sheetRange string) ([][]interface{}, error)
	AppendRows(spreadsheetID, sheetRange string, values [][]interface{}) error
	BatchUpdateRawValues(spreadsheetID string, data []sheetsclient.RangeValues) error
	CreateSheet(spreadsheetID, sheetTitle string) (int64, error)
	SheetTitles(spreadsheetID string) ([]string, error)
}

// Column defines a column with name and type
type Column struct {
	Name string
	Type string // e.g., "text", "int", "bool", "uuid", "timestamp"
}

// TableSchema defines the structure of a table
type TableSchema struct {
	Name    string
	Columns []Column
}

// Schema defines the database schema
type Schema struct {
	Tables []TableSchema
}

// Table returns the schema for a table by name
func (s *Schema) Table(name string) (TableSchema, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableSchema{}, false
}

// DB represents a connection to a Google Sheets "database"
type DB struct {
	client        SheetsClient
	spreadsheetID string
	schema        *Schema
}

// NewDB creates a new Sheets SQL database connection and ensures schema exists
func NewDB(client SheetsClient, spreadsheetID string, schema *Schema) (*DB, error) {
	db := &DB{
		client:        client,
		spreadsheetID: spreadsheetID,
		schema:        schema,
	}

	if err := db.ensureSchema(); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return db, nil
}

// SpreadsheetID returns the database spreadsheet ID
func (db *DB) SpreadsheetID() string {
	return db.spreadsheetID
}

// InsertRows appends multiple rows to the specified table
func (db *DB) InsertRows(tableName string, rows [][]interface{}) error {
	return db.client.AppendRows(db.spreadsheetID, tableName, rows)
}

// UpdateRows overwrites whole rows of a table, keyed by sheet row number
func (db *DB) UpdateRows(tableName string, rows map[int][]interface{}) error {
	if len(rows) == 0 {
		return nil
	}

	data := make([]sheetsclient.RangeValues, 0, len(rows))
	for _, rowNum := range slices.Sorted(maps.Keys(rows)) {
		row := rows[rowNum]
		if rowNum < firstDataRow {
			return fmt.Errorf("row %d is not a data row", rowNum)
		}
		data = append(data, sheetsclient.RangeValues{
			Range:  fmt.Sprintf("%s!A%d:%s%d", tableName, rowNum, columnLetter(len(row)-1), rowNum),
			Values: [][]interface{}{row},
		})
	}

	return db.client.BatchUpdateRawValues(db.spreadsheetID, data)
}

// columnLetter converts a zero-based column index to its A1 letters
func columnLetter(index int) string {
	letters := ""
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		letters = string(rune('A'+(n-1)%26)) + letters
	}
	return letters
}
