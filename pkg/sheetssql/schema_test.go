package sheetssql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestLedgerRow struct {
	Email    string `ssql_header:"email" ssql_type:"text"`
	Name     string `ssql_header:"name" ssql_type:"text"`
	Priority int    `ssql_header:"priority" ssql_type:"int"`
}

func TestSchemaFromModels(t *testing.T) {
	schema, err := SchemaFromModels(TestLedgerRow{}, &TestEntry{})
	require.NoError(t, err)
	require.Len(t, schema.Tables, 2)

	table := schema.Tables[0]
	assert.Equal(t, "test_ledger_row", table.Name)
	assert.Equal(t, []Column{
		{Name: "email", Type: "text"},
		{Name: "name", Type: "text"},
		{Name: "priority", Type: "int"},
	}, table.Columns)

	assert.Equal(t, "test_entry", schema.Tables[1].Name)
	assert.Len(t, schema.Tables[1].Columns, 5)

	got, ok := schema.Table("test_entry")
	assert.True(t, ok)
	assert.Equal(t, schema.Tables[1], got)
	_, ok = schema.Table("missing")
	assert.False(t, ok)
}

func TestSchemaFromModels_Errors(t *testing.T) {
	type MissingHeader struct {
		ID string `ssql_type:"uuid"`
	}
	type MissingType struct {
		ID string `ssql_header:"id"`
	}

	_, err := SchemaFromModels(MissingHeader{})
	assert.ErrorContains(t, err, "missing 'ssql_header' tag")

	_, err = SchemaFromModels(MissingType{})
	assert.ErrorContains(t, err, "missing 'ssql_type' tag")

	_, err = SchemaFromModels("not a struct")
	assert.ErrorContains(t, err, "must be a struct")
}

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"PriorityEntry", "priority_entry"},
		{"GenderRecord", "gender_record"},
		{"UUID", "u_u_i_d"},
		{"simple", "simple"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, toSnakeCase(tt.input))
		})
	}
}

func TestNewDB_CreatesMissingTables(t *testing.T) {
	var appended [][]interface{}
	client := &mockSheetsClient{
		titles: []string{"Sheet1"},
		appendRowsFunc: func(spreadsheetID, sheetRange string, values [][]interface{}) error {
			assert.Equal(t, "test_ledger_row", sheetRange)
			appended = values
			return nil
		},
	}
	schema, err := SchemaFromModels(TestLedgerRow{})
	require.NoError(t, err)

	_, err = NewDB(client, "db", schema)
	require.NoError(t, err)

	assert.Equal(t, []string{"test_ledger_row"}, client.created)
	assert.Equal(t, [][]interface{}{
		{"email", "name", "priority"},
		{"text", "text", "int"},
	}, appended)
}

func TestNewDB_FillsEmptyTab(t *testing.T) {
	appendCalls := 0
	client := &mockSheetsClient{
		titles: []string{"test_ledger_row"},
		getValuesFunc: func(spreadsheetID, sheetRange string) ([][]interface{}, error) {
			assert.Equal(t, "test_ledger_row!A1:ZZ2", sheetRange)
			return nil, nil
		},
		appendRowsFunc: func(string, string, [][]interface{}) error {
			appendCalls++
			return nil
		},
	}
	schema, err := SchemaFromModels(TestLedgerRow{})
	require.NoError(t, err)

	_, err = NewDB(client, "db", schema)
	require.NoError(t, err)
	assert.Empty(t, client.created)
	assert.Equal(t, 1, appendCalls)
}

func TestNewDB_SchemaMismatch(t *testing.T) {
	tests := []struct {
		name    string
		values  [][]interface{}
		wantErr string
	}{
		{
			name:    "missing type row",
			values:  [][]interface{}{{"email", "name", "priority"}},
			wantErr: "missing header or type row",
		},
		{
			name:    "wrong column count",
			values:  [][]interface{}{{"email", "name"}, {"text", "text"}},
			wantErr: "expected 3 columns, found 2",
		},
		{
			name:    "renamed column",
			values:  [][]interface{}{{"email", "full_name", "priority"}, {"text", "text", "int"}},
			wantErr: "expected header 'name'",
		},
		{
			name:    "wrong type",
			values:  [][]interface{}{{"email", "name", "priority"}, {"text", "text", "text"}},
			wantErr: "expected type 'int'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockSheetsClient{
				titles: []string{"test_ledger_row"},
				getValuesFunc: func(string, string) ([][]interface{}, error) {
					return tt.values, nil
				},
			}
			schema, err := SchemaFromModels(TestLedgerRow{})
			require.NoError(t, err)

			_, err = NewDB(client, "db", schema)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "schema mismatch")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
