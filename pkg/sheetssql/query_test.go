package sheetssql

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/autoroster/pkg/clients/sheetsclient"
)

type mockSheetsClient struct {
	getValuesFunc  func(spreadsheetID, sheetRange string) ([][]interface{}, error)
	appendRowsFunc func(spreadsheetID, sheetRange string, values [][]interface{}) error
	titles         []string
	created        []string
	updates        []sheetsclient.RangeValues
}

func (m *mockSheetsClient) GetValues(spreadsheetID, sheetRange string) ([][]interface{}, error) {
	if m.getValuesFunc != nil {
		return m.getValuesFunc(spreadsheetID, sheetRange)
	}
	return nil, nil
}

func (m *mockSheetsClient) AppendRows(spreadsheetID, sheetRange string, values [][]interface{}) error {
	if m.appendRowsFunc != nil {
		return m.appendRowsFunc(spreadsheetID, sheetRange, values)
	}
	return nil
}

func (m *mockSheetsClient) BatchUpdateRawValues(spreadsheetID string, data []sheetsclient.RangeValues) error {
	m.updates = append(m.updates, data...)
	return nil
}

func (m *mockSheetsClient) CreateSheet(spreadsheetID, sheetTitle string) (int64, error) {
	m.created = append(m.created, sheetTitle)
	return int64(len(m.created)), nil
}

func (m *mockSheetsClient) SheetTitles(spreadsheetID string) ([]string, error) {
	return m.titles, nil
}

type TestEntry struct {
	ID       string    `ssql_header:"id" ssql_type:"uuid"`
	Email    string    `ssql_header:"email" ssql_type:"text"`
	Priority int       `ssql_header:"priority" ssql_type:"int"`
	Active   bool      `ssql_header:"active" ssql_type:"bool"`
	Created  time.Time `ssql_header:"created_at" ssql_type:"timestamp"`
}

func testDB(client *mockSheetsClient) *DB {
	return &DB{client: client, spreadsheetID: "db"}
}

func TestSetFieldValue(t *testing.T) {
	var s TestEntry
	v := reflect.ValueOf(&s).Elem()

	require.NoError(t, setFieldValue(v.FieldByName("Email"), "a@x.edu"))
	require.NoError(t, setFieldValue(v.FieldByName("Priority"), "-2"))
	require.NoError(t, setFieldValue(v.FieldByName("Active"), "TRUE"))
	require.NoError(t, setFieldValue(v.FieldByName("Created"), "2026-03-01T10:00:00Z"))

	assert.Equal(t, "a@x.edu", s.Email)
	assert.Equal(t, -2, s.Priority)
	assert.True(t, s.Active)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), s.Created)

	require.NoError(t, setFieldValue(v.FieldByName("Priority"), ""))
	assert.Equal(t, 0, s.Priority)
}

func TestSetFieldValue_Errors(t *testing.T) {
	var s TestEntry
	v := reflect.ValueOf(&s).Elem()

	assert.ErrorContains(t, setFieldValue(v.FieldByName("Priority"), "lots"), "failed to parse int")
	assert.ErrorContains(t, setFieldValue(v.FieldByName("Active"), "maybe"), "failed to parse bool")
	assert.ErrorContains(t, setFieldValue(v.FieldByName("Created"), "yesterday"), "failed to parse time")
	assert.ErrorContains(t, setFieldValue(v.FieldByName("Email"), 42), "not a string")
}

func TestGetTableRows(t *testing.T) {
	client := &mockSheetsClient{
		getValuesFunc: func(spreadsheetID, sheetRange string) ([][]interface{}, error) {
			assert.Equal(t, "test_entry", sheetRange)
			return [][]interface{}{
				{"id", "email", "priority", "active", "created_at", "notes"},
				{"uuid", "text", "int", "bool", "timestamp", "text"},
				{"1", "a@x.edu", "3", "true", "", "extra column is ignored"},
				{"2", "b@x.edu"},
			}, nil
		},
	}

	rows, err := GetTableRows[TestEntry](testDB(client), "test_entry")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 3, rows[0].Number)
	assert.Equal(t, TestEntry{ID: "1", Email: "a@x.edu", Priority: 3, Active: true}, rows[0].Value)
	assert.Equal(t, 4, rows[1].Number)
	assert.Equal(t, "b@x.edu", rows[1].Value.Email)
	assert.Equal(t, 0, rows[1].Value.Priority)
}

func TestGetTableAs_EmptyAndErrors(t *testing.T) {
	client := &mockSheetsClient{
		getValuesFunc: func(string, string) ([][]interface{}, error) {
			return [][]interface{}{{"id"}, {"uuid"}}, nil
		},
	}
	entries, err := GetTableAs[TestEntry](testDB(client), "test_entry")
	require.NoError(t, err)
	assert.Empty(t, entries)

	client.getValuesFunc = func(string, string) ([][]interface{}, error) {
		return [][]interface{}{
			{"priority"},
			{"int"},
			{"high"},
		}, nil
	}
	_, err = GetTableAs[TestEntry](testDB(client), "test_entry")
	assert.ErrorContains(t, err, "row 3, column priority")

	client.getValuesFunc = func(string, string) ([][]interface{}, error) {
		return nil, errors.New("quota exceeded")
	}
	_, err = GetTableAs[TestEntry](testDB(client), "test_entry")
	assert.ErrorContains(t, err, "failed to get table test_entry")
}

func TestInsertModels(t *testing.T) {
	var gotRange string
	var gotValues [][]interface{}
	client := &mockSheetsClient{
		appendRowsFunc: func(spreadsheetID, sheetRange string, values [][]interface{}) error {
			gotRange = sheetRange
			gotValues = values
			return nil
		},
	}

	created := time.Date(2026, 3, 1, 5, 0, 0, 0, time.FixedZone("EST", -5*3600))
	err := InsertModels(testDB(client), []TestEntry{
		{ID: "1", Email: "a@x.edu", Priority: 2, Active: true, Created: created},
		{ID: "2", Email: "b@x.edu"},
	})
	require.NoError(t, err)

	assert.Equal(t, "test_entry", gotRange)
	assert.Equal(t, [][]interface{}{
		{"1", "a@x.edu", 2, true, "2026-03-01T10:00:00Z"},
		{"2", "b@x.edu", 0, false, ""},
	}, gotValues)
}

func TestInsertModels_Empty(t *testing.T) {
	client := &mockSheetsClient{
		appendRowsFunc: func(string, string, [][]interface{}) error {
			t.Fatal("nothing should be appended")
			return nil
		},
	}
	assert.NoError(t, InsertModels(testDB(client), []TestEntry{}))
}

func TestUpdateModels(t *testing.T) {
	client := &mockSheetsClient{}

	err := UpdateModels(testDB(client), []Row[TestEntry]{
		{Number: 7, Value: TestEntry{ID: "7", Email: "g@x.edu", Priority: 1}},
		{Number: 3, Value: TestEntry{ID: "3", Email: "c@x.edu", Priority: 0}},
	})
	require.NoError(t, err)

	require.Len(t, client.updates, 2)
	assert.Equal(t, "test_entry!A3:E3", client.updates[0].Range, "rows are written in sheet order")
	assert.Equal(t, [][]interface{}{{"3", "c@x.edu", 0, false, ""}}, client.updates[0].Values)
	assert.Equal(t, "test_entry!A7:E7", client.updates[1].Range)
}

func TestUpdateRows_RejectsHeaderRows(t *testing.T) {
	err := testDB(&mockSheetsClient{}).UpdateRows("test_entry", map[int][]interface{}{2: {"x"}})
	assert.ErrorContains(t, err, "not a data row")
}
