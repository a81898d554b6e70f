package sheetsclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jakechorley/autoroster/pkg/core/model"
)

type mockSheetsClient struct {
	values    map[string][][]interface{}
	getErr    error
	gotRanges []string
	updates   [][]RangeValues
	cleared   [][]string
	updateErr error
	clearErr  error
}

func (m *mockSheetsClient) GetValues(spreadsheetID, sheetRange string) ([][]interface{}, error) {
	m.gotRanges = append(m.gotRanges, sheetRange)
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.values[sheetRange], nil
}

func (m *mockSheetsClient) BatchUpdateValues(spreadsheetID string, data []RangeValues) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates = append(m.updates, data)
	return nil
}

func (m *mockSheetsClient) ClearValues(spreadsheetID string, ranges ...string) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	m.cleared = append(m.cleared, ranges)
	return nil
}

func TestParseCommitments(t *testing.T) {
	raw := [][]interface{}{
		{"Timestamp", "Full Name", "Email Address", "Can you bring a car?"},
		{"1/15/2026 14:03:11", "Ada Lovelace", " ADA@binghamton.edu ", "Yes"},
		{"", "No Time", "notime@binghamton.edu", "no"},
		{"", "", "", ""},
		{"1/15/2026 14:05:00", "Short Row", "short@binghamton.edu"},
	}

	subs, err := parseCommitments(raw, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, subs, 3, "blank rows are dropped")

	assert.Equal(t, "Ada Lovelace", subs[0].Name)
	assert.Equal(t, "ADA@binghamton.edu", subs[0].Email, "normalization is left to the pool builder")
	assert.Equal(t, "Yes", subs[0].DriverAnswer)
	require.NotNil(t, subs[0].SubmittedAt)
	assert.Equal(t, time.Date(2026, 1, 15, 14, 3, 11, 0, time.UTC), *subs[0].SubmittedAt)

	assert.Nil(t, subs[1].SubmittedAt)
	assert.Equal(t, "", subs[2].DriverAnswer)
}

func TestParseCommitments_WarnsOnUnparseableTimestamp(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	raw := [][]interface{}{
		{"Timestamp", "Name", "Email", "Drive"},
		{"yesterday afternoon", "Bad Time", "bad@x.edu", "No"},
		{"", "No Time", "notime@x.edu", "No"},
		{"2026-01-15", "Good Time", "good@x.edu", "No"},
	}

	subs, err := parseCommitments(raw, zap.New(core))
	require.NoError(t, err)
	require.Len(t, subs, 3)
	assert.Nil(t, subs[0].SubmittedAt)
	assert.Nil(t, subs[1].SubmittedAt)
	assert.NotNil(t, subs[2].SubmittedAt)

	// A blank timestamp is expected and stays quiet
	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(2), fields["row"])
	assert.Equal(t, "bad@x.edu", fields["email"])
	assert.Equal(t, "yesterday afternoon", fields["timestamp"])
}

func TestParseCommitments_DriveOrCarHeader(t *testing.T) {
	raw := [][]interface{}{
		{"Timestamp", "Name", "Mail", "Will you drive?"},
		{"", "A", "a@x.edu", "y"},
	}
	subs, err := parseCommitments(raw, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "y", subs[0].DriverAnswer)
}

func TestParseCommitments_MissingEmailHeader(t *testing.T) {
	_, err := parseCommitments([][]interface{}{{"Timestamp", "Name", "Drive"}}, zap.NewNop())
	assert.ErrorIs(t, err, ErrMissingHeader)

	subs, err := parseCommitments(nil, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestParseEboard(t *testing.T) {
	raw := [][]interface{}{
		{"Name", "Email"},
		{"Grace Hopper", " Grace@Binghamton.edu"},
		{"No Email"},
		{"", "nobody@binghamton.edu"},
	}

	members := parseEboard(raw)
	assert.Equal(t, []model.Member{{Name: "Grace Hopper", Email: "grace@binghamton.edu"}}, members)
	assert.Empty(t, parseEboard([][]interface{}{{"Name", "Email"}}))
}

func TestParseRoster_FindsHeaderRow(t *testing.T) {
	raw := [][]interface{}{
		{"Spring Trip"},
		{},
		{"Full Name", "First", "Last", "Email", "Short", "Driver?"},
		{"Ada Lovelace", "Ada", "Lovelace", "ADA@binghamton.edu", "Lovelace A", "Yes"},
		{"Incomplete Row", "", "", "inc@binghamton.edu"},
		{"Alan Turing", "", "", "alan@binghamton.edu", "", "no"},
	}

	people, err := parseRoster(raw)
	require.NoError(t, err)
	require.Len(t, people, 2)

	assert.Equal(t, "ada@binghamton.edu", people[0].Email)
	assert.True(t, people[0].IsDriver)
	assert.Equal(t, model.StateRostered, people[0].RosterState)
	assert.False(t, people[1].IsDriver)
}

func TestParseRoster_NoHeader(t *testing.T) {
	raw := make([][]interface{}, 60)
	for i := range raw {
		raw[i] = []interface{}{"x"}
	}
	raw[55] = []interface{}{"Name", "Email", "Drive"}

	_, err := parseRoster(raw)
	assert.ErrorIs(t, err, ErrMissingHeader, "header below the search window is not found")
}

func TestReadCommitments_ReadsFirstSheet(t *testing.T) {
	client := &mockSheetsClient{values: map[string][][]interface{}{
		firstSheetRange: {{"Timestamp", "Name", "Email", "Drive"}, {"", "A", "a@x.edu", "No"}},
	}}

	subs, err := ReadCommitments(client, "sheet", zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, subs, 1)
	assert.Equal(t, []string{firstSheetRange}, client.gotRanges)

	client.getErr = errors.New("quota")
	_, err = ReadEboard(client, "sheet")
	assert.ErrorContains(t, err, "failed to get eboard data")
}

func TestFindColumn(t *testing.T) {
	header := []interface{}{"Timestamp", "Name", "Email", nil, "Car?"}
	assert.Equal(t, 1, findColumn(header, "NAME"))
	assert.Equal(t, 2, findColumn(header, "MAIL"))
	assert.Equal(t, 4, findColumn(header, "DRIVE", "CAR"))
	assert.Equal(t, -1, findColumn(header, "PHONE"))
}

func TestSourceAdapters(t *testing.T) {
	client := &mockSheetsClient{values: map[string][][]interface{}{
		firstSheetRange: {
			{"Name", "Email", "Drive"},
			{"Grace Hopper", "grace@x.edu", "yes"},
		},
	}}
	ctx := context.Background()

	members, err := EboardSheet{Reader: client, SpreadsheetID: "eboard"}.Eboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Member{{Name: "Grace Hopper", Email: "grace@x.edu"}}, members)

	subs, err := CommitmentForm{Reader: client, SpreadsheetID: "form"}.Commitments(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "yes", subs[0].DriverAnswer)

	people, err := FilledRoster{Reader: client, SpreadsheetID: "roster"}.Read(ctx)
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.True(t, people[0].IsDriver)
}
