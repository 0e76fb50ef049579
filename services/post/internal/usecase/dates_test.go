package usecase

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDate("2026-03-01T09:30:00+07:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 2, 30, 0, 0, time.UTC), d.UTC())

	_, err = ParseDate("01/03/2026")
	assert.Error(t, err)
}

func TestCreatePostInput_AcceptsPlainDates(t *testing.T) {
	var in CreatePostInput
	err := json.Unmarshal([]byte(`{
		"caption": "Open day",
		"start_date": "2026-03-01",
		"end_date": "2026-03-05T00:00:00Z",
		"approver_ids": ["a", "b"],
		"budget": 120.5
	}`), &in)
	require.NoError(t, err)

	assert.Equal(t, "Open day", in.Caption)
	assert.Equal(t, []string{"a", "b"}, in.ApproverIDs)
	require.NotNil(t, in.Budget)
	assert.Equal(t, 120.5, *in.Budget)
	require.NotNil(t, in.StartDate)
	require.NotNil(t, in.EndDate)
	assert.True(t, in.StartDate.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, in.EndDate.Equal(time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)))
}

func TestCreatePostInput_MissingAndBadDates(t *testing.T) {
	var in CreatePostInput
	require.NoError(t, json.Unmarshal([]byte(`{"caption": "x", "end_date": null}`), &in))
	assert.Nil(t, in.StartDate)
	assert.Nil(t, in.EndDate)

	assert.Error(t, json.Unmarshal([]byte(`{"start_date": "next week"}`), &in))
}

func TestUpdatePostInput_AcceptsPlainDates(t *testing.T) {
	var in UpdatePostInput
	require.NoError(t, json.Unmarshal([]byte(`{"caption": "New", "end_date": "2026-04-10"}`), &in))

	require.NotNil(t, in.Caption)
	assert.Equal(t, "New", *in.Caption)
	assert.Nil(t, in.StartDate)
	require.NotNil(t, in.EndDate)
	assert.True(t, in.EndDate.Equal(time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)))
}
