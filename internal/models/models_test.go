package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thenoetrevino/tablero/internal/types"
)

// ============================================================================
// Error Tests
// ============================================================================

func TestErrors_Unique(t *testing.T) {
	all := []error{ErrNotFound, ErrWipLimitExceeded, ErrTransactionConflict, ErrColumnNotEmpty, ErrInvalidInput}
	for i, a := range all {
		for j, b := range all {
			if i != j && errors.Is(a, b) {
				t.Errorf("%v should not match %v", a, b)
			}
		}
	}
}

func TestWipLimitError_Unwrap(t *testing.T) {
	err := error(&WipLimitError{ColumnID: 4, Limit: 2, Count: 2})

	assert.ErrorIs(t, err, ErrWipLimitExceeded)
	assert.Equal(t, "column 4 is at its wip limit (2/2)", err.Error())

	var wipErr *WipLimitError
	require.ErrorAs(t, err, &wipErr)
	assert.Equal(t, types.ColumnID(4), wipErr.ColumnID)
}

// ============================================================================
// Priority Tests
// ============================================================================

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in      string
		want    Priority
		wantErr bool
	}{
		{"low", PriorityLow, false},
		{"Medium", PriorityMedium, false},
		{" HIGH ", PriorityHigh, false},
		{"urgent", PriorityUrgent, false},
		{"critical", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParsePriority(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestPriority_JSON(t *testing.T) {
	data, err := json.Marshal(PriorityUrgent)
	require.NoError(t, err)
	assert.Equal(t, `"urgent"`, string(data))

	var p Priority
	require.NoError(t, json.Unmarshal([]byte(`"low"`), &p))
	assert.Equal(t, PriorityLow, p)

	assert.Error(t, json.Unmarshal([]byte(`"someday"`), &p))

	_, err = json.Marshal(Priority(0))
	assert.Error(t, err)
}

// ============================================================================
// Card Tests
// ============================================================================

func TestCard_CloneIsDeep(t *testing.T) {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ms := types.MilestoneID(9)
	card := Card{
		ID:          1,
		Title:       "ship it",
		DueDate:     &due,
		MilestoneID: &ms,
		Assignees:   []types.UserID{"ana"},
		Labels:      []types.LabelID{3},
	}

	clone := card.Clone()
	clone.Assignees[0] = "bo"
	clone.Labels[0] = 4
	*clone.DueDate = due.AddDate(0, 0, 1)
	*clone.MilestoneID = 10

	assert.Equal(t, types.UserID("ana"), card.Assignees[0])
	assert.Equal(t, types.LabelID(3), card.Labels[0])
	assert.Equal(t, due, *card.DueDate)
	assert.Equal(t, types.MilestoneID(9), *card.MilestoneID)
}

func TestColumn_Unlimited(t *testing.T) {
	assert.True(t, Column{WipLimit: 0}.Unlimited())
	assert.False(t, Column{WipLimit: 3}.Unlimited())
}
