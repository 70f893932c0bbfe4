package models

import (
	"slices"
	"time"

	"github.com/thenoetrevino/tablero/internal/types"
)

// Card is a unit of work resident in exactly one column
type Card struct {
	ID          types.CardID       `json:"id"`
	ColumnID    types.ColumnID     `json:"column_id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Priority    Priority           `json:"priority"`
	DueDate     *time.Time         `json:"due_date,omitempty"`
	MilestoneID *types.MilestoneID `json:"milestone_id,omitempty"`
	Assignees   []types.UserID     `json:"assignees"`
	Labels      []types.LabelID    `json:"labels"`
	Position    int                `json:"position"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Clone returns a deep copy of the card so snapshots never share slices or
// pointers with each other.
func (c Card) Clone() Card {
	out := c
	if c.DueDate != nil {
		due := *c.DueDate
		out.DueDate = &due
	}
	if c.MilestoneID != nil {
		ms := *c.MilestoneID
		out.MilestoneID = &ms
	}
	out.Assignees = slices.Clone(c.Assignees)
	out.Labels = slices.Clone(c.Labels)
	return out
}
