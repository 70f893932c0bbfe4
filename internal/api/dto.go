package api

import (
	"time"

	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/types"
)

// Request bodies. Pointer fields are optional.

type createBoardBody struct {
	ProjectID types.ProjectID `json:"project_id"`
	Title     string          `json:"title"`
	Columns   []string        `json:"columns,omitempty"`
}

type createColumnBody struct {
	Title    string `json:"title"`
	WipLimit int    `json:"wip_limit"`
	Position *int   `json:"position,omitempty"`
}

type updateColumnBody struct {
	Title    *string `json:"title,omitempty"`
	WipLimit *int    `json:"wip_limit,omitempty"`
}

type positionBody struct {
	Position int `json:"position"`
}

type createCardBody struct {
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Priority    *models.Priority   `json:"priority,omitempty"`
	DueDate     *time.Time         `json:"due_date,omitempty"`
	MilestoneID *types.MilestoneID `json:"milestone_id,omitempty"`
	Assignees   []types.UserID     `json:"assignees,omitempty"`
	Labels      []types.LabelID    `json:"labels,omitempty"`
	ClientRef   string             `json:"client_ref,omitempty"`
}

type updateCardBody struct {
	Title          *string            `json:"title,omitempty"`
	Description    *string            `json:"description,omitempty"`
	Priority       *models.Priority   `json:"priority,omitempty"`
	DueDate        *time.Time         `json:"due_date,omitempty"`
	ClearDueDate   bool               `json:"clear_due_date,omitempty"`
	MilestoneID    *types.MilestoneID `json:"milestone_id,omitempty"`
	ClearMilestone bool               `json:"clear_milestone,omitempty"`
	Assignees      *[]types.UserID    `json:"assignees,omitempty"`
	Labels         *[]types.LabelID   `json:"labels,omitempty"`
}

type moveCardBody struct {
	ColumnID types.ColumnID `json:"column_id"`
	Position int            `json:"position"`
}
