package models

import (
	"time"

	"github.com/thenoetrevino/tablero/internal/types"
)

// Board is a single project's kanban surface. Columns are ordered by their
// dense Position field.
type Board struct {
	ID        types.BoardID   `json:"id"`
	ProjectID types.ProjectID `json:"project_id"`
	Title     string          `json:"title"`
	CreatedAt time.Time       `json:"created_at"`
}

// BoardDetail is a committed board with its ordered columns and, for each
// column, its ordered cards. It is what a client loads on a full refresh.
type BoardDetail struct {
	Board   Board          `json:"board"`
	Columns []ColumnDetail `json:"columns"`
}

// ColumnDetail pairs a column with its cards in position order
type ColumnDetail struct {
	Column
	Cards []Card `json:"cards"`
}

// Actor identifies who issued a mutation. User comes from the external
// authentication layer; Session names the client connection so that a
// client can recognize echoes of its own mutations.
type Actor struct {
	User    types.UserID `json:"user"`
	Session string       `json:"session,omitempty"`
}
