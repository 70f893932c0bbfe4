package models

import "github.com/thenoetrevino/tablero/internal/types"

// Column represents a kanban board column (e.g., "Todo", "In Progress", "Done").
// Positions are 0-based and dense within a board.
type Column struct {
	ID       types.ColumnID `json:"id"`
	BoardID  types.BoardID  `json:"board_id"`
	Title    string         `json:"title"`
	WipLimit int            `json:"wip_limit"` // 0 = unlimited
	Position int            `json:"position"`
}

// Unlimited reports whether the column has no WIP limit
func (c Column) Unlimited() bool {
	return c.WipLimit == 0
}
