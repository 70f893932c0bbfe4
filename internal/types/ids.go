package types

import "strconv"

// ID types give semantic meaning to the integers flowing through the board
// engine. Card IDs may be negative on a client: those are optimistic
// placeholders that have not been assigned by the store yet.

// ProjectID identifies the project that owns a board. Projects live outside
// the board engine; only the reference is stored.
type ProjectID int

// BoardID identifies a kanban board
type BoardID int

// ColumnID identifies a column within a board
type ColumnID int

// CardID identifies a card. Negative values are client-side placeholders.
type CardID int

// LabelID references an externally managed label
type LabelID int

// MilestoneID references an externally managed milestone
type MilestoneID int

// UserID identifies an already-authenticated user
type UserID string

// IsPlaceholder reports whether the card ID was minted locally by a client
// and has not been replaced by a store-assigned ID yet.
func (id CardID) IsPlaceholder() bool {
	return id < 0
}

func (id BoardID) String() string {
	return strconv.Itoa(int(id))
}

func (id ColumnID) String() string {
	return strconv.Itoa(int(id))
}

func (id CardID) String() string {
	return strconv.Itoa(int(id))
}

// ToInt converts type alias back to int for driver arguments
func (id BoardID) ToInt() int {
	return int(id)
}

func (id ColumnID) ToInt() int {
	return int(id)
}

func (id CardID) ToInt() int {
	return int(id)
}

// ParseBoardID parses a decimal board ID, rejecting non-positive values
func ParseBoardID(s string) (BoardID, error) {
	n, err := parsePositive(s)
	return BoardID(n), err
}

// ParseColumnID parses a decimal column ID, rejecting non-positive values
func ParseColumnID(s string) (ColumnID, error) {
	n, err := parsePositive(s)
	return ColumnID(n), err
}

// ParseCardID parses a decimal card ID, rejecting non-positive values
func ParseCardID(s string) (CardID, error) {
	n, err := parsePositive(s)
	return CardID(n), err
}

func parsePositive(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
