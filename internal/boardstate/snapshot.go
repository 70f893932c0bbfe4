// Package boardstate keeps a client's local copy of one board consistent
// with the store: optimistic local mutations with snapshot rollback, and
// deduplicated folding of remote events.
package boardstate

import (
	"errors"
	"fmt"
	"slices"

	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/ordering"
	"github.com/thenoetrevino/tablero/internal/types"
)

// ErrStale reports that local state is missing something a change refers
// to. The remedy is a full refresh.
var ErrStale = errors.New("local board state is stale")

// Snapshot is a client's view of a board. Positions are always re-derived
// from slice indices, so a snapshot is dense by construction.
type Snapshot struct {
	Board   models.Board          `json:"board"`
	Columns []models.ColumnDetail `json:"columns"`
}

// NewSnapshot returns an empty snapshot of board
func NewSnapshot(board models.Board) Snapshot {
	return Snapshot{Board: board, Columns: []models.ColumnDetail{}}
}

// FromDetail builds a snapshot from a committed board load
func FromDetail(detail *models.BoardDetail) Snapshot {
	s := Snapshot{Board: detail.Board, Columns: make([]models.ColumnDetail, len(detail.Columns))}
	for i, col := range detail.Columns {
		s.Columns[i] = cloneColumn(col)
	}
	s.normalize()
	return s
}

// Clone returns a deep copy
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Board: s.Board, Columns: make([]models.ColumnDetail, len(s.Columns))}
	for i, col := range s.Columns {
		out.Columns[i] = cloneColumn(col)
	}
	return out
}

// Detail converts the snapshot back into the wire shape
func (s Snapshot) Detail() *models.BoardDetail {
	c := s.Clone()
	return &models.BoardDetail{Board: c.Board, Columns: c.Columns}
}

// Column returns the column with the given ID
func (s Snapshot) Column(id types.ColumnID) (models.ColumnDetail, bool) {
	i := s.columnIndex(id)
	if i < 0 {
		return models.ColumnDetail{}, false
	}
	return s.Columns[i], true
}

// Card returns the card with the given ID
func (s Snapshot) Card(id types.CardID) (models.Card, bool) {
	ci, pi := s.locate(id)
	if ci < 0 {
		return models.Card{}, false
	}
	return s.Columns[ci].Cards[pi], true
}

// CardTitles lists a column's card titles in order
func (s Snapshot) CardTitles(columnID types.ColumnID) []string {
	col, ok := s.Column(columnID)
	if !ok {
		return nil
	}
	titles := make([]string, len(col.Cards))
	for i, c := range col.Cards {
		titles[i] = c.Title
	}
	return titles
}

// MoveCard removes the card from every column and inserts it into the
// destination at index, clamped to the destination's length
func (s *Snapshot) MoveCard(id types.CardID, destination types.ColumnID, index int) error {
	di := s.columnIndex(destination)
	if di < 0 {
		return fmt.Errorf("column %d: %w", destination, ErrStale)
	}
	card, ok := s.take(id)
	if !ok {
		return fmt.Errorf("card %d: %w", id, ErrStale)
	}
	card.ColumnID = destination
	s.Columns[di].Cards = ordering.Insert(s.Columns[di].Cards, card, index)
	s.normalize()
	return nil
}

// AddCard appends card to its column unless a card with its ID is already
// present. It reports whether the card was added.
func (s *Snapshot) AddCard(card models.Card) (bool, error) {
	if ci, _ := s.locate(card.ID); ci >= 0 {
		return false, nil
	}
	di := s.columnIndex(card.ColumnID)
	if di < 0 {
		return false, fmt.Errorf("column %d: %w", card.ColumnID, ErrStale)
	}
	s.Columns[di].Cards = append(s.Columns[di].Cards, card.Clone())
	s.normalize()
	return true, nil
}

// ReplaceCard overwrites a card's fields in place. The card keeps its
// column and position.
func (s *Snapshot) ReplaceCard(card models.Card) error {
	ci, pi := s.locate(card.ID)
	if ci < 0 {
		return fmt.Errorf("card %d: %w", card.ID, ErrStale)
	}
	s.Columns[ci].Cards[pi] = card.Clone()
	s.normalize()
	return nil
}

// AdoptCard swaps the card stored under placeholder for the committed
// card, keeping its place. If the committed card is already present the
// placeholder is simply dropped.
func (s *Snapshot) AdoptCard(placeholder types.CardID, card models.Card) error {
	if ci, _ := s.locate(card.ID); ci >= 0 {
		s.RemoveCard(placeholder)
		return nil
	}
	ci, pi := s.locate(placeholder)
	if ci < 0 {
		_, err := s.AddCard(card)
		return err
	}
	adopted := card.Clone()
	adopted.ColumnID = s.Columns[ci].ID
	s.Columns[ci].Cards[pi] = adopted
	s.normalize()
	return nil
}

// RemoveCard deletes a card. It reports whether the card was present.
func (s *Snapshot) RemoveCard(id types.CardID) bool {
	_, ok := s.take(id)
	if ok {
		s.normalize()
	}
	return ok
}

// ReplaceColumns swaps column metadata and order for columns, keeping the
// cards of columns that survive. Cards of columns absent from the list are
// dropped along with them.
func (s *Snapshot) ReplaceColumns(columns []models.Column) {
	sorted := slices.Clone(columns)
	slices.SortStableFunc(sorted, func(a, b models.Column) int { return a.Position - b.Position })

	next := make([]models.ColumnDetail, len(sorted))
	for i, col := range sorted {
		next[i] = models.ColumnDetail{Column: col, Cards: []models.Card{}}
		if old, ok := s.Column(col.ID); ok {
			next[i].Cards = old.Cards
		}
	}
	s.Columns = next
	s.normalize()
}

func (s *Snapshot) take(id types.CardID) (models.Card, bool) {
	ci, pi := s.locate(id)
	if ci < 0 {
		return models.Card{}, false
	}
	card := s.Columns[ci].Cards[pi]
	s.Columns[ci].Cards = ordering.Remove(s.Columns[ci].Cards, pi)
	return card, true
}

func (s Snapshot) locate(id types.CardID) (int, int) {
	for ci, col := range s.Columns {
		for pi, card := range col.Cards {
			if card.ID == id {
				return ci, pi
			}
		}
	}
	return -1, -1
}

func (s Snapshot) columnIndex(id types.ColumnID) int {
	return slices.IndexFunc(s.Columns, func(c models.ColumnDetail) bool { return c.ID == id })
}

// normalize re-derives every position and column reference from the
// slice layout
func (s *Snapshot) normalize() {
	for ci := range s.Columns {
		col := &s.Columns[ci]
		col.Position = ci
		col.BoardID = s.Board.ID
		if col.Cards == nil {
			col.Cards = []models.Card{}
		}
		for pi := range col.Cards {
			col.Cards[pi].Position = pi
			col.Cards[pi].ColumnID = col.ID
		}
	}
}

func cloneColumn(col models.ColumnDetail) models.ColumnDetail {
	out := models.ColumnDetail{Column: col.Column, Cards: make([]models.Card, len(col.Cards))}
	for i, c := range col.Cards {
		out.Cards[i] = c.Clone()
	}
	return out
}
