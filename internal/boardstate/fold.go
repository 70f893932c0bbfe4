package boardstate

import (
	"fmt"

	"github.com/thenoetrevino/tablero/internal/events"
)

// Apply folds a committed remote event into the snapshot:
//
//   - moved: remove the card everywhere, then insert at the destination index
//   - created: append unless already present
//   - updated: replace in place
//   - deleted: remove
//   - columns: replace column metadata and order, keeping cards
//
// An event that refers to something the snapshot does not hold returns an
// error wrapping ErrStale; the snapshot is left unchanged in that case.
func (s *Snapshot) Apply(e events.Event) error {
	if e.Head().BoardID != s.Board.ID {
		return fmt.Errorf("event for board %d folded into board %d", e.Head().BoardID, s.Board.ID)
	}

	switch ev := e.(type) {
	case *events.CardMoved:
		if _, ok := s.Column(ev.DestinationColumnID); !ok {
			return fmt.Errorf("column %d: %w", ev.DestinationColumnID, ErrStale)
		}
		if _, ok := s.Card(ev.Card.ID); !ok {
			// a move can reveal a card created before we loaded
			card := ev.Card
			card.ColumnID = ev.DestinationColumnID
			if _, err := s.AddCard(card); err != nil {
				return err
			}
		} else if err := s.ReplaceCard(ev.Card); err != nil {
			return err
		}
		return s.MoveCard(ev.Card.ID, ev.DestinationColumnID, ev.DestinationIndex)
	case *events.CardCreated:
		_, err := s.AddCard(ev.Card)
		return err
	case *events.CardUpdated:
		return s.ReplaceCard(ev.Card)
	case *events.CardDeleted:
		s.RemoveCard(ev.Card.ID)
		return nil
	case *events.ColumnsChanged:
		s.ReplaceColumns(ev.Columns)
		return nil
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind())
	}
}
