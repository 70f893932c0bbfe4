// Package card implements card creation, editing, deletion and the move
// protocol. Every write runs in one store transaction, is retried once on a
// serialization conflict and publishes exactly one event after commit.
package card

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/ordering"
	"github.com/thenoetrevino/tablero/internal/types"
)

// Service defines all card-related business operations
type Service interface {
	// Read operations
	GetCard(ctx context.Context, cardID types.CardID) (*models.Card, error)

	// Write operations
	CreateCard(ctx context.Context, req CreateCardRequest) (*models.Card, error)
	UpdateCard(ctx context.Context, req UpdateCardRequest) (*models.Card, error)
	DeleteCard(ctx context.Context, req DeleteCardRequest) (*models.Card, error)
	MoveCard(ctx context.Context, req MoveCardRequest) (*models.Card, error)
}

// CreateCardRequest encapsulates all data needed to create a card.
// The card is appended to the end of the column.
type CreateCardRequest struct {
	Actor       models.Actor
	ColumnID    types.ColumnID
	Title       string
	Description string
	Priority    models.Priority // Optional: 0 means DefaultPriority
	DueDate     *time.Time
	MilestoneID *types.MilestoneID
	Assignees   []types.UserID
	Labels      []types.LabelID
	// ClientRef is echoed in the created event so the originating client
	// can swap its placeholder for the committed card
	ClientRef string
}

// UpdateCardRequest encapsulates all data needed to update a card.
// Fields with pointers are optional - nil means don't update.
type UpdateCardRequest struct {
	Actor          models.Actor
	CardID         types.CardID
	Title          *string
	Description    *string
	Priority       *models.Priority
	DueDate        *time.Time
	ClearDueDate   bool
	MilestoneID    *types.MilestoneID
	ClearMilestone bool
	Assignees      *[]types.UserID
	Labels         *[]types.LabelID
}

// MoveCardRequest relocates a card. Position is clamped to the
// destination's bounds.
type MoveCardRequest struct {
	Actor    models.Actor
	CardID   types.CardID
	ColumnID types.ColumnID
	Position int
}

// DeleteCardRequest removes a card
type DeleteCardRequest struct {
	Actor  models.Actor
	CardID types.CardID
}

// service implements Service interface
type service struct {
	store     *database.Store
	publisher events.Publisher
	clock     clockwork.Clock
}

// Option configures the service
type Option func(*service)

// WithClock replaces the wall clock used for timestamps
func WithClock(clock clockwork.Clock) Option {
	return func(s *service) { s.clock = clock }
}

// NewService creates a new card service. publisher may be nil.
func NewService(store *database.Store, publisher events.Publisher, opts ...Option) Service {
	s := &service{
		store:     store,
		publisher: publisher,
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetCard retrieves a card by ID
func (s *service) GetCard(ctx context.Context, cardID types.CardID) (*models.Card, error) {
	if cardID <= 0 {
		return nil, ErrInvalidCardID
	}
	return s.store.GetCard(ctx, cardID)
}

// CreateCard appends a card to a column, enforcing its WIP limit
func (s *service) CreateCard(ctx context.Context, req CreateCardRequest) (*models.Card, error) {
	if err := validateCreateCard(&req); err != nil {
		return nil, err
	}

	var (
		card   *models.Card
		column *models.Column
	)
	err := s.store.WithRetryTx(ctx, func(tx *database.Tx) error {
		var err error
		column, err = tx.LockColumn(ctx, req.ColumnID)
		if err != nil {
			return err
		}

		count, err := tx.CountCards(ctx, column.ID)
		if err != nil {
			return err
		}
		if !ordering.CanAdmit(column.WipLimit, count+1) {
			return &models.WipLimitError{ColumnID: column.ID, Limit: column.WipLimit, Count: count}
		}

		card, err = tx.InsertCard(ctx, column.ID, database.CardFields{
			Title:       req.Title,
			Description: req.Description,
			Priority:    req.Priority,
			DueDate:     req.DueDate,
			MilestoneID: req.MilestoneID,
			Assignees:   req.Assignees,
			Labels:      req.Labels,
		}, s.clock.Now())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create card: %w", err)
	}

	events.PublishCommitted(ctx, s.publisher, &events.CardCreated{
		Header:    s.header(column.BoardID, req.Actor),
		Card:      *card,
		ClientRef: req.ClientRef,
	})

	return card, nil
}

// UpdateCard edits a card's fields in place. Position and column are
// never changed here.
func (s *service) UpdateCard(ctx context.Context, req UpdateCardRequest) (*models.Card, error) {
	if err := validateUpdateCard(req); err != nil {
		return nil, err
	}

	var (
		card   *models.Card
		column *models.Column
	)
	err := s.store.WithRetryTx(ctx, func(tx *database.Tx) error {
		current, err := tx.GetCard(ctx, req.CardID)
		if err != nil {
			return err
		}
		column, err = tx.LockColumn(ctx, current.ColumnID)
		if err != nil {
			return err
		}

		if err := tx.UpdateCard(ctx, current.ID, applyUpdate(*current, req), s.clock.Now()); err != nil {
			return err
		}

		card, err = tx.GetCard(ctx, current.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update card: %w", err)
	}

	events.PublishCommitted(ctx, s.publisher, &events.CardUpdated{
		Header: s.header(column.BoardID, req.Actor),
		Card:   *card,
	})

	return card, nil
}

// DeleteCard removes a card and closes the gap it leaves. It returns the
// card's last committed state.
func (s *service) DeleteCard(ctx context.Context, req DeleteCardRequest) (*models.Card, error) {
	if req.CardID <= 0 {
		return nil, ErrInvalidCardID
	}
	if req.Actor.User == "" {
		return nil, ErrMissingActor
	}

	var (
		card   *models.Card
		column *models.Column
	)
	err := s.store.WithRetryTx(ctx, func(tx *database.Tx) error {
		var err error
		card, err = tx.GetCard(ctx, req.CardID)
		if err != nil {
			return err
		}
		column, err = tx.LockColumn(ctx, card.ColumnID)
		if err != nil {
			return err
		}

		if err := tx.DeleteCard(ctx, card.ID); err != nil {
			return err
		}

		remaining, err := tx.ListCards(ctx, column.ID)
		if err != nil {
			return err
		}
		return tx.RenumberCards(ctx, column.ID, cardIDs(remaining))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete card: %w", err)
	}

	events.PublishCommitted(ctx, s.publisher, &events.CardDeleted{
		Header: s.header(column.BoardID, req.Actor),
		Card:   *card,
	})

	return card, nil
}

// MoveCard relocates a card within its column or into another column of
// the same board. Everything happens in one transaction: a WIP violation,
// a missing card or column, or any store error leaves both columns exactly
// as they were. Moving a card onto its own position succeeds without
// writing or publishing anything.
func (s *service) MoveCard(ctx context.Context, req MoveCardRequest) (*models.Card, error) {
	if err := validateMoveCard(req); err != nil {
		return nil, err
	}

	var (
		card          *models.Card
		sourceID      types.ColumnID
		boardID       types.BoardID
		destinationAt int
	)
	err := s.store.WithRetryTx(ctx, func(tx *database.Tx) error {
		current, err := tx.GetCard(ctx, req.CardID)
		if err != nil {
			return err
		}
		sourceID = current.ColumnID

		if sourceID == req.ColumnID {
			boardID, destinationAt, err = s.reorder(ctx, tx, current, req.Position)
		} else {
			boardID, destinationAt, err = s.relocate(ctx, tx, current, req.ColumnID, req.Position)
		}
		if err != nil {
			if errors.Is(err, errNoop) {
				card = current
			}
			return err
		}

		if err := tx.TouchCard(ctx, current.ID, s.clock.Now()); err != nil {
			return err
		}
		card, err = tx.GetCard(ctx, current.ID)
		return err
	})
	if errors.Is(err, errNoop) {
		return card, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to move card: %w", err)
	}

	events.PublishCommitted(ctx, s.publisher, &events.CardMoved{
		Header:              s.header(boardID, req.Actor),
		Card:                *card,
		SourceColumnID:      sourceID,
		DestinationColumnID: req.ColumnID,
		DestinationIndex:    destinationAt,
	})

	return card, nil
}

// reorder moves a card within its own column. A full column still allows
// reordering since the card is already resident.
func (s *service) reorder(ctx context.Context, tx *database.Tx, card *models.Card, position int) (types.BoardID, int, error) {
	column, err := tx.LockColumn(ctx, card.ColumnID)
	if err != nil {
		return 0, 0, err
	}
	if err := verifyOwner(ctx, tx, card); err != nil {
		return 0, 0, err
	}

	cards, err := tx.ListCards(ctx, column.ID)
	if err != nil {
		return 0, 0, err
	}
	ids := cardIDs(cards)

	from := slices.Index(ids, card.ID)
	to := ordering.Clamp(position, len(ids))
	if from == to {
		return column.BoardID, to, errNoop
	}

	if err := tx.RenumberCards(ctx, column.ID, ordering.Reorder(ids, from, to)); err != nil {
		return 0, 0, err
	}
	return column.BoardID, to, nil
}

// relocate moves a card into another column after consulting the
// destination's WIP limit. The destination is renumbered first (which
// carries the card over), then the source gap is closed.
func (s *service) relocate(ctx context.Context, tx *database.Tx, card *models.Card, destinationID types.ColumnID, position int) (types.BoardID, int, error) {
	source, destination, err := lockPair(ctx, tx, card.ColumnID, destinationID)
	if err != nil {
		return 0, 0, err
	}
	if source.BoardID != destination.BoardID {
		return 0, 0, ErrCrossBoardMove
	}
	if err := verifyOwner(ctx, tx, card); err != nil {
		return 0, 0, err
	}

	destCards, err := tx.ListCards(ctx, destination.ID)
	if err != nil {
		return 0, 0, err
	}
	if !ordering.CanAdmit(destination.WipLimit, len(destCards)+1) {
		return 0, 0, &models.WipLimitError{ColumnID: destination.ID, Limit: destination.WipLimit, Count: len(destCards)}
	}

	destIDs := ordering.Insert(cardIDs(destCards), card.ID, position)
	if err := tx.RenumberCards(ctx, destination.ID, destIDs); err != nil {
		return 0, 0, err
	}

	sourceCards, err := tx.ListCards(ctx, source.ID)
	if err != nil {
		return 0, 0, err
	}
	if err := tx.RenumberCards(ctx, source.ID, cardIDs(sourceCards)); err != nil {
		return 0, 0, err
	}

	return destination.BoardID, slices.Index(destIDs, card.ID), nil
}

// lockPair locks two columns in ID order so concurrent opposite moves
// cannot deadlock each other
func lockPair(ctx context.Context, tx *database.Tx, a, b types.ColumnID) (*models.Column, *models.Column, error) {
	first, second := a, b
	if second < first {
		first, second = second, first
	}

	locked := make(map[types.ColumnID]*models.Column, 2)
	for _, id := range []types.ColumnID{first, second} {
		col, err := tx.LockColumn(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		locked[id] = col
	}
	return locked[a], locked[b], nil
}

// verifyOwner re-reads the card's column once its column lock is held. A
// card that moved in between was raced by another writer; the conflict
// makes the whole operation retry against fresh state.
func verifyOwner(ctx context.Context, tx *database.Tx, card *models.Card) error {
	owner, err := tx.CardColumn(ctx, card.ID)
	if err != nil {
		return err
	}
	if owner != card.ColumnID {
		return fmt.Errorf("card %d moved concurrently: %w", card.ID, models.ErrTransactionConflict)
	}
	return nil
}

func (s *service) header(boardID types.BoardID, actor models.Actor) events.Header {
	return events.NewHeader(boardID, actor, s.clock.Now())
}

func applyUpdate(card models.Card, req UpdateCardRequest) database.CardFields {
	fields := database.CardFields{
		Title:       card.Title,
		Description: card.Description,
		Priority:    card.Priority,
		DueDate:     card.DueDate,
		MilestoneID: card.MilestoneID,
		Assignees:   card.Assignees,
		Labels:      card.Labels,
	}

	if req.Title != nil {
		fields.Title = *req.Title
	}
	if req.Description != nil {
		fields.Description = *req.Description
	}
	if req.Priority != nil {
		fields.Priority = *req.Priority
	}
	if req.ClearDueDate {
		fields.DueDate = nil
	} else if req.DueDate != nil {
		fields.DueDate = req.DueDate
	}
	if req.ClearMilestone {
		fields.MilestoneID = nil
	} else if req.MilestoneID != nil {
		fields.MilestoneID = req.MilestoneID
	}
	if req.Assignees != nil {
		fields.Assignees = *req.Assignees
	}
	if req.Labels != nil {
		fields.Labels = *req.Labels
	}
	return fields
}

func cardIDs(cards []models.Card) []types.CardID {
	ids := make([]types.CardID, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	return ids
}

// Validation

func validateTitle(title string) error {
	if title == "" {
		return ErrEmptyTitle
	}
	if len(title) > 255 {
		return ErrTitleTooLong
	}
	return nil
}

func validateCreateCard(req *CreateCardRequest) error {
	if req.Actor.User == "" {
		return ErrMissingActor
	}
	if req.ColumnID <= 0 {
		return ErrInvalidColumnID
	}
	if err := validateTitle(req.Title); err != nil {
		return err
	}
	if req.Priority == 0 {
		req.Priority = models.DefaultPriority
	}
	if !req.Priority.Valid() {
		return ErrInvalidPriority
	}
	return nil
}

func validateUpdateCard(req UpdateCardRequest) error {
	if req.Actor.User == "" {
		return ErrMissingActor
	}
	if req.CardID <= 0 {
		return ErrInvalidCardID
	}
	if req.Title != nil {
		if err := validateTitle(*req.Title); err != nil {
			return err
		}
	}
	if req.Priority != nil && !req.Priority.Valid() {
		return ErrInvalidPriority
	}
	return nil
}

func validateMoveCard(req MoveCardRequest) error {
	if req.Actor.User == "" {
		return ErrMissingActor
	}
	if req.CardID <= 0 {
		return ErrInvalidCardID
	}
	if req.ColumnID <= 0 {
		return ErrInvalidColumnID
	}
	if req.Position < 0 {
		return ErrInvalidPosition
	}
	return nil
}
