package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/types"
)

const cardFields = `id, column_id, title, description, priority, due_date, milestone_id,
	position, created_at, updated_at`

// CardFields are the mutable, non-positional attributes of a card
type CardFields struct {
	Title       string
	Description string
	Priority    models.Priority
	DueDate     *time.Time
	MilestoneID *types.MilestoneID
	Assignees   []types.UserID
	Labels      []types.LabelID
}

func scanCard(row interface{ Scan(...any) error }) (models.Card, error) {
	var (
		card        models.Card
		description sql.NullString
		dueDate     sql.NullTime
		milestoneID sql.NullInt64
	)
	err := row.Scan(&card.ID, &card.ColumnID, &card.Title, &description, &card.Priority,
		&dueDate, &milestoneID, &card.Position, &card.CreatedAt, &card.UpdatedAt)
	if err != nil {
		return card, err
	}
	card.Description = NullStringToString(description)
	card.DueDate = nullTimeToPtr(dueDate)
	card.MilestoneID = nullInt64ToMilestone(milestoneID)
	card.CreatedAt = card.CreatedAt.UTC()
	card.UpdatedAt = card.UpdatedAt.UTC()
	return card, nil
}

// GetCard loads a card with its assignees and labels
func (q queries) GetCard(ctx context.Context, id types.CardID) (*models.Card, error) {
	cards, err := q.listCards(ctx, `SELECT `+cardFields+` FROM cards WHERE id = ?`, int64(id))
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("card %d: %w", id, models.ErrNotFound)
	}
	return &cards[0], nil
}

// ListCards returns a column's cards ordered by position
func (q queries) ListCards(ctx context.Context, columnID types.ColumnID) ([]models.Card, error) {
	return q.listCards(ctx,
		`SELECT `+cardFields+` FROM cards WHERE column_id = ? ORDER BY position`, int64(columnID))
}

// CountCards returns how many cards a column holds
func (q queries) CountCards(ctx context.Context, columnID types.ColumnID) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cards WHERE column_id = ?`, int64(columnID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting cards: %w", err)
	}
	return n, nil
}

// listCards runs a card query and attaches relations. Rows are drained and
// closed before the relation queries run so a single-connection pool never
// deadlocks.
func (q queries) listCards(ctx context.Context, query string, args ...any) ([]models.Card, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying cards: %w", err)
	}

	cards := []models.Card{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning card row: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := q.attachRelations(ctx, cards); err != nil {
		return nil, err
	}
	return cards, nil
}

func (q queries) attachRelations(ctx context.Context, cards []models.Card) error {
	if len(cards) == 0 {
		return nil
	}

	index := make(map[types.CardID]int, len(cards))
	args := make([]any, 0, len(cards))
	for i := range cards {
		cards[i].Assignees = []types.UserID{}
		cards[i].Labels = []types.LabelID{}
		index[cards[i].ID] = i
		args = append(args, int64(cards[i].ID))
	}
	in := placeholders(len(args))

	rows, err := q.q.QueryContext(ctx,
		`SELECT card_id, user_id FROM card_assignees WHERE card_id IN (`+in+`) ORDER BY card_id, user_id`, args...)
	if err != nil {
		return fmt.Errorf("querying assignees: %w", err)
	}
	for rows.Next() {
		var cardID types.CardID
		var user types.UserID
		if err := rows.Scan(&cardID, &user); err != nil {
			rows.Close()
			return fmt.Errorf("scanning assignee row: %w", err)
		}
		i := index[cardID]
		cards[i].Assignees = append(cards[i].Assignees, user)
	}
	rows.Close()

	rows, err = q.q.QueryContext(ctx,
		`SELECT card_id, label_id FROM card_labels WHERE card_id IN (`+in+`) ORDER BY card_id, label_id`, args...)
	if err != nil {
		return fmt.Errorf("querying labels: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cardID types.CardID
		var label types.LabelID
		if err := rows.Scan(&cardID, &label); err != nil {
			return fmt.Errorf("scanning label row: %w", err)
		}
		i := index[cardID]
		cards[i].Labels = append(cards[i].Labels, label)
	}
	return rows.Err()
}

// InsertCard appends a card to the end of a column. The caller holds the
// column lock and has already consulted the WIP guard.
func (t *Tx) InsertCard(ctx context.Context, columnID types.ColumnID, fields CardFields, now time.Time) (*models.Card, error) {
	position, err := t.CountCards(ctx, columnID)
	if err != nil {
		return nil, err
	}

	result, err := t.q.ExecContext(ctx,
		`INSERT INTO cards (column_id, title, description, priority, due_date, milestone_id,
			position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(columnID), fields.Title, fields.Description, int(fields.Priority),
		timeArg(fields.DueDate), milestoneArg(fields.MilestoneID), position, now.UTC(), now.UTC())
	if err != nil {
		return nil, fmt.Errorf("inserting card: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	cardID := types.CardID(id)

	if err := t.replaceRelations(ctx, cardID, fields); err != nil {
		return nil, err
	}

	return t.GetCard(ctx, cardID)
}

// UpdateCard rewrites a card's non-positional fields
func (t *Tx) UpdateCard(ctx context.Context, id types.CardID, fields CardFields, now time.Time) error {
	_, err := t.q.ExecContext(ctx,
		`UPDATE cards SET title = ?, description = ?, priority = ?, due_date = ?, milestone_id = ?,
			updated_at = ?
		WHERE id = ?`,
		fields.Title, fields.Description, int(fields.Priority), timeArg(fields.DueDate),
		milestoneArg(fields.MilestoneID), now.UTC(), int64(id))
	if err != nil {
		return fmt.Errorf("updating card %d: %w", id, err)
	}
	return t.replaceRelations(ctx, id, fields)
}

// TouchCard bumps a card's updated_at
func (t *Tx) TouchCard(ctx context.Context, id types.CardID, now time.Time) error {
	if _, err := t.q.ExecContext(ctx,
		`UPDATE cards SET updated_at = ? WHERE id = ?`, now.UTC(), int64(id)); err != nil {
		return fmt.Errorf("touching card %d: %w", id, err)
	}
	return nil
}

// DeleteCard removes a card row and its relations. Callers renumber the
// vacated column afterwards.
func (t *Tx) DeleteCard(ctx context.Context, id types.CardID) error {
	for _, stmt := range []string{
		`DELETE FROM card_assignees WHERE card_id = ?`,
		`DELETE FROM card_labels WHERE card_id = ?`,
	} {
		if _, err := t.q.ExecContext(ctx, stmt, int64(id)); err != nil {
			return fmt.Errorf("deleting card %d relations: %w", id, err)
		}
	}

	result, err := t.q.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, int64(id))
	if err != nil {
		return fmt.Errorf("deleting card %d: %w", id, err)
	}
	return requireAffected(result, "card", int(id))
}

func (t *Tx) replaceRelations(ctx context.Context, id types.CardID, fields CardFields) error {
	if _, err := t.q.ExecContext(ctx, `DELETE FROM card_assignees WHERE card_id = ?`, int64(id)); err != nil {
		return fmt.Errorf("clearing assignees: %w", err)
	}
	for _, user := range dedupe(fields.Assignees) {
		if _, err := t.q.ExecContext(ctx,
			`INSERT INTO card_assignees (card_id, user_id) VALUES (?, ?)`, int64(id), string(user)); err != nil {
			return fmt.Errorf("adding assignee %s: %w", user, err)
		}
	}

	if _, err := t.q.ExecContext(ctx, `DELETE FROM card_labels WHERE card_id = ?`, int64(id)); err != nil {
		return fmt.Errorf("clearing labels: %w", err)
	}
	for _, label := range dedupe(fields.Labels) {
		if _, err := t.q.ExecContext(ctx,
			`INSERT INTO card_labels (card_id, label_id) VALUES (?, ?)`, int64(id), int64(label)); err != nil {
			return fmt.Errorf("adding label %d: %w", label, err)
		}
	}
	return nil
}

func dedupe[T comparable](in []T) []T {
	seen := make(map[T]struct{}, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// CardColumn returns the column that currently owns a card
func (q queries) CardColumn(ctx context.Context, id types.CardID) (types.ColumnID, error) {
	var columnID types.ColumnID
	err := q.q.QueryRowContext(ctx, `SELECT column_id FROM cards WHERE id = ?`, int64(id)).Scan(&columnID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("card %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("loading card %d: %w", id, err)
	}
	return columnID, nil
}
