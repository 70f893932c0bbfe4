package card

import (
	"context"
	"fmt"

	"github.com/thenoetrevino/tablero/internal/api"
	"github.com/thenoetrevino/tablero/internal/boardstate"
	"github.com/thenoetrevino/tablero/internal/cli"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/types"
)

// moveRemote moves a card through a server. The card's board is loaded
// into a Reconciler so the move is applied locally first and restored on
// any refusal, the same path an interactive client takes.
func moveRemote(ctx context.Context, c *cli.CLI, serverURL string, id types.CardID, columnID types.ColumnID, pos int) (*models.Card, error) {
	client, err := api.NewClient(serverURL, c.Actor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	card, err := client.GetCard(ctx, id)
	if err != nil {
		return nil, err
	}
	source, err := client.GetColumn(ctx, card.ColumnID)
	if err != nil {
		return nil, err
	}
	detail, err := client.LoadBoard(ctx, source.BoardID)
	if err != nil {
		return nil, err
	}

	r := boardstate.NewReconciler(detail, client, client,
		boardstate.NewDeduplicator(c.Actor.Session),
		boardstate.WithTimeout(c.Config.Client.MutationTimeout),
	)

	// a destination outside the loaded board is for the server to judge
	if _, ok := r.Snapshot().Column(columnID); !ok {
		return client.MoveCard(ctx, id, columnID, pos)
	}

	if _, err := r.Move(ctx, id, columnID, pos); err != nil {
		return nil, err
	}
	moved, _ := r.Snapshot().Card(id)
	return &moved, nil
}
