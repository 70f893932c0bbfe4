package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/types"
)

// Kind indicates what kind of change occurred
type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindMoved   Kind = "moved"
	KindDeleted Kind = "deleted"
	KindColumns Kind = "columns"
)

// ProtocolVersion is carried by every envelope and daemon message
const ProtocolVersion = 1

// Header is shared by every event
type Header struct {
	ID        uuid.UUID     `json:"id"`
	BoardID   types.BoardID `json:"board_id"`
	Actor     models.Actor  `json:"actor"`
	Timestamp time.Time     `json:"timestamp"`
	// Sequence is stamped by the channel (0 when the backend has none)
	Sequence int64 `json:"sequence,omitempty"`
}

// NewHeader creates a header with a fresh event ID
func NewHeader(boardID types.BoardID, actor models.Actor, at time.Time) Header {
	return Header{
		ID:        uuid.New(),
		BoardID:   boardID,
		Actor:     actor,
		Timestamp: at.UTC(),
	}
}

// Head exposes the header of any event
func (h *Header) Head() *Header { return h }

// Event is one committed mutation. The set of implementations is closed:
// *CardCreated, *CardUpdated, *CardMoved, *CardDeleted and *ColumnsChanged.
type Event interface {
	Kind() Kind
	Head() *Header
	isEvent()
}

// CardCreated carries a newly committed card. ClientRef echoes the
// originating client's placeholder reference so it can adopt the server ID.
type CardCreated struct {
	Header
	Card      models.Card `json:"card"`
	ClientRef string      `json:"client_ref,omitempty"`
}

// CardUpdated carries a card's committed state after an in-place edit
type CardUpdated struct {
	Header
	Card models.Card `json:"card"`
}

// CardMoved carries a card's committed state after a move
type CardMoved struct {
	Header
	Card                models.Card    `json:"card"`
	SourceColumnID      types.ColumnID `json:"source_column_id"`
	DestinationColumnID types.ColumnID `json:"destination_column_id"`
	DestinationIndex    int            `json:"destination_index"`
}

// CardDeleted carries the last committed state of a removed card
type CardDeleted struct {
	Header
	Card models.Card `json:"card"`
}

// ColumnsChanged carries a board's full committed column list after any
// column create, update, move or delete
type ColumnsChanged struct {
	Header
	Columns []models.Column `json:"columns"`
}

func (*CardCreated) Kind() Kind    { return KindCreated }
func (*CardUpdated) Kind() Kind    { return KindUpdated }
func (*CardMoved) Kind() Kind      { return KindMoved }
func (*CardDeleted) Kind() Kind    { return KindDeleted }
func (*ColumnsChanged) Kind() Kind { return KindColumns }

func (*CardCreated) isEvent()    {}
func (*CardUpdated) isEvent()    {}
func (*CardMoved) isEvent()      {}
func (*CardDeleted) isEvent()    {}
func (*ColumnsChanged) isEvent() {}

// Message wraps events and control messages for the daemon wire protocol
type Message struct {
	Version int           `json:"version"`
	Type    string        `json:"type"` // "event", "join", "leave", "ping", "pong"
	BoardID types.BoardID `json:"board_id,omitempty"`
	Event   *Envelope     `json:"event,omitempty"`
}

// Daemon message types
const (
	MessageEvent = "event"
	MessageJoin  = "join"
	MessageLeave = "leave"
	MessagePing  = "ping"
	MessagePong  = "pong"
)
