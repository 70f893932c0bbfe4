package events

import (
	"encoding/json"
	"fmt"

	"github.com/thenoetrevino/tablero/internal/types"
)

// Envelope is the wire form of an event. Payload holds the JSON encoding of
// the concrete event selected by Type.
type Envelope struct {
	Version int           `json:"version"`
	Type    Kind          `json:"type"`
	BoardID types.BoardID `json:"board_id"`
	// Sequence is stamped by relays such as the daemon
	Sequence int64           `json:"sequence,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// Encode wraps an event in an envelope
func Encode(e Event) (*Envelope, error) {
	if e == nil {
		return nil, fmt.Errorf("encode: nil event")
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Kind(), err)
	}
	return &Envelope{
		Version:  ProtocolVersion,
		Type:     e.Kind(),
		BoardID:  e.Head().BoardID,
		Sequence: e.Head().Sequence,
		Payload:  payload,
	}, nil
}

// Decode unwraps an envelope into its concrete event
func Decode(env *Envelope) (Event, error) {
	if env == nil {
		return nil, fmt.Errorf("decode: nil envelope")
	}

	var e Event
	switch env.Type {
	case KindCreated:
		e = &CardCreated{}
	case KindUpdated:
		e = &CardUpdated{}
	case KindMoved:
		e = &CardMoved{}
	case KindDeleted:
		e = &CardDeleted{}
	case KindColumns:
		e = &ColumnsChanged{}
	default:
		return nil, fmt.Errorf("decode: unknown event type %q", env.Type)
	}

	if err := json.Unmarshal(env.Payload, e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	if env.Sequence != 0 {
		e.Head().Sequence = env.Sequence
	}
	return e, nil
}

// Marshal encodes an event straight to envelope JSON
func Marshal(e Event) ([]byte, error) {
	env, err := Encode(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Unmarshal decodes envelope JSON into its event
func Unmarshal(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return Decode(&env)
}
