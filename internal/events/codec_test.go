package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/types"
)

func testHeader() Header {
	h := NewHeader(7, models.Actor{User: "ana", Session: "s1"}, time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC))
	h.Sequence = 42
	return h
}

func testCard() models.Card {
	return models.Card{
		ID:        11,
		ColumnID:  3,
		Title:     "write tests",
		Priority:  models.PriorityHigh,
		Assignees: []types.UserID{"ana"},
		Labels:    []types.LabelID{},
		Position:  1,
	}
}

func TestCodec_RoundTripEveryKind(t *testing.T) {
	tests := []Event{
		&CardCreated{Header: testHeader(), Card: testCard(), ClientRef: "ref-1"},
		&CardUpdated{Header: testHeader(), Card: testCard()},
		&CardMoved{Header: testHeader(), Card: testCard(), SourceColumnID: 2, DestinationColumnID: 3, DestinationIndex: 1},
		&CardDeleted{Header: testHeader(), Card: testCard()},
		&ColumnsChanged{Header: testHeader(), Columns: []models.Column{{ID: 3, BoardID: 7, Title: "Doing", WipLimit: 2}}},
	}

	for _, want := range tests {
		t.Run(string(want.Kind()), func(t *testing.T) {
			data, err := Marshal(want)
			require.NoError(t, err)

			got, err := Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestEncode_EnvelopeFields(t *testing.T) {
	e := &CardMoved{Header: testHeader(), Card: testCard(), SourceColumnID: 2, DestinationColumnID: 3}

	env, err := Encode(e)
	require.NoError(t, err)
	assert.Equal(t, ProtocolVersion, env.Version)
	assert.Equal(t, KindMoved, env.Type)
	assert.Equal(t, types.BoardID(7), env.BoardID)
	assert.Equal(t, int64(42), env.Sequence)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Contains(t, payload, "source_column_id")
	assert.Contains(t, payload, "actor")
	assert.NotContains(t, payload, "client_ref", "moves carry only their own fields")
}

func TestDecode_SequenceFromEnvelope(t *testing.T) {
	env, err := Encode(&CardUpdated{Header: NewHeader(1, models.Actor{User: "bo"}, time.Now()), Card: testCard()})
	require.NoError(t, err)
	env.Sequence = 9

	e, err := Decode(env)
	require.NoError(t, err)
	assert.Equal(t, int64(9), e.Head().Sequence)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(nil)
	assert.Error(t, err)

	_, err = Decode(&Envelope{Type: "renamed", Payload: []byte(`{}`)})
	assert.Error(t, err)

	_, err = Decode(&Envelope{Type: KindCreated, Payload: []byte(`{"card": 5}`)})
	assert.Error(t, err)

	_, err = Unmarshal([]byte(`not json`))
	assert.Error(t, err)

	_, err = Encode(nil)
	assert.Error(t, err)
}
