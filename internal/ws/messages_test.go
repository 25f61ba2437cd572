package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab/lock"
)

func decode(t *testing.T, raw string) (interface{}, error) {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	return env.Decode()
}

func TestDecodeJoinRoom(t *testing.T) {
	p, err := decode(t, `{"type":"join_room","payload":{"documentId":"d1"}}`)
	require.NoError(t, err)
	join, ok := p.(*JoinRoomPayload)
	require.True(t, ok)
	require.Equal(t, "d1", join.DocumentID)
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := decode(t, `{"type":"teleport","payload":{}}`)
	require.ErrorIs(t, err, collab.ErrValidation)
}

func TestDecodeMissingRequiredFields(t *testing.T) {
	cases := []string{
		`{"type":"join_room","payload":{}}`,
		`{"type":"cursor_move","payload":{"x":1,"y":2}}`,
		`{"type":"selection_change","payload":{"resourceIds":["n1"]}}`,
		`{"type":"lock_resource","payload":{"documentId":"d1"}}`,
		`{"type":"unlock_resource","payload":{"resourceId":"n1"}}`,
		`{"type":"resource_update","payload":{"documentId":"d1","resourceId":"n1"}}`,
	}
	for _, raw := range cases {
		_, err := decode(t, raw)
		require.ErrorIs(t, err, collab.ErrValidation, raw)
	}
}

func TestDecodeMalformedPayload(t *testing.T) {
	_, err := decode(t, `{"type":"cursor_move","payload":{"documentId":"d1","x":"far left"}}`)
	require.ErrorIs(t, err, collab.ErrValidation)
}

func TestDecodeLockResourceDefaultsType(t *testing.T) {
	p, err := decode(t, `{"type":"lock_resource","payload":{"documentId":"d1","resourceId":"n1"}}`)
	require.NoError(t, err)
	lp := p.(*LockResourcePayload)
	require.Equal(t, lock.ResourceNode, lp.ResourceType)
}

func TestDecodeLockResourceRejectsUnknownType(t *testing.T) {
	_, err := decode(t, `{"type":"lock_resource","payload":{"documentId":"d1","resourceId":"n1","resourceType":"lane"}}`)
	require.ErrorIs(t, err, collab.ErrValidation)
}

func TestDecodeCursorMove(t *testing.T) {
	p, err := decode(t, `{"type":"cursor_move","payload":{"documentId":"d1","x":12.5,"y":-3}}`)
	require.NoError(t, err)
	cm := p.(*CursorMovePayload)
	require.Equal(t, 12.5, cm.X)
	require.Equal(t, -3.0, cm.Y)
}

func TestDecodeResourceUpdateKeepsChangesOpaque(t *testing.T) {
	raw := `{"type":"resource_update","payload":{"documentId":"d1","resourceId":"n1","changes":{"label":"Approve","position":{"x":10,"y":20}}}}`
	p, err := decode(t, raw)
	require.NoError(t, err)
	ru := p.(*ResourceUpdatePayload)
	require.JSONEq(t, `{"label":"Approve","position":{"x":10,"y":20}}`, string(ru.Changes))
}
