package websocket

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-realtime/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-realtime/internal/entity"
)

func TestDecodeInbound(t *testing.T) {
	t.Run("SubmitMove", func(t *testing.T) {
		msg, err := decodeInbound([]byte(`{"action":"submit-move","payload":{"sessionId":"s-1","cellIndex":0,"mark":"X"}}`))

		require.NoError(t, err)
		move, ok := msg.(SubmitMove)
		require.True(t, ok)
		assert.Equal(t, "s-1", move.SessionID)
		assert.Equal(t, 0, *move.CellIndex)
		assert.Equal(t, entity.MarkX, move.Mark)
	})

	tests := []struct {
		name string
		raw  string
	}{
		{"NotJSON", `{`},
		{"UnknownAction", `{"action":"chat","payload":{}}`},
		{"JoinWithoutSession", `{"action":"join-session","payload":{"token":"t"}}`},
		{"MoveWithoutCell", `{"action":"submit-move","payload":{"sessionId":"s-1"}}`},
		{"MoveWithBadMark", `{"action":"submit-move","payload":{"sessionId":"s-1","cellIndex":1,"mark":"Z"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeInbound([]byte(tt.raw))

			require.ErrorIs(t, err, errBadRequest)
			assert.Equal(t, apperror.ReasonBadRequest, rejectionFor("", err).Reason)
		})
	}
}

func TestRejectionFor(t *testing.T) {
	// Given: an infrastructure failure
	rejected := rejectionFor("s-1", errors.New("dial tcp 10.0.0.1:6379: connection refused"))

	// Then: the client gets a generic internal reason without details
	assert.Equal(t, apperror.ReasonInternal, rejected.Reason)
	assert.NotContains(t, rejected.Message, "10.0.0.1")
}

func TestRooms(t *testing.T) {
	rooms := NewRooms()
	first, second := newConn("1", nil), newConn("2", nil)

	// Given: two connections in one room, one of them also in another
	rooms.Subscribe("a", first)
	rooms.Subscribe("a", second)
	rooms.Subscribe("b", first)

	assert.Len(t, rooms.Members("a"), 2)
	assert.Equal(t, 2, rooms.Len())

	// When: the first connection leaves
	rooms.Leave(first)

	// Then: only the second remains and empty rooms are gone
	assert.Equal(t, []*Conn{second}, rooms.Members("a"))
	assert.Empty(t, rooms.Members("b"))
	assert.Equal(t, 1, rooms.Len())
	assert.Empty(t, first.subscriptions())
}
