package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-realtime/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-realtime/internal/entity"
	"github.com/rocketscienceinc/tictactoe-realtime/internal/repository"
	"github.com/rocketscienceinc/tictactoe-realtime/internal/usecase"
)

const (
	tokenX = "token-x"
	tokenO = "token-o"
	tokenZ = "token-z"
	userX  = "1"
	userO  = "2"
	userZ  = "3"
)

type fakeVerifier map[string]string

func (that fakeVerifier) Verify(token string) (string, error) {
	identity, ok := that[token]
	if !ok {
		return "", apperror.ErrInvalidToken
	}

	return identity, nil
}

// failingMoves accepts every move check but cannot persist the result.
type failingMoves struct {
	usecase.SessionCoordinator
}

func (that failingMoves) ApplyMove(context.Context, string, string, int, entity.Mark) (*entity.Session, error) {
	return nil, fmt.Errorf("failed to save move: %w", errors.New("EXECABORT connection reset"))
}

type testEnv struct {
	server      *Server
	coordinator usecase.SessionCoordinator
	url         string
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCoordinator() usecase.SessionCoordinator {
	return usecase.NewSessionCoordinator(newTestLogger(), repository.NewInMemorySessionRepository(), time.Second)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	return newTestEnvWith(t, newTestCoordinator(), nil)
}

// newTestEnvWith serves the gateway over gateway, which defaults to coordinator.
func newTestEnvWith(t *testing.T, coordinator usecase.SessionCoordinator, gateway sessionCoordinator) *testEnv {
	t.Helper()

	if gateway == nil {
		gateway = coordinator
	}

	verifier := fakeVerifier{tokenX: userX, tokenO: userO, tokenZ: userZ}

	server := New(newTestLogger(), gateway, verifier, nil)

	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)

	return &testEnv{
		server:      server,
		coordinator: coordinator,
		url:         "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws",
	}
}

func (that *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()

	ws, _, err := websocket.DefaultDialer.Dial(that.url, nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = ws.Close() })

	return ws
}

// playingSession returns a session created by userX and joined by userO.
func (that *testEnv) playingSession(t *testing.T) *entity.Session {
	t.Helper()

	ctx := context.Background()

	session, err := that.coordinator.Create(ctx, userX, entity.PrivateVisibility)
	require.NoError(t, err)

	session, err = that.coordinator.Join(ctx, session.ID, userO)
	require.NoError(t, err)

	return session
}

func write(t *testing.T, ws *websocket.Conn, action string, payload any) {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	require.NoError(t, ws.WriteJSON(Message{Action: action, Payload: raw}))
}

func read[T any](t *testing.T, ws *websocket.Conn, action string) T {
	t.Helper()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))

	var message Message
	require.NoError(t, ws.ReadJSON(&message))
	require.Equal(t, action, message.Action, "payload: %s", message.Payload)

	var payload T
	require.NoError(t, json.Unmarshal(message.Payload, &payload))

	return payload
}

// assertSilent fails if anything arrives on ws within a short window.
func assertSilent(t *testing.T, ws *websocket.Conn) {
	t.Helper()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(200*time.Millisecond)))

	_, data, err := ws.ReadMessage()

	var netErr net.Error
	require.ErrorAs(t, err, &netErr, "unexpected message: %s", data)
	assert.True(t, netErr.Timeout())
}

func join(t *testing.T, ws *websocket.Conn, sessionID, token string) SessionState {
	t.Helper()

	write(t, ws, ActionJoinSession, JoinSession{SessionID: sessionID, Token: token})

	return read[SessionState](t, ws, ActionSessionState)
}

func move(t *testing.T, ws *websocket.Conn, sessionID string, cell int, mark entity.Mark) {
	t.Helper()

	write(t, ws, ActionSubmitMove, SubmitMove{SessionID: sessionID, CellIndex: &cell, Mark: mark})
}

func TestServer_JoinSession(t *testing.T) {
	t.Run("JoinSession_Player", func(t *testing.T) {
		env := newTestEnv(t)
		session := env.playingSession(t)
		ws := env.dial(t)

		// When: player O joins the room with a valid token
		state := join(t, ws, session.ID, tokenO)

		// Then: a snapshot arrives with the caller's role
		assert.Equal(t, session.ID, state.ID)
		assert.Equal(t, session.JoinCode, state.JoinCode)
		assert.Equal(t, entity.StatusPlaying, state.Status)
		assert.Equal(t, "---------", state.Board.String())
		assert.Equal(t, "O", state.ViewerRole)
	})

	t.Run("JoinSession_AnonymousObserver", func(t *testing.T) {
		env := newTestEnv(t)
		session := env.playingSession(t)
		ws := env.dial(t)

		// When: a connection joins with a bad token
		state := join(t, ws, session.ID, "forged")

		// Then: it observes without a role
		assert.Equal(t, viewerNone, state.ViewerRole)

		// And: it cannot move
		move(t, ws, session.ID, 0, entity.MarkX)
		rejected := read[MoveRejected](t, ws, ActionMoveRejected)
		assert.Equal(t, apperror.ReasonNotParticipant, rejected.Reason)
	})

	t.Run("JoinSession_UnknownSession", func(t *testing.T) {
		env := newTestEnv(t)
		ws := env.dial(t)

		write(t, ws, ActionJoinSession, JoinSession{SessionID: "missing", Token: tokenX})

		rejected := read[MoveRejected](t, ws, ActionMoveRejected)
		assert.Equal(t, apperror.ReasonNotFound, rejected.Reason)
		assert.Equal(t, "missing", rejected.SessionID)
		assert.Zero(t, env.server.rooms.Len())
	})

	t.Run("JoinSession_FailedJoinKeepsIdentity", func(t *testing.T) {
		env := newTestEnv(t)
		session := env.playingSession(t)
		ws := env.dial(t)

		// Given: X playing in a session
		join(t, ws, session.ID, tokenX)

		// When: the same connection asks for an unknown session with a bad token
		write(t, ws, ActionJoinSession, JoinSession{SessionID: "missing", Token: "expired"})
		rejected := read[MoveRejected](t, ws, ActionMoveRejected)
		require.Equal(t, apperror.ReasonNotFound, rejected.Reason)

		// Then: it is still X in the first session and still subscribed to it
		move(t, ws, session.ID, 4, entity.MarkX)
		state := read[SessionState](t, ws, ActionSessionState)
		assert.Equal(t, "----X----", state.Board.String())
		assert.Equal(t, "X", state.ViewerRole)
		assert.Equal(t, 1, env.server.rooms.Len())
	})
}

func TestServer_SubmitMove(t *testing.T) {
	t.Run("SubmitMove_BroadcastsPerViewer", func(t *testing.T) {
		env := newTestEnv(t)
		session := env.playingSession(t)

		wsX, wsO, wsZ := env.dial(t), env.dial(t), env.dial(t)
		join(t, wsX, session.ID, tokenX)
		join(t, wsO, session.ID, tokenO)
		join(t, wsZ, session.ID, tokenZ)

		// When: X plays the centre
		move(t, wsX, session.ID, 4, entity.MarkX)

		// Then: every subscriber gets the new board with its own role
		for ws, role := range map[*websocket.Conn]string{wsX: "X", wsO: "O", wsZ: viewerNone} {
			state := read[SessionState](t, ws, ActionSessionState)
			assert.Equal(t, "----X----", state.Board.String())
			assert.Equal(t, entity.MarkO, state.Turn)
			assert.Equal(t, role, state.ViewerRole)
		}
	})

	t.Run("SubmitMove_RejectionGoesToSenderOnly", func(t *testing.T) {
		env := newTestEnv(t)
		session := env.playingSession(t)

		wsX, wsO := env.dial(t), env.dial(t)
		join(t, wsX, session.ID, tokenX)
		join(t, wsO, session.ID, tokenO)

		// When: O tries to move first
		move(t, wsO, session.ID, 0, entity.MarkO)

		// Then: only O hears about it
		rejected := read[MoveRejected](t, wsO, ActionMoveRejected)
		assert.Equal(t, apperror.ReasonWrongTurn, rejected.Reason)
		assert.Equal(t, session.ID, rejected.SessionID)

		assertSilent(t, wsX)
	})

	t.Run("SubmitMove_FailedPersistGoesToSenderOnly", func(t *testing.T) {
		coordinator := newTestCoordinator()
		env := newTestEnvWith(t, coordinator, failingMoves{SessionCoordinator: coordinator})
		session := env.playingSession(t)

		wsX, wsO := env.dial(t), env.dial(t)
		join(t, wsX, session.ID, tokenX)
		join(t, wsO, session.ID, tokenO)

		// When: X moves but the store cannot save it
		move(t, wsX, session.ID, 4, entity.MarkX)

		// Then: X is told to retry without store details
		rejected := read[MoveRejected](t, wsX, ActionMoveRejected)
		assert.Equal(t, apperror.ReasonInternal, rejected.Reason)
		assert.Equal(t, session.ID, rejected.SessionID)
		assert.NotContains(t, rejected.Message, "EXECABORT")

		// And: nothing is broadcast to the room
		assertSilent(t, wsO)

		stored, err := coordinator.Get(context.Background(), session.ID)
		require.NoError(t, err)
		assert.Equal(t, "---------", stored.Board.String())
	})

	t.Run("SubmitMove_WinningLine", func(t *testing.T) {
		env := newTestEnv(t)
		session := env.playingSession(t)

		wsX, wsO := env.dial(t), env.dial(t)
		join(t, wsX, session.ID, tokenX)
		join(t, wsO, session.ID, tokenO)

		var state SessionState
		for i, cell := range []int{0, 4, 1, 5, 2} {
			if i%2 == 0 {
				move(t, wsX, session.ID, cell, entity.MarkX)
			} else {
				move(t, wsO, session.ID, cell, entity.MarkO)
			}

			state = read[SessionState](t, wsX, ActionSessionState)
			read[SessionState](t, wsO, ActionSessionState)
		}

		// Then: the final snapshot carries the outcome and the triple
		assert.Equal(t, "XXXOO----", state.Board.String())
		assert.Equal(t, entity.StatusFinished, state.Status)
		assert.Equal(t, entity.OutcomeX, state.Outcome)
		assert.Equal(t, []int{0, 1, 2}, state.WinLine)

		// And: further moves are refused
		move(t, wsO, session.ID, 8, entity.MarkO)
		rejected := read[MoveRejected](t, wsO, ActionMoveRejected)
		assert.Equal(t, apperror.ReasonGameFinished, rejected.Reason)
	})

	t.Run("SubmitMove_BadPayload", func(t *testing.T) {
		env := newTestEnv(t)
		ws := env.dial(t)

		// When: the cell index is missing
		write(t, ws, ActionSubmitMove, map[string]any{"sessionId": "s-1"})

		// Then: the request is malformed
		rejected := read[MoveRejected](t, ws, ActionMoveRejected)
		assert.Equal(t, apperror.ReasonBadRequest, rejected.Reason)
	})

	t.Run("UnknownAction", func(t *testing.T) {
		env := newTestEnv(t)
		ws := env.dial(t)

		write(t, ws, "game:leave", map[string]any{})

		rejected := read[MoveRejected](t, ws, ActionMoveRejected)
		assert.Equal(t, apperror.ReasonBadRequest, rejected.Reason)
	})
}

func TestServer_CloseDropsSubscriptions(t *testing.T) {
	env := newTestEnv(t)
	session := env.playingSession(t)

	// Given: a subscribed connection
	ws := env.dial(t)
	join(t, ws, session.ID, tokenX)
	require.Equal(t, 1, env.server.rooms.Len())

	// When: the client goes away
	require.NoError(t, ws.Close())

	// Then: its room membership is removed
	require.Eventually(t, func() bool {
		return env.server.rooms.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_BroadcastDropsSlowSubscriber(t *testing.T) {
	server := New(newTestLogger(), newTestCoordinator(), fakeVerifier{}, nil)
	session := entity.NewSession("s-1", "ABC123", userX, entity.PublicVisibility, time.Now())

	// Given: one subscriber with room in its queue and one whose queue is full
	fast, slow := newConn("fast", nil), newConn("slow", nil)
	for range sendQueueSize {
		require.True(t, slow.enqueue([]byte("{}")))
	}

	server.rooms.Subscribe(session.ID, fast)
	server.rooms.Subscribe(session.ID, slow)
	server.rooms.Subscribe("s-2", slow)

	// When: the session is broadcast
	server.broadcast(session)

	// Then: the slow one is closed and removed from every room
	assert.Equal(t, []*Conn{fast}, server.rooms.Members(session.ID))
	assert.Empty(t, server.rooms.Members("s-2"))
	assert.Empty(t, slow.subscriptions())

	select {
	case <-slow.done:
	default:
		t.Fatal("slow connection was not closed")
	}

	// And: the fast one got its snapshot
	assert.Len(t, fast.send, 1)
}
