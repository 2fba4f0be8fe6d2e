package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rocketscienceinc/tictactoe-realtime/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-realtime/internal/entity"
)

const (
	ActionJoinSession  = "join-session"
	ActionSubmitMove   = "submit-move"
	ActionSessionState = "session-state"
	ActionMoveRejected = "move-rejected"
)

// viewerNone is the viewerRole of anyone who is not one of the two players.
const viewerNone = "none"

var errBadRequest = errors.New("bad request")

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound is one of JoinSession or SubmitMove.
type Inbound interface {
	inbound()
}

// Outbound is one of SessionState or MoveRejected.
type Outbound interface {
	action() string
}

type JoinSession struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

type SubmitMove struct {
	SessionID string      `json:"sessionId"`
	CellIndex *int        `json:"cellIndex"`
	Mark      entity.Mark `json:"mark"`
}

func (JoinSession) inbound() {}
func (SubmitMove) inbound()  {}

type SessionState struct {
	ID         string            `json:"id"`
	JoinCode   string            `json:"joinCode"`
	Visibility entity.Visibility `json:"visibility"`
	PlayerX    string            `json:"playerX"`
	PlayerO    string            `json:"playerO"`
	Status     entity.Status     `json:"status"`
	Board      entity.Board      `json:"board"`
	Turn       entity.Mark       `json:"turn"`
	Outcome    entity.Outcome    `json:"outcome,omitempty"`
	WinLine    []int             `json:"winLine,omitempty"`
	ViewerRole string            `json:"viewerRole"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

type MoveRejected struct {
	SessionID string          `json:"sessionId,omitempty"`
	Reason    apperror.Reason `json:"reason"`
	Message   string          `json:"message,omitempty"`
}

func (SessionState) action() string { return ActionSessionState }
func (MoveRejected) action() string { return ActionMoveRejected }

var inboundDecoders = map[string]func(json.RawMessage) (Inbound, error){
	ActionJoinSession: func(raw json.RawMessage) (Inbound, error) {
		var msg JoinSession
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("%w: %w", errBadRequest, err)
		}

		if msg.SessionID == "" {
			return nil, fmt.Errorf("%w: sessionId is required", errBadRequest)
		}

		return msg, nil
	},
	ActionSubmitMove: func(raw json.RawMessage) (Inbound, error) {
		var msg SubmitMove
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("%w: %w", errBadRequest, err)
		}

		switch {
		case msg.SessionID == "":
			return nil, fmt.Errorf("%w: sessionId is required", errBadRequest)
		case msg.CellIndex == nil:
			return nil, fmt.Errorf("%w: cellIndex is required", errBadRequest)
		case msg.Mark != entity.EmptyCell && !msg.Mark.IsValid():
			return nil, fmt.Errorf("%w: mark %q", errBadRequest, msg.Mark)
		}

		return msg, nil
	},
}

// decodeInbound parses a raw frame into its inbound variant.
func decodeInbound(data []byte) (Inbound, error) {
	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		return nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}

	decode, ok := inboundDecoders[message.Action]
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %q", errBadRequest, message.Action)
	}

	return decode(message.Payload)
}

func encodeOutbound(out Outbound) ([]byte, error) {
	payload, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	data, err := json.Marshal(Message{Action: out.action(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	return data, nil
}

// stateFor renders the session as seen by viewer.
func stateFor(session *entity.Session, viewer string) SessionState {
	role := viewerNone
	if mark := session.RoleOf(viewer); mark != entity.EmptyCell {
		role = string(mark)
	}

	return SessionState{
		ID:         session.ID,
		JoinCode:   session.JoinCode,
		Visibility: session.Visibility,
		PlayerX:    session.PlayerX,
		PlayerO:    session.PlayerO,
		Status:     session.Status,
		Board:      session.Board,
		Turn:       session.Turn,
		Outcome:    session.Outcome,
		WinLine:    session.WinLine,
		ViewerRole: role,
		UpdatedAt:  session.UpdatedAt,
	}
}

// rejectionFor hides infrastructure details from clients.
func rejectionFor(sessionID string, err error) MoveRejected {
	if errors.Is(err, errBadRequest) {
		return MoveRejected{SessionID: sessionID, Reason: apperror.ReasonBadRequest, Message: err.Error()}
	}

	reason := apperror.ReasonOf(err)

	message := err.Error()
	if !apperror.IsRejection(err) {
		message = "please try again"
	}

	return MoveRejected{SessionID: sessionID, Reason: reason, Message: message}
}
