package apperror

import (
	"context"
	"errors"
)

var (
	ErrNotFound           = errors.New("session not found")
	ErrSessionFull        = errors.New("session already has two players")
	ErrNotParticipant     = errors.New("not a participant of this session")
	ErrWrongTurn          = errors.New("it's not your turn")
	ErrCellOccupied       = errors.New("cell is already occupied")
	ErrIndexOutOfRange    = errors.New("cell index out of range")
	ErrGameFinished       = errors.New("game is already finished")
	ErrGameIsNotStarted   = errors.New("game is not started")
	ErrMarkMismatch       = errors.New("declared mark does not match your role")
	ErrInvalidMark        = errors.New("invalid mark")
	ErrInvalidVisibility  = errors.New("invalid visibility")
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique join code")

	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// Reason is the machine readable rejection reason sent to clients.
type Reason string

const (
	ReasonNotFound        Reason = "not_found"
	ReasonSessionFull     Reason = "session_full"
	ReasonNotParticipant  Reason = "not_participant"
	ReasonWrongTurn       Reason = "wrong_turn"
	ReasonCellOccupied    Reason = "cell_occupied"
	ReasonIndexOutOfRange Reason = "index_out_of_range"
	ReasonGameFinished    Reason = "game_finished"
	ReasonGameNotStarted  Reason = "game_not_started"
	ReasonMarkMismatch    Reason = "mark_mismatch"
	ReasonBadRequest      Reason = "bad_request"
	ReasonUnauthorized    Reason = "unauthorized"
	ReasonUserExists      Reason = "user_exists"
	ReasonTimeout         Reason = "timeout"
	ReasonInternal        Reason = "internal"
)

var reasons = []struct {
	err    error
	reason Reason
}{
	{ErrNotFound, ReasonNotFound},
	{ErrSessionFull, ReasonSessionFull},
	{ErrNotParticipant, ReasonNotParticipant},
	{ErrWrongTurn, ReasonWrongTurn},
	{ErrCellOccupied, ReasonCellOccupied},
	{ErrIndexOutOfRange, ReasonIndexOutOfRange},
	{ErrGameFinished, ReasonGameFinished},
	{ErrGameIsNotStarted, ReasonGameNotStarted},
	{ErrMarkMismatch, ReasonMarkMismatch},
	{ErrInvalidMark, ReasonBadRequest},
	{ErrInvalidVisibility, ReasonBadRequest},
	{ErrUserNotFound, ReasonNotFound},
	{ErrUserExists, ReasonUserExists},
	{ErrInvalidToken, ReasonUnauthorized},
	{ErrInvalidCredentials, ReasonUnauthorized},
	{context.DeadlineExceeded, ReasonTimeout},
}

// ReasonOf maps an error chain onto its rejection reason. Unknown errors are internal.
func ReasonOf(err error) Reason {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}

	return ReasonInternal
}

// IsRejection reports whether err is a domain rejection rather than an infrastructure failure.
func IsRejection(err error) bool {
	switch ReasonOf(err) {
	case ReasonInternal, ReasonTimeout:
		return false
	default:
		return true
	}
}
