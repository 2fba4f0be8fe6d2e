package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Mark string

const (
	MarkX Mark = "X"
	MarkO Mark = "O"

	EmptyCell Mark = ""
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

type Outcome string

const (
	OutcomeNone Outcome = ""
	OutcomeX    Outcome = "X"
	OutcomeO    Outcome = "O"
	OutcomeDraw Outcome = "draw"
)

type Visibility string

const (
	PublicVisibility  Visibility = "public"
	PrivateVisibility Visibility = "private"
)

const (
	BoardSize = 9

	// boardEmptySymbol is how an empty cell is written in the wire form of the board.
	boardEmptySymbol = '-'
)

var ErrInvalidBoard = errors.New("invalid board")

// Board is a 3x3 grid stored row-major.
type Board [BoardSize]Mark

// String renders the board as 9 characters, "-" for an empty cell.
func (that Board) String() string {
	var sb strings.Builder
	sb.Grow(BoardSize)

	for _, cell := range that {
		if cell == EmptyCell {
			sb.WriteByte(boardEmptySymbol)
			continue
		}
		sb.WriteString(string(cell))
	}

	return sb.String()
}

func (that Board) IsFull() bool {
	for _, cell := range that {
		if cell == EmptyCell {
			return false
		}
	}

	return true
}

func ParseBoard(raw string) (Board, error) {
	var board Board

	if len(raw) != BoardSize {
		return board, fmt.Errorf("%w: length %d", ErrInvalidBoard, len(raw))
	}

	for i := range raw {
		switch raw[i] {
		case boardEmptySymbol:
			board[i] = EmptyCell
		case 'X':
			board[i] = MarkX
		case 'O':
			board[i] = MarkO
		default:
			return board, fmt.Errorf("%w: symbol %q at %d", ErrInvalidBoard, raw[i], i)
		}
	}

	return board, nil
}

func (that Board) MarshalJSON() ([]byte, error) {
	return json.Marshal(that.String())
}

func (that *Board) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBoard, err)
	}

	board, err := ParseBoard(raw)
	if err != nil {
		return err
	}

	*that = board
	return nil
}

func (that Mark) IsValid() bool {
	return that == MarkX || that == MarkO
}

// Opposite returns the other mark. EmptyCell maps to itself.
func (that Mark) Opposite() Mark {
	switch that {
	case MarkX:
		return MarkO
	case MarkO:
		return MarkX
	default:
		return that
	}
}

func (that Visibility) IsValid() bool {
	return that == PublicVisibility || that == PrivateVisibility
}

// Session is one tic-tac-toe match between two identities.
type Session struct {
	ID         string     `json:"id"`
	JoinCode   string     `json:"join_code"`
	Visibility Visibility `json:"visibility"`
	PlayerX    string     `json:"player_x"`
	PlayerO    string     `json:"player_o,omitempty"`
	Board      Board      `json:"board"`
	Turn       Mark       `json:"turn"`
	Status     Status     `json:"status"`
	Outcome    Outcome    `json:"outcome,omitempty"`
	WinLine    []int      `json:"win_line,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func NewSession(id, joinCode, creatorID string, visibility Visibility, now time.Time) *Session {
	return &Session{
		ID:         id,
		JoinCode:   joinCode,
		Visibility: visibility,
		PlayerX:    creatorID,
		Turn:       MarkX,
		Status:     StatusWaiting,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (that *Session) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Session) IsPlaying() bool {
	return that.Status == StatusPlaying
}

func (that *Session) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Session) IsPublic() bool {
	return that.Visibility == PublicVisibility
}

// RoleOf reports which mark the identity plays, or EmptyCell for anyone else.
func (that *Session) RoleOf(userID string) Mark {
	switch {
	case userID == "":
		return EmptyCell
	case userID == that.PlayerX:
		return MarkX
	case userID == that.PlayerO:
		return MarkO
	default:
		return EmptyCell
	}
}

func (that *Session) IsParticipant(userID string) bool {
	return that.RoleOf(userID) != EmptyCell
}

// Clone returns a deep copy so callers can mutate without touching the original.
func (that *Session) Clone() *Session {
	clone := *that
	if that.WinLine != nil {
		clone.WinLine = append([]int(nil), that.WinLine...)
	}

	return &clone
}

// NormalizeJoinCode upper-cases and trims a user supplied code.
func NormalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
