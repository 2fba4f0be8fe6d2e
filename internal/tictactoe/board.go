package tictactoe

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-realtime/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-realtime/internal/entity"
)

type ResultKind int

const (
	None ResultKind = iota
	Win
	Draw
)

// WinCombos are checked in order: rows, columns, diagonals.
var WinCombos = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Result is the terminal evaluation of a board. Mark and Line are set only for Win.
type Result struct {
	Kind ResultKind
	Mark entity.Mark
	Line [3]int
}

// ApplyMark returns a copy of board with mark placed at index.
func ApplyMark(board entity.Board, index int, mark entity.Mark) (entity.Board, error) {
	if index < 0 || index >= len(board) {
		return board, fmt.Errorf("%w: cell %d", apperror.ErrIndexOutOfRange, index)
	}

	if !mark.IsValid() {
		return board, fmt.Errorf("%w: %q", apperror.ErrInvalidMark, mark)
	}

	if board[index] != entity.EmptyCell {
		return board, fmt.Errorf("%w: cell %d", apperror.ErrCellOccupied, index)
	}

	board[index] = mark

	return board, nil
}

func EvaluateOutcome(board entity.Board) Result {
	for _, combo := range WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != entity.EmptyCell && a == b && b == c {
			return Result{Kind: Win, Mark: a, Line: combo}
		}
	}

	if board.IsFull() {
		return Result{Kind: Draw}
	}

	return Result{Kind: None}
}

// Outcome converts the result into the session outcome value.
func (that Result) Outcome() entity.Outcome {
	switch that.Kind {
	case Win:
		return entity.Outcome(that.Mark)
	case Draw:
		return entity.OutcomeDraw
	default:
		return entity.OutcomeNone
	}
}

func (that Result) IsTerminal() bool {
	return that.Kind != None
}
