package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/tictactoe-realtime/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-realtime/internal/entity"
	"github.com/rocketscienceinc/tictactoe-realtime/internal/tictactoe"
)

const (
	defaultStoreTimeout = 3 * time.Second
	maxCodeAttempts     = 16
)

type SessionCoordinator interface {
	Create(ctx context.Context, creatorID string, visibility entity.Visibility) (*entity.Session, error)
	Join(ctx context.Context, sessionID, joinerID string) (*entity.Session, error)
	JoinByRef(ctx context.Context, ref, joinerID string) (*entity.Session, error)
	ApplyMove(ctx context.Context, sessionID, actorID string, index int, mark entity.Mark) (*entity.Session, error)

	Get(ctx context.Context, id string) (*entity.Session, error)
	GetByRef(ctx context.Context, ref string) (*entity.Session, error)
	ListWaiting(ctx context.Context) ([]*entity.Session, error)
}

type sessionStore interface {
	Put(ctx context.Context, session *entity.Session) error
	GetByID(ctx context.Context, id string) (*entity.Session, error)
	GetByCode(ctx context.Context, code string) (*entity.Session, error)
	ReserveCode(ctx context.Context, code, sessionID string) (bool, error)
	ReleaseCode(ctx context.Context, code, sessionID string) error
	ListWaitingPublic(ctx context.Context) ([]*entity.Session, error)
}

type sessionCoordinator struct {
	logger *slog.Logger
	store  sessionStore
	locks  *keyedLock

	storeTimeout time.Duration

	now     func() time.Time
	newID   func() string
	newCode func() (string, error)
}

func NewSessionCoordinator(logger *slog.Logger, store sessionStore, storeTimeout time.Duration) SessionCoordinator {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}

	return &sessionCoordinator{
		logger:       logger.With("component", "session-coordinator"),
		store:        store,
		locks:        newKeyedLock(),
		storeTimeout: storeTimeout,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
		newCode:      generateJoinCode,
	}
}

func (that *sessionCoordinator) Create(ctx context.Context, creatorID string, visibility entity.Visibility) (*entity.Session, error) {
	log := that.logger.With("method", "Create")

	if creatorID == "" {
		return nil, apperror.ErrInvalidToken
	}

	if !visibility.IsValid() {
		return nil, fmt.Errorf("%w: %q", apperror.ErrInvalidVisibility, visibility)
	}

	id := that.newID()

	code, err := that.reserveCode(ctx, id)
	if err != nil {
		return nil, err
	}

	session := entity.NewSession(id, code, creatorID, visibility, that.now())

	if err = that.put(ctx, session); err != nil {
		if writeMayHaveLanded(err) {
			// the record may be stored, so its code stays reserved
			log.Warn("session write outcome unknown, keeping join code", "session_id", id, "code", code, "error", err)
			return nil, fmt.Errorf("failed to save session: %w", err)
		}

		if releaseErr := that.withTimeout(ctx, func(ctx context.Context) error {
			return that.store.ReleaseCode(ctx, code, id)
		}); releaseErr != nil {
			log.Warn("could not release join code", "code", code, "error", releaseErr)
		}

		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	log.Info("session created", "session_id", id, "join_code", code, "visibility", visibility)

	return session, nil
}

func (that *sessionCoordinator) reserveCode(ctx context.Context, sessionID string) (string, error) {
	for range maxCodeAttempts {
		code, err := that.newCode()
		if err != nil {
			return "", err
		}

		var reserved bool
		err = that.withTimeout(ctx, func(ctx context.Context) error {
			var err error
			reserved, err = that.store.ReserveCode(ctx, code, sessionID)
			return err
		})
		if err != nil {
			return "", fmt.Errorf("failed to reserve join code: %w", err)
		}

		if reserved {
			return code, nil
		}
	}

	return "", apperror.ErrCodeSpaceExhausted
}

func (that *sessionCoordinator) Join(ctx context.Context, sessionID, joinerID string) (*entity.Session, error) {
	log := that.logger.With("method", "Join", "session_id", sessionID)

	if joinerID == "" {
		return nil, apperror.ErrInvalidToken
	}

	unlock := that.locks.Lock(sessionID)
	defer unlock()

	session, err := that.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.IsParticipant(joinerID) {
		return session, nil
	}

	if session.IsFinished() {
		return nil, apperror.ErrGameFinished
	}

	if session.PlayerO != "" {
		return nil, apperror.ErrSessionFull
	}

	next := session.Clone()
	next.PlayerO = joinerID
	next.Status = entity.StatusPlaying
	next.UpdatedAt = that.now()

	if err = that.put(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save joined session: %w", err)
	}

	log.Info("player joined", "player_o", joinerID)

	return next, nil
}

func (that *sessionCoordinator) JoinByRef(ctx context.Context, ref, joinerID string) (*entity.Session, error) {
	session, err := that.GetByRef(ctx, ref)
	if err != nil {
		return nil, err
	}

	return that.Join(ctx, session.ID, joinerID)
}

// ApplyMove validates and records one move. The actor's mark is derived from the stored
// players; a non-empty client mark must agree with it.
func (that *sessionCoordinator) ApplyMove(
	ctx context.Context,
	sessionID, actorID string,
	index int,
	mark entity.Mark,
) (*entity.Session, error) {
	log := that.logger.With("method", "ApplyMove", "session_id", sessionID)

	unlock := that.locks.Lock(sessionID)
	defer unlock()

	session, err := that.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	role := session.RoleOf(actorID)

	switch {
	case role == entity.EmptyCell:
		return nil, apperror.ErrNotParticipant
	case session.IsFinished():
		return nil, apperror.ErrGameFinished
	case session.IsWaiting():
		return nil, apperror.ErrGameIsNotStarted
	case role != session.Turn:
		return nil, apperror.ErrWrongTurn
	case mark != entity.EmptyCell && mark != role:
		return nil, fmt.Errorf("%w: declared %q, playing %q", apperror.ErrMarkMismatch, mark, role)
	}

	board, err := tictactoe.ApplyMark(session.Board, index, role)
	if err != nil {
		return nil, err
	}

	next := session.Clone()
	next.Board = board
	next.Turn = role.Opposite()
	next.UpdatedAt = that.now()

	result := tictactoe.EvaluateOutcome(board)
	if result.IsTerminal() {
		next.Status = entity.StatusFinished
		next.Outcome = result.Outcome()
		if result.Kind == tictactoe.Win {
			next.WinLine = result.Line[:]
		}
	}

	if err = that.put(ctx, next); err != nil {
		log.Error("could not persist move", "cell", index, "mark", role, "error", err)
		return nil, fmt.Errorf("failed to save move: %w", err)
	}

	log.Debug("move applied", "cell", index, "mark", role, "board", next.Board.String())

	if next.IsFinished() {
		log.Info("session finished", "outcome", next.Outcome)
	}

	return next, nil
}

func (that *sessionCoordinator) Get(ctx context.Context, id string) (*entity.Session, error) {
	return that.load(ctx, id)
}

// GetByRef resolves ref as a session id first and as a join code second.
func (that *sessionCoordinator) GetByRef(ctx context.Context, ref string) (*entity.Session, error) {
	session, err := that.load(ctx, ref)
	if err == nil || !errors.Is(err, apperror.ErrNotFound) {
		return session, err
	}

	code := entity.NormalizeJoinCode(ref)

	return retryRead(ctx, that, func(ctx context.Context) (*entity.Session, error) {
		return that.store.GetByCode(ctx, code)
	})
}

func (that *sessionCoordinator) ListWaiting(ctx context.Context) ([]*entity.Session, error) {
	return retryRead(ctx, that, that.store.ListWaitingPublic)
}

func (that *sessionCoordinator) load(ctx context.Context, id string) (*entity.Session, error) {
	if id == "" {
		return nil, apperror.ErrNotFound
	}

	return retryRead(ctx, that, func(ctx context.Context) (*entity.Session, error) {
		return that.store.GetByID(ctx, id)
	})
}

// put is a single bounded attempt: a write that may have landed is never replayed.
func (that *sessionCoordinator) put(ctx context.Context, session *entity.Session) error {
	return that.withTimeout(ctx, func(ctx context.Context) error {
		return that.store.Put(ctx, session)
	})
}

func (that *sessionCoordinator) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, that.storeTimeout)
	defer cancel()

	return fn(ctx)
}

// retryRead runs a store read under the store timeout and repeats it once on a transient failure.
func retryRead[T any](ctx context.Context, that *sessionCoordinator, fn func(context.Context) (T, error)) (T, error) {
	var value T

	read := func(ctx context.Context) error {
		var err error
		value, err = fn(ctx)
		return err
	}

	err := that.withTimeout(ctx, read)
	if err == nil || !isTransient(ctx, err) {
		return value, err
	}

	that.logger.Warn("store read failed, retrying", "error", err)

	err = that.withTimeout(ctx, read)

	return value, err
}

func isTransient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	return !errors.Is(err, apperror.ErrNotFound) && !errors.Is(err, context.Canceled)
}

// writeMayHaveLanded reports whether a failed write could still have been applied by the store.
func writeMayHaveLanded(err error) bool {
	var netErr net.Error

	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.As(err, &netErr)
}
