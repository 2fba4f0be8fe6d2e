package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/rocketscienceinc/tictactoe-realtime/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-realtime/internal/entity"
)

// memSession keeps sessions in process. Records are cloned on the way in and out so
// callers never share state with the store, same as with the redis encoding.
type memSession struct {
	mu       sync.RWMutex
	sessions map[string]*entity.Session
	codes    map[string]string
}

func NewInMemorySessionRepository() SessionRepository {
	return &memSession{
		sessions: make(map[string]*entity.Session),
		codes:    make(map[string]string),
	}
}

func (that *memSession) Put(_ context.Context, session *entity.Session) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.sessions[session.ID] = session.Clone()
	that.codes[entity.NormalizeJoinCode(session.JoinCode)] = session.ID

	return nil
}

func (that *memSession) GetByID(_ context.Context, id string) (*entity.Session, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.getByID(id)
}

func (that *memSession) GetByCode(_ context.Context, code string) (*entity.Session, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	id, ok := that.codes[entity.NormalizeJoinCode(code)]
	if !ok {
		return nil, fmt.Errorf("%w: code %s", apperror.ErrNotFound, code)
	}

	return that.getByID(id)
}

func (that *memSession) getByID(id string) (*entity.Session, error) {
	session, ok := that.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %s", apperror.ErrNotFound, id)
	}

	return session.Clone(), nil
}

func (that *memSession) ReserveCode(_ context.Context, code, sessionID string) (bool, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	code = entity.NormalizeJoinCode(code)
	if _, ok := that.codes[code]; ok {
		return false, nil
	}

	that.codes[code] = sessionID

	return true, nil
}

func (that *memSession) ReleaseCode(_ context.Context, code, sessionID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	code = entity.NormalizeJoinCode(code)
	if that.codes[code] != sessionID {
		return nil
	}

	if _, stored := that.sessions[sessionID]; stored {
		return nil
	}

	delete(that.codes, code)

	return nil
}

func (that *memSession) ListWaitingPublic(_ context.Context) ([]*entity.Session, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	sessions := []*entity.Session{}
	for _, session := range that.sessions {
		if session.IsPublic() && session.IsWaiting() {
			sessions = append(sessions, session.Clone())
		}
	}

	return sessions, nil
}
