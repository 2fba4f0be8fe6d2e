package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-realtime/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-realtime/internal/entity"
)

const (
	sessionKeyPrefix = "session:"
	codeKeyPrefix    = "session:code:"
	waitingSetKey    = "sessions:waiting"
)

type SessionRepository interface {
	Put(ctx context.Context, session *entity.Session) error
	GetByID(ctx context.Context, id string) (*entity.Session, error)
	GetByCode(ctx context.Context, code string) (*entity.Session, error)
	ReserveCode(ctx context.Context, code, sessionID string) (bool, error)
	// ReleaseCode frees a reservation made by sessionID. It is a no-op once the
	// session record exists or the code belongs to another session.
	ReleaseCode(ctx context.Context, code, sessionID string) error
	ListWaitingPublic(ctx context.Context) ([]*entity.Session, error)
}

type dbSession struct {
	client *redis.Client
}

func NewSessionRepository(client *redis.Client) SessionRepository {
	return &dbSession{
		client: client,
	}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func codeKey(code string) string {
	return codeKeyPrefix + entity.NormalizeJoinCode(code)
}

// Put replaces the whole record and keeps the waiting index in step, in one MULTI/EXEC.
func (that *dbSession) Put(ctx context.Context, session *entity.Session) error {
	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("could not marshal session: %w", err)
	}

	_, err = that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.ID), sessionJSON, 0)
		pipe.Set(ctx, codeKey(session.JoinCode), session.ID, 0)

		if session.IsPublic() && session.IsWaiting() {
			pipe.SAdd(ctx, waitingSetKey, session.ID)
		} else {
			pipe.SRem(ctx, waitingSetKey, session.ID)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to put session: %w", err)
	}

	return nil
}

func (that *dbSession) GetByID(ctx context.Context, id string) (*entity.Session, error) {
	response, err := that.client.Get(ctx, sessionKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: id %s", apperror.ErrNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get session by id: %w", err)
	}

	return decodeSession(response)
}

func (that *dbSession) GetByCode(ctx context.Context, code string) (*entity.Session, error) {
	id, err := that.client.Get(ctx, codeKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: code %s", apperror.ErrNotFound, code)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get session by code: %w", err)
	}

	return that.GetByID(ctx, id)
}

// ReserveCode claims code for sessionID. It returns false when the code is taken.
func (that *dbSession) ReserveCode(ctx context.Context, code, sessionID string) (bool, error) {
	ok, err := that.client.SetNX(ctx, codeKey(code), sessionID, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve join code: %w", err)
	}

	return ok, nil
}

func (that *dbSession) ReleaseCode(ctx context.Context, code, sessionID string) error {
	key := codeKey(code)

	release := func(tx *redis.Tx) error {
		stored, err := tx.Exists(ctx, sessionKey(sessionID)).Result()
		if err != nil {
			return err
		}

		owner, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}

		if err != nil {
			return err
		}

		if stored > 0 || owner != sessionID {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})

		return err
	}

	err := that.client.Watch(ctx, release, sessionKey(sessionID), key)
	if errors.Is(err, redis.TxFailedErr) {
		// the session or the code changed underneath, so the reservation is in use
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to release join code: %w", err)
	}

	return nil
}

func (that *dbSession) ListWaitingPublic(ctx context.Context) ([]*entity.Session, error) {
	ids, err := that.client.SMembers(ctx, waitingSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list waiting sessions: %w", err)
	}

	if len(ids) == 0 {
		return []*entity.Session{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}

	values, err := that.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load waiting sessions: %w", err)
	}

	sessions := make([]*entity.Session, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			// record vanished between SMEMBERS and MGET
			continue
		}

		session, err := decodeSession(raw)
		if err != nil {
			return nil, err
		}

		if session.IsPublic() && session.IsWaiting() {
			sessions = append(sessions, session)
		}
	}

	return sessions, nil
}

func decodeSession(raw string) (*entity.Session, error) {
	var session entity.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}
