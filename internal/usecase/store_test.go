package usecase

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/rocketscienceinc/tictactoe-realtime/internal/entity"
)

type mockSessionStore struct {
	mock.Mock
}

func (that *mockSessionStore) Put(ctx context.Context, session *entity.Session) error {
	args := that.Called(ctx, session)
	return args.Error(0)
}

func (that *mockSessionStore) GetByID(ctx context.Context, id string) (*entity.Session, error) {
	args := that.Called(ctx, id)
	session, _ := args.Get(0).(*entity.Session)
	return session, args.Error(1)
}

func (that *mockSessionStore) GetByCode(ctx context.Context, code string) (*entity.Session, error) {
	args := that.Called(ctx, code)
	session, _ := args.Get(0).(*entity.Session)
	return session, args.Error(1)
}

func (that *mockSessionStore) ReserveCode(ctx context.Context, code, sessionID string) (bool, error) {
	args := that.Called(ctx, code, sessionID)
	return args.Bool(0), args.Error(1)
}

func (that *mockSessionStore) ReleaseCode(ctx context.Context, code, sessionID string) error {
	args := that.Called(ctx, code, sessionID)
	return args.Error(0)
}

func (that *mockSessionStore) ListWaitingPublic(ctx context.Context) ([]*entity.Session, error) {
	args := that.Called(ctx)
	sessions, _ := args.Get(0).([]*entity.Session)
	return sessions, args.Error(1)
}
