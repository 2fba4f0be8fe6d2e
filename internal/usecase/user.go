package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rocketscienceinc/tictactoe-realtime/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-realtime/internal/entity"
)

type UserUseCase interface {
	Register(ctx context.Context, username, password string) (string, error)
	Login(ctx context.Context, username, password string) (string, error)
	// LoginWithEmail finds or creates the user behind an externally verified email.
	LoginWithEmail(ctx context.Context, email string) (string, error)
}

type userRepo interface {
	Save(ctx context.Context, user *entity.User) error
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
}

type authenticator interface {
	GenerateToken(user *entity.User) (string, error)
	HashPassword(password string) (string, error)
	ComparePassword(hash, password string) error
}

type userUseCase struct {
	repo userRepo
	auth authenticator
}

func NewUserUseCase(repo userRepo, auth authenticator) UserUseCase {
	return &userUseCase{
		repo: repo,
		auth: auth,
	}
}

func (that *userUseCase) Register(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", apperror.ErrInvalidCredentials
	}

	hash, err := that.auth.HashPassword(password)
	if err != nil {
		return "", err
	}

	user := &entity.User{Username: username, PasswordHash: hash}
	if err = that.repo.Save(ctx, user); err != nil {
		return "", fmt.Errorf("failed to save user into storage: %w", err)
	}

	return that.auth.GenerateToken(user)
}

func (that *userUseCase) Login(ctx context.Context, username, password string) (string, error) {
	user, err := that.repo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			return "", apperror.ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to find user into storage: %w", err)
	}

	if err = that.auth.ComparePassword(user.PasswordHash, password); err != nil {
		return "", err
	}

	return that.auth.GenerateToken(user)
}

func (that *userUseCase) LoginWithEmail(ctx context.Context, email string) (string, error) {
	user, err := that.repo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperror.ErrUserNotFound) {
			return "", fmt.Errorf("failed to find user into storage: %w", err)
		}

		user = &entity.User{Username: email, Email: email}
		if err = that.repo.Save(ctx, user); err != nil {
			return "", fmt.Errorf("failed to save user into storage: %w", err)
		}
	}

	return that.auth.GenerateToken(user)
}
