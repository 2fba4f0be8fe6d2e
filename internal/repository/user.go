package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ncruces/go-sqlite3"

	"github.com/rocketscienceinc/tictactoe-realtime/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-realtime/internal/entity"
)

type UserRepository interface {
	Save(ctx context.Context, user *entity.User) error
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
}

type userRepository struct {
	conn *sql.DB
}

func NewUserRepository(conn *sql.DB) UserRepository {
	return &userRepository{
		conn: conn,
	}
}

// Save inserts the user and fills in its generated id.
func (that *userRepository) Save(ctx context.Context, user *entity.User) error {
	query := `INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)`

	email := sql.NullString{String: user.Email, Valid: user.Email != ""}

	result, err := that.conn.ExecContext(ctx, query, user.Username, email, user.PasswordHash)
	if err != nil {
		if errors.Is(err, sqlite3.CONSTRAINT_UNIQUE) {
			return fmt.Errorf("%w: %s", apperror.ErrUserExists, user.Username)
		}
		return fmt.Errorf("can't save user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("can't read user id: %w", err)
	}

	user.ID = id

	return nil
}

func (that *userRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	query := `SELECT id, username, email, password_hash FROM users WHERE username = ?`

	return that.findOne(ctx, query, username)
}

func (that *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	query := `SELECT id, username, email, password_hash FROM users WHERE email = ?`

	return that.findOne(ctx, query, email)
}

func (that *userRepository) findOne(ctx context.Context, query string, arg any) (*entity.User, error) {
	var (
		user  entity.User
		email sql.NullString
	)

	err := that.conn.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Username, &email, &user.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("can't find user: %w", err)
	}

	user.Email = email.String

	return &user, nil
}
