package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"chatsync/internal/domain/user"
)

func NewUserRepository(pool *pgxpool.Pool, log *slog.Logger) *UserRepository {
	return &UserRepository{
		pool: pool,
		log:  log.With("component", "user_repository"),
	}
}

type UserRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// Create создает пользователя; повторный логин возвращает существующую запись
func (r *UserRepository) Create(ctx context.Context, login string) (user.User, error) {
	var u user.User
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (login) VALUES ($1)
		 ON CONFLICT (login) DO UPDATE SET login = EXCLUDED.login
		 RETURNING id, login, created_at`,
		login).Scan(&u.ID, &u.Login, &u.CreatedAt)
	if err != nil {
		return u, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByLogin(ctx context.Context, login string) (user.User, error) {
	var u user.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, login, created_at FROM users WHERE login = $1`, login).
		Scan(&u.ID, &u.Login, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return u, user.ErrNotFound
	}
	if err != nil {
		return u, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}
