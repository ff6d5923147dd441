package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"chatsync/internal/domain/session"
)

// TokenRepository хранит bcrypt-хэши выданных токенов
type TokenRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewTokenRepository(pool *pgxpool.Pool, log *slog.Logger) *TokenRepository {
	return &TokenRepository{
		pool: pool,
		log:  log.With("component", "token_repository"),
	}
}

func (r *TokenRepository) Create(ctx context.Context, token session.Token) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tokens (id, user_id, secret_hash, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		token.ID, token.UserID, token.SecretHash, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return fmt.Errorf("create token: %w", err)
	}
	return nil
}

func (r *TokenRepository) Find(ctx context.Context, id string) (session.Token, error) {
	t := session.Token{ID: id}
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, secret_hash, expires_at, created_at
		 FROM tokens WHERE id = $1 AND revoked_at IS NULL`, id).
		Scan(&t.UserID, &t.SecretHash, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, session.ErrInvalidToken
	}
	if err != nil {
		return t, fmt.Errorf("find token: %w", err)
	}
	return t, nil
}

func (r *TokenRepository) Revoke(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tokens SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrInvalidToken
	}
	r.log.Info("token revoked", "token_id", id)
	return nil
}
