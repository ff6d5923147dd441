package session

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, token Token) error
	// Find возвращает ErrInvalidToken, если токена нет
	Find(ctx context.Context, id string) (Token, error)
	Revoke(ctx context.Context, id string) error
}
