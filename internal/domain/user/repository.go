package user

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, login string) (User, error)
	// FindByLogin возвращает ErrNotFound, если пользователя нет
	FindByLogin(ctx context.Context, login string) (User, error)
}
