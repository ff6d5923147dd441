package user

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/exp/slog"
)

type Servicer interface {
	EnsureUser(ctx context.Context, login string) (User, error)
}

type Service struct {
	repo Repository
	log  *slog.Logger
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
	}
}

// EnsureUser возвращает пользователя по логину, создавая его при первом обращении
func (s *Service) EnsureUser(ctx context.Context, login string) (User, error) {
	if err := ValidateLogin(login); err != nil {
		s.log.Debug("validation failed", "login", login, "error", err)
		return User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	u, err := s.repo.FindByLogin(ctx, login)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("find user: %w", err)
	}

	u, err = s.repo.Create(ctx, login)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user created", "login", login, "id", u.ID)
	return u, nil
}
