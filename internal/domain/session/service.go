package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

const secretBytes = 32

// Servicer выдача и проверка bearer-токенов вида "<id>.<secret>"
type Servicer interface {
	Issue(ctx context.Context, userID int, ttl time.Duration) (string, error)
	Validate(ctx context.Context, token string) (int, error)
}

type Service struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
	cost int
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
		now:  time.Now,
		cost: bcrypt.DefaultCost,
	}
}

// Issue создает токен. Нулевой ttl означает бессрочный токен.
func (s *Service) Issue(ctx context.Context, userID int, ttl time.Duration) (string, error) {
	secret := make([]byte, secretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(secret)

	hash, err := bcrypt.GenerateFromPassword([]byte(encoded), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}

	now := s.now()
	tok := Token{
		ID:         uuid.NewString(),
		UserID:     userID,
		SecretHash: string(hash),
		CreatedAt:  now,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		tok.ExpiresAt = &exp
	}

	if err := s.repo.Create(ctx, tok); err != nil {
		return "", fmt.Errorf("save token: %w", err)
	}
	return tok.ID + "." + encoded, nil
}

// Validate возвращает ID пользователя для действующего токена
func (s *Service) Validate(ctx context.Context, token string) (int, error) {
	id, secret, ok := strings.Cut(token, ".")
	if !ok || id == "" || secret == "" {
		return 0, ErrInvalidToken
	}
	if _, err := uuid.Parse(id); err != nil {
		return 0, ErrInvalidToken
	}

	tok, err := s.repo.Find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return 0, ErrInvalidToken
		}
		return 0, fmt.Errorf("find token: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(tok.SecretHash), []byte(secret)); err != nil {
		return 0, ErrInvalidToken
	}
	if tok.ExpiresAt != nil && !s.now().Before(*tok.ExpiresAt) {
		return 0, ErrTokenExpired
	}
	return tok.UserID, nil
}
