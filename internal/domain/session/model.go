package session

import (
	"errors"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Token запись о выданном токене. Секрет хранится только в виде bcrypt-хэша.
type Token struct {
	ID         string
	UserID     int
	SecretHash string
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}
