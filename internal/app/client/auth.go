package client

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrNoToken = errors.New("токен не найден. Выполните вход: chatsync auth login")

// TokenStore хранит токен сервера синхронизации в файле.
// Файл читается при каждом обращении, так что выход из системы
// в другом процессе сразу останавливает синхронизацию.
type TokenStore struct {
	path string
}

func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Token возвращает сохраненный токен
func (t *TokenStore) Token() (string, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("ошибка чтения токена: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Save сохраняет токен с правами только для владельца
func (t *TokenStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("пустой токен")
	}
	if err := os.WriteFile(t.path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("ошибка сохранения токена: %w", err)
	}
	return nil
}

// Clear удаляет токен
func (t *TokenStore) Clear() error {
	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления токена: %w", err)
	}
	return nil
}

func (t *TokenStore) IsAuthenticated() bool {
	_, err := t.Token()
	return err == nil
}

func (t *TokenStore) AuthHeader() string {
	token, err := t.Token()
	if err != nil {
		return ""
	}
	return "Bearer " + token
}
