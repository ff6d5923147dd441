// Package storage хранит настройки и беседы клиента.
package storage

import (
	"context"
	"errors"

	"chatsync/internal/domain/chat"
)

var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("storage closed")
)

// ChangeKind тип изменения в хранилище
type ChangeKind string

const (
	ChangeSettings            ChangeKind = "settings"
	ChangeConversation        ChangeKind = "conversation"
	ChangeConversationDeleted ChangeKind = "conversation_deleted"
	ChangePreference          ChangeKind = "preference"
)

// ChangeEvent событие об изменении данных.
// Source показывает, кем сделано изменение: пользователем или синхронизацией.
type ChangeEvent struct {
	Kind   ChangeKind
	ID     string
	Source chat.SyncSource
}

// ConversationUpdate получает текущую беседу (nil если ее нет)
// и возвращает новую версию. nil означает "ничего не менять".
type ConversationUpdate func(current *chat.Conversation) (*chat.Conversation, error)

// Store локальное хранилище клиента
type Store interface {
	GetSettings(ctx context.Context) (chat.Settings, error)
	PutSettings(ctx context.Context, s chat.Settings) error
	UpdateSettings(ctx context.Context, fn func(s *chat.Settings) error) (chat.Settings, error)
	// HasSavedSettings сообщает, сохранялась ли когда-либо метка времени настроек
	HasSavedSettings(ctx context.Context) (bool, error)

	ListConversations(ctx context.Context) ([]chat.Conversation, error)
	GetConversation(ctx context.Context, id string) (chat.Conversation, error)
	PutConversation(ctx context.Context, c chat.Conversation) error
	UpdateConversation(ctx context.Context, id string, fn ConversationUpdate) (bool, error)
	DeleteConversation(ctx context.Context, id string) error

	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key, value string) error
	GetBool(ctx context.Context, key string) (bool, bool, error)
	SetBool(ctx context.Context, key string, value bool) error
	GetInt(ctx context.Context, key string) (int, bool, error)
	SetInt(ctx context.Context, key string, value int) error

	Subscribe() (<-chan ChangeEvent, func())
	Close() error
}

func sourceOrLocal(s chat.SyncSource) chat.SyncSource {
	if s == "" {
		return chat.SourceLocal
	}
	return s
}
