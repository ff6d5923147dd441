package sync

import (
	"context"

	"chatsync/internal/domain/chat"
)

// Repository интерфейс хранилища данных синхронизации
type Repository interface {
	// GetSettings возвращает nil, если пользователь еще не сохранял настройки
	GetSettings(ctx context.Context, userID int) (*chat.SettingsRecord, error)
	SaveSettings(ctx context.Context, userID int, rec chat.SettingsRecord) error

	ListConversations(ctx context.Context, userID int) ([]chat.ConversationRecord, error)
	// GetConversation возвращает nil, если беседы нет
	GetConversation(ctx context.Context, userID int, id string) (*chat.ConversationRecord, error)
	SaveConversation(ctx context.Context, userID int, rec chat.ConversationRecord) error
	DeleteConversation(ctx context.Context, userID int, id string) (bool, error)
}
