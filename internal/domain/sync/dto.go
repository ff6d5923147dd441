package sync

import (
	"time"

	"chatsync/internal/domain/chat"
)

// DTO (Data Transfer Objects) для API синхронизации

// SyncRequest тело POST /sync
type SyncRequest struct {
	_ struct{} `json:"-" additionalProperties:"true"`

	Conversations []chat.ConversationRecord `json:"conversations"`
	LastSyncTime  *time.Time                `json:"last_sync_time" required:"false" nullable:"true" format:"date-time"`
	UserSettings  *chat.SettingsRecord      `json:"user_settings,omitempty" required:"false"`
}

// SyncResponse ответ POST /sync
type SyncResponse struct {
	Success       bool                      `json:"success"`
	Message       string                    `json:"message"`
	Conversations []chat.ConversationRecord `json:"conversations"`
	UserSettings  *chat.SettingsRecord      `json:"user_settings,omitempty"`
}

// SettingsResponse ответ GET/PUT /settings
type SettingsResponse struct {
	Settings *chat.SettingsRecord `json:"settings"`
}

// UpdateSettingsRequest тело PUT /settings
type UpdateSettingsRequest struct {
	_ struct{} `json:"-" additionalProperties:"true"`

	UserSettings chat.SettingsRecord `json:"user_settings"`
}

// ConversationsResponse ответ GET /conversations
type ConversationsResponse struct {
	Conversations []chat.ConversationRecord `json:"conversations"`
}

// DeleteResponse ответ DELETE /conversations/{id}
type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
