package sync

import (
	"chatsync/internal/domain/sync"
)

type getSettingsInput struct{}

type settingsOutput struct {
	Body sync.SettingsResponse
}

type updateSettingsInput struct {
	Body sync.UpdateSettingsRequest
}

type listConversationsInput struct{}

type listConversationsOutput struct {
	Body sync.ConversationsResponse
}

type syncInput struct {
	Body sync.SyncRequest
}

type syncOutput struct {
	Body sync.SyncResponse
}

type deleteConversationInput struct {
	ID string `path:"id" minLength:"1" doc:"Идентификатор беседы"`
}

type deleteConversationOutput struct {
	Body sync.DeleteResponse
}
