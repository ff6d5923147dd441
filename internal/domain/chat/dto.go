package chat

import (
	"time"
)

// SettingsRecord проводное представление настроек.
// Неизвестные поля от других клиентов допускаются и отбрасываются.
// system_prompt оставлен для совместимости со старыми версиями сервера.
type SettingsRecord struct {
	_ struct{} `json:"-" additionalProperties:"true"`

	ModelID            string     `json:"model_id,omitempty" doc:"Идентификатор модели"`
	Temperature        float64    `json:"temperature,omitempty"`
	MaxTokens          int        `json:"max_tokens,omitempty"`
	ReasoningEnabled   bool       `json:"reasoning_enabled,omitempty"`
	ReasoningEffort    string     `json:"reasoning_effort,omitempty"`
	WebSearchEnabled   bool       `json:"web_search_enabled,omitempty"`
	SystemMessage      *string    `json:"system_message,omitempty"`
	SystemPrompt       *string    `json:"system_prompt,omitempty"`
	Character          *string    `json:"character,omitempty"`
	CharacterInfo      *string    `json:"character_info,omitempty"`
	CharacterBreakdown bool       `json:"character_breakdown,omitempty"`
	StreamingEnabled   bool       `json:"streaming_enabled,omitempty"`
	AdvancedView       bool       `json:"advanced_view,omitempty"`
	LastUpdated        *time.Time `json:"last_updated,omitempty" format:"date-time"`
	SyncSource         string     `json:"sync_source,omitempty" example:"local"`
}

// MessageRecord проводное представление сообщения
type MessageRecord struct {
	_ struct{} `json:"-" additionalProperties:"true"`

	Content   string    `json:"content"`
	Role      string    `json:"role" enum:"user,assistant,system"`
	Timestamp time.Time `json:"timestamp" format:"date-time"`
	Reasoning *string   `json:"reasoning,omitempty"`
	UsageData *Usage    `json:"usage_data,omitempty"`
}

// ConversationRecord проводное представление беседы
type ConversationRecord struct {
	_ struct{} `json:"-" additionalProperties:"true"`

	ID           string          `json:"id" minLength:"1"`
	Title        string          `json:"title"`
	Messages     []MessageRecord `json:"messages"`
	CreatedAt    time.Time       `json:"created_at" format:"date-time"`
	UpdatedAt    time.Time       `json:"updated_at" format:"date-time"`
	ModelID      string          `json:"model_id,omitempty"`
	SyncSource   string          `json:"sync_source,omitempty"`
	LastSyncedAt *time.Time      `json:"last_synced_at,omitempty" format:"date-time"`

	ReasoningEnabled   *bool    `json:"reasoning_enabled,omitempty"`
	ReasoningEffort    *string  `json:"reasoning_effort,omitempty"`
	Temperature        *float64 `json:"temperature,omitempty"`
	MaxTokens          *int     `json:"max_tokens,omitempty"`
	WebSearchEnabled   *bool    `json:"web_search_enabled,omitempty"`
	SystemMessage      *string  `json:"system_message,omitempty"`
	Character          *string  `json:"character,omitempty"`
	CharacterInfo      *string  `json:"character_info,omitempty"`
	CharacterBreakdown *bool    `json:"character_breakdown,omitempty"`
}

// ParseSyncSource переводит проводной тег в SyncSource.
// Все, что не помечено как наше, считается пришедшим с сервера.
func ParseSyncSource(v string) SyncSource {
	switch v {
	case string(SourceLocal), "flutter":
		return SourceLocal
	default:
		return SourceRemote
	}
}

// NewSettingsRecord готовит настройки к отправке
func NewSettingsRecord(s Settings) SettingsRecord {
	source := s.SyncSource
	if source == "" {
		source = SourceLocal
	}
	return SettingsRecord{
		ModelID:            s.ModelID,
		Temperature:        s.Temperature,
		MaxTokens:          s.MaxTokens,
		ReasoningEnabled:   s.ReasoningEnabled,
		ReasoningEffort:    s.ReasoningEffort,
		WebSearchEnabled:   s.WebSearchEnabled,
		SystemMessage:      s.SystemMessage,
		SystemPrompt:       s.SystemMessage,
		Character:          s.Character,
		CharacterInfo:      s.CharacterInfo,
		CharacterBreakdown: s.CharacterBreakdown,
		StreamingEnabled:   s.StreamingEnabled,
		AdvancedView:       s.AdvancedView,
		LastUpdated:        s.LastUpdated,
		SyncSource:         string(source),
	}
}

// ToSettings переводит проводную запись в доменную модель
func (r SettingsRecord) ToSettings() Settings {
	system := r.SystemMessage
	if system == nil {
		system = r.SystemPrompt
	}
	return Settings{
		ModelID:            r.ModelID,
		Temperature:        r.Temperature,
		MaxTokens:          r.MaxTokens,
		ReasoningEnabled:   r.ReasoningEnabled,
		ReasoningEffort:    r.ReasoningEffort,
		WebSearchEnabled:   r.WebSearchEnabled,
		SystemMessage:      system,
		Character:          r.Character,
		CharacterInfo:      r.CharacterInfo,
		CharacterBreakdown: r.CharacterBreakdown,
		StreamingEnabled:   r.StreamingEnabled,
		AdvancedView:       r.AdvancedView,
		LastUpdated:        r.LastUpdated,
		SyncSource:         ParseSyncSource(r.SyncSource),
	}
}

// NewConversationRecord готовит беседу к отправке
func NewConversationRecord(c Conversation) ConversationRecord {
	source := c.SyncSource
	if source == "" {
		source = SourceLocal
	}

	messages := make([]MessageRecord, 0, len(c.Messages))
	for _, m := range c.Messages {
		messages = append(messages, MessageRecord{
			Content:   m.Content,
			Role:      string(m.Role),
			Timestamp: m.Timestamp,
			Reasoning: m.Reasoning,
			UsageData: m.Usage,
		})
	}

	return ConversationRecord{
		ID:                 c.ID,
		Title:              c.Title,
		Messages:           messages,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
		ModelID:            c.ModelID,
		SyncSource:         string(source),
		LastSyncedAt:       c.LastSyncedAt,
		ReasoningEnabled:   c.Overlay.ReasoningEnabled,
		ReasoningEffort:    c.Overlay.ReasoningEffort,
		Temperature:        c.Overlay.Temperature,
		MaxTokens:          c.Overlay.MaxTokens,
		WebSearchEnabled:   c.Overlay.WebSearchEnabled,
		SystemMessage:      c.Overlay.SystemMessage,
		Character:          c.Overlay.Character,
		CharacterInfo:      c.Overlay.CharacterInfo,
		CharacterBreakdown: c.Overlay.CharacterBreakdown,
	}
}

// ToConversation переводит проводную запись в доменную модель
func (r ConversationRecord) ToConversation() Conversation {
	messages := make([]Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		messages = append(messages, Message{
			Role:      Role(m.Role),
			Content:   m.Content,
			Reasoning: m.Reasoning,
			Usage:     m.UsageData,
			Timestamp: m.Timestamp,
		})
	}

	return Conversation{
		ID:           r.ID,
		Title:        r.Title,
		Messages:     messages,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		ModelID:      r.ModelID,
		SyncSource:   ParseSyncSource(r.SyncSource),
		LastSyncedAt: r.LastSyncedAt,
		Overlay: Overlay{
			Temperature:        r.Temperature,
			MaxTokens:          r.MaxTokens,
			ReasoningEnabled:   r.ReasoningEnabled,
			ReasoningEffort:    r.ReasoningEffort,
			WebSearchEnabled:   r.WebSearchEnabled,
			SystemMessage:      r.SystemMessage,
			Character:          r.Character,
			CharacterInfo:      r.CharacterInfo,
			CharacterBreakdown: r.CharacterBreakdown,
		},
	}
}
