package chat

import (
	"time"
)

// SyncSource тег происхождения записи
type SyncSource string

const (
	SourceLocal  SyncSource = "local"
	SourceRemote SyncSource = "remote"
)

// Role роль автора сообщения
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// IsValid проверяет, известна ли роль
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

const (
	DefaultModelID         = "openai/gpt-3.5-turbo"
	DefaultTemperature     = 0.7
	DefaultMaxTokens       = 1000
	DefaultReasoningEffort = "medium"
)

// Settings глобальные настройки пользователя
type Settings struct {
	ModelID            string
	Temperature        float64
	MaxTokens          int
	ReasoningEnabled   bool
	ReasoningEffort    string
	WebSearchEnabled   bool
	SystemMessage      *string
	Character          *string
	CharacterInfo      *string
	CharacterBreakdown bool
	StreamingEnabled   bool
	AdvancedView       bool

	LastUpdated *time.Time
	// SyncSource не участвует в сравнении и не хранится локально
	SyncSource SyncSource
}

// DefaultSettings возвращает настройки новой установки
func DefaultSettings() Settings {
	return Settings{
		ModelID:          DefaultModelID,
		Temperature:      DefaultTemperature,
		MaxTokens:        DefaultMaxTokens,
		ReasoningEffort:  DefaultReasoningEffort,
		StreamingEnabled: true,
		SyncSource:       SourceLocal,
	}
}

// Equal сравнивает настройки без учета тега происхождения
func (s Settings) Equal(o Settings) bool {
	return s.ModelID == o.ModelID &&
		s.Temperature == o.Temperature &&
		s.MaxTokens == o.MaxTokens &&
		s.ReasoningEnabled == o.ReasoningEnabled &&
		s.ReasoningEffort == o.ReasoningEffort &&
		s.WebSearchEnabled == o.WebSearchEnabled &&
		equalStr(s.SystemMessage, o.SystemMessage) &&
		equalStr(s.Character, o.Character) &&
		equalStr(s.CharacterInfo, o.CharacterInfo) &&
		s.CharacterBreakdown == o.CharacterBreakdown &&
		s.StreamingEnabled == o.StreamingEnabled &&
		s.AdvancedView == o.AdvancedView &&
		equalTime(s.LastUpdated, o.LastUpdated)
}

// Stamp возвращает метку версии для разрешения конфликтов
func (s Settings) Stamp() Stamp {
	return Stamp{Updated: s.LastUpdated, Source: s.SyncSource}
}

// Overlay переопределения настроек на уровне беседы.
// Пустые поля берутся из глобальных настроек в момент запроса.
type Overlay struct {
	Temperature        *float64
	MaxTokens          *int
	ReasoningEnabled   *bool
	ReasoningEffort    *string
	WebSearchEnabled   *bool
	SystemMessage      *string
	Character          *string
	CharacterInfo      *string
	CharacterBreakdown *bool
}

// Usage данные о расходе токенов
type Usage struct {
	PromptTokens     int      `json:"prompt_tokens"`
	CompletionTokens int      `json:"completion_tokens"`
	TotalTokens      int      `json:"total_tokens"`
	Cost             *float64 `json:"cost,omitempty"`
}

// Message сообщение беседы
type Message struct {
	Role      Role
	Content   string
	Reasoning *string
	Usage     *Usage
	Timestamp time.Time
}

// Conversation беседа с сообщениями
type Conversation struct {
	ID           string
	Title        string
	Messages     []Message
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ModelID      string
	Overlay      Overlay
	SyncSource   SyncSource
	LastSyncedAt *time.Time
}

// Stamp возвращает метку версии беседы
func (c Conversation) Stamp() Stamp {
	updated := c.UpdatedAt
	return Stamp{Updated: &updated, Source: c.SyncSource}
}

// Touch обновляет updatedAt, сохраняя инвариант updatedAt >= createdAt
func (c *Conversation) Touch(now time.Time) {
	if now.Before(c.CreatedAt) {
		now = c.CreatedAt
	}
	c.UpdatedAt = now
}

// Clone возвращает глубокую копию беседы
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return out
}

// Stamp метка версии записи: время изменения и происхождение
type Stamp struct {
	Updated *time.Time
	Source  SyncSource
}

func equalStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
