package chat

import (
	"fmt"
)

const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
)

// Validate проверяет проводную запись настроек
func (r SettingsRecord) Validate() error {
	if r.Temperature < MinTemperature || r.Temperature > MaxTemperature {
		return fmt.Errorf("%w: temperature %.2f out of range [%.0f, %.0f]",
			ErrInvalidRecord, r.Temperature, MinTemperature, MaxTemperature)
	}
	if r.MaxTokens < 0 {
		return fmt.Errorf("%w: max_tokens must not be negative", ErrInvalidRecord)
	}
	return nil
}

// Validate проверяет проводную запись беседы
func (r ConversationRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: empty conversation id", ErrInvalidRecord)
	}
	if r.UpdatedAt.Before(r.CreatedAt) {
		return fmt.Errorf("%w: conversation %s updated_at before created_at", ErrInvalidRecord, r.ID)
	}
	if r.Temperature != nil && (*r.Temperature < MinTemperature || *r.Temperature > MaxTemperature) {
		return fmt.Errorf("%w: conversation %s temperature out of range", ErrInvalidRecord, r.ID)
	}
	for i, m := range r.Messages {
		if !Role(m.Role).IsValid() {
			return fmt.Errorf("%w: conversation %s message %d has role %q", ErrInvalidRecord, r.ID, i, m.Role)
		}
	}
	return nil
}
