package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"chatsync/internal/app/client/syncer"
	"chatsync/internal/domain/chat"
)

var ErrUnknownSetting = errors.New("неизвестная настройка")

// settingSetters разбирает строковое значение настройки.
// Пустая строка для текстовых полей сбрасывает значение.
var settingSetters = map[string]func(s *chat.Settings, v string) error{
	"model_id": func(s *chat.Settings, v string) error {
		if v == "" {
			return errors.New("model_id не может быть пустым")
		}
		s.ModelID = v
		return nil
	},
	"temperature": func(s *chat.Settings, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		s.Temperature = f
		return nil
	},
	"max_tokens": func(s *chat.Settings, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		s.MaxTokens = n
		return nil
	},
	"reasoning_effort": func(s *chat.Settings, v string) error {
		switch v {
		case "low", "medium", "high":
			s.ReasoningEffort = v
			return nil
		}
		return fmt.Errorf("допустимые значения: low, medium, high")
	},
	"reasoning_enabled":   boolSetter(func(s *chat.Settings) *bool { return &s.ReasoningEnabled }),
	"web_search_enabled":  boolSetter(func(s *chat.Settings) *bool { return &s.WebSearchEnabled }),
	"character_breakdown": boolSetter(func(s *chat.Settings) *bool { return &s.CharacterBreakdown }),
	"streaming_enabled":   boolSetter(func(s *chat.Settings) *bool { return &s.StreamingEnabled }),
	"advanced_view":       boolSetter(func(s *chat.Settings) *bool { return &s.AdvancedView }),
	"system_message":      textSetter(func(s *chat.Settings) **string { return &s.SystemMessage }),
	"character":           textSetter(func(s *chat.Settings) **string { return &s.Character }),
	"character_info":      textSetter(func(s *chat.Settings) **string { return &s.CharacterInfo }),
}

func boolSetter(field func(s *chat.Settings) *bool) func(s *chat.Settings, v string) error {
	return func(s *chat.Settings, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(s) = b
		return nil
	}
}

func textSetter(field func(s *chat.Settings) **string) func(s *chat.Settings, v string) error {
	return func(s *chat.Settings, v string) error {
		if strings.TrimSpace(v) == "" {
			*field(s) = nil
			return nil
		}
		*field(s) = &v
		return nil
	}
}

// SettingKeys возвращает имена настроек, доступных для изменения
func SettingKeys() []string {
	keys := make([]string, 0, len(settingSetters))
	for k := range settingSetters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetSetting меняет одно поле настроек по его проводному имени
func SetSetting(s *chat.Settings, key, value string) error {
	set, ok := settingSetters[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	if err := set(s, value); err != nil {
		return fmt.Errorf("некорректное значение %s: %w", key, err)
	}
	return nil
}

// UpdateSettings применяет правку пользователя к глобальным настройкам.
// Запись получает текущее время и тег local, поэтому планировщик
// помечает данные как измененные, а резолвер сравнивает ее с удаленной.
func (a *App) UpdateSettings(ctx context.Context, fn func(s *chat.Settings) error) (chat.Settings, error) {
	updated, err := a.store.UpdateSettings(ctx, func(s *chat.Settings) error {
		if err := fn(s); err != nil {
			return err
		}
		if err := chat.NewSettingsRecord(*s).Validate(); err != nil {
			return err
		}
		ts := a.now().UTC()
		s.LastUpdated = &ts
		s.SyncSource = chat.SourceLocal
		return nil
	})
	if err != nil {
		return chat.Settings{}, fmt.Errorf("ошибка сохранения настроек: %w", err)
	}

	a.log.Debug("Настройки изменены", "last_updated", updated.LastUpdated)
	return updated, nil
}

// PushSettings отправляет текущие настройки на сервер
func (a *App) PushSettings(ctx context.Context) (*syncer.Result, error) {
	settings, err := a.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	return a.engine.PushSettings(ctx, settings)
}
