package syncer

import (
	"time"

	"chatsync/internal/domain/chat"
)

// Decision итог разрешения конфликта
type Decision int

const (
	KeepLocal Decision = iota
	ApplyRemote
)

func (d Decision) String() string {
	if d == ApplyRemote {
		return "apply_remote"
	}
	return "keep_local"
}

// Resolve выбирает между локальной и удаленной версией записи.
//
// Эхо нашей же отправки (источник не remote) всегда отбрасывается.
// На первом запуске удаленная версия принимается без сравнения времени.
// Иначе побеждает строго более поздняя удаленная версия, ничья за локальной.
func Resolve(local, remote chat.Stamp, isFirstRun bool) Decision {
	if remote.Source != chat.SourceRemote {
		return KeepLocal
	}
	if isFirstRun {
		return ApplyRemote
	}
	if remote.Updated == nil {
		return KeepLocal
	}
	if local.Updated == nil {
		return ApplyRemote
	}
	if remote.Updated.After(*local.Updated) {
		return ApplyRemote
	}
	return KeepLocal
}

// MergeSettings строит запись для сохранения после решения ApplyRemote.
//
// В обычном режиме удаленная запись считается полным состоянием:
// отсутствующие строковые поля очищают локальные.
// На первом запуске отсутствующие поля сохраняют локальные значения.
func MergeSettings(local, remote chat.Settings, isFirstRun bool, now time.Time) chat.Settings {
	out := remote

	if isFirstRun {
		out.SystemMessage = coalesce(remote.SystemMessage, local.SystemMessage)
		out.Character = coalesce(remote.Character, local.Character)
		out.CharacterInfo = coalesce(remote.CharacterInfo, local.CharacterInfo)
	}

	// пустой идентификатор модели недопустим в любом режиме
	if out.ModelID == "" {
		out.ModelID = local.ModelID
	}
	if out.ReasoningEffort == "" {
		out.ReasoningEffort = local.ReasoningEffort
	}

	if out.LastUpdated == nil {
		ts := now.UTC()
		out.LastUpdated = &ts
	}
	out.SyncSource = chat.SourceRemote
	return out
}

// MergeConversation возвращает беседу для сохранения или nil, если локальная остается.
// Удаленная беседа вставляется, если локальной нет, и заменяет ее, только если строго новее.
func MergeConversation(local *chat.Conversation, remote chat.Conversation, now time.Time) *chat.Conversation {
	if local != nil && !remote.UpdatedAt.After(local.UpdatedAt) {
		return nil
	}

	out := remote.Clone()
	out.SyncSource = chat.SourceRemote
	synced := now.UTC()
	out.LastSyncedAt = &synced
	return &out
}

func coalesce(v, fallback *string) *string {
	if v != nil {
		return v
	}
	return fallback
}
