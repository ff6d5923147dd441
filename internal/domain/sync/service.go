package sync

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"chatsync/internal/app/server/api/http/middleware/auth"
	"chatsync/internal/domain/chat"
)

// Servicer интерфейс сервиса синхронизации
type Servicer interface {
	// GetSettings возвращает сохраненные настройки пользователя
	GetSettings(ctx context.Context) (*SettingsResponse, error)

	// UpdateSettings безусловно сохраняет настройки
	UpdateSettings(ctx context.Context, req UpdateSettingsRequest) (*SettingsResponse, error)

	// ListConversations возвращает все беседы пользователя
	ListConversations(ctx context.Context) (*ConversationsResponse, error)

	// Sync сливает присланные беседы и настройки с сохраненными
	Sync(ctx context.Context, req SyncRequest) (*SyncResponse, error)

	// DeleteConversation удаляет беседу
	DeleteConversation(ctx context.Context, id string) (*DeleteResponse, error)
}

// Service реализация сервиса синхронизации
type Service struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

// NewService создает новый сервис синхронизации
func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With("component", "sync_service"),
		now:  time.Now,
	}
}

func (s *Service) GetSettings(ctx context.Context) (*SettingsResponse, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}

	rec, err := s.repo.GetSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &SettingsResponse{Settings: rec}, nil
}

func (s *Service) UpdateSettings(ctx context.Context, req UpdateSettingsRequest) (*SettingsResponse, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}

	rec := normalizeSettings(req.UserSettings, s.now())
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.SaveSettings(ctx, userID, rec); err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}

	s.log.Info("settings updated", "user_id", userID)
	return &SettingsResponse{Settings: &rec}, nil
}

func (s *Service) ListConversations(ctx context.Context) (*ConversationsResponse, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}

	convs, err := s.repo.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	if convs == nil {
		convs = []chat.ConversationRecord{}
	}
	return &ConversationsResponse{Conversations: convs}, nil
}

// Sync принимает беседу, если ее нет или она новее сохраненной.
// Настройки сохраняются, только если присланные новее.
func (s *Service) Sync(ctx context.Context, req SyncRequest) (*SyncResponse, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}

	updated, skipped := 0, 0
	for _, incoming := range req.Conversations {
		if err := incoming.Validate(); err != nil {
			s.log.Warn("skipping invalid conversation", "user_id", userID, "error", err)
			skipped++
			continue
		}

		existing, err := s.repo.GetConversation(ctx, userID, incoming.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get conversation %s: %w", incoming.ID, err)
		}
		if existing != nil && !incoming.UpdatedAt.After(existing.UpdatedAt) {
			continue
		}

		synced := s.now().UTC()
		incoming.LastSyncedAt = &synced
		if err := s.repo.SaveConversation(ctx, userID, incoming); err != nil {
			return nil, fmt.Errorf("failed to save conversation %s: %w", incoming.ID, err)
		}
		updated++
	}

	stored, err := s.repo.GetSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	if req.UserSettings != nil && req.UserSettings.Validate() == nil && newerSettings(*req.UserSettings, stored) {
		rec := normalizeSettings(*req.UserSettings, s.now())
		if err := s.repo.SaveSettings(ctx, userID, rec); err != nil {
			return nil, fmt.Errorf("failed to save settings: %w", err)
		}
		stored = &rec
	}

	convs, err := s.repo.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	if convs == nil {
		convs = []chat.ConversationRecord{}
	}

	s.log.Info("sync completed",
		"user_id", userID,
		"updated", updated,
		"skipped", skipped,
		"total", len(convs),
	)

	return &SyncResponse{
		Success:       true,
		Message:       fmt.Sprintf("Synced %d conversations", updated),
		Conversations: convs,
		UserSettings:  stored,
	}, nil
}

func (s *Service) DeleteConversation(ctx context.Context, id string) (*DeleteResponse, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}

	deleted, err := s.repo.DeleteConversation(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete conversation: %w", err)
	}
	if !deleted {
		return nil, ErrConversationNotFound
	}
	return &DeleteResponse{Success: true, Message: "Conversation deleted"}, nil
}

func newerSettings(incoming chat.SettingsRecord, stored *chat.SettingsRecord) bool {
	if stored == nil || stored.LastUpdated == nil {
		return true
	}
	if incoming.LastUpdated == nil {
		return false
	}
	return incoming.LastUpdated.After(*stored.LastUpdated)
}

// normalizeSettings проставляет метку времени и дублирует system_message в system_prompt
func normalizeSettings(rec chat.SettingsRecord, now time.Time) chat.SettingsRecord {
	if rec.SystemMessage == nil {
		rec.SystemMessage = rec.SystemPrompt
	}
	rec.SystemPrompt = rec.SystemMessage
	if rec.LastUpdated == nil {
		ts := now.UTC()
		rec.LastUpdated = &ts
	}
	if rec.SyncSource == "" {
		rec.SyncSource = string(chat.SourceRemote)
	}
	return rec
}
