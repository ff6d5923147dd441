package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"chatsync/internal/domain/chat"
)

// SyncRepository хранит настройки и беседы пользователя как jsonb.
// Колонка updated_at дублирует поле записи для сортировки.
type SyncRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewSyncRepository(pool *pgxpool.Pool, log *slog.Logger) *SyncRepository {
	return &SyncRepository{
		pool: pool,
		log:  log.With("component", "sync_repository"),
	}
}

func (r *SyncRepository) GetSettings(ctx context.Context, userID int) (*chat.SettingsRecord, error) {
	var rec chat.SettingsRecord
	err := r.pool.QueryRow(ctx,
		`SELECT payload FROM user_settings WHERE user_id = $1`, userID).Scan(&rec)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &rec, nil
}

func (r *SyncRepository) SaveSettings(ctx context.Context, userID int, rec chat.SettingsRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_settings (user_id, payload, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at`,
		userID, rec)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (r *SyncRepository) ListConversations(ctx context.Context, userID int) ([]chat.ConversationRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT payload FROM conversations
		 WHERE user_id = $1
		 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (chat.ConversationRecord, error) {
		var rec chat.ConversationRecord
		err := row.Scan(&rec)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan conversations: %w", err)
	}
	return out, nil
}

func (r *SyncRepository) GetConversation(ctx context.Context, userID int, id string) (*chat.ConversationRecord, error) {
	var rec chat.ConversationRecord
	err := r.pool.QueryRow(ctx,
		`SELECT payload FROM conversations WHERE user_id = $1 AND id = $2`,
		userID, id).Scan(&rec)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &rec, nil
}

func (r *SyncRepository) SaveConversation(ctx context.Context, userID int, rec chat.ConversationRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversations (user_id, id, payload, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, id) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at`,
		userID, rec.ID, rec, rec.UpdatedAt)
	if err != nil {
		r.log.Error("failed to save conversation",
			"user_id", userID, "conversation_id", rec.ID, "error", err)
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

func (r *SyncRepository) DeleteConversation(ctx context.Context, userID int, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM conversations WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return false, fmt.Errorf("delete conversation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
