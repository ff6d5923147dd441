package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/exp/slog"

	"chatsync/internal/domain/chat"
	"chatsync/internal/infrastructure/migration"
	"chatsync/internal/pkg/notify"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore хранилище на SQLite
type SQLiteStore struct {
	db  *sql.DB
	log *slog.Logger
	hub *notify.Hub[ChangeEvent]

	// mu сериализует запись: read-modify-write не должны перемежаться
	mu     sync.Mutex
	closed bool
}

// NewSQLiteStore открывает базу и накатывает миграции
func NewSQLiteStore(path string, log *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrateSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка инициализации таблиц: %w", err)
	}

	return &SQLiteStore{
		db:  db,
		log: log.With("component", "sqlite_store"),
		hub: notify.NewHub[ChangeEvent](64),
	}, nil
}

func migrateSQLite(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	// m.Close() закрыл бы и *sql.DB, поэтому закрываем только источник
	defer src.Close()

	return migration.Apply(m)
}

func (s *SQLiteStore) GetSettings(ctx context.Context) (chat.Settings, error) {
	return getSettings(ctx, s.db)
}

func (s *SQLiteStore) PutSettings(ctx context.Context, settings chat.Settings) error {
	_, err := s.UpdateSettings(ctx, func(cur *chat.Settings) error {
		*cur = settings
		return nil
	})
	return err
}

func (s *SQLiteStore) UpdateSettings(ctx context.Context, fn func(s *chat.Settings) error) (chat.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return chat.Settings{}, ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return chat.Settings{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	cur, err := getSettings(ctx, tx)
	if err != nil {
		return chat.Settings{}, err
	}
	if err := fn(&cur); err != nil {
		return chat.Settings{}, err
	}

	rec := chat.NewSettingsRecord(cur)
	rec.SyncSource = ""
	payload, err := json.Marshal(rec)
	if err != nil {
		return chat.Settings{}, fmt.Errorf("ошибка сериализации настроек: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO settings (id, payload, last_updated, version)
		VALUES (1, ?, ?, 1)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			last_updated = excluded.last_updated,
			version = settings.version + 1
	`, string(payload), unixNanoPtr(cur.LastUpdated))
	if err != nil {
		return chat.Settings{}, fmt.Errorf("ошибка сохранения настроек: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return chat.Settings{}, fmt.Errorf("commit: %w", err)
	}

	s.hub.Publish(ChangeEvent{Kind: ChangeSettings, Source: sourceOrLocal(cur.SyncSource)})
	return cur, nil
}

func (s *SQLiteStore) HasSavedSettings(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM settings WHERE id = 1 AND last_updated IS NOT NULL)`,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки настроек: %w", err)
	}
	return exists, nil
}

// ListConversations возвращает беседы, свежие первыми
func (s *SQLiteStore) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, payload FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения бесед: %w", err)
	}
	defer rows.Close()

	var out []chat.Conversation
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conv, err := decodeConversation(payload)
		if err != nil {
			s.log.Warn("пропускаем поврежденную беседу", "id", id, "error", err)
			continue
		}
		out = append(out, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (chat.Conversation, error) {
	conv, err := getConversation(ctx, s.db, id)
	if err != nil {
		return chat.Conversation{}, err
	}
	if conv == nil {
		return chat.Conversation{}, fmt.Errorf("%w: conversation %s", ErrNotFound, id)
	}
	return *conv, nil
}

func (s *SQLiteStore) PutConversation(ctx context.Context, c chat.Conversation) error {
	_, err := s.UpdateConversation(ctx, c.ID, func(*chat.Conversation) (*chat.Conversation, error) {
		return &c, nil
	})
	return err
}

func (s *SQLiteStore) UpdateConversation(ctx context.Context, id string, fn ConversationUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	cur, err := getConversation(ctx, tx, id)
	if err != nil {
		return false, err
	}
	next, err := fn(cur)
	if err != nil {
		return false, err
	}
	if next == nil {
		return false, nil
	}
	next.ID = id
	if next.UpdatedAt.Before(next.CreatedAt) {
		next.UpdatedAt = next.CreatedAt
	}

	payload, err := json.Marshal(chat.NewConversationRecord(*next))
	if err != nil {
		return false, fmt.Errorf("ошибка сериализации беседы: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, payload, created_at, updated_at, sync_source, version)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			sync_source = excluded.sync_source,
			version = conversations.version + 1
	`, id, string(payload), next.CreatedAt.UnixNano(), next.UpdatedAt.UnixNano(), string(sourceOrLocal(next.SyncSource)))
	if err != nil {
		return false, fmt.Errorf("ошибка сохранения беседы: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}

	s.hub.Publish(ChangeEvent{Kind: ChangeConversation, ID: id, Source: sourceOrLocal(next.SyncSource)})
	return true, nil
}

func (s *SQLiteStore) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления беседы: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: conversation %s", ErrNotFound, id)
	}

	s.hub.Publish(ChangeEvent{Kind: ChangeConversationDeleted, ID: id, Source: chat.SourceLocal})
	return nil
}

func (s *SQLiteStore) GetString(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ошибка чтения %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) SetString(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("ошибка записи %s: %w", key, err)
	}

	s.hub.Publish(ChangeEvent{Kind: ChangePreference, ID: key, Source: chat.SourceLocal})
	return nil
}

func (s *SQLiteStore) GetBool(ctx context.Context, key string) (bool, bool, error) {
	raw, ok, err := s.GetString(ctx, key)
	if err != nil || !ok {
		return false, ok, err
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("preference %s: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLiteStore) SetBool(ctx context.Context, key string, value bool) error {
	return s.SetString(ctx, key, strconv.FormatBool(value))
}

func (s *SQLiteStore) GetInt(ctx context.Context, key string) (int, bool, error) {
	raw, ok, err := s.GetString(ctx, key)
	if err != nil || !ok {
		return 0, ok, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("preference %s: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLiteStore) SetInt(ctx context.Context, key string, value int) error {
	return s.SetString(ctx, key, strconv.Itoa(value))
}

func (s *SQLiteStore) Subscribe() (<-chan ChangeEvent, func()) {
	return s.hub.Subscribe()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.hub.Close()
	return s.db.Close()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSettings(ctx context.Context, q querier) (chat.Settings, error) {
	var payload string
	err := q.QueryRowContext(ctx, `SELECT payload FROM settings WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.DefaultSettings(), nil
	}
	if err != nil {
		return chat.Settings{}, fmt.Errorf("ошибка получения настроек: %w", err)
	}

	var rec chat.SettingsRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return chat.Settings{}, fmt.Errorf("ошибка парсинга настроек: %w", err)
	}
	settings := rec.ToSettings()
	// тег происхождения не хранится
	settings.SyncSource = chat.SourceLocal
	return settings, nil
}

func getConversation(ctx context.Context, q querier, id string) (*chat.Conversation, error) {
	var payload string
	err := q.QueryRowContext(ctx, `SELECT payload FROM conversations WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения беседы: %w", err)
	}
	conv, err := decodeConversation(payload)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func decodeConversation(payload string) (chat.Conversation, error) {
	var rec chat.ConversationRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return chat.Conversation{}, fmt.Errorf("ошибка парсинга беседы: %w", err)
	}
	return rec.ToConversation(), nil
}

func unixNanoPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}
