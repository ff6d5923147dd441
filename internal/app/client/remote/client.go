// Package remote реализует HTTP клиент сервиса-компаньона.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/exp/slog"

	"chatsync/internal/domain/chat"
	"chatsync/internal/domain/sync"
)

const maxErrorBody = 2048

// AuthProvider источник данных авторизации.
// Опрашивается заново перед каждым запросом.
type AuthProvider interface {
	IsAuthenticated() bool
	// AuthHeader возвращает значение заголовка Authorization или пустую строку
	AuthHeader() string
}

// Client клиент API синхронизации
type Client struct {
	client    *http.Client
	log       *slog.Logger
	auth      AuthProvider
	baseURL   string
	userAgent string
}

// New создает клиента. timeout ограничивает каждый запрос целиком.
func New(baseURL string, auth AuthProvider, timeout time.Duration, log *slog.Logger) *Client {
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
	}

	return &Client{
		client:    client,
		log:       log.With("component", "remote_client"),
		auth:      auth,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "ChatSync-Client/1.0",
	}
}

// HealthCheck проверяет доступность сервера; авторизация не нужна
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Op: "health", Err: err}
	}
	return c.parseResponse("health", resp, nil)
}

// GetSettings возвращает настройки с сервера; nil если их там нет
func (c *Client) GetSettings(ctx context.Context) (*chat.SettingsRecord, error) {
	var out sync.SettingsResponse
	if err := c.call(ctx, "get settings", http.MethodGet, "/settings", nil, &out); err != nil {
		return nil, err
	}
	return out.Settings, nil
}

// PutSettings отправляет настройки и возвращает сохраненную сервером версию
func (c *Client) PutSettings(ctx context.Context, rec chat.SettingsRecord) (*chat.SettingsRecord, error) {
	var out sync.SettingsResponse
	body := sync.UpdateSettingsRequest{UserSettings: rec}
	if err := c.call(ctx, "put settings", http.MethodPut, "/settings", body, &out); err != nil {
		return nil, err
	}
	return out.Settings, nil
}

// ConversationBatch результат загрузки бесед.
// Skipped содержит беседы, которые не удалось разобрать.
type ConversationBatch struct {
	Conversations []chat.ConversationRecord
	Skipped       []*DecodeError
}

// ListConversations загружает все беседы пользователя.
// Ошибка разбора одной беседы не прерывает разбор остальных.
func (c *Client) ListConversations(ctx context.Context) (*ConversationBatch, error) {
	var raw struct {
		Conversations []json.RawMessage `json:"conversations"`
	}
	if err := c.call(ctx, "list conversations", http.MethodGet, "/conversations", nil, &raw); err != nil {
		return nil, err
	}

	batch := &ConversationBatch{}
	for i, item := range raw.Conversations {
		var rec chat.ConversationRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			batch.Skipped = append(batch.Skipped, &DecodeError{Index: i, Err: err})
			continue
		}
		if err := rec.Validate(); err != nil {
			batch.Skipped = append(batch.Skipped, &DecodeError{Index: i, ID: rec.ID, Err: err})
			continue
		}
		batch.Conversations = append(batch.Conversations, rec)
	}

	for _, skipped := range batch.Skipped {
		c.log.Warn("пропускаем беседу с сервера", "error", skipped)
	}
	return batch, nil
}

// Sync отправляет беседы и настройки, возвращает авторитетные настройки сервера
func (c *Client) Sync(ctx context.Context, req sync.SyncRequest) (*sync.SyncResponse, error) {
	if req.Conversations == nil {
		req.Conversations = []chat.ConversationRecord{}
	}

	// беседы в ответе не нужны и могут не разбираться, читаем только настройки
	var out struct {
		Success      bool                 `json:"success"`
		Message      string               `json:"message"`
		UserSettings *chat.SettingsRecord `json:"user_settings"`
	}
	if err := c.call(ctx, "sync", http.MethodPost, "/sync", req, &out); err != nil {
		return nil, err
	}
	return &sync.SyncResponse{
		Success:      out.Success,
		Message:      out.Message,
		UserSettings: out.UserSettings,
	}, nil
}

// DeleteConversation удаляет беседу на сервере
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.call(ctx, "delete conversation", http.MethodDelete, "/conversations/"+url.PathEscape(id), nil, nil)
}

func (c *Client) call(ctx context.Context, op, method, path string, body, result any) error {
	resp, err := c.doRequest(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	return c.parseResponse(op, resp, result)
}

func (c *Client) doRequest(ctx context.Context, op, method, path string, body any) (*http.Response, error) {
	if c.auth == nil || !c.auth.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	header := c.auth.AuthHeader()
	if header == "" {
		return nil, ErrNotAuthenticated
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization", header)

	c.log.Debug("Отправка запроса",
		"method", method,
		"url", req.URL.String(),
	)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return resp, nil
}

func (c *Client) parseResponse(op string, resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("ошибка чтения ответа: %w", err)}
	}

	c.log.Debug("Получен ответ",
		"op", op,
		"status", resp.StatusCode,
		"size", len(body),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ProtocolError{Op: op, Status: resp.StatusCode, Body: truncate(body)}
	}

	if result != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return &ProtocolError{Op: op, Status: resp.StatusCode, Body: truncate(body), Err: err}
		}
	}
	return nil
}

func truncate(body []byte) string {
	s := string(bytes.TrimSpace(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
