package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"chatsync/internal/domain/chat"
)

// DefaultBaseURL OpenAI-совместимый адрес OpenRouter
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// OpenAIClient источник потоков через OpenAI-совместимый API
type OpenAIClient struct {
	client *openai.Client
}

func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cfg.BaseURL = baseURL
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg)}
}

// Open начинает потоковый запрос. Отмена ctx обрывает соединение.
func (c *OpenAIClient) Open(ctx context.Context, params chat.Params, history []chat.Message) (Source, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, BuildRequest(params, history))
	if err != nil {
		return nil, fmt.Errorf("creating completion stream: %w", err)
	}
	return &openAISource{stream: stream}, nil
}

// BuildRequest собирает запрос из итоговых параметров и истории
func BuildRequest(params chat.Params, history []chat.Message) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if prompt := params.SystemPrompt(); prompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: prompt,
		})
	}
	for _, m := range history {
		if m.Content == "" {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	model := params.ModelID
	if params.WebSearchEnabled {
		// веб-поиск OpenRouter включается суффиксом модели
		model += ":online"
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   params.MaxTokens,
		Temperature: float32(params.Temperature),
		Stream:      true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}
	if params.ReasoningEnabled {
		req.ReasoningEffort = params.ReasoningEffort
	}
	return req
}

type openAISource struct {
	stream *openai.ChatCompletionStream
}

func (s *openAISource) Recv() (Chunk, error) {
	response, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		return Chunk{}, io.EOF
	}
	if err != nil {
		return Chunk{}, err
	}

	var chunk Chunk
	if len(response.Choices) > 0 {
		chunk.Delta = response.Choices[0].Delta.Content
		chunk.Reasoning = response.Choices[0].Delta.ReasoningContent
	}
	if response.Usage != nil {
		chunk.Usage = &chat.Usage{
			PromptTokens:     response.Usage.PromptTokens,
			CompletionTokens: response.Usage.CompletionTokens,
			TotalTokens:      response.Usage.TotalTokens,
		}
	}
	return chunk, nil
}

func (s *openAISource) Close() error {
	return s.stream.Close()
}
