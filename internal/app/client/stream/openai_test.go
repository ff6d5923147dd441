package stream

import (
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatsync/internal/domain/chat"
)

func TestBuildRequest(t *testing.T) {
	params := chat.Params{
		ModelID:          "openai/gpt-4o",
		Temperature:      0.5,
		MaxTokens:        256,
		ReasoningEnabled: true,
		ReasoningEffort:  "high",
		WebSearchEnabled: true,
		SystemMessage:    "be brief",
		Character:        "Alice",
	}
	history := []chat.Message{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: ""},
	}

	req := BuildRequest(params, history)
	assert.Equal(t, "openai/gpt-4o:online", req.Model)
	assert.Equal(t, "high", req.ReasoningEffort)
	assert.Equal(t, 256, req.MaxTokens)
	assert.InDelta(t, 0.5, req.Temperature, 1e-6)
	assert.True(t, req.Stream)
	require.NotNil(t, req.StreamOptions)
	assert.True(t, req.StreamOptions.IncludeUsage)

	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, "be brief\n\nYou are Alice.", req.Messages[0].Content)
	assert.Equal(t, "hi", req.Messages[1].Content)
}

func TestBuildRequest_Plain(t *testing.T) {
	req := BuildRequest(chat.Params{ModelID: "m", ReasoningEffort: "low"}, []chat.Message{{Role: chat.RoleUser, Content: "q"}})
	assert.Equal(t, "m", req.Model)
	assert.Empty(t, req.ReasoningEffort)
	assert.Len(t, req.Messages, 1)
}
