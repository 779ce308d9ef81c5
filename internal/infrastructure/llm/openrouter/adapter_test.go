package openrouter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/infrastructure/logger"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertResponseMessage_WithContent(t *testing.T) {
	msg := openai.ChatCompletionMessage{
		Role:    "assistant",
		Content: "Hello, world!",
	}

	result := convertResponseMessage(msg)

	assert.Equal(t, entity.RoleAssistant, result.Role)
	assert.Equal(t, "Hello, world!", result.Content)
	assert.Len(t, result.ContentBlocks, 1)
	assert.Equal(t, entity.ContentTypeText, result.ContentBlocks[0].Type)
	assert.Equal(t, "Hello, world!", result.ContentBlocks[0].Text)
}

func TestConvertResponseMessage_WithToolCalls(t *testing.T) {
	msg := openai.ChatCompletionMessage{
		Role:    "assistant",
		Content: "",
		ToolCalls: []openai.ToolCall{
			{
				ID:   "call_123",
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      "navigate",
					Arguments: `{"url":"https://example.com"}`,
				},
			},
		},
	}

	result := convertResponseMessage(msg)

	assert.Equal(t, entity.RoleAssistant, result.Role)
	assert.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "call_123", result.ToolCalls[0].ID)
	assert.Equal(t, "navigate", result.ToolCalls[0].Name)
	assert.Len(t, result.ContentBlocks, 1)
	assert.Equal(t, entity.ContentTypeToolUse, result.ContentBlocks[0].Type)
	assert.NotNil(t, result.ContentBlocks[0].ToolUse)
}

func TestConvertMessages_WithContentBlocks(t *testing.T) {
	messages := []entity.Message{
		{
			Role:    entity.RoleUser,
			Content: "Hello",
		},
		{
			Role:    entity.RoleAssistant,
			Content: "Hi there",
			ContentBlocks: []entity.ContentBlock{
				{
					Type:     entity.ContentTypeThinking,
					Thinking: "Let me think about this...",
				},
				{
					Type: entity.ContentTypeText,
					Text: "Hi there",
				},
			},
		},
	}

	result := convertMessages(messages)

	assert.Len(t, result, 2)
	assert.Equal(t, "user", result[0].Role)
	assert.Equal(t, "Hello", result[0].Content)
	assert.Equal(t, "assistant", result[1].Role)
	assert.Equal(t, "<thinking>\nLet me think about this...\n</thinking>\nHi there", result[1].Content)
}

func TestConvertMessages_EmptyContentWithBlocks(t *testing.T) {
	messages := []entity.Message{
		{
			Role:    entity.RoleAssistant,
			Content: "",
			ContentBlocks: []entity.ContentBlock{
				{
					Type: entity.ContentTypeText,
					Text: "Response text",
				},
			},
		},
	}

	result := convertMessages(messages)

	assert.Len(t, result, 1)
	assert.Equal(t, "Response text", result[0].Content)
}

func TestConvertResponseMessage_WithReasoning(t *testing.T) {
	msg := openai.ChatCompletionMessage{
		Role:             "assistant",
		Content:          "Clicking search",
		ReasoningContent: "The search box is at the top",
	}

	result := convertResponseMessage(msg)

	require.Len(t, result.ContentBlocks, 2)
	assert.Equal(t, entity.ContentTypeThinking, result.ContentBlocks[0].Type)
	assert.Equal(t, "The search box is at the top", result.Thinking())
}

func TestConvertMessages_WithImages(t *testing.T) {
	messages := []entity.Message{
		{
			Role:    entity.RoleUser,
			Content: "Current URL: https://example.com",
			Images:  []string{"data:image/png;base64,AAAA"},
		},
	}

	result := convertMessages(messages)

	require.Len(t, result, 1)
	assert.Empty(t, result[0].Content)
	require.Len(t, result[0].MultiContent, 2)
	assert.Equal(t, openai.ChatMessagePartTypeText, result[0].MultiContent[0].Type)
	assert.Equal(t, "Current URL: https://example.com", result[0].MultiContent[0].Text)
	assert.Equal(t, openai.ChatMessagePartTypeImageURL, result[0].MultiContent[1].Type)
	assert.Equal(t, "data:image/png;base64,AAAA", result[0].MultiContent[1].ImageURL.URL)
}

func TestConvertMessages_ToolResult(t *testing.T) {
	result := convertMessages([]entity.Message{
		{Role: entity.RoleTool, Content: "OK", ToolCallID: "call_1", Name: "click_at"},
	})

	require.Len(t, result, 1)
	assert.Equal(t, "tool", result[0].Role)
	assert.Equal(t, "call_1", result[0].ToolCallID)
	assert.Equal(t, "click_at", result[0].Name)
}

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *OpenRouterAdapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig("test-key", "test/model")
	cfg.BaseURL = server.URL
	cfg.RequestsPerMinute = 0
	cfg.Timeout = 5 * time.Second
	return NewOpenRouterAdapter(cfg, logger.NewNop())
}

func TestChat_SendsToolsAndImages(t *testing.T) {
	var body map[string]any
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "cmpl-1",
			"object": "chat.completion",
			"model": "test/model",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "click_at", "arguments": "{\"x\":500,\"y\":500}"}}]
				}
			}]
		}`)
	})

	resp, err := adapter.Chat(context.Background(), output.ChatRequest{
		Messages: []entity.Message{
			{Role: entity.RoleSystem, Content: "You drive a browser."},
			{Role: entity.RoleUser, Content: "Goal: click", Images: []string{"data:image/png;base64,AAAA"}},
		},
		Tools: []entity.ToolDefinition{{Name: "click_at", Description: "Click", Parameters: map[string]any{"type": "object"}}},
	})

	require.NoError(t, err)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "click_at", resp.Message.ToolCalls[0].Name)
	assert.JSONEq(t, `{"x":500,"y":500}`, resp.Message.ToolCalls[0].Arguments)

	assert.Equal(t, "test/model", body["model"])
	assert.Equal(t, "auto", body["tool_choice"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	parts := msgs[1].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "image_url", parts[1].(map[string]any)["type"])
}

func TestChat_ClassifiesHTTPErrors(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusUnauthorized, "authentication rejected (status 401)"},
		{http.StatusForbidden, "authentication rejected (status 403)"},
		{http.StatusTooManyRequests, "rate limited (status 429)"},
		{http.StatusBadGateway, "provider unavailable (status 502)"},
		{http.StatusBadRequest, "request failed (status 400)"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error":{"message":"nope","type":"error"}}`)
			})

			_, err := adapter.Chat(context.Background(), output.ChatRequest{
				Messages: []entity.Message{{Role: entity.RoleUser, Content: "hi"}},
			})

			require.Error(t, err)
			assert.ErrorIs(t, err, entity.ErrBackend)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestChat_NoChoices(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","choices":[]}`)
	})

	_, err := adapter.Chat(context.Background(), output.ChatRequest{
		Messages: []entity.Message{{Role: entity.RoleUser, Content: "hi"}},
	})

	assert.ErrorIs(t, err, entity.ErrBackend)
	assert.ErrorContains(t, err, "no choices")
}

func TestChat_CancelledContext(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := adapter.Chat(ctx, output.ChatRequest{
		Messages: []entity.Message{{Role: entity.RoleUser, Content: "hi"}},
	})

	assert.ErrorIs(t, err, context.Canceled)
}
