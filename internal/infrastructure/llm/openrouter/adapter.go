package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

var _ output.LLMPort = (*OpenRouterAdapter)(nil)

const DefaultBaseURL = "https://openrouter.ai/api/v1"

type OpenRouterAdapter struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	logger  output.LoggerPort
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	// RequestsPerMinute caps outgoing completions; 0 disables the limiter.
	RequestsPerMinute int
	Timeout           time.Duration
}

func DefaultConfig(apiKey, model string) Config {
	return Config{
		APIKey:            apiKey,
		Model:             model,
		BaseURL:           DefaultBaseURL,
		RequestsPerMinute: 20,
		Timeout:           2 * time.Minute,
	}
}

type loggingTransport struct {
	base   http.RoundTripper
	logger output.LoggerPort
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	t.logger.Debug("HTTP Request", "method", req.Method, "url", req.URL.String(), "bytes", req.ContentLength)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.logger.Debug("HTTP Request failed", "error", err, "elapsed", time.Since(start))
		return nil, err
	}
	t.logger.Debug("HTTP Response", "status", resp.Status, "statusCode", resp.StatusCode, "elapsed", time.Since(start))
	return resp, nil
}

func NewOpenRouterAdapter(cfg Config, logger output.LoggerPort) *OpenRouterAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	config.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &loggingTransport{base: http.DefaultTransport, logger: logger},
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &OpenRouterAdapter{
		client:  openai.NewClientWithConfig(config),
		model:   cfg.Model,
		limiter: limiter,
		logger:  logger,
	}
}

func (a *OpenRouterAdapter) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	const op = "OpenRouter.Chat"

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	creq := openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    convertMessages(req.Messages),
		Temperature: req.Temperature,
	}
	if len(req.Tools) > 0 {
		creq.Tools = convertTools(req.Tools)
		creq.ToolChoice = "auto"
	}

	a.logger.Debug("Creating chat completion",
		"model", a.model,
		"messagesCount", len(creq.Messages),
		"toolsCount", len(creq.Tools))

	resp, err := a.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("chat completion: %w", ctx.Err())
		}
		return nil, classifyError(op, err)
	}
	if len(resp.Choices) == 0 {
		return nil, entity.Errorf(entity.ErrorKindBackendError, op, "no choices in response")
	}

	return &output.ChatResponse{
		Message: convertResponseMessage(resp.Choices[0].Message),
	}, nil
}

// classifyError turns provider failures into BackendError, naming the HTTP
// status when there is one.
func classifyError(op string, err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == 0:
		return entity.NewError(entity.ErrorKindBackendError, op, err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return entity.Errorf(entity.ErrorKindBackendError, op, "authentication rejected (status %d): %w", status, err)
	case status == http.StatusTooManyRequests:
		return entity.Errorf(entity.ErrorKindBackendError, op, "rate limited (status %d): %w", status, err)
	case status >= 500:
		return entity.Errorf(entity.ErrorKindBackendError, op, "provider unavailable (status %d): %w", status, err)
	default:
		return entity.Errorf(entity.ErrorKindBackendError, op, "request failed (status %d): %w", status, err)
	}
}

func convertMessages(messages []entity.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
			Name:       msg.Name,
		}

		if len(msg.ContentBlocks) > 0 {
			var sb strings.Builder
			for _, block := range msg.ContentBlocks {
				switch {
				case block.Type == entity.ContentTypeThinking && block.Thinking != "":
					sb.WriteString("<thinking>\n" + block.Thinking + "\n</thinking>\n")
				case block.Type == entity.ContentTypeText && block.Text != "":
					sb.WriteString(block.Text)
				}
			}
			if sb.Len() > 0 {
				oaiMsg.Content = sb.String()
			}
		}

		// Content and MultiContent are mutually exclusive on the wire.
		if len(msg.Images) > 0 {
			parts := make([]openai.ChatMessagePart, 0, len(msg.Images)+1)
			if oaiMsg.Content != "" {
				parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: oaiMsg.Content})
			}
			for _, img := range msg.Images {
				parts = append(parts, openai.ChatMessagePart{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: img, Detail: openai.ImageURLDetailAuto},
				})
			}
			oaiMsg.Content = ""
			oaiMsg.MultiContent = parts
		}

		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}

		result = append(result, oaiMsg)
	}
	return result
}

func convertTools(tools []entity.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return result
}

func convertResponseMessage(msg openai.ChatCompletionMessage) entity.Message {
	result := entity.Message{
		Role:    entity.MessageRole(msg.Role),
		Content: msg.Content,
	}

	if msg.ReasoningContent != "" {
		result.ContentBlocks = append(result.ContentBlocks, entity.ContentBlock{
			Type:     entity.ContentTypeThinking,
			Thinking: msg.ReasoningContent,
		})
	}
	if msg.Content != "" {
		result.ContentBlocks = append(result.ContentBlocks, entity.ContentBlock{
			Type: entity.ContentTypeText,
			Text: msg.Content,
		})
	}

	for _, tc := range msg.ToolCalls {
		toolCall := entity.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}
		result.ToolCalls = append(result.ToolCalls, toolCall)
		result.ContentBlocks = append(result.ContentBlocks, entity.ContentBlock{
			Type:    entity.ContentTypeToolUse,
			ToolUse: &toolCall,
		})
	}

	return result
}
