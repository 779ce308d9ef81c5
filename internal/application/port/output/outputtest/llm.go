package outputtest

import (
	"context"
	"errors"
	"sync"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
)

var _ output.LLMPort = (*LLM)(nil)

// Reply is one scripted LLM answer.
type Reply struct {
	Message entity.Message
	Err     error
}

// LLM replays scripted replies in order and records every request.
// Once the script is exhausted it answers with ErrScriptExhausted.
type LLM struct {
	mu       sync.Mutex
	Replies  []Reply
	requests []output.ChatRequest
	// OnChat, when set, runs before each reply is returned.
	OnChat func(ctx context.Context, call int) error
}

var ErrScriptExhausted = errors.New("outputtest: no scripted reply left")

func (l *LLM) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	l.mu.Lock()
	l.requests = append(l.requests, req)
	call := len(l.requests)
	hook := l.OnChat
	var reply *Reply
	if call <= len(l.Replies) {
		r := l.Replies[call-1]
		reply = &r
	}
	l.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, call); err != nil {
			return nil, err
		}
	}
	if reply == nil {
		return nil, ErrScriptExhausted
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &output.ChatResponse{Message: reply.Message}, nil
}

func (l *LLM) Requests() []output.ChatRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]output.ChatRequest, len(l.requests))
	copy(out, l.requests)
	return out
}

// Text builds an assistant reply without tool calls.
func Text(content string) Reply {
	return Reply{Message: entity.Message{Role: entity.RoleAssistant, Content: content}}
}

// Call builds an assistant reply carrying one tool call.
func Call(id, name, arguments string) Reply {
	return Reply{Message: entity.Message{
		Role:      entity.RoleAssistant,
		ToolCalls: []entity.ToolCall{{ID: id, Name: name, Arguments: arguments}},
	}}
}
