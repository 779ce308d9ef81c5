package entity

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeThinking ContentType = "thinking"
	ContentTypeToolUse  ContentType = "tool_use"
)

type ContentBlock struct {
	Type     ContentType
	Text     string
	Thinking string
	ToolUse  *ToolCall
}

type Message struct {
	Role          MessageRole
	Content       string
	ContentBlocks []ContentBlock
	// Images holds data URLs sent alongside Content.
	Images     []string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// Thinking returns the concatenated reasoning blocks of the message.
func (m Message) Thinking() string {
	var out string
	for _, b := range m.ContentBlocks {
		if b.Type == ContentTypeThinking && b.Thinking != "" {
			if out != "" {
				out += "\n"
			}
			out += b.Thinking
		}
	}
	return out
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}
