package transcript

import (
	"maps"
	"time"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MetadataHasToolCall marks a message that carried at least one tool call.
const MetadataHasToolCall = "has_tool_call"

// Message is a single transcript entry.
type Message struct {
	Role       Role                   `json:"role"`
	Content    string                 `json:"content"`
	Timestamp  time.Time              `json:"timestamp"`
	TokenCount int                    `json:"token_count,omitempty"`
	ToolCalls  []ToolCall             `json:"tool_calls,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// ToolCall is a model-originated request to invoke a tool.
type ToolCall struct {
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolExecution records one tool invocation. It is never mutated after creation.
type ToolExecution struct {
	ToolCallID string                 `json:"tool_call_id"`
	ToolName   string                 `json:"tool_name"`
	Args       map[string]interface{} `json:"args,omitempty"`
	Result     interface{}            `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
	DurationMs int64                  `json:"duration_ms"`
	Success    bool                   `json:"success"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(role Role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// HasToolCall reports whether the message carried a tool call.
func (m Message) HasToolCall() bool {
	if len(m.ToolCalls) > 0 {
		return true
	}
	flag, ok := m.Metadata[MetadataHasToolCall].(bool)
	return ok && flag
}

// SetMetadata sets a metadata key, allocating the map if needed.
func (m *Message) SetMetadata(key string, value interface{}) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]interface{})
	}
	m.Metadata[key] = value
}

// Clone returns a copy that shares no mutable state with the original.
func (m Message) Clone() Message {
	out := m
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i := range m.ToolCalls {
			out.ToolCalls[i] = m.ToolCalls[i].Clone()
		}
	}
	if m.Metadata != nil {
		out.Metadata = maps.Clone(m.Metadata)
	}
	return out
}

// Clone returns a copy of the call with its own argument map.
func (c ToolCall) Clone() ToolCall {
	out := c
	if c.Arguments != nil {
		out.Arguments = maps.Clone(c.Arguments)
	}
	return out
}

// CloneMessages deep-copies a message slice.
func CloneMessages(in []Message) []Message {
	if in == nil {
		return nil
	}
	out := make([]Message, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

// CountTurns counts assistant messages that directly answer a user message.
// Only the most recently seen role is tracked, so consecutive user messages
// collapse into one turn.
func CountTurns(messages []Message) int {
	turns := 0
	var lastRole Role
	for _, msg := range messages {
		if msg.Role == RoleAssistant && lastRole == RoleUser {
			turns++
		}
		lastRole = msg.Role
	}
	return turns
}

// LastByRole returns the index of the last message with the given role, or -1.
func LastByRole(messages []Message, role Role) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == role {
			return i
		}
	}
	return -1
}

// ToolSpec describes a tool offered to the model. Parameters is a JSON schema
// object.
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}
