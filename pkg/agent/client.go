package agent

import (
	"context"
	"fmt"

	"github.com/harun/agentcore/pkg/transcript"
)

// Request is one model call.
type Request struct {
	Model        string
	Messages     []transcript.Message
	SystemPrompt string
	Tools        []transcript.ToolSpec
	Temperature  float64
	MaxTokens    int
}

// Response is a complete model reply. ToolCalls holds structured calls when
// the backend supports them.
type Response struct {
	Content   string
	ToolCalls []transcript.ToolCall
	Usage     *TokenUsage
}

// DeltaFunc receives incremental content while a reply streams.
type DeltaFunc func(delta string)

// ModelClient is the model backend used by the loop. Implementations must
// return errors whose text identifies context overflows (see
// IsContextOverflow) and must honour ctx cancellation.
type ModelClient interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	StreamComplete(ctx context.Context, req Request, onDelta DeltaFunc) (*Response, error)
}

// LLMProvider is a ModelClient bound to one provider account.
type LLMProvider interface {
	ModelClient
	// Provider returns the provider name
	Provider() string
}

// AuthProfile represents authentication credentials for LLM providers
type AuthProfile struct {
	ID            string `json:"id" mapstructure:"id"`
	Provider      string `json:"provider" mapstructure:"provider"` // "anthropic", "openai"
	APIKey        string `json:"api_key" mapstructure:"api_key"`
	BaseURL       string `json:"base_url,omitempty" mapstructure:"base_url"`
	CooldownUntil *int64 `json:"cooldown_until,omitempty" mapstructure:"-"`
	FailureCount  int    `json:"failure_count" mapstructure:"-"`
	Priority      int    `json:"priority" mapstructure:"priority"`
}

// ProviderCreator creates LLM providers from auth profiles.
type ProviderCreator interface {
	NewProvider(profile AuthProfile) (LLMProvider, error)
}

// ProviderFactory creates LLM providers
type ProviderFactory struct{}

// NewProvider creates a new LLM provider based on auth profile
func (f *ProviderFactory) NewProvider(profile AuthProfile) (LLMProvider, error) {
	switch profile.Provider {
	case "anthropic":
		return NewAnthropicProvider(profile.APIKey, profile.BaseURL), nil
	case "openai":
		return NewOpenAIProvider(profile.APIKey, profile.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}

// renderAssistant flattens an assistant message to text. Tool results are
// carried as plain user messages, so prior calls are rendered inline rather
// than as provider tool-use blocks.
func renderAssistant(msg transcript.Message) string {
	if len(msg.ToolCalls) == 0 {
		return msg.Content
	}
	out := msg.Content
	for _, call := range msg.ToolCalls {
		if out != "" {
			out += "\n"
		}
		out += fmt.Sprintf("[called tool %s with %s]", call.Name, renderValue(call.Arguments))
	}
	return out
}
