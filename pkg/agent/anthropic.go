package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/harun/agentcore/pkg/transcript"
)

// AnthropicProvider implements LLMProvider for Anthropic Claude
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider creates a new Anthropic provider. baseURL may be empty.
func NewAnthropicProvider(apiKey, baseURL string) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
	}
}

// Provider returns the provider name
func (p *AnthropicProvider) Provider() string {
	return "anthropic"
}

// Complete makes a blocking call to the Messages API.
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	message, err := p.client.Messages.New(ctx, anthropicParams(req))
	if err != nil {
		return nil, err
	}
	return anthropicResponse(message)
}

// StreamComplete streams the reply, forwarding text deltas as they arrive and
// accumulating them into one message.
func (p *AnthropicProvider) StreamComplete(ctx context.Context, req Request, onDelta DeltaFunc) (*Response, error) {
	stream := p.client.Messages.NewStreaming(ctx, anthropicParams(req))
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, err
		}
		if blockDelta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if text, ok := blockDelta.Delta.AsAny().(anthropic.TextDelta); ok && text.Text != "" && onDelta != nil {
				onDelta(text.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return anthropicResponse(&message)
}

func anthropicParams(req Request) anthropic.MessageNewParams {
	var messages []anthropic.MessageParam
	systemParts := []string{}
	if req.SystemPrompt != "" {
		systemParts = append(systemParts, req.SystemPrompt)
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case transcript.RoleSystem:
			// Summaries substituted for history travel in the system prompt.
			if msg.Content != "" {
				systemParts = append(systemParts, msg.Content)
			}
		case transcript.RoleUser:
			if msg.Content == "" {
				continue
			}
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case transcript.RoleAssistant:
			text := renderAssistant(msg)
			if text == "" {
				continue
			}
			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(text),
				},
			})
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if len(systemParts) > 0 {
		params.System = []anthropic.TextBlockParam{
			{Text: strings.Join(systemParts, "\n\n")},
		}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for _, spec := range req.Tools {
			toolParam := anthropic.ToolParam{
				Name:        spec.Name,
				Description: anthropic.String(spec.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: spec.Parameters["properties"],
					Required:   requiredFields(spec.Parameters),
				},
			}
			tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
		}
		params.Tools = tools
	}

	return params
}

func anthropicResponse(message *anthropic.Message) (*Response, error) {
	if message == nil {
		return nil, ErrNoResponse
	}

	var content strings.Builder
	var calls []transcript.ToolCall
	for _, block := range message.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			content.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			calls = append(calls, transcript.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: decodeArguments(b.JSON.Input.Raw()),
			})
		}
	}

	return &Response{
		Content:   content.String(),
		ToolCalls: calls,
		Usage: &TokenUsage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
		},
	}, nil
}

func requiredFields(schema map[string]interface{}) []string {
	switch required := schema["required"].(type) {
	case []string:
		return required
	case []interface{}:
		out := make([]string, 0, len(required))
		for _, v := range required {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// decodeArguments parses a JSON object, keeping unparseable input under "raw".
func decodeArguments(raw string) map[string]interface{} {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]interface{}{}
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]interface{}{"raw": raw}
	}
	return args
}
