package agent

import (
	"context"

	"github.com/harun/agentcore/pkg/transcript"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider implements LLMProvider for OpenAI
type OpenAIProvider struct {
	client openai.Client
}

// NewOpenAIProvider creates a new OpenAI provider. baseURL may be empty.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{
		client: openai.NewClient(opts...),
	}
}

// Provider returns the provider name
func (p *OpenAIProvider) Provider() string {
	return "openai"
}

// Complete makes a blocking chat completion call.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	completion, err := p.client.Chat.Completions.New(ctx, openAIParams(req))
	if err != nil {
		return nil, err
	}
	return openAIResponse(completion)
}

// StreamComplete streams a chat completion through the SDK accumulator.
func (p *OpenAIProvider) StreamComplete(ctx context.Context, req Request, onDelta DeltaFunc) (*Response, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, openAIParams(req))
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" && onDelta != nil {
			onDelta(chunk.Choices[0].Delta.Content)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return openAIResponse(&acc.ChatCompletion)
}

func openAIParams(req Request) openai.ChatCompletionNewParams {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case transcript.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case transcript.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case transcript.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(renderAssistant(msg)))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
		for _, spec := range req.Tools {
			tools = append(tools, openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        spec.Name,
					Description: openai.String(spec.Description),
					Parameters:  openai.FunctionParameters(spec.Parameters),
				},
			})
		}
		params.Tools = tools
	}

	return params
}

func openAIResponse(completion *openai.ChatCompletion) (*Response, error) {
	if completion == nil || len(completion.Choices) == 0 {
		return nil, ErrNoResponse
	}

	choice := completion.Choices[0]
	var calls []transcript.ToolCall
	for _, tc := range choice.Message.ToolCalls {
		calls = append(calls, transcript.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: decodeArguments(tc.Function.Arguments),
		})
	}

	return &Response{
		Content:   choice.Message.Content,
		ToolCalls: calls,
		Usage: &TokenUsage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
		},
	}, nil
}
