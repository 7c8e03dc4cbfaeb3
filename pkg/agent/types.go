package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harun/agentcore/pkg/eventstream"
	"github.com/harun/agentcore/pkg/toolexecutor"
	"github.com/harun/agentcore/pkg/transcript"
)

var (
	// ErrNoResponse is returned when the model client yields nothing.
	ErrNoResponse = errors.New("no response from model")
	// ErrContextOverflow can be wrapped by model clients to flag an
	// over-long request explicitly.
	ErrContextOverflow = errors.New("context overflow")
)

// Status is the terminal state of a run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusTimeout   Status = "timeout"
)

// DefaultNoReplyToken is the sentinel a model emits to mean "say nothing".
const DefaultNoReplyToken = "NO_REPLY"

// Config configures the agent loop.
type Config struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	MaxTurns    int     `json:"max_turns"`
	// MaxToolCalls is compared against the turn index: tool calls are
	// executed only while turn <= MaxToolCalls.
	MaxToolCalls         int           `json:"max_tool_calls"`
	MaxCompactionRetries int           `json:"max_compaction_retries"`
	Streaming            bool          `json:"streaming,omitempty"`
	MessagingTools       []string      `json:"messaging_tools,omitempty"`
	NoReplyToken         string        `json:"no_reply_token,omitempty"`
	ToolTimeout          time.Duration `json:"tool_timeout,omitempty"`
}

// DefaultConfig returns default agent configuration
func DefaultConfig() Config {
	return Config{
		Model:                "claude-3-5-sonnet-20241022",
		Temperature:          0.7,
		MaxTokens:            4096,
		MaxTurns:             10,
		MaxToolCalls:         10,
		MaxCompactionRetries: 2,
		MessagingTools:       []string{"send_message"},
		NoReplyToken:         DefaultNoReplyToken,
		ToolTimeout:          30 * time.Second,
	}
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max tokens cannot be negative")
	}
	if c.MaxTurns <= 0 {
		return fmt.Errorf("max turns must be positive")
	}
	if c.MaxToolCalls < 0 {
		return fmt.Errorf("max tool calls cannot be negative")
	}
	if c.MaxCompactionRetries < 0 {
		return fmt.Errorf("max compaction retries cannot be negative")
	}
	return nil
}

// RunParams contains input parameters for one run.
type RunParams struct {
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	// Tools offered to the model. Nil means every tool the bridge lists.
	Tools      []transcript.ToolSpec    `json:"tools,omitempty"`
	SessionID  string                   `json:"session_id"`
	RunID      string                   `json:"run_id,omitempty"`
	WorkingDir string                   `json:"working_dir,omitempty"`
	ToolPolicy *toolexecutor.ToolPolicy `json:"tool_policy,omitempty"`
	OnEvent    eventstream.Handler      `json:"-"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// AgentResult is the terminal snapshot of a run.
type AgentResult struct {
	Response       string                     `json:"response"`
	Messages       []transcript.Message       `json:"messages"`
	ToolExecutions []transcript.ToolExecution `json:"tool_executions"`
	Turns          int                        `json:"turns"`
	Exchanges      int                        `json:"exchanges"` // user-to-assistant exchanges, see transcript.CountTurns
	Duration       time.Duration              `json:"duration"`
	RunID          string                     `json:"run_id"`
	SessionID      string                     `json:"session_id"`
	Status         Status                     `json:"status"`
	Error          string                     `json:"error,omitempty"`
	Usage          *TokenUsage                `json:"usage,omitempty"`
}

// ToolBridge lists and executes tools. *toolexecutor.ToolExecutor
// implements it.
type ToolBridge interface {
	ListTools(ctx context.Context) ([]transcript.ToolSpec, error)
	Execute(ctx context.Context, name string, args map[string]interface{}, execCtx *toolexecutor.ExecutionContext) (interface{}, error)
}

// IsRetryableError checks if an error should be retried
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		// network
		"econnreset", "etimedout", "connection reset",
		// rate limits
		"429", "rate limit",
		// server errors
		"500", "502", "503", "504", "overloaded",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

var overflowMarkers = []string{"context", "token", "length", "too long"}

// IsContextOverflow reports whether a model failure looks like the request
// exceeded the backend's context limit. Cancellation is never an overflow.
func IsContextOverflow(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrContextOverflow) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range overflowMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
