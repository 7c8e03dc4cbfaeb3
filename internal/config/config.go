package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harun/agentcore/pkg/contextwindow"
)

// Config represents the main agentcore configuration
type Config struct {
	// Agent loop limits and model settings
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Context window management
	Context ContextConfig `json:"context" mapstructure:"context"`

	// Per-session run queue
	Queue QueueConfig `json:"queue" mapstructure:"queue"`

	// Lifecycle hook scripts
	Hooks HooksConfig `json:"hooks" mapstructure:"hooks"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// AI configuration
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Workspace path for the filesystem tools
	WorkspacePath string `json:"workspace_path" mapstructure:"workspace_path"`

	// Persisted run results
	RunStore RunStoreConfig `json:"run_store" mapstructure:"run_store"`
}

// AgentConfig holds the agent loop settings
type AgentConfig struct {
	Model                string           `json:"model" mapstructure:"model"`
	SystemPrompt         string           `json:"system_prompt" mapstructure:"system_prompt"`
	Temperature          float64          `json:"temperature" mapstructure:"temperature"`
	MaxTokens            int              `json:"max_tokens" mapstructure:"max_tokens"`
	MaxTurns             int              `json:"max_turns" mapstructure:"max_turns"`
	MaxToolCalls         int              `json:"max_tool_calls" mapstructure:"max_tool_calls"`
	MaxCompactionRetries int              `json:"max_compaction_retries" mapstructure:"max_compaction_retries"`
	ToolTimeoutMs        int              `json:"tool_timeout_ms" mapstructure:"tool_timeout_ms"`
	Streaming            bool             `json:"streaming" mapstructure:"streaming"`
	MessagingTools       []string         `json:"messaging_tools" mapstructure:"messaging_tools"`
	NoReplyToken         string           `json:"no_reply_token" mapstructure:"no_reply_token"`
	Planning             bool             `json:"planning" mapstructure:"planning"`
	Tools                ToolPolicyConfig `json:"tools" mapstructure:"tools"`
}

// ToolPolicyConfig defines tool access policies
type ToolPolicyConfig struct {
	Allow []string `json:"allow" mapstructure:"allow"`
	Deny  []string `json:"deny" mapstructure:"deny"`
}

// ContextConfig holds context window settings
type ContextConfig struct {
	MaxContextTokens int    `json:"max_context_tokens" mapstructure:"max_context_tokens"` // 0 = by model
	ReservedTokens   int    `json:"reserved_tokens" mapstructure:"reserved_tokens"`
	Strategy         string `json:"strategy" mapstructure:"strategy"` // truncate, selective, hybrid
	KeepFirstLast    bool   `json:"keep_first_last" mapstructure:"keep_first_last"`
	MaxMessages      int    `json:"max_messages" mapstructure:"max_messages"`
}

// QueueConfig holds run queue settings
type QueueConfig struct {
	RunTimeoutMs int `json:"run_timeout_ms" mapstructure:"run_timeout_ms"`
	WarnAfterMs  int `json:"warn_after_ms" mapstructure:"warn_after_ms"`
	DedupTTLMs   int `json:"dedup_ttl_ms" mapstructure:"dedup_ttl_ms"`
}

// HooksConfig holds lifecycle hook settings
type HooksConfig struct {
	Enabled bool         `json:"enabled" mapstructure:"enabled"`
	Entries []HookConfig `json:"entries" mapstructure:"entries"`
}

// HookConfig represents one hook script
type HookConfig struct {
	ID        string `json:"id" mapstructure:"id"`
	Event     string `json:"event" mapstructure:"event"`
	Script    string `json:"script" mapstructure:"script"`
	TimeoutMs int    `json:"timeout_ms" mapstructure:"timeout_ms"`
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	Profiles []AIProfile `json:"profiles" mapstructure:"profiles"`
}

// AIProfile represents an AI provider profile
type AIProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	BaseURL  string `json:"base_url,omitempty" mapstructure:"base_url"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

// RunStoreConfig selects where finished runs are kept
type RunStoreConfig struct {
	Driver string `json:"driver" mapstructure:"driver"` // memory, sqlite
	Path   string `json:"path" mapstructure:"path"`
}

var (
	validProviders    = []string{"anthropic", "openai"}
	validStoreDrivers = []string{"memory", "sqlite"}
)

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Model:                "claude-3-5-sonnet-20241022",
			Temperature:          0.7,
			MaxTokens:            4096,
			MaxTurns:             10,
			MaxToolCalls:         10,
			MaxCompactionRetries: 2,
			ToolTimeoutMs:        60000,
			Streaming:            true,
			MessagingTools:       []string{"send_message"},
			NoReplyToken:         "NO_REPLY",
			Planning:             true,
			Tools: ToolPolicyConfig{
				Allow: []string{"*"},
				Deny:  []string{},
			},
		},
		Context: ContextConfig{
			ReservedTokens: 4096,
			Strategy:       string(contextwindow.StrategyHybrid),
			KeepFirstLast:  true,
			MaxMessages:    100,
		},
		Queue: QueueConfig{
			RunTimeoutMs: 600000,
			WarnAfterMs:  30000,
			DedupTTLMs:   300000,
		},
		Hooks: HooksConfig{
			Enabled: false,
			Entries: []HookConfig{},
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		AI: AIConfig{
			Profiles: []AIProfile{},
		},
		RunStore: RunStoreConfig{
			Driver: "sqlite",
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Require at least one AI profile
	if len(c.AI.Profiles) == 0 {
		return fmt.Errorf("no AI credentials configured: at least one AI profile is required")
	}

	for i, profile := range c.AI.Profiles {
		if profile.ID == "" {
			return fmt.Errorf("AI profile %d: ID is required", i)
		}
		if profile.Provider == "" {
			return fmt.Errorf("AI profile %s: provider is required", profile.ID)
		}
		if profile.APIKey == "" {
			return fmt.Errorf("AI profile %s: api_key is required", profile.ID)
		}
		if !contains(validProviders, profile.Provider) {
			return fmt.Errorf("AI profile %s: invalid provider %s (must be: %s)", profile.ID, profile.Provider, strings.Join(validProviders, ", "))
		}
	}

	if c.Agent.Model == "" {
		return fmt.Errorf("agent model is required")
	}
	if c.Agent.MaxTurns <= 0 {
		return fmt.Errorf("agent max_turns must be positive, got %d", c.Agent.MaxTurns)
	}
	if c.Agent.MaxToolCalls < 0 {
		return fmt.Errorf("agent max_tool_calls must be >= 0, got %d", c.Agent.MaxToolCalls)
	}
	if c.Agent.MaxCompactionRetries < 0 {
		return fmt.Errorf("agent max_compaction_retries must be >= 0, got %d", c.Agent.MaxCompactionRetries)
	}
	if c.Agent.Temperature < 0 || c.Agent.Temperature > 2 {
		return fmt.Errorf("agent temperature must be between 0 and 2, got %g", c.Agent.Temperature)
	}

	if _, err := contextwindow.ParseStrategy(c.Context.Strategy); err != nil {
		return fmt.Errorf("context: %w", err)
	}
	if c.Context.MaxContextTokens < 0 || c.Context.ReservedTokens < 0 || c.Context.MaxMessages < 0 {
		return fmt.Errorf("context token and message limits must be >= 0")
	}

	if c.Queue.RunTimeoutMs < 0 || c.Queue.WarnAfterMs < 0 || c.Queue.DedupTTLMs < 0 {
		return fmt.Errorf("queue durations must be >= 0")
	}

	if c.RunStore.Driver != "" && !contains(validStoreDrivers, c.RunStore.Driver) {
		return fmt.Errorf("invalid run_store driver: %s (must be: %s)", c.RunStore.Driver, strings.Join(validStoreDrivers, ", "))
	}

	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
