package config

import (
	"fmt"
	"strings"

	"github.com/harun/agentcore/pkg/contextwindow"
	"github.com/harun/agentcore/pkg/hooks"
	"github.com/harun/agentcore/pkg/tokenizer"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateModel validates a model name. Models without a known context
// size are allowed; KnownModel reports them.
func (v *Validator) ValidateModel(model string) error {
	if strings.TrimSpace(model) == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	return nil
}

// KnownModel reports whether the model has a known context window.
func (v *Validator) KnownModel(model string) bool {
	return tokenizer.KnownModel(model)
}

// ValidateStrategy validates a context compression strategy
func (v *Validator) ValidateStrategy(strategy string) error {
	_, err := contextwindow.ParseStrategy(strategy)
	return err
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if contains(validLevels, level) {
		return nil
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateHookEvent validates a lifecycle hook event name
func (v *Validator) ValidateHookEvent(event string) error {
	validEvents := []string{hooks.EventAgentStart, hooks.EventAgentEnd, hooks.EventToolBefore, hooks.EventToolAfter}
	if contains(validEvents, event) {
		return nil
	}
	return fmt.Errorf("invalid hook event: %s (must be one of: %s)", event, strings.Join(validEvents, ", "))
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	for i, profile := range cfg.AI.Profiles {
		if profile.Provider != "" {
			if err := v.ValidateAPIKey(profile.APIKey, profile.Provider); err != nil {
				errors = append(errors, fmt.Errorf("AI profile %d (%s): %w", i, profile.ID, err))
			}
		}
	}

	if err := v.ValidateModel(cfg.Agent.Model); err != nil {
		errors = append(errors, fmt.Errorf("agent: %w", err))
	}
	if cfg.Agent.Temperature != 0 {
		if err := v.ValidateTemperature(cfg.Agent.Temperature); err != nil {
			errors = append(errors, fmt.Errorf("agent: %w", err))
		}
	}
	if cfg.Agent.MaxTokens != 0 {
		if err := v.ValidateMaxTokens(cfg.Agent.MaxTokens); err != nil {
			errors = append(errors, fmt.Errorf("agent: %w", err))
		}
	}
	if cfg.Agent.MaxTurns <= 0 {
		errors = append(errors, fmt.Errorf("agent.max_turns must be > 0"))
	}
	if cfg.Agent.MaxToolCalls < 0 {
		errors = append(errors, fmt.Errorf("agent.max_tool_calls must be >= 0"))
	}
	if cfg.Agent.MaxCompactionRetries < 0 {
		errors = append(errors, fmt.Errorf("agent.max_compaction_retries must be >= 0"))
	}
	if cfg.Agent.ToolTimeoutMs < 0 {
		errors = append(errors, fmt.Errorf("agent.tool_timeout_ms must be >= 0"))
	}

	if err := v.ValidateStrategy(cfg.Context.Strategy); err != nil {
		errors = append(errors, fmt.Errorf("context: %w", err))
	}
	if cfg.Context.ReservedTokens < 0 {
		errors = append(errors, fmt.Errorf("context.reserved_tokens must be >= 0"))
	}
	if cfg.Context.MaxContextTokens > 0 && cfg.Context.ReservedTokens >= cfg.Context.MaxContextTokens {
		errors = append(errors, fmt.Errorf("context.reserved_tokens must be smaller than context.max_context_tokens"))
	}

	if cfg.Queue.RunTimeoutMs < 0 {
		errors = append(errors, fmt.Errorf("queue.run_timeout_ms must be >= 0"))
	}
	if cfg.Queue.DedupTTLMs < 0 {
		errors = append(errors, fmt.Errorf("queue.dedup_ttl_ms must be >= 0"))
	}

	if cfg.Hooks.Enabled {
		for i, hook := range cfg.Hooks.Entries {
			if !hook.Enabled {
				continue
			}
			if err := v.ValidateHookEvent(hook.Event); err != nil {
				errors = append(errors, fmt.Errorf("hook %d: %w", i, err))
			}
			if strings.TrimSpace(hook.Script) == "" {
				errors = append(errors, fmt.Errorf("hook %d: script is required", i))
			}
		}
	}

	if cfg.RunStore.Driver != "" && !contains(validStoreDrivers, cfg.RunStore.Driver) {
		errors = append(errors, fmt.Errorf("invalid run_store driver: %s", cfg.RunStore.Driver))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
