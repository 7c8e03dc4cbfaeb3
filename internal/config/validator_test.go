package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAPIKey(t *testing.T) {
	v := NewValidator()

	t.Run("valid anthropic key", func(t *testing.T) {
		err := v.ValidateAPIKey("sk-ant-test123", "anthropic")
		assert.NoError(t, err)
	})

	t.Run("invalid anthropic key", func(t *testing.T) {
		err := v.ValidateAPIKey("invalid-key", "anthropic")
		assert.Error(t, err)
	})

	t.Run("valid openai key", func(t *testing.T) {
		err := v.ValidateAPIKey("sk-test123", "openai")
		assert.NoError(t, err)
	})

	t.Run("invalid openai key", func(t *testing.T) {
		err := v.ValidateAPIKey("invalid-key", "openai")
		assert.Error(t, err)
	})

	t.Run("empty key", func(t *testing.T) {
		err := v.ValidateAPIKey("", "anthropic")
		assert.Error(t, err)
	})
}

func TestValidateModel(t *testing.T) {
	v := NewValidator()

	t.Run("known model", func(t *testing.T) {
		assert.NoError(t, v.ValidateModel("gpt-4o"))
		assert.True(t, v.KnownModel("gpt-4o"))
	})

	t.Run("custom model", func(t *testing.T) {
		assert.NoError(t, v.ValidateModel("custom-model"))
		assert.False(t, v.KnownModel("custom-model"))
	})

	t.Run("empty model", func(t *testing.T) {
		assert.Error(t, v.ValidateModel("  "))
	})
}

func TestValidateStrategy(t *testing.T) {
	v := NewValidator()

	for _, strategy := range []string{"", "truncate", "selective", "hybrid"} {
		assert.NoError(t, v.ValidateStrategy(strategy), "strategy %q should be valid", strategy)
	}
	assert.Error(t, v.ValidateStrategy("summarize"))
}

func TestValidateTemperature(t *testing.T) {
	v := NewValidator()

	t.Run("valid temperature", func(t *testing.T) {
		err := v.ValidateTemperature(0.7)
		assert.NoError(t, err)
	})

	t.Run("too low", func(t *testing.T) {
		err := v.ValidateTemperature(-0.1)
		assert.Error(t, err)
	})

	t.Run("too high", func(t *testing.T) {
		err := v.ValidateTemperature(2.1)
		assert.Error(t, err)
	})
}

func TestValidateMaxTokens(t *testing.T) {
	v := NewValidator()

	t.Run("valid tokens", func(t *testing.T) {
		err := v.ValidateMaxTokens(4096)
		assert.NoError(t, err)
	})

	t.Run("zero tokens", func(t *testing.T) {
		err := v.ValidateMaxTokens(0)
		assert.Error(t, err)
	})

	t.Run("too many tokens", func(t *testing.T) {
		err := v.ValidateMaxTokens(300000)
		assert.Error(t, err)
	})
}

func TestValidateLogLevel(t *testing.T) {
	v := NewValidator()

	t.Run("valid levels", func(t *testing.T) {
		levels := []string{"debug", "info", "warn", "error"}
		for _, level := range levels {
			err := v.ValidateLogLevel(level)
			assert.NoError(t, err, "level %s should be valid", level)
		}
	})

	t.Run("invalid level", func(t *testing.T) {
		err := v.ValidateLogLevel("invalid")
		assert.Error(t, err)
	})
}

func TestValidateHookEvent(t *testing.T) {
	v := NewValidator()

	for _, event := range []string{"agent:start", "agent:end", "tool:before", "tool:after"} {
		assert.NoError(t, v.ValidateHookEvent(event))
	}
	assert.Error(t, v.ValidateHookEvent("message:received"))
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator()

	t.Run("valid config", func(t *testing.T) {
		errors := v.ValidateConfig(validConfig())
		assert.Empty(t, errors)
	})

	t.Run("multiple errors", func(t *testing.T) {
		cfg := validConfig()
		cfg.AI.Profiles[0].APIKey = "invalid-key"
		cfg.Context.Strategy = "invalid"
		cfg.Logging.Level = "invalid"

		errors := v.ValidateConfig(cfg)
		assert.Len(t, errors, 3)
	})

	t.Run("reserve exceeds window", func(t *testing.T) {
		cfg := validConfig()
		cfg.Context.MaxContextTokens = 2048

		errors := v.ValidateConfig(cfg)
		assert.Len(t, errors, 1)
	})

	t.Run("enabled hooks need event and script", func(t *testing.T) {
		cfg := validConfig()
		cfg.Hooks.Enabled = true
		cfg.Hooks.Entries = []HookConfig{
			{ID: "bad", Event: "nope", Enabled: true},
			{ID: "off", Event: "nope", Enabled: false},
		}

		errors := v.ValidateConfig(cfg)
		assert.Len(t, errors, 2)
	})
}
