package config

import (
	"testing"
	"time"

	"github.com/harun/agentcore/pkg/contextwindow"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.AI.Profiles = []AIProfile{
		{
			ID:       "test-profile",
			Provider: "anthropic",
			APIKey:   "sk-ant-test123",
			Priority: 1,
		},
	}
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.Agent.Model)
	assert.Equal(t, 10, cfg.Agent.MaxTurns)
	assert.Equal(t, 10, cfg.Agent.MaxToolCalls)
	assert.Equal(t, 2, cfg.Agent.MaxCompactionRetries)
	assert.Equal(t, []string{"send_message"}, cfg.Agent.MessagingTools)
	assert.Equal(t, "NO_REPLY", cfg.Agent.NoReplyToken)
	assert.True(t, cfg.Agent.Planning)
	assert.Equal(t, "hybrid", cfg.Context.Strategy)
	assert.Equal(t, 4096, cfg.Context.ReservedTokens)
	assert.True(t, cfg.Context.KeepFirstLast)
	assert.Equal(t, 600000, cfg.Queue.RunTimeoutMs)
	assert.False(t, cfg.Hooks.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "sqlite", cfg.RunStore.Driver)
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("missing API keys", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no AI credentials")
	})

	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{"profile missing ID", func(cfg *Config) { cfg.AI.Profiles[0].ID = "" }, "ID is required"},
		{"profile missing key", func(cfg *Config) { cfg.AI.Profiles[0].APIKey = "" }, "api_key is required"},
		{"unknown provider", func(cfg *Config) { cfg.AI.Profiles[0].Provider = "gemini" }, "invalid provider gemini"},
		{"missing model", func(cfg *Config) { cfg.Agent.Model = "" }, "model is required"},
		{"zero max turns", func(cfg *Config) { cfg.Agent.MaxTurns = 0 }, "max_turns"},
		{"negative tool calls", func(cfg *Config) { cfg.Agent.MaxToolCalls = -1 }, "max_tool_calls"},
		{"negative compaction retries", func(cfg *Config) { cfg.Agent.MaxCompactionRetries = -1 }, "max_compaction_retries"},
		{"temperature out of range", func(cfg *Config) { cfg.Agent.Temperature = 2.5 }, "temperature"},
		{"unknown strategy", func(cfg *Config) { cfg.Context.Strategy = "magic" }, "unknown context strategy"},
		{"negative reserve", func(cfg *Config) { cfg.Context.ReservedTokens = -1 }, "context"},
		{"negative queue timeout", func(cfg *Config) { cfg.Queue.RunTimeoutMs = -1 }, "queue"},
		{"unknown store", func(cfg *Config) { cfg.RunStore.Driver = "postgres" }, "run_store"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigString(t *testing.T) {
	s := DefaultConfig().String()
	assert.Contains(t, s, `"max_compaction_retries": 2`)
	assert.Contains(t, s, `"run_store"`)
}

func TestConfigConversions(t *testing.T) {
	cfg := validConfig()
	cfg.AI.Profiles = append(cfg.AI.Profiles, AIProfile{ID: "first", Provider: "openai", APIKey: "sk-x", BaseURL: "http://localhost:8000/v1", Priority: 0})
	cfg.Agent.ToolTimeoutMs = 1500
	cfg.Agent.Planning = false
	cfg.Context.Strategy = "truncate"
	cfg.Queue.DedupTTLMs = 0
	cfg.Hooks.Enabled = true
	cfg.Hooks.Entries = []HookConfig{{ID: "h", Event: "agent:start", Script: "true", TimeoutMs: 250, Enabled: true}}

	loop := cfg.AgentLoopConfig()
	assert.Equal(t, cfg.Agent.Model, loop.Model)
	assert.Equal(t, 1500*time.Millisecond, loop.ToolTimeout)
	assert.Equal(t, []string{"send_message"}, loop.MessagingTools)
	assert.NoError(t, loop.Validate())

	assert.False(t, cfg.PlannerConfig().Enabled)

	window := cfg.ContextWindowConfig(zerolog.Nop())
	assert.Equal(t, contextwindow.StrategyTruncate, window.Strategy)
	assert.Equal(t, 4096, window.ReservedTokens)

	queue := cfg.RunQueueConfig(zerolog.Nop())
	assert.Equal(t, 10*time.Minute, queue.RunTimeout)
	assert.Equal(t, time.Duration(0), queue.DedupTTL)

	hooksCfg := cfg.HooksManagerConfig(zerolog.Nop())
	assert.True(t, hooksCfg.Enabled)
	require.Len(t, hooksCfg.Hooks, 1)
	assert.Equal(t, 250*time.Millisecond, hooksCfg.Hooks[0].Timeout)

	profiles := cfg.AuthProfiles()
	require.Len(t, profiles, 2)
	assert.Equal(t, "first", profiles[0].ID)
	assert.Equal(t, "http://localhost:8000/v1", profiles[0].BaseURL)
	assert.Equal(t, "test-profile", profiles[1].ID)

	policy := cfg.ToolPolicy()
	assert.True(t, policy.IsToolAllowed("read_file"))
}

func TestRunStorePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data"
	assert.Equal(t, "/data/runs.db", cfg.RunStorePath())

	cfg.RunStore.Path = "/elsewhere/runs.db"
	assert.Equal(t, "/elsewhere/runs.db", cfg.RunStorePath())
}
