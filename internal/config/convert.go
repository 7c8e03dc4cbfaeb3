package config

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/harun/agentcore/pkg/agent"
	"github.com/harun/agentcore/pkg/contextwindow"
	"github.com/harun/agentcore/pkg/hooks"
	"github.com/harun/agentcore/pkg/planner"
	"github.com/harun/agentcore/pkg/runqueue"
	"github.com/harun/agentcore/pkg/toolexecutor"
	"github.com/rs/zerolog"
)

// AgentLoopConfig converts the agent section into loop settings.
func (c *Config) AgentLoopConfig() agent.Config {
	a := c.Agent
	return agent.Config{
		Model:                a.Model,
		Temperature:          a.Temperature,
		MaxTokens:            a.MaxTokens,
		MaxTurns:             a.MaxTurns,
		MaxToolCalls:         a.MaxToolCalls,
		MaxCompactionRetries: a.MaxCompactionRetries,
		Streaming:            a.Streaming,
		MessagingTools:       append([]string(nil), a.MessagingTools...),
		NoReplyToken:         a.NoReplyToken,
		ToolTimeout:          millis(a.ToolTimeoutMs),
	}
}

// ToolPolicy returns the configured allow/deny lists.
func (c *Config) ToolPolicy() *toolexecutor.ToolPolicy {
	return &toolexecutor.ToolPolicy{
		Allow: append([]string(nil), c.Agent.Tools.Allow...),
		Deny:  append([]string(nil), c.Agent.Tools.Deny...),
	}
}

// PlannerConfig returns planner thresholds with planning toggled by the agent section.
func (c *Config) PlannerConfig() planner.Config {
	cfg := planner.DefaultConfig()
	cfg.Enabled = c.Agent.Planning
	return cfg
}

// ContextWindowConfig converts the context section.
func (c *Config) ContextWindowConfig(logger zerolog.Logger) contextwindow.Config {
	strategy, err := contextwindow.ParseStrategy(c.Context.Strategy)
	if err != nil {
		strategy = contextwindow.StrategyHybrid
	}
	return contextwindow.Config{
		MaxContextTokens: c.Context.MaxContextTokens,
		ReservedTokens:   c.Context.ReservedTokens,
		Strategy:         strategy,
		KeepFirstLast:    c.Context.KeepFirstLast,
		MaxMessages:      c.Context.MaxMessages,
		Logger:           logger,
	}
}

// RunQueueConfig converts the queue section.
func (c *Config) RunQueueConfig(logger zerolog.Logger) runqueue.Config {
	return runqueue.Config{
		RunTimeout: millis(c.Queue.RunTimeoutMs),
		WarnAfter:  millis(c.Queue.WarnAfterMs),
		DedupTTL:   millis(c.Queue.DedupTTLMs),
		Logger:     logger,
	}
}

// HooksManagerConfig converts the hooks section.
func (c *Config) HooksManagerConfig(logger zerolog.Logger) hooks.Config {
	entries := make([]hooks.Hook, 0, len(c.Hooks.Entries))
	for _, entry := range c.Hooks.Entries {
		entries = append(entries, hooks.Hook{
			ID:      entry.ID,
			Event:   entry.Event,
			Script:  entry.Script,
			Timeout: millis(entry.TimeoutMs),
			Enabled: entry.Enabled,
		})
	}
	return hooks.Config{
		Enabled: c.Hooks.Enabled,
		Hooks:   entries,
		Logger:  logger,
	}
}

// AuthProfiles returns the AI profiles ordered by priority.
func (c *Config) AuthProfiles() []agent.AuthProfile {
	profiles := make([]agent.AuthProfile, 0, len(c.AI.Profiles))
	for _, p := range c.AI.Profiles {
		profiles = append(profiles, agent.AuthProfile{
			ID:       p.ID,
			Provider: p.Provider,
			APIKey:   p.APIKey,
			BaseURL:  p.BaseURL,
			Priority: p.Priority,
		})
	}
	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].Priority < profiles[j].Priority
	})
	return profiles
}

// RunStorePath returns the sqlite path, defaulting under the data directory.
func (c *Config) RunStorePath() string {
	if c.RunStore.Path != "" {
		return c.RunStore.Path
	}
	return filepath.Join(c.DataDir, "runs.db")
}

func millis(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
