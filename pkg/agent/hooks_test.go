package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/harun/agentcore/pkg/eventstream"
	"github.com/harun/agentcore/pkg/hooks"
	"github.com/harun/agentcore/pkg/transcript"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooks_Merge(t *testing.T) {
	a := Hooks{AfterAgentEnd: []AfterAgentEndHook{{Name: "a"}}}
	b := Hooks{AfterAgentEnd: []AfterAgentEndHook{{Name: "b"}}, AfterToolCall: []AfterToolCallHook{{Name: "c"}}}

	merged := a.Merge(b)
	require.Len(t, merged.AfterAgentEnd, 2)
	assert.Equal(t, "a", merged.AfterAgentEnd[0].Name)
	assert.Equal(t, "b", merged.AfterAgentEnd[1].Name)
	assert.Len(t, merged.AfterToolCall, 1)
	assert.Len(t, a.AfterAgentEnd, 1)
}

func TestHooks_BeforeAgentStartChainsOverrides(t *testing.T) {
	h := Hooks{BeforeAgentStart: []BeforeAgentStartHook{
		{Name: "first", Fn: func(ctx context.Context, hc HookContext) (*StartOverride, error) {
			p := hc.Prompt + " one"
			return &StartOverride{Prompt: &p}, nil
		}},
		{Name: "broken", Fn: func(ctx context.Context, hc HookContext) (*StartOverride, error) {
			p := "ignored"
			return &StartOverride{Prompt: &p}, errors.New("failed")
		}},
		{Name: "second", Fn: func(ctx context.Context, hc HookContext) (*StartOverride, error) {
			p := hc.Prompt + " two"
			return &StartOverride{Prompt: &p}, nil
		}},
	}}

	hc, replaced, outcomes := h.runBeforeAgentStart(context.Background(), HookContext{Prompt: "zero"})
	assert.Equal(t, "zero one two", hc.Prompt)
	assert.False(t, replaced)
	require.Len(t, outcomes, 3)
	assert.False(t, outcomes[0].Failed())
	assert.True(t, outcomes[1].Failed())
	assert.False(t, outcomes[2].Failed())
}

func TestHooks_PanicIsContained(t *testing.T) {
	h := Hooks{AfterToolCall: []AfterToolCallHook{{
		Name: "panicky",
		Fn: func(ctx context.Context, hc HookContext, exec transcript.ToolExecution) error {
			panic("boom")
		},
	}}}

	outcomes := h.runAfterToolCall(context.Background(), HookContext{}, transcript.ToolExecution{})
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Failed())
	assert.Contains(t, outcomes[0].Err.Error(), "boom")
	assert.Equal(t, StageAfterToolCall, outcomes[0].Stage)
}

func TestScriptHooks_NilManager(t *testing.T) {
	h := ScriptHooks(nil)
	assert.Empty(t, h.BeforeAgentStart)
	assert.Empty(t, h.AfterToolCall)
}

func TestScriptHooks_RewriteInputs(t *testing.T) {
	manager, err := hooks.NewManager(hooks.Config{
		Enabled: true,
		Logger:  zerolog.Nop(),
		Hooks: []hooks.Hook{
			{ID: "prompt", Event: hooks.EventAgentStart, Script: `echo '{"prompt": "rewritten by script"}'`, Enabled: true},
			{ID: "args", Event: hooks.EventToolBefore, Script: `echo '{"arguments": {"text": "from script"}}'`, Enabled: true},
			{ID: "audit", Event: hooks.EventToolAfter, Script: `test "$AGENTCORE_HOOK_DATA_TOOL_NAME" = echo`, Enabled: true},
		},
	})
	require.NoError(t, err)

	client := newScriptedClient(callTool("echo", map[string]interface{}{"text": "original"}), reply("ok"))
	loop := newTestLoop(t, client, func(cfg *LoopConfig) {
		cfg.Hooks = ScriptHooks(manager)
	})
	rec := &eventRecorder{}

	result, err := loop.Run(context.Background(), RunParams{Prompt: "original prompt", SessionID: "s1", OnEvent: rec.handle})
	require.NoError(t, err)

	assert.Equal(t, "rewritten by script", client.request(0).Messages[0].Content)
	require.Len(t, result.ToolExecutions, 1)
	assert.Equal(t, "from script", result.ToolExecutions[0].Result)
	assert.Empty(t, rec.ofType(eventstream.EventWarning))
}

func TestScriptHooks_FailureBecomesWarning(t *testing.T) {
	manager, err := hooks.NewManager(hooks.Config{
		Enabled: true,
		Logger:  zerolog.Nop(),
		Hooks: []hooks.Hook{
			{ID: "bad", Event: hooks.EventAgentEnd, Script: "exit 3", Enabled: true},
		},
	})
	require.NoError(t, err)

	loop := newTestLoop(t, newScriptedClient(reply("ok")), func(cfg *LoopConfig) {
		cfg.Hooks = ScriptHooks(manager)
	})
	rec := &eventRecorder{}

	result, err := loop.Run(context.Background(), RunParams{Prompt: "x", SessionID: "s1", OnEvent: rec.handle})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)

	warnings := rec.ofType(eventstream.EventWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, StageAfterAgentEnd, warnings[0].Stage)
}
