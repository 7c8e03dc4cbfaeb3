package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harun/agentcore/pkg/hooks"
	"github.com/harun/agentcore/pkg/transcript"
)

// Hook stages.
const (
	StageBeforeAgentStart = "before_agent_start"
	StageAfterAgentEnd    = "after_agent_end"
	StageBeforeToolCall   = "before_tool_call"
	StageAfterToolCall    = "after_tool_call"
)

// HookContext is the read-only view of a run handed to hooks.
type HookContext struct {
	RunID        string
	SessionID    string
	Prompt       string
	SystemPrompt string
	Turn         int
	Messages     []transcript.Message
}

// StartOverride replaces parts of the run input. Nil fields are left alone.
type StartOverride struct {
	Prompt       *string
	SystemPrompt *string
	Messages     []transcript.Message
}

// ToolCallOverride replaces a call's arguments when Arguments is non-nil.
type ToolCallOverride struct {
	Arguments map[string]interface{}
}

type (
	BeforeAgentStartFunc func(ctx context.Context, hc HookContext) (*StartOverride, error)
	AfterAgentEndFunc    func(ctx context.Context, hc HookContext, result *AgentResult) error
	BeforeToolCallFunc   func(ctx context.Context, hc HookContext, call transcript.ToolCall) (*ToolCallOverride, error)
	AfterToolCallFunc    func(ctx context.Context, hc HookContext, exec transcript.ToolExecution) error
)

type BeforeAgentStartHook struct {
	Name string
	Fn   BeforeAgentStartFunc
}

type AfterAgentEndHook struct {
	Name string
	Fn   AfterAgentEndFunc
}

type BeforeToolCallHook struct {
	Name string
	Fn   BeforeToolCallFunc
}

type AfterToolCallHook struct {
	Name string
	Fn   AfterToolCallFunc
}

// Hooks holds independent callbacks per stage. A failing or panicking
// callback is skipped and reported as a HookOutcome; it never stops the run.
type Hooks struct {
	BeforeAgentStart []BeforeAgentStartHook
	AfterAgentEnd    []AfterAgentEndHook
	BeforeToolCall   []BeforeToolCallHook
	AfterToolCall    []AfterToolCallHook
}

// Merge appends other's callbacks after h's.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		BeforeAgentStart: append(append([]BeforeAgentStartHook(nil), h.BeforeAgentStart...), other.BeforeAgentStart...),
		AfterAgentEnd:    append(append([]AfterAgentEndHook(nil), h.AfterAgentEnd...), other.AfterAgentEnd...),
		BeforeToolCall:   append(append([]BeforeToolCallHook(nil), h.BeforeToolCall...), other.BeforeToolCall...),
		AfterToolCall:    append(append([]AfterToolCallHook(nil), h.AfterToolCall...), other.AfterToolCall...),
	}
}

// HookOutcome records one callback invocation.
type HookOutcome struct {
	Stage    string
	Name     string
	Duration time.Duration
	Err      error
}

// Failed reports whether the callback returned an error or panicked.
func (o HookOutcome) Failed() bool {
	return o.Err != nil
}

func invokeHook(stage, name string, fn func() error) (outcome HookOutcome) {
	outcome = HookOutcome{Stage: stage, Name: name}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			outcome.Err = fmt.Errorf("hook panicked: %v", r)
		}
		outcome.Duration = time.Since(start)
	}()
	outcome.Err = fn()
	return outcome
}

// runBeforeAgentStart applies overrides in registration order, so later
// hooks see earlier rewrites.
func (h Hooks) runBeforeAgentStart(ctx context.Context, hc HookContext) (HookContext, bool, []HookOutcome) {
	var outcomes []HookOutcome
	messagesReplaced := false
	for _, hook := range h.BeforeAgentStart {
		var override *StartOverride
		outcome := invokeHook(StageBeforeAgentStart, hook.Name, func() error {
			var err error
			override, err = hook.Fn(ctx, hc)
			return err
		})
		outcomes = append(outcomes, outcome)
		if outcome.Failed() || override == nil {
			continue
		}
		if override.Prompt != nil {
			hc.Prompt = *override.Prompt
		}
		if override.SystemPrompt != nil {
			hc.SystemPrompt = *override.SystemPrompt
		}
		if override.Messages != nil {
			hc.Messages = transcript.CloneMessages(override.Messages)
			messagesReplaced = true
		}
	}
	return hc, messagesReplaced, outcomes
}

// runBeforeToolCall returns the arguments to execute with and whether a
// hook replaced the model's arguments.
func (h Hooks) runBeforeToolCall(ctx context.Context, hc HookContext, call transcript.ToolCall) (map[string]interface{}, bool, []HookOutcome) {
	var outcomes []HookOutcome
	args := call.Arguments
	overridden := false
	for _, hook := range h.BeforeToolCall {
		var override *ToolCallOverride
		current := call.Clone()
		current.Arguments = args
		outcome := invokeHook(StageBeforeToolCall, hook.Name, func() error {
			var err error
			override, err = hook.Fn(ctx, hc, current)
			return err
		})
		outcomes = append(outcomes, outcome)
		if !outcome.Failed() && override != nil && override.Arguments != nil {
			args = override.Arguments
			overridden = true
		}
	}
	return args, overridden, outcomes
}

func (h Hooks) runAfterToolCall(ctx context.Context, hc HookContext, exec transcript.ToolExecution) []HookOutcome {
	var outcomes []HookOutcome
	for _, hook := range h.AfterToolCall {
		outcomes = append(outcomes, invokeHook(StageAfterToolCall, hook.Name, func() error {
			return hook.Fn(ctx, hc, exec)
		}))
	}
	return outcomes
}

func (h Hooks) runAfterAgentEnd(ctx context.Context, hc HookContext, result *AgentResult) []HookOutcome {
	var outcomes []HookOutcome
	for _, hook := range h.AfterAgentEnd {
		outcomes = append(outcomes, invokeHook(StageAfterAgentEnd, hook.Name, func() error {
			return hook.Fn(ctx, hc, result)
		}))
	}
	return outcomes
}

// scriptOverride is the JSON object a script hook may print on stdout.
type scriptOverride struct {
	Prompt       *string                `json:"prompt"`
	SystemPrompt *string                `json:"system_prompt"`
	Arguments    map[string]interface{} `json:"arguments"`
}

// ScriptHooks binds the script hooks of m to the loop's stages:
// agent:start, agent:end, tool:before and tool:after. Scripts receive run
// data as AGENTCORE_HOOK_* environment variables. A before-stage script may
// print a JSON object with "prompt", "system_prompt" or "arguments" to
// rewrite the input.
func ScriptHooks(m *hooks.Manager) Hooks {
	if m == nil {
		return Hooks{}
	}

	var out Hooks
	if m.Has(hooks.EventAgentStart) {
		out.BeforeAgentStart = append(out.BeforeAgentStart, BeforeAgentStartHook{
			Name: "script:" + hooks.EventAgentStart,
			Fn: func(ctx context.Context, hc HookContext) (*StartOverride, error) {
				data := hookData(hc)
				data["prompt"] = hc.Prompt
				override, err := triggerScripts(ctx, m, hooks.EventAgentStart, data)
				if override == nil {
					return nil, err
				}
				return &StartOverride{Prompt: override.Prompt, SystemPrompt: override.SystemPrompt}, err
			},
		})
	}
	if m.Has(hooks.EventAgentEnd) {
		out.AfterAgentEnd = append(out.AfterAgentEnd, AfterAgentEndHook{
			Name: "script:" + hooks.EventAgentEnd,
			Fn: func(ctx context.Context, hc HookContext, result *AgentResult) error {
				data := hookData(hc)
				if result != nil {
					data["status"] = string(result.Status)
					data["response"] = result.Response
					data["turns"] = result.Turns
					data["exchanges"] = result.Exchanges
				}
				_, err := triggerScripts(ctx, m, hooks.EventAgentEnd, data)
				return err
			},
		})
	}
	if m.Has(hooks.EventToolBefore) {
		out.BeforeToolCall = append(out.BeforeToolCall, BeforeToolCallHook{
			Name: "script:" + hooks.EventToolBefore,
			Fn: func(ctx context.Context, hc HookContext, call transcript.ToolCall) (*ToolCallOverride, error) {
				data := hookData(hc)
				data["tool_name"] = call.Name
				data["tool_call_id"] = call.ID
				data["args"] = renderValue(call.Arguments)
				override, err := triggerScripts(ctx, m, hooks.EventToolBefore, data)
				if override == nil || override.Arguments == nil {
					return nil, err
				}
				return &ToolCallOverride{Arguments: override.Arguments}, err
			},
		})
	}
	if m.Has(hooks.EventToolAfter) {
		out.AfterToolCall = append(out.AfterToolCall, AfterToolCallHook{
			Name: "script:" + hooks.EventToolAfter,
			Fn: func(ctx context.Context, hc HookContext, exec transcript.ToolExecution) error {
				data := hookData(hc)
				data["tool_name"] = exec.ToolName
				data["tool_call_id"] = exec.ToolCallID
				data["success"] = exec.Success
				data["duration_ms"] = exec.DurationMs
				if exec.Error != "" {
					data["error"] = exec.Error
				}
				_, err := triggerScripts(ctx, m, hooks.EventToolAfter, data)
				return err
			},
		})
	}
	return out
}

func hookData(hc HookContext) map[string]interface{} {
	return map[string]interface{}{
		"run_id":     hc.RunID,
		"session_id": hc.SessionID,
		"turn":       hc.Turn,
	}
}

// triggerScripts runs every script for event. The last script printing a
// JSON object wins; failures are joined.
func triggerScripts(ctx context.Context, m *hooks.Manager, event string, data map[string]interface{}) (*scriptOverride, error) {
	var override *scriptOverride
	var errs []error
	for _, outcome := range m.TriggerEach(ctx, event, data) {
		if outcome.Err != nil {
			errs = append(errs, outcome.Err)
			continue
		}
		stdout := strings.TrimSpace(outcome.Output)
		if !strings.HasPrefix(stdout, "{") {
			continue
		}
		var parsed scriptOverride
		if err := json.Unmarshal([]byte(stdout), &parsed); err != nil {
			errs = append(errs, fmt.Errorf("hook %s: invalid output: %w", outcome.HookID, err))
			continue
		}
		override = &parsed
	}
	return override, errors.Join(errs...)
}
