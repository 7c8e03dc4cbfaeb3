package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harun/agentcore/internal/observability"
	"github.com/harun/agentcore/internal/tracing"
	"github.com/harun/agentcore/pkg/contextwindow"
	"github.com/harun/agentcore/pkg/eventstream"
	"github.com/harun/agentcore/pkg/planner"
	"github.com/harun/agentcore/pkg/runqueue"
	"github.com/harun/agentcore/pkg/toolexecutor"
	"github.com/harun/agentcore/pkg/transcript"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// LoopConfig holds the collaborators of a Loop.
type LoopConfig struct {
	Config Config
	Client ModelClient
	Tools  ToolBridge
	// Window defaults to a manager with contextwindow.DefaultConfig.
	Window *contextwindow.Manager
	// Planner is optional; nil disables step tracking.
	Planner *planner.Planner
	// Extractor defaults to DefaultExtractor.
	Extractor CallExtractor
	Hooks     Hooks
	Logger    zerolog.Logger
}

// Loop drives the turn-based conversation between a model and tools.
// A Loop is stateless between runs and safe for concurrent use.
type Loop struct {
	config    Config
	client    ModelClient
	tools     ToolBridge
	window    *contextwindow.Manager
	planner   *planner.Planner
	extractor CallExtractor
	hooks     Hooks
	logger    zerolog.Logger
	messaging map[string]bool
}

// NewLoop creates a new agent loop
func NewLoop(cfg LoopConfig) (*Loop, error) {
	observability.EnsureRegistered()

	if cfg.Client == nil {
		return nil, fmt.Errorf("model client is required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("tool bridge is required")
	}
	if err := cfg.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	window := cfg.Window
	if window == nil {
		window = contextwindow.NewManager(contextwindow.DefaultConfig())
	}
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = DefaultExtractor()
	}
	config := cfg.Config
	if config.NoReplyToken == "" {
		config.NoReplyToken = DefaultNoReplyToken
	}

	messaging := make(map[string]bool, len(config.MessagingTools))
	for _, name := range config.MessagingTools {
		messaging[name] = true
	}

	return &Loop{
		config:    config,
		client:    cfg.Client,
		tools:     cfg.Tools,
		window:    window,
		planner:   cfg.Planner,
		extractor: extractor,
		hooks:     cfg.Hooks,
		logger:    cfg.Logger.With().Str("component", "agent").Logger(),
		messaging: messaging,
	}, nil
}

// Config returns the loop configuration.
func (l *Loop) Config() Config {
	return l.config
}

// Run executes one run to completion. Model failures, timeouts and
// cancellation are reported through the result status; an error is only
// returned for internal failures, together with an error-status result.
func (l *Loop) Run(ctx context.Context, params RunParams) (result *AgentResult, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	runID := params.RunID
	if runID == "" {
		runID = runqueue.NewRunID()
	}

	ctx = tracing.NewRunContext(ctx, runID, params.SessionID)
	ctx, span := tracing.StartSpan(ctx, tracing.TracerAgent, "agent.run",
		attribute.String("model", l.config.Model),
	)

	rc := &runContext{
		runID:        runID,
		sessionID:    params.SessionID,
		prompt:       params.Prompt,
		systemPrompt: params.SystemPrompt,
		workingDir:   params.WorkingDir,
		toolPolicy:   params.ToolPolicy,
		logger:       tracing.LoggerFromContext(ctx, l.logger),
		startedAt:    time.Now(),
	}
	rc.stream = eventstream.New(runID, params.SessionID, params.OnEvent, rc.logger)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent loop panicked: %v", r)
			rc.logger.Error().Err(err).Msg("Agent run aborted")
			rc.emit(eventstream.Event{Type: eventstream.EventError, Error: err.Error()})
			result = l.buildResult(rc, StatusError, err)
			rc.emit(eventstream.Event{Type: eventstream.EventAgentEnd, Status: string(StatusError)})
			rc.stream.End()
		}
		tracing.EndSpan(span, err)
	}()

	return l.run(ctx, rc, params.Tools), nil
}

func (l *Loop) run(ctx context.Context, rc *runContext, tools []transcript.ToolSpec) *AgentResult {
	rc.logger.Info().Str("model", l.config.Model).Msg("Agent run started")
	rc.emit(eventstream.Event{Type: eventstream.EventAgentStart, Text: rc.prompt})

	rc.tools = l.resolveTools(ctx, rc, tools)
	rc.append(transcript.NewMessage(transcript.RoleUser, rc.prompt))
	l.beforeAgentStart(ctx, rc)
	l.startPlan(rc)

	status, runErr := l.turns(ctx, rc)
	result := l.buildResult(rc, status, runErr)

	// After-end hooks still run when the run was cancelled.
	hookCtx := context.WithoutCancel(ctx)
	l.reportHooks(rc, l.hooks.runAfterAgentEnd(hookCtx, rc.hookContext(), result))

	observability.RecordRun(string(result.Status), result.Duration, result.Turns)
	observability.RecordRunAudit(hookCtx, rc.runID, rc.sessionID, string(result.Status), map[string]interface{}{
		"turns":           result.Turns,
		"exchanges":       result.Exchanges,
		"tool_executions": len(result.ToolExecutions),
		"duration_ms":     result.Duration.Milliseconds(),
	})

	event := rc.logger.Info()
	if result.Status != StatusCompleted {
		event = rc.logger.Warn().Str("error", result.Error)
	}
	event.Str("status", string(result.Status)).
		Int("turns", result.Turns).
		Int("tool_executions", len(result.ToolExecutions)).
		Dur("duration", result.Duration).
		Msg("Agent run finished")

	rc.emit(eventstream.Event{Type: eventstream.EventAgentEnd, Status: string(result.Status), Error: result.Error})
	rc.stream.End()
	return result
}

// resolveTools lists the bridge's tools unless the caller supplied them. A
// listing failure degrades to a run without tools.
func (l *Loop) resolveTools(ctx context.Context, rc *runContext, tools []transcript.ToolSpec) []transcript.ToolSpec {
	if tools != nil {
		return tools
	}
	listed, err := l.tools.ListTools(ctx)
	if err != nil {
		rc.logger.Warn().Err(err).Msg("Failed to list tools, continuing without tools")
		rc.warn("tools", fmt.Sprintf("failed to list tools: %v", err))
		return nil
	}
	return listed
}

func (l *Loop) beforeAgentStart(ctx context.Context, rc *runContext) {
	if len(l.hooks.BeforeAgentStart) == 0 {
		return
	}
	hc, replaced, outcomes := l.hooks.runBeforeAgentStart(ctx, rc.hookContext())
	l.reportHooks(rc, outcomes)

	promptChanged := hc.Prompt != rc.prompt
	rc.prompt = hc.Prompt
	rc.systemPrompt = hc.SystemPrompt
	switch {
	case replaced:
		rc.replaceMessages(hc.Messages)
	case promptChanged:
		rc.history[0].Content = rc.prompt
		rc.window[0].Content = rc.prompt
	}
}

func (l *Loop) startPlan(rc *runContext) {
	if l.planner == nil || !l.planner.ShouldPlan(rc.prompt, rc.systemPrompt) {
		return
	}
	plan, err := l.planner.CreatePlan(rc.prompt)
	if err != nil {
		rc.logger.Warn().Err(err).Msg("Failed to create plan")
		rc.warn("planner", fmt.Sprintf("failed to create plan: %v", err))
		return
	}
	rc.plan = plan
	rc.summary = planner.NewWorkingSummary(rc.prompt, plan)
	rc.logger.Debug().Int("steps", len(plan.Steps)).Msg("Plan created")
	rc.emit(eventstream.Event{Type: eventstream.EventPlanCreated, Plan: plan.Clone()})
}

// turns runs the model/tool cycle until the model answers without tool
// calls, the turn budget runs out, or the run fails.
func (l *Loop) turns(ctx context.Context, rc *runContext) (Status, error) {
	for turn := 1; turn <= l.config.MaxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return StatusTimeout, err
		}
		rc.turn = turn
		rc.emit(eventstream.Event{Type: eventstream.EventTurnStart})

		l.preflight(rc)

		resp, err := l.callModel(ctx, rc)
		if err != nil {
			if ctx.Err() != nil {
				return StatusTimeout, ctx.Err()
			}
			rc.logger.Error().Err(err).Int("turn", turn).Msg("Model call failed")
			rc.emit(eventstream.Event{Type: eventstream.EventError, Error: err.Error()})
			return StatusError, err
		}

		calls := l.extractor.Extract(resp)
		for i := range calls {
			if calls[i].ID == "" {
				calls[i].ID = newCallID()
			}
		}

		assistant := transcript.NewMessage(transcript.RoleAssistant, resp.Content)
		if len(calls) > 0 {
			assistant.ToolCalls = calls
			assistant.SetMetadata(transcript.MetadataHasToolCall, true)
		}
		rc.append(assistant)
		ended := assistant.Clone()
		rc.emit(eventstream.Event{Type: eventstream.EventMessageEnd, Message: &ended})

		if len(calls) > 0 && turn <= l.config.MaxToolCalls {
			for _, call := range calls {
				if err := ctx.Err(); err != nil {
					rc.emit(eventstream.Event{Type: eventstream.EventTurnEnd})
					return StatusTimeout, err
				}
				l.executeTool(ctx, rc, call)
			}
			rc.emit(eventstream.Event{Type: eventstream.EventTurnEnd})
			continue
		}

		if len(calls) > 0 {
			rc.logger.Warn().Int("turn", turn).Int("calls", len(calls)).Msg("Tool call limit reached, ending run")
			rc.warn("tools", fmt.Sprintf("tool call limit reached; %d call(s) not executed", len(calls)))
		}
		l.finishTurn(rc, resp.Content)
		rc.emit(eventstream.Event{Type: eventstream.EventTurnEnd})
		return StatusCompleted, nil
	}

	rc.logger.Warn().Int("max_turns", l.config.MaxTurns).Msg("Max turns reached")
	rc.warn("turns", fmt.Sprintf("max turns (%d) reached", l.config.MaxTurns))
	return StatusCompleted, nil
}

func newCallID() string {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Sprintf("call_%d", time.Now().UnixNano())
	}
	return "call_" + id
}

// finishTurn files the closing text of a turn into the summary and moves the
// plan forward.
func (l *Loop) finishTurn(rc *runContext, text string) {
	if rc.plan == nil {
		return
	}
	rc.summary.RecordDecision(text)
	if rc.plan.Advance(text) {
		rc.emit(eventstream.Event{Type: eventstream.EventPlanStep, Plan: rc.plan.Clone()})
	}
	rc.summary.SyncPlan(rc.plan)
	rc.emit(eventstream.Event{Type: eventstream.EventSummaryUpdate, Summary: rc.summary.Render()})
}

// preflight shrinks the model window before a call when it exceeds the
// budget: the working summary replaces older history when one exists,
// otherwise the configured strategy compresses it.
func (l *Loop) preflight(rc *runContext) {
	model := l.config.Model
	budget := l.window.Budget(rc.systemPrompt, model)
	est := l.window.Estimator(model)
	tokens := est.EstimateMessages(rc.window)
	if tokens <= budget {
		return
	}

	if rc.summary != nil && len(rc.window) > 2 {
		replaced := make([]transcript.Message, 0, 3)
		replaced = append(replaced, transcript.NewMessage(transcript.RoleSystem, rc.summary.Render()))
		replaced = append(replaced, transcript.CloneMessages(rc.window[len(rc.window)-2:])...)

		after := est.EstimateMessages(replaced)
		stats := &eventstream.CompressionStats{
			OriginalTokens:   tokens,
			CompressedTokens: after,
			Ratio:            float64(after) / float64(tokens),
			RemovedMessages:  len(rc.window) - 2,
		}
		rc.window = replaced
		observability.RecordCompaction("summary", "preflight")
		rc.logger.Debug().Int("original_tokens", tokens).Int("compressed_tokens", after).Msg("Context replaced with working summary")
		rc.emit(eventstream.Event{
			Type:        eventstream.EventContextReplace,
			Compression: stats,
			Summary:     rc.summary.Render(),
		})
		return
	}

	result := l.window.CompressToBudget(rc.window, budget, model)
	if !result.Compressed() {
		return
	}
	rc.window = result.Messages
	observability.RecordCompaction(string(result.StrategyUsed), "preflight")
	rc.emit(eventstream.Event{
		Type:        eventstream.EventCompaction,
		Strategy:    result.StrategyUsed,
		Compression: eventstream.StatsFrom(result),
		Text:        "preflight",
	})
}

// callModel acquires a response, compacting and retrying when the backend
// reports a context overflow. The retry budget spans the whole run.
//
// Every attempt opens with its own message_start, so deltas streamed by a
// failed attempt are discarded by subscribers that reset on it. Retries
// carry Text "retry".
func (l *Loop) callModel(ctx context.Context, rc *runContext) (*Response, error) {
	for attempt := 0; ; attempt++ {
		start := eventstream.Event{Type: eventstream.EventMessageStart}
		if attempt > 0 {
			start.Text = "retry"
		}
		rc.emit(start)

		req := Request{
			Model:        l.config.Model,
			Messages:     transcript.CloneMessages(rc.window),
			SystemPrompt: rc.systemPrompt,
			Tools:        rc.tools,
			Temperature:  l.config.Temperature,
			MaxTokens:    l.config.MaxTokens,
		}
		resp, err := l.acquire(ctx, rc, req)
		if err == nil {
			rc.addUsage(resp.Usage)
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsContextOverflow(err) || rc.compactionAttempts >= l.config.MaxCompactionRetries {
			return nil, err
		}

		rc.compactionAttempts++
		observability.RecordOverflowRetry()
		rc.logger.Warn().
			Err(err).
			Int("attempt", rc.compactionAttempts).
			Int("max_attempts", l.config.MaxCompactionRetries).
			Msg("Context overflow, compacting and retrying")
		l.forceCompaction(rc)
	}
}

// forceCompaction halves the window's estimated size. The newest message is
// always kept so the retried request is never empty.
func (l *Loop) forceCompaction(rc *runContext) {
	model := l.config.Model
	current := l.window.Estimator(model).EstimateMessages(rc.window)
	budget := current / 2
	if budget < 1 {
		budget = 1
	}

	result := l.window.CompressToBudget(rc.window, budget, model)
	if len(result.Messages) == 0 && len(rc.window) > 0 {
		result.Messages = rc.window[len(rc.window)-1:]
		result.RemovedMessages = len(rc.window) - 1
	}
	rc.window = result.Messages
	observability.RecordCompaction(string(result.StrategyUsed), "overflow")
	rc.emit(eventstream.Event{
		Type:        eventstream.EventCompaction,
		Strategy:    result.StrategyUsed,
		Compression: eventstream.StatsFrom(result),
		Text:        "overflow",
	})
}

// executeTool runs one call and appends its result to the transcript as a
// user message. Failures are recorded, never returned.
func (l *Loop) executeTool(ctx context.Context, rc *runContext, call transcript.ToolCall) {
	rc.emit(eventstream.Event{
		Type:       eventstream.EventToolExecutionStart,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Args:       call.Arguments,
	})

	hc := rc.hookContext()
	args, overridden, outcomes := l.hooks.runBeforeToolCall(ctx, hc, call)
	l.reportHooks(rc, outcomes)
	if args == nil {
		args = map[string]interface{}{}
	}
	if overridden {
		rc.emit(eventstream.Event{
			Type:       eventstream.EventToolUpdate,
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Args:       args,
			Text:       "arguments rewritten by hook",
		})
	}

	start := time.Now()
	execCtx := &toolexecutor.ExecutionContext{
		ToolCallID: call.ID,
		StartTime:  start,
		SessionID:  rc.sessionID,
		RunID:      rc.runID,
		WorkingDir: rc.workingDir,
		Timeout:    l.config.ToolTimeout,
		ToolPolicy: rc.toolPolicy,
	}
	toolCtx, span := tracing.StartSpan(tracing.WithTurn(ctx, rc.turn), tracing.TracerAgent, "agent.tool",
		attribute.String("tool", call.Name),
		attribute.String("tool_call_id", call.ID),
	)
	value, err := l.tools.Execute(toolCtx, call.Name, args, execCtx)
	tracing.EndSpan(span, err)
	duration := time.Since(start)

	exec := transcript.ToolExecution{
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Args:       args,
		DurationMs: duration.Milliseconds(),
	}
	var content string
	if err != nil {
		exec.Error = err.Error()
		content = fmt.Sprintf("Tool %s (call %s) failed: %s", call.Name, call.ID, exec.Error)
	} else {
		exec.Result = value
		exec.Success = true
		content = fmt.Sprintf("Tool %s (call %s) result:\n%s", call.Name, call.ID, renderValue(value))
	}

	msg := transcript.NewMessage(transcript.RoleUser, content)
	msg.SetMetadata("tool_call_id", call.ID)
	msg.SetMetadata("tool_name", call.Name)
	rc.append(msg)
	rc.executions = append(rc.executions, exec)

	if exec.Success && l.messaging[call.Name] {
		rc.messagingOutputs = append(rc.messagingOutputs, messagingText(args, value))
	}

	observability.RecordToolExecution(call.Name, duration, exec.Success)
	status := "success"
	if err != nil {
		status = "error"
		rc.logger.Warn().Err(err).Str("tool", call.Name).Str("tool_call_id", call.ID).Msg("Tool execution failed")
		rc.emit(eventstream.Event{
			Type:       eventstream.EventToolError,
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Args:       args,
			Error:      exec.Error,
			DurationMs: exec.DurationMs,
		})
	} else {
		rc.logger.Debug().Str("tool", call.Name).Dur("duration", duration).Msg("Tool executed")
		rc.emit(eventstream.Event{
			Type:       eventstream.EventToolResult,
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Args:       args,
			Result:     value,
			DurationMs: exec.DurationMs,
		})
	}
	observability.RecordToolAudit(ctx, call.Name, rc.sessionID, status, map[string]interface{}{
		"run_id":       rc.runID,
		"tool_call_id": call.ID,
		"duration_ms":  exec.DurationMs,
	})

	l.reportHooks(rc, l.hooks.runAfterToolCall(ctx, hc, exec))

	if rc.summary != nil {
		rc.summary.RecordToolExecution(exec)
		rc.emit(eventstream.Event{Type: eventstream.EventSummaryUpdate, Summary: rc.summary.Render()})
	}
}

// reportHooks turns failed hook invocations into warnings.
func (l *Loop) reportHooks(rc *runContext, outcomes []HookOutcome) {
	for _, o := range outcomes {
		if !o.Failed() {
			continue
		}
		observability.RecordHookFailure(o.Stage)
		rc.logger.Warn().Err(o.Err).Str("stage", o.Stage).Str("hook", o.Name).Msg("Hook failed")
		rc.warn(o.Stage, fmt.Sprintf("hook %s failed: %v", o.Name, o.Err))
	}
}

// renderValue formats a tool result or argument map as text.
func renderValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
