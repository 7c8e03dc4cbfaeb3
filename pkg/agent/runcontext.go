package agent

import (
	"time"

	"github.com/harun/agentcore/pkg/eventstream"
	"github.com/harun/agentcore/pkg/planner"
	"github.com/harun/agentcore/pkg/toolexecutor"
	"github.com/harun/agentcore/pkg/transcript"
	"github.com/rs/zerolog"
)

// runContext is the mutable state of one run. It is owned by the goroutine
// executing Loop.Run and never shared.
type runContext struct {
	runID        string
	sessionID    string
	prompt       string
	systemPrompt string
	workingDir   string
	toolPolicy   *toolexecutor.ToolPolicy
	tools        []transcript.ToolSpec

	// history is every message of the run, returned in the result.
	history []transcript.Message
	// window is what the model sees; compaction replaces it, never history.
	window []transcript.Message

	plan    *planner.Plan
	summary *planner.WorkingSummary

	turn               int
	compactionAttempts int
	executions         []transcript.ToolExecution
	messagingOutputs   []string
	usage              TokenUsage

	stream    *eventstream.Stream
	logger    zerolog.Logger
	startedAt time.Time
}

func (rc *runContext) append(msg transcript.Message) {
	rc.history = append(rc.history, msg)
	rc.window = append(rc.window, msg.Clone())
}

// replaceMessages resets both lists to msgs.
func (rc *runContext) replaceMessages(msgs []transcript.Message) {
	rc.history = transcript.CloneMessages(msgs)
	rc.window = transcript.CloneMessages(msgs)
}

func (rc *runContext) emit(event eventstream.Event) {
	if event.Turn == 0 {
		event.Turn = rc.turn
	}
	rc.stream.Push(event)
}

func (rc *runContext) warn(stage, text string) {
	rc.emit(eventstream.Event{Type: eventstream.EventWarning, Stage: stage, Text: text})
}

func (rc *runContext) hookContext() HookContext {
	return HookContext{
		RunID:        rc.runID,
		SessionID:    rc.sessionID,
		Prompt:       rc.prompt,
		SystemPrompt: rc.systemPrompt,
		Turn:         rc.turn,
		Messages:     transcript.CloneMessages(rc.history),
	}
}

func (rc *runContext) addUsage(u *TokenUsage) {
	if u == nil {
		return
	}
	rc.usage.InputTokens += u.InputTokens
	rc.usage.OutputTokens += u.OutputTokens
}
