package eventstream

import (
	"time"

	"github.com/harun/agentcore/pkg/contextwindow"
	"github.com/harun/agentcore/pkg/planner"
	"github.com/harun/agentcore/pkg/transcript"
)

// EventType identifies a run lifecycle event.
type EventType string

const (
	EventAgentStart EventType = "agent_start"
	EventAgentEnd   EventType = "agent_end"

	EventTurnStart EventType = "turn_start"
	EventTurnEnd   EventType = "turn_end"

	EventMessageStart  EventType = "message_start"
	EventMessageUpdate EventType = "message_update"
	EventMessageEnd    EventType = "message_end"

	EventToolExecutionStart EventType = "tool_execution_start"
	EventToolUpdate         EventType = "tool_update"
	EventToolResult         EventType = "tool_result"
	EventToolError          EventType = "tool_error"

	EventPlanCreated   EventType = "plan_created"
	EventPlanStep      EventType = "plan_step"
	EventSummaryUpdate EventType = "summary_update"

	EventCompaction     EventType = "compaction"
	EventContextReplace EventType = "context_replace"

	EventWarning EventType = "warning"
	EventError   EventType = "error"
)

// Event is a tagged union; Type decides which optional fields are set.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Turn      int       `json:"turn,omitempty"`

	// message_*
	Message *transcript.Message `json:"message,omitempty"`
	Delta   string              `json:"delta,omitempty"`

	// tool_*
	ToolCallID string                 `json:"tool_call_id,omitempty"`
	ToolName   string                 `json:"tool_name,omitempty"`
	Args       map[string]interface{} `json:"args,omitempty"`
	Result     interface{}            `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
	DurationMs int64                  `json:"duration_ms,omitempty"`

	// compaction, context_replace
	Strategy    contextwindow.Strategy `json:"strategy,omitempty"`
	Compression *CompressionStats      `json:"compression,omitempty"`

	// plan_*, summary_update
	Plan    *planner.Plan `json:"plan,omitempty"`
	Summary string        `json:"summary,omitempty"`

	// warning: the hook stage or component that failed
	Stage string `json:"stage,omitempty"`

	// agent_end
	Status string `json:"status,omitempty"`

	Text string `json:"text,omitempty"`
}

// CompressionStats is the message-free part of a compression result.
type CompressionStats struct {
	OriginalTokens   int     `json:"original_tokens"`
	CompressedTokens int     `json:"compressed_tokens"`
	Ratio            float64 `json:"ratio"`
	RemovedMessages  int     `json:"removed_messages"`
}

// StatsFrom summarizes a compression result for an event payload.
func StatsFrom(r contextwindow.Result) *CompressionStats {
	return &CompressionStats{
		OriginalTokens:   r.OriginalTokenCount,
		CompressedTokens: r.CompressedTokenCount,
		Ratio:            r.CompressionRatio,
		RemovedMessages:  r.RemovedMessages,
	}
}
