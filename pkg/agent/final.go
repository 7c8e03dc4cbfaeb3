package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/harun/agentcore/pkg/transcript"
)

func (l *Loop) buildResult(rc *runContext, status Status, err error) *AgentResult {
	result := &AgentResult{
		Response:       l.finalResponse(rc),
		Messages:       transcript.CloneMessages(rc.history),
		ToolExecutions: append([]transcript.ToolExecution(nil), rc.executions...),
		Turns:          rc.turn,
		Exchanges:      transcript.CountTurns(rc.history),
		Duration:       time.Since(rc.startedAt),
		RunID:          rc.runID,
		SessionID:      rc.sessionID,
		Status:         status,
	}
	if err != nil {
		result.Error = err.Error()
	}
	if rc.usage != (TokenUsage{}) {
		usage := rc.usage
		result.Usage = &usage
	}
	return result
}

// finalResponse derives the user-facing answer from the last assistant
// message.
func (l *Loop) finalResponse(rc *runContext) string {
	var text string
	if idx := transcript.LastByRole(rc.history, transcript.RoleAssistant); idx >= 0 {
		text = stripCallMarkup(rc.history[idx].Content)
	}
	text = strings.TrimSpace(strings.ReplaceAll(text, l.config.NoReplyToken, ""))

	if text == "" {
		return failureSummary(rc.executions)
	}

	normalized := normalizeText(text)
	for _, sent := range rc.messagingOutputs {
		if normalizeText(sent) == normalized {
			rc.logger.Debug().Msg("Final response already delivered by messaging tool, suppressing")
			return ""
		}
	}
	return text
}

// failureSummary describes the failed executions when every execution
// failed, and is empty otherwise.
func failureSummary(executions []transcript.ToolExecution) string {
	if len(executions) == 0 {
		return ""
	}
	for _, exec := range executions {
		if exec.Success {
			return ""
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "All %d tool call(s) failed:", len(executions))
	for _, exec := range executions {
		fmt.Fprintf(&b, "\n- %s: %s", exec.ToolName, exec.Error)
	}
	return b.String()
}

// messagingText is what a messaging tool delivered: the message argument
// when present, the tool result otherwise.
func messagingText(args map[string]interface{}, result interface{}) string {
	for _, key := range []string{"message", "text", "content"} {
		if s, ok := args[key].(string); ok && s != "" {
			return s
		}
	}
	return renderValue(result)
}

// normalizeText collapses whitespace and lowercases.
func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
