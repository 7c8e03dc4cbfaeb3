package planner

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/harun/agentcore/pkg/transcript"
)

const (
	maxSummaryItems = 10
	maxItemChars    = 200
)

// WorkingSummary is a condensed narrative of a run, substituted for older
// history when the transcript no longer fits.
type WorkingSummary struct {
	Goal          string   `json:"goal"`
	Changes       []string `json:"changes"`
	Decisions     []string `json:"decisions"`
	OpenQuestions []string `json:"open_questions"`
	NextStep      string   `json:"next_step,omitempty"`
}

// NewWorkingSummary starts a summary for goal, taking the next step from plan
// when one is given.
func NewWorkingSummary(goal string, plan *Plan) *WorkingSummary {
	s := &WorkingSummary{Goal: firstLine(goal)}
	s.SyncPlan(plan)
	return s
}

// RecordToolExecution files a successful execution under changes and a
// failed one under open questions.
func (s *WorkingSummary) RecordToolExecution(exec transcript.ToolExecution) {
	if exec.Success {
		s.Changes = appendBounded(s.Changes, fmt.Sprintf("%s: %s", exec.ToolName, clip(fmt.Sprint(exec.Result))))
		return
	}
	s.OpenQuestions = appendBounded(s.OpenQuestions, fmt.Sprintf("%s failed: %s", exec.ToolName, clip(exec.Error)))
}

// RecordDecision files assistant text produced at the end of a turn.
func (s *WorkingSummary) RecordDecision(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.Decisions = appendBounded(s.Decisions, clip(text))
}

// SyncPlan copies the plan's current step into NextStep.
func (s *WorkingSummary) SyncPlan(plan *Plan) {
	if step := plan.Current(); step != nil {
		s.NextStep = step.Description
		return
	}
	if plan != nil {
		s.NextStep = ""
	}
}

// Empty reports whether nothing has been recorded beyond the goal.
func (s *WorkingSummary) Empty() bool {
	return len(s.Changes) == 0 && len(s.Decisions) == 0 && len(s.OpenQuestions) == 0
}

// Render produces the narrative used in place of older history.
func (s *WorkingSummary) Render() string {
	var b strings.Builder
	b.WriteString("Working summary of this run so far.\n")
	if s.Goal != "" {
		fmt.Fprintf(&b, "Goal: %s\n", s.Goal)
	}
	writeList(&b, "Changes", s.Changes)
	writeList(&b, "Decisions", s.Decisions)
	writeList(&b, "Open questions", s.OpenQuestions)
	if s.NextStep != "" {
		fmt.Fprintf(&b, "Next step: %s\n", s.NextStep)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Clone returns an independent copy.
func (s *WorkingSummary) Clone() *WorkingSummary {
	if s == nil {
		return nil
	}
	return &WorkingSummary{
		Goal:          s.Goal,
		Changes:       append([]string(nil), s.Changes...),
		Decisions:     append([]string(nil), s.Decisions...),
		OpenQuestions: append([]string(nil), s.OpenQuestions...),
		NextStep:      s.NextStep,
	}
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func appendBounded(list []string, item string) []string {
	list = append(list, item)
	if len(list) > maxSummaryItems {
		list = list[len(list)-maxSummaryItems:]
	}
	return list
}

func clip(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxItemChars {
		return string([]rune(s)[:maxItemChars]) + "..."
	}
	return s
}
