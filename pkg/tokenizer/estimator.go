// Package tokenizer provides approximate token counting for transcripts.
//
// Estimates are character based. They are intentionally cheap and are used
// only for budgeting decisions; the model backend remains the authority on
// real token usage.
package tokenizer

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/harun/agentcore/pkg/transcript"
)

const (
	// RoleOverhead is added per message for role and framing tokens.
	RoleOverhead = 4

	// DefaultCharsPerToken applies to model ids that match no known family.
	DefaultCharsPerToken = 4.0
)

// Estimator maps text and messages to approximate token counts.
type Estimator interface {
	Estimate(text string) int
	EstimateMessage(msg transcript.Message) int
	EstimateMessages(messages []transcript.Message) int
}

// CharEstimator divides rune counts by a fixed characters-per-token ratio.
// The zero value uses DefaultCharsPerToken.
type CharEstimator struct {
	CharsPerToken float64
}

// NewCharEstimator returns an estimator with the default ratio.
func NewCharEstimator() *CharEstimator {
	return &CharEstimator{CharsPerToken: DefaultCharsPerToken}
}

func (e *CharEstimator) ratio() float64 {
	if e == nil || e.CharsPerToken <= 0 {
		return DefaultCharsPerToken
	}
	return e.CharsPerToken
}

// Estimate returns the approximate token count of text.
func (e *CharEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	runes := utf8.RuneCountInString(text)
	return int(math.Ceil(float64(runes) / e.ratio()))
}

// EstimateMessage returns content tokens plus RoleOverhead. A message that
// already carries a token count is trusted.
func (e *CharEstimator) EstimateMessage(msg transcript.Message) int {
	if msg.TokenCount > 0 {
		return msg.TokenCount + RoleOverhead
	}
	return e.Estimate(msg.Content) + RoleOverhead
}

// EstimateMessages sums EstimateMessage over the list.
func (e *CharEstimator) EstimateMessages(messages []transcript.Message) int {
	total := 0
	for _, msg := range messages {
		total += e.EstimateMessage(msg)
	}
	return total
}

// family binds model id substrings to a characters-per-token ratio.
type family struct {
	name     string
	patterns []string
	ratio    float64
}

// Checked in order; first match wins.
var families = []family{
	{name: "claude", patterns: []string{"claude"}, ratio: 3.5},
	{name: "openai", patterns: []string{"gpt", "o1", "o3", "o4"}, ratio: 4.0},
	{name: "gemini", patterns: []string{"gemini"}, ratio: 4.0},
	{name: "llama", patterns: []string{"llama", "mistral", "mixtral"}, ratio: 3.8},
	{name: "dense", patterns: []string{"deepseek", "qwen", "glm", "yi-"}, ratio: 3.0},
}

// Family returns the family name matched by modelID, or "default".
func Family(modelID string) string {
	f, ok := lookup(modelID)
	if !ok {
		return "default"
	}
	return f.name
}

func lookup(modelID string) (family, bool) {
	id := strings.ToLower(modelID)
	if id == "" {
		return family{}, false
	}
	for _, f := range families {
		for _, p := range f.patterns {
			if strings.Contains(id, p) {
				return f, true
			}
		}
	}
	return family{}, false
}

// ForModel returns an estimator specialized for modelID's family.
func ForModel(modelID string) *CharEstimator {
	if f, ok := lookup(modelID); ok {
		return &CharEstimator{CharsPerToken: f.ratio}
	}
	return NewCharEstimator()
}
