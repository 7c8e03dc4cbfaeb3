package agent

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/harun/agentcore/pkg/transcript"
)

// CallExtractor pulls tool calls out of a model response.
type CallExtractor interface {
	Extract(resp *Response) []transcript.ToolCall
}

// StructuredExtractor returns the calls the backend reported natively.
type StructuredExtractor struct{}

func (StructuredExtractor) Extract(resp *Response) []transcript.ToolCall {
	if resp == nil || len(resp.ToolCalls) == 0 {
		return nil
	}
	out := make([]transcript.ToolCall, len(resp.ToolCalls))
	for i, call := range resp.ToolCalls {
		out[i] = call.Clone()
		if out[i].Arguments == nil {
			out[i].Arguments = map[string]interface{}{}
		}
	}
	return out
}

// TextExtractor recovers calls written into the assistant text, either as
//
//	<tool_call>{"name": "list", "arguments": {...}}</tool_call>
//
// or as a fenced block whose info string names the tool:
//
//	```tool:list
//	{"path": "."}
//	```
//
// Arguments that do not parse as a JSON object are passed as {"raw": text}.
type TextExtractor struct{}

var (
	taggedCall = regexp.MustCompile(`(?s)<tool_call>\s*(.*?)\s*</tool_call>`)
	fencedCall = regexp.MustCompile("(?s)```tool[:\\s]+([A-Za-z0-9_.-]+)[ \\t]*\\n(.*?)```")
	nameField  = regexp.MustCompile(`"name"\s*:\s*"([^"]+)"`)
)

type positionedCall struct {
	pos  int
	call transcript.ToolCall
}

func (TextExtractor) Extract(resp *Response) []transcript.ToolCall {
	if resp == nil || resp.Content == "" {
		return nil
	}
	text := resp.Content

	var found []positionedCall
	for _, m := range taggedCall.FindAllStringSubmatchIndex(text, -1) {
		if call, ok := parseTaggedCall(text[m[2]:m[3]]); ok {
			found = append(found, positionedCall{pos: m[0], call: call})
		}
	}
	for _, m := range fencedCall.FindAllStringSubmatchIndex(text, -1) {
		found = append(found, positionedCall{
			pos: m[0],
			call: transcript.ToolCall{
				Name:      text[m[2]:m[3]],
				Arguments: decodeArguments(text[m[4]:m[5]]),
			},
		})
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })
	out := make([]transcript.ToolCall, len(found))
	for i, f := range found {
		out[i] = f.call
	}
	return out
}

func parseTaggedCall(body string) (transcript.ToolCall, bool) {
	var payload struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err == nil && payload.Name != "" {
		return transcript.ToolCall{Name: payload.Name, Arguments: taggedArguments(payload.Arguments)}, true
	}

	m := nameField.FindStringSubmatch(body)
	if m == nil {
		return transcript.ToolCall{}, false
	}
	return transcript.ToolCall{
		Name:      m[1],
		Arguments: map[string]interface{}{"raw": body},
	}, true
}

// taggedArguments accepts an object or a string holding an encoded object.
func taggedArguments(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]interface{}{}
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		return decodeArguments(encoded)
	}
	return decodeArguments(string(raw))
}

// ChainExtractor returns the first non-empty result of its extractors.
type ChainExtractor []CallExtractor

func (c ChainExtractor) Extract(resp *Response) []transcript.ToolCall {
	for _, e := range c {
		if calls := e.Extract(resp); len(calls) > 0 {
			return calls
		}
	}
	return nil
}

// DefaultExtractor prefers structured calls and falls back to text parsing.
func DefaultExtractor() CallExtractor {
	return ChainExtractor{StructuredExtractor{}, TextExtractor{}}
}

// stripCallMarkup removes textual call blocks so they do not leak into the
// final response.
func stripCallMarkup(text string) string {
	text = taggedCall.ReplaceAllString(text, "")
	text = fencedCall.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
