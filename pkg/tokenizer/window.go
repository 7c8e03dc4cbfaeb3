package tokenizer

// contextWindows holds context sizes for common model ids. Unknown models
// fall back to DefaultContextWindow.
var contextWindows = map[string]int{
	"claude-opus-4-1":            200_000,
	"claude-sonnet-4-5-20250929": 200_000,
	"claude-3-5-sonnet-20241022": 200_000,
	"claude-3-5-haiku-20241022":  200_000,
	"gpt-4o":                     128_000,
	"gpt-4o-mini":                128_000,
	"gpt-4-turbo":                128_000,
	"gpt-4":                      8_192,
	"o1":                         200_000,
	"o3-mini":                    200_000,
	"deepseek-chat":              64_000,
	"gemini-1.5-pro":             2_097_152,
	"mistral-large-latest":       128_000,
}

// DefaultContextWindow is used for models missing from the table.
const DefaultContextWindow = 128_000

// ContextWindow returns the context window size in tokens for modelID.
func ContextWindow(modelID string) int {
	if w, ok := contextWindows[modelID]; ok {
		return w
	}
	return DefaultContextWindow
}

// KnownModel reports whether modelID has a context size entry.
func KnownModel(modelID string) bool {
	_, ok := contextWindows[modelID]
	return ok
}
