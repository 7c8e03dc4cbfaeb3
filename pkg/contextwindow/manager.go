package contextwindow

import (
	"fmt"

	"github.com/harun/agentcore/pkg/tokenizer"
	"github.com/harun/agentcore/pkg/transcript"
	"github.com/rs/zerolog"
)

// Strategy selects how an over-budget history is reduced.
type Strategy string

const (
	StrategyNone      Strategy = "none"
	StrategyTruncate  Strategy = "truncate"
	StrategySelective Strategy = "selective"
	StrategyHybrid    Strategy = "hybrid"
)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyTruncate, StrategySelective, StrategyHybrid:
		return Strategy(s), nil
	case "":
		return StrategyHybrid, nil
	default:
		return "", fmt.Errorf("unknown context strategy %q", s)
	}
}

// Config configures a Manager.
type Config struct {
	// MaxContextTokens is the model window. Zero looks it up by model id.
	MaxContextTokens int
	// ReservedTokens are held back for the model's reply.
	ReservedTokens int
	Strategy       Strategy
	KeepFirstLast  bool
	// MaxMessages caps the truncate strategy's output. Zero disables the cap.
	MaxMessages int
	Logger      zerolog.Logger
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		MaxContextTokens: 0,
		ReservedTokens:   4096,
		Strategy:         StrategyHybrid,
		KeepFirstLast:    true,
		MaxMessages:      100,
		Logger:           zerolog.Nop(),
	}
}

// Result describes the outcome of a compression pass.
type Result struct {
	Messages             []transcript.Message
	OriginalTokenCount   int
	CompressedTokenCount int
	CompressionRatio     float64
	RemovedMessages      int
	StrategyUsed         Strategy
}

// Compressed reports whether the pass removed anything.
func (r Result) Compressed() bool {
	return r.StrategyUsed != StrategyNone
}

// Manager decides which messages survive into the next model call. It holds
// no per-run state and is safe for concurrent use.
type Manager struct {
	config    Config
	estimator func(modelID string) tokenizer.Estimator
	logger    zerolog.Logger
}

// NewManager creates a manager. Unknown strategies fall back to hybrid.
func NewManager(config Config) *Manager {
	if _, err := ParseStrategy(string(config.Strategy)); err != nil || config.Strategy == "" {
		config.Strategy = StrategyHybrid
	}
	if config.ReservedTokens < 0 {
		config.ReservedTokens = 0
	}

	return &Manager{
		config: config,
		estimator: func(modelID string) tokenizer.Estimator {
			return tokenizer.ForModel(modelID)
		},
		logger: config.Logger.With().Str("component", "contextwindow").Logger(),
	}
}

// Config returns the manager's effective configuration.
func (m *Manager) Config() Config {
	return m.config
}

// Estimator returns the estimator used for modelID.
func (m *Manager) Estimator(modelID string) tokenizer.Estimator {
	return m.estimator(modelID)
}

// Budget returns the tokens available to the transcript for modelID once the
// reply reservation and the system prompt are accounted for.
func (m *Manager) Budget(systemPrompt, modelID string) int {
	window := m.config.MaxContextTokens
	if window <= 0 {
		window = tokenizer.ContextWindow(modelID)
	}
	budget := window - m.config.ReservedTokens - m.estimator(modelID).Estimate(systemPrompt)
	if budget < 0 {
		return 0
	}
	return budget
}

// CompressHistory reduces messages to fit the budget for modelID. When the
// history already fits, the input slice is returned untouched with strategy
// "none" and ratio 1.0.
func (m *Manager) CompressHistory(messages []transcript.Message, systemPrompt, modelID string) Result {
	return m.CompressToBudget(messages, m.Budget(systemPrompt, modelID), modelID)
}

// CompressToBudget is CompressHistory with an explicit budget.
func (m *Manager) CompressToBudget(messages []transcript.Message, budget int, modelID string) Result {
	est := m.estimator(modelID)
	original := est.EstimateMessages(messages)

	if original <= budget {
		return Result{
			Messages:             messages,
			OriginalTokenCount:   original,
			CompressedTokenCount: original,
			CompressionRatio:     1.0,
			StrategyUsed:         StrategyNone,
		}
	}

	var kept []transcript.Message
	switch m.config.Strategy {
	case StrategyTruncate:
		kept = m.truncate(messages, budget, est)
	case StrategySelective:
		kept = m.selective(messages, budget, est)
	default:
		kept = m.hybrid(messages, budget, est)
	}

	compressed := est.EstimateMessages(kept)
	ratio := 1.0
	if original > 0 {
		ratio = float64(compressed) / float64(original)
	}

	result := Result{
		Messages:             kept,
		OriginalTokenCount:   original,
		CompressedTokenCount: compressed,
		CompressionRatio:     ratio,
		RemovedMessages:      len(messages) - len(kept),
		StrategyUsed:         m.config.Strategy,
	}

	m.logger.Debug().
		Str("strategy", string(result.StrategyUsed)).
		Int("budget", budget).
		Int("original_tokens", original).
		Int("compressed_tokens", compressed).
		Int("removed", result.RemovedMessages).
		Msg("History compressed")

	return result
}

// pick returns the messages at idx in ascending index order.
func pick(messages []transcript.Message, idx []int) []transcript.Message {
	out := make([]transcript.Message, 0, len(idx))
	for _, i := range idx {
		out = append(out, messages[i])
	}
	return out
}
