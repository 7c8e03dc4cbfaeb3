package contextwindow

import (
	"fmt"
	"strings"
	"testing"

	"github.com/harun/agentcore/pkg/tokenizer"
	"github.com/harun/agentcore/pkg/transcript"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Each 40 character message costs 10 content tokens plus role overhead.
const msgCost = 10 + tokenizer.RoleOverhead

func history(n int) []transcript.Message {
	msgs := make([]transcript.Message, n)
	for i := range msgs {
		role := transcript.RoleUser
		if i%2 == 1 {
			role = transcript.RoleAssistant
		}
		content := fmt.Sprintf("m%02d", i) + strings.Repeat(".", 37)
		msgs[i] = transcript.NewMessage(role, content)
	}
	return msgs
}

func prefixes(msgs []transcript.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content[:3]
	}
	return out
}

func newManager(strategy Strategy, window int) *Manager {
	return NewManager(Config{
		MaxContextTokens: window,
		Strategy:         strategy,
		KeepFirstLast:    true,
		Logger:           zerolog.Nop(),
	})
}

func TestCompressHistoryNoop(t *testing.T) {
	for _, strategy := range []Strategy{StrategyTruncate, StrategySelective, StrategyHybrid} {
		t.Run(string(strategy), func(t *testing.T) {
			m := newManager(strategy, 1000)
			msgs := history(5)

			result := m.CompressHistory(msgs, "be helpful", "")

			require.Len(t, result.Messages, len(msgs))
			assert.Same(t, &msgs[0], &result.Messages[0])
			assert.Equal(t, msgs, result.Messages)
			assert.Equal(t, 1.0, result.CompressionRatio)
			assert.Equal(t, StrategyNone, result.StrategyUsed)
			assert.Equal(t, 0, result.RemovedMessages)
			assert.False(t, result.Compressed())
			assert.Equal(t, result.OriginalTokenCount, result.CompressedTokenCount)
		})
	}
}

func TestBudget(t *testing.T) {
	m := NewManager(Config{MaxContextTokens: 1000, ReservedTokens: 200, Logger: zerolog.Nop()})
	assert.Equal(t, 700, m.Budget(strings.Repeat("s", 400), ""))

	lookup := NewManager(Config{ReservedTokens: 192, Logger: zerolog.Nop()})
	assert.Equal(t, 8000, lookup.Budget("", "gpt-4"))

	tiny := NewManager(Config{MaxContextTokens: 10, ReservedTokens: 20, Logger: zerolog.Nop()})
	assert.Equal(t, 0, tiny.Budget("", ""))
}

func TestTruncate(t *testing.T) {
	t.Run("keeps first and newest that fit", func(t *testing.T) {
		m := newManager(StrategyTruncate, 100)
		result := m.CompressHistory(history(10), "", "")

		assert.Equal(t, []string{"m00", "m04", "m05", "m06", "m07", "m08", "m09"}, prefixes(result.Messages))
		assert.Equal(t, StrategyTruncate, result.StrategyUsed)
		assert.Equal(t, 3, result.RemovedMessages)
		assert.Equal(t, 7*msgCost, result.CompressedTokenCount)
		assert.Equal(t, 10*msgCost, result.OriginalTokenCount)
		assert.InDelta(t, 0.7, result.CompressionRatio, 0.0001)
	})

	t.Run("max messages drops oldest survivors", func(t *testing.T) {
		m := NewManager(Config{MaxContextTokens: 100, Strategy: StrategyTruncate, KeepFirstLast: true, MaxMessages: 5, Logger: zerolog.Nop()})
		result := m.CompressHistory(history(10), "", "")

		assert.Equal(t, []string{"m05", "m06", "m07", "m08", "m09"}, prefixes(result.Messages))
	})

	t.Run("stops at first message that does not fit", func(t *testing.T) {
		msgs := history(10)
		msgs[8].Content = "m08" + strings.Repeat("x", 2000)

		m := newManager(StrategyTruncate, 100)
		result := m.CompressHistory(msgs, "", "")

		assert.Equal(t, []string{"m00", "m09"}, prefixes(result.Messages))
	})

	t.Run("without keep first", func(t *testing.T) {
		m := NewManager(Config{MaxContextTokens: 3 * msgCost, Strategy: StrategyTruncate, Logger: zerolog.Nop()})
		result := m.CompressHistory(history(6), "", "")

		assert.Equal(t, []string{"m03", "m04", "m05"}, prefixes(result.Messages))
	})
}

func TestSelective(t *testing.T) {
	msgs := history(6)
	msgs[2].SetMetadata(transcript.MetadataHasToolCall, true)

	m := newManager(StrategySelective, 3*msgCost)
	result := m.CompressHistory(msgs, "", "")

	// Scores: m05=110, m02=91, m00=85, m04=57, m03=34, m01=18.
	assert.Equal(t, []string{"m00", "m02", "m05"}, prefixes(result.Messages))
	assert.Equal(t, StrategySelective, result.StrategyUsed)
}

func TestSelectiveSkipsOversizedAndContinues(t *testing.T) {
	msgs := history(4)
	msgs[3].Content = "m03" + strings.Repeat("x", 2000)

	m := newManager(StrategySelective, 2*msgCost)
	result := m.CompressHistory(msgs, "", "")

	assert.Len(t, result.Messages, 2)
	assert.NotContains(t, prefixes(result.Messages), "m03")
	assert.Contains(t, prefixes(result.Messages), "m00")
}

func TestHybrid(t *testing.T) {
	t.Run("preserves important messages in order", func(t *testing.T) {
		msgs := history(10)
		msgs[3].ToolCalls = []transcript.ToolCall{{Name: "list"}}

		m := newManager(StrategyHybrid, 4*msgCost)
		result := m.CompressHistory(msgs, "", "")

		assert.Equal(t, []string{"m00", "m03", "m08", "m09"}, prefixes(result.Messages))
		assert.Equal(t, StrategyHybrid, result.StrategyUsed)
	})

	t.Run("important message that does not fit is skipped", func(t *testing.T) {
		msgs := history(6)
		msgs[0].Content = "m00" + strings.Repeat("x", 2000)

		m := newManager(StrategyHybrid, 3*msgCost)
		result := m.CompressHistory(msgs, "", "")

		assert.Equal(t, []string{"m03", "m04", "m05"}, prefixes(result.Messages))
	})

	t.Run("token counts are recomputed", func(t *testing.T) {
		msgs := history(8)
		m := newManager(StrategyHybrid, 5*msgCost)
		result := m.CompressHistory(msgs, "", "")

		est := tokenizer.ForModel("")
		assert.Equal(t, est.EstimateMessages(result.Messages), result.CompressedTokenCount)
		assert.LessOrEqual(t, result.CompressedTokenCount, 5*msgCost)
	})
}

func TestCompressToBudget(t *testing.T) {
	m := newManager(StrategyHybrid, 1_000_000)
	msgs := history(6)

	result := m.CompressToBudget(msgs, 2*msgCost, "")

	assert.Equal(t, []string{"m00", "m05"}, prefixes(result.Messages))

	empty := m.CompressToBudget(msgs, 0, "")
	assert.Empty(t, empty.Messages)
	assert.Equal(t, 6, empty.RemovedMessages)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("selective")
	require.NoError(t, err)
	assert.Equal(t, StrategySelective, s)

	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyHybrid, s)

	_, err = ParseStrategy("magic")
	assert.Error(t, err)

	assert.Equal(t, StrategyHybrid, NewManager(Config{Strategy: "magic"}).Config().Strategy)
}
