package tokenizer

import (
	"strings"
	"sync"
	"testing"

	"github.com/harun/agentcore/pkg/transcript"
	"github.com/stretchr/testify/assert"
)

func TestCharEstimator(t *testing.T) {
	e := NewCharEstimator()

	t.Run("empty text", func(t *testing.T) {
		assert.Equal(t, 0, e.Estimate(""))
	})

	t.Run("rounds up", func(t *testing.T) {
		assert.Equal(t, 1, e.Estimate("abc"))
		assert.Equal(t, 1, e.Estimate("abcd"))
		assert.Equal(t, 2, e.Estimate("abcde"))
	})

	t.Run("counts runes not bytes", func(t *testing.T) {
		assert.Equal(t, 1, e.Estimate("héll"))
		assert.Equal(t, 2, e.Estimate("日本語です。"))
	})

	t.Run("message adds role overhead", func(t *testing.T) {
		msg := transcript.NewMessage(transcript.RoleUser, strings.Repeat("a", 40))
		assert.Equal(t, 10+RoleOverhead, e.EstimateMessage(msg))
	})

	t.Run("message with token count is trusted", func(t *testing.T) {
		msg := transcript.NewMessage(transcript.RoleUser, strings.Repeat("a", 40))
		msg.TokenCount = 3
		assert.Equal(t, 3+RoleOverhead, e.EstimateMessage(msg))
	})

	t.Run("messages sum", func(t *testing.T) {
		msgs := []transcript.Message{
			transcript.NewMessage(transcript.RoleUser, "abcd"),
			transcript.NewMessage(transcript.RoleAssistant, "abcdefgh"),
		}
		assert.Equal(t, 1+2+2*RoleOverhead, e.EstimateMessages(msgs))
	})

	t.Run("zero value uses default ratio", func(t *testing.T) {
		var zero CharEstimator
		assert.Equal(t, 2, zero.Estimate("abcdefgh"))
	})
}

func TestForModel(t *testing.T) {
	assert.Equal(t, 3.5, ForModel("claude-sonnet-4-5").CharsPerToken)
	assert.Equal(t, 3.5, ForModel("Claude-3-Opus").CharsPerToken)
	assert.Equal(t, 4.0, ForModel("gpt-4o").CharsPerToken)
	assert.Equal(t, 3.0, ForModel("deepseek-chat").CharsPerToken)
	assert.Equal(t, 3.8, ForModel("llama-3.1-70b").CharsPerToken)
	assert.Equal(t, DefaultCharsPerToken, ForModel("unknown-model").CharsPerToken)
	assert.Equal(t, DefaultCharsPerToken, ForModel("").CharsPerToken)

	assert.Equal(t, "claude", Family("claude-3-haiku"))
	assert.Equal(t, "default", Family("my-local-model"))
}

func TestConcurrentUse(t *testing.T) {
	e := ForModel("claude")
	text := strings.Repeat("x", 350)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, 100, e.Estimate(text))
		}()
	}
	wg.Wait()
}

func TestContextWindow(t *testing.T) {
	assert.Equal(t, 8_192, ContextWindow("gpt-4"))
	assert.Equal(t, DefaultContextWindow, ContextWindow("not-a-model"))
}

func TestKnownModel(t *testing.T) {
	assert.True(t, KnownModel("gpt-4o"))
	assert.False(t, KnownModel("not-a-model"))
}
