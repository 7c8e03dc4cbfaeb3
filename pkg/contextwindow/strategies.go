package contextwindow

import (
	"sort"
	"unicode/utf8"

	"github.com/harun/agentcore/pkg/tokenizer"
	"github.com/harun/agentcore/pkg/transcript"
)

// Selective scoring weights.
const (
	recencyWeight  = 40.0
	longBonus      = 20.0
	shortBonus     = 10.0
	userBonus      = 15.0
	systemBonus    = 30.0
	toolCallBonus  = 50.0
	firstLastBonus = 60.0
	longThreshold  = 500
	shortThreshold = 50
)

// truncate keeps the first message when configured and it fits, then walks
// backward from the newest message until one no longer fits.
func (m *Manager) truncate(messages []transcript.Message, budget int, est tokenizer.Estimator) []transcript.Message {
	if len(messages) == 0 {
		return nil
	}

	remaining := budget
	start := 0
	keepFirst := false
	if m.config.KeepFirstLast {
		if cost := est.EstimateMessage(messages[0]); cost <= remaining {
			keepFirst = true
			remaining -= cost
			start = 1
		}
	}

	var tail []int
	for i := len(messages) - 1; i >= start; i-- {
		cost := est.EstimateMessage(messages[i])
		if cost > remaining {
			break
		}
		remaining -= cost
		tail = append(tail, i)
	}

	idx := make([]int, 0, len(tail)+1)
	if keepFirst {
		idx = append(idx, 0)
	}
	for i := len(tail) - 1; i >= 0; i-- {
		idx = append(idx, tail[i])
	}

	if limit := m.config.MaxMessages; limit > 0 && len(idx) > limit {
		idx = idx[len(idx)-limit:]
	}

	return pick(messages, idx)
}

type scored struct {
	index int
	score float64
}

// score ranks a message for the selective strategy.
func (m *Manager) score(messages []transcript.Message, i int) float64 {
	n := len(messages)
	msg := messages[i]

	s := recencyWeight
	if n > 1 {
		s = recencyWeight * float64(i) / float64(n-1)
	}

	length := utf8.RuneCountInString(msg.Content)
	switch {
	case length > longThreshold:
		s += longBonus
	case length < shortThreshold:
		s += shortBonus
	}

	switch msg.Role {
	case transcript.RoleUser:
		s += userBonus
	case transcript.RoleSystem:
		s += systemBonus
	}

	if msg.HasToolCall() {
		s += toolCallBonus
	}

	if m.config.KeepFirstLast {
		if i == 0 {
			s += firstLastBonus
		}
		if i == n-1 {
			s += firstLastBonus
		}
	}

	return s
}

// selective admits the highest scoring messages that fit and restores
// chronological order.
func (m *Manager) selective(messages []transcript.Message, budget int, est tokenizer.Estimator) []transcript.Message {
	ranked := make([]scored, len(messages))
	for i := range messages {
		ranked[i] = scored{index: i, score: m.score(messages, i)}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	remaining := budget
	var idx []int
	for _, r := range ranked {
		cost := est.EstimateMessage(messages[r.index])
		if cost > remaining {
			continue
		}
		remaining -= cost
		idx = append(idx, r.index)
	}

	sort.Ints(idx)
	return pick(messages, idx)
}

// hybrid admits important messages first (first, last and tool-call
// messages), then fills the remaining budget from newest to oldest.
func (m *Manager) hybrid(messages []transcript.Message, budget int, est tokenizer.Estimator) []transcript.Message {
	n := len(messages)
	if n == 0 {
		return nil
	}

	important := make([]bool, n)
	if m.config.KeepFirstLast {
		important[0] = true
		important[n-1] = true
	}
	for i, msg := range messages {
		if msg.HasToolCall() {
			important[i] = true
		}
	}

	remaining := budget
	admitted := make([]bool, n)
	for i := 0; i < n; i++ {
		if !important[i] {
			continue
		}
		cost := est.EstimateMessage(messages[i])
		if cost > remaining {
			continue
		}
		remaining -= cost
		admitted[i] = true
	}

	for i := n - 1; i >= 0; i-- {
		if admitted[i] || important[i] {
			continue
		}
		cost := est.EstimateMessage(messages[i])
		if cost > remaining {
			continue
		}
		remaining -= cost
		admitted[i] = true
	}

	idx := make([]int, 0, n)
	for i, ok := range admitted {
		if ok {
			idx = append(idx, i)
		}
	}
	return pick(messages, idx)
}
