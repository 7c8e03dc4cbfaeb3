package eventstream

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamPush(t *testing.T) {
	var received []EventType
	s := New("run_1", "sess_1", func(e Event) {
		received = append(received, e.Type)
	}, zerolog.Nop())

	s.Push(Event{Type: EventAgentStart})
	s.Push(Event{Type: EventTurnStart, Turn: 1})
	s.Push(Event{Type: EventAgentEnd, RunID: "other"})

	assert.Equal(t, []EventType{EventAgentStart, EventTurnStart, EventAgentEnd}, received)

	events := s.Events()
	require.Len(t, events, 3)
	assert.Equal(t, "run_1", events[0].RunID)
	assert.Equal(t, "sess_1", events[0].SessionID)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Equal(t, "other", events[2].RunID)
}

func TestStreamKeepsExplicitTimestamp(t *testing.T) {
	s := New("r", "s", nil, zerolog.Nop())
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Push(Event{Type: EventWarning, Timestamp: ts})

	assert.Equal(t, ts, s.Events()[0].Timestamp)
}

func TestStreamWithoutSubscriber(t *testing.T) {
	s := New("r", "s", nil, zerolog.Nop())
	s.Push(Event{Type: EventAgentStart})

	assert.Len(t, s.Events(), 1)
}

func TestStreamEnd(t *testing.T) {
	calls := 0
	s := New("r", "s", func(Event) { calls++ }, zerolog.Nop())

	s.Push(Event{Type: EventAgentStart})
	s.End()
	s.End()
	s.Push(Event{Type: EventAgentEnd})

	assert.True(t, s.Ended())
	assert.Equal(t, 1, calls)
	assert.Len(t, s.Events(), 1)
}

func TestStreamPanickingSubscriberIsDetached(t *testing.T) {
	calls := 0
	s := New("r", "s", func(Event) {
		calls++
		panic("boom")
	}, zerolog.Nop())

	assert.NotPanics(t, func() {
		s.Push(Event{Type: EventAgentStart})
		s.Push(Event{Type: EventTurnStart})
	})
	assert.Equal(t, 1, calls)
	assert.Len(t, s.Events(), 2)
}

func TestChannelHandlerDropsWhenFull(t *testing.T) {
	ch := make(chan Event, 1)
	s := New("r", "s", ChannelHandler(ch), zerolog.Nop())

	s.Push(Event{Type: EventAgentStart})
	s.Push(Event{Type: EventAgentEnd})

	require.Len(t, ch, 1)
	assert.Equal(t, EventAgentStart, (<-ch).Type)
	assert.Len(t, s.Events(), 2)
}

func TestSubscribe(t *testing.T) {
	s := New("r", "s", nil, zerolog.Nop())
	s.Push(Event{Type: EventAgentStart})

	var got []EventType
	s.Subscribe(func(e Event) { got = append(got, e.Type) })
	s.Push(Event{Type: EventTurnStart})

	assert.Equal(t, []EventType{EventTurnStart}, got)
}
