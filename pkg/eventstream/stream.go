// Package eventstream carries the ordered lifecycle events of a single run.
//
// Delivery is synchronous and FIFO to at most one subscriber. A stream with
// no subscriber still records events; a subscriber that panics is detached
// and the run continues.
package eventstream

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler receives events in push order.
type Handler func(Event)

// Stream is owned by one run. Push is safe to call from multiple goroutines,
// but ordering is only defined for pushes made by the same goroutine.
type Stream struct {
	runID     string
	sessionID string

	mu      sync.Mutex
	events  []Event
	handler Handler
	ended   bool
	logger  zerolog.Logger
}

// New creates a stream that stamps events with runID and sessionID unless
// the event sets its own.
func New(runID, sessionID string, handler Handler, logger zerolog.Logger) *Stream {
	return &Stream{
		runID:     runID,
		sessionID: sessionID,
		handler:   handler,
		logger:    logger.With().Str("component", "eventstream").Logger(),
	}
}

// Subscribe replaces the current subscriber.
func (s *Stream) Subscribe(handler Handler) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
}

// Push records the event and forwards it to the subscriber. Pushes after End
// are dropped.
func (s *Stream) Push(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RunID == "" {
		event.RunID = s.runID
	}
	if event.SessionID == "" {
		event.SessionID = s.sessionID
	}

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.events = append(s.events, event)
	handler := s.handler
	s.mu.Unlock()

	if handler != nil {
		s.deliver(handler, event)
	}
}

func (s *Stream) deliver(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Interface("panic", r).
				Str("event_type", string(event.Type)).
				Msg("Event subscriber panicked, detaching")
			s.mu.Lock()
			s.handler = nil
			s.mu.Unlock()
		}
	}()
	handler(event)
}

// End marks the stream complete. It is idempotent.
func (s *Stream) End() {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
}

// Ended reports whether End was called.
func (s *Stream) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Events returns a snapshot of every event pushed so far.
func (s *Stream) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// ChannelHandler returns a handler that forwards events to ch without
// blocking. Events are dropped while ch is full.
func ChannelHandler(ch chan<- Event) Handler {
	return func(e Event) {
		select {
		case ch <- e:
		default:
		}
	}
}
