package runqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harun/agentcore/internal/observability"
	"github.com/harun/agentcore/internal/tracing"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrRunTimeout is returned to the caller when a run outlives its timeout.
	ErrRunTimeout = errors.New("run timed out")
	// ErrLaneCleared rejects runs still pending when their lane is cleared.
	ErrLaneCleared = errors.New("lane cleared")
	// ErrLaneReset rejects runs still pending when their lane is reset.
	ErrLaneReset = errors.New("lane reset")
	// ErrQueueClosed is returned for runs enqueued on, or pending in, a closed queue.
	ErrQueueClosed = errors.New("queue closed")
	// ErrDuplicateRun is returned when a run id is already pending or running.
	ErrDuplicateRun = errors.New("run already queued")
)

// Task is one run body. It must observe ctx at its suspension points.
type Task func(ctx context.Context) (interface{}, error)

// Status is the lifecycle state of a queue entry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusTimeout   Status = "timeout"
	StatusError     Status = "error"
)

// Queue event types.
const (
	EventEnqueued  = "enqueued"
	EventStarted   = "started"
	EventCompleted = "completed"
)

// TaskOptions adjusts a single enqueue.
type TaskOptions struct {
	// Timeout overrides Config.RunTimeout. Negative disables the timeout.
	Timeout time.Duration
	// WarnAfter overrides Config.WarnAfter.
	WarnAfter time.Duration
	OnWait    func(wait time.Duration, queuePos int)
}

// Config configures a Queue.
type Config struct {
	RunTimeout time.Duration
	WarnAfter  time.Duration
	// DedupTTL caches settled results by run id. Zero disables it.
	DedupTTL time.Duration
	Logger   zerolog.Logger
}

// DefaultConfig returns a ten minute run timeout and no dedup cache.
func DefaultConfig() Config {
	return Config{
		RunTimeout: 10 * time.Minute,
		WarnAfter:  30 * time.Second,
		Logger:     zerolog.Nop(),
	}
}

// Entry is a snapshot of one queued or running run.
type Entry struct {
	RunID      string    `json:"run_id"`
	SessionID  string    `json:"session_id"`
	Status     Status    `json:"status"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	StartedAt  time.Time `json:"started_at,omitempty"`
}

// Event is delivered synchronously to handlers registered with On.
type Event struct {
	Type      string
	SessionID string
	RunID     string
	Status    Status
	Duration  time.Duration
	QueueSize int
}

// EventHandler handles queue events.
type EventHandler func(event Event)

// LaneStats describes one session lane.
type LaneStats struct {
	Queued     int  `json:"queued"`
	Running    bool `json:"running"`
	Generation int  `json:"generation"`
}

type taskResult struct {
	value interface{}
	err   error
}

type record struct {
	entry     Entry
	task      Task
	ctx       context.Context
	timeout   time.Duration
	warnAfter time.Duration
	onWait    func(time.Duration, int)

	once   sync.Once
	result chan taskResult
	done   chan struct{}

	// runCtx and cancel are set by dispatchLocked under Queue.mu.
	runCtx context.Context
	cancel context.CancelFunc
}

func (r *record) deliver(res taskResult) {
	r.once.Do(func() {
		r.result <- res
		close(r.result)
		close(r.done)
	})
}

type lane struct {
	generation int
	queue      []*record
	current    *record
}

// Queue serializes runs per session id. Runs on one session execute one at a
// time in submission order; runs on different sessions are independent.
type Queue struct {
	config Config
	logger zerolog.Logger

	mu      sync.Mutex
	lanes   map[string]*lane
	entries map[string]*record
	closed  bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	dedup  *dedupCache

	eventMu       sync.RWMutex
	eventHandlers map[string][]EventHandler
}

// New creates a queue.
func New(config Config) *Queue {
	observability.EnsureRegistered()

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		config:        config,
		logger:        config.Logger.With().Str("component", "runqueue").Logger(),
		lanes:         make(map[string]*lane),
		entries:       make(map[string]*record),
		ctx:           ctx,
		cancel:        cancel,
		eventHandlers: make(map[string][]EventHandler),
	}
	if config.DedupTTL > 0 {
		q.dedup = newDedupCache(ctx, config.DedupTTL)
	}
	return q
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Sprintf("run_%d", time.Now().UnixNano())
	}
	return "run_" + id
}

// CreateRunID returns a fresh run identifier.
func (q *Queue) CreateRunID() string {
	return NewRunID()
}

// Enqueue submits task on sessionID's lane and blocks until it settles, the
// run times out, or the lane is cleared. On timeout the caller gets
// ErrRunTimeout at once while the task keeps its lane until it returns.
func (q *Queue) Enqueue(ctx context.Context, sessionID, runID string, task Task, options *TaskOptions) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if runID == "" {
		runID = NewRunID()
	}
	ctx = tracing.NewRunContext(ctx, runID, sessionID)
	ctx, span := tracing.StartSpan(
		ctx,
		tracing.TracerRunQueue,
		"runqueue.enqueue",
	)

	if q.dedup != nil {
		if cached, ok := q.dedup.Get(runID); ok {
			tracing.EndSpan(span, cached.err)
			return cached.value, cached.err
		}
	}

	opts := TaskOptions{}
	if options != nil {
		opts = *options
	}
	timeout := q.config.RunTimeout
	if opts.Timeout != 0 {
		timeout = opts.Timeout
	}
	warnAfter := q.config.WarnAfter
	if opts.WarnAfter != 0 {
		warnAfter = opts.WarnAfter
	}

	rec := &record{
		entry: Entry{
			RunID:      runID,
			SessionID:  sessionID,
			Status:     StatusPending,
			EnqueuedAt: time.Now(),
		},
		task:      task,
		ctx:       ctx,
		timeout:   timeout,
		warnAfter: warnAfter,
		onWait:    opts.OnWait,
		result:    make(chan taskResult, 1),
		done:      make(chan struct{}),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		tracing.EndSpan(span, ErrQueueClosed)
		return nil, ErrQueueClosed
	}
	if _, exists := q.entries[runID]; exists {
		q.mu.Unlock()
		err := fmt.Errorf("%w: %s", ErrDuplicateRun, runID)
		tracing.EndSpan(span, err)
		return nil, err
	}
	l := q.laneLocked(sessionID)
	l.queue = append(l.queue, rec)
	q.entries[runID] = rec
	queueSize := len(l.queue)
	started := q.dispatchLocked(sessionID, l)
	q.mu.Unlock()

	logger := tracing.LoggerFromContext(ctx, q.logger)
	logger.Debug().Int("queue_size", queueSize).Msg("Run enqueued")
	observability.RecordQueueEnqueue(sessionID, queueSize)
	q.emit(Event{Type: EventEnqueued, SessionID: sessionID, RunID: runID, Status: StatusPending, QueueSize: queueSize})
	q.start(started)

	if warnAfter > 0 {
		go q.warnIfWaiting(rec, sessionID)
	}

	select {
	case res := <-rec.result:
		tracing.EndSpan(span, res.err)
		return res.value, res.err
	case <-ctx.Done():
	}

	// A run that already started sees the same cancellation and settles on
	// its own; only a pending run is withdrawn here.
	if q.withdraw(sessionID, rec) {
		err := ctx.Err()
		rec.deliver(taskResult{err: err})
		logger.Debug().Err(err).Msg("Pending run withdrawn by caller")
		tracing.EndSpan(span, err)
		return nil, err
	}
	res := <-rec.result
	tracing.EndSpan(span, res.err)
	return res.value, res.err
}

// withdraw removes rec from its lane if it is still pending.
func (q *Queue) withdraw(sessionID string, rec *record) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	l, ok := q.lanes[sessionID]
	if !ok {
		return false
	}
	for i, pending := range l.queue {
		if pending != rec {
			continue
		}
		l.queue = append(l.queue[:i:i], l.queue[i+1:]...)
		delete(q.entries, rec.entry.RunID)
		if l.current == nil && len(l.queue) == 0 {
			delete(q.lanes, sessionID)
		}
		observability.SetQueueSize(sessionID, len(l.queue))
		return true
	}
	return false
}

func (q *Queue) laneLocked(sessionID string) *lane {
	l, ok := q.lanes[sessionID]
	if !ok {
		l = &lane{}
		q.lanes[sessionID] = l
	}
	return l
}

// dispatchLocked pops the next runnable record off the lane and marks it
// running. Records whose caller already gave up are rejected on the way.
func (q *Queue) dispatchLocked(sessionID string, l *lane) *record {
	for l.current == nil && len(l.queue) > 0 {
		rec := l.queue[0]
		l.queue = l.queue[1:]

		if err := rec.ctx.Err(); err != nil {
			delete(q.entries, rec.entry.RunID)
			rec.deliver(taskResult{err: err})
			continue
		}

		rec.entry.Status = StatusRunning
		rec.entry.StartedAt = time.Now()
		rec.runCtx, rec.cancel = context.WithCancel(rec.ctx)
		l.current = rec
		q.wg.Add(1)
		return rec
	}
	if l.current == nil && len(l.queue) == 0 {
		delete(q.lanes, sessionID)
	}
	return nil
}

func (q *Queue) start(rec *record) {
	if rec != nil {
		go q.execute(rec)
	}
}

func (q *Queue) execute(rec *record) {
	defer q.wg.Done()

	sessionID := rec.entry.SessionID
	runID := rec.entry.RunID

	runCtx, span := tracing.StartSpan(
		rec.runCtx,
		tracing.TracerRunQueue,
		"runqueue.execute",
		attribute.String("run_id", runID),
	)
	logger := tracing.LoggerFromContext(runCtx, q.logger)

	cancel := rec.cancel
	stopCancel := context.AfterFunc(q.ctx, cancel)

	q.emit(Event{Type: EventStarted, SessionID: sessionID, RunID: runID, Status: StatusRunning})
	logger.Debug().Msg("Run started")

	var timer *time.Timer
	if rec.timeout > 0 {
		timer = time.AfterFunc(rec.timeout, func() {
			q.mu.Lock()
			rec.entry.Status = StatusTimeout
			q.mu.Unlock()
			logger.Warn().Dur("timeout", rec.timeout).Msg("Run timed out, cancelling")
			cancel()
			rec.deliver(taskResult{err: fmt.Errorf("%w after %s", ErrRunTimeout, rec.timeout)})
		})
	}

	startTime := time.Now()
	value, err := q.runTask(runCtx, rec.task)
	duration := time.Since(startTime)

	if timer != nil {
		timer.Stop()
	}
	stopCancel()
	cancel()

	q.mu.Lock()
	status := rec.entry.Status
	if status != StatusTimeout {
		status = StatusCompleted
		if err != nil {
			status = StatusError
		}
		rec.entry.Status = status
	}
	delete(q.entries, runID)
	l := q.laneLocked(sessionID)
	l.current = nil
	queueSize := len(l.queue)
	next := q.dispatchLocked(sessionID, l)
	q.mu.Unlock()

	res := taskResult{value: value, err: err}
	if q.dedup != nil && status != StatusTimeout {
		q.dedup.Set(runID, res)
	}
	rec.deliver(res)

	if err != nil {
		logger.Error().Err(err).Dur("duration", duration).Str("status", string(status)).Msg("Run failed")
	} else {
		logger.Debug().Dur("duration", duration).Str("status", string(status)).Msg("Run completed")
	}
	tracing.EndSpan(span, err)
	observability.RecordQueueCompletion(sessionID, duration, string(status), queueSize)
	q.emit(Event{Type: EventCompleted, SessionID: sessionID, RunID: runID, Status: status, Duration: duration, QueueSize: queueSize})

	q.start(next)
}

func (q *Queue) runTask(ctx context.Context, task Task) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run panicked: %v", r)
		}
	}()
	return task(ctx)
}

func (q *Queue) warnIfWaiting(rec *record, sessionID string) {
	timer := time.NewTimer(rec.warnAfter)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-rec.done:
		return
	case <-q.ctx.Done():
		return
	}

	q.mu.Lock()
	queuePos := -1
	if l, ok := q.lanes[sessionID]; ok {
		for i, r := range l.queue {
			if r == rec {
				queuePos = i
				break
			}
		}
	}
	q.mu.Unlock()

	if queuePos < 0 {
		return
	}
	wait := time.Since(rec.entry.EnqueuedAt)
	q.logger.Warn().
		Str("session_id", sessionID).
		Str("run_id", rec.entry.RunID).
		Dur("wait", wait).
		Int("queue_pos", queuePos).
		Msg("Run waiting longer than expected")
	if rec.onWait != nil {
		rec.onWait(wait, queuePos)
	}
}

// Status returns the entry for a pending or running run.
func (q *Queue) Status(runID string) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec, ok := q.entries[runID]
	if !ok {
		return Entry{}, false
	}
	return rec.entry, true
}

// Pending returns the number of runs waiting behind the active one.
func (q *Queue) Pending(sessionID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if l, ok := q.lanes[sessionID]; ok {
		return len(l.queue)
	}
	return 0
}

// IsRunning reports whether sessionID has an active run.
func (q *Queue) IsRunning(sessionID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	l, ok := q.lanes[sessionID]
	return ok && l.current != nil
}

// Stats returns per-lane statistics for lanes with pending or running work.
func (q *Queue) Stats() map[string]LaneStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	stats := make(map[string]LaneStats, len(q.lanes))
	for sessionID, l := range q.lanes {
		stats[sessionID] = LaneStats{
			Queued:     len(l.queue),
			Running:    l.current != nil,
			Generation: l.generation,
		}
	}
	return stats
}

// ClearLane rejects every pending run on the lane with ErrLaneCleared and
// returns how many were dropped. The active run is left alone.
func (q *Queue) ClearLane(sessionID string) int {
	return q.rejectPending(sessionID, ErrLaneCleared, false)
}

// ResetLane bumps the lane generation, rejects pending runs with
// ErrLaneReset, and cancels the active run.
func (q *Queue) ResetLane(sessionID string) {
	q.rejectPending(sessionID, ErrLaneReset, true)
}

func (q *Queue) rejectPending(sessionID string, reason error, reset bool) int {
	q.mu.Lock()
	l, ok := q.lanes[sessionID]
	if !ok {
		q.mu.Unlock()
		return 0
	}
	dropped := l.queue
	l.queue = nil
	for _, rec := range dropped {
		delete(q.entries, rec.entry.RunID)
	}
	var cancel context.CancelFunc
	if reset {
		l.generation++
		if l.current != nil {
			cancel = l.current.cancel
		}
	}
	if l.current == nil {
		delete(q.lanes, sessionID)
	}
	q.mu.Unlock()

	for _, rec := range dropped {
		rec.deliver(taskResult{err: reason})
	}
	if cancel != nil {
		cancel()
	}

	q.logger.Info().
		Str("session_id", sessionID).
		Int("dropped", len(dropped)).
		Str("reason", reason.Error()).
		Msg("Lane pending runs rejected")
	observability.SetQueueSize(sessionID, 0)
	return len(dropped)
}

// On registers a handler for an event type.
func (q *Queue) On(eventType string, handler EventHandler) {
	q.eventMu.Lock()
	defer q.eventMu.Unlock()
	q.eventHandlers[eventType] = append(q.eventHandlers[eventType], handler)
}

func (q *Queue) emit(event Event) {
	q.eventMu.RLock()
	handlers := q.eventHandlers[event.Type]
	q.eventMu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// Close rejects pending runs, cancels active ones and waits for them to
// return.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	var dropped []*record
	for _, l := range q.lanes {
		dropped = append(dropped, l.queue...)
		l.queue = nil
	}
	for _, rec := range dropped {
		delete(q.entries, rec.entry.RunID)
	}
	q.mu.Unlock()

	for _, rec := range dropped {
		rec.deliver(taskResult{err: ErrQueueClosed})
	}

	q.cancel()
	q.wg.Wait()
	if q.dedup != nil {
		q.dedup.Stop()
	}
	return nil
}
