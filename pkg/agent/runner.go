package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harun/agentcore/internal/tracing"
	"github.com/harun/agentcore/pkg/runqueue"
	"github.com/rs/zerolog"
)

// Recorder persists finished runs.
type Recorder interface {
	Save(ctx context.Context, result *AgentResult) error
}

// RunnerConfig holds runner configuration
type RunnerConfig struct {
	Loop  *Loop
	Queue *runqueue.Queue
	// Recorder is optional.
	Recorder Recorder
	// RunTimeout overrides the queue's default when positive.
	RunTimeout time.Duration
	Logger     zerolog.Logger
}

// Runner serializes runs per session through the run queue and keeps the
// cancel functions of active runs for Abort.
type Runner struct {
	loop       *Loop
	queue      *runqueue.Queue
	recorder   Recorder
	runTimeout time.Duration
	logger     zerolog.Logger

	// Active runs for abort capability
	activeRuns map[string]context.CancelFunc
	runsMu     sync.RWMutex
}

// NewRunner creates a new agent runner
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Loop == nil {
		return nil, fmt.Errorf("agent loop is required")
	}
	if cfg.Queue == nil {
		return nil, fmt.Errorf("run queue is required")
	}
	return &Runner{
		loop:       cfg.Loop,
		queue:      cfg.Queue,
		recorder:   cfg.Recorder,
		runTimeout: cfg.RunTimeout,
		logger:     cfg.Logger.With().Str("component", "runner").Logger(),
		activeRuns: make(map[string]context.CancelFunc),
	}, nil
}

// Run enqueues a run on its session lane and waits for the result. A run
// that exceeds the queue timeout yields a timeout-status result and a nil
// error; the lane stays held until the run actually returns.
func (r *Runner) Run(ctx context.Context, params RunParams) (*AgentResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if params.SessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if params.RunID == "" {
		params.RunID = r.queue.CreateRunID()
	}
	ctx = tracing.NewRunContext(ctx, params.RunID, params.SessionID)
	logger := tracing.LoggerFromContext(ctx, r.logger)

	var opts *runqueue.TaskOptions
	if r.runTimeout > 0 {
		opts = &runqueue.TaskOptions{Timeout: r.runTimeout}
	}

	value, err := r.queue.Enqueue(ctx, params.SessionID, params.RunID, func(taskCtx context.Context) (interface{}, error) {
		return r.execute(taskCtx, params)
	}, opts)

	if errors.Is(err, runqueue.ErrRunTimeout) {
		logger.Warn().Msg("Agent run timed out")
		return &AgentResult{
			RunID:     params.RunID,
			SessionID: params.SessionID,
			Status:    StatusTimeout,
			Error:     err.Error(),
		}, nil
	}

	result, _ := value.(*AgentResult)
	if err != nil {
		logger.Error().Err(err).Msg("Agent run failed")
		return result, err
	}
	if result == nil {
		return nil, fmt.Errorf("run %s returned no result", params.RunID)
	}
	return result, nil
}

// Abort cancels the active run of a session and drops its queued runs.
func (r *Runner) Abort(sessionID string) error {
	dropped := r.queue.ClearLane(sessionID)

	r.runsMu.Lock()
	defer r.runsMu.Unlock()

	cancel, exists := r.activeRuns[sessionID]
	if !exists {
		r.logger.Debug().Str("session_id", sessionID).Int("dropped", dropped).Msg("No active run to abort")
		return nil
	}

	r.logger.Info().Str("session_id", sessionID).Int("dropped", dropped).Msg("Aborting agent execution")
	cancel()
	delete(r.activeRuns, sessionID)

	return nil
}

// IsRunning checks if an agent is currently running for a session
func (r *Runner) IsRunning(sessionID string) bool {
	r.runsMu.RLock()
	defer r.runsMu.RUnlock()

	_, exists := r.activeRuns[sessionID]
	return exists
}

func (r *Runner) execute(ctx context.Context, params RunParams) (*AgentResult, error) {
	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.runsMu.Lock()
	r.activeRuns[params.SessionID] = cancel
	r.runsMu.Unlock()

	defer func() {
		r.runsMu.Lock()
		delete(r.activeRuns, params.SessionID)
		r.runsMu.Unlock()
	}()

	result, err := r.loop.Run(execCtx, params)
	if result != nil && r.recorder != nil {
		if saveErr := r.recorder.Save(context.WithoutCancel(ctx), result); saveErr != nil {
			logger := tracing.LoggerFromContext(ctx, r.logger)
			logger.Warn().Err(saveErr).Msg("Failed to record run")
		}
	}
	return result, err
}
