package toolexecutor

import (
	"context"
	"time"
)

// ExecutionContext describes the tool call a handler is serving.
type ExecutionContext struct {
	ToolCallID string
	StartTime  time.Time
	SessionID  string
	RunID      string
	WorkingDir string        // overrides the registered workspace root when set
	Timeout    time.Duration // 0 uses the executor default
	ToolPolicy *ToolPolicy   // checked in addition to the executor policy
}

type executionKey struct{}

// WithExecution returns ctx carrying execCtx. Handlers read it back with
// ExecutionFromContext.
func WithExecution(ctx context.Context, execCtx *ExecutionContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if execCtx == nil {
		return ctx
	}
	return context.WithValue(ctx, executionKey{}, execCtx)
}

// ExecutionFromContext returns the ExecutionContext set by the executor, or nil.
func ExecutionFromContext(ctx context.Context) *ExecutionContext {
	if ctx == nil {
		return nil
	}
	execCtx, _ := ctx.Value(executionKey{}).(*ExecutionContext)
	return execCtx
}
