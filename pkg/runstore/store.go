// Package runstore archives the terminal results of agent runs.
//
// Stores are append-mostly: saving a run id twice replaces the earlier
// result. Listing returns the newest runs of a session first.
package runstore

import (
	"context"
	"errors"

	"github.com/harun/agentcore/pkg/agent"
)

// ErrNotFound is returned by Get for unknown run ids.
var ErrNotFound = errors.New("run not found")

// Store persists AgentResults. Every Store satisfies agent.Recorder.
type Store interface {
	Save(ctx context.Context, result *agent.AgentResult) error
	Get(ctx context.Context, runID string) (*agent.AgentResult, error)
	// ListBySession returns up to limit results, newest first. A limit of
	// zero or less returns every result.
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*agent.AgentResult, error)
	Close() error
}

var (
	_ Store          = (*MemoryStore)(nil)
	_ Store          = (*SQLiteStore)(nil)
	_ agent.Recorder = (Store)(nil)
)

func validate(result *agent.AgentResult) error {
	if result == nil {
		return errors.New("result is nil")
	}
	if result.RunID == "" {
		return errors.New("result has no run id")
	}
	return nil
}
