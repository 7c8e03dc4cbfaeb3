package runstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/harun/agentcore/pkg/agent"
)

// MemoryStore keeps results in process. Results are stored as JSON so
// callers never share memory with the archive.
type MemoryStore struct {
	mu    sync.RWMutex
	runs  map[string][]byte
	order map[string][]string // session id -> run ids, oldest first
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:  make(map[string][]byte),
		order: make(map[string][]string),
	}
}

// Save stores result under its run id.
func (s *MemoryStore) Save(ctx context.Context, result *agent.AgentResult) error {
	if err := validate(result); err != nil {
		return err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[result.RunID]; !exists {
		s.order[result.SessionID] = append(s.order[result.SessionID], result.RunID)
	}
	s.runs[result.RunID] = data
	return nil
}

// Get returns the result saved for runID.
func (s *MemoryStore) Get(ctx context.Context, runID string) (*agent.AgentResult, error) {
	s.mu.RLock()
	data, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return decode(data)
}

// ListBySession returns the session's results, newest first.
func (s *MemoryStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]*agent.AgentResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.order[sessionID]
	out := make([]*agent.AgentResult, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		result, err := decode(s.runs[ids[i]])
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func decode(data []byte) (*agent.AgentResult, error) {
	var result agent.AgentResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &result, nil
}
