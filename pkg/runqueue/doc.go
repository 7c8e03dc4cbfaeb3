// Package runqueue serializes agent runs per session.
//
// Invariants:
// - Runs on the same session execute one at a time in submission order.
// - Runs on different sessions may execute concurrently with no ordering relationship.
// - A timed-out run is reported to its caller immediately, but keeps its
//   session lane until the task returns, so two runs never overlap on a session.
//
// Usage:
//
//	q := runqueue.New(runqueue.DefaultConfig())
//	defer q.Close()
//	result, err := q.Enqueue(ctx, "session-1", q.CreateRunID(), func(ctx context.Context) (interface{}, error) {
//		return "ok", nil
//	}, nil)
package runqueue
