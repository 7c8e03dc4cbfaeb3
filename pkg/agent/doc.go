// Package agent runs the turn-based loop between a model and tools.
//
// Invariants:
// - A run's working window may be compacted; its transcript never is.
// - Tool results re-enter the conversation as user-role messages.
// - Hook failures become warning events and never stop a run.
// - Runs of one session are serialized through runqueue by Runner.
//
// Usage:
//
//	loop, _ := agent.NewLoop(agent.LoopConfig{
//		Config: agent.DefaultConfig(),
//		Client: client,
//		Tools:  executor,
//	})
//	result, _ := loop.Run(ctx, agent.RunParams{
//		Prompt:    "hello",
//		SessionID: "session:1",
//	})
//	_ = result
package agent
