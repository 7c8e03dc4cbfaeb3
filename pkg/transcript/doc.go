// Package transcript defines the message, tool-call and tool-execution types
// shared by the context window manager, the agent loop and the run queue.
//
// Invariants:
// - Messages are values; components that hand transcripts across run
//   boundaries copy them with CloneMessages.
// - ToolExecution records are append-only.
package transcript
