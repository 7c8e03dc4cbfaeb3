// Package contextwindow fits a transcript into a model's token budget.
//
// The budget is the model window minus a reply reservation minus the system
// prompt. A history that already fits is returned as-is. Otherwise one of
// three strategies selects the survivors:
//
//   - truncate keeps the optional first message and the newest run of
//     messages that fit, capped at MaxMessages.
//   - selective scores every message (recency, length, role, tool calls,
//     first/last position) and admits the best that fit.
//   - hybrid always tries first, last and tool-call messages, then fills
//     newest to oldest.
//
// Messages are never partially truncated; a message that does not fit is
// dropped whole. Output order is always chronological.
package contextwindow
