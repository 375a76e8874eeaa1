// Package events carries harness notifications to subscribers.
//
// The harness produces two kinds of events: "stats" snapshots carrying a report
// object and "error" notifications carrying a single error identifier. Sources
// (stdin, files, websocket and SSE streams) decode them into [Event] values and
// publish them on an [Emitter]; consumers register handlers with Subscribe.
//
// On the wire every event is an envelope:
//
//	{"event": "stats", "data": {"aggregate": {"latencies": [[1700000000000, "id", 1500000, 200]]}}}
//	{"event": "error", "data": "ETIMEDOUT"}
//
// Emit runs handlers synchronously on the caller's goroutine, in subscription order.
// Handlers that do slow work must hand it off themselves.
package events
