// Package emit provides pluggable observability for a running program:
// the driver reports node lifecycle events through an Emitter without
// caring whether they land in a log, a metrics backend, or nowhere.
package emit

import "context"

// Emitter receives events as the driver walks a program's generations.
//
// Implementations must not block the driver for long and must not
// panic; a failing backend should log internally and drop the event
// rather than abort the run.
type Emitter interface {
	// Emit reports a single event.
	Emit(event Event)

	// EmitBatch reports several events at once, preserving order.
	// Returns an error only on a configuration-level failure, not on
	// per-event delivery problems.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until any buffered events have been delivered, or
	// ctx is done.
	Flush(ctx context.Context) error
}
