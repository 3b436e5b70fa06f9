package emit

// Event is an observability event emitted while a program runs: node
// skip/completion/failure, guard failures, and generation boundaries.
type Event struct {
	// RunID identifies the Driver run that emitted this event.
	RunID string

	// Generation is the 0-indexed generation number the event belongs to.
	// The Driver leaves it zero; its generation_start and generation_done
	// events carry the generation number in Meta["generation"].
	Generation int

	// NodeID identifies which node emitted this event. Empty for
	// generation-boundary events.
	NodeID string

	// Msg is a short, machine-greppable description: "node_skipped",
	// "node_done", "node_error", "guard_evaluation_failed", and so on.
	Msg string

	// Meta carries event-specific structured data, e.g. "error" for a
	// guard failure, "duration_ms" for a completion, "generation" and
	// "size" for a generation start.
	Meta map[string]any
}
