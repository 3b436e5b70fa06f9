// Package store is a host-side durability adapter for persisting a
// binding environment across a program run. It is never imported by the
// dag package itself — the core driver carries no persistence — a host
// wires it in around its own run loop, e.g. snapshotting bindings after
// each generation and restoring them before resuming a crashed run.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested run or checkpoint does not exist.
var ErrNotFound = errors.New("store: not found")

// StepRecord is one saved generation's worth of bindings.
type StepRecord struct {
	Step     int
	NodeID   string
	Bindings map[string]any
}

// Store persists a binding environment's snapshots across a run,
// independent of the DSL's own structure (no frontier, replay log, or
// RNG seed — those are durable-runtime concerns outside this rendition's
// scope; see DESIGN.md).
type Store interface {
	// SaveStep persists bindings as they stood right after nodeID wrote
	// its result, labeled with the generation-relative step number.
	SaveStep(ctx context.Context, runID string, step int, nodeID string, bindings map[string]any) error

	// LoadLatest returns the highest-step bindings saved for runID.
	LoadLatest(ctx context.Context, runID string) (bindings map[string]any, step int, err error)

	// SaveCheckpoint saves a named snapshot, independent of the
	// runID/step history, for manual resumption points.
	SaveCheckpoint(ctx context.Context, label string, bindings map[string]any, step int) error

	// LoadCheckpoint retrieves a named snapshot saved by SaveCheckpoint.
	LoadCheckpoint(ctx context.Context, label string) (bindings map[string]any, step int, err error)
}
