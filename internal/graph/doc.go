// Package graph owns the compositing graph: typed node instances, the wires
// between their ports, and the designated program output.
//
// # Two Faces, One Model
//
// The package exposes the same model in two forms:
//
//   - **Graph** is the mutable working copy. Every edit is validated against
//     the full invariant set (port types match, single producer per input,
//     no cycles) before it lands, so the working copy is correct by
//     construction at every step.
//   - **Snapshot** is an immutable, versioned view. Passes execute against a
//     Snapshot, never against the working Graph, so an edit can land between
//     two frames without a reader ever observing a half-applied graph.
//
// Snapshots share node records and wire maps with their parent Graph;
// taking one costs two shallow map copies regardless of how little changed.
// Records are never mutated in place, which is what makes the sharing safe.
//
// # Execution Order
//
// A Snapshot lazily computes a deterministic topological order and its
// partition into dependency levels (all nodes at level k depend only on
// levels < k). Ties break by node ID, so the same graph always yields the
// same order regardless of map iteration.
package graph
