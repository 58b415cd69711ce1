// Package mutate owns the working graph and admits edits to it.
//
// Editors submit batches of operations at any time; the engine applies
// everything queued strictly between two scheduler passes. A batch
// validates as a unit against a trial copy of the working graph, so a
// single bad operation rejects the whole batch and leaves the graph
// exactly as it was. All batches accepted at one boundary fold into a
// single new snapshot version.
//
// The scheduler reads through Borrow, which counts outstanding
// references per snapshot version. CollectRetired releases removed
// nodes for teardown only once no borrowed snapshot can still see them.
package mutate
