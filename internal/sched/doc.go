// Package sched executes one pass of the compositing graph per clock
// tick. It owns the per-frame state machine, the worker pool that runs
// node instances, the cost model behind deadline decisions, and the cache
// of every node's last good output.
//
// # Pass Anatomy
//
// A pass walks the snapshot's dependency levels in order. Before each
// level it asks the deadline policy whether the remaining work still fits
// the frame budget; the policy can let it proceed, shed low-priority
// nodes, or abort the pass. Nodes within a level run concurrently on the
// worker pool; the pass waits for the whole level before moving on, so an
// instance never races itself and every input a node sees is complete.
//
// # Staleness
//
// A node that fails, is shed, or is missing required wires produces
// nothing that tick. Its consumers silently fall back to the node's last
// good output, which the scheduler retains as a cloned lease per output
// port. Failure is contained to the failing node; only a node marked
// Strict escalates its failure to the whole pass.
package sched
