// Package node defines the contract between the engine and the things it
// runs: a Definition declares a node type's ports and constructor, an
// Instance does per-tick work, and the Registry maps type names to
// definitions for the whole application.
//
// Instances may keep state between ticks (phase accumulators, held
// frames). The scheduler guarantees an instance is never executed
// concurrently with itself, so that state needs no locking. An instance
// holding pool leases should implement io.Closer and release them there;
// Close runs exactly once, after the instance's last pass.
package node
