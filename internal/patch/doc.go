// Package patch loads graph descriptions from HCL files and turns them
// into edit batches.
//
// A patch file declares node instances, wires, and the program output:
//
//	node "pattern" "bars" {
//	  params {
//	    kind = "smpte"
//	  }
//	}
//
//	node "mix" "program" {
//	  params {
//	    mix = 0.5
//	  }
//	}
//
//	wire {
//	  from = "pattern.bars:out"
//	  to   = "mix.program:a"
//	}
//
//	program = "mix.program"
//
// Build replays a patch through the public edit path as one batch.
// Diff computes the minimal batch that morphs a running snapshot into
// the patch, which is what hot reload submits.
package patch
