// Package engine is the run loop that ties the clock, the mutation
// manager, and the scheduler together. One frame is: apply pending
// edits, borrow the snapshot, run a pass, release, retire whatever no
// borrowed snapshot references anymore.
//
// The loop itself is single-threaded on purpose. Everything concurrent
// lives behind it: the scheduler's worker pool, the patch watcher, and
// whoever submits edit batches.
package engine
