package sched

import "time"

// Decision is a deadline policy's verdict at a level boundary.
type Decision uint8

const (
	// Proceed runs the remaining levels in full.
	Proceed Decision = iota
	// Degrade runs the remaining levels without low-priority nodes.
	Degrade
	// Abort stops the pass and drops the frame.
	Abort
)

func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case Degrade:
		return "degrade"
	case Abort:
		return "abort"
	default:
		return "decision(?)"
	}
}

// Policy decides what to do with the rest of a pass given the time left
// in the frame budget. full estimates the remaining work as planned;
// essential estimates it with low-priority nodes skipped. Estimates come
// from observed node timings and are consulted between levels, never mid
// level.
type Policy interface {
	Decide(remaining, full, essential time.Duration) Decision
}

// DegradeThenDrop sheds low-priority work first and drops the frame only
// when even the essential work cannot fit. This is the default policy.
type DegradeThenDrop struct{}

// Decide implements Policy.
func (DegradeThenDrop) Decide(remaining, full, essential time.Duration) Decision {
	switch {
	case full <= remaining:
		return Proceed
	case essential <= remaining:
		return Degrade
	default:
		return Abort
	}
}

// DropOnOverrun never degrades: a frame either runs in full or is
// dropped. Suited to outputs where partial quality is worse than a
// repeated frame.
type DropOnOverrun struct{}

// Decide implements Policy.
func (DropOnOverrun) Decide(remaining, full, essential time.Duration) Decision {
	if full <= remaining {
		return Proceed
	}
	return Abort
}

// AlwaysProceed ignores the deadline entirely. Offline rendering wants
// every frame complete no matter how long it takes.
type AlwaysProceed struct{}

// Decide implements Policy.
func (AlwaysProceed) Decide(remaining, full, essential time.Duration) Decision {
	return Proceed
}
