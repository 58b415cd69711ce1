package sched

import (
	"time"

	"github.com/vk/framegridgo/internal/clock"
	"github.com/vk/framegridgo/internal/graph"
)

// Outcome classifies what one pass delivered.
type Outcome uint8

const (
	// OutcomePresented is a clean frame: every node ran, fresh composite
	// pushed.
	OutcomePresented Outcome = iota
	// OutcomeDegraded is a pushed frame that leaned on shed work or
	// cached outputs somewhere upstream.
	OutcomeDegraded
	// OutcomeDropped is a frame with no fresh push.
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomePresented:
		return "presented"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeDropped:
		return "dropped"
	default:
		return "outcome(?)"
	}
}

// Report describes one pass for the engine loop, logs, and metrics.
type Report struct {
	Tick    clock.Tick
	Version uint64
	Outcome Outcome

	// Stale lists nodes that produced nothing fresh this tick: failed,
	// unwired, or starved of inputs. Consumers used cached outputs.
	Stale []graph.NodeID
	// Skipped lists low-priority nodes shed by the deadline policy.
	Skipped []graph.NodeID

	// Aborted is set when the policy stopped the pass mid-way.
	Aborted bool
	// Err is the failure of a strict node, when one aborted the pass.
	Err error

	// Represented is set when a dropped frame re-pushed the previous
	// composite instead of going dark.
	Represented bool
	// PresentErr is a presenter failure; the frame itself still counts.
	PresentErr error

	// Duration is the wall time of the whole pass.
	Duration time.Duration
}

// Clean reports whether the pass ran with nothing shed, stale, or failed.
func (r *Report) Clean() bool {
	return r.Outcome == OutcomePresented && !r.Aborted &&
		len(r.Stale) == 0 && len(r.Skipped) == 0 && r.Err == nil
}
