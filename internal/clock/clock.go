// Package clock emits the frame ticks that drive the engine. A tick
// carries its own deadline; the scheduler spends the budget, the clock
// only hands it out.
//
// Sources never queue: if the engine is still busy when the next tick
// fires, that tick is dropped on the floor and counted. Sequence numbers
// keep counting across drops, so a gap in Seq is the receiver's signal
// that it fell behind.
package clock

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultPeriod is roughly 30 frames per second.
const DefaultPeriod = 33 * time.Millisecond

// Tick is one frame trigger.
type Tick struct {
	// Seq increases by one per fired tick, including dropped ones.
	Seq uint64
	// Timestamp is when the tick fired.
	Timestamp time.Time
	// Deadline is when the frame's work should be finished.
	Deadline time.Time
}

// Budget returns the full time allotted to the frame.
func (t Tick) Budget() time.Duration { return t.Deadline.Sub(t.Timestamp) }

// Remaining returns the budget left at now. It goes negative once the
// deadline has passed.
func (t Tick) Remaining(now time.Time) time.Duration { return t.Deadline.Sub(now) }

// Source produces ticks. The channel closes after Stop, once no further
// tick can be in flight.
type Source interface {
	Ticks() <-chan Tick
	Stop()
}

// Ticker fires ticks on a fixed wall-clock period.
type Ticker struct {
	ch   chan Tick
	stop chan struct{}
	done chan struct{}
	once sync.Once

	period  time.Duration
	budget  time.Duration
	dropped atomic.Uint64
}

// NewTicker starts a source firing every period, each tick carrying a
// deadline of budget from its timestamp. A zero or oversized budget
// defaults to the full period.
func NewTicker(period, budget time.Duration) *Ticker {
	if period <= 0 {
		period = DefaultPeriod
	}
	if budget <= 0 || budget > period {
		budget = period
	}
	t := &Ticker{
		ch:     make(chan Tick, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		period: period,
		budget: budget,
	}
	go t.run()
	return t
}

func (t *Ticker) run() {
	defer close(t.done)
	defer close(t.ch)

	ticker := time.NewTicker(t.period)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-t.stop:
			return
		case now := <-ticker.C:
			seq++
			tick := Tick{Seq: seq, Timestamp: now, Deadline: now.Add(t.budget)}
			select {
			case t.ch <- tick:
			default:
				// Receiver is still on a previous frame.
				t.dropped.Add(1)
			}
		}
	}
}

// Ticks returns the tick channel.
func (t *Ticker) Ticks() <-chan Tick { return t.ch }

// Dropped returns how many ticks fired while the receiver was busy.
func (t *Ticker) Dropped() uint64 { return t.dropped.Load() }

// Stop halts the source and closes the tick channel. It returns once the
// emitting goroutine has exited; safe to call more than once.
func (t *Ticker) Stop() {
	t.once.Do(func() { close(t.stop) })
	<-t.done
}

// Manual is a hand-cranked source for tests and offline rendering: every
// tick is fired explicitly and delivered synchronously.
type Manual struct {
	ch   chan Tick
	once sync.Once
	seq  uint64
}

// NewManual creates a source with no self-firing behaviour.
func NewManual() *Manual {
	return &Manual{ch: make(chan Tick)}
}

// Fire emits the next tick and blocks until the receiver takes it. Fire
// and Stop must come from the same goroutine.
func (m *Manual) Fire(ts time.Time, budget time.Duration) Tick {
	m.seq++
	tick := Tick{Seq: m.seq, Timestamp: ts, Deadline: ts.Add(budget)}
	m.ch <- tick
	return tick
}

// Ticks returns the tick channel.
func (m *Manual) Ticks() <-chan Tick { return m.ch }

// Stop closes the tick channel; safe to call more than once.
func (m *Manual) Stop() {
	m.once.Do(func() { close(m.ch) })
}
