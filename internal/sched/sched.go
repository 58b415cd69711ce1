package sched

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/framegridgo/internal/clock"
	"github.com/vk/framegridgo/internal/ctxlog"
	"github.com/vk/framegridgo/internal/device"
	"github.com/vk/framegridgo/internal/graph"
	"github.com/vk/framegridgo/internal/metrics"
	"github.com/vk/framegridgo/internal/node"
	"github.com/vk/framegridgo/internal/pool"
)

// Phase is the observable stage of the pass state machine.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseOrdering
	PhaseDispatching
	PhaseCollecting
	PhasePresenting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseOrdering:
		return "ordering"
	case PhaseDispatching:
		return "dispatching"
	case PhaseCollecting:
		return "collecting"
	case PhasePresenting:
		return "presenting"
	default:
		return "phase(?)"
	}
}

// Config tunes a Scheduler.
type Config struct {
	// Workers sizes the execution pool. Defaults to 4.
	Workers int
	// SeedCost is the assumed cost of never-run nodes.
	SeedCost time.Duration
	// Policy decides degrade-or-drop at level boundaries. Defaults to
	// DegradeThenDrop.
	Policy Policy
	// RepresentOnDrop re-pushes the previous composite when a frame is
	// dropped, keeping the output device fed.
	RepresentOnDrop bool
}

// Scheduler runs passes. Start it once, drive it with RunPass from a
// single goroutine, and Stop plus Close it on the way out. Only the
// worker pool inside is concurrent.
type Scheduler struct {
	pool      *pool.Pool
	reg       *node.Registry
	presenter device.Presenter
	metrics   *metrics.Set

	policy          Policy
	workers         int
	representOnDrop bool

	costs     *costModel
	instances map[graph.NodeID]*instanceState

	// lastGood holds a cloned lease per output port, fed to consumers
	// when the producer has nothing fresh this tick.
	lastGood      map[graph.PortRef]*pool.Lease
	lastComposite *pool.Lease

	phase atomic.Int32

	tasks   chan func()
	wg      sync.WaitGroup
	started bool
}

// instanceState is one node's live instance, or the reason it has none.
type instanceState struct {
	impl   node.Instance
	record *graph.Node
	err    error
}

// New wires a scheduler. The presenter and metrics set may be nil.
func New(p *pool.Pool, reg *node.Registry, presenter device.Presenter, m *metrics.Set, cfg Config) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Policy == nil {
		cfg.Policy = DegradeThenDrop{}
	}
	return &Scheduler{
		pool:            p,
		reg:             reg,
		presenter:       presenter,
		metrics:         m,
		policy:          cfg.Policy,
		workers:         cfg.Workers,
		representOnDrop: cfg.RepresentOnDrop,
		costs:           newCostModel(cfg.SeedCost),
		instances:       make(map[graph.NodeID]*instanceState),
		lastGood:        make(map[graph.PortRef]*pool.Lease),
		tasks:           make(chan func()),
	}
}

// Phase returns the stage the pass machine is in right now.
func (s *Scheduler) Phase() Phase {
	return Phase(s.phase.Load())
}

// Start launches the worker pool. Workers log through the context's
// logger and live until Stop.
func (s *Scheduler) Start(ctx context.Context) {
	if s.started {
		return
	}
	s.started = true
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting scheduler worker pool.", "workers", s.workers)

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func(workerID int) {
			defer s.wg.Done()
			logger.Debug("Worker started.", "workerID", workerID)
			for fn := range s.tasks {
				fn()
			}
			logger.Debug("Worker finished.", "workerID", workerID)
		}(i)
	}
}

// Stop drains the worker pool. No RunPass may be in flight or follow.
func (s *Scheduler) Stop() {
	if !s.started {
		return
	}
	s.started = false
	close(s.tasks)
	s.wg.Wait()
}

// taskResult is one node's execution outcome within a level.
type taskResult struct {
	out node.Outputs
	err error
	dur time.Duration
	ran bool
}

// RunPass executes one frame against the snapshot and returns what
// happened. It never fails as a whole: node errors are contained in the
// report, and a dropped frame is an outcome, not an error.
func (s *Scheduler) RunPass(ctx context.Context, snap *graph.Snapshot, tick clock.Tick) *Report {
	if !s.started {
		panic("sched: RunPass before Start")
	}
	start := time.Now()
	ctx = ctxlog.With(ctx, "tick", tick.Seq, "version", snap.Version())
	logger := ctxlog.FromContext(ctx)
	defer s.phase.Store(int32(PhaseIdle))

	s.phase.Store(int32(PhaseOrdering))
	levels := snap.Levels()
	s.ensureInstances(ctx, snap)

	rep := &Report{Tick: tick, Version: snap.Version()}
	outputs := make(map[graph.PortRef]*pool.Lease)
	stale := make(map[graph.NodeID]error)
	var skipped []graph.NodeID

	// The program producer is never shed, whatever its priority flag:
	// degrading must not take the presented output with it.
	var progNode graph.NodeID
	if ref, ok := snap.Program(); ok {
		progNode = ref.Node
	}

	s.phase.Store(int32(PhaseDispatching))
	for li := 0; li < len(levels); li++ {
		remaining := tick.Remaining(time.Now())
		full, essential := s.costs.estimate(snap, levels[li:], s.workers)
		decision := s.policy.Decide(remaining, full, essential)
		if decision == Abort {
			logger.Warn("⏱️ Deadline policy aborted pass.",
				"level", li, "remaining", remaining, "estimate", full)
			rep.Aborted = true
			break
		}
		shedLow := decision == Degrade
		if shedLow {
			logger.Debug("Deadline policy shedding low-priority nodes.",
				"level", li, "remaining", remaining, "estimate", full)
		}

		level := levels[li]
		results := make([]taskResult, len(level))
		var lwg sync.WaitGroup

		for i, id := range level {
			rec, _ := snap.Node(id)
			st := s.instances[id]

			if shedLow && rec.LowPriority && id != progNode {
				skipped = append(skipped, id)
				continue
			}
			if st == nil || st.err != nil {
				stale[id] = constructionError(st)
				continue
			}
			if !snap.Wired(id) {
				stale[id] = fmt.Errorf("required inputs unwired: %v", snap.MissingInputs(id))
				continue
			}
			inputs, err := s.resolveInputs(snap, id, rec, outputs)
			if err != nil {
				stale[id] = err
				continue
			}

			slot, runRec, impl := i, rec, st.impl
			lwg.Add(1)
			s.tasks <- func() {
				defer lwg.Done()
				t0 := time.Now()
				out, err := impl.Execute(ctx, node.NewExecContext(tick, runRec, s.pool, inputs))
				for _, in := range inputs {
					in.Release()
				}
				results[slot] = taskResult{out: out, err: err, dur: time.Since(t0), ran: true}
			}
		}
		lwg.Wait()

		s.collectLevel(logger, snap, level, results, outputs, stale, rep)
		if rep.Aborted {
			break
		}
	}

	s.phase.Store(int32(PhaseCollecting))
	composite, reused := s.collectComposite(snap, outputs, rep.Aborted)

	rep.Stale = sortedStale(stale)
	sort.Slice(skipped, func(i, j int) bool { return skipped[i] < skipped[j] })
	rep.Skipped = skipped

	switch {
	case composite == nil:
		rep.Outcome = OutcomeDropped
	case len(rep.Stale) == 0 && len(skipped) == 0 && !reused && !rep.Aborted:
		rep.Outcome = OutcomePresented
	default:
		rep.Outcome = OutcomeDegraded
	}

	s.phase.Store(int32(PhasePresenting))
	s.present(ctx, tick, composite, rep)

	for _, l := range outputs {
		l.Release()
	}

	rep.Duration = time.Since(start)
	s.metrics.ObserveFrame(rep.Outcome.String(), rep.Duration)
	s.metrics.CountStale(len(rep.Stale))
	s.metrics.CountSkipped(len(rep.Skipped))
	s.metrics.SetSnapshotVersion(snap.Version())

	if rep.Outcome == OutcomeDropped {
		logger.Warn("Frame dropped.", "represented", rep.Represented, "aborted", rep.Aborted)
	} else {
		logger.Debug("Pass complete.",
			"outcome", rep.Outcome.String(), "duration", rep.Duration,
			"stale", len(rep.Stale), "skipped", len(rep.Skipped))
	}
	return rep
}

func constructionError(st *instanceState) error {
	if st == nil {
		return fmt.Errorf("no instance")
	}
	return fmt.Errorf("instance unavailable: %w", st.err)
}

// ensureInstances builds missing node instances in deterministic order
// and retries failed constructions when the node's record has changed.
func (s *Scheduler) ensureInstances(ctx context.Context, snap *graph.Snapshot) {
	logger := ctxlog.FromContext(ctx)

	for _, id := range snap.Order() {
		rec, _ := snap.Node(id)
		if st, ok := s.instances[id]; ok {
			if st.err != nil && st.record != rec {
				delete(s.instances, id)
			} else {
				st.record = rec
				continue
			}
		}

		st := &instanceState{record: rec}
		def, ok := s.reg.Lookup(rec.Type)
		if !ok {
			st.err = fmt.Errorf("node type %q not registered", rec.Type)
		} else if impl, err := def.New(ctx, id, node.Params(rec.Params)); err != nil {
			logger.Error("Node construction failed.", "nodeID", id, "error", err)
			st.err = err
		} else {
			logger.Debug("Node instance created.", "nodeID", id)
			st.impl = impl
		}
		s.instances[id] = st
	}
}

// resolveInputs clones a lease per wired input: fresh output if this pass
// produced one, the producer's last good output otherwise. A required
// input with neither makes the node unrunnable this tick.
func (s *Scheduler) resolveInputs(snap *graph.Snapshot, id graph.NodeID, rec *graph.Node, outputs map[graph.PortRef]*pool.Lease) (map[string]*pool.Lease, error) {
	inputs := make(map[string]*pool.Lease, len(rec.Inputs))
	for _, p := range rec.Inputs {
		from, wired := snap.Inbound(graph.PortRef{Node: id, Port: p.Name})
		if !wired {
			continue // required-and-unwired was rejected before dispatch
		}
		src, ok := outputs[from]
		if !ok {
			src, ok = s.lastGood[from]
		}
		if !ok {
			if p.Optional {
				continue
			}
			for _, in := range inputs {
				in.Release()
			}
			return nil, fmt.Errorf("input %q starved: %s has no output yet", p.Name, from)
		}
		inputs[p.Name] = src.Clone()
	}
	return inputs, nil
}

// collectLevel publishes the level's outputs, refreshes the last-good
// cache, and folds failures into the report.
func (s *Scheduler) collectLevel(logger *slog.Logger, snap *graph.Snapshot, level []graph.NodeID, results []taskResult, outputs map[graph.PortRef]*pool.Lease, stale map[graph.NodeID]error, rep *Report) {
	for i, id := range level {
		res := results[i]
		if !res.ran {
			continue
		}
		rec, _ := snap.Node(id)
		s.costs.observe(id, res.dur)
		s.metrics.ObserveNode(rec.Type, res.dur, res.err != nil)

		if res.err != nil {
			logger.Error("Node execution failed.", "nodeID", id, "error", res.err)
			releaseOutputs(res.out)
			stale[id] = res.err
			s.escalateStrict(rec, res.err, rep)
			continue
		}

		if err := checkOutputs(rec, res.out); err != nil {
			logger.Error("Node broke its output contract.", "nodeID", id, "error", err)
			releaseOutputs(res.out)
			stale[id] = err
			s.escalateStrict(rec, err, rep)
			continue
		}

		for name, lease := range res.out {
			if _, declared := rec.Output(name); !declared {
				logger.Warn("Node returned undeclared output.", "nodeID", id, "port", name)
				lease.Release()
				continue
			}
			lease.Publish()
			ref := graph.PortRef{Node: id, Port: name}
			outputs[ref] = lease

			if old, ok := s.lastGood[ref]; ok {
				old.Release()
			}
			s.lastGood[ref] = lease.Clone()
		}
	}
}

func (s *Scheduler) escalateStrict(rec *graph.Node, err error, rep *Report) {
	if rec.Strict && rep.Err == nil {
		rep.Err = fmt.Errorf("strict node %s: %w", rec.ID, err)
		rep.Aborted = true
	}
}

func checkOutputs(rec *graph.Node, out node.Outputs) error {
	for _, p := range rec.Outputs {
		if l, ok := out[p.Name]; !ok || l == nil {
			return fmt.Errorf("missing declared output %q", p.Name)
		}
	}
	return nil
}

func releaseOutputs(out node.Outputs) {
	for _, l := range out {
		if l != nil {
			l.Release()
		}
	}
}

// collectComposite picks the frame to present: the program port's fresh
// output, or its cached one when the producer went stale mid-frame.
func (s *Scheduler) collectComposite(snap *graph.Snapshot, outputs map[graph.PortRef]*pool.Lease, aborted bool) (composite *pool.Lease, reused bool) {
	if aborted {
		return nil, false
	}
	progRef, ok := snap.Program()
	if !ok {
		return nil, false
	}
	if l, ok := outputs[progRef]; ok {
		return l.Clone(), false
	}
	if lg, ok := s.lastGood[progRef]; ok {
		return lg.Clone(), true
	}
	return nil, false
}

// present pushes the composite, or re-presents the previous one on a
// drop, and rotates the composite cache.
func (s *Scheduler) present(ctx context.Context, tick clock.Tick, composite *pool.Lease, rep *Report) {
	logger := ctxlog.FromContext(ctx)

	if composite == nil {
		if s.representOnDrop && s.lastComposite != nil && s.presenter != nil {
			if err := s.presenter.PushFrame(ctx, tick, s.lastComposite); err != nil {
				logger.Error("Presenter rejected re-presented frame.", "error", err)
				rep.PresentErr = err
			} else {
				rep.Represented = true
			}
		}
		return
	}

	if s.presenter != nil {
		if err := s.presenter.PushFrame(ctx, tick, composite); err != nil {
			logger.Error("Presenter rejected frame.", "error", err)
			rep.PresentErr = err
		}
	}
	if s.lastComposite != nil {
		s.lastComposite.Release()
	}
	s.lastComposite = composite
}

// Retire tears down instances for removed nodes: their cached outputs are
// dropped, their cost history forgotten, and io.Closer instances closed.
// The engine calls this only after no in-flight pass can touch them.
func (s *Scheduler) Retire(ctx context.Context, ids []graph.NodeID) {
	logger := ctxlog.FromContext(ctx)

	for _, id := range ids {
		if st, ok := s.instances[id]; ok && st.impl != nil {
			if c, ok := st.impl.(io.Closer); ok {
				if err := c.Close(); err != nil {
					logger.Warn("Node instance close failed.", "nodeID", id, "error", err)
				}
			}
		}
		delete(s.instances, id)
		s.costs.forget(id)

		for ref, l := range s.lastGood {
			if ref.Node == id {
				l.Release()
				delete(s.lastGood, ref)
			}
		}
		logger.Debug("Node instance retired.", "nodeID", id)
	}
}

// Close releases every retained lease and closes every instance. Call
// after Stop; the scheduler is unusable afterwards.
func (s *Scheduler) Close(ctx context.Context) {
	ids := make([]graph.NodeID, 0, len(s.instances))
	for id := range s.instances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	s.Retire(ctx, ids)

	if s.lastComposite != nil {
		s.lastComposite.Release()
		s.lastComposite = nil
	}
}

func sortedStale(stale map[graph.NodeID]error) []graph.NodeID {
	ids := make([]graph.NodeID, 0, len(stale))
	for id := range stale {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
