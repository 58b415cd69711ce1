package engine

import (
	"context"

	"github.com/vk/framegridgo/internal/clock"
	"github.com/vk/framegridgo/internal/ctxlog"
	"github.com/vk/framegridgo/internal/metrics"
	"github.com/vk/framegridgo/internal/mutate"
	"github.com/vk/framegridgo/internal/sched"
)

// Engine drives frames from a tick source through the scheduler.
type Engine struct {
	source  clock.Source
	manager *mutate.Manager
	sched   *sched.Scheduler
	metrics *metrics.Set

	onReport func(*sched.Report)
	frames   uint64
}

// New assembles an engine. The metrics set may be nil.
func New(source clock.Source, manager *mutate.Manager, scheduler *sched.Scheduler, m *metrics.Set) *Engine {
	return &Engine{
		source:  source,
		manager: manager,
		sched:   scheduler,
		metrics: m,
	}
}

// OnReport installs a hook that sees every frame report, called from the
// engine goroutine after the frame completes. Set it before Run.
func (e *Engine) OnReport(fn func(*sched.Report)) {
	e.onReport = fn
}

// Run consumes ticks until the context is canceled or the tick source
// closes. It owns the scheduler's lifecycle: workers start here and are
// stopped, with every retained buffer released, on the way out.
func (e *Engine) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	e.sched.Start(ctx)
	defer func() {
		e.sched.Stop()
		e.sched.Close(ctx)
		logger.Info("🏁 Engine stopped.", "frames", e.frames)
	}()

	logger.Info("🚀 Engine running.")
	for {
		select {
		case <-ctx.Done():
			return nil
		case tick, ok := <-e.source.Ticks():
			if !ok {
				return nil
			}
			e.runFrame(ctx, tick)
		}
	}
}

// runFrame is one full frame: edits land at the boundary, then the pass
// runs against a borrowed snapshot, then retired instances are torn
// down once nothing can reach them.
func (e *Engine) runFrame(ctx context.Context, tick clock.Tick) {
	applied, rejected := e.manager.ApplyPending(ctx)
	e.metrics.CountEdits(applied, rejected)

	snap, release := e.manager.Borrow()
	rep := e.sched.RunPass(ctx, snap, tick)
	release()

	if retired := e.manager.CollectRetired(); len(retired) > 0 {
		e.sched.Retire(ctx, retired)
	}

	e.frames++
	if e.onReport != nil {
		e.onReport(rep)
	}
}
