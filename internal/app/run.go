package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vk/framegridgo/internal/clock"
	"github.com/vk/framegridgo/internal/ctxlog"
	"github.com/vk/framegridgo/internal/engine"
	"github.com/vk/framegridgo/internal/metrics"
	"github.com/vk/framegridgo/internal/patch"
	"github.com/vk/framegridgo/internal/sched"
	"github.com/vk/framegridgo/internal/watch"
)

// Run executes the main application lifecycle: the frame engine, the
// observability server and the patch watcher, supervised together until
// ctx is canceled or one of them fails. Run is one-shot; a second call
// on the same App would re-register its metrics and panic.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	ticker := clock.NewTicker(a.config.period(), a.config.Budget)
	defer ticker.Stop()

	set := metrics.New(a.promReg, ticker.Dropped)
	scheduler := sched.New(a.pool, a.registry, a.presenter, set, sched.Config{
		Workers:         a.config.Workers,
		Policy:          deadlinePolicy(a.config.Policy),
		RepresentOnDrop: a.config.Represent,
	})
	eng := engine.New(ticker, a.manager, scheduler, set)

	a.logger.Info("🚀 Starting engine.",
		"fps", a.config.FPS, "workers", a.config.Workers, "policy", a.config.Policy)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(gctx)
	})

	if a.config.MetricsPort > 0 {
		g.Go(func() error {
			return a.serveWeb(gctx, a.config.MetricsPort)
		})
	}

	if a.config.Watch {
		w, err := watch.New([]string{a.config.PatchPath}, watch.DefaultDebounce, a.reloadPatch)
		if err != nil {
			return fmt.Errorf("failed to start patch watcher: %w", err)
		}
		defer w.Close()
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	err := g.Wait()
	a.logger.Info("🏁 Engine finished.")
	return err
}

// reloadPatch reloads the patch file and submits the difference against
// the running graph. A patch that no longer parses is logged and
// skipped; the running graph keeps presenting.
func (a *App) reloadPatch(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)

	p, err := a.loader.Load(ctx, a.config.PatchPath)
	if err != nil {
		logger.Error("Patch reload failed, keeping the running graph.", "error", err)
		return
	}

	batch := patch.Diff(a.manager.Snapshot(), p, "hot reload")
	if batch.Empty() {
		logger.Debug("Patch unchanged, nothing to submit.")
		return
	}
	id, _ := a.manager.SubmitBatch(batch)
	logger.Info("🔁 Patch reload submitted.", "editID", id, "ops", len(batch.Ops))
}

// deadlinePolicy maps a validated Config.Policy name to its scheduler
// policy.
func deadlinePolicy(name string) sched.Policy {
	switch name {
	case PolicyDrop:
		return sched.DropOnOverrun{}
	case PolicyProceed:
		return sched.AlwaysProceed{}
	default:
		return sched.DegradeThenDrop{}
	}
}
