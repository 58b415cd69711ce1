package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vk/framegridgo/internal/ctxlog"
	"github.com/vk/framegridgo/internal/device"
	"github.com/vk/framegridgo/internal/metrics"
	"github.com/vk/framegridgo/internal/mutate"
	"github.com/vk/framegridgo/internal/node"
	"github.com/vk/framegridgo/internal/patch"
	"github.com/vk/framegridgo/internal/pool"
)

// Collaborators are the swappable edges of the app: the capture device,
// the output device, and the node set. The zero value selects the
// built-in fakes and the core modules, which is what production wants
// until real device bindings exist and what tests override.
type Collaborators struct {
	Source    device.Source
	Presenter device.Presenter
	Modules   []node.Module
}

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config

	registry  *node.Registry
	pool      *pool.Pool
	manager   *mutate.Manager
	loader    *patch.Loader
	presenter device.Presenter
	promReg   *prometheus.Registry
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and
// registry, with the startup patch already queued for the first frame
// boundary. A patch that fails to load is a fatal startup error.
func NewApp(outW io.Writer, cfg *Config, collab Collaborators) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	source := collab.Source
	if source == nil {
		source = device.NewFakeSource()
	}
	presenter := collab.Presenter
	if presenter == nil {
		presenter = device.NewLogPresenter(logger, 0)
	}

	reg := node.NewRegistry()
	mods := collab.Modules
	if len(mods) == 0 {
		mods = coreModules(source)
	}
	for _, mod := range mods {
		mod.Register(reg)
	}
	logger.Debug("Node modules registered.", "types", reg.Types())

	a := &App{
		outW:      outW,
		logger:    logger,
		config:    cfg,
		registry:  reg,
		pool:      pool.New(logger, pool.Config{HighWater: cfg.HighWater}),
		manager:   mutate.New(reg),
		loader:    patch.NewLoader(reg),
		presenter: presenter,
		promReg:   prometheus.NewRegistry(),
	}
	a.promReg.MustRegister(
		metrics.NewPoolCollector(a.pool),
		collectors.NewGoCollector(),
	)

	initial, err := a.loader.Load(ctx, cfg.PatchPath)
	if err != nil {
		// A failure to load the startup patch is a fatal startup error.
		panic(fmt.Errorf("failed to load patch: %w", err))
	}
	id, _ := a.manager.SubmitBatch(patch.Build(initial, "startup patch"))
	logger.Debug("Startup patch queued.",
		"editID", id, "path", cfg.PatchPath, "nodes", len(initial.Nodes))

	return a
}

// Registry returns the application's node registry. This is primarily for
// testing.
func (a *App) Registry() *node.Registry {
	return a.registry
}

// Manager returns the application's mutation manager, the handle live
// controllers submit edits through. This is primarily for testing.
func (a *App) Manager() *mutate.Manager {
	return a.manager
}
