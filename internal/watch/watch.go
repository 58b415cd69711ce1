// Package watch reloads patch files when they change on disk.
//
// Editors save in bursts (write, rename, chmod), so raw fsnotify events
// collapse into one reload per settle window. Reload failures are the
// callback's problem: the watcher keeps watching either way, and a bad
// patch must never take down the running output.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vk/framegridgo/internal/ctxlog"
)

// DefaultDebounce is the quiet period after the last event before a
// reload fires.
const DefaultDebounce = 250 * time.Millisecond

// Watcher debounces filesystem events on patch paths into reload calls.
type Watcher struct {
	fsw      *fsnotify.Watcher
	reload   func(ctx context.Context)
	debounce time.Duration
	dirs     []string

	closeOnce sync.Once
}

// New watches the given files or directories. File paths watch their
// parent directory, since editors replace files instead of rewriting
// them in place. The reload callback runs on the watcher goroutine.
func New(paths []string, debounce time.Duration, reload func(ctx context.Context)) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}

	w := &Watcher{fsw: fsw, reload: reload, debounce: debounce}
	seen := make(map[string]struct{})
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch path %s: %w", p, err)
		}
		dir := p
		if !info.IsDir() {
			dir = filepath.Dir(p)
		}
		if _, dup := seen[dir]; dup {
			continue
		}
		seen[dir] = struct{}{}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		w.dirs = append(w.dirs, dir)
	}
	return w, nil
}

// Run blocks, turning settled event bursts into reload calls, until the
// context is canceled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("👀 Watching patch files.", "dirs", w.dirs, "debounce", w.debounce)

	var timer *time.Timer
	var timerC <-chan time.Time
	pending := 0

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			pending++
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error.", "error", err)

		case <-timerC:
			logger.Debug("Patch change settled.", "events", pending)
			pending = 0
			timerC = nil
			w.reload(ctx)
		}
	}
}

// Close stops the watcher; a blocked Run returns.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fsw.Close()
	})
	return err
}

// relevant keeps .hcl content changes and drops everything else,
// chmod noise included.
func relevant(ev fsnotify.Event) bool {
	if filepath.Ext(ev.Name) != ".hcl" {
		return false
	}
	return ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) ||
		ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename)
}
