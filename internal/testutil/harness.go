// Package testutil carries the shared harness for app-level tests: it
// boots a full App over patch files written to a temp dir, runs the
// engine for a bounded time, and hands back everything a test wants to
// assert on.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vk/framegridgo/internal/app"
	"github.com/vk/framegridgo/internal/device"
)

// HarnessResult holds the outcomes of an app-level test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
	// Recorder is the presenter the run captured frames into. It is nil
	// when the test injected a custom presenter.
	Recorder *device.Recorder
	// PatchDir is where the harness wrote the patch files.
	PatchDir string
}

// WritePatchDir writes the given patch files into a fresh temp dir and
// returns its path. Relative paths in the map may carry subdirectories.
func WritePatchDir(t *testing.T, files map[string]string) string {
	t.Helper()

	tmpDir := t.TempDir()
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))
	}
	return tmpDir
}

// RunAppTest boots an App over the given patch files with default
// options and a frame recorder as the output device, then runs the
// engine for runFor.
func RunAppTest(t *testing.T, files map[string]string, runFor time.Duration) *HarnessResult {
	t.Helper()
	return RunAppTestWithOptions(t, files, app.Config{}, app.Collaborators{}, runFor)
}

// RunAppTestWithOptions is RunAppTest with explicit config and
// collaborators. The harness fills PatchPath, forces debug logging into
// the captured buffer, and defaults the frame rate to 120 so short runs
// still see plenty of ticks. A startup panic is recovered into Err.
func RunAppTestWithOptions(t *testing.T, files map[string]string, cfg app.Config, collab app.Collaborators, runFor time.Duration) *HarnessResult {
	t.Helper()

	patchDir := WritePatchDir(t, files)
	cfg.PatchPath = patchDir
	if cfg.FPS == 0 {
		cfg.FPS = 120
	}
	cfg.LogLevel = "debug"
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}

	appConfig, err := app.NewConfig(cfg)
	require.NoError(t, err)

	if collab.Presenter == nil {
		collab.Presenter = device.NewRecorder()
	}
	rec, _ := collab.Presenter.(*device.Recorder)

	logBuffer := &app.SafeBuffer{}
	result := &HarnessResult{PatchDir: patchDir, Recorder: rec}

	var testApp *app.App
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.Err = fmt.Errorf("application startup panicked | %v", r)
			}
		}()
		testApp = app.NewApp(logBuffer, appConfig, collab)
	}()

	if result.Err == nil {
		result.App = testApp
		ctx, cancel := context.WithTimeout(context.Background(), runFor)
		defer cancel()
		result.Err = testApp.Run(ctx)
	}

	result.LogOutput = logBuffer.String()
	if os.Getenv("FRAMEGRID_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), result.LogOutput)
	}
	return result
}
