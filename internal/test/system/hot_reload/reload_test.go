package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/framegridgo/internal/app"
	"github.com/vk/framegridgo/internal/device"
	"github.com/vk/framegridgo/internal/testutil"
)

// solidPatch renders a single solid gray frame at the given level.
func solidPatch(level int) string {
	return fmt.Sprintf(`
		node "pattern" "main" {
			params {
				kind   = "solid"
				level  = %d
				format = "gray8"
				width  = 4
				height = 4
			}
		}

		program = "pattern.main:out"
	`, level)
}

// startWatchedApp boots an app with the watcher enabled and the engine
// running in the background. It returns the recorder and the patch file
// path the test can rewrite.
func startWatchedApp(t *testing.T, content string) (*device.Recorder, string) {
	t.Helper()

	patchDir := testutil.WritePatchDir(t, map[string]string{"main.hcl": content})
	path := filepath.Join(patchDir, "main.hcl")

	cfg, err := app.NewConfig(app.Config{
		PatchPath: patchDir,
		FPS:       120,
		Watch:     true,
		LogFormat: "text",
	})
	require.NoError(t, err)

	rec := device.NewRecorder()
	testApp, _ := app.SetupAppTest(t, cfg, app.Collaborators{Presenter: rec})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- testApp.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("app did not stop after cancel")
		}
	})

	return rec, path
}

func lastByte(rec *device.Recorder) (byte, bool) {
	frames := rec.Frames()
	if len(frames) == 0 {
		return 0, false
	}
	return frames[len(frames)-1].FirstByte, true
}

func TestHotReload_ParamEditLandsWithoutRestart(t *testing.T) {
	t.Parallel()

	rec, path := startWatchedApp(t, solidPatch(10))

	require.Eventually(t, func() bool {
		b, ok := lastByte(rec)
		return ok && b == 10
	}, 3*time.Second, 10*time.Millisecond, "initial patch should present")

	require.NoError(t, os.WriteFile(path, []byte(solidPatch(77)), 0o644))

	require.Eventually(t, func() bool {
		b, ok := lastByte(rec)
		return ok && b == 77
	}, 5*time.Second, 20*time.Millisecond, "edited level should reach the output without a restart")
}

func TestHotReload_NewNodeJoinsGraph(t *testing.T) {
	t.Parallel()

	rec, path := startWatchedApp(t, solidPatch(40))

	require.Eventually(t, func() bool {
		b, ok := lastByte(rec)
		return ok && b == 40
	}, 3*time.Second, 10*time.Millisecond)

	// Extend the patch with an inverting transform and repoint the program.
	extended := `
		node "pattern" "main" {
			params {
				kind   = "solid"
				level  = 40
				format = "gray8"
				width  = 4
				height = 4
			}
		}

		node "transform" "inv" {
			params {
				invert = true
			}
		}

		wire {
			from = "pattern.main:out"
			to   = "transform.inv:in"
		}

		program = "transform.inv:out"
	`
	require.NoError(t, os.WriteFile(path, []byte(extended), 0o644))

	require.Eventually(t, func() bool {
		b, ok := lastByte(rec)
		return ok && b == 215
	}, 5*time.Second, 20*time.Millisecond, "255 - 40 once the new transform carries the program")
}

func TestHotReload_BrokenEditKeepsLastGoodGraph(t *testing.T) {
	t.Parallel()

	rec, path := startWatchedApp(t, solidPatch(10))

	require.Eventually(t, func() bool {
		b, ok := lastByte(rec)
		return ok && b == 10
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(`node "broken`), 0o644))

	// Give the watcher time to debounce and reject the broken patch, then
	// confirm the output kept running on the previous graph.
	time.Sleep(3 * watcherDebounce)
	before := rec.Len()
	require.Eventually(t, func() bool {
		return rec.Len() > before
	}, 2*time.Second, 10*time.Millisecond, "frames should keep flowing after a rejected reload")

	b, ok := lastByte(rec)
	require.True(t, ok)
	assert.Equal(t, byte(10), b, "the last good level should still present")
}

// watcherDebounce mirrors the watcher's default settle window.
const watcherDebounce = 250 * time.Millisecond
