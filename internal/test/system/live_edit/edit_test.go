package system

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/framegridgo/internal/app"
	"github.com/vk/framegridgo/internal/device"
	"github.com/vk/framegridgo/internal/graph"
	"github.com/vk/framegridgo/internal/mutate"
	"github.com/vk/framegridgo/internal/testutil"
)

// twoSourcePatch declares two solid sources with the program on "a".
const twoSourcePatch = `
	node "pattern" "a" {
		params {
			kind   = "solid"
			level  = 5
			format = "gray8"
			width  = 4
			height = 4
		}
	}

	node "pattern" "b" {
		params {
			kind   = "solid"
			level  = 200
			format = "gray8"
			width  = 4
			height = 4
		}
	}

	program = "pattern.a:out"
`

// startApp boots the patch with the engine running in the background.
func startApp(t *testing.T, content string) (*app.App, *device.Recorder) {
	t.Helper()

	patchDir := testutil.WritePatchDir(t, map[string]string{"main.hcl": content})
	cfg, err := app.NewConfig(app.Config{PatchPath: patchDir, FPS: 120, LogFormat: "text"})
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

	return testApp, rec
}

func waitForByte(t *testing.T, rec *device.Recorder, want byte, msg string) {
	t.Helper()
	require.Eventually(t, func() bool {
		frames := rec.Frames()
		return len(frames) > 0 && frames[len(frames)-1].FirstByte == want
	}, 3*time.Second, 10*time.Millisecond, msg)
}

func awaitResult(t *testing.T, res <-chan mutate.Result) mutate.Result {
	t.Helper()
	select {
	case r := <-res:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("edit result not delivered by the next frame boundary")
		return mutate.Result{}
	}
}

func TestLiveEdit_ParamChangeLandsAtFrameBoundary(t *testing.T) {
	t.Parallel()

	testApp, rec := startApp(t, twoSourcePatch)
	waitForByte(t, rec, 5, "startup patch should present first")

	batch := mutate.Batch{Label: "live level", Ops: []mutate.Op{
		mutate.SetParam{ID: "pattern.a", Key: "level", Value: cty.NumberIntVal(99)},
	}}
	_, res := testApp.Manager().SubmitBatch(batch)

	r := awaitResult(t, res)
	require.NoError(t, r.Err)
	assert.Positive(t, r.Version)

	waitForByte(t, rec, 99, "the edited level should present without a rebuild")
}

func TestLiveEdit_ProgramSwitchCutsOver(t *testing.T) {
	t.Parallel()

	testApp, rec := startApp(t, twoSourcePatch)
	waitForByte(t, rec, 5, "program starts on source a")

	batch := mutate.Batch{Label: "cut to b", Ops: []mutate.Op{
		mutate.SetProgram{Ref: graph.PortRef{Node: "pattern.b", Port: "out"}},
	}}
	_, res := testApp.Manager().SubmitBatch(batch)
	require.NoError(t, awaitResult(t, res).Err)

	waitForByte(t, rec, 200, "the program should cut to source b")
}

func TestLiveEdit_RejectedBatchKeepsOutputRunning(t *testing.T) {
	t.Parallel()

	testApp, rec := startApp(t, twoSourcePatch)
	waitForByte(t, rec, 5, "startup patch should present first")

	batch := mutate.Batch{Label: "bad wire", Ops: []mutate.Op{
		mutate.Connect{
			From: graph.PortRef{Node: "pattern.a", Port: "out"},
			To:   graph.PortRef{Node: "pattern.b", Port: "nope"},
		},
	}}
	_, res := testApp.Manager().SubmitBatch(batch)

	r := awaitResult(t, res)
	require.Error(t, r.Err)
	assert.ErrorIs(t, r.Err, graph.ErrUnknownPort)

	// The rejected batch must not disturb the running output.
	before := rec.Len()
	require.Eventually(t, func() bool {
		return rec.Len() > before
	}, 2*time.Second, 10*time.Millisecond, "frames should keep flowing after a rejected edit")

	frames := rec.Frames()
	assert.Equal(t, byte(5), frames[len(frames)-1].FirstByte)
}
