package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/framegridgo/internal/app"
	"github.com/vk/framegridgo/internal/node"
	"github.com/vk/framegridgo/internal/testutil"
)

// slowProgramPatch is a single program node that overruns a 120fps frame
// budget on every tick.
const slowProgramPatch = `
	node "probe" "main" {
		params {
			sleep_ms = 25
			level    = 9
		}
	}

	program = "probe.main:out"
`

func TestDeadlinePolicy_DegradeShedsLowPriorityWork(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// A cheap program node next to an expensive low-priority branch.
	probe := &testutil.ProbeModule{}
	files := map[string]string{
		"main.hcl": `
			node "probe" "heavy" {
				low_priority = true

				params {
					sleep_ms = 25
				}
			}

			node "probe" "main" {
				params {
					level = 42
				}
			}

			program = "probe.main:out"
		`,
	}

	// --- Act ---
	result := testutil.RunAppTestWithOptions(t, files,
		app.Config{Policy: app.PolicyDegrade},
		app.Collaborators{Modules: []node.Module{probe}},
		600*time.Millisecond)

	// --- Assert ---
	require.NoError(t, result.Err)
	frames := result.Recorder.Frames()
	require.GreaterOrEqual(t, len(frames), 20, "the program path should keep presenting")
	for _, f := range frames {
		assert.Equal(t, byte(42), f.FirstByte)
	}

	assert.LessOrEqual(t, probe.Executions("heavy"), 3,
		"the heavy branch should be shed once its cost is known")
	assert.GreaterOrEqual(t, probe.Executions("main"), len(frames))
}

func TestDeadlinePolicy_DropAbortsOverBudgetFrames(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	probe := &testutil.ProbeModule{}
	files := map[string]string{"main.hcl": slowProgramPatch}

	// --- Act ---
	result := testutil.RunAppTestWithOptions(t, files,
		app.Config{Policy: app.PolicyDrop},
		app.Collaborators{Modules: []node.Module{probe}},
		500*time.Millisecond)

	// --- Assert ---
	require.NoError(t, result.Err)
	frames := result.Recorder.Frames()
	require.NotEmpty(t, frames, "the first pass runs on seed costs and presents")
	assert.LessOrEqual(t, len(frames), 2,
		"once the cost is known every frame should be dropped, not presented late")
	assert.Equal(t, byte(9), frames[0].FirstByte)
	assert.Contains(t, result.LogOutput, "Deadline policy aborted pass.")
}

func TestDeadlinePolicy_RepresentKeepsSinkFed(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	probe := &testutil.ProbeModule{}
	files := map[string]string{"main.hcl": slowProgramPatch}

	// --- Act ---
	result := testutil.RunAppTestWithOptions(t, files,
		app.Config{Policy: app.PolicyDrop, Represent: true},
		app.Collaborators{Modules: []node.Module{probe}},
		500*time.Millisecond)

	// --- Assert ---
	require.NoError(t, result.Err)
	frames := result.Recorder.Frames()
	require.GreaterOrEqual(t, len(frames), 10,
		"dropped ticks should re-present the previous composite")
	for _, f := range frames {
		assert.Equal(t, byte(9), f.FirstByte, "every push carries the last good composite")
	}
}

func TestDeadlinePolicy_ProceedRunsEveryPassInFull(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	probe := &testutil.ProbeModule{}
	files := map[string]string{"main.hcl": slowProgramPatch}

	// --- Act ---
	result := testutil.RunAppTestWithOptions(t, files,
		app.Config{Policy: app.PolicyProceed},
		app.Collaborators{Modules: []node.Module{probe}},
		600*time.Millisecond)

	// --- Assert ---
	require.NoError(t, result.Err)
	frames := result.Recorder.Frames()
	require.GreaterOrEqual(t, len(frames), 5, "every pass should run to completion and present")

	executions := probe.Executions("main")
	assert.GreaterOrEqual(t, executions, len(frames))
	assert.LessOrEqual(t, executions, len(frames)+2)

	// The clock keeps counting while passes overrun, so presented sequence
	// numbers advance faster than the number of presented frames.
	last := frames[len(frames)-1]
	assert.Greater(t, last.Seq, uint64(len(frames)))
}
