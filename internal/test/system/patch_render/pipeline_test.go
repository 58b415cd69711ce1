package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/framegridgo/internal/testutil"
)

func TestPatchRender_FullPipelinePresents(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// A two-node pipeline: a solid gray source doubled by a transform.
	files := map[string]string{
		"main.hcl": `
			node "pattern" "src" {
				params {
					kind   = "solid"
					level  = 100
					format = "gray8"
					width  = 8
					height = 8
				}
			}

			node "transform" "gain" {
				params {
					gain = 2
				}
			}

			wire {
				from = "pattern.src:out"
				to   = "transform.gain:in"
			}

			program = "transform.gain:out"
		`,
	}

	// --- Act ---
	result := testutil.RunAppTest(t, files, 500*time.Millisecond)

	// --- Assert ---
	require.NoError(t, result.Err)
	frames := result.Recorder.Frames()
	require.NotEmpty(t, frames, "the program output should reach the presenter")

	for _, f := range frames {
		assert.Equal(t, byte(200), f.FirstByte, "transform should double the source level")
		assert.Equal(t, 64, f.Size)
	}
	for i := 1; i < len(frames); i++ {
		assert.Greater(t, frames[i].Seq, frames[i-1].Seq, "presented ticks must stay ordered")
	}
}

func TestPatchRender_ControlSignalDrivesMix(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Two solid sources crossfaded by a constant control value.
	files := map[string]string{
		"main.hcl": `
			node "pattern" "a" {
				params {
					kind   = "solid"
					level  = 100
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

			node "constant" "fade" {
				params {
					value = 0.25
				}
			}

			node "mix" "out" {}

			wire {
				from = "pattern.a:out"
				to   = "mix.out:a"
			}

			wire {
				from = "pattern.b:out"
				to   = "mix.out:b"
			}

			wire {
				from = "constant.fade:out"
				to   = "mix.out:mix"
			}

			program = "mix.out:out"
		`,
	}

	// --- Act ---
	result := testutil.RunAppTest(t, files, 500*time.Millisecond)

	// --- Assert ---
	require.NoError(t, result.Err)
	frames := result.Recorder.Frames()
	require.NotEmpty(t, frames)

	// k = round(0.25*255) = 64, out = (100*191 + 200*64 + 127) / 255 = 125.
	for _, f := range frames {
		assert.Equal(t, byte(125), f.FirstByte)
	}
}

func TestPatchRender_SplitAcrossFiles(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// The same pipeline declared across two files in one directory.
	files := map[string]string{
		"nodes.hcl": `
			node "pattern" "src" {
				params {
					kind   = "solid"
					level  = 30
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
		`,
		"show.hcl": `
			wire {
				from = "pattern.src:out"
				to   = "transform.inv:in"
			}

			program = "transform.inv:out"
		`,
	}

	// --- Act ---
	result := testutil.RunAppTest(t, files, 400*time.Millisecond)

	// --- Assert ---
	require.NoError(t, result.Err)
	frames := result.Recorder.Frames()
	require.NotEmpty(t, frames)
	for _, f := range frames {
		assert.Equal(t, byte(225), f.FirstByte, "255 - 30 after inversion")
	}
}

func TestPatchRender_NoProgramStaysDark(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// A patch with nodes but no program output: the engine runs dark.
	files := map[string]string{
		"main.hcl": `
			node "pattern" "src" {
				params {
					kind   = "solid"
					level  = 50
					format = "gray8"
					width  = 4
					height = 4
				}
			}
		`,
	}

	// --- Act ---
	result := testutil.RunAppTest(t, files, 300*time.Millisecond)

	// --- Assert ---
	require.NoError(t, result.Err)
	assert.Zero(t, result.Recorder.Len(), "nothing should be presented without a program")
}

func TestPatchRender_BadPatchFailsStartup(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	files := map[string]string{
		"main.hcl": `node "pattern" "src" { params {`,
	}

	// --- Act ---
	result := testutil.RunAppTest(t, files, 100*time.Millisecond)

	// --- Assert ---
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "application startup panicked")
	assert.Nil(t, result.App)
}
