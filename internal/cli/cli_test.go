package cli

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/framegridgo/internal/app"
)

func TestParse_PositionalPatchPath(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cfg, exitClean, err := Parse([]string{"show.hcl"}, &buf)
	require.NoError(t, err)
	require.False(t, exitClean)

	assert.Equal(t, "show.hcl", cfg.PatchPath)
	assert.Equal(t, app.DefaultFPS, cfg.FPS)
	assert.Equal(t, app.PolicyDegrade, cfg.Policy)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Watch)
}

func TestParse_PatchFlagWinsOverPositional(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		args []string
		want string
	}{
		{name: "long flag", args: []string{"--patch", "a.hcl", "b.hcl"}, want: "a.hcl"},
		{name: "shorthand", args: []string{"-p", "a.hcl"}, want: "a.hcl"},
		{name: "positional only", args: []string{"b.hcl"}, want: "b.hcl"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			cfg, _, err := Parse(tc.args, &buf)
			require.NoError(t, err)
			assert.Equal(t, tc.want, cfg.PatchPath)
		})
	}
}

func TestParse_TranslatesEngineFlags(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cfg, _, err := Parse([]string{
		"--fps=60",
		"--budget-ms=8",
		"--workers=2",
		"--pool-high-water=32",
		"--policy=DROP",
		"--watch",
		"--represent",
		"--metrics-port=9090",
		"show.hcl",
	}, &buf)
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.FPS)
	assert.Equal(t, 8*time.Millisecond, cfg.Budget)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 32, cfg.HighWater)
	assert.Equal(t, app.PolicyDrop, cfg.Policy)
	assert.True(t, cfg.Watch)
	assert.True(t, cfg.Represent)
	assert.Equal(t, 9090, cfg.MetricsPort)
}

func TestParse_NoPathPrintsUsage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cfg, exitClean, err := Parse(nil, &buf)
	require.NoError(t, err)
	assert.True(t, exitClean)
	assert.Nil(t, cfg)
	assert.Contains(t, buf.String(), "Usage:")
}

func TestParse_HelpExitsCleanly(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cfg, exitClean, err := Parse([]string{"-h"}, &buf)
	require.NoError(t, err)
	assert.True(t, exitClean)
	assert.Nil(t, cfg)
}

func TestParse_RejectsBadInput(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{
			name:    "unknown flag",
			args:    []string{"--bogus"},
			wantMsg: "flag provided but not defined",
		},
		{
			name:    "bad log format",
			args:    []string{"--log-format=xml", "show.hcl"},
			wantMsg: "invalid log-format",
		},
		{
			name:    "bad log level",
			args:    []string{"--log-level=loud", "show.hcl"},
			wantMsg: "invalid log-level",
		},
		{
			name:    "bad policy",
			args:    []string{"--policy=yolo", "show.hcl"},
			wantMsg: "unknown deadline policy",
		},
		{
			name:    "fps out of range",
			args:    []string{"--fps=1000", "show.hcl"},
			wantMsg: "FPS must be between 1 and 240",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			_, _, err := Parse(tc.args, &buf)
			require.Error(t, err)

			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantMsg)
		})
	}
}
