package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/vk/framegridgo/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("framegrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
FrameGrid - A real-time node-graph compositor for video and control signals.

Usage:
  framegrid [options] [PATCH_PATH]

Arguments:
  PATCH_PATH
    Path to a single .hcl patch file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	patchFlag := flagSet.String("patch", "", "Path to the patch file or directory.")
	pFlag := flagSet.String("p", "", "Path to the patch file or directory (shorthand).")
	fpsFlag := flagSet.Int("fps", app.DefaultFPS, "Target frame rate.")
	budgetFlag := flagSet.Int("budget-ms", 0, "Per-frame compute budget in milliseconds. 0 uses the full frame period.")
	workersFlag := flagSet.Int("workers", app.DefaultWorkers, "Number of concurrent workers for the scheduler.")
	highWaterFlag := flagSet.Int("pool-high-water", 0, "Pooled buffers per frame class. 0 uses the built-in default.")
	policyFlag := flagSet.String("policy", app.PolicyDegrade, "Deadline policy. Options: 'degrade', 'drop' or 'proceed'.")
	watchFlag := flagSet.Bool("watch", false, "Reload the patch file when it changes on disk.")
	representFlag := flagSet.Bool("represent", false, "Re-present the previous frame when a frame is dropped.")
	metricsPortFlag := flagSet.Int("metrics-port", 0, "Port for the HTTP metrics and health server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *patchFlag != "" {
		path = *patchFlag
	} else if *pFlag != "" {
		path = *pFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Patch path determined.", "path", path)

	if path == "" {
		slog.Debug("No patch path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		PatchPath:   path,
		FPS:         *fpsFlag,
		Budget:      time.Duration(*budgetFlag) * time.Millisecond,
		Workers:     *workersFlag,
		HighWater:   *highWaterFlag,
		Policy:      strings.ToLower(*policyFlag),
		Watch:       *watchFlag,
		Represent:   *representFlag,
		MetricsPort: *metricsPortFlag,
		LogFormat:   logFormat,
		LogLevel:    logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
