// Package device is the engine's boundary to the outside world: Sources
// supply external frames (capture hardware, NDI receivers, file players)
// and Presenters consume the composited program output (displays, encoders,
// virtual cameras).
//
// The engine owns all buffers. A Source fills a pool-backed slice it is
// handed; a Presenter reads a lease that stays valid only for the duration
// of the call. Drivers that need to retain pixels must copy. Latency beats
// completeness at this boundary: a driver with nothing new says so instead
// of blocking the frame.
package device

import (
	"context"
	"errors"

	"github.com/vk/framegridgo/internal/clock"
	"github.com/vk/framegridgo/internal/frame"
	"github.com/vk/framegridgo/internal/pool"
)

var (
	// ErrNoNewFrame reports that the source has produced nothing since
	// the previous fill. The caller reuses its last frame.
	ErrNoNewFrame = errors.New("device: no new frame")

	// ErrSourceUnavailable reports a source that is disconnected or
	// failed. The caller's output goes stale until it recovers.
	ErrSourceUnavailable = errors.New("device: source unavailable")
)

// Source supplies external video.
type Source interface {
	// Fill copies the newest frame for the source id into dst, which is
	// sized and formatted per class. It returns ErrNoNewFrame when the
	// device has nothing fresher than the previous call, and
	// ErrSourceUnavailable when the device is gone.
	Fill(ctx context.Context, id string, class frame.Class, dst []byte) error
}

// Presenter consumes the composited program output, one frame per
// non-dropped tick. The lease is owned by the engine and valid only until
// PushFrame returns.
type Presenter interface {
	PushFrame(ctx context.Context, tick clock.Tick, l *pool.Lease) error
}
