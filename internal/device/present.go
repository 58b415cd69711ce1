package device

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vk/framegridgo/internal/clock"
	"github.com/vk/framegridgo/internal/pool"
)

// LogPresenter discards frames and periodically logs throughput. It is
// the default sink for the demo binary, where no real display driver is
// wired.
type LogPresenter struct {
	log   *slog.Logger
	every time.Duration

	mu       sync.Mutex
	frames   uint64
	lastLog  time.Time
	lastSeen uint64
}

// NewLogPresenter logs a summary line at most once per interval.
func NewLogPresenter(log *slog.Logger, interval time.Duration) *LogPresenter {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &LogPresenter{log: log, every: interval}
}

// PushFrame implements Presenter.
func (p *LogPresenter) PushFrame(ctx context.Context, tick clock.Tick, l *pool.Lease) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frames++
	now := time.Now()
	if p.lastLog.IsZero() {
		p.lastLog = now
		p.lastSeen = p.frames
		return nil
	}
	if elapsed := now.Sub(p.lastLog); elapsed >= p.every {
		fps := float64(p.frames-p.lastSeen) / elapsed.Seconds()
		p.log.Info("🖥️ Presented frames.", "fps", fps, "seq", tick.Seq, "class", l.Class().String())
		p.lastLog = now
		p.lastSeen = p.frames
	}
	return nil
}

// Frames returns the number of pushed frames.
func (p *LogPresenter) Frames() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

// PresentedFrame is one recorded push.
type PresentedFrame struct {
	Seq       uint64
	Timestamp time.Time
	FirstByte byte
	Size      int
}

// Recorder captures every pushed frame's metadata for assertions. An
// optional Delay simulates a slow display path.
type Recorder struct {
	Delay time.Duration
	Fail  error

	mu     sync.Mutex
	frames []PresentedFrame
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// PushFrame implements Presenter.
func (r *Recorder) PushFrame(ctx context.Context, tick clock.Tick, l *pool.Lease) error {
	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.Fail != nil {
		return r.Fail
	}

	data := l.Bytes()
	rec := PresentedFrame{Seq: tick.Seq, Timestamp: tick.Timestamp, Size: len(data)}
	if len(data) > 0 {
		rec.FirstByte = data[0]
	}

	r.mu.Lock()
	r.frames = append(r.frames, rec)
	r.mu.Unlock()
	return nil
}

// Frames returns a copy of everything recorded so far.
func (r *Recorder) Frames() []PresentedFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PresentedFrame, len(r.frames))
	copy(out, r.frames)
	return out
}

// Len returns the number of recorded frames.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}
