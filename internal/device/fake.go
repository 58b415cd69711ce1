package device

import (
	"context"
	"sync"

	"github.com/vk/framegridgo/internal/frame"
)

// FakeSource synthesizes deterministic frames in place of capture
// hardware. It backs the capture node in tests and demo runs: each fill
// paints a gradient that drifts with the fill count, so consecutive
// frames are distinguishable byte-wise.
type FakeSource struct {
	mu          sync.Mutex
	fills       map[string]uint64
	unavailable map[string]bool

	// RepeatEvery throttles freshness: when n > 1, only every n-th fill
	// per source has new content and the rest report ErrNoNewFrame.
	RepeatEvery int
}

// NewFakeSource creates a source with every id available and fresh on
// each fill.
func NewFakeSource() *FakeSource {
	return &FakeSource{
		fills:       make(map[string]uint64),
		unavailable: make(map[string]bool),
	}
}

// SetUnavailable toggles a source id into or out of the failed state.
func (f *FakeSource) SetUnavailable(id string, down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unavailable[id] = down
}

// Fills returns how many fills have produced fresh content for id.
func (f *FakeSource) Fills(id string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fills[id]
}

// Fill implements Source.
func (f *FakeSource) Fill(ctx context.Context, id string, class frame.Class, dst []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	if f.unavailable[id] {
		f.mu.Unlock()
		return ErrSourceUnavailable
	}
	f.fills[id]++
	n := f.fills[id]
	f.mu.Unlock()

	if f.RepeatEvery > 1 && n%uint64(f.RepeatEvery) != 1 {
		return ErrNoNewFrame
	}

	paint(class, dst, n)
	return nil
}

// paint writes a drifting diagonal gradient. The first payload byte
// encodes the fill count, which tests lean on.
func paint(class frame.Class, dst []byte, n uint64) {
	stride := class.Format.PixelStride()
	if stride == 0 {
		return
	}
	shift := byte(n)
	i := 0
	for y := 0; y < class.Height; y++ {
		for x := 0; x < class.Width; x++ {
			v := byte(x+y) + shift
			for c := 0; c < stride; c++ {
				dst[i] = v
				i++
			}
		}
	}
	dst[0] = shift
}
