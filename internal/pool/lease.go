package pool

import (
	"fmt"
	"sync/atomic"

	"github.com/vk/framegridgo/internal/frame"
)

// Lease is one handle on a pooled buffer. A freshly acquired lease is
// exclusive and writable; Publish switches it to read-shared, after which
// Clone hands out additional read handles. The buffer recycles when the
// last handle releases.
//
// Handles are not safe for concurrent use, but distinct handles on the
// same buffer are.
type Lease struct {
	pool   *Pool
	bucket *bucket
	buf    *frame.Buffer

	state    *leaseState
	released atomic.Bool
}

// leaseState is shared by every handle cloned from one acquire.
type leaseState struct {
	refs      atomic.Int32
	published atomic.Bool
}

// Class returns the buffer's class.
func (l *Lease) Class() frame.Class { return l.buf.Class() }

// Bytes returns the payload for reading. Released handles get nil.
func (l *Lease) Bytes() []byte {
	if l.released.Load() {
		return nil
	}
	return l.buf.Bytes()
}

// Writable returns the payload for writing. It fails unless this handle
// is the only one and the buffer is unpublished.
func (l *Lease) Writable() ([]byte, error) {
	if l.released.Load() {
		return nil, fmt.Errorf("writable %v: %w", l.Class(), ErrLeaseReleased)
	}
	if l.state.published.Load() || l.state.refs.Load() != 1 {
		return nil, fmt.Errorf("writable %v: %w", l.Class(), ErrBufferNotExclusive)
	}
	return l.buf.Bytes(), nil
}

// Published reports whether the buffer has entered read-shared mode.
func (l *Lease) Published() bool { return l.state.published.Load() }

// Publish ends the write phase. From here on the payload is frozen:
// Writable fails and Clone is allowed. Publishing twice is a no-op.
func (l *Lease) Publish() {
	if l.released.Load() {
		panic("pool: publish on released lease")
	}
	l.state.published.Store(true)
}

// Clone adds a read handle on a published buffer. Cloning an unpublished
// or released lease is a bug in the caller, not a recoverable condition.
func (l *Lease) Clone() *Lease {
	if l.released.Load() {
		panic("pool: clone of released lease")
	}
	if !l.state.published.Load() {
		panic("pool: clone of unpublished lease")
	}
	l.state.refs.Add(1)
	return &Lease{pool: l.pool, bucket: l.bucket, buf: l.buf, state: l.state}
}

// Release gives this handle back. The first call counts; repeated calls
// on the same handle are no-ops. When the last handle goes, the buffer
// returns to its class's free list.
func (l *Lease) Release() {
	if l.released.Swap(true) {
		return
	}
	if l.state.refs.Add(-1) == 0 {
		l.bucket.recycle(l.buf)
	}
}
