package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/vk/framegridgo/internal/frame"
)

var (
	// ErrPoolExhausted reports a TryAcquire against a class with no free
	// budget left.
	ErrPoolExhausted = errors.New("pool: exhausted")

	// ErrBufferNotExclusive reports a write attempt on a lease that is
	// published or has live clones.
	ErrBufferNotExclusive = errors.New("pool: buffer not exclusive")

	// ErrLeaseReleased reports use of a lease handle after its Release.
	ErrLeaseReleased = errors.New("pool: lease released")

	// ErrInvalidClass reports an acquire for a class with no valid size.
	ErrInvalidClass = errors.New("pool: invalid class")
)

// DefaultHighWater is the per-class buffer budget when Config leaves it
// unset.
const DefaultHighWater = 8

// Config sizes the pool.
type Config struct {
	// HighWater caps the number of buffers per class.
	HighWater int
	// PerClass overrides the cap for specific classes.
	PerClass map[frame.Class]int
}

// Pool hands out leased frame buffers grouped by class. All methods are
// safe for concurrent use.
type Pool struct {
	log *slog.Logger
	cfg Config

	mu      sync.Mutex
	buckets map[frame.Class]*bucket

	acquires  atomic.Uint64
	exhausted atomic.Uint64
}

// New creates an empty pool. Buffers are allocated lazily, class by class,
// as acquires arrive.
func New(log *slog.Logger, cfg Config) *Pool {
	if cfg.HighWater <= 0 {
		cfg.HighWater = DefaultHighWater
	}
	return &Pool{
		log:     log,
		cfg:     cfg,
		buckets: make(map[frame.Class]*bucket),
	}
}

// bucket owns the budget and free list for one class. The token channel
// starts full; holding a buffer means holding one of its tokens.
type bucket struct {
	class  frame.Class
	tokens chan struct{}

	mu        sync.Mutex
	free      []*frame.Buffer
	allocated int
}

func (p *Pool) bucket(class frame.Class) *bucket {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.buckets[class]
	if !ok {
		high := p.cfg.HighWater
		if override, ok := p.cfg.PerClass[class]; ok && override > 0 {
			high = override
		}
		b = &bucket{class: class, tokens: make(chan struct{}, high)}
		for i := 0; i < high; i++ {
			b.tokens <- struct{}{}
		}
		p.buckets[class] = b
	}
	return b
}

// Acquire returns an exclusive lease on a buffer of the class, blocking
// while the class is at its high-water mark. The wait ends early when ctx
// does.
func (p *Pool) Acquire(ctx context.Context, class frame.Class) (*Lease, error) {
	if !class.Valid() {
		return nil, fmt.Errorf("acquire %v: %w", class, ErrInvalidClass)
	}
	b := p.bucket(class)

	select {
	case <-b.tokens:
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire %v: %w", class, ctx.Err())
	}
	return p.lease(b), nil
}

// TryAcquire is Acquire without the wait: it fails with ErrPoolExhausted
// when the class has no budget free right now.
func (p *Pool) TryAcquire(class frame.Class) (*Lease, error) {
	if !class.Valid() {
		return nil, fmt.Errorf("acquire %v: %w", class, ErrInvalidClass)
	}
	b := p.bucket(class)

	select {
	case <-b.tokens:
	default:
		p.exhausted.Add(1)
		return nil, fmt.Errorf("acquire %v: %w", class, ErrPoolExhausted)
	}
	return p.lease(b), nil
}

// lease takes a buffer from the bucket, growing it if the free list is
// empty. Caller has already consumed a token.
func (p *Pool) lease(b *bucket) *Lease {
	p.acquires.Add(1)

	b.mu.Lock()
	var buf *frame.Buffer
	grew := false
	if n := len(b.free); n > 0 {
		buf = b.free[n-1]
		b.free[n-1] = nil
		b.free = b.free[:n-1]
	} else {
		buf = frame.NewBuffer(b.class)
		b.allocated++
		grew = true
	}
	allocated := b.allocated
	b.mu.Unlock()

	if grew && p.log != nil {
		p.log.Debug("pool bucket grew", "class", b.class.String(), "allocated", allocated)
	}

	l := &Lease{pool: p, bucket: b, buf: buf, state: &leaseState{}}
	l.state.refs.Store(1)
	return l
}

// recycle returns a buffer to its bucket once the last lease handle is
// gone.
func (b *bucket) recycle(buf *frame.Buffer) {
	b.mu.Lock()
	b.free = append(b.free, buf)
	b.mu.Unlock()
	b.tokens <- struct{}{}
}

// ClassStats is the buffer accounting for one class. Allocated is always
// Free plus Leased; the pool never loses track of a buffer.
type ClassStats struct {
	Allocated int
	Free      int
	Leased    int
	HighWater int
}

// Stats reports per-class accounting plus lifetime counters.
type Stats struct {
	Classes   map[frame.Class]ClassStats
	Acquires  uint64
	Exhausted uint64
}

// Stats snapshots the pool's accounting.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	buckets := make([]*bucket, 0, len(p.buckets))
	for _, b := range p.buckets {
		buckets = append(buckets, b)
	}
	p.mu.Unlock()

	st := Stats{
		Classes:   make(map[frame.Class]ClassStats, len(buckets)),
		Acquires:  p.acquires.Load(),
		Exhausted: p.exhausted.Load(),
	}
	for _, b := range buckets {
		b.mu.Lock()
		st.Classes[b.class] = ClassStats{
			Allocated: b.allocated,
			Free:      len(b.free),
			Leased:    b.allocated - len(b.free),
			HighWater: cap(b.tokens),
		}
		b.mu.Unlock()
	}
	return st
}
