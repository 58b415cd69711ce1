package pool

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/framegridgo/internal/frame"
)

func newTestPool(t *testing.T, cfg Config) *Pool {
	t.Helper()
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
}

func TestAcquire_LeaseLifecycle(t *testing.T) {
	p := newTestPool(t, Config{HighWater: 4})
	class := frame.VideoClass(frame.FormatRGBA8, 8, 8)

	l, err := p.Acquire(context.Background(), class)
	require.NoError(t, err)
	assert.Equal(t, class, l.Class())

	// Exclusive phase: writable, not yet shareable.
	data, err := l.Writable()
	require.NoError(t, err)
	require.Len(t, data, class.Size())
	data[0] = 0xAB

	l.Publish()
	assert.True(t, l.Published())

	// Published phase: frozen payload, shareable.
	_, err = l.Writable()
	require.ErrorIs(t, err, ErrBufferNotExclusive)

	c := l.Clone()
	assert.Equal(t, byte(0xAB), c.Bytes()[0])

	l.Release()
	// The clone still holds the buffer.
	assert.Equal(t, byte(0xAB), c.Bytes()[0])
	assert.Equal(t, 1, p.Stats().Classes[class].Leased)

	c.Release()
	st := p.Stats().Classes[class]
	assert.Equal(t, 0, st.Leased)
	assert.Equal(t, 1, st.Free)
}

func TestAcquire_InvalidClass(t *testing.T) {
	p := newTestPool(t, Config{})

	_, err := p.Acquire(context.Background(), frame.VideoClass(frame.FormatRGBA8, 0, 0))
	require.ErrorIs(t, err, ErrInvalidClass)
}

func TestRelease_IdempotentPerHandle(t *testing.T) {
	p := newTestPool(t, Config{HighWater: 2})
	class := frame.ScalarClass()

	l, err := p.Acquire(context.Background(), class)
	require.NoError(t, err)
	l.Publish()
	c := l.Clone()

	// Double release of one handle must not free the clone's hold.
	l.Release()
	l.Release()
	assert.Equal(t, 1, p.Stats().Classes[class].Leased)
	assert.NotNil(t, c.Bytes())

	c.Release()
	assert.Equal(t, 0, p.Stats().Classes[class].Leased)

	// Released handles refuse further use.
	assert.Nil(t, l.Bytes())
	_, err = l.Writable()
	require.ErrorIs(t, err, ErrLeaseReleased)
}

func TestTryAcquire_Exhausted(t *testing.T) {
	p := newTestPool(t, Config{HighWater: 2})
	class := frame.VideoClass(frame.FormatGray8, 4, 4)

	a, err := p.TryAcquire(class)
	require.NoError(t, err)
	b, err := p.TryAcquire(class)
	require.NoError(t, err)

	_, err = p.TryAcquire(class)
	require.ErrorIs(t, err, ErrPoolExhausted)
	assert.Equal(t, uint64(1), p.Stats().Exhausted)

	a.Release()
	c, err := p.TryAcquire(class)
	require.NoError(t, err)

	b.Release()
	c.Release()
}

func TestAcquire_BlocksAtHighWater(t *testing.T) {
	// Three acquires against a budget of two: exactly one must block, and
	// it must complete once any lease frees up.
	p := newTestPool(t, Config{HighWater: 2})
	class := frame.VideoClass(frame.FormatRGBA8, 16, 16)
	ctx := context.Background()

	first, err := p.Acquire(ctx, class)
	require.NoError(t, err)
	second, err := p.Acquire(ctx, class)
	require.NoError(t, err)

	acquired := make(chan *Lease, 1)
	go func() {
		l, err := p.Acquire(ctx, class)
		if err != nil {
			panic(err)
		}
		acquired <- l
	}()

	select {
	case <-acquired:
		t.Fatal("third acquire should have blocked at the high-water mark")
	case <-time.After(50 * time.Millisecond):
	}

	first.Release()

	select {
	case third := <-acquired:
		third.Release()
	case <-time.After(time.Second):
		t.Fatal("blocked acquire did not resume after a release")
	}

	second.Release()
	st := p.Stats().Classes[class]
	assert.Equal(t, 2, st.Allocated, "budget must never be exceeded")
	assert.Equal(t, 0, st.Leased)
}

func TestAcquire_ContextCancelsWait(t *testing.T) {
	p := newTestPool(t, Config{HighWater: 1})
	class := frame.ScalarClass()

	held, err := p.Acquire(context.Background(), class)
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = p.Acquire(ctx, class)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWritable_FailsWithLiveClones(t *testing.T) {
	p := newTestPool(t, Config{HighWater: 2})

	l, err := p.Acquire(context.Background(), frame.ScalarClass())
	require.NoError(t, err)
	l.Publish()
	c := l.Clone()

	for _, handle := range []*Lease{l, c} {
		_, err := handle.Writable()
		require.ErrorIs(t, err, ErrBufferNotExclusive)
	}

	c.Release()
	l.Release()
}

func TestRecycle_ReusesBackingStorage(t *testing.T) {
	p := newTestPool(t, Config{HighWater: 1})
	class := frame.VideoClass(frame.FormatGray8, 2, 2)
	ctx := context.Background()

	l, err := p.Acquire(ctx, class)
	require.NoError(t, err)
	data, err := l.Writable()
	require.NoError(t, err)
	data[0] = 0x7F
	l.Publish()
	l.Release()

	// With a budget of one, the next acquire must hand back the recycled
	// buffer, previous contents and all.
	l2, err := p.Acquire(ctx, class)
	require.NoError(t, err)
	defer l2.Release()

	assert.Equal(t, byte(0x7F), l2.Bytes()[0])
	assert.Equal(t, 1, p.Stats().Classes[class].Allocated)
}

// TestConservation_UnderChurn hammers the pool from many goroutines and
// checks that no buffer is ever lost or duplicated.
func TestConservation_UnderChurn(t *testing.T) {
	p := newTestPool(t, Config{HighWater: 4})
	classes := []frame.Class{
		frame.VideoClass(frame.FormatRGBA8, 32, 32),
		frame.VideoClass(frame.FormatGray8, 64, 64),
		frame.ScalarClass(),
	}
	ctx := context.Background()

	const (
		workers          = 8
		cyclesPerWorker  = 1250
		clonesEveryCycle = 2
	)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < cyclesPerWorker; i++ {
				class := classes[(w+i)%len(classes)]
				l, err := p.Acquire(ctx, class)
				if err != nil {
					panic(err)
				}
				if data, err := l.Writable(); err == nil {
					data[0] = byte(i)
				}
				l.Publish()
				for c := 0; c < clonesEveryCycle; c++ {
					clone := l.Clone()
					_ = clone.Bytes()[0]
					clone.Release()
				}
				l.Release()
			}
		}(w)
	}
	wg.Wait()

	st := p.Stats()
	assert.Equal(t, uint64(workers*cyclesPerWorker), st.Acquires)
	for class, cs := range st.Classes {
		assert.Zerof(t, cs.Leased, "class %v leaked leases", class)
		assert.Equalf(t, cs.Allocated, cs.Free, "class %v lost buffers", class)
		assert.LessOrEqualf(t, cs.Allocated, 4, "class %v exceeded its budget", class)
	}
}

func TestPerClassOverride(t *testing.T) {
	small := frame.ScalarClass()
	p := newTestPool(t, Config{
		HighWater: 2,
		PerClass:  map[frame.Class]int{small: 6},
	})

	var leases []*Lease
	for i := 0; i < 6; i++ {
		l, err := p.TryAcquire(small)
		require.NoError(t, err)
		leases = append(leases, l)
	}
	_, err := p.TryAcquire(small)
	require.ErrorIs(t, err, ErrPoolExhausted)

	for _, l := range leases {
		l.Release()
	}
}
