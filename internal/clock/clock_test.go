package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicker_EmitsMonotonicTicks(t *testing.T) {
	src := NewTicker(5*time.Millisecond, 4*time.Millisecond)
	defer src.Stop()

	var prev Tick
	for i := 0; i < 3; i++ {
		select {
		case tick := <-src.Ticks():
			if i > 0 {
				assert.Greater(t, tick.Seq, prev.Seq)
				assert.False(t, tick.Timestamp.Before(prev.Timestamp))
			}
			assert.Equal(t, 4*time.Millisecond, tick.Budget())
			prev = tick
		case <-time.After(time.Second):
			t.Fatal("ticker did not fire")
		}
	}
}

func TestTicker_DropsWhileReceiverBusy(t *testing.T) {
	src := NewTicker(time.Millisecond, time.Millisecond)
	defer src.Stop()

	<-src.Ticks()
	// Simulate a slow frame: let many periods elapse before reading again.
	time.Sleep(30 * time.Millisecond)

	// One tick was parked in the channel while we slept; everything after
	// it was dropped, which the next delivery's seq gap reveals.
	buffered := <-src.Ticks()
	next := <-src.Ticks()

	assert.Greater(t, next.Seq, buffered.Seq+1, "seq gap should reveal the dropped ticks")
	assert.Greater(t, src.Dropped(), uint64(0))
}

func TestTicker_StopClosesChannel(t *testing.T) {
	src := NewTicker(time.Millisecond, 0)
	src.Stop()
	src.Stop() // idempotent

	// Drain whatever was in flight; the channel must end closed.
	for {
		if _, ok := <-src.Ticks(); !ok {
			return
		}
	}
}

func TestTicker_BudgetDefaultsToPeriod(t *testing.T) {
	src := NewTicker(10*time.Millisecond, 0)
	defer src.Stop()

	tick := <-src.Ticks()
	assert.Equal(t, 10*time.Millisecond, tick.Budget())
}

func TestManual_FireDeliversSynchronously(t *testing.T) {
	src := NewManual()

	got := make(chan Tick, 3)
	go func() {
		for tick := range src.Ticks() {
			got <- tick
		}
		close(got)
	}()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		fired := src.Fire(base.Add(time.Duration(i)*33*time.Millisecond), 33*time.Millisecond)
		received := <-got
		require.Equal(t, fired, received)
		assert.Equal(t, uint64(i+1), received.Seq)
	}

	src.Stop()
	_, ok := <-got
	assert.False(t, ok)
}

func TestTick_Remaining(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := Tick{Seq: 1, Timestamp: ts, Deadline: ts.Add(33 * time.Millisecond)}

	assert.Equal(t, 33*time.Millisecond, tick.Remaining(ts))
	assert.Equal(t, 13*time.Millisecond, tick.Remaining(ts.Add(20*time.Millisecond)))
	assert.Negative(t, tick.Remaining(ts.Add(50*time.Millisecond)))
}
