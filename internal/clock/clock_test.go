package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_Now_Monotonicity(t *testing.T) {
	clk := New()

	previous := clk.Now()
	for i := 0; i < 1000; i++ {
		current := clk.Now()
		require.True(t, current.After(previous), "Now should always increase")
		previous = current
	}
}

func TestClock_Now_FrozenSource(t *testing.T) {
	frozen := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clk := NewWithSource(func() time.Time { return frozen })

	first := clk.Now()
	second := clk.Now()
	third := clk.Now()

	assert.Equal(t, frozen, first)
	assert.Equal(t, frozen.Add(time.Nanosecond), second)
	assert.Equal(t, frozen.Add(2*time.Nanosecond), third)
}

func TestClock_Now_SourceGoesBackwards(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	readings := []time.Time{base, base.Add(-time.Hour), base.Add(time.Second)}
	i := 0
	clk := NewWithSource(func() time.Time {
		r := readings[i]
		i++
		return r
	})

	assert.Equal(t, base, clk.Now())
	assert.Equal(t, base.Add(time.Nanosecond), clk.Now())
	assert.Equal(t, base.Add(time.Second), clk.Now())
}

func TestClock_Observe(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clk := NewWithSource(func() time.Time { return base })

	remote := base.Add(time.Minute)
	clk.Observe(remote)
	assert.Equal(t, remote, clk.Last())
	assert.Equal(t, remote.Add(time.Nanosecond), clk.Now())

	// Observe прошлого времени ничего не меняет
	clk.Observe(base)
	assert.Equal(t, remote.Add(time.Nanosecond), clk.Last())
}

func TestClock_ConcurrentNowIsUnique(t *testing.T) {
	clk := NewWithSource(func() time.Time {
		return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	})

	const goroutines = 8
	const perGoroutine = 200

	var mu sync.Mutex
	seen := make(map[time.Time]struct{}, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				ts := clk.Now()
				mu.Lock()
				seen[ts] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
}
