package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pricelink/src/logger"
)

// -----------------------------------------------------------------------------

func newTestLimiter(t *testing.T, at time.Time) *Limiter {
	t.Helper()
	l := NewLimiter(3, logger.NewLogger("ERROR", "test"))
	l.now = func() time.Time { return at }
	return l
}

// -----------------------------------------------------------------------------

func TestCheck_AllowsUpToLimitThenDenies(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 5, 0, time.UTC)
	l := newTestLimiter(t, at)

	for i := 1; i <= 60; i++ {
		d := l.Check("key-a", 60)
		require.True(t, d.Allowed, "request %d should be allowed", i)
		require.Equal(t, i, d.Used)
	}

	d := l.Check("key-a", 60)
	require.False(t, d.Allowed)
	require.Equal(t, 61, d.Used)
	require.Equal(t, 60, d.Limit)
	require.Equal(t, 0, d.Remaining())
}

// -----------------------------------------------------------------------------

func TestCheck_ResetIsStartOfNextMinute(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 42, 0, time.UTC)
	l := newTestLimiter(t, at)

	d := l.Check("key-a", 10)
	require.Equal(t, (at.Unix()/60+1)*60, d.ResetEpochSec)
}

// -----------------------------------------------------------------------------

func TestCheck_NewMinuteStartsFreshWindow(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 59, 0, time.UTC)
	l := newTestLimiter(t, at)

	for i := 0; i < 5; i++ {
		l.Check("key-a", 5)
	}
	require.False(t, l.Check("key-a", 5).Allowed)

	// The minute rolls over; the old window is simply superseded.
	l.now = func() time.Time { return at.Add(time.Minute) }

	d := l.Check("key-a", 5)
	require.True(t, d.Allowed)
	require.Equal(t, 1, d.Used)
}

// -----------------------------------------------------------------------------

func TestCheck_KeysAreIndependent(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 5, 0, time.UTC)
	l := newTestLimiter(t, at)

	l.Check("key-a", 2)
	l.Check("key-a", 2)
	require.False(t, l.Check("key-a", 2).Allowed)

	d := l.Check("key-b", 2)
	require.True(t, d.Allowed)
	require.Equal(t, 1, d.Used)
}

// -----------------------------------------------------------------------------

func TestCheck_CounterIsExactUnderConcurrency(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 5, 0, time.UTC)
	l := newTestLimiter(t, at)

	const (
		goroutines = 20
		perWorker  = 25
		limit      = 60
	)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if l.Check("key-a", limit).Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	// Increment is atomic, so exactly `limit` calls see Used <= limit.
	require.Equal(t, limit, allowed)
}

// -----------------------------------------------------------------------------

func TestCleanup_DropsOnlyExpiredWindows(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 5, 0, time.UTC)
	l := newTestLimiter(t, at)

	l.Check("old-key", 10)

	// Ten minutes later, the old window is past retention but the new
	// one is current.
	later := at.Add(10 * time.Minute)
	l.now = func() time.Time { return later }
	l.Check("new-key", 10)

	l.Cleanup()

	count := 0
	l.windows.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	require.Equal(t, 1, count)

	// The surviving window still carries its count.
	d := l.Check("new-key", 10)
	require.Equal(t, 2, d.Used)
}
