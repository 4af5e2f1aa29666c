package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"pricelink/src/logger"
	"pricelink/src/models"
)

// -----------------------------------------------------------------------------
// Fixed-window request limiter.
//
// Windows are keyed by (apiKey, epochMinute); a new minute simply starts a
// new window, the old one is left for the sweeper. Counting is increment
// first, compare second, so a denied request still consumes a slot.
// Known limitation: bursts straddling a minute boundary can briefly reach
// up to 2x the nominal rate. That is the accepted trade-off of fixed
// windows versus sliding ones.
// -----------------------------------------------------------------------------

type window struct {
	minute int64
	count  atomic.Int64
}

// -----------------------------------------------------------------------------

type Limiter struct {
	Logger *logger.Logger

	retentionMinutes int64
	windows          sync.Map // "apiKey:epochMinute" -> *window

	now func() time.Time
}

// -----------------------------------------------------------------------------

func NewLimiter(retentionMinutes int, log *logger.Logger) *Limiter {
	if retentionMinutes <= 0 {
		retentionMinutes = 3
	}
	return &Limiter{
		Logger:           log,
		retentionMinutes: int64(retentionMinutes),
		now:              time.Now,
	}
}

// -----------------------------------------------------------------------------

// Check counts one request against the key's current minute window and
// decides whether it fits in limitPerMinute. Never blocks, never errors.
func (l *Limiter) Check(apiKey string, limitPerMinute int) models.MDecision {
	nowSec := l.now().Unix()
	epochMinute := nowSec / 60
	reset := (epochMinute + 1) * 60

	key := fmt.Sprintf("%s:%d", apiKey, epochMinute)
	v, _ := l.windows.LoadOrStore(key, &window{minute: epochMinute})
	w := v.(*window)

	used := int(w.count.Add(1))

	return models.MDecision{
		Allowed:       used <= limitPerMinute,
		Used:          used,
		Limit:         limitPerMinute,
		ResetEpochSec: reset,
	}
}

// -----------------------------------------------------------------------------

// Cleanup drops windows older than the retention horizon, bounding memory
// to O(active keys x retention minutes).
func (l *Limiter) Cleanup() {
	keepFrom := l.now().Unix()/60 - l.retentionMinutes

	removed := 0
	l.windows.Range(func(k, v interface{}) bool {
		if v.(*window).minute < keepFrom {
			l.windows.Delete(k)
			removed++
		}
		return true
	})

	if removed > 0 && l.Logger != nil {
		l.Logger.Debug("Swept %d expired rate windows", removed)
	}
}

// -----------------------------------------------------------------------------

// RunSweeper periodically runs Cleanup until the context is canceled.
func (l *Limiter) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}
