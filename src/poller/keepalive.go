package poller

import (
	"context"
	"time"

	"pricelink/src/broadcast"
	"pricelink/src/logger"
)

// -----------------------------------------------------------------------------
// KeepAlive pushes ping events on its own fixed period, independent of
// price availability, so intermediary proxies don't reap idle streams.
// -----------------------------------------------------------------------------

type KeepAlive struct {
	Broadcaster *broadcast.Broadcaster
	Logger      *logger.Logger
	Interval    time.Duration
}

// -----------------------------------------------------------------------------

func NewKeepAlive(b *broadcast.Broadcaster, interval time.Duration, log *logger.Logger) *KeepAlive {
	return &KeepAlive{
		Broadcaster: b,
		Logger:      log,
		Interval:    interval,
	}
}

// -----------------------------------------------------------------------------

// Run pings every live subscription on each tick until canceled.
func (k *KeepAlive) Run(ctx context.Context) {
	ticker := time.NewTicker(k.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.Broadcaster.BroadcastPing()
		}
	}
}
