package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"pricelink/src/broadcast"
	"pricelink/src/logger"
	"pricelink/src/prices"
)

// -----------------------------------------------------------------------------
// Poller keeps the cache warm for exactly the demand that currently has
// live subscribers and feeds the broadcaster, one combined payload per
// fiat. Ticks run on a fixed delay and never overlap: a slow upstream
// stretches the cycle instead of piling new ones on top.
// -----------------------------------------------------------------------------

type Poller struct {
	Broadcaster *broadcast.Broadcaster
	Prices      *prices.Service
	Logger      *logger.Logger

	Delay       time.Duration
	BatchSize   int
	Concurrency int

	running atomic.Bool
}

// -----------------------------------------------------------------------------

func NewPoller(b *broadcast.Broadcaster, p *prices.Service, delay time.Duration, batchSize int, concurrency int, log *logger.Logger) *Poller {
	if batchSize <= 0 {
		batchSize = 25
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Poller{
		Broadcaster: b,
		Prices:      p,
		Logger:      log,
		Delay:       delay,
		BatchSize:   batchSize,
		Concurrency: concurrency,
	}
}

// -----------------------------------------------------------------------------

// Run executes ticks until the context is canceled. The delay is measured
// from the end of one tick to the start of the next (fixed delay, not
// fixed rate).
func (p *Poller) Run(ctx context.Context) {
	timer := time.NewTimer(p.Delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		p.Tick(ctx)
		timer.Reset(p.Delay)
	}
}

// -----------------------------------------------------------------------------

// Tick runs one poll cycle. Reentrant calls are skipped outright.
func (p *Poller) Tick(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	defer p.running.Store(false)

	// Nobody is listening, don't touch the upstream at all.
	if p.Broadcaster.ActiveConnections() == 0 {
		return
	}

	requested := p.Broadcaster.SnapshotRequested()
	if len(requested) == 0 {
		return
	}

	for fiat, symbols := range requested {
		if len(symbols) == 0 {
			continue
		}
		if err := p.refreshFiat(ctx, fiat, symbols); err != nil {
			// One fiat failing must never abort the rest of the tick.
			p.Logger.Warning("Poller failed for fiat=%s symbols=%v: %v", fiat, symbols, err)
		}
	}
}

// -----------------------------------------------------------------------------

// refreshFiat fetches the fiat's full demand in bounded batches, merges
// the partial maps and publishes one combined payload.
func (p *Poller) refreshFiat(ctx context.Context, fiat string, symbols []string) error {
	allPrices := make(map[string]float64, len(symbols))
	source := "unknown"
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Concurrency)

	for i := 0; i < len(symbols); i += p.BatchSize {
		end := i + p.BatchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		chunk := symbols[i:end]

		g.Go(func() error {
			r, err := p.Prices.GetPrices(gctx, chunk, fiat)
			if err != nil {
				return err
			}

			mu.Lock()
			for sym, price := range r.Prices {
				allPrices[sym] = price
			}
			// Batches may come from a mix of cache and provider; the
			// last one to land simply wins the label.
			source = r.Source
			ts = r.Ts
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	p.Broadcaster.Publish(fiat, ts, source, allPrices)
	return nil
}
