package prices

import (
	"context"
	"time"

	"pricelink/src/interfaces"
	"pricelink/src/logger"
	"pricelink/src/metrics"
	"pricelink/src/models"
	"pricelink/src/pricecache"
	"pricelink/src/validation"
)

// -----------------------------------------------------------------------------
// Service orchestrates cache and upstream provider.
//
// Resilience contract: a request only fails when the cache has no entry at
// all for the key AND the upstream call fails. Any prior data, even past
// its TTL, is served as "stale-cache" instead of an error. An empty price
// map is never fabricated on failure.
// -----------------------------------------------------------------------------

const (
	SourceCache      = "cache"
	SourceStaleCache = "stale-cache"
)

// -----------------------------------------------------------------------------

type Service struct {
	Provider interfaces.IPriceProvider
	Cache    *pricecache.Cache
	Logger   *logger.Logger
	TTL      time.Duration
}

// -----------------------------------------------------------------------------

func NewService(provider interfaces.IPriceProvider, cache *pricecache.Cache, ttl time.Duration, log *logger.Logger) *Service {
	return &Service{
		Provider: provider,
		Cache:    cache,
		Logger:   log,
		TTL:      ttl,
	}
}

// -----------------------------------------------------------------------------

// GetPrices resolves prices for the symbols in fiat, preferring a fresh
// cache entry, then the provider, then a stale cache entry.
func (s *Service) GetPrices(ctx context.Context, symbols []string, fiat string) (*models.MPriceResult, error) {
	syms := validation.NormalizeSymbols(symbols)
	f := validation.NormalizeFiat(fiat)
	key := pricecache.Key(f, syms)

	now := time.Now()
	entry := s.Cache.Get(key)

	// 1) fresh cache hit
	if entry != nil && entry.Fresh(now) {
		return s.result(entry.Prices, f, SourceCache), nil
	}

	// 2) upstream provider
	fresh, err := s.Provider.FetchPrices(ctx, syms, f)
	if err == nil {
		s.Cache.Put(key, fresh, s.TTL)
		return s.result(fresh, f, s.Provider.Name()), nil
	}

	metrics.UpstreamErrors.WithLabelValues(s.Provider.Name()).Inc()
	s.Logger.Warning("Upstream error provider=%s fiat=%s symbols=%v: %v", s.Provider.Name(), f, syms, err)

	// 3) stale fallback
	if entry != nil {
		return s.result(entry.Prices, f, SourceStaleCache), nil
	}

	// 4) cold cache and dead upstream: surface the failure
	return nil, err
}

// -----------------------------------------------------------------------------

func (s *Service) result(prices map[string]float64, fiat, source string) *models.MPriceResult {
	cp := make(map[string]float64, len(prices))
	for k, v := range prices {
		cp[k] = v
	}
	return &models.MPriceResult{
		Prices: cp,
		Fiat:   fiat,
		Source: source,
		Ts:     time.Now().UTC().Format(time.RFC3339Nano),
	}
}
