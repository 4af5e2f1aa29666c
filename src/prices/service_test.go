package prices

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"pricelink/src/logger"
	"pricelink/src/metrics"
	"pricelink/src/pricecache"
)

// -----------------------------------------------------------------------------

type stubProvider struct {
	name   string
	prices map[string]float64
	err    error
	calls  int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) FetchPrices(_ context.Context, symbols []string, fiat string) (map[string]float64, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		if v, ok := p.prices[s]; ok {
			out[s] = v
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------

func newTestService(p *stubProvider, ttl time.Duration) *Service {
	return NewService(p, pricecache.NewCache(), ttl, logger.NewLogger("ERROR", "test"))
}

// -----------------------------------------------------------------------------

func TestGetPrices_ProviderHitPopulatesCache(t *testing.T) {
	p := &stubProvider{name: "coingecko", prices: map[string]float64{"BTC": 50000, "ETH": 3000}}
	s := newTestService(p, 3*time.Second)

	res, err := s.GetPrices(context.Background(), []string{"btc", "eth"}, "usd")
	require.NoError(t, err)
	require.Equal(t, "coingecko", res.Source)
	require.Equal(t, "USD", res.Fiat)
	require.Equal(t, map[string]float64{"BTC": 50000, "ETH": 3000}, res.Prices)

	// Second call inside the TTL is served from cache.
	res, err = s.GetPrices(context.Background(), []string{"BTC", "ETH"}, "USD")
	require.NoError(t, err)
	require.Equal(t, SourceCache, res.Source)
	require.Equal(t, 1, p.calls)
}

// -----------------------------------------------------------------------------

func TestGetPrices_NormalizationSharesCacheKey(t *testing.T) {
	p := &stubProvider{name: "coingecko", prices: map[string]float64{"BTC": 50000}}
	s := newTestService(p, 3*time.Second)

	_, err := s.GetPrices(context.Background(), []string{" btc ", "BTC"}, "usd")
	require.NoError(t, err)

	res, err := s.GetPrices(context.Background(), []string{"BTC"}, "USD")
	require.NoError(t, err)
	require.Equal(t, SourceCache, res.Source)
	require.Equal(t, 1, p.calls)
}

// -----------------------------------------------------------------------------

func TestGetPrices_StaleFallbackOnUpstreamFailure(t *testing.T) {
	p := &stubProvider{name: "coingecko", prices: map[string]float64{"BTC": 50000}}
	s := newTestService(p, -time.Second) // everything cached is immediately stale

	_, err := s.GetPrices(context.Background(), []string{"BTC"}, "USD")
	require.NoError(t, err)

	// Upstream dies; the stale entry still answers.
	p.err = errors.New("upstream down")

	res, err := s.GetPrices(context.Background(), []string{"BTC"}, "USD")
	require.NoError(t, err)
	require.Equal(t, SourceStaleCache, res.Source)
	require.Equal(t, map[string]float64{"BTC": 50000}, res.Prices)
}

// -----------------------------------------------------------------------------

func TestGetPrices_ColdCacheAndDeadUpstreamFails(t *testing.T) {
	p := &stubProvider{name: "coingecko", err: errors.New("upstream down")}
	s := newTestService(p, 3*time.Second)

	res, err := s.GetPrices(context.Background(), []string{"BTC"}, "USD")
	require.Error(t, err)
	require.Nil(t, res)
}

// -----------------------------------------------------------------------------

func TestGetPrices_UpstreamFailuresAreCounted(t *testing.T) {
	p := &stubProvider{name: "coingecko", err: errors.New("upstream down")}
	s := newTestService(p, 3*time.Second)

	counter := metrics.UpstreamErrors.WithLabelValues("coingecko")
	before := testutil.ToFloat64(counter)

	_, err := s.GetPrices(context.Background(), []string{"BTC"}, "USD")
	require.Error(t, err)
	require.Equal(t, before+1, testutil.ToFloat64(counter))
}

// -----------------------------------------------------------------------------

func TestGetPrices_FreshFetchRefreshesStaleEntry(t *testing.T) {
	p := &stubProvider{name: "coingecko", prices: map[string]float64{"BTC": 50000}}
	s := newTestService(p, -time.Second)

	_, err := s.GetPrices(context.Background(), []string{"BTC"}, "USD")
	require.NoError(t, err)

	// Upstream still healthy: a stale entry must not shadow a live fetch.
	p.prices["BTC"] = 51000

	res, err := s.GetPrices(context.Background(), []string{"BTC"}, "USD")
	require.NoError(t, err)
	require.Equal(t, "coingecko", res.Source)
	require.Equal(t, 51000.0, res.Prices["BTC"])
	require.Equal(t, 2, p.calls)
}

// -----------------------------------------------------------------------------

func TestGetPrices_ResultMapIsIsolated(t *testing.T) {
	p := &stubProvider{name: "coingecko", prices: map[string]float64{"BTC": 50000}}
	s := newTestService(p, 3*time.Second)

	res, err := s.GetPrices(context.Background(), []string{"BTC"}, "USD")
	require.NoError(t, err)

	// Mutating a result must not corrupt the cached entry.
	res.Prices["BTC"] = 0

	res, err = s.GetPrices(context.Background(), []string{"BTC"}, "USD")
	require.NoError(t, err)
	require.Equal(t, 50000.0, res.Prices["BTC"])
}
