package interfaces

import "context"

// -----------------------------------------------------------------------------
// IPriceProvider is the upstream quote source boundary.
// -----------------------------------------------------------------------------

type IPriceProvider interface {

	// Name identifies the provider in result sources and logs.
	Name() string

	// -----------------------------------------------------------------------------

	// FetchPrices returns symbol -> price for a bounded batch of symbols.
	// Any failure (network, rate limit, bad payload) is returned as an
	// opaque error; callers do not branch on the cause.
	FetchPrices(ctx context.Context, symbols []string, fiat string) (map[string]float64, error)
}
