package coingecko

import (
	"context"
	"encoding/json"
	"strings"

	"pricelink/src/helpers"
	"pricelink/src/interfaces"
	"pricelink/src/logger"
	"pricelink/src/models"
	"pricelink/src/network"
	"pricelink/src/validation"
)

// -----------------------------------------------------------------------------
// Source fetches spot prices from the CoinGecko simple price endpoint.
// Ticker symbols are translated to CoinGecko asset ids through the symbol
// table in storage; unknown symbols are silently absent from the result.
// -----------------------------------------------------------------------------

type Source struct {
	Config  *models.MConfig
	DB      interfaces.IDatabase
	Network *network.Manager
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSource(cfg *models.MConfig, db interfaces.IDatabase, netMgr *network.Manager, log *logger.Logger) *Source {
	return &Source{
		Config:  cfg,
		DB:      db,
		Network: netMgr,
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

func (s *Source) Name() string {
	return s.Config.Provider.Name
}

// -----------------------------------------------------------------------------

// FetchPrices implements interfaces.IPriceProvider. Callers are expected
// to keep batches at or under the configured batch size; the endpoint
// degrades with very long id lists.
func (s *Source) FetchPrices(ctx context.Context, symbols []string, fiat string) (map[string]float64, error) {
	vs := strings.ToLower(validation.NormalizeFiat(fiat))
	syms := validation.NormalizeSymbols(symbols)

	symToID, err := s.DB.ResolveSymbolIDs(syms)
	if err != nil {
		return nil, helpers.NewUpstreamError("symbol id lookup failed", err)
	}
	if len(symToID) == 0 {
		return map[string]float64{}, nil
	}

	ids := make([]string, 0, len(symToID))
	seen := make(map[string]struct{}, len(symToID))
	for _, sym := range syms {
		id, ok := symToID[sym]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	body, err := s.Network.Get(ctx, s.Config.Provider.BaseURL+"/simple/price", map[string]string{
		"ids":           strings.Join(ids, ","),
		"vs_currencies": vs,
	})
	if err != nil {
		return nil, helpers.NewUpstreamError("coingecko request failed", err)
	}

	// Response shape: {"bitcoin": {"usd": 100000.1}, ...}
	var resp map[string]map[string]float64
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, helpers.NewUpstreamError("coingecko returned malformed payload", err)
	}

	out := make(map[string]float64, len(syms))
	for _, sym := range syms {
		id, ok := symToID[sym]
		if !ok {
			continue
		}
		row, ok := resp[id]
		if !ok {
			continue
		}
		if price, ok := row[vs]; ok {
			out[sym] = price
		}
	}
	return out, nil
}
