package models

// -----------------------------------------------------------------------------
// MPriceResult - outcome of a price lookup, including where it came from.
// Source is one of "cache", "stale-cache" or the provider name.
// -----------------------------------------------------------------------------

type MPriceResult struct {
	Prices map[string]float64 `json:"prices"`
	Fiat   string             `json:"fiat"`
	Source string             `json:"source"`
	Ts     string             `json:"ts"`
}
