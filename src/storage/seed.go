package storage

// -----------------------------------------------------------------------------
// Development seed data shared by both storage backends.
// -----------------------------------------------------------------------------

type seedKey struct {
	Key    string
	Plan   string
	Status string
}

var devAPIKeys = []seedKey{
	{Key: "dev-free-key", Plan: "free", Status: "active"},
	{Key: "dev-pro-key", Plan: "pro", Status: "active"},
	{Key: "dev-business-key", Plan: "business", Status: "active"},
	{Key: "dev-revoked-key", Plan: "free", Status: "revoked"},
}

// defaultSymbolIDs maps ticker symbols to CoinGecko asset ids.
var defaultSymbolIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"XRP":  "ripple",
	"ADA":  "cardano",
	"DOGE": "dogecoin",
	"DOT":  "polkadot",
	"LINK": "chainlink",
	"LTC":  "litecoin",
	"AVAX": "avalanche-2",
}

var defaultFiats = []string{"USD", "EUR", "MXN", "GBP", "JPY"}
