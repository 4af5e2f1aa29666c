package models

// -----------------------------------------------------------------------------
// MPlan - resolved limits for an API key. Immutable after resolution.
// -----------------------------------------------------------------------------

type MPlan struct {
	Name              string `json:"name"`
	RequestsPerMinute int    `json:"requests_per_minute"`
	MaxConnections    int    `json:"max_connections"`
	MaxSymbols        int    `json:"max_symbols"`
}
