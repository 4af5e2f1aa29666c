package interfaces

import "pricelink/src/models"

// -----------------------------------------------------------------------------
// IDatabase defines the contract for storage operations.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// GetAPIKey returns the stored record for a key, or nil when unknown.
	GetAPIKey(key string) (*models.MAPIKeyRecord, error)

	// -----------------------------------------------------------------------------

	// ResolveSymbolIDs maps ticker symbols to provider asset ids.
	// Unknown symbols are simply absent from the result.
	ResolveSymbolIDs(symbols []string) (map[string]string, error)

	// -----------------------------------------------------------------------------

	// ListSymbols returns every supported ticker symbol.
	ListSymbols() ([]string, error)

	// -----------------------------------------------------------------------------

	// ListFiats returns every supported quote currency.
	ListFiats() ([]string, error)

	// -----------------------------------------------------------------------------

	// SeedDev inserts development API keys and the default symbol map.
	SeedDev() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
