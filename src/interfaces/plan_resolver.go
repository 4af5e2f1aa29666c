package interfaces

import "pricelink/src/models"

// -----------------------------------------------------------------------------
// IPlanResolver maps an opaque API key to its plan.
// -----------------------------------------------------------------------------

type IPlanResolver interface {

	// ResolvePlan returns the plan for an active, unexpired key,
	// or nil when the key should be treated as unauthorized.
	ResolvePlan(apiKey string) *models.MPlan
}
