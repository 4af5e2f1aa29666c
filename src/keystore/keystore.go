package keystore

import (
	"strings"
	"time"

	"pricelink/src/interfaces"
	"pricelink/src/logger"
	"pricelink/src/models"
)

// -----------------------------------------------------------------------------
// Store resolves an opaque API key to its plan limits. A key resolves only
// when it exists, is active and has not expired; anything else is treated
// as unauthorized by returning nil.
// -----------------------------------------------------------------------------

const (
	StatusActive  = "active"
	StatusRevoked = "revoked"
)

// planCatalog is the static plan table. Plans are immutable records; the
// database stores only the plan name per key.
var planCatalog = map[string]models.MPlan{
	"free":     {Name: "free", RequestsPerMinute: 60, MaxConnections: 1, MaxSymbols: 10},
	"pro":      {Name: "pro", RequestsPerMinute: 120, MaxConnections: 2, MaxSymbols: 25},
	"business": {Name: "business", RequestsPerMinute: 600, MaxConnections: 5, MaxSymbols: 50},
}

// -----------------------------------------------------------------------------

type Store struct {
	DB     interfaces.IDatabase
	Logger *logger.Logger

	now func() time.Time
}

// -----------------------------------------------------------------------------

func NewStore(db interfaces.IDatabase, log *logger.Logger) *Store {
	return &Store{
		DB:     db,
		Logger: log,
		now:    time.Now,
	}
}

// -----------------------------------------------------------------------------

// ResolvePlan implements interfaces.IPlanResolver.
func (s *Store) ResolvePlan(apiKey string) *models.MPlan {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil
	}

	rec, err := s.DB.GetAPIKey(key)
	if err != nil {
		s.Logger.Error("API key lookup failed: %v", err)
		return nil
	}
	if rec == nil {
		return nil
	}

	if strings.ToLower(rec.Status) != StatusActive {
		return nil
	}
	if rec.ExpiresAt != nil && rec.ExpiresAt.Before(s.now()) {
		return nil
	}

	plan, ok := planCatalog[strings.ToLower(rec.Plan)]
	if !ok {
		s.Logger.Warning("API key %q has unknown plan %q", key, rec.Plan)
		return nil
	}

	cp := plan
	return &cp
}

// -----------------------------------------------------------------------------

// Plans returns the static plan catalog, keyed by plan name.
func Plans() map[string]models.MPlan {
	out := make(map[string]models.MPlan, len(planCatalog))
	for name, plan := range planCatalog {
		out[name] = plan
	}
	return out
}
