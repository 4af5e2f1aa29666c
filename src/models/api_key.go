package models

import "time"

// -----------------------------------------------------------------------------
// MAPIKeyRecord - raw key row as stored; the keystore turns it into an MPlan.
// -----------------------------------------------------------------------------

type MAPIKeyRecord struct {
	Key       string     `json:"key"`
	Plan      string     `json:"plan"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expires_at"`
}
