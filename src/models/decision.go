package models

// -----------------------------------------------------------------------------
// MDecision - result of a rate limit check for the current minute window.
// -----------------------------------------------------------------------------

type MDecision struct {
	Allowed       bool  `json:"allowed"`
	Used          int   `json:"used"`
	Limit         int   `json:"limit"`
	ResetEpochSec int64 `json:"reset_epoch_sec"`
}

// -----------------------------------------------------------------------------

// Remaining returns how many requests are left in the current window.
func (d MDecision) Remaining() int {
	if r := d.Limit - d.Used; r > 0 {
		return r
	}
	return 0
}
