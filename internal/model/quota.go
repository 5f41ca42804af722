package model

import "time"

// QuotaDecision is the outcome of a single quota check. It is derived on every
// request and never persisted.
type QuotaDecision struct {
	Allowed      bool      `json:"allowed"`
	Used         int64     `json:"downloads_used"`
	Remaining    int64     `json:"downloads_remaining"`
	ResetAt      time.Time `json:"reset_time"`
	ResetInHours int       `json:"reset_in_hours"`
}

// UsageSummary is the short usage block embedded in download responses.
type UsageSummary struct {
	Used      int64 `json:"downloads_used"`
	Remaining int64 `json:"downloads_remaining"`
}
