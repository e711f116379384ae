package models

import (
	"time"
)

// Usage is the per-key counter row, one-to-one with APIKey. Daily and monthly
// counters roll over at the key's local boundaries; TotalRequests never resets.
// LastRequestDate is a calendar date in the key's timezone, which is what the
// rollover comparison in the admission statement runs against.
type Usage struct {
	APIKeyID        string    `db:"api_key_id"`
	TotalRequests   int64     `db:"total_requests"`
	DailyRequests   int       `db:"daily_requests"`
	MonthlyRequests int       `db:"monthly_requests"`
	LastRequestDate time.Time `db:"last_request_date"`
	UpdatedAt       time.Time `db:"updated_at"`
}
