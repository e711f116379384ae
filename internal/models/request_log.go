package models

import (
	"time"
)

// RequestLog is an immutable audit record, one per completed request.
// It is written by the post-response hook and never consulted for
// admission decisions; retention/pruning is handled outside the gateway.
type RequestLog struct {
	APIKeyID       string    `db:"api_key_id"`
	Endpoint       string    `db:"endpoint"`
	Method         string    `db:"method"`
	StatusCode     int       `db:"status_code"`
	ResponseTimeMS int       `db:"response_time_ms"`
	IPAddress      string    `db:"ip_address"`
	UserAgent      string    `db:"user_agent"`
	Timestamp      time.Time `db:"timestamp"`
}
