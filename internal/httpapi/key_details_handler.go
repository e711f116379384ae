package httpapi

import (
	"net/http"

	"credgate/internal/middleware"
	"credgate/internal/quota"
	"credgate/internal/utils"
)

// KeyDetailsResponse reports a key's limits and current consumption. The
// caller authenticates with the key itself, so no identifiers beyond what
// the caller already holds are revealed.
type KeyDetailsResponse struct {
	UserID       string   `json:"user_id"`
	Status       string   `json:"status"`
	Scope        []string `json:"endpoints_allowed"`
	RateLimit    int      `json:"rate_limit"`
	DailyLimit   int      `json:"daily_limit"`
	MonthlyLimit int      `json:"monthly_limit"`
	Timezone     string   `json:"timezone"`
	Usage        KeyUsage `json:"usage"`
}

// KeyUsage is the consumption snapshot inside KeyDetailsResponse. Remaining
// values of -1 mean unlimited.
type KeyUsage struct {
	TotalRequests    int64 `json:"total_requests"`
	DailyRequests    int   `json:"daily_requests"`
	MonthlyRequests  int   `json:"monthly_requests"`
	DailyRemaining   int   `json:"daily_remaining"`
	MonthlyRemaining int   `json:"monthly_remaining"`
}

// KeyDetailsHandler serves GET /key/details behind the API key
// middleware. Counters are projected onto the key's current local date, so
// a stale row from yesterday reads as zero used today.
type KeyDetailsHandler struct {
	tracker *quota.Tracker
}

func NewKeyDetailsHandler(tracker *quota.Tracker) *KeyDetailsHandler {
	return &KeyDetailsHandler{tracker: tracker}
}

func (h *KeyDetailsHandler) Details(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	record, ok := middleware.GetAPIKeyRecord(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "API key is required")
		return
	}

	snap, localDate, err := h.tracker.Snapshot(r.Context(), record)
	if err != nil {
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
		return
	}

	daily, monthly := quota.EffectiveCounters(snap, localDate)

	usage := KeyUsage{
		TotalRequests:    snap.TotalRequests,
		DailyRequests:    daily,
		MonthlyRequests:  monthly,
		DailyRemaining:   remaining(record.DailyLimit, daily),
		MonthlyRemaining: remaining(record.MonthlyLimit, monthly),
	}

	utils.RespondWithJSON(w, http.StatusOK, KeyDetailsResponse{
		UserID:       record.UserID,
		Status:       record.Status,
		Scope:        record.Scope,
		RateLimit:    record.RateLimit,
		DailyLimit:   record.DailyLimit,
		MonthlyLimit: record.MonthlyLimit,
		Timezone:     record.Timezone,
		Usage:        usage,
	})
}

func remaining(limit, used int) int {
	if limit <= 0 {
		return -1
	}
	if used >= limit {
		return 0
	}
	return limit - used
}
