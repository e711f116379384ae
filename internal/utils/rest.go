package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ErrorResponse is the body for plain rejections (401/403/5xx).
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// RetryResponse is the body for 429 rejections. RetryAfter is in seconds.
type RetryResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int64  `json:"retryAfter"`
}

// RespondWithError sends an error response
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{Error: message})
}

// RespondWithRetry sends a 429 response with a Retry-After header.
// retryAfter is rounded up so the client never retries too early.
func RespondWithRetry(w http.ResponseWriter, errMsg, message string, retryAfter time.Duration) {
	secs := int64((retryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
	RespondWithJSON(w, http.StatusTooManyRequests, RetryResponse{
		Error:      errMsg,
		Message:    message,
		RetryAfter: secs,
	})
}

// RespondWithServerError sends a 5xx response. Detail is suppressed unless
// the gateway runs outside production.
func RespondWithServerError(w http.ResponseWriter, code int, detail string, production bool) {
	resp := ErrorResponse{Error: http.StatusText(code)}
	if !production {
		resp.Message = detail
	}
	RespondWithJSON(w, code, resp)
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "Failed to encode response: "+err.Error(), http.StatusInternalServerError)
		return err
	}
	return nil
}
