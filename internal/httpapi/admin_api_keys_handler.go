package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/lib/pq"

	"credgate/internal/auth"
	"credgate/internal/models"
	"credgate/internal/quota"
	"credgate/internal/storage"
	"credgate/internal/utils"
)

// KeyAdminStore is the repository surface the admin handlers need.
type KeyAdminStore interface {
	Create(ctx context.Context, key *models.APIKey) error
	GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	UpdateByHash(ctx context.Context, keyHash string, patch storage.KeyPatch) (*models.APIKey, error)
	List(ctx context.Context) ([]models.APIKey, error)
}

// AdminAPIKeysHandler handles API key management endpoints
type AdminAPIKeysHandler struct {
	store   KeyAdminStore
	tracker *quota.Tracker
}

// NewAdminAPIKeysHandler creates a new admin API keys handler
func NewAdminAPIKeysHandler(store KeyAdminStore, tracker *quota.Tracker) *AdminAPIKeysHandler {
	return &AdminAPIKeysHandler{store: store, tracker: tracker}
}

// CreateAPIKeyRequest represents the request to create a new API key
type CreateAPIKeyRequest struct {
	UserID       string   `json:"user_id"`
	Scope        []string `json:"endpoints_allowed,omitempty"`
	RateLimit    int      `json:"rate_limit"`
	DailyLimit   int      `json:"daily_limit"`
	MonthlyLimit int      `json:"monthly_limit"`
	Timezone     string   `json:"timezone,omitempty"`
}

// UpdateAPIKeyRequest represents a partial update of an API key
type UpdateAPIKeyRequest struct {
	Status       *string  `json:"status,omitempty"`
	Scope        []string `json:"endpoints_allowed,omitempty"`
	RateLimit    *int     `json:"rate_limit,omitempty"`
	DailyLimit   *int     `json:"daily_limit,omitempty"`
	MonthlyLimit *int     `json:"monthly_limit,omitempty"`
	Timezone     *string  `json:"timezone,omitempty"`
}

// APIKeyResponse represents an API key response (without plaintext key or hash)
type APIKeyResponse struct {
	ID           string   `json:"id"`
	UserID       string   `json:"user_id"`
	Status       string   `json:"status"`
	Scope        []string `json:"endpoints_allowed"`
	RateLimit    int      `json:"rate_limit"`
	DailyLimit   int      `json:"daily_limit"`
	MonthlyLimit int      `json:"monthly_limit"`
	Timezone     string   `json:"timezone"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

// APIKeyCreatedResponse represents the response when creating a new API key.
// This is the ONLY time the plaintext key is returned.
type APIKeyCreatedResponse struct {
	APIKeyResponse
	Key string `json:"key"`
}

// sanitizeScope normalizes an endpoint allow-list: entries are lowercased,
// trimmed and deduplicated, and the "all" sentinel collapses the list to
// itself. An empty result is invalid.
func sanitizeScope(entries []string) ([]string, bool) {
	seen := make(map[string]bool, len(entries))
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" || seen[entry] {
			continue
		}
		if entry == models.ScopeAll {
			return []string{models.ScopeAll}, true
		}
		seen[entry] = true
		out = append(out, entry)
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// validTimezone reports whether the name resolves in the zoneinfo database.
func validTimezone(name string) bool {
	_, err := time.LoadLocation(name)
	return err == nil
}

// HandleKeys dispatches /admin/keys by method.
func (h *AdminAPIKeysHandler) HandleKeys(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.Create(w, r)
	case http.MethodGet:
		h.List(w, r)
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// Create handles POST /admin/keys - Create new API key
func (h *AdminAPIKeysHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if req.UserID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	// Defaults mirror a fresh key: full scope, 1000 requests per minute,
	// unlimited daily and monthly budgets, UTC boundaries.
	scope := []string{models.ScopeAll}
	if len(req.Scope) > 0 {
		var ok bool
		scope, ok = sanitizeScope(req.Scope)
		if !ok {
			utils.RespondWithError(w, http.StatusBadRequest, "endpoints_allowed must contain at least one endpoint")
			return
		}
	}

	if req.RateLimit == 0 {
		req.RateLimit = 1000
	}
	if req.RateLimit < 0 || req.DailyLimit < 0 || req.MonthlyLimit < 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Limits must not be negative")
		return
	}

	timezone := "UTC"
	if req.Timezone != "" {
		if !validTimezone(req.Timezone) {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid timezone")
			return
		}
		timezone = req.Timezone
	}

	plaintextKey, keyHash, err := auth.GenerateKey()
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate API key")
		return
	}

	apiKey := &models.APIKey{
		UserID:       req.UserID,
		KeyHash:      keyHash,
		Status:       models.StatusActive,
		Scope:        pq.StringArray(scope),
		RateLimit:    req.RateLimit,
		DailyLimit:   req.DailyLimit,
		MonthlyLimit: req.MonthlyLimit,
		Timezone:     timezone,
	}

	if err := h.store.Create(r.Context(), apiKey); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create API key")
		return
	}

	response := &APIKeyCreatedResponse{
		APIKeyResponse: toAPIKeyResponse(apiKey),
		Key:            plaintextKey,
	}
	utils.RespondWithJSON(w, http.StatusCreated, response)
}

// List handles GET /admin/keys - List all API keys
func (h *AdminAPIKeysHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.List(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list API keys")
		return
	}

	responses := make([]APIKeyResponse, 0, len(keys))
	for i := range keys {
		responses = append(responses, toAPIKeyResponse(&keys[i]))
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"items": responses,
		"count": len(responses),
	})
}

// HandleKey dispatches /admin/keys/{key_hash} by method. The key is
// addressed by the secret's hash so the admin surface never carries the
// plaintext.
func (h *AdminAPIKeysHandler) HandleKey(w http.ResponseWriter, r *http.Request) {
	keyHash := strings.TrimPrefix(r.URL.Path, "/admin/keys/")
	if keyHash == "" || strings.Contains(keyHash, "/") {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid key hash")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.details(w, r, keyHash)
	case http.MethodPatch:
		h.update(w, r, keyHash)
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// details handles GET /admin/keys/{key_hash} - record plus a live usage
// snapshot projected onto the key's current local date.
func (h *AdminAPIKeysHandler) details(w http.ResponseWriter, r *http.Request, keyHash string) {
	apiKey, err := h.store.GetByHash(r.Context(), keyHash)
	if err != nil {
		if err == storage.ErrAPIKeyNotFound {
			utils.RespondWithError(w, http.StatusNotFound, "API key not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get API key")
		return
	}

	record := &auth.APIKeyRecord{
		ID:           apiKey.ID.String(),
		UserID:       apiKey.UserID,
		Status:       apiKey.Status,
		Scope:        apiKey.Scope,
		RateLimit:    apiKey.RateLimit,
		DailyLimit:   apiKey.DailyLimit,
		MonthlyLimit: apiKey.MonthlyLimit,
		Timezone:     apiKey.Timezone,
	}

	snap, localDate, err := h.tracker.Snapshot(r.Context(), record)
	if err != nil {
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
		return
	}

	daily, monthly := quota.EffectiveCounters(snap, localDate)
	utils.RespondWithJSON(w, http.StatusOK, AdminKeyDetailsResponse{
		APIKeyResponse: toAPIKeyResponse(apiKey),
		Usage: KeyUsage{
			TotalRequests:    snap.TotalRequests,
			DailyRequests:    daily,
			MonthlyRequests:  monthly,
			DailyRemaining:   remaining(apiKey.DailyLimit, daily),
			MonthlyRemaining: remaining(apiKey.MonthlyLimit, monthly),
		},
	})
}

// AdminKeyDetailsResponse is the admin view of a key with its consumption.
type AdminKeyDetailsResponse struct {
	APIKeyResponse
	Usage KeyUsage `json:"usage"`
}

func (h *AdminAPIKeysHandler) update(w http.ResponseWriter, r *http.Request, keyHash string) {
	var req UpdateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	patch := storage.KeyPatch{
		RateLimit:    req.RateLimit,
		DailyLimit:   req.DailyLimit,
		MonthlyLimit: req.MonthlyLimit,
	}

	if req.Status != nil {
		status := strings.ToLower(*req.Status)
		switch status {
		case models.StatusActive, models.StatusSuspended, models.StatusRevoked:
			patch.Status = &status
		default:
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid status")
			return
		}
	}

	if req.Scope != nil {
		scope, ok := sanitizeScope(req.Scope)
		if !ok {
			utils.RespondWithError(w, http.StatusBadRequest, "endpoints_allowed must contain at least one endpoint")
			return
		}
		patch.Scope = scope
	}

	if req.Timezone != nil {
		if !validTimezone(*req.Timezone) {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid timezone")
			return
		}
		patch.Timezone = req.Timezone
	}

	if patch.RateLimit != nil && *patch.RateLimit < 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Limits must not be negative")
		return
	}
	if (patch.DailyLimit != nil && *patch.DailyLimit < 0) ||
		(patch.MonthlyLimit != nil && *patch.MonthlyLimit < 0) {
		utils.RespondWithError(w, http.StatusBadRequest, "Limits must not be negative")
		return
	}

	apiKey, err := h.store.UpdateByHash(r.Context(), keyHash, patch)
	if err != nil {
		if err == storage.ErrAPIKeyNotFound {
			utils.RespondWithError(w, http.StatusNotFound, "API key not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update API key")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, toAPIKeyResponse(apiKey))
}

// toAPIKeyResponse converts a models.APIKey to APIKeyResponse
func toAPIKeyResponse(key *models.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:           key.ID.String(),
		UserID:       key.UserID,
		Status:       key.Status,
		Scope:        []string(key.Scope),
		RateLimit:    key.RateLimit,
		DailyLimit:   key.DailyLimit,
		MonthlyLimit: key.MonthlyLimit,
		Timezone:     key.Timezone,
		CreatedAt:    key.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    key.UpdatedAt.Format(time.RFC3339),
	}
}
