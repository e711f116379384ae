package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"credgate/internal/storage"
	"credgate/internal/utils"
)

// HealthHandler reports gateway liveness and backing store reachability.
type HealthHandler struct {
	db    *storage.DB
	redis *redis.Client
}

func NewHealthHandler(db *storage.DB, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{
		"status":   "ok",
		"database": "ok",
		"redis":    "ok",
	}
	code := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		status["database"] = "unreachable"
		status["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}

	if err := h.redis.Ping(ctx).Err(); err != nil {
		// The gateway still admits with the local backstop, so a Redis
		// outage is degraded rather than down.
		status["redis"] = "unreachable"
		status["status"] = "degraded"
	}

	utils.RespondWithJSON(w, code, status)
}
