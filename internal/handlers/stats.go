package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/joycompass/joycompass-backend/internal/services"
)

type StatsResponse struct {
	Success bool                      `json:"success"`
	Message string                    `json:"message,omitempty"`
	Stats   *services.HappinessStats  `json:"stats,omitempty"`
}

// GetStats returns the happiness dashboard overview for the authenticated
// user. Results are cached briefly in Redis; entry mutations invalidate
// the cache.
func GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAuth(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, StatsResponse{Success: false, Message: "Authentication required"})
		return
	}

	cacheKey := services.StatsCacheKey(userID)

	var cached services.HappinessStats
	if hit, err := statsCache.Get(cacheKey, &cached); err == nil && hit {
		writeJSON(w, http.StatusOK, StatsResponse{Success: true, Stats: &cached})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	entries, err := services.ListEntries(ctx, userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, StatsResponse{Success: false, Message: "Failed to load entries"})
		return
	}

	stats := services.ComputeStats(entries)
	statsCache.Set(cacheKey, stats, services.StatsCacheTTL)

	writeJSON(w, http.StatusOK, StatsResponse{Success: true, Stats: &stats})
}
