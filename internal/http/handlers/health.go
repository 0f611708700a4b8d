package handlers

import (
	"context"
	"net/http"
	"time"
)

// Health reports liveness and, when a store is configured, whether it answers.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	if a.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Store.Ping(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("http: store ping failed")
			a.json(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "store": "unreachable"})
			return
		}
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
