package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rusel95/AstroSvitla-sub001/internal/astro"
	"github.com/rusel95/AstroSvitla-sub001/internal/chartservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *chartservice.Service, defaultHouse astro.HouseSystem, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, defaultHouse)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Chart acquisition and cache management.
	r.Post("/charts", h.GenerateChart)
	r.Get("/charts", h.ListCharts)
	r.Delete("/charts/stale", h.PurgeStale)
	r.Get("/charts/{fingerprint}", h.GetChart)
	r.Delete("/charts/{fingerprint}", h.DeleteChart)
	r.Get("/charts/{fingerprint}/image", h.ChartImage)

	// Quota.
	r.Get("/usage", h.Usage)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
