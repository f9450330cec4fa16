package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/rusel95/AstroSvitla-sub001/internal/apperr"
	"github.com/rusel95/AstroSvitla-sub001/internal/astro"
	"github.com/rusel95/AstroSvitla-sub001/internal/chartservice"
	"github.com/rusel95/AstroSvitla-sub001/internal/mapping"
)

const maxRequestBytes = 1 << 20

var imageContentTypes = map[string]string{
	"svg":  "image/svg+xml",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
}

// Handler holds API route handlers.
type Handler struct {
	svc          *chartservice.Service
	defaultHouse astro.HouseSystem
}

// NewHandler creates a new Handler. Requests that omit the house system
// fall back to defaultHouse.
func NewHandler(svc *chartservice.Service, defaultHouse astro.HouseSystem) *Handler {
	if defaultHouse == "" {
		defaultHouse = astro.Placidus
	}
	return &Handler{svc: svc, defaultHouse: defaultHouse}
}

// GenerateChart handles POST /api/charts.
//
//	@Summary		Generate (or fetch from cache) the natal chart for a birth query
//	@Tags			charts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		GenerateChartRequest	true	"Birth data"
//	@Success		200		{object}	astro.NatalChart
//	@Failure		400		{object}	errResponse
//	@Failure		429		{object}	errResponse	"Local quota exhausted; Retry-After header set"
//	@Failure		502		{object}	errResponse	"Provider rejected credentials or returned an unusable chart"
//	@Failure		503		{object}	errResponse	"Offline with no cached chart, or provider unavailable"
//	@Security		BearerAuth
//	@Router			/charts [post]
func (h *Handler) GenerateChart(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	var req GenerateChartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Birth.HouseSystem == "" {
		req.Birth.HouseSystem = h.defaultHouse
	}

	chart, err := h.svc.Generate(r.Context(), req.Birth, req.ForceRefresh)
	if err != nil {
		h.writeChartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

// ListCharts handles GET /api/charts.
//
//	@Summary		List cached charts, most recently used first
//	@Tags			charts
//	@Produce		json
//	@Success		200	{object}	ChartListResponse
//	@Security		BearerAuth
//	@Router			/charts [get]
func (h *Handler) ListCharts(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		slog.Error("list charts failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if items == nil {
		items = []ChartSummary{}
	}
	writeJSON(w, http.StatusOK, ChartListResponse{Charts: items, Total: len(items)})
}

// GetChart handles GET /api/charts/{fingerprint}.
//
//	@Summary		Get a cached chart by fingerprint
//	@Tags			charts
//	@Produce		json
//	@Param			fingerprint	path		string	true	"Chart fingerprint"
//	@Success		200			{object}	astro.NatalChart
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/charts/{fingerprint} [get]
func (h *Handler) GetChart(w http.ResponseWriter, r *http.Request) {
	fingerprint := chi.URLParam(r, "fingerprint")
	chart, err := h.svc.Cached(r.Context(), fingerprint)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get chart failed",
				slog.String("fingerprint", fingerprint),
				slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

// DeleteChart handles DELETE /api/charts/{fingerprint}.
//
//	@Summary		Delete a cached chart and its wheel image
//	@Tags			charts
//	@Param			fingerprint	path	string	true	"Chart fingerprint"
//	@Success		204			"Chart deleted"
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/charts/{fingerprint} [delete]
func (h *Handler) DeleteChart(w http.ResponseWriter, r *http.Request) {
	fingerprint := chi.URLParam(r, "fingerprint")
	if err := h.svc.Delete(r.Context(), fingerprint); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("delete chart failed",
				slog.String("fingerprint", fingerprint),
				slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChartImage handles GET /api/charts/{fingerprint}/image.
//
//	@Summary		Get the rendered wheel image for a cached chart
//	@Tags			charts
//	@Produce		image/svg+xml
//	@Param			fingerprint	path	string	true	"Chart fingerprint"
//	@Success		200			{file}	binary
//	@Failure		404			{object}	errResponse	"Chart unknown or generated without an image"
//	@Security		BearerAuth
//	@Router			/charts/{fingerprint}/image [get]
func (h *Handler) ChartImage(w http.ResponseWriter, r *http.Request) {
	fingerprint := chi.URLParam(r, "fingerprint")
	data, format, err := h.svc.Image(r.Context(), fingerprint)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("chart has no image"))
		} else {
			slog.Error("chart image failed",
				slog.String("fingerprint", fingerprint),
				slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}

	ct, ok := imageContentTypes[format]
	if !ok {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// PurgeStale handles DELETE /api/charts/stale.
//
//	@Summary		Delete every chart older than the staleness horizon
//	@Tags			charts
//	@Produce		json
//	@Success		200	{object}	StalePurgeResponse
//	@Security		BearerAuth
//	@Router			/charts/stale [delete]
func (h *Handler) PurgeStale(w http.ResponseWriter, r *http.Request) {
	removed, err := h.svc.DeleteStale(r.Context())
	if err != nil {
		slog.Error("purge stale failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, StalePurgeResponse{Removed: removed})
}

// Usage handles GET /api/usage.
//
//	@Summary		Current provider quota consumption
//	@Tags			usage
//	@Produce		json
//	@Success		200	{object}	UsageResponse
//	@Security		BearerAuth
//	@Router			/usage [get]
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Usage(r.Context()))
}

// writeChartError maps generation failures onto HTTP statuses: caller
// mistakes are 4xx, provider faults are 502, and anything transient is
// 503 so clients know to retry.
func (h *Handler) writeChartError(w http.ResponseWriter, err error) {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		writeJSON(w, http.StatusBadRequest, errorBody(verrs.Error()))
		return
	}
	var rl *apperr.RateLimitedError
	if errors.As(err, &rl) {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(rl.RetryAfter)))
		writeJSON(w, http.StatusTooManyRequests, errorBody(rl.Error()))
		return
	}
	if me, ok := mapping.AsMappingError(err); ok {
		writeJSON(w, http.StatusBadGateway, errorBody("provider chart rejected: "+me.Error()))
		return
	}

	switch {
	case errors.Is(err, apperr.ErrConnectivityRequired):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("connectivity required: no cached chart and the provider is unreachable"))
	case errors.Is(err, apperr.ErrUnauthorized):
		writeJSON(w, http.StatusBadGateway, errorBody("provider rejected credentials"))
	case errors.Is(err, apperr.ErrInvalidResponse):
		writeJSON(w, http.StatusBadGateway, errorBody("provider returned an unusable response"))
	case errors.Is(err, apperr.ErrServiceUnavailable),
		errors.Is(err, apperr.ErrNetwork),
		errors.Is(err, apperr.ErrServerRateLimited):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("provider unavailable"))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	default:
		slog.Error("generate chart failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// retryAfterSeconds rounds the wait up to whole seconds, never below one.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
