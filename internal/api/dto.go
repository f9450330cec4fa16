package api

import (
	"github.com/rusel95/AstroSvitla-sub001/internal/astro"
	"github.com/rusel95/AstroSvitla-sub001/internal/chartservice"
)

// GenerateChartRequest is the request body for generating a chart.
type GenerateChartRequest struct {
	Birth        astro.BirthQuery `json:"birth" validate:"required"`
	ForceRefresh bool             `json:"force_refresh" example:"false"`
}

// ChartSummary is a cache listing entry (aliased from the domain layer).
type ChartSummary = chartservice.ChartSummary

// ChartListResponse wraps cached chart listings.
type ChartListResponse struct {
	Charts []ChartSummary `json:"charts" validate:"required"`
	Total  int            `json:"total" example:"3" validate:"required"`
}

// UsageResponse is the quota report (aliased from the domain layer).
type UsageResponse = chartservice.UsageReport

// StalePurgeResponse is returned after purging stale charts.
type StalePurgeResponse struct {
	Removed int `json:"removed" example:"2" validate:"required"`
}
