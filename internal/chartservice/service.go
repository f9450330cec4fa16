// Package chartservice coordinates chart acquisition: cached entries are
// served without touching the network, everything else goes through the
// quota gate, the remote provider, the domain mapper and finally the
// local stores.
package chartservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rusel95/AstroSvitla-sub001/internal/apperr"
	"github.com/rusel95/AstroSvitla-sub001/internal/astro"
	"github.com/rusel95/AstroSvitla-sub001/internal/chartstore"
	"github.com/rusel95/AstroSvitla-sub001/internal/connectivity"
	"github.com/rusel95/AstroSvitla-sub001/internal/mapping"
	"github.com/rusel95/AstroSvitla-sub001/internal/provider"
	"github.com/rusel95/AstroSvitla-sub001/internal/ratelimit"
)

// Fetcher is the provider surface the service needs. *provider.Client
// satisfies it; tests substitute their own.
type Fetcher interface {
	FetchChartData(ctx context.Context, q astro.BirthQuery) (*provider.ChartData, error)
	FetchChartImage(ctx context.Context, q astro.BirthQuery) (*provider.ChartImage, error)
}

var _ Fetcher = (*provider.Client)(nil)

// AssetStore is the subset of the asset store the service uses.
type AssetStore interface {
	Save(id, format string, data []byte) error
	Load(id, format string) ([]byte, error)
	Delete(id, format string) error
}

// Config carries the service dependencies and cache tuning.
type Config struct {
	Charts   *chartstore.DB
	Assets   AssetStore
	Provider Fetcher
	Limiter  *ratelimit.Limiter
	Online   connectivity.Checker

	// MaxEntries bounds the chart cache; least recently used entries
	// are evicted past it. StaleAfter marks, but never expires, old
	// charts.
	MaxEntries int
	StaleAfter time.Duration

	// Notify receives lifecycle events ("generated", "refreshed",
	// "deleted") with the chart fingerprint. Optional.
	Notify func(kind, fingerprint string)

	Clock func() time.Time
}

// ChartSummary is a cache listing entry.
type ChartSummary struct {
	chartstore.Summary
	Stale bool `json:"stale"`
}

// UsageReport combines monthly consumption with the live window state.
type UsageReport struct {
	ratelimit.Usage
	WindowRemaining int `json:"window_remaining"`
}

// Service is safe for concurrent use.
type Service struct {
	charts     *chartstore.DB
	assets     AssetStore
	provider   Fetcher
	limiter    *ratelimit.Limiter
	online     connectivity.Checker
	maxEntries int
	staleAfter time.Duration
	notify     func(kind, fingerprint string)
	clock      func() time.Time
	logger     *slog.Logger
}

// New creates a chart service. Zero tuning fields fall back to a cache
// of 200 charts and a 30 day staleness horizon.
func New(cfg Config, logger *slog.Logger) *Service {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 200
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * 24 * time.Hour
	}
	if cfg.Online == nil {
		cfg.Online = connectivity.Static(true)
	}
	if cfg.Notify == nil {
		cfg.Notify = func(string, string) {}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Service{
		charts:     cfg.Charts,
		assets:     cfg.Assets,
		provider:   cfg.Provider,
		limiter:    cfg.Limiter,
		online:     cfg.Online,
		maxEntries: cfg.MaxEntries,
		staleAfter: cfg.StaleAfter,
		notify:     cfg.Notify,
		clock:      cfg.Clock,
		logger:     logger,
	}
}

// Generate returns the natal chart for the query, from cache when
// possible. A cache miss (or forceRefresh) validates connectivity,
// reserves the full request cost of one chart, fetches positions and
// wheel image in parallel, maps the result and caches it. The wheel
// image degrades: its failure still yields a chart, just without an
// asset reference.
func (s *Service) Generate(ctx context.Context, q astro.BirthQuery, forceRefresh bool) (*astro.NatalChart, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	fp := q.Fingerprint()

	if !forceRefresh {
		chart, err := s.charts.Load(fp)
		if err == nil {
			return chart, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	}

	if !s.online.Online(ctx) {
		// A stale cached chart beats no chart when there is no network.
		if chart, err := s.charts.Load(fp); err == nil {
			s.logger.Info("offline, serving cached chart", slog.String("fingerprint", fp))
			return chart, nil
		}
		return nil, fmt.Errorf("chartservice: generate %s: %w", fp, apperr.ErrConnectivityRequired)
	}

	decision, err := s.limiter.ReserveChart()
	if err != nil {
		// The in-memory window still advanced; losing the log entry
		// only matters across a restart.
		s.logger.Warn("request log persist failed", slog.String("error", err.Error()))
	}
	if !decision.Allowed {
		return nil, &apperr.RateLimitedError{RetryAfter: decision.RetryAfter}
	}

	// Data and image travel in parallel. Only the data call can fail
	// the generation; its error cancels the in-flight image request
	// through the group context, while an image failure just degrades.
	var (
		data   *provider.ChartData
		img    *provider.ChartImage
		imgErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.provider.FetchChartData(gctx, q)
		if err != nil {
			return err
		}
		data = d
		return nil
	})
	g.Go(func() error {
		i, err := s.provider.FetchChartImage(gctx, q)
		if err != nil {
			imgErr = err
			return nil
		}
		img = i
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	chart, err := mapping.BuildChart(data, q, s.clock().UTC())
	if err != nil {
		return nil, err
	}

	if imgErr != nil {
		s.logger.Warn("wheel image unavailable",
			slog.String("fingerprint", fp),
			slog.String("error", imgErr.Error()))
	}
	if img != nil {
		id := uuid.NewString()
		if err := s.assets.Save(id, img.Format, img.Data); err != nil {
			s.logger.Warn("asset write failed",
				slog.String("fingerprint", fp),
				slog.String("error", err.Error()))
		} else {
			chart.Image = &astro.AssetReference{ID: id, Format: img.Format}
		}
	}

	if err := s.charts.Save(chart); err != nil {
		// The chart is already paid for; return it even uncached.
		s.logger.Warn("chart cache write failed",
			slog.String("fingerprint", fp),
			slog.String("error", err.Error()))
	} else {
		s.evict()
	}

	kind := "generated"
	if forceRefresh {
		kind = "refreshed"
	}
	s.notify(kind, fp)
	return chart, nil
}

// Cached returns the stored chart without any network involvement.
func (s *Service) Cached(_ context.Context, fingerprint string) (*astro.NatalChart, error) {
	return s.charts.Load(fingerprint)
}

// List returns cached chart summaries, most recently used first, with
// entries older than the staleness horizon flagged.
func (s *Service) List(_ context.Context) ([]ChartSummary, error) {
	rows, err := s.charts.List()
	if err != nil {
		return nil, err
	}
	cutoff := s.clock().UTC().Add(-s.staleAfter)
	items := make([]ChartSummary, len(rows))
	for i, r := range rows {
		items[i] = ChartSummary{Summary: r, Stale: r.GeneratedAt.Before(cutoff)}
	}
	return items, nil
}

// Delete removes a chart and its wheel asset.
func (s *Service) Delete(_ context.Context, fingerprint string) error {
	ref, err := s.charts.Delete(fingerprint)
	if err != nil {
		return err
	}
	if ref != nil {
		if err := s.assets.Delete(ref.ID, ref.Format); err != nil {
			s.logger.Warn("asset delete failed",
				slog.String("asset_id", ref.ID),
				slog.String("error", err.Error()))
		}
	}
	s.notify("deleted", fingerprint)
	return nil
}

// DeleteStale removes every chart older than the staleness horizon and
// reports how many went.
func (s *Service) DeleteStale(ctx context.Context) (int, error) {
	cutoff := s.clock().UTC().Add(-s.staleAfter)
	stale, err := s.charts.FindStale(cutoff)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, fp := range stale {
		if err := s.Delete(ctx, fp); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Usage reports the month's consumption and the free window slots.
func (s *Service) Usage(_ context.Context) UsageReport {
	return UsageReport{
		Usage:           s.limiter.MonthlyUsage(),
		WindowRemaining: s.limiter.WindowRemaining(),
	}
}

// Image returns the wheel image bytes and format for a cached chart.
func (s *Service) Image(_ context.Context, fingerprint string) ([]byte, string, error) {
	chart, err := s.charts.Load(fingerprint)
	if err != nil {
		return nil, "", err
	}
	if chart.Image == nil {
		return nil, "", fmt.Errorf("chartservice: chart %s has no image: %w", fingerprint, apperr.ErrNotFound)
	}
	data, err := s.assets.Load(chart.Image.ID, chart.Image.Format)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("chartservice: asset %s gone: %w", chart.Image.ID, apperr.ErrNotFound)
		}
		return nil, "", err
	}
	return data, chart.Image.Format, nil
}

// evict trims the cache to MaxEntries and drops the victims' assets.
func (s *Service) evict() {
	victims, err := s.charts.EvictLRU(s.maxEntries)
	if err != nil {
		s.logger.Warn("cache eviction failed", slog.String("error", err.Error()))
		return
	}
	for _, v := range victims {
		if v.Image != nil {
			if err := s.assets.Delete(v.Image.ID, v.Image.Format); err != nil {
				s.logger.Warn("evicted asset delete failed",
					slog.String("asset_id", v.Image.ID),
					slog.String("error", err.Error()))
			}
		}
		s.notify("deleted", v.Fingerprint)
	}
}
