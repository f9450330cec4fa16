// Package provider implements the HTTP client for the remote chart
// computation service: natal positions as JSON and the rendered wheel
// image. Transient failures are retried with exponential backoff; every
// error is classified into the apperr taxonomy before it leaves this
// package.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rusel95/AstroSvitla-sub001/internal/apperr"
	"github.com/rusel95/AstroSvitla-sub001/internal/astro"
)

const (
	chartDataPath  = "/v1/western_horoscope"
	wheelChartPath = "/v1/natal_wheel_chart"
)

const (
	maxDataBody  = 2 << 20
	maxImageBody = 10 << 20
)

// Config carries the provider endpoint, credentials and retry tuning.
type Config struct {
	BaseURL        string
	UserID         string
	APIKey         string
	AttemptTimeout time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

// Client talks to the remote chart service. Safe for concurrent use.
type Client struct {
	cfg    Config
	httpc  *http.Client
	logger *slog.Logger
	retry  retryPolicy
}

// NewClient builds a client with the default attempt timeout of 10s and
// three attempts at 1s/2s backoff unless the config overrides them.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
	c.retry = retryPolicy{
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.RetryBaseDelay,
		retryable:   isRetryable,
		sleep:       sleepCtx,
		onRetry: func(attempt int, delay time.Duration, err error) {
			logger.Warn("provider call failed, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()))
		},
	}
	return c
}

// FetchChartData requests the computed natal positions for the query.
func (c *Client) FetchChartData(ctx context.Context, q astro.BirthQuery) (*ChartData, error) {
	var data *ChartData
	err := c.retry.do(ctx, func(ctx context.Context) error {
		raw, err := c.post(ctx, chartDataPath, newChartRequest(q), maxDataBody)
		if err != nil {
			return err
		}
		var decoded ChartData
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("%w: decode chart data: %v", apperr.ErrInvalidResponse, err)
		}
		if len(decoded.Planets) == 0 || len(decoded.Houses) == 0 {
			return fmt.Errorf("%w: chart data missing planets or houses", apperr.ErrInvalidResponse)
		}
		data = &decoded
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("provider: chart data: %w", err)
	}
	return data, nil
}

// FetchChartImage renders the natal wheel and downloads the image bytes.
// The provider answers the render request with a URL that is fetched
// within the same attempt, so a failure anywhere in the pair retries the
// pair as one unit.
func (c *Client) FetchChartImage(ctx context.Context, q astro.BirthQuery) (*ChartImage, error) {
	var img *ChartImage
	err := c.retry.do(ctx, func(ctx context.Context) error {
		raw, err := c.post(ctx, wheelChartPath, newChartRequest(q), maxDataBody)
		if err != nil {
			return err
		}
		var decoded wheelResponse
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("%w: decode wheel response: %v", apperr.ErrInvalidResponse, err)
		}
		if !decoded.Status || decoded.ChartURL == "" {
			return fmt.Errorf("%w: wheel render refused: %s", apperr.ErrInvalidResponse, decoded.Msg)
		}
		data, err := c.get(ctx, decoded.ChartURL, maxImageBody)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return fmt.Errorf("%w: empty image body", apperr.ErrInvalidResponse)
		}
		img = &ChartImage{Data: data, Format: formatFromURL(decoded.ChartURL), SourceURL: decoded.ChartURL}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("provider: wheel image: %w", err)
	}
	return img, nil
}

func (c *Client) post(ctx context.Context, apiPath string, payload any, limit int64) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("provider: encode request: %w", err)
	}
	actx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(actx, http.MethodPost, c.cfg.BaseURL+apiPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("provider: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.UserID, c.cfg.APIKey)
	return c.roundTrip(ctx, req, limit)
}

func (c *Client) get(ctx context.Context, rawURL string, limit int64) ([]byte, error) {
	actx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(actx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: bad image url %q", apperr.ErrInvalidResponse, rawURL)
	}
	return c.roundTrip(ctx, req, limit)
}

// roundTrip performs one attempt and classifies the outcome. The parent
// context distinguishes caller cancellation from a per-attempt timeout:
// only the latter counts as a network failure.
func (c *Client) roundTrip(parent context.Context, req *http.Request, limit int64) ([]byte, error) {
	resp, err := c.httpc.Do(req)
	if err != nil {
		if parent.Err() != nil {
			return nil, parent.Err()
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
		if err != nil {
			if parent.Err() != nil {
				return nil, parent.Err()
			}
			return nil, fmt.Errorf("%w: read body: %v", apperr.ErrNetwork, err)
		}
		return data, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w (status %d)", apperr.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &retryAfterError{wait: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w (status %d)", apperr.ErrServiceUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: unexpected status %d", apperr.ErrInvalidResponse, resp.StatusCode)
	}
}

// parseRetryAfter reads the delay-seconds form of the header. The
// HTTP-date form is rare enough here that it falls back to the normal
// backoff schedule.
func parseRetryAfter(raw string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func formatFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "svg"
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
	switch ext {
	case "svg", "png", "jpg", "jpeg":
		return ext
	}
	return "svg"
}
