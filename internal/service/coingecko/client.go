// Package coingecko fetches historical and spot prices from the CoinGecko REST API.
package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
	xhttp "CoinPull/pkg/http"
	applogger "CoinPull/pkg/logger"
	"CoinPull/pkg/retry"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	DefaultProBaseURL    = "https://pro-api.coingecko.com/api/v3"
	DefaultPublicBaseURL = "https://api.coingecko.com/api/v3"

	apiKeyHeader = "x-cg-pro-api-key"

	// Per-minute budgets when Config.RateLimitPerMin is unset.
	proRatePerMin    = 450
	publicRatePerMin = 25

	maxErrorBody = 512
)

// Config holds client settings.
type Config struct {
	APIKey          string
	ProBaseURL      string
	PublicBaseURL   string
	Timeout         time.Duration
	RateLimitPerMin int
	MaxRetries      int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
}

// Client implements repository.PriceFetcher.
type Client struct {
	http    *xhttp.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	retry   retry.Config
	logger  *applogger.Logger
}

var _ drepo.PriceFetcher = (*Client)(nil)

// NewClient builds a client. A non-empty API key selects the pro endpoint and sends the key
// as a header; otherwise the public endpoint is used with a smaller request budget.
func NewClient(cfg Config, logger *applogger.Logger, opts ...xhttp.ClientOption) *Client {
	if logger == nil {
		logger = applogger.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = DefaultPublicBaseURL
	}
	perMin := publicRatePerMin
	if cfg.APIKey != "" {
		baseURL = cfg.ProBaseURL
		if baseURL == "" {
			baseURL = DefaultProBaseURL
		}
		perMin = proRatePerMin
	}
	if cfg.RateLimitPerMin > 0 {
		perMin = cfg.RateLimitPerMin
	}

	rc := retry.DefaultConfig()
	rc.MaxRetries = cfg.MaxRetries
	rc.Jitter = true
	if cfg.InitialBackoff > 0 {
		rc.InitialBackoff = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		rc.MaxBackoff = cfg.MaxBackoff
	}

	httpOpts := append([]xhttp.ClientOption{xhttp.WithTimeout(cfg.Timeout)}, opts...)
	return &Client{
		http:    xhttp.NewClient(httpOpts...),
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		limiter: rate.NewLimiter(rate.Limit(float64(perMin)/60.0), 1),
		retry:   rc,
		logger:  logger.Component("coingecko"),
	}
}

// BaseURL returns the endpoint the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchRange returns the prices of assetID in quote over [from, to), ascending and free of
// duplicate timestamps. The range is fetched chunk by chunk; an empty or undecodable chunk
// ends the walk and whatever was collected so far is returned.
func (c *Client) FetchRange(ctx context.Context, assetID, quote string, from, to time.Time) ([]models.PricePoint, error) {
	chunks := PlanChunks(from, to)
	if len(chunks) == 0 {
		return nil, nil
	}

	var collected []models.PricePoint
	for i := range chunks {
		rng := chunks[i]
		points, more, err := c.fetchChunk(ctx, assetID, quote, rng)
		if err != nil {
			return nil, err
		}
		if !more {
			c.logger.Debug("no more data, stopping range walk",
				applogger.String("asset", assetID),
				applogger.String("range", rng.String()))
			break
		}
		collected = append(collected, points...)
	}

	return dedupSort(collected), nil
}

func (c *Client) fetchChunk(ctx context.Context, assetID, quote string, rng models.FetchRange) ([]models.PricePoint, bool, error) {
	resp, err := c.get(ctx, &xhttp.RequestOptions{
		URL: c.baseURL + "/coins/" + assetID + "/market_chart/range",
		QueryParams: map[string][]string{
			"vs_currency": {quote},
			"from":        {formatUnix(rng.From)},
			"to":          {formatUnix(rng.To)},
		},
	}, assetID, &rng)
	if err != nil {
		return nil, false, err
	}

	if len(resp.Body) == 0 {
		return nil, false, nil
	}
	var body marketChartRangeResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		c.logger.Warn("undecodable chunk body",
			applogger.String("asset", assetID),
			applogger.String("range", rng.String()),
			applogger.Error(err))
		return nil, false, nil
	}
	if len(body.Prices) == 0 {
		return nil, false, nil
	}

	points := make([]models.PricePoint, 0, len(body.Prices))
	for _, pair := range body.Prices {
		if len(pair) < 2 {
			continue
		}
		points = append(points, models.PricePoint{
			AssetID:   assetID,
			Timestamp: time.UnixMilli(pair[0].IntPart()).UTC(),
			Price:     pair[1],
		})
	}
	return points, true, nil
}

// FetchSpot returns the current price of assetID in quote. ok is false when the
// response carries no price for the pair.
func (c *Client) FetchSpot(ctx context.Context, assetID, quote string) (decimal.Decimal, bool, error) {
	resp, err := c.get(ctx, &xhttp.RequestOptions{
		URL: c.baseURL + "/simple/price",
		QueryParams: map[string][]string{
			"ids":           {assetID},
			"vs_currencies": {quote},
		},
	}, assetID, nil)
	if err != nil {
		return decimal.Zero, false, err
	}

	var body simplePriceResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return decimal.Zero, false, &models.FetchError{AssetID: assetID, Status: resp.StatusCode, Err: err}
	}
	byQuote, ok := body[assetID]
	if !ok {
		return decimal.Zero, false, nil
	}
	price, ok := byQuote[quote]
	if !ok {
		return decimal.Zero, false, nil
	}
	return price, true, nil
}

// get performs one rate-limited request with retries on throttling, server errors
// and transport failures. Auth failures and other statuses come back immediately.
func (c *Client) get(ctx context.Context, opts *xhttp.RequestOptions, assetID string, rng *models.FetchRange) (*xhttp.Response, error) {
	if c.apiKey != "" {
		opts.Headers = map[string]string{apiKeyHeader: c.apiKey}
	}

	var resp *xhttp.Response
	err := retry.Do(ctx, c.retry, isRetryable, func(attempt int, err error, backoff time.Duration) {
		c.logger.Warn("retrying request",
			applogger.String("asset", assetID),
			applogger.Int("attempt", attempt),
			applogger.Duration("backoff", backoff),
			applogger.Error(err))
	}, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &models.FetchError{AssetID: assetID, Range: rng, Err: err}
		}

		r, err := c.http.SendAndRead(ctx, opts)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &models.FetchError{AssetID: assetID, Range: rng, Err: err}
		}

		switch {
		case r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusForbidden:
			return &models.AuthError{Status: r.StatusCode, Body: truncate(r.Body)}
		case !r.OK():
			return &models.FetchError{AssetID: assetID, Range: rng, Status: r.StatusCode, Body: truncate(r.Body)}
		}
		resp = r
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, models.Cancelled(ctx.Err())
		}
		return nil, err
	}
	return resp, nil
}

func isRetryable(err error) bool {
	var fe *models.FetchError
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Status == 0 || fe.Status == http.StatusTooManyRequests || fe.Status >= 500
}

func formatUnix(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
