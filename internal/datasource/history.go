package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/seenimoa/navcompare/internal/infra"
	"github.com/seenimoa/navcompare/pkg/models"
	"github.com/seenimoa/navcompare/pkg/utils"
)

const (
	DefaultHistoryBaseURL   = "https://mf.captnemo.in/nav"
	DefaultHistoryRateLimit = 5 // requests per second
)

// flexFloat handles JSON values that may be either a number or a string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		num, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat(num)
		return nil
	}
	if string(data) == "null" {
		*f = 0
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

// historyPair is one [date, nav] entry. Malformed pairs decode as invalid
// instead of failing the whole response.
type historyPair struct {
	Date  string
	NAV   flexFloat
	valid bool
}

func (p *historyPair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || len(raw) < 2 {
		return nil
	}
	if err := json.Unmarshal(raw[0], &p.Date); err != nil {
		return nil
	}
	if err := json.Unmarshal(raw[1], &p.NAV); err != nil {
		return nil
	}
	p.valid = true
	return nil
}

type historyResponse struct {
	ISIN       string        `json:"ISIN"`
	Name       string        `json:"name"`
	NAV        flexFloat     `json:"nav"`
	Date       string        `json:"date"`
	Historical []historyPair `json:"historical_nav"`
}

// HistoryClient fetches a single fund's NAV history by ISIN.
type HistoryClient struct {
	baseURL   string
	client    *http.Client
	timeout   time.Duration
	userAgent string
	limiter   *rate.Limiter
	cache     *infra.Cache[*models.HistoricalNAV]
	logger    *infra.Logger
}

// HistoryOption configures the history client.
type HistoryOption func(*HistoryClient)

// WithHistoryBaseURL sets the API base; the ISIN is appended as a path segment.
func WithHistoryBaseURL(u string) HistoryOption {
	return func(c *HistoryClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHistoryHTTPClient replaces the HTTP client.
func WithHistoryHTTPClient(hc *http.Client) HistoryOption {
	return func(c *HistoryClient) { c.client = hc }
}

// WithHistoryTimeout bounds each request.
func WithHistoryTimeout(d time.Duration) HistoryOption {
	return func(c *HistoryClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHistoryRateLimit sets the outbound request rate.
func WithHistoryRateLimit(requestsPerSecond int) HistoryOption {
	return func(c *HistoryClient) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithHistoryCache caches decoded responses per ISIN. A zero ttl disables it.
func WithHistoryCache(ttl time.Duration, clock infra.Clock) HistoryOption {
	return func(c *HistoryClient) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = infra.NewCache[*models.HistoricalNAV](ttl, clock)
	}
}

// WithHistoryUserAgent sets the identifying client header.
func WithHistoryUserAgent(ua string) HistoryOption {
	return func(c *HistoryClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithHistoryLogger sets the logger.
func WithHistoryLogger(l *infra.Logger) HistoryOption {
	return func(c *HistoryClient) { c.logger = l }
}

// NewHistoryClient creates a historical NAV client.
func NewHistoryClient(opts ...HistoryOption) *HistoryClient {
	c := &HistoryClient{
		baseURL:   DefaultHistoryBaseURL,
		client:    newHTTPClient(),
		timeout:   DefaultTimeout,
		userAgent: DefaultUserAgent,
		limiter:   rate.NewLimiter(rate.Limit(DefaultHistoryRateLimit), DefaultHistoryRateLimit),
		logger:    infra.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the decoded NAV history for isin. Malformed identifiers fail
// with a *ValidationError before any request is made; upstream failures are
// returned as *ErrHTTP with status and body untouched. There is no retry.
func (c *HistoryClient) Fetch(ctx context.Context, isin string) (*models.HistoricalNAV, error) {
	if !utils.ValidFundISIN(isin) {
		return nil, &ValidationError{Field: "isin", Value: isin}
	}
	key := utils.NormalizeISIN(isin)

	if c.cache != nil {
		if h, ok := c.cache.Get(key); ok {
			return h, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/" + url.PathEscape(key)
	c.logger.Debug().Str("isin", key).Str("url", endpoint).Msg("fetching NAV history")

	resp, err := doGet(ctx, c.client, endpoint, map[string]string{
		"User-Agent": c.userAgent,
		"Accept":     "application/json",
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("isin", key).Msg("NAV history fetch failed")
		return nil, err
	}

	var raw historyResponse
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, fmt.Errorf("decode NAV history for %s: %w", key, err)
	}

	h := &models.HistoricalNAV{
		ISIN:       raw.ISIN,
		Name:       raw.Name,
		LatestNAV:  float64(raw.NAV),
		LatestDate: raw.Date,
		Historical: make([]models.HistoricalPoint, 0, len(raw.Historical)),
	}
	if h.ISIN == "" {
		h.ISIN = key
	}
	for _, p := range raw.Historical {
		if p.valid {
			h.Historical = append(h.Historical, models.HistoricalPoint{Date: p.Date, NAV: float64(p.NAV)})
		}
	}

	if c.cache != nil {
		c.cache.Set(key, h)
	}
	return h, nil
}
