package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/seenimoa/navcompare/internal/infra"
	"github.com/seenimoa/navcompare/pkg/models"
	"github.com/seenimoa/navcompare/pkg/utils"
)

const (
	DefaultAMFIURL          = "https://www.amfiindia.com/spages/NAVAll.txt"
	DefaultHistoryReportURL = "https://portal.amfiindia.com/DownloadNAVHistoryReport_Po.aspx"
	DefaultCacheTTL         = time.Hour
	DefaultMaxAttempts      = 3
	DefaultBackoff          = 1500 * time.Millisecond
	DefaultMinPayloadBytes  = 1000

	// SourceLocalFile marks a feed read from the local override file.
	SourceLocalFile = "local-file"
)

// DefaultFallbackURLs are tried, in order, after the primary URL.
var DefaultFallbackURLs = []string{
	"http://www.amfiindia.com/spages/NAVAll.txt",
	"https://www.amfiindia.com/spages/NAVAll.txt",
}

// Feed is one accepted bulk payload, decoded.
type Feed struct {
	Records   []models.RawSchemeRecord
	Source    string // URL the payload came from, or SourceLocalFile
	Layout    Layout
	Skipped   int
	FetchedAt time.Time
}

// AMFI retrieves the bulk NAV file with multi-URL fallback, linear backoff,
// payload validation and a TTL cache. Concurrent cache misses share a single
// in-flight fetch.
type AMFI struct {
	client      *http.Client
	urls        []string
	localFile   string
	historyURL  string
	userAgent   string
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	minPayload  int
	cacheTTL    time.Duration
	clock       infra.Clock
	sleep       func(context.Context, time.Duration) error
	logger      *infra.Logger

	cache *infra.TTLCell[*Feed]
	group singleflight.Group
}

// AMFIOption configures the AMFI fetcher.
type AMFIOption func(*AMFI)

// WithURLs sets the primary URL and its fallbacks. Empty entries are ignored.
func WithURLs(primary string, fallbacks ...string) AMFIOption {
	return func(a *AMFI) {
		a.urls = a.urls[:0]
		for _, u := range append([]string{primary}, fallbacks...) {
			if u != "" {
				a.urls = append(a.urls, u)
			}
		}
	}
}

// WithLocalFile sets the local override path. Empty disables it.
func WithLocalFile(path string) AMFIOption {
	return func(a *AMFI) { a.localFile = path }
}

// WithHistoryReportURL sets the AMFI NAV history report endpoint.
func WithHistoryReportURL(u string) AMFIOption {
	return func(a *AMFI) { a.historyURL = u }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) AMFIOption {
	return func(a *AMFI) { a.client = c }
}

// WithUserAgent sets the identifying client header.
func WithUserAgent(ua string) AMFIOption {
	return func(a *AMFI) {
		if ua != "" {
			a.userAgent = ua
		}
	}
}

// WithRequestTimeout bounds each individual request.
func WithRequestTimeout(d time.Duration) AMFIOption {
	return func(a *AMFI) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithRetry sets the number of outer attempts and the backoff unit.
func WithRetry(maxAttempts int, backoff time.Duration) AMFIOption {
	return func(a *AMFI) {
		if maxAttempts > 0 {
			a.maxAttempts = maxAttempts
		}
		if backoff >= 0 {
			a.backoff = backoff
		}
	}
}

// WithMinPayloadBytes sets the smallest acceptable body.
func WithMinPayloadBytes(n int) AMFIOption {
	return func(a *AMFI) { a.minPayload = n }
}

// WithCacheTTL sets the feed cache lifetime.
func WithCacheTTL(ttl time.Duration) AMFIOption {
	return func(a *AMFI) { a.cacheTTL = ttl }
}

// WithClock injects the clock used for cache ageing.
func WithClock(c infra.Clock) AMFIOption {
	return func(a *AMFI) { a.clock = c }
}

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(fn func(context.Context, time.Duration) error) AMFIOption {
	return func(a *AMFI) { a.sleep = fn }
}

// WithLogger sets the logger.
func WithLogger(l *infra.Logger) AMFIOption {
	return func(a *AMFI) { a.logger = l }
}

// NewAMFI creates a bulk NAV fetcher.
func NewAMFI(opts ...AMFIOption) *AMFI {
	a := &AMFI{
		client:      newHTTPClient(),
		urls:        append([]string{DefaultAMFIURL}, DefaultFallbackURLs...),
		historyURL:  DefaultHistoryReportURL,
		userAgent:   DefaultUserAgent,
		timeout:     DefaultTimeout,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		minPayload:  DefaultMinPayloadBytes,
		cacheTTL:    DefaultCacheTTL,
		clock:       time.Now,
		sleep:       sleepCtx,
		logger:      infra.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.cache = infra.NewTTLCell[*Feed](a.cacheTTL, a.clock)
	return a
}

// FetchAll returns the cached feed when fresh, otherwise fetches it.
func (a *AMFI) FetchAll(ctx context.Context) (*Feed, error) {
	if feed, ok := a.cache.Get(); ok {
		return feed, nil
	}
	return a.load(ctx, false)
}

// Refresh fetches the feed regardless of cache state and replaces the cache.
func (a *AMFI) Refresh(ctx context.Context) (*Feed, error) {
	return a.load(ctx, true)
}

// Cached returns the last accepted feed, fresh or not.
func (a *AMFI) Cached() (*Feed, bool) {
	feed, _, ok := a.cache.Peek()
	return feed, ok && feed != nil
}

// load runs the fetch under singleflight. The shared fetch is detached from
// the caller's cancellation; each caller only stops waiting for it.
func (a *AMFI) load(ctx context.Context, force bool) (*Feed, error) {
	ch := a.group.DoChan("bulk", func() (any, error) {
		if !force {
			if feed, ok := a.cache.Get(); ok {
				return feed, nil
			}
		}
		return a.fetch(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Feed), nil
	}
}

func (a *AMFI) fetch(ctx context.Context) (*Feed, error) {
	if feed, ok := a.readLocal(); ok {
		a.cache.Set(feed)
		return feed, nil
	}

	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		for _, u := range a.urls {
			a.logger.Debug().Int("attempt", attempt).Str("url", u).Msg("fetching AMFI NAV file")

			body, err := a.get(ctx, u)
			if err != nil {
				a.logger.Warn().Err(err).Int("attempt", attempt).Str("url", u).Msg("AMFI fetch failed")
				lastErr = err
				continue
			}

			feed := a.decode(body, u)
			a.cache.Set(feed)
			a.logger.Info().
				Str("url", u).
				Int("records", len(feed.Records)).
				Int("skipped", feed.Skipped).
				Str("layout", string(feed.Layout)).
				Msg("AMFI NAV file accepted")
			return feed, nil
		}

		if attempt < a.maxAttempts {
			wait := a.backoff * time.Duration(attempt)
			a.logger.Debug().Dur("wait", wait).Int("attempt", attempt).Msg("all AMFI URLs failed, backing off")
			if err := a.sleep(ctx, wait); err != nil {
				lastErr = err
				break
			}
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrFeedUnavailable, a.maxAttempts, lastErr)
}

// get performs one hard-timeout request and validates the payload size.
func (a *AMFI) get(ctx context.Context, u string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := doGet(ctx, a.client, u, map[string]string{"User-Agent": a.userAgent})
	if err != nil {
		return nil, err
	}
	if len(resp.Body) < a.minPayload {
		return nil, fmt.Errorf("%s: %w (%d < %d bytes)", u, ErrPayloadTooSmall, len(resp.Body), a.minPayload)
	}
	return resp.Body, nil
}

func (a *AMFI) decode(body []byte, source string) *Feed {
	res := ParseNAVAll(string(body))
	if res.Skipped > 0 {
		a.logger.Debug().Int("skipped", res.Skipped).Str("source", source).Msg("skipped malformed NAV lines")
	}
	return &Feed{
		Records:   res.Records,
		Source:    source,
		Layout:    res.Layout,
		Skipped:   res.Skipped,
		FetchedAt: a.clock(),
	}
}

// readLocal uses the local override file when it exists and is large enough.
func (a *AMFI) readLocal() (*Feed, bool) {
	if a.localFile == "" {
		return nil, false
	}
	info, err := os.Stat(a.localFile)
	if err != nil || info.IsDir() || info.Size() <= int64(a.minPayload) {
		return nil, false
	}
	body, err := os.ReadFile(a.localFile)
	if err != nil {
		a.logger.Warn().Err(err).Str("path", a.localFile).Msg("cannot read local NAV file")
		return nil, false
	}
	a.logger.Info().Str("path", a.localFile).Msg("using local NAV file")
	return a.decode(body, SourceLocalFile), true
}

// FetchHistoryReport downloads the AMFI NAV history report for [from, to] and
// returns it verbatim. Upstream failures come back as *ErrHTTP.
func (a *AMFI) FetchHistoryReport(ctx context.Context, from, to time.Time) (string, error) {
	if from.IsZero() {
		return "", &ValidationError{Field: "frmdt", Value: ""}
	}
	if to.IsZero() {
		return "", &ValidationError{Field: "todt", Value: ""}
	}

	q := url.Values{}
	q.Set("frmdt", utils.FormatAMFIDate(from))
	q.Set("todt", utils.FormatAMFIDate(to))

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := doGet(ctx, a.client, a.historyURL+"?"+q.Encode(), map[string]string{"User-Agent": a.userAgent})
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}
