// Package navservice is the facade callers use: it wires the AMFI feed, the
// historical NAV client, the analysis packages and the snapshot store.
package navservice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/navcompare/internal/analysis/fund"
	"github.com/seenimoa/navcompare/internal/analysis/performance"
	"github.com/seenimoa/navcompare/internal/config"
	"github.com/seenimoa/navcompare/internal/datasource"
	"github.com/seenimoa/navcompare/internal/infra"
	"github.com/seenimoa/navcompare/internal/store"
	"github.com/seenimoa/navcompare/pkg/models"
	"github.com/seenimoa/navcompare/pkg/utils"
)

// Snapshot sources.
const (
	SourceAMFI      = "amfi"
	SourceLocalFile = "local-file"
	SourceFallback  = "fallback"
)

// Service answers fund list, series, metrics and comparison queries.
type Service struct {
	amfi      *datasource.AMFI
	history   *datasource.HistoryClient
	riskFree  float64
	freshness performance.Freshness
	clock     infra.Clock
	logger    *infra.Logger

	storeMu   sync.Mutex
	store     store.Store
	openStore StoreOpener
}

// StoreOpener opens the snapshot store on first use.
type StoreOpener func(ctx context.Context) (store.Store, error)

// Option configures a Service.
type Option func(*Service)

// WithStore attaches a snapshot store. Without one, Sync and LatestSnapshot fail.
func WithStore(s store.Store) Option {
	return func(svc *Service) { svc.store = s }
}

// WithStoreOpener defers opening the snapshot store until a snapshot
// operation needs it. A failed open is retried on the next call.
func WithStoreOpener(open StoreOpener) Option {
	return func(svc *Service) { svc.openStore = open }
}

// WithRiskFreeRate sets the annual risk-free rate, in percent, used for Sharpe.
func WithRiskFreeRate(pct float64) Option {
	return func(svc *Service) { svc.riskFree = pct }
}

// WithFreshness overrides the freshness heuristic thresholds.
func WithFreshness(f performance.Freshness) Option {
	return func(svc *Service) { svc.freshness = f }
}

// WithClock injects the time source used for freshness and timeframes.
func WithClock(c infra.Clock) Option {
	return func(svc *Service) {
		if c != nil {
			svc.clock = c
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *infra.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.logger = l
		}
	}
}

// New creates a Service over the given feed and history clients.
func New(amfi *datasource.AMFI, history *datasource.HistoryClient, opts ...Option) *Service {
	svc := &Service{
		amfi:      amfi,
		history:   history,
		riskFree:  performance.DefaultRiskFreeRate,
		freshness: performance.DefaultFreshness(),
		clock:     time.Now,
		logger:    infra.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// NewFromConfig builds the full service graph from configuration. The snapshot
// store is opened lazily, so feed and history queries work while it is down.
func NewFromConfig(cfg *config.Config, logger *infra.Logger) *Service {
	amfi := datasource.NewAMFI(
		datasource.WithURLs(cfg.AMFI.URL, cfg.AMFI.FallbackURLs...),
		datasource.WithLocalFile(cfg.AMFI.LocalFile),
		datasource.WithHistoryReportURL(cfg.AMFI.HistoryURL),
		datasource.WithUserAgent(cfg.AMFI.UserAgent),
		datasource.WithRequestTimeout(cfg.AMFI.Timeout),
		datasource.WithRetry(cfg.AMFI.MaxAttempts, cfg.AMFI.Backoff),
		datasource.WithMinPayloadBytes(cfg.AMFI.MinPayloadBytes),
		datasource.WithCacheTTL(cfg.AMFI.CacheTTL),
		datasource.WithLogger(logger),
	)

	history := datasource.NewHistoryClient(
		datasource.WithHistoryBaseURL(cfg.History.BaseURL),
		datasource.WithHistoryTimeout(cfg.History.Timeout),
		datasource.WithHistoryRateLimit(cfg.History.RateLimit),
		datasource.WithHistoryCache(cfg.History.CacheTTL, nil),
		datasource.WithHistoryUserAgent(cfg.AMFI.UserAgent),
		datasource.WithHistoryLogger(logger),
	)

	driver, path, dsn := cfg.Store.Driver, cfg.Store.Path, cfg.Store.DSN
	opener := func(ctx context.Context) (store.Store, error) {
		return store.Open(ctx, driver, path, dsn)
	}

	fresh := performance.Freshness{
		MinPoints: cfg.Metrics.MinRealPoints,
		MaxAge:    cfg.Metrics.FreshnessWindow(),
	}

	return New(amfi, history,
		WithStoreOpener(opener),
		WithRiskFreeRate(cfg.Metrics.RiskFreeRate),
		WithFreshness(fresh),
		WithLogger(logger),
	)
}

// Close releases the store if it was opened.
func (s *Service) Close() error {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	return err
}

// snapshotStore returns the attached store, opening it on first use.
func (s *Service) snapshotStore(ctx context.Context) (store.Store, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	if s.store != nil {
		return s.store, nil
	}
	if s.openStore == nil {
		return nil, ErrNoStore
	}
	st, err := s.openStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	s.logger.Debug().Str("store", st.Name()).Msg("snapshot store opened")
	s.store = st
	return st, nil
}

// ════════════════════════════════════════════════════════════════════
// Fund list
// ════════════════════════════════════════════════════════════════════

// IndexFunds returns the deduplicated index-like funds of the current feed.
func (s *Service) IndexFunds(ctx context.Context) ([]models.IndexFundRecord, error) {
	funds, _, err := s.indexFunds(ctx)
	return funds, err
}

func (s *Service) indexFunds(ctx context.Context) ([]models.IndexFundRecord, *datasource.Feed, error) {
	feed, err := s.amfi.FetchAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	funds := fund.IndexFunds(feed.Records)
	s.logger.Debug().
		Int("records", len(feed.Records)).
		Int("index_funds", len(funds)).
		Msg("classified AMFI feed")
	return funds, feed, nil
}

// FundProfiles returns best-effort profiles for every index fund.
func (s *Service) FundProfiles(ctx context.Context) ([]models.FundProfile, error) {
	funds, err := s.IndexFunds(ctx)
	if err != nil {
		return nil, err
	}
	return fund.Profiles(funds), nil
}

// FallbackFunds is the minimal list served when the feed is unavailable.
func (s *Service) FallbackFunds() []models.IndexFundRecord {
	isin := "INF194KB1DP9"
	amc := "Bandhan Mutual Fund"
	return []models.IndexFundRecord{{
		SchemeCode: "BANDHAN-N200M30-DG",
		SchemeName: "BANDHAN NIFTY200 MOMENTUM 30 INDEX FUND - GROWTH - DIRECT PLAN",
		ISIN:       &isin,
		NAV:        0,
		Date:       utils.FormatAMFIDate(s.clock()),
		AMC:        &amc,
	}}
}

// RefreshFeed drops the cached feed and fetches it again.
func (s *Service) RefreshFeed(ctx context.Context) error {
	_, err := s.amfi.Refresh(ctx)
	return err
}

// ════════════════════════════════════════════════════════════════════
// Series and metrics
// ════════════════════════════════════════════════════════════════════

// NAVSeries fetches and normalizes the history of one fund. Malformed ISINs
// fail before any request with a *datasource.ValidationError.
func (s *Service) NAVSeries(ctx context.Context, isin string) (*models.FundSeries, error) {
	h, err := s.history.Fetch(ctx, isin)
	if err != nil {
		return nil, err
	}
	return datasource.ToFundSeries(h, s.clock()), nil
}

// ComputeMetrics derives the metric snapshot of a series.
func (s *Service) ComputeMetrics(fundID, fundName string, series models.NAVSeries) models.CalculatedMetrics {
	return performance.ComputeMetrics(fundID, fundName, series, s.riskFree)
}

// IsDataFresh applies the configured freshness heuristic at the current time.
func (s *Service) IsDataFresh(series models.NAVSeries) bool {
	return s.freshness.IsFresh(series, s.clock())
}

// FundMetrics fetches one fund's history and computes its metrics.
func (s *Service) FundMetrics(ctx context.Context, isin string) (*models.ComparedFund, error) {
	fs, err := s.NAVSeries(ctx, isin)
	if err != nil {
		return nil, err
	}
	return &models.ComparedFund{
		ISIN:    fs.ISIN,
		Name:    fs.Name,
		Points:  len(fs.Points),
		Fresh:   s.IsDataFresh(fs.Points),
		Metrics: s.ComputeMetrics(fs.ISIN, fs.Name, fs.Points),
	}, nil
}

// CompareRequest selects two funds and a timeframe. From and To are only
// read for the custom timeframe.
type CompareRequest struct {
	ISINA     string
	ISINB     string
	Timeframe models.Timeframe
	From      time.Time
	To        time.Time
}

// Compare fetches both histories concurrently and builds the comparison.
func (s *Service) Compare(ctx context.Context, req CompareRequest) (*models.Comparison, error) {
	now := s.clock()
	w, err := performance.TimeframeWindow(req.Timeframe, now, req.From, req.To)
	if err != nil {
		return nil, err
	}

	var a, b *models.FundSeries
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		a, err = s.NAVSeries(gctx, req.ISINA)
		if err != nil {
			return fmt.Errorf("fund a: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		b, err = s.NAVSeries(gctx, req.ISINB)
		if err != nil {
			return fmt.Errorf("fund b: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cmp := performance.Compare(req.Timeframe, w,
		performance.Side{ISIN: a.ISIN, Name: a.Name, Series: a.Points},
		performance.Side{ISIN: b.ISIN, Name: b.Name, Series: b.Points},
		performance.Options{RiskFreeRate: s.riskFree, Freshness: s.freshness, Now: now},
	)
	s.logger.Debug().
		Str("a", a.ISIN).
		Str("b", b.ISIN).
		Str("timeframe", string(req.Timeframe)).
		Int("common_points", len(cmp.Chart)).
		Msg("compared funds")
	return &cmp, nil
}

// HistoryReport passes the AMFI NAV history report for [from, to] through.
func (s *Service) HistoryReport(ctx context.Context, from, to time.Time) (string, error) {
	return s.amfi.FetchHistoryReport(ctx, from, to)
}

// ════════════════════════════════════════════════════════════════════
// Snapshots
// ════════════════════════════════════════════════════════════════════

// ErrNoStore is returned by snapshot operations when no store is configured.
var ErrNoStore = errors.New("no snapshot store configured")

// ErrStoreUnavailable wraps a failure to open the configured store.
var ErrStoreUnavailable = errors.New("snapshot store unavailable")

// Sync fetches the feed (refreshing it when force is set), classifies it and
// saves the resulting snapshot.
func (s *Service) Sync(ctx context.Context, force bool) (*models.Snapshot, error) {
	st, err := s.snapshotStore(ctx)
	if err != nil {
		return nil, err
	}
	if force {
		if err := s.RefreshFeed(ctx); err != nil {
			return nil, err
		}
	}

	funds, feed, err := s.indexFunds(ctx)
	if err != nil {
		return nil, err
	}

	source := SourceAMFI
	if feed.Source == datasource.SourceLocalFile {
		source = SourceLocalFile
	}

	snap := &models.Snapshot{
		GeneratedAt: s.clock().UTC(),
		Count:       len(funds),
		Funds:       funds,
		Source:      source,
	}
	if err := st.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}

	s.logger.Info().
		Str("id", snap.ID).
		Str("source", source).
		Int("count", snap.Count).
		Str("store", st.Name()).
		Msg("snapshot saved")
	return snap, nil
}

// LatestSnapshot returns the most recently saved snapshot.
func (s *Service) LatestSnapshot(ctx context.Context) (*models.Snapshot, error) {
	st, err := s.snapshotStore(ctx)
	if err != nil {
		return nil, err
	}
	return st.Latest(ctx)
}

// LookupFunds returns the funds of the latest snapshot with the given ISINs.
func (s *Service) LookupFunds(ctx context.Context, isins []string) ([]models.IndexFundRecord, error) {
	st, err := s.snapshotStore(ctx)
	if err != nil {
		return nil, err
	}
	return st.Lookup(ctx, isins)
}

// Health summarises service status for the health endpoint.
type Health struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Store     string    `json:"store"`
	FeedAge   string    `json:"feed_age,omitempty"`
}

// Health reports store connectivity and the age of the cached feed.
func (s *Service) Health(ctx context.Context) Health {
	now := s.clock()
	h := Health{Status: "OK", Timestamp: now.UTC(), Store: "none"}

	st, err := s.snapshotStore(ctx)
	switch {
	case errors.Is(err, ErrNoStore):
	case err != nil:
		h.Store = "error: " + err.Error()
		h.Status = "DEGRADED"
	default:
		if err := st.Ping(ctx); err != nil {
			h.Store = "error: " + err.Error()
			h.Status = "DEGRADED"
		} else {
			h.Store = "connected"
		}
	}
	if feed, ok := s.amfi.Cached(); ok {
		h.FeedAge = now.Sub(feed.FetchedAt).Round(time.Second).String()
	}
	return h
}
