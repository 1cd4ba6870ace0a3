package navservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/navcompare/internal/analysis/performance"
	"github.com/seenimoa/navcompare/internal/config"
	"github.com/seenimoa/navcompare/internal/datasource"
	"github.com/seenimoa/navcompare/internal/infra"
	"github.com/seenimoa/navcompare/internal/store"
	"github.com/seenimoa/navcompare/pkg/models"
	"github.com/seenimoa/navcompare/pkg/utils"
)

var testNow = time.Date(2026, 10, 15, 10, 0, 0, 0, utils.IST)

func fixedClock() time.Time { return testNow }

const (
	isinA = "INF204KB14I2"
	isinB = "INF194KB1DP9"
)

func feedBody() string {
	var b strings.Builder
	b.WriteString("Scheme Code;ISIN Div Payout/ ISIN Growth;ISIN Div Reinvestment;Scheme Name;Net Asset Value;Date\n\n")
	b.WriteString("Open Ended Schemes(Other Scheme - Index Funds)\n\n")
	b.WriteString("120716;" + isinA + ";-;Nippon India Nifty 50 Index Fund - Direct Plan - Growth;265.1234;14-Oct-2026\n")
	b.WriteString("120717;" + isinA + ";-;Nippon India Nifty 50 Index Fund - Direct Plan - Growth;265.1234;14-Oct-2026\n")
	b.WriteString("147622;" + isinB + ";-;Bandhan Nifty200 Momentum 30 Index Fund - Direct Plan - Growth;18.5000;14-Oct-2026\n")
	b.WriteString("100001;INF000000001;-;HDFC Flexi Cap Fund - Growth;1800.10;14-Oct-2026\n")
	b.WriteString("100002;INF000000002;-;SBI Small Cap Fund - Growth;150.20;14-Oct-2026\n")
	for b.Len() < 1200 {
		b.WriteString("\n")
	}
	return b.String()
}

// historyFor builds a daily ISO-dated series ending the day before testNow.
func historyFor(isin, name string, days int, start, dailyGrowth float64) string {
	pairs := make([][2]any, 0, days)
	nav := start
	first := testNow.AddDate(0, 0, -days)
	for i := 0; i < days; i++ {
		d := first.AddDate(0, 0, i)
		pairs = append(pairs, [2]any{d.Format("2006-01-02"), nav})
		nav *= 1 + dailyGrowth
	}
	body, _ := json.Marshal(map[string]any{
		"ISIN":           isin,
		"name":           name,
		"nav":            nav,
		"date":           testNow.AddDate(0, 0, -1).Format("2006-01-02"),
		"historical_nav": pairs,
	})
	return string(body)
}

type upstream struct {
	*httptest.Server
	feedHits    atomic.Int32
	historyHits atomic.Int32
	feedStatus  int
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{feedStatus: http.StatusOK}
	histories := map[string]string{
		isinA: historyFor(isinA, "Nippon India Nifty 50 Index Fund", 400, 200, 0.0005),
		isinB: historyFor(isinB, "Bandhan Nifty200 Momentum 30 Index Fund", 400, 15, 0.0002),
	}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/NAVAll.txt":
			u.feedHits.Add(1)
			w.WriteHeader(u.feedStatus)
			if u.feedStatus == http.StatusOK {
				fmt.Fprint(w, feedBody())
			}
		case strings.HasPrefix(r.URL.Path, "/nav/"):
			u.historyHits.Add(1)
			body, ok := histories[strings.TrimPrefix(r.URL.Path, "/nav/")]
			w.Header().Set("Content-Type", "application/json")
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"error":"not found"}`)
				return
			}
			fmt.Fprint(w, body)
		case r.URL.Path == "/history-report":
			fmt.Fprintf(w, "report %s %s", r.URL.Query().Get("frmdt"), r.URL.Query().Get("todt"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(u.Close)
	return u
}

func newTestService(t *testing.T, u *upstream, opts ...Option) *Service {
	t.Helper()
	amfi := datasource.NewAMFI(
		datasource.WithURLs(u.URL+"/NAVAll.txt"),
		datasource.WithHistoryReportURL(u.URL+"/history-report"),
		datasource.WithHTTPClient(u.Client()),
		datasource.WithRetry(1, 0),
		datasource.WithClock(fixedClock),
	)
	history := datasource.NewHistoryClient(
		datasource.WithHistoryBaseURL(u.URL+"/nav"),
		datasource.WithHistoryHTTPClient(u.Client()),
		datasource.WithHistoryRateLimit(1000),
	)
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return New(amfi, history, opts...)
}

func TestIndexFunds(t *testing.T) {
	u := newUpstream(t)
	svc := newTestService(t, u)

	funds, err := svc.IndexFunds(context.Background())
	require.NoError(t, err)
	require.Len(t, funds, 2, "duplicate ISIN and non-index funds are dropped")
	assert.Equal(t, "120716", funds[0].SchemeCode)
	assert.Equal(t, isinB, *funds[1].ISIN)

	_, err = svc.IndexFunds(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, u.feedHits.Load(), "second call is served from cache")

	require.NoError(t, svc.RefreshFeed(context.Background()))
	assert.EqualValues(t, 2, u.feedHits.Load())
}

func TestFundProfiles(t *testing.T) {
	svc := newTestService(t, newUpstream(t))

	profiles, err := svc.FundProfiles(context.Background())
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "Nippon India Mutual Fund", profiles[0].FundHouse)
	assert.Equal(t, "Direct", profiles[1].Plan)
}

func TestIndexFundsFeedUnavailable(t *testing.T) {
	u := newUpstream(t)
	u.feedStatus = http.StatusServiceUnavailable
	svc := newTestService(t, u)

	_, err := svc.IndexFunds(context.Background())
	assert.ErrorIs(t, err, datasource.ErrFeedUnavailable)
}

func TestFallbackFunds(t *testing.T) {
	svc := newTestService(t, newUpstream(t))

	funds := svc.FallbackFunds()
	require.Len(t, funds, 1)
	assert.Equal(t, isinB, *funds[0].ISIN)
	assert.Equal(t, "15-Oct-2026", funds[0].Date)
	assert.Equal(t, "Bandhan Mutual Fund", *funds[0].AMC)
}

func TestNAVSeries(t *testing.T) {
	svc := newTestService(t, newUpstream(t))

	fs, err := svc.NAVSeries(context.Background(), isinA)
	require.NoError(t, err)
	assert.Equal(t, isinA, fs.ISIN)
	assert.Len(t, fs.Points, 400)
	assert.Equal(t, 0.0, fs.Points[0].ChangePercent)
	assert.InDelta(t, 0.05, fs.Points[1].ChangePercent, 1e-6)
	assert.True(t, svc.IsDataFresh(fs.Points))
}

func TestNAVSeriesInvalidISINMakesNoRequest(t *testing.T) {
	u := newUpstream(t)
	svc := newTestService(t, u)

	_, err := svc.NAVSeries(context.Background(), "US0378331005")
	require.Error(t, err)

	var ve *datasource.ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.ErrorIs(t, err, datasource.ErrInvalidISIN)
	assert.Zero(t, u.historyHits.Load())
}

func TestFundMetrics(t *testing.T) {
	svc := newTestService(t, newUpstream(t))

	m, err := svc.FundMetrics(context.Background(), isinA)
	require.NoError(t, err)
	assert.Equal(t, 400, m.Points)
	assert.True(t, m.Fresh)
	assert.Greater(t, m.Metrics.TotalReturn1Y, 0.0)
	assert.Nil(t, m.Metrics.TotalReturn3Y, "400 days cannot cover 3 years")
	assert.Equal(t, testNow.AddDate(0, 0, -1).Format("2006-01-02"), m.Metrics.LatestDate)
}

func TestCompare(t *testing.T) {
	svc := newTestService(t, newUpstream(t))

	cmp, err := svc.Compare(context.Background(), CompareRequest{
		ISINA: isinA, ISINB: isinB, Timeframe: models.Timeframe1Y,
	})
	require.NoError(t, err)

	assert.Equal(t, "2025-10-01", cmp.From)
	require.NotEmpty(t, cmp.Chart)
	assert.Equal(t, "2025-10-01", cmp.Chart[0].Date)
	assert.Equal(t, 100.0, cmp.Chart[0].NormalizedA)
	assert.Equal(t, 100.0, cmp.Chart[0].NormalizedB)

	last := cmp.Chart[len(cmp.Chart)-1]
	assert.Greater(t, last.NormalizedA, last.NormalizedB)
	assert.True(t, cmp.FundA.Fresh)
	assert.Equal(t, isinB, cmp.FundB.ISIN)
}

func TestCompareCustomRange(t *testing.T) {
	svc := newTestService(t, newUpstream(t))

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, utils.IST)
	to := time.Date(2026, 9, 10, 0, 0, 0, 0, utils.IST)
	cmp, err := svc.Compare(context.Background(), CompareRequest{
		ISINA: isinA, ISINB: isinB, Timeframe: models.TimeframeCustom, From: from, To: to,
	})
	require.NoError(t, err)
	assert.Len(t, cmp.Chart, 10)
	assert.Equal(t, "2026-09-10", cmp.Chart[9].Date)
}

func TestCompareErrors(t *testing.T) {
	u := newUpstream(t)
	svc := newTestService(t, u)
	ctx := context.Background()

	_, err := svc.Compare(ctx, CompareRequest{ISINA: isinA, ISINB: isinB, Timeframe: "2Y"})
	assert.ErrorIs(t, err, performance.ErrInvalidTimeframe)
	assert.Zero(t, u.historyHits.Load(), "timeframe is checked before fetching")

	_, err = svc.Compare(ctx, CompareRequest{ISINA: isinA, ISINB: "INF999ZZ9999", Timeframe: models.Timeframe1Y})
	var httpErr *datasource.ErrHTTP
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Contains(t, err.Error(), "fund b")
}

func TestHistoryReport(t *testing.T) {
	svc := newTestService(t, newUpstream(t))

	from := time.Date(2026, 10, 1, 0, 0, 0, 0, utils.IST)
	text, err := svc.HistoryReport(context.Background(), from, testNow)
	require.NoError(t, err)
	assert.Equal(t, "report 01-Oct-2026 15-Oct-2026", text)
}

func TestSync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap", "index-funds.json")
	svc := newTestService(t, newUpstream(t), WithStore(store.NewFileStore(path)))
	ctx := context.Background()

	_, err := svc.LatestSnapshot(ctx)
	assert.ErrorIs(t, err, store.ErrNoSnapshot)

	snap, err := svc.Sync(ctx, false)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, 2, snap.Count)
	assert.Equal(t, SourceAMFI, snap.Source)
	assert.True(t, snap.GeneratedAt.Equal(testNow))

	got, err := svc.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)
	assert.Len(t, got.Funds, 2)

	found, err := svc.LookupFunds(ctx, []string{strings.ToLower(isinB)})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "147622", found[0].SchemeCode)
}

func TestSyncWithoutStore(t *testing.T) {
	svc := newTestService(t, newUpstream(t))

	_, err := svc.Sync(context.Background(), true)
	assert.ErrorIs(t, err, ErrNoStore)
	_, err = svc.LatestSnapshot(context.Background())
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestSyncForceRefetchesFeed(t *testing.T) {
	u := newUpstream(t)
	path := filepath.Join(t.TempDir(), "index-funds.json")
	svc := newTestService(t, u, WithStore(store.NewFileStore(path)))
	ctx := context.Background()

	_, err := svc.Sync(ctx, false)
	require.NoError(t, err)
	_, err = svc.Sync(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, u.feedHits.Load(), "unforced sync reuses the cached feed")

	_, err = svc.Sync(ctx, true)
	require.NoError(t, err)
	assert.EqualValues(t, 2, u.feedHits.Load())
}

func TestStoreOpenedOnFirstUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index-funds.json")
	var opens atomic.Int32
	down := true
	opener := func(ctx context.Context) (store.Store, error) {
		opens.Add(1)
		if down {
			return nil, errors.New("connection refused")
		}
		return store.NewFileStore(path), nil
	}
	svc := newTestService(t, newUpstream(t), WithStoreOpener(opener))
	ctx := context.Background()

	// feed and history queries never touch the store
	_, err := svc.IndexFunds(ctx)
	require.NoError(t, err)
	_, err = svc.NAVSeries(ctx, isinA)
	require.NoError(t, err)
	assert.Zero(t, opens.Load())

	_, err = svc.Sync(ctx, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
	h := svc.Health(ctx)
	assert.Equal(t, "DEGRADED", h.Status)

	down = false
	snap, err := svc.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Count)
	_, err = svc.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, opens.Load(), "a successful open is kept")
	require.NoError(t, svc.Close())
}

func TestNewFromConfigDefersStoreOpen(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Driver: "postgres"}}
	svc := NewFromConfig(cfg, infra.NewSilentLogger())
	require.NotNil(t, svc)

	_, err := svc.LatestSnapshot(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "empty DSN")
	assert.NoError(t, svc.Close())
}

func TestHealth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index-funds.json")
	svc := newTestService(t, newUpstream(t), WithStore(store.NewFileStore(path)))

	h := svc.Health(context.Background())
	assert.Equal(t, "OK", h.Status)
	assert.Equal(t, "connected", h.Store)
	assert.Empty(t, h.FeedAge)

	_, err := svc.IndexFunds(context.Background())
	require.NoError(t, err)
	h = svc.Health(context.Background())
	assert.Equal(t, "0s", h.FeedAge)
}
