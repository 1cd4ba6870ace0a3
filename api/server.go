// Package api provides the HTTP REST API server for navcompare.
//
// It exposes the index-fund list, per-fund NAV history and metrics, pairwise
// comparisons, the AMFI history pass-through and snapshot sync.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seenimoa/navcompare/internal/analysis/performance"
	"github.com/seenimoa/navcompare/internal/config"
	"github.com/seenimoa/navcompare/internal/datasource"
	"github.com/seenimoa/navcompare/internal/infra"
	"github.com/seenimoa/navcompare/internal/navservice"
	"github.com/seenimoa/navcompare/internal/report"
	"github.com/seenimoa/navcompare/internal/store"
	"github.com/seenimoa/navcompare/pkg/models"
	"github.com/seenimoa/navcompare/pkg/utils"
)

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	cfg    *config.Config
	svc    *navservice.Service
	logger *infra.Logger
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, svc *navservice.Service, logger *infra.Logger) *Server {
	if logger == nil {
		logger = infra.NewSilentLogger()
	}
	s := &Server{cfg: cfg, svc: svc, logger: logger}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-done:
	}
	s.logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	// CORS
	origins := []string{"*"}
	if s.cfg != nil && len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Fund list
		r.Get("/index-funds", s.handleIndexFunds)
		r.Get("/fund-profiles", s.handleFundProfiles)

		// Per-fund history and metrics
		r.Get("/nav/{isin}", s.handleNAV)
		r.Get("/metrics/{isin}", s.handleMetrics)

		// Comparison
		r.Get("/compare", s.handleCompare)

		// AMFI history pass-through
		r.Get("/amfi/history", s.handleAMFIHistory)

		// Snapshots
		r.Get("/snapshot", s.handleSnapshot)
		r.Post("/sync", s.handleSync)

		// Configuration
		r.Get("/config", s.handleGetConfig)
		r.Get("/config/sources", s.handleGetConfigSources)
	})

	return r
}

// requestLogger logs one line per request through zerolog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// ════════════════════════════════════════════════════════════════════
// Response types
// ════════════════════════════════════════════════════════════════════

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// IndexFundsResponse is the payload of GET /api/v1/index-funds.
type IndexFundsResponse struct {
	Count   int                      `json:"count"`
	Funds   []models.IndexFundRecord `json:"funds"`
	Partial bool                     `json:"partial,omitempty"`
	Source  string                   `json:"source,omitempty"`
}

// ════════════════════════════════════════════════════════════════════
// Handlers
// ════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.svc.Health(r.Context())})
}

// handleIndexFunds serves the classified fund list. When the feed cannot be
// fetched it still answers 200 with the fallback list flagged partial.
func (s *Server) handleIndexFunds(w http.ResponseWriter, r *http.Request) {
	funds, err := s.svc.IndexFunds(r.Context())
	if err != nil {
		if !errors.Is(err, datasource.ErrFeedUnavailable) {
			s.writeServiceError(w, err)
			return
		}
		s.logger.Error().Err(err).Msg("AMFI feed unavailable, serving fallback list")
		fallback := s.svc.FallbackFunds()
		writeJSON(w, http.StatusOK, APIResponse{
			Success: true,
			Data: IndexFundsResponse{
				Count:   len(fallback),
				Funds:   fallback,
				Partial: true,
				Source:  navservice.SourceFallback,
			},
		})
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    IndexFundsResponse{Count: len(funds), Funds: funds},
	})
}

func (s *Server) handleFundProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.svc.FundProfiles(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: profiles})
}

func (s *Server) handleNAV(w http.ResponseWriter, r *http.Request) {
	series, err := s.svc.NAVSeries(r.Context(), chi.URLParam(r, "isin"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: series})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.FundMetrics(r.Context(), chi.URLParam(r, "isin"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: m})
}

// handleCompare serves GET /api/v1/compare?a=&b=&timeframe=&from=&to=.
// With format=png the rebased chart is returned as an image.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, b := q.Get("a"), q.Get("b")
	if a == "" || b == "" {
		writeError(w, http.StatusBadRequest, "query parameters a and b are required")
		return
	}

	tfParam := q.Get("timeframe")
	if tfParam == "" {
		tfParam = string(models.Timeframe1Y)
	}
	tf, err := performance.ParseTimeframe(tfParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := navservice.CompareRequest{ISINA: a, ISINB: b, Timeframe: tf}
	if tf == models.TimeframeCustom {
		if req.From, err = parseDateParam(q.Get("from")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid from: "+err.Error())
			return
		}
		if req.To, err = parseDateParam(q.Get("to")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid to: "+err.Error())
			return
		}
	}

	cmp, err := s.svc.Compare(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if q.Get("format") == "png" {
		png, err := report.RenderComparisonChart(cmp, report.DefaultChartConfig())
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		w.Write(png) //nolint:errcheck
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: cmp})
}

// handleAMFIHistory passes the AMFI NAV history report through as text.
func (s *Server) handleAMFIHistory(w http.ResponseWriter, r *http.Request) {
	frmdt, todt := r.URL.Query().Get("frmdt"), r.URL.Query().Get("todt")
	if frmdt == "" || todt == "" {
		writeError(w, http.StatusBadRequest, "frmdt and todt are required (DD-MMM-YYYY)")
		return
	}
	from, err := utils.ParseNAVDate(frmdt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid frmdt: "+err.Error())
		return
	}
	to, err := utils.ParseNAVDate(todt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid todt: "+err.Error())
		return
	}

	text, err := s.svc.HistoryReport(r.Context(), from, to)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(text)) //nolint:errcheck
}

// handleSnapshot returns the latest saved snapshot. With ?isin=A,B it returns
// only the snapshot funds carrying those ISINs.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("isin"); raw != "" {
		funds, err := s.svc.LookupFunds(r.Context(), strings.Split(raw, ","))
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, APIResponse{
			Success: true,
			Data:    IndexFundsResponse{Count: len(funds), Funds: funds},
		})
		return
	}

	snap, err := s.svc.LatestSnapshot(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: snap})
}

// handleSync fetches, classifies and stores a snapshot. ?force=true bypasses
// the feed cache.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	snap, err := s.svc.Sync(r.Context(), force)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: snap})
}

// ════════════════════════════════════════════════════════════════════
// Helpers
// ════════════════════════════════════════════════════════════════════

func parseDateParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, errors.New("missing date")
	}
	return utils.ParseNAVDate(v)
}

// writeServiceError maps the service error taxonomy onto HTTP responses.
// Upstream failures are relayed with their own status and body.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var httpErr *datasource.ErrHTTP
	var validation *datasource.ValidationError

	switch {
	case errors.As(err, &httpErr):
		if httpErr.ContentType != "" {
			w.Header().Set("Content-Type", httpErr.ContentType)
		}
		w.WriteHeader(httpErr.StatusCode)
		w.Write([]byte(httpErr.Body)) //nolint:errcheck
	case errors.As(err, &validation), errors.Is(err, performance.ErrInvalidTimeframe):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNoSnapshot):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, datasource.ErrFeedUnavailable), errors.Is(err, navservice.ErrNoStore),
		errors.Is(err, navservice.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
