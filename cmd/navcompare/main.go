// navcompare: Indian index-fund NAV lists, metrics and comparisons.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seenimoa/navcompare/api"
	"github.com/seenimoa/navcompare/internal/analysis/fund"
	"github.com/seenimoa/navcompare/internal/analysis/performance"
	"github.com/seenimoa/navcompare/internal/config"
	"github.com/seenimoa/navcompare/internal/infra"
	"github.com/seenimoa/navcompare/internal/navservice"
	"github.com/seenimoa/navcompare/internal/report"
	"github.com/seenimoa/navcompare/pkg/models"
	"github.com/seenimoa/navcompare/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger
var (
	cfg    *config.Config
	logger *infra.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "navcompare",
	Short: "navcompare: Indian index-fund NAVs, metrics and comparisons",
	Long: `navcompare lists the index funds and ETFs in the daily AMFI NAV file,
fetches per-fund NAV history, computes trailing return and risk metrics,
and compares two funds over a 1Y, 3Y, 5Y or custom window.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if override, _ := cmd.Flags().GetString("log-level"); override != "" {
			level = override
		}
		logger = infra.NewLogger(level, cfg.Logging.Format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(fundsCmd)
	rootCmd.AddCommand(navCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

func newService() *navservice.Service {
	return navservice.NewFromConfig(cfg, logger)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("navcompare %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Funds Command ---

var fundsCmd = &cobra.Command{
	Use:   "funds",
	Short: "List index funds and ETFs from the AMFI NAV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := newService()
		defer svc.Close()

		asJSON, _ := cmd.Flags().GetBool("json")
		profiles, _ := cmd.Flags().GetBool("profiles")
		search, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")
		isins, _ := cmd.Flags().GetStringSlice("isin")

		var funds []models.IndexFundRecord
		var err error
		if len(isins) > 0 {
			funds, err = svc.LookupFunds(cmd.Context(), isins)
			if err != nil {
				return fmt.Errorf("look up snapshot funds: %w", err)
			}
		} else {
			funds, err = svc.IndexFunds(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch index funds: %w", err)
			}
		}
		funds = filterFunds(funds, search, limit)

		if profiles {
			return printJSON(fund.Profiles(funds))
		}
		if asJSON {
			return printJSON(funds)
		}

		for _, f := range funds {
			isin := "-"
			if f.ISIN != nil {
				isin = *f.ISIN
			}
			fmt.Printf("%-8s %-13s %14s  %-11s  %s\n", f.SchemeCode, isin, utils.FormatNAV(f.NAV), f.Date, f.SchemeName)
		}
		fmt.Printf("\n%d funds\n", len(funds))
		return nil
	},
}

func init() {
	fundsCmd.Flags().Bool("json", false, "print JSON")
	fundsCmd.Flags().Bool("profiles", false, "print inferred fund profiles as JSON")
	fundsCmd.Flags().String("search", "", "case-insensitive scheme name filter")
	fundsCmd.Flags().Int("limit", 0, "maximum number of funds to print (0 = all)")
	fundsCmd.Flags().StringSlice("isin", nil, "look up these ISINs in the latest saved snapshot instead of the live feed")
}

func filterFunds(funds []models.IndexFundRecord, search string, limit int) []models.IndexFundRecord {
	if search != "" {
		needle := strings.ToUpper(search)
		var out []models.IndexFundRecord
		for _, f := range funds {
			if strings.Contains(strings.ToUpper(f.SchemeName), needle) {
				out = append(out, f)
			}
		}
		funds = out
	}
	if limit > 0 && len(funds) > limit {
		funds = funds[:limit]
	}
	return funds
}

// --- NAV Command ---

var navCmd = &cobra.Command{
	Use:   "nav [isin]",
	Short: "Show the NAV history of a fund",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := newService()
		defer svc.Close()

		series, err := svc.NAVSeries(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(series)
		}

		last, _ := cmd.Flags().GetInt("last")
		pts := series.Points
		if last > 0 && len(pts) > last {
			pts = pts[len(pts)-last:]
		}

		fmt.Printf("%s (%s): %d points\n", series.Name, series.ISIN, len(series.Points))
		for _, p := range pts {
			fmt.Printf("  %-12s %14s  %s\n", p.Date, utils.FormatNAV(p.NAV), utils.FormatPct(p.ChangePercent))
		}
		return nil
	},
}

func init() {
	navCmd.Flags().Bool("json", false, "print JSON")
	navCmd.Flags().Int("last", 10, "number of most recent points to print (0 = all)")
}

// --- Metrics Command ---

var metricsCmd = &cobra.Command{
	Use:   "metrics [isin]",
	Short: "Compute return and risk metrics for a fund",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := newService()
		defer svc.Close()

		m, err := svc.FundMetrics(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(m)
		}

		fmt.Print(report.MetricsText(m.Metrics))
		fmt.Printf("    %-22s %d\n", "History points", m.Points)
		if !m.Fresh {
			fmt.Println("\n  Note: history is short or stale; long-window figures may be unreliable.")
		}
		return nil
	},
}

func init() {
	metricsCmd.Flags().Bool("json", false, "print JSON")
}

// --- Compare Command ---

var compareCmd = &cobra.Command{
	Use:   "compare [isin-a] [isin-b]",
	Short: "Compare two funds over a timeframe",
	Long: `Compare two funds over a timeframe. Both series are aligned on common
dates and rebased to 100 at the first one.

Examples:
  navcompare compare INF204KB14I2 INF194KB1DP9
  navcompare compare INF204KB14I2 INF194KB1DP9 --timeframe 3Y --chart cmp.png
  navcompare compare INF204KB14I2 INF194KB1DP9 --timeframe custom --from 2024-01-01 --to 2024-06-30`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tfFlag, _ := cmd.Flags().GetString("timeframe")
		tf, err := performance.ParseTimeframe(tfFlag)
		if err != nil {
			return err
		}

		req := navservice.CompareRequest{ISINA: args[0], ISINB: args[1], Timeframe: tf}
		if tf == models.TimeframeCustom {
			fromFlag, _ := cmd.Flags().GetString("from")
			toFlag, _ := cmd.Flags().GetString("to")
			if req.From, err = utils.ParseNAVDate(fromFlag); err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			if req.To, err = utils.ParseNAVDate(toFlag); err != nil {
				return fmt.Errorf("--to: %w", err)
			}
		}

		svc := newService()
		defer svc.Close()

		start := time.Now()
		cmp, err := svc.Compare(cmd.Context(), req)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			if err := printJSON(cmp); err != nil {
				return err
			}
		} else {
			fmt.Print(report.ComparisonText(cmp))
			fmt.Printf("  Completed in %s\n", report.FormatDuration(time.Since(start)))
		}

		if path, _ := cmd.Flags().GetString("chart"); path != "" {
			png, err := report.RenderComparisonChart(cmp, report.DefaultChartConfig())
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, png, 0o644); err != nil {
				return fmt.Errorf("write chart: %w", err)
			}
			fmt.Fprintf(os.Stderr, "chart written to %s\n", path)
		}
		return nil
	},
}

func init() {
	compareCmd.Flags().String("timeframe", "1Y", "1Y, 3Y, 5Y or custom")
	compareCmd.Flags().String("from", "", "custom window start (YYYY-MM-DD or DD-MMM-YYYY)")
	compareCmd.Flags().String("to", "", "custom window end (YYYY-MM-DD or DD-MMM-YYYY)")
	compareCmd.Flags().String("chart", "", "write the rebased comparison chart to this PNG file")
	compareCmd.Flags().Bool("json", false, "print JSON")
}

// --- Sync Command ---

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the AMFI file and save an index-fund snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := newService()
		defer svc.Close()

		force, _ := cmd.Flags().GetBool("force")
		snap, err := svc.Sync(cmd.Context(), force)
		if err != nil {
			return err
		}
		fmt.Printf("Saved snapshot %s: %d funds from %s at %s\n",
			snap.ID, snap.Count, snap.Source, utils.FormatDateTimeIST(snap.GeneratedAt))
		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("force", false, "ignore the cached feed")
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.API.Port = port
		}

		svc := newService()
		defer svc.Close()

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		return api.NewServer(cfg, svc, logger).ListenAndServe(addr)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides api.port)")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and data source status",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  navcompare: System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Time (IST):    %s\n", utils.FormatDateTimeIST(utils.NowIST()))
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Feed cache:    %s (retry %d × %s)\n", cfg.AMFI.CacheTTL, cfg.AMFI.MaxAttempts, cfg.AMFI.Backoff)
		fmt.Printf("    History rate:  %d req/s\n", cfg.History.RateLimit)
		fmt.Printf("    Risk-free:     %.2f%%\n", cfg.Metrics.RiskFreeRate)
		fmt.Printf("    Store:         %s\n", cfg.Store.Driver)
		fmt.Printf("    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Println()

		fmt.Println("  Sources:")
		for _, s := range config.CheckSources(cfg) {
			status := "❌ not set"
			if s.IsSet {
				status = fmt.Sprintf("✅ %s (%s)", s.Value, s.Source)
			}
			fmt.Printf("    %-22s %s\n", s.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
