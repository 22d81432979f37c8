package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-tyres/config"
	"github.com/aluiziolira/go-scrape-tyres/models"
	"github.com/aluiziolira/go-scrape-tyres/scraper"
	"github.com/aluiziolira/go-scrape-tyres/site"
	"github.com/aluiziolira/go-scrape-tyres/site/reifendirekt"
)

const usageHint = `Goto https://www.reifendirekt.de/Motorradreifen.html - "Motorrad-Auswahl", enter your bike and paste the search link`

var exampleURLs = []string{
	"https://www.reifendirekt.de/search-moto?manufacturer=SUZUKI&capacity=1200&model=GSF%201200%20%2F%20S%20(2001%20-%202005)&type=WVA9",
	"https://www.reifendirekt.de/search-moto?manufacturer=SUZUKI&capacity=400&model=DR-Z%20400%20SM%20(2005%20-%202008)&type=WVB8&brand=",
	"https://www.reifendirekt.de/search-moto?manufacturer=SUZUKI&capacity=650&model=SV+650+%282023+-+%29&type=WCX0",
	"https://www.reifendirekt.de/search-moto?manufacturer=HUSQVARNA&capacity=690&model=701+Supermoto+%282016+-+%29&type=A",
	"https://www.reifendirekt.de/search-moto?manufacturer=SUZUKI&capacity=600&model=GSF+600+%282000+-+2004%29&type=WVA8",
}

var errChainsFailed = errors.New("one or more crawls failed")

type flags struct {
	configPath   string
	outputDir    string
	outputFormat string
	pageDelay    time.Duration
	timeout      time.Duration
	maxRetries   int
	maxPages     int
	concurrency  int
	pageSize     int
	metricsAddr  string
	logFile      string
	verbose      bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:           "tyrescraper",
		Short:         "tyrescraper crawls motorcycle tyre listings and writes the offers to CSV.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f.register(root)

	root.AddCommand(
		&cobra.Command{
			Use:   "crawl <search-url>...",
			Short: "Crawls every page of the given search links.",
			RunE: func(cmd *cobra.Command, args []string) error {
				if len(args) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), usageHint)
					return nil
				}
				return runCrawls(cmd, f, args)
			},
		},
		&cobra.Command{
			Use:   "examples",
			Short: "Crawls a fixed set of example search links.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runCrawls(cmd, f, exampleURLs)
			},
		},
	)
	return root
}

// register binds the persistent flags shared by every subcommand.
func (f *flags) register(cmd *cobra.Command) {
	defaults := config.DefaultConfig()
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "YAML config file")
	pf.StringVarP(&f.outputDir, "output-dir", "o", defaults.OutputDir, "Directory for result files")
	pf.StringVar(&f.outputFormat, "format", defaults.OutputFormat, "Output format: csv, json, or dual")
	pf.DurationVar(&f.pageDelay, "delay", defaults.PageDelay, "Delay between pages of one crawl")
	pf.DurationVar(&f.timeout, "timeout", defaults.Timeout, "Per request timeout")
	pf.IntVar(&f.maxRetries, "max-retries", defaults.MaxRetries, "Maximum retry attempts for transient fetch failures")
	pf.IntVar(&f.maxPages, "max-pages", defaults.MaxPages, "Maximum pages followed per crawl")
	pf.IntVar(&f.concurrency, "concurrency", defaults.Concurrency, "Number of crawls running at once")
	pf.IntVar(&f.pageSize, "page-size", defaults.PageSize, "Items per page requested from the site")
	pf.StringVar(&f.metricsAddr, "metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	pf.StringVar(&f.logFile, "log-file", defaults.LogFile, "Also write logs to this rotating file")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "Enable verbose logging")
}

// loadConfig layers defaults, the config file, TYRES_* variables and
// explicitly set flags, in that order.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if f.configPath != "" {
		loaded, err := config.LoadFile(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	changed := cmd.Flags().Changed
	if changed("output-dir") {
		cfg.OutputDir = f.outputDir
	}
	if changed("format") {
		cfg.OutputFormat = strings.ToLower(f.outputFormat)
	}
	if changed("delay") {
		cfg.PageDelay = f.pageDelay
	}
	if changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if changed("max-retries") {
		cfg.MaxRetries = f.maxRetries
	}
	if changed("max-pages") {
		cfg.MaxPages = f.maxPages
	}
	if changed("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if changed("page-size") {
		cfg.PageSize = f.pageSize
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	if changed("log-file") {
		cfg.LogFile = f.logFile
	}
	if changed("verbose") {
		cfg.Verbose = f.verbose
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runCrawls(cmd *cobra.Command, f *flags, urls []string) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	logger, level, closer := newLogger(cfg.Verbose, cfg.LogFile)
	defer closer.Close()
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	registry := site.NewRegistry(reifendirekt.New(reifendirekt.WithPageSize(cfg.PageSize)))
	crawler, err := scraper.NewCrawler(cfg, registry)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	stopMetrics := serveMetrics(cfg.MetricsAddr, crawler.Metrics)
	defer stopMetrics()

	slog.Info("starting crawl",
		slog.Int("urls", len(urls)),
		slog.Int("concurrency", cfg.Concurrency),
		slog.String("output_dir", cfg.OutputDir),
		slog.String("format", cfg.OutputFormat),
	)

	results := crawler.RunAll(ctx, urls)
	printSummary(cmd.OutOrStdout(), results)

	for _, r := range results {
		if !r.Succeeded() {
			return errChainsFailed
		}
	}
	return nil
}

func serveMetrics(addr string, metrics *scraper.Metrics) func() {
	if addr == "" || metrics == nil {
		return func() {}
	}

	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

func failureKind(r *models.RunResult) string {
	if r.Succeeded() {
		return ""
	}
	return string(models.KindOf(r.Err))
}
