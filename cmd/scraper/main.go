package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Quintui/car-details-web-scraper/config"
	"github.com/Quintui/car-details-web-scraper/models"
	"github.com/Quintui/car-details-web-scraper/pipeline"
	"github.com/Quintui/car-details-web-scraper/scraper"
)

func main() {
	config.LoadDotenv()

	defaultCfg := config.DefaultConfig()
	pagesDefault := defaultCfg.MaxPages
	if value, ok, err := config.EnvInt("HARVESTER_PAGES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid HARVESTER_PAGES: %v\n", err)
		os.Exit(1)
	} else if ok {
		pagesDefault = value
	}
	budgetDefault := defaultCfg.GlobalBudget
	if value, ok, err := config.EnvInt("HARVESTER_BUDGET"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid HARVESTER_BUDGET: %v\n", err)
		os.Exit(1)
	} else if ok {
		budgetDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("HARVESTER_OUTPUT"); ok {
		outputDefault = value
	}
	baseURLDefault := defaultCfg.BaseURL
	if value, ok := config.EnvString("HARVESTER_BASE_URL"); ok {
		baseURLDefault = value
	}
	categoriesDefault := strings.Join(defaultCfg.CategoryIDs, ",")
	if value, ok := config.EnvString("HARVESTER_CATEGORIES"); ok {
		categoriesDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("HARVESTER_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	mode := flag.String("mode", defaultCfg.Mode, "Run mode: catalog or grouped")
	baseURL := flag.String("base-url", baseURLDefault, "Base URL of the source site")
	categories := flag.String("categories", categoriesDefault, "Comma-separated category ids (catalog mode)")
	brandTreeURL := flag.String("brand-tree-url", defaultCfg.BrandTreeURL, "Page carrying the embedded vehicle tree (grouped mode)")
	maxPages := flag.Int("pages", pagesDefault, "Maximum listing pages per walk")
	budget := flag.Int("budget", budgetDefault, "Global item budget, 0 for unlimited")
	perLeafCap := flag.Int("leaf-cap", defaultCfg.PerLeafCap, "Maximum items per group leaf, 0 for unlimited")
	listingDelayMs := flag.Int("listing-delay", int(defaultCfg.ListingDelay/time.Millisecond), "Minimum interval between listing fetches (milliseconds)")
	detailDelayMs := flag.Int("detail-delay", int(defaultCfg.DetailDelay/time.Millisecond), "Minimum interval between detail fetches (milliseconds)")
	leafDelayMs := flag.Int("leaf-delay", int(defaultCfg.LeafDelay/time.Millisecond), "Minimum interval between group leaves (milliseconds)")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Maximum retry attempts for transient fetch failures")
	fetchDetails := flag.Bool("details", defaultCfg.FetchDetails, "Fetch per-item detail pages")
	detailStock := flag.Bool("detail-stock", defaultCfg.DetailStock, "Trust the detail page's stock flag over the listing hint")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: csv, json, or dual")
	resume := flag.Bool("resume", false, "Resume an interrupted grouped run from the cursor sidecar")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.Mode = strings.ToLower(*mode)
	cfg.BaseURL = *baseURL
	cfg.CategoryIDs = splitList(*categories)
	cfg.BrandTreeURL = *brandTreeURL
	cfg.MaxPages = *maxPages
	cfg.GlobalBudget = *budget
	cfg.PerLeafCap = *perLeafCap
	cfg.ListingDelay = time.Duration(*listingDelayMs) * time.Millisecond
	cfg.DetailDelay = time.Duration(*detailDelayMs) * time.Millisecond
	cfg.LeafDelay = time.Duration(*leafDelayMs) * time.Millisecond
	cfg.MaxRetries = *maxRetries
	cfg.FetchDetails = *fetchDetails
	cfg.DetailStock = *detailStock && *fetchDetails
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.Resume = *resume
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting harvest",
		slog.String("mode", cfg.Mode),
		slog.String("base_url", cfg.BaseURL),
		slog.Int("pages", cfg.MaxPages),
		slog.Int("budget", cfg.GlobalBudget),
	)

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile, cfg.Resume)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	sink, err := pipeline.NewSink(writer, cfg.GlobalBudget)
	if err != nil {
		slog.Error("creating sink", slog.Any("error", err))
		os.Exit(1)
	}

	var cursor *pipeline.Cursor
	if cfg.Mode == config.ModeGrouped {
		cursor, err = pipeline.LoadCursor(pipeline.CursorPath(cfg.OutputFile), cfg.Resume)
		if err != nil {
			slog.Error("loading cursor", slog.Any("error", err))
			os.Exit(1)
		}
		if cfg.Resume && cursor.Len() > 0 {
			slog.Info("resuming run", slog.Int("completed_leaves", cursor.Len()))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	report, err := s.Run(ctx, sink, cursor)
	if err != nil {
		slog.Error("harvest failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(report, cfg.OutputFile)
}

func createWriter(format, filename string, resume bool) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename, resume)
	case "csv":
		return pipeline.NewCSVWriter(filename, resume)
	case "dual":
		return pipeline.NewDualWriter(filename, resume)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(report *models.RunReport, outputFile string) {
	duration := report.EndTime.Sub(report.StartTime)
	itemsPerSec := 0.0
	if duration.Seconds() > 0 {
		itemsPerSec = float64(report.RowsWritten) / duration.Seconds()
	}

	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Harvest complete")
	fmt.Printf("  Listing pages: %d\n", report.PageCount)
	fmt.Printf("  Items found:   %d\n", report.ItemCount)
	fmt.Printf("  Rows written:  %d\n", report.RowsWritten)
	fmt.Printf("  Skipped:       %d\n", report.SkippedItems)
	fmt.Printf("  Retries:       %d\n", report.RetryCount)
	fmt.Printf("  Errors:        %d\n", report.ErrorCount)
	if len(report.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", report.ErrorsByType)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Rows/sec:      %.2f\n", itemsPerSec)
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
