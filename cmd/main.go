package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"lubimyczytac-exporter/internal/types"
	"lubimyczytac-exporter/utils"
)

const (
	defaultBooksPath     = "dane/books.csv"
	defaultEnrichedPath  = "dane/books_enriched.csv"
	defaultGoodreadsPath = "dane/goodreads.csv"
)

var (
	verbose     bool
	httpOnly    bool
	showBrowser bool
	timeout     time.Duration
	waitTimeout time.Duration
	minDelay    time.Duration
	maxDelay    time.Duration
	maxPages    int
	metricsAddr string
)

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "lubimyczytac-exporter",
		Short: "Export a lubimyczytac.pl library to CSV and Goodreads format",
		Long: `lubimyczytac-exporter scrapes the library of a lubimyczytac.pl profile,
enriches every book with its ISBN and original title, and converts the result
into a file the Goodreads importer accepts.`,
		Example: `  # All phases, writing dane/books.csv, dane/books_enriched.csv and dane/goodreads.csv
  lubimyczytac-exporter run https://lubimyczytac.pl/profil/605200/jan

  # Single phases
  lubimyczytac-exporter scrape https://lubimyczytac.pl/profil/605200/jan -o books.csv
  lubimyczytac-exporter enrich -i books.csv -o enriched.csv
  lubimyczytac-exporter convert -i enriched.csv -o goodreads.csv`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	flags.BoolVar(&httpOnly, "http-only", false, "Use plain HTTP requests instead of a headless browser")
	flags.BoolVar(&showBrowser, "show-browser", false, "Show the browser window (disable headless mode)")
	flags.DurationVar(&timeout, "timeout", 30*time.Second, "Page load timeout")
	flags.DurationVar(&waitTimeout, "wait", 5*time.Second, "Timeout when waiting for page elements")
	flags.DurationVar(&minDelay, "delay-min", time.Second, "Minimum pause between book pages")
	flags.DurationVar(&maxDelay, "delay-max", 3*time.Second, "Maximum pause between book pages")
	flags.IntVar(&maxPages, "max-pages", 0, "Max library pages to scrape (0 for no limit)")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	rootCmd.AddCommand(
		newScrapeCmd(),
		newEnrichCmd(),
		newConvertCmd(),
		newRunCmd(),
		newInspectCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds what every subcommand shares
type app struct {
	config        *types.Config
	logger        *logrus.Logger
	metrics       *utils.Metrics
	metricsServer *http.Server
	newDriver     func(context.Context, *types.Config, types.Logger) (types.Driver, error)
}

func newApp(cmd *cobra.Command) (*app, error) {
	logger := newLogger()

	config, err := buildConfig(cmd)
	if err != nil {
		return nil, err
	}

	a := &app{
		config:    config,
		logger:    logger,
		metrics:   utils.NewMetrics(),
		newDriver: utils.OpenDriver,
	}
	a.startMetricsServer()
	return a, nil
}

func newLogger() *logrus.Logger {
	logger := logrus.New()

	// Set timestamp format with milliseconds
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	// Set log level from LOG_LEVEL env if present
	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		if level, err := logrus.ParseLevel(levelStr); err == nil {
			logger.SetLevel(level)
		}
	} else if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

// buildConfig layers defaults, LC_* environment and explicitly set flags
func buildConfig(cmd *cobra.Command) (*types.Config, error) {
	config := types.DefaultConfig()
	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("http-only") {
		config.UseHeadlessBrowser = !httpOnly
	}
	if flags.Changed("show-browser") {
		config.ShowBrowser = showBrowser
	}
	if flags.Changed("timeout") {
		config.Timeout = timeout
	}
	if flags.Changed("wait") {
		config.WaitTimeout = waitTimeout
	}
	if flags.Changed("delay-min") {
		config.MinDelay = minDelay
	}
	if flags.Changed("delay-max") {
		config.MaxDelay = maxDelay
	}
	if flags.Changed("max-pages") {
		config.MaxPages = maxPages
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func (a *app) startMetricsServer() {
	if metricsAddr == "" {
		return
	}
	a.metricsServer = &http.Server{
		Addr:    metricsAddr,
		Handler: promhttp.HandlerFor(a.metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Errorf("Metrics server failed: %v", err)
		}
	}()
	a.logger.Infof("Metrics server listening on %s", metricsAddr)
}

func (a *app) close() {
	if a.metricsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.metricsServer.Shutdown(ctx); err != nil {
		a.logger.Warnf("Metrics server shutdown: %v", err)
	}
}

// openDriver starts the page driver selected by the configuration
func (a *app) openDriver(ctx context.Context) (types.Driver, error) {
	driver, err := a.newDriver(ctx, a.config, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open driver: %w", err)
	}
	return driver, nil
}

// signalContext is cancelled on interrupt so long phases stop between records
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
