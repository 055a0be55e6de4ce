package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/deltacrawl/internal/config"
	"github.com/nao1215/deltacrawl/internal/log"
	"github.com/nao1215/deltacrawl/internal/model"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <dir|url>...",
		Short: "Crawl directories or web sites and report changes",
		Long: `Crawl enumerates every item of the given sources, extracts metadata from new
and changed items, and reports the differences to the previous run.

A source is either a directory or an http(s) URL. Archives (zip, tar) and
compressed files (gzip, bzip2, zstd, brotli) are expanded up to --max-depth
levels, and their entries are tracked like regular files.

Pressing Ctrl-C stops the crawl: items already seen are recorded, nothing is
reported as deleted, and the next run continues from the stored state.

Examples:
  # Crawl a directory
  deltacrawl crawl ./documents

  # Crawl two sources, one of them a web site, with a JSON report
  deltacrawl crawl --json ./documents https://docs.example.com/

  # Ignore the previous run and re-extract everything
  deltacrawl crawl --full ./documents

  # Detect changes by content instead of modification time
  deltacrawl crawl --marker hash ./documents

  # Crawl through a SOCKS5 proxy without touching the database
  deltacrawl crawl --proxy 127.0.0.1:1080 --ledger memory https://example.com/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}
	addCrawlFlags(cmd)
	return cmd
}

// addCrawlFlags registers the flags shared by crawl and watch.
func addCrawlFlags(cmd *cobra.Command) {
	// Engine flags
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent extractions per source")
	cmd.Flags().IntP("max-depth", "d", config.DefaultMaxDepth,
		"Number of archive levels to expand (0 disables expansion)")
	cmd.Flags().Duration("item-timeout", config.DefaultItemTimeout,
		"Time limit for extracting one item (0 for none)")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Number of sources crawled at once")
	cmd.Flags().Bool("full", false,
		"Ignore the previous run: report every item as new and nothing as deleted")
	cmd.Flags().Bool("force-extract", false,
		"Extract unchanged items too")

	// Directory source flags
	cmd.Flags().String("marker", config.DefaultMarkerMode,
		"Change detection for files: mtime or hash")
	cmd.Flags().Bool("hidden", false,
		"Include dot files and directories")
	cmd.Flags().Int64("max-entry-size", config.DefaultMaxEntrySize,
		"Maximum size in bytes of one archive entry")

	// HTTP source flags
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy for HTTP sources (host:port)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"HTTP request timeout")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Delay between HTTP requests")
	cmd.Flags().Int("http-depth", config.DefaultHTTPDepth,
		"Link depth followed from the start URL")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages fetched per HTTP source")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header for HTTP requests")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum size in bytes of one HTTP response")

	// Storage flags
	cmd.Flags().String("ledger", config.DefaultLedgerBackend,
		"Where access records are kept: sqlite, file or memory")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().BoolP("quiet", "q", false,
		"Do not print a line per changed item")
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd, cfg)
	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	return runCrawl(ctx, cmd, cfg, logger)
}

// runCrawl crawls every target once.
func runCrawl(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	a, err := newApp(cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	results, err := a.crawl(ctx, cfg.Targets)
	if err != nil {
		return err
	}

	stopped := false
	for _, r := range results {
		if r.Report != nil && r.Report.Status == model.StatusStopped {
			stopped = true
		}
	}
	if stopped {
		fmt.Fprintln(cmd.ErrOrStderr(), "Crawl interrupted; partial results were recorded.")
	}
	logger.Info("crawl command finished", "sources", len(results), "duration", time.Since(start))

	return failures(results)
}

// buildConfig creates a Config from cobra command flags and the
// configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Targets = args

	flags := cmd.Flags()
	var errs []error
	getInt := func(name string) int {
		v, err := flags.GetInt(name)
		errs = append(errs, err)
		return v
	}
	getInt64 := func(name string) int64 {
		v, err := flags.GetInt64(name)
		errs = append(errs, err)
		return v
	}
	getBool := func(name string) bool {
		v, err := flags.GetBool(name)
		errs = append(errs, err)
		return v
	}
	getString := func(name string) string {
		v, err := flags.GetString(name)
		errs = append(errs, err)
		return v
	}
	getDuration := func(name string) time.Duration {
		v, err := flags.GetDuration(name)
		errs = append(errs, err)
		return v
	}

	cfg.Verbose = getBool("verbose")
	cfg.LogFormat = getString("log-format")
	cfg.DBDir = getString("db-dir")
	cfg.ConfigFilePath = getString("config")

	if flags.Lookup("workers") != nil {
		cfg.Workers = getInt("workers")
		cfg.MaxDepth = getInt("max-depth")
		cfg.ItemTimeout = getDuration("item-timeout")
		cfg.Concurrency = getInt("concurrency")
		cfg.ForceFull = getBool("full")
		cfg.ForceExtract = getBool("force-extract")
		cfg.MarkerMode = getString("marker")
		cfg.IncludeHidden = getBool("hidden")
		cfg.MaxEntrySize = getInt64("max-entry-size")
		cfg.ProxyAddress = getString("proxy")
		cfg.Timeout = getDuration("timeout")
		cfg.CrawlDelay = getDuration("delay")
		cfg.HTTPDepth = getInt("http-depth")
		cfg.MaxPages = getInt("max-pages")
		cfg.UserAgent = getString("user-agent")
		cfg.MaxBodySize = getInt64("max-body-size")
		cfg.LedgerBackend = getString("ledger")
		cfg.JSONReport = getBool("json")
		cfg.MarkdownReport = getBool("markdown")
		cfg.ReportFile = getString("output")
		cfg.Quiet = getBool("quiet")
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	// An explicitly named file must exist; otherwise a missing file means
	// no per-source settings.
	path := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case path != "":
		file, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		cfg.SourceConfigs = file
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SourceConfigs = &config.File{Sources: make(map[string]config.SourceConfig)}
	}
	return cfg, nil
}

// setupLogger creates the secure logger for the configured format.
func setupLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return log.NewLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogFormat == config.LogFormatJSON)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, stopping crawl")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
