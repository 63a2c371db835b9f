package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pfrederiksen/odmp-harvest/internal/config"
	"github.com/pfrederiksen/odmp-harvest/internal/harvest"
	"github.com/pfrederiksen/odmp-harvest/internal/logger"
	"github.com/pfrederiksen/odmp-harvest/internal/parser"
	"github.com/pfrederiksen/odmp-harvest/internal/scraper"
	"github.com/pfrederiksen/odmp-harvest/internal/storage"
	"github.com/spf13/cobra"
)

type downloadOptions struct {
	output        string
	startYear     int
	endYear       int
	configPath    string
	format        string
	skipMalformed bool
	verbose       bool
}

func newDownloadCmd() *cobra.Command {
	opts := &downloadOptions{}
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download every memorial into a SQLite database",
		Long: `Download clears the output database, then requests every year from --start
through --end and stores each memorial record as its page is parsed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output SQLite file, must end in .db (default ./"+storage.DefaultFilename+")")
	cmd.Flags().IntVar(&opts.startYear, "start", scraper.FirstYear, "First year to download")
	cmd.Flags().IntVar(&opts.endYear, "end", time.Now().Year(), "Last year to download")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Summary format: text or json")
	cmd.Flags().BoolVar(&opts.skipMalformed, "skip-malformed", false, "Skip rows with unparseable fields instead of aborting")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")

	return cmd
}

// runDownload is the main command logic
func runDownload(cmd *cobra.Command, opts *downloadOptions) (err error) {
	format := OutputFormat(strings.ToLower(opts.format))
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", opts.format)
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("skip-malformed") {
		cfg.Harvest.SkipMalformed = opts.skipMalformed
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	log := logger.New(level, cmd.ErrOrStderr())
	logger.SetDefault(log)
	metrics := logger.NewMetrics()

	if opts.startYear > opts.endYear {
		return fmt.Errorf("%w: --start %d, --end %d", harvest.ErrYearRange, opts.startYear, opts.endYear)
	}

	path := opts.output
	if path == "" {
		if path, err = storage.DefaultPath(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The store is opened before any request so a bad path fails fast.
	store, err := storage.Open(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing database: %w", cerr)
		}
	}()

	clientOpts := cfg.ScraperOptions()
	clientOpts.Logger = log
	clientOpts.Metrics = metrics
	client := scraper.NewWithOptions(clientOpts)

	// JSON output keeps stdout to the summary document alone.
	progressOut := cmd.OutOrStdout()
	if format == FormatJSON {
		progressOut = cmd.ErrOrStderr()
	}

	h := harvest.New(client, harvest.Options{
		PageSize: cfg.Harvest.PageSize,
		Parser:   parser.Options{SkipMalformed: cfg.Harvest.SkipMalformed},
		Progress: progressPrinter(progressOut),
		Logger:   log,
		Metrics:  metrics,
	})

	log.Info("starting download", logger.Fields{
		"output": store.Path(),
		"start":  opts.startYear,
		"end":    opts.endYear,
		"source": cfg.Source.BaseURL,
	})

	stats, err := h.Run(ctx, opts.startYear, opts.endYear, store)
	if err != nil {
		return fmt.Errorf("download failed after %d records: %w", stats.Records, err)
	}

	summary := &Summary{
		CompletedAt: time.Now().UTC(),
		Output:      store.Path(),
		StartYear:   opts.startYear,
		EndYear:     opts.endYear,
		Years:       stats.Years,
		Pages:       stats.Pages,
		Records:     stats.Records,
		Skipped:     stats.Skipped,
		Retries:     metrics.GetSnapshot().Counter(logger.MetricFetchRetries),
		Duration:    stats.Duration,
	}
	if info, serr := os.Stat(store.Path()); serr == nil {
		summary.SizeBytes = info.Size()
	}

	if err := WriteSummary(cmd.OutOrStdout(), summary, format); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func progressPrinter(w io.Writer) func(harvest.Progress) {
	return func(p harvest.Progress) {
		fmt.Fprintf(w, "Processing year %d page %d of %d\n", p.Year, p.Page, p.Pages)
	}
}
