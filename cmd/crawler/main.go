// Package main is the command-line front end of the gazette scraper.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/cetsp/diario-scraper/internal/config"
	"github.com/cetsp/diario-scraper/internal/crawler"
	"github.com/cetsp/diario-scraper/internal/daterange"
	"github.com/cetsp/diario-scraper/internal/export"
	"github.com/cetsp/diario-scraper/internal/models"
	"github.com/cetsp/diario-scraper/internal/realtime"
	"github.com/cetsp/diario-scraper/internal/storage"
	"github.com/cetsp/diario-scraper/pkg/logger"
)

// Version information (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// ScrapeOptions holds options for the scrape command.
type ScrapeOptions struct {
	Start      string
	End        string
	Terms      []string
	Categories []string
	Format     string
	Output     string
	NoCache    bool
	Quiet      bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	rootCmd := &cobra.Command{
		Use:           "crawler",
		Short:         "Diário Oficial SP scraper",
		Long:          "Collects CET publications from the São Paulo city gazette and exports them.",
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newScrapeCmd())
	rootCmd.AddCommand(newRenderCmd())
	rootCmd.AddCommand(newPublicationsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

// newScrapeCmd creates the scrape subcommand.
func newScrapeCmd() *cobra.Command {
	opts := &ScrapeOptions{}

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Search the gazette over a date range",
		Example: `  # All CET publications on one day, as JSON on stdout
  crawler scrape --start 01/03/2024 --end 01/03/2024

  # Contracts mentioning "radar" over a week, as a spreadsheet
  crawler scrape --start 01/03/2024 --end 08/03/2024 --term radar --category contrato --out radar.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Start, "start", "", "First day, DD/MM/YYYY")
	cmd.Flags().StringVar(&opts.End, "end", "", "Last day, DD/MM/YYYY (defaults to --start)")
	cmd.Flags().StringArrayVarP(&opts.Terms, "term", "t", nil, "Search term; repeat for several")
	cmd.Flags().StringSliceVarP(&opts.Categories, "category", "c", nil, "Keep only these document types (contrato, aditamento, licitacao, ...)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: json, xlsx or html (defaults to the --out extension, then json)")
	cmd.Flags().StringVarP(&opts.Output, "out", "o", "", "Output file (defaults to stdout)")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "Skip the Redis detail cache even when configured")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Hide the progress spinner")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

// newRenderCmd creates the render subcommand.
func newRenderCmd() *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "render [records.json]",
		Short: "Convert a saved JSON result into HTML or a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(args[0], format, output, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: json, xlsx or html (defaults to the --out extension, then html)")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output file (defaults to stdout)")

	return cmd
}

// newPublicationsCmd creates the publications subcommand.
func newPublicationsCmd() *cobra.Command {
	var day, format, output string

	cmd := &cobra.Command{
		Use:   "publications",
		Short: "List archived records for one publication day",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublications(cmd.Context(), day, format, output, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&day, "date", "d", "", "Publication day, DD/MM/YYYY")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: json, xlsx or html")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output file (defaults to stdout)")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

func newLogger(cfg *config.Config) *logger.Logger {
	log := logger.New(logger.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		AddSource: cfg.Log.AddSource,
		Output:    os.Stderr,
	})
	log.SetDefault()
	return log
}

// runScrape executes the scrape command.
func runScrape(ctx context.Context, opts *ScrapeOptions, stdout io.Writer) error {
	if opts.End == "" {
		opts.End = opts.Start
	}
	req := models.SearchRequest{
		StartDate:  opts.Start,
		EndDate:    opts.End,
		Terms:      opts.Terms,
		Categories: opts.Categories,
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}

	format, err := resolveFormat(opts.Format, opts.Output, export.FormatJSON)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := newLogger(cfg)

	scraperOpts := []crawler.Option{
		crawler.WithDiagnostics(storage.NewLocalSink(cfg.Scraper.DiagnosticsDir)),
	}
	if cfg.Redis.Enabled && !opts.NoCache {
		redisClient, err := storage.NewRedisClient(storage.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.WithError(err).Warn("failed to connect to Redis, detail cache disabled")
		} else {
			cacheCfg := storage.DefaultCacheConfig()
			cacheCfg.TTL = cfg.Redis.TTL
			cache := storage.NewDetailCache(redisClient, log, cacheCfg)
			defer func() {
				stats := cache.Stats()
				log.Debug("detail cache stats", "hits", stats.Hits, "misses", stats.Misses, "errors", stats.Errors)
				_ = cache.Close()
			}()
			scraperOpts = append(scraperOpts, crawler.WithCache(cache))
		}
	}

	scraper := crawler.New(crawler.ConfigFrom(cfg.Scraper), crawler.NewChromeLauncher(cfg.Scraper), log, scraperOpts...)
	runner := realtime.NewRunner(scraper, log)

	bar := newSpinner(opts.Quiet)
	res, searchErr := runner.Run(ctx, req, func(msg string) {
		bar.Describe(msg)
		_ = bar.Add(1)
	})
	_ = bar.Finish()

	if searchErr != nil && !errors.Is(searchErr, context.Canceled) {
		return fmt.Errorf("search %s failed: %w", res.SearchID, searchErr)
	}
	if searchErr != nil {
		log.Warn("search interrupted, writing partial results", "records", len(res.Records))
	}

	if err := writeRecords(format, opts.Output, stdout, res.Records); err != nil {
		return err
	}
	log.Info("search finished",
		"search_id", res.SearchID,
		"records", len(res.Records),
		"elapsed", res.Elapsed.Round(time.Millisecond),
	)
	return searchErr
}

// runRender executes the render command.
func runRender(input, formatName, output string, stdout io.Writer) error {
	format, err := resolveFormat(formatName, output, export.FormatHTML)
	if err != nil {
		return err
	}

	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("failed to open records: %w", err)
	}
	defer f.Close()

	records, err := export.ReadJSON(f)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", input, err)
	}
	return writeRecords(format, output, stdout, records)
}

// runPublications executes the publications command.
func runPublications(ctx context.Context, day, formatName, output string, stdout io.Writer) error {
	if _, err := daterange.Parse("date", day); err != nil {
		return err
	}
	format, err := resolveFormat(formatName, output, export.FormatJSON)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := newLogger(cfg)

	db, err := storage.NewPostgres(storage.PostgresConfig{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to archive: %w", err)
	}
	defer db.Close()

	records, err := storage.NewArchive(db, log).ByDate(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", day, err)
	}
	return writeRecords(format, output, stdout, records)
}

// resolveFormat picks the explicit format, then the output extension, then
// the fallback.
func resolveFormat(name, output string, fallback export.Format) (export.Format, error) {
	if name != "" {
		return export.ParseFormat(name)
	}
	if ext := filepath.Ext(output); ext != "" {
		if f, err := export.ParseFormat(ext); err == nil {
			return f, nil
		}
	}
	return fallback, nil
}

// writeRecords writes to output, or to stdout when output is empty.
func writeRecords(format export.Format, output string, stdout io.Writer, records []models.PublicationRecord) error {
	if output == "" {
		return export.Write(stdout, format, records)
	}

	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := export.Write(f, format, records); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	return f.Close()
}

// newSpinner returns an unbounded progress bar on stderr that shows the
// latest status line.
func newSpinner(quiet bool) *progressbar.ProgressBar {
	if quiet {
		return progressbar.DefaultSilent(-1)
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Iniciando busca"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
}
