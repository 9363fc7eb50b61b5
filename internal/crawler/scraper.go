// Package crawler drives the gazette search: it opens a browser, searches
// each day of a range, filters the results and extracts every selected
// publication concurrently.
package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/cetsp/diario-scraper/internal/config"
	"github.com/cetsp/diario-scraper/internal/daterange"
	"github.com/cetsp/diario-scraper/internal/models"
	"github.com/cetsp/diario-scraper/internal/retry"
	"github.com/cetsp/diario-scraper/pkg/logger"
)

// Config holds the scraper settings.
type Config struct {
	BaseURL         string
	OrgID           string
	ExclusionMarker string
	MaxConcurrency  int
	// RateLimit caps detail navigations per second. Zero disables it.
	RateLimit      int
	ResultsTimeout time.Duration
	Engines        []Engine
	Retry          retry.Policy
}

// DefaultConfig returns the settings for the CET search.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "https://diariooficial.prefeitura.sp.gov.br/md_epubli_controlador.php?acao=materias_pesquisar",
		OrgID:           "68",
		ExclusionMarker: "GSU",
		MaxConcurrency:  5,
		RateLimit:       10,
		ResultsTimeout:  10 * time.Second,
		Engines:         DefaultEngines("", ""),
		Retry:           retry.DefaultPolicy(),
	}
}

// ConfigFrom maps the environment configuration onto scraper settings.
func ConfigFrom(sc config.ScraperConfig) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = sc.BaseURL
	cfg.OrgID = sc.OrgID
	cfg.ExclusionMarker = sc.ExclusionMarker
	cfg.MaxConcurrency = sc.MaxConcurrency
	cfg.RateLimit = sc.RateLimit
	cfg.ResultsTimeout = sc.ResultsTimeout
	cfg.Engines = DefaultEngines(sc.ChromePath, sc.EdgePath)
	return cfg
}

// NewChromeLauncher builds the chromedp launcher from the environment
// configuration.
func NewChromeLauncher(sc config.ScraperConfig) *ChromeLauncher {
	return &ChromeLauncher{
		UserAgent:     sc.UserAgent,
		Headless:      sc.Headless,
		LaunchTimeout: sc.LaunchTimeout,
		NavTimeout:    sc.NavTimeout,
	}
}

// DiagnosticsSink persists screenshots and HTML snapshots of failed days.
type DiagnosticsSink interface {
	Save(ctx context.Context, name string, data []byte, contentType string) error
}

// Progress receives human-readable status lines. Calls are serialized.
type Progress func(message string)

type reporter struct {
	mu sync.Mutex
	fn Progress
}

func (r *reporter) send(msg string) {
	if r == nil || r.fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fn(msg)
}

// Scraper searches the gazette.
type Scraper struct {
	cfg      Config
	launcher Launcher
	sink     DiagnosticsSink
	cache    DetailCache
	metrics  *Metrics
	limiter  *rate.Limiter
	log      *logger.Logger
}

// Option customizes a Scraper.
type Option func(*Scraper)

// WithDiagnostics stores failure artifacts in sink.
func WithDiagnostics(sink DiagnosticsSink) Option {
	return func(s *Scraper) { s.sink = sink }
}

// WithCache reuses detail pages from cache.
func WithCache(cache DetailCache) Option {
	return func(s *Scraper) { s.cache = cache }
}

// WithMetrics records Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Scraper) { s.metrics = m }
}

// New creates a Scraper.
func New(cfg Config, launcher Launcher, log *logger.Logger, opts ...Option) *Scraper {
	if log == nil {
		log = logger.Default()
	}
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	s := &Scraper{
		cfg:      cfg,
		launcher: launcher,
		limiter:  rate.NewLimiter(limit, cfg.MaxConcurrency),
		log:      log.WithComponent("scraper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scrape searches every day from start to end (DD/MM/YYYY, swapped when
// inverted) and returns the extracted records. Only an invalid date or the
// absence of any usable browser is returned as an error; failed days and
// items are reported through progress and skipped. When ctx ends early the
// records gathered so far are returned with ctx's error.
func (s *Scraper) Scrape(ctx context.Context, start, end string, terms []string, progress Progress) ([]models.PublicationRecord, error) {
	began := time.Now()
	report := &reporter{fn: progress}
	log := s.log.WithContext(ctx)

	days, err := daterange.Plan(start, end, func(msg string) { log.Warn(msg) })
	if err != nil {
		return nil, err
	}

	sess, err := s.openSession(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.WithError(err).Error("failed to close browser")
			return
		}
		log.Info("browser closed")
	}()

	page, err := sess.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: open search page: %w", ErrBrowserUnavailable, err)
	}
	defer page.Close()

	filter := Filter{ExclusionMarker: s.cfg.ExclusionMarker, Terms: terms}

	var results []models.PublicationRecord
	for _, d := range days {
		if ctx.Err() != nil {
			break
		}
		day := daterange.Format(d)
		report.send(fmt.Sprintf("Acessando Diário Oficial para: %s", day))

		raw, err := s.searchDate(ctx, page, day)
		if err != nil {
			s.metrics.date("failed")
			log.WithError(err).Error("search failed after retries", "date", day)
			s.captureFailure(ctx, page, day)
			report.send(fmt.Sprintf("[ERRO] Erro ou timeout ao buscar %s. Verifique logs.", day))
			continue
		}
		if len(raw) == 0 {
			s.metrics.date("empty")
			report.send(fmt.Sprintf("[AVISO] Nenhuma publicação encontrada para %s", day))
			continue
		}
		s.metrics.date("ok")

		items := filter.Apply(raw)
		report.send(fmt.Sprintf("Encontrados %d itens relevantes em %s. Extraindo detalhes (Modo Paralelo)...", len(items), day))

		results = append(results, s.fetchDetails(ctx, sess, day, items, report)...)
	}

	elapsed := time.Since(began)
	s.metrics.scrapeDone(elapsed)
	log.Info("scrape finished", "elapsed", elapsed, "results", len(results))
	report.send(fmt.Sprintf("Concluído em %s. Encontrados: %d", elapsed.Round(time.Second), len(results)))

	return results, ctx.Err()
}
