package realtime

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cetsp/diario-scraper/internal/crawler"
	"github.com/cetsp/diario-scraper/internal/models"
	"github.com/cetsp/diario-scraper/pkg/logger"
)

// Searcher runs one gazette search. *crawler.Scraper implements it.
type Searcher interface {
	Scrape(ctx context.Context, start, end string, terms []string, progress crawler.Progress) ([]models.PublicationRecord, error)
}

// EventPublisher receives search events. *NATSClient implements it.
type EventPublisher interface {
	PublishLog(ctx context.Context, searchID, message string) error
	PublishResult(ctx context.Context, event SearchResultEvent) error
}

// RecordStore archives finished searches. *storage.Archive implements it.
type RecordStore interface {
	Save(ctx context.Context, searchID string, records []models.PublicationRecord) (int, error)
}

// Result is the outcome of Runner.Run.
type Result struct {
	SearchID string
	Records  []models.PublicationRecord
	Elapsed  time.Duration
}

// Runner executes searches and fans their output out to the optional
// event publisher and record store. Neither of those can fail a search.
type Runner struct {
	searcher Searcher
	events   EventPublisher
	store    RecordStore
	log      *logger.Logger
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithEvents publishes progress and results to p.
func WithEvents(p EventPublisher) RunnerOption {
	return func(r *Runner) { r.events = p }
}

// WithStore archives every non-empty result in s.
func WithStore(s RecordStore) RunnerOption {
	return func(r *Runner) { r.store = s }
}

// NewRunner creates a Runner over searcher.
func NewRunner(searcher Searcher, log *logger.Logger, opts ...RunnerOption) *Runner {
	if log == nil {
		log = logger.Default()
	}
	r := &Runner{searcher: searcher, log: log.WithComponent("search_runner")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes req, which must already be validated. progress may be nil.
// Records gathered before a cancellation are returned along with the error.
func (r *Runner) Run(ctx context.Context, req models.SearchRequest, progress crawler.Progress) (Result, error) {
	res := Result{SearchID: uuid.NewString()}
	ctx = logger.WithSearchID(ctx, res.SearchID)
	log := r.log.WithContext(ctx)

	log.Info("search started", "start_date", req.StartDate, "end_date", req.EndDate, "terms", req.Terms)
	began := time.Now()

	records, err := r.searcher.Scrape(ctx, req.StartDate, req.EndDate, req.Terms, func(msg string) {
		if progress != nil {
			progress(msg)
		}
		if r.events != nil {
			if perr := r.events.PublishLog(ctx, res.SearchID, msg); perr != nil {
				log.WithError(perr).Debug("failed to publish progress")
			}
		}
	})
	records = filterCategories(records, req.Categories)
	if records == nil {
		records = []models.PublicationRecord{}
	}
	res.Records = records
	res.Elapsed = time.Since(began)

	if err != nil {
		log.WithError(err).Error("search failed", "records", len(records), "elapsed", res.Elapsed)
	} else {
		log.Info("search completed", "records", len(records), "elapsed", res.Elapsed)
	}

	// The caller's context may be gone; archiving and publishing still run.
	detached := context.WithoutCancel(ctx)
	r.archive(detached, log, res)
	r.publish(detached, log, req, res, err)

	return res, err
}

func (r *Runner) archive(ctx context.Context, log *logger.Logger, res Result) {
	if r.store == nil || len(res.Records) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := r.store.Save(ctx, res.SearchID, res.Records); err != nil {
		log.WithError(err).Error("failed to archive records")
	}
}

func (r *Runner) publish(ctx context.Context, log *logger.Logger, req models.SearchRequest, res Result, searchErr error) {
	if r.events == nil {
		return
	}
	event := SearchResultEvent{
		SearchID:    res.SearchID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Terms:       req.Terms,
		Count:       len(res.Records),
		Records:     res.Records,
		ElapsedMS:   res.Elapsed.Milliseconds(),
		CompletedAt: time.Now().UTC(),
	}
	if searchErr != nil && !errors.Is(searchErr, context.Canceled) {
		event.Error = searchErr.Error()
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := r.events.PublishResult(ctx, event); err != nil {
		log.WithError(err).Warn("failed to publish search result")
	}
}

// filterCategories keeps the records whose doc type is one of categories.
// No categories keeps everything.
func filterCategories(records []models.PublicationRecord, categories []string) []models.PublicationRecord {
	if len(categories) == 0 {
		return records
	}
	want := make(map[models.DocType]struct{}, len(categories))
	for _, c := range categories {
		want[models.DocType(strings.ToUpper(c))] = struct{}{}
	}
	out := records[:0:0]
	for _, r := range records {
		if _, ok := want[r.DocType]; ok {
			out = append(out, r)
		}
	}
	return out
}
