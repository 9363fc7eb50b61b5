package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/cetsp/diario-scraper/internal/models"
	"github.com/cetsp/diario-scraper/internal/retry"
)

// DetailCache keeps raw detail pages between runs.
type DetailCache interface {
	Get(ctx context.Context, url string) (string, bool)
	Set(ctx context.Context, url, html string)
}

// fetchDetails fans out over a day's items with at most MaxConcurrency
// pages open. Records are returned in completion order. Failed items are
// reported and dropped.
func (s *Scraper) fetchDetails(ctx context.Context, sess Session, day string, items []Item, report *reporter) []models.PublicationRecord {
	var (
		mu      sync.Mutex
		records []models.PublicationRecord
		done    int
		wg      sync.WaitGroup
	)
	sem := semaphore.NewWeighted(int64(s.cfg.MaxConcurrency))
	total := len(items)

	for _, item := range items {
		wg.Add(1)
		go func(item Item) {
			defer wg.Done()

			rec, err := s.processItem(ctx, sem, sess, day, item)

			mu.Lock()
			defer mu.Unlock()
			done++
			if err != nil {
				s.metrics.item("failed")
				s.log.WithError(err).Error("item failed", "date", day, "document_id", item.DocumentID)
				report.send(fmt.Sprintf("Falha %d/%d: Doc %s", done, total, item.DocumentID))
				return
			}
			s.metrics.item("ok")
			records = append(records, rec)
			report.send(fmt.Sprintf("Processado %d/%d: Doc %s", done, total, item.DocumentID))
		}(item)
	}

	wg.Wait()
	return records
}

func (s *Scraper) processItem(ctx context.Context, sem *semaphore.Weighted, sess Session, day string, item Item) (models.PublicationRecord, error) {
	if err := sem.Acquire(ctx, 1); err != nil {
		return models.PublicationRecord{}, &ItemError{DocumentID: item.DocumentID, URL: item.URL, Err: err}
	}
	defer sem.Release(1)

	html, err := s.detailHTML(ctx, sess, item)
	if err != nil {
		return models.PublicationRecord{}, &ItemError{DocumentID: item.DocumentID, URL: item.URL, Err: err}
	}

	rec, err := Assemble(day, item, html)
	if err != nil {
		return models.PublicationRecord{}, &ItemError{DocumentID: item.DocumentID, URL: item.URL, Err: err}
	}
	return rec, nil
}

func (s *Scraper) detailHTML(ctx context.Context, sess Session, item Item) (string, error) {
	if s.cache != nil {
		if html, ok := s.cache.Get(ctx, item.URL); ok {
			s.metrics.cacheHit()
			return html, nil
		}
	}

	var html string
	onRetry := func(attempt int, delay time.Duration, err error) {
		s.metrics.retried("detail")
		s.log.WithError(err).Warn("detail attempt failed", "document_id", item.DocumentID, "attempt", attempt, "retry_in", delay)
	}
	err := retry.Do(ctx, s.cfg.Retry, onRetry, func(ctx context.Context) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		html, err = s.fetchDetailOnce(ctx, sess, item)
		return err
	})
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		s.cache.Set(ctx, item.URL, html)
	}
	return html, nil
}

// fetchDetailOnce opens a dedicated page and closes it on every path.
func (s *Scraper) fetchDetailOnce(ctx context.Context, sess Session, item Item) (string, error) {
	s.log.Debug("fetching detail page", "document_id", item.DocumentID, "url", item.URL)

	page, err := sess.NewPage(ctx)
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	s.metrics.pageOpened()
	began := time.Now()
	defer func() {
		if err := page.Close(); err != nil {
			s.log.WithError(err).Debug("close detail page", "document_id", item.DocumentID)
		}
		s.metrics.pageClosed(time.Since(began))
	}()

	if err := page.Navigate(ctx, item.URL); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}
	html, err := page.Content(ctx)
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return html, nil
}
