package handlers

import (
	"context"

	"github.com/cetsp/diario-scraper/internal/crawler"
	"github.com/cetsp/diario-scraper/internal/models"
	"github.com/cetsp/diario-scraper/internal/realtime"
)

// SearchRunner runs a validated search. *realtime.Runner implements it.
type SearchRunner interface {
	Run(ctx context.Context, req models.SearchRequest, progress crawler.Progress) (realtime.Result, error)
}

// PublicationArchive looks up archived records. *storage.Archive
// implements it.
type PublicationArchive interface {
	ByDate(ctx context.Context, day string) ([]models.PublicationRecord, error)
}

// HealthChecker defines an interface for components that can report health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthFunc adapts a function to HealthChecker.
type HealthFunc func(ctx context.Context) error

// Health calls f.
func (f HealthFunc) Health(ctx context.Context) error { return f(ctx) }
