package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cetsp/diario-scraper/internal/retry"
)

const (
	resultSelector = "div.dadosDocumento"
	linkSelector   = `a[href*="visualizar"]`
	formAction     = "md_epubli_controlador.php?acao=materias_pesquisar"
)

// emptyStatePhrases are the messages the site shows when a day has no
// publications.
var emptyStatePhrases = []string{
	"Nenhum registro encontrado",
	"Não foram encontrados registros",
	"sua pesquisa não retornou resultados",
	"Tente refazer a pesquisa",
	"Sem publicações no dia",
}

func isEmptyState(content string) bool {
	for _, p := range emptyStatePhrases {
		if strings.Contains(content, p) {
			return true
		}
	}
	return false
}

// formScript builds the POST form the search endpoint expects and submits
// it. The site ignores query-string searches.
func formScript(day, orgID string) string {
	fields := []struct{ name, value string }{
		{"hdnDataPublicacao", day},
		{"hdnOrgaoFiltro", orgID},
		{"hdnModoPesquisa", "DATA"},
		{"hdnVisualizacao", "L"},
	}

	action, _ := json.Marshal(formAction)
	var b strings.Builder
	fmt.Fprintf(&b, "var f = document.createElement('form'); f.action = %s; f.method = 'POST';\n", action)
	for _, fld := range fields {
		name, _ := json.Marshal(fld.name)
		value, _ := json.Marshal(fld.value)
		fmt.Fprintf(&b, "(function () { var i = document.createElement('input'); i.type = 'hidden'; i.name = %s; i.value = %s; f.appendChild(i); })();\n", name, value)
	}
	b.WriteString("document.body.appendChild(f); f.submit();")
	return b.String()
}

func safeDate(day string) string {
	return strings.ReplaceAll(day, "/", "-")
}

// searchDate runs the search for one day with retries. An empty slice with
// a nil error means the site reported no publications.
func (s *Scraper) searchDate(ctx context.Context, page Page, day string) ([]RawItem, error) {
	var items []RawItem
	onRetry := func(attempt int, delay time.Duration, err error) {
		s.metrics.retried("search")
		s.log.WithError(err).Warn("search attempt failed", "date", day, "attempt", attempt, "retry_in", delay)
	}
	err := retry.Do(ctx, s.cfg.Retry, onRetry, func(ctx context.Context) error {
		var err error
		items, err = s.searchOnce(ctx, page, day)
		return err
	})
	return items, err
}

func (s *Scraper) searchOnce(ctx context.Context, page Page, day string) ([]RawItem, error) {
	s.log.Info("navigating to search page", "date", day, "url", s.cfg.BaseURL)
	if err := page.Navigate(ctx, s.cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := page.Evaluate(ctx, formScript(day, s.cfg.OrgID)); err != nil {
		return nil, fmt.Errorf("submit search form: %w", err)
	}

	s.log.Debug("waiting for results", "date", day)
	waitErr := page.WaitAttached(ctx, resultSelector, s.cfg.ResultsTimeout)
	if waitErr == nil {
		items, err := page.Items(ctx, resultSelector, linkSelector)
		if err != nil {
			return nil, fmt.Errorf("read results: %w", err)
		}
		s.log.Info("results found", "date", day, "elements", len(items))
		return items, nil
	}

	content, err := page.Content(ctx)
	if err != nil {
		return nil, fmt.Errorf("wait for results: %w", waitErr)
	}
	if isEmptyState(content) {
		s.log.Info("no publications for date", "date", day)
		return []RawItem{}, nil
	}

	return nil, fmt.Errorf("wait for results: %w", waitErr)
}

// captureFailure stores the HTML and a screenshot of the primary page
// after a day's search gave up, whatever step failed. Each artifact is
// independent of the other.
func (s *Scraper) captureFailure(ctx context.Context, page Page, day string) {
	if s.sink == nil {
		return
	}
	if content, err := page.Content(ctx); err != nil {
		s.log.WithError(err).Debug("page content unavailable", "date", day)
	} else {
		s.saveDiagnostic(ctx, "debug_html_"+safeDate(day)+".html", []byte(content), "text/html; charset=utf-8")
	}

	if shot, err := page.Screenshot(ctx); err != nil {
		s.log.WithError(err).Debug("screenshot failed", "date", day)
	} else {
		s.saveDiagnostic(ctx, "error_"+safeDate(day)+".png", shot, "image/png")
	}
}

// saveDiagnostic is best effort and never fails the caller.
func (s *Scraper) saveDiagnostic(ctx context.Context, name string, data []byte, contentType string) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Save(ctx, name, data, contentType); err != nil {
		s.log.WithError(err).Warn("failed to save diagnostic", "name", name)
		return
	}
	s.log.Info("diagnostic saved", "name", name)
}
