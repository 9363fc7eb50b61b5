package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cetsp/diario-scraper/internal/daterange"
	"github.com/cetsp/diario-scraper/internal/models"
	"github.com/cetsp/diario-scraper/internal/retry"
	"github.com/cetsp/diario-scraper/pkg/logger"
)

// fakeSite is an in-memory gazette shared by every page of a session.
type fakeSite struct {
	mu             sync.Mutex
	days           map[string]dayResult
	details        map[string]string
	failing        map[string]bool
	detailDelay    time.Duration
	formErr        error
	searchAttempts map[string]int
	detailVisits   map[string]int

	pages   []*fakePage
	open    int
	maxOpen int
}

type dayResult struct {
	items []RawItem
	fail  bool
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		days:           map[string]dayResult{},
		details:        map[string]string{},
		failing:        map[string]bool{},
		searchAttempts: map[string]int{},
		detailVisits:   map[string]int{},
	}
}

// publish adds n items for day with ids starting at first.
func (s *fakeSite) publish(day string, first, n int) {
	res := s.days[day]
	for id := first; id < first+n; id++ {
		href := fmt.Sprintf("md_epubli_visualizar.php?id=%d", id)
		res.items = append(res.items, RawItem{
			Text: fmt.Sprintf("CET - Extrato\nProcesso: 6020.2024/%04d-1\nDocumento: %d", id, id),
			Href: href,
		})
		s.details[SiteRoot+href] = fmt.Sprintf(
			`<html><body><div class="materia">EXTRATO DO CONTRATO nº %d/2024 que trata de "SERVICO %d"</div></body></html>`, id, id)
	}
	s.days[day] = res
}

func (s *fakeSite) detailPages() []*fakePage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*fakePage
	for _, p := range s.pages {
		if !p.primary {
			out = append(out, p)
		}
	}
	return out
}

type fakeSession struct {
	site   *fakeSite
	closed int
}

func (s *fakeSession) NewPage(ctx context.Context) (Page, error) {
	s.site.mu.Lock()
	defer s.site.mu.Unlock()
	p := &fakePage{site: s.site, primary: len(s.site.pages) == 0}
	s.site.pages = append(s.site.pages, p)
	if !p.primary {
		s.site.open++
		if s.site.open > s.site.maxOpen {
			s.site.maxOpen = s.site.open
		}
	}
	return p, nil
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

type fakePage struct {
	site    *fakeSite
	primary bool

	mu     sync.Mutex
	url    string
	day    string
	closes int
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()

	if p.primary {
		return nil
	}

	p.site.mu.Lock()
	p.site.detailVisits[url]++
	failing := p.site.failing[url]
	delay := p.site.detailDelay
	p.site.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if failing {
		return errors.New("connection reset")
	}
	return nil
}

func (p *fakePage) Evaluate(ctx context.Context, script string) error {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if p.site.formErr != nil {
		return p.site.formErr
	}
	for day := range p.site.days {
		if strings.Contains(script, `"`+day+`"`) {
			p.day = day
			return nil
		}
	}
	p.day = ""
	return nil
}

func (p *fakePage) WaitAttached(ctx context.Context, selector string, timeout time.Duration) error {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	p.site.searchAttempts[p.day]++
	res, ok := p.site.days[p.day]
	if !ok || res.fail {
		return fmt.Errorf("%w: %s", ErrPageTimeout, selector)
	}
	return nil
}

func (p *fakePage) Items(ctx context.Context, selector, linkSelector string) ([]RawItem, error) {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	return p.site.days[p.day].items, nil
}

func (p *fakePage) Content(ctx context.Context) (string, error) {
	p.mu.Lock()
	url := p.url
	p.mu.Unlock()

	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if !p.primary {
		return p.site.details[url], nil
	}
	if _, ok := p.site.days[p.day]; !ok {
		return "<html><body>Nenhum registro encontrado</body></html>", nil
	}
	return "<html><body>Erro interno</body></html>", nil
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("png"), nil
}

func (p *fakePage) Close() error {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	p.closes++
	if p.closes == 1 && !p.primary {
		p.site.open--
	}
	return nil
}

type fakeLauncher struct {
	site     *fakeSite
	failures map[string]error
	tried    []string
	session  *fakeSession
}

func (l *fakeLauncher) Launch(ctx context.Context, e Engine) (Session, error) {
	l.tried = append(l.tried, e.Name)
	if err := l.failures[e.Name]; err != nil {
		return nil, err
	}
	l.session = &fakeSession{site: l.site}
	return l.session, nil
}

type fakeSink struct {
	mu    sync.Mutex
	saved map[string][]byte
}

func (s *fakeSink) Save(ctx context.Context, name string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = map[string][]byte{}
	}
	s.saved[name] = data
	return nil
}

type memCache struct {
	mu    sync.Mutex
	pages map[string]string
}

func (c *memCache) Get(ctx context.Context, url string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	html, ok := c.pages[url]
	return html, ok
}

func (c *memCache) Set(ctx context.Context, url, html string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[url] = html
}

type progressLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *progressLog) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, msg)
}

func (l *progressLog) contains(sub string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, sub) {
			return true
		}
	}
	return false
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://gazette.test/search"
	cfg.RateLimit = 0
	cfg.Retry = retry.Policy{MaxAttempts: 2, Base: time.Millisecond, Min: time.Millisecond, Max: 2 * time.Millisecond}
	return cfg
}

func newTestScraper(site *fakeSite, opts ...Option) (*Scraper, *fakeLauncher) {
	l := &fakeLauncher{site: site}
	return New(testConfig(), l, logger.Nop(), opts...), l
}

func scrape(t *testing.T, s *Scraper, start, end string, terms []string) ([]models.PublicationRecord, *progressLog, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := &progressLog{}
	recs, err := s.Scrape(ctx, start, end, terms, p.record)
	return recs, p, err
}

func TestScrapeSingleDay(t *testing.T) {
	site := newFakeSite()
	site.publish("01/03/2024", 1, 3)
	s, l := newTestScraper(site)

	recs, progress, err := scrape(t, s, "01/03/2024", "01/03/2024", nil)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		assert.Equal(t, "01/03/2024", r.Date)
		assert.Equal(t, models.DefaultCategory, r.Term)
		assert.Equal(t, r.LinkHTML, r.LinkPDF)
		ids = append(ids, r.DocumentID)
	}
	assert.ElementsMatch(t, []string{"1", "2", "3"}, ids)

	assert.True(t, progress.contains("Acessando Diário Oficial para: 01/03/2024"))
	assert.True(t, progress.contains("Encontrados 3 itens relevantes em 01/03/2024"))
	assert.True(t, progress.contains("Processado 3/3"))
	assert.True(t, progress.contains("Concluído em"))
	assert.Equal(t, 1, l.session.closed)
}

func TestScrapeConcurrencyCeilingAndPageCleanup(t *testing.T) {
	site := newFakeSite()
	site.publish("01/03/2024", 1, 12)
	site.detailDelay = 15 * time.Millisecond
	site.failing[SiteRoot+"md_epubli_visualizar.php?id=4"] = true
	s, _ := newTestScraper(site)

	recs, _, err := scrape(t, s, "01/03/2024", "01/03/2024", nil)
	require.NoError(t, err)
	assert.Len(t, recs, 11)

	site.mu.Lock()
	maxOpen, open := site.maxOpen, site.open
	site.mu.Unlock()
	assert.LessOrEqual(t, maxOpen, 5)
	assert.Greater(t, maxOpen, 1, "detail fetches should overlap")
	assert.Zero(t, open)

	pages := site.detailPages()
	assert.Len(t, pages, 13, "eleven successes plus two attempts for the failing item")
	for _, p := range pages {
		assert.Equal(t, 1, p.closes)
	}
}

func TestScrapeFaultContainment(t *testing.T) {
	site := newFakeSite()
	site.publish("01/03/2024", 1, 2)
	site.days["02/03/2024"] = dayResult{fail: true}
	site.publish("03/03/2024", 10, 1)
	sink := &fakeSink{}
	s, _ := newTestScraper(site, WithDiagnostics(sink))

	recs, progress, err := scrape(t, s, "01/03/2024", "03/03/2024", []string{})
	require.NoError(t, err)

	days := map[string]int{}
	for _, r := range recs {
		days[r.Date]++
	}
	assert.Equal(t, map[string]int{"01/03/2024": 2, "03/03/2024": 1}, days)

	assert.True(t, progress.contains("[ERRO] Erro ou timeout ao buscar 02/03/2024. Verifique logs."))
	assert.Equal(t, 2, site.searchAttempts["02/03/2024"])
	assert.Contains(t, sink.saved, "debug_html_02-03-2024.html")
	assert.Contains(t, sink.saved, "error_02-03-2024.png")
}

func TestScrapeFormFailureSavesPageSnapshot(t *testing.T) {
	site := newFakeSite()
	site.publish("01/03/2024", 1, 1)
	site.formErr = errors.New("execution context was destroyed")
	sink := &fakeSink{}
	s, _ := newTestScraper(site, WithDiagnostics(sink))

	recs, progress, err := scrape(t, s, "01/03/2024", "01/03/2024", nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.True(t, progress.contains("[ERRO] Erro ou timeout ao buscar 01/03/2024"))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Contains(t, sink.saved, "debug_html_01-03-2024.html")
	assert.Contains(t, string(sink.saved["debug_html_01-03-2024.html"]), "<html>")
	assert.Contains(t, sink.saved, "error_01-03-2024.png")
}

func TestScrapeEmptyStateIsNotRetried(t *testing.T) {
	site := newFakeSite()
	s, _ := newTestScraper(site)

	recs, progress, err := scrape(t, s, "05/03/2024", "05/03/2024", nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.True(t, progress.contains("[AVISO] Nenhuma publicação encontrada para 05/03/2024"))
	assert.False(t, progress.contains("[ERRO]"))
	assert.Equal(t, 1, site.searchAttempts[""])
}

func TestScrapeInvertedRange(t *testing.T) {
	site := newFakeSite()
	site.publish("01/03/2024", 1, 1)
	site.publish("02/03/2024", 2, 1)
	s, _ := newTestScraper(site)

	recs, progress, err := scrape(t, s, "02/03/2024", "01/03/2024", nil)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, "01/03/2024", recs[0].Date, "days are processed in ascending order")
	assert.True(t, progress.contains("Acessando Diário Oficial para: 01/03/2024"))
}

func TestScrapeTermsFilterItems(t *testing.T) {
	site := newFakeSite()
	site.days["01/03/2024"] = dayResult{items: []RawItem{
		{Text: "Extrato de contrato - SINALIZAÇÃO\nDocumento: 1", Href: "visualizar?id=1"},
		{Text: "Aviso de licitação\nDocumento: 2", Href: "visualizar?id=2"},
		{Text: "GSU - Sinalização\nDocumento: 3", Href: "visualizar?id=3"},
	}}
	site.details[SiteRoot+"visualizar?id=1"] = `<div class="materia">que trata de "PLACAS"</div>`
	s, _ := newTestScraper(site)

	recs, _, err := scrape(t, s, "01/03/2024", "01/03/2024", []string{"sinalização"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "sinalização", recs[0].Term)
	assert.Equal(t, "PLACAS", recs[0].ObjectText)
	assert.Equal(t, models.NotFound, recs[0].ProcessNumber)
}

func TestScrapeUsesFallbackEngine(t *testing.T) {
	site := newFakeSite()
	site.publish("01/03/2024", 1, 1)
	s, l := newTestScraper(site)
	l.failures = map[string]error{"Chromium padrão": errors.New("executable not found")}

	recs, _, err := scrape(t, s, "01/03/2024", "01/03/2024", nil)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, []string{"Chromium padrão", "Google Chrome"}, l.tried)
}

func TestScrapeBrowserUnavailable(t *testing.T) {
	site := newFakeSite()
	s, l := newTestScraper(site)
	l.failures = map[string]error{
		"Chromium padrão": errors.New("no chromium"),
		"Google Chrome":   errors.New("no chrome"),
		"Microsoft Edge":  errors.New("no edge"),
	}

	recs, progress, err := scrape(t, s, "01/03/2024", "01/03/2024", nil)
	require.ErrorIs(t, err, ErrBrowserUnavailable)
	assert.Contains(t, err.Error(), "no edge")
	assert.Nil(t, recs)
	assert.False(t, progress.contains("Acessando"))
	assert.Len(t, l.tried, 3)
}

func TestScrapeInvalidDate(t *testing.T) {
	s, l := newTestScraper(newFakeSite())

	_, _, err := scrape(t, s, "2024-03-01", "01/03/2024", nil)
	var fe *daterange.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "start", fe.Field)
	assert.Empty(t, l.tried)
}

func TestScrapeServesDetailsFromCache(t *testing.T) {
	site := newFakeSite()
	site.publish("01/03/2024", 1, 2)
	cached := SiteRoot + "md_epubli_visualizar.php?id=1"
	cache := &memCache{pages: map[string]string{
		cached: `<div class="materia">que trata de "DO CACHE"</div>`,
	}}
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	s, _ := newTestScraper(site, WithCache(cache), WithMetrics(m))

	recs, _, err := scrape(t, s, "01/03/2024", "01/03/2024", nil)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	site.mu.Lock()
	assert.Zero(t, site.detailVisits[cached])
	site.mu.Unlock()
	assert.Len(t, cache.pages, 2, "fetched pages are written back")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.items.WithLabelValues("ok")))
}
