package crawler

import (
	"regexp"
	"strings"

	"github.com/cetsp/diario-scraper/internal/models"
)

// SiteRoot prefixes relative links found on gazette pages.
const SiteRoot = "https://diariooficial.prefeitura.sp.gov.br/"

var (
	processPattern  = regexp.MustCompile(`Processo:?\s?([\d./-]+)`)
	documentPattern = regexp.MustCompile(`Documento:\s*(\d+)`)
)

// RawItem is one search-result element as rendered by the browser.
type RawItem struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Item is a search result selected for detail extraction.
type Item struct {
	URL           string
	DocumentID    string
	ProcessNumber string
	Term          string
}

// Filter selects the search results worth visiting.
type Filter struct {
	// ExclusionMarker drops items from an unrelated department. Matching is
	// case-insensitive.
	ExclusionMarker string
	// Terms are matched as case-insensitive substrings. The first matching
	// term tags the item. No terms accepts everything.
	Terms []string
}

// Apply returns the kept items in input order. Items without a detail link
// are dropped.
func (f Filter) Apply(raw []RawItem) []Item {
	marker := strings.ToUpper(f.ExclusionMarker)
	terms := make([]string, 0, len(f.Terms))
	for _, t := range f.Terms {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}

	var out []Item
	for _, r := range raw {
		if marker != "" && strings.Contains(strings.ToUpper(r.Text), marker) {
			continue
		}

		term, ok := matchTerm(r.Text, terms)
		if !ok {
			continue
		}
		if r.Href == "" {
			continue
		}

		out = append(out, Item{
			URL:           CleanLink(r.Href),
			DocumentID:    submatchOr(documentPattern, r.Text, models.NoDocumentID),
			ProcessNumber: submatchOr(processPattern, r.Text, models.NotFound),
			Term:          term,
		})
	}
	return out
}

func matchTerm(text string, terms []string) (string, bool) {
	if len(terms) == 0 {
		return models.DefaultCategory, true
	}
	lower := strings.ToLower(text)
	for _, t := range terms {
		if strings.Contains(lower, strings.ToLower(t)) {
			return t, true
		}
	}
	return "", false
}

func submatchOr(re *regexp.Regexp, s, fallback string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return fallback
}

// CleanLink makes a gazette href absolute. Links captured through a
// browser extension viewer are unwrapped to the embedded URL.
func CleanLink(link string) string {
	if link == "" {
		return "#"
	}
	if strings.Contains(link, "chrome-extension") {
		parts := strings.Split(link, "http")
		if len(parts) > 1 {
			return "http" + parts[len(parts)-1]
		}
		return link
	}
	if !strings.HasPrefix(link, "http") {
		return SiteRoot + link
	}
	return link
}
