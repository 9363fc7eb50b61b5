package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrBrowserUnavailable is returned by Scrape when no engine in the
	// fallback chain could be started.
	ErrBrowserUnavailable = errors.New("nenhum navegador compatível encontrado (Chromium, Chrome ou Edge)")

	// ErrPageTimeout marks a navigation or wait that ran out of time.
	ErrPageTimeout = errors.New("page timeout")
)

// ItemError is a detail page that could not be fetched or parsed after all
// attempts. It never escapes Scrape; it is logged and the item is dropped.
type ItemError struct {
	DocumentID string
	URL        string
	Err        error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %s (%s): %v", e.DocumentID, e.URL, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }
