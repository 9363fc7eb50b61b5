// Package daterange turns a user-supplied DD/MM/YYYY range into the
// inclusive sequence of calendar days to crawl.
package daterange

import (
	"fmt"
	"time"

	"github.com/cetsp/diario-scraper/internal/models"
)

// FormatError reports a date string that is not DD/MM/YYYY.
type FormatError struct {
	Field string
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid %s date %q (expected DD/MM/YYYY): %v", e.Field, e.Value, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Warner receives the inversion notice.
type Warner func(msg string)

// Parse parses a single DD/MM/YYYY date in UTC.
func Parse(field, value string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return time.Time{}, &FormatError{Field: field, Value: value, Err: err}
	}
	return t, nil
}

// Plan returns every day from start to end inclusive. An inverted range is
// swapped and reported through warn.
func Plan(start, end string, warn Warner) ([]time.Time, error) {
	s, err := Parse("start", start)
	if err != nil {
		return nil, err
	}
	e, err := Parse("end", end)
	if err != nil {
		return nil, err
	}

	if s.After(e) {
		if warn != nil {
			warn(fmt.Sprintf("[AVISO] Data inicial (%s) maior que final (%s). Invertendo...", start, end))
		}
		s, e = e, s
	}

	days := make([]time.Time, 0, int(e.Sub(s).Hours()/24)+1)
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days, nil
}

// Format renders a day back to DD/MM/YYYY.
func Format(t time.Time) string {
	return t.Format(models.DateLayout)
}
