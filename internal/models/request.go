package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the DD/MM/YYYY layout used everywhere in the gazette.
const DateLayout = "02/01/2006"

// ErrInvalidDate is returned by Validate when a date is not DD/MM/YYYY.
var ErrInvalidDate = errors.New("data deve estar no formato DD/MM/AAAA")

// SearchRequest is the user-facing search input.
type SearchRequest struct {
	StartDate  string   `json:"start_date"`
	EndDate    string   `json:"end_date"`
	Terms      []string `json:"terms"`
	Categories []string `json:"categories,omitempty"`
}

// Normalize trims dates and drops blank terms and categories.
func (r *SearchRequest) Normalize() {
	r.StartDate = strings.TrimSpace(r.StartDate)
	r.EndDate = strings.TrimSpace(r.EndDate)
	r.Terms = cleanList(r.Terms)
	r.Categories = cleanList(r.Categories)
}

// Validate checks both dates. It does not require start <= end; the
// planner swaps inverted ranges.
func (r *SearchRequest) Validate() error {
	if _, err := time.Parse(DateLayout, r.StartDate); err != nil {
		return fmt.Errorf("start_date %q: %w", r.StartDate, ErrInvalidDate)
	}
	if _, err := time.Parse(DateLayout, r.EndDate); err != nil {
		return fmt.Errorf("end_date %q: %w", r.EndDate, ErrInvalidDate)
	}
	return nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
