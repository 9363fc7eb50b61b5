package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cetsp/diario-scraper/internal/models"
)

const datePattern = `(\d{2}[/.]\d{2}[/.]\d{4})`

var (
	signatureDatePattern = regexp.MustCompile(`(?i)Data da Assinatura:?\s*` + datePattern)

	validityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Vigência:?\s*"?` + datePattern + `"?\s*e\s*"?` + datePattern + `"?`),
		regexp.MustCompile(`(?i)compreendidos entre\s*"?` + datePattern + `"?\s*e\s*"?` + datePattern + `"?`),
		regexp.MustCompile(`(?i)(?:vigência|período|prazo).*?de\s*"?` + datePattern + `"?\s*a\s*"?` + datePattern + `"?`),
	}

	// textualDuration catches "prazo de 12 (doze) meses" when the page has
	// no duration caption.
	textualDuration = regexp.MustCompile(`(?i)(?:prazo|vigência)[^\d]{0,40}?(\d+)\s*(?:\([^)]*\)\s*)?(meses|mês|mes|dias|dia|anos|ano)\b`)

	nonDigits = regexp.MustCompile(`\D`)
)

type durationUnit int

const (
	unitNone durationUnit = iota
	unitDays
	unitMonths
	unitYears
)

func parseUnit(s string) durationUnit {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "mês"), strings.Contains(s, "mes"):
		return unitMonths
	case strings.Contains(s, "dia"):
		return unitDays
	case strings.Contains(s, "ano"):
		return unitYears
	}
	return unitNone
}

func normalizeDate(d string) string {
	return strings.ReplaceAll(d, ".", "/")
}

// resolveValidity fills ValidityStart and ValidityEnd. An explicit range in
// the text wins; otherwise the end is computed from the signature date and
// the contract duration.
func resolveValidity(f *Fields, text string) {
	start := normalizeDate(f.SignatureDate)
	end := models.NotFound

	if runeLen(start) < 8 {
		if d, ok := firstSubmatch(signatureDatePattern, text); ok {
			start = normalizeDate(d)
		}
	}

	explicit := false
	for _, re := range validityPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			start = normalizeDate(m[1])
			end = normalizeDate(m[2])
			explicit = true
			break
		}
	}

	if !explicit && start != "" {
		if computed, ok := endFromDuration(start, f.Term, f.TermUnit, text); ok {
			end = computed
		}
	}

	f.ValidityStart = start
	f.ValidityEnd = end
}

func endFromDuration(start, term, termUnit, text string) (string, bool) {
	t, err := time.Parse(models.DateLayout, start)
	if err != nil {
		return "", false
	}

	var amount int
	unit := unitNone
	if term != "" {
		n, err := strconv.Atoi(nonDigits.ReplaceAllString(term, ""))
		if err != nil {
			return "", false
		}
		amount = n
		unit = parseUnit(termUnit)
		if unit == unitNone {
			unit = parseUnit(term)
		}
	} else if m := textualDuration.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return "", false
		}
		amount = n
		unit = parseUnit(m[2])
	}

	switch unit {
	case unitDays:
		return t.AddDate(0, 0, amount).Format(models.DateLayout), true
	case unitMonths:
		return AddMonths(t, amount).Format(models.DateLayout), true
	case unitYears:
		return AddMonths(t, 12*amount).Format(models.DateLayout), true
	}
	return "", false
}

// AddMonths adds n calendar months, clamping the day to the last day of
// the target month (31/01 + 1 month = 29/02 in a leap year).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + n
	y += total / 12
	total %= 12
	if total < 0 {
		total += 12
		y--
	}
	month := time.Month(total + 1)

	if last := daysIn(y, month); d > last {
		d = last
	}
	return time.Date(y, month, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
