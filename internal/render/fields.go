package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cetsp/diario-scraper/internal/models"
)

const (
	seeFullText   = "Ver íntegra"
	seeNotice     = "Ver Edital"
	seeContract   = "Ver Contrato"
	inProgress    = "EM PROCESSO"
	datePattern   = `(\d{2}[/.]\d{2}[/.]\d{4})`
	noNumber      = models.NoDocumentID
	diversosRunes = 100
)

var (
	cpfPattern        = regexp.MustCompile(`(\d{3})[.\s]?(\d{3})[.\s]?(\d{3})[-\s]?(\d{2})`)
	nonDigit          = regexp.MustCompile(`\D`)
	amendmentNumberRe = regexp.MustCompile(`(?:ADITAMENTO|TERMO ADITIVO)[^0-9]*(\d+/\d+)`)
	originContractRe  = regexp.MustCompile(`CONTRATO Nº\s*(\d+/\d+)`)
	tenderNumberRe    = regexp.MustCompile(`(?:PREGÃO|LICITAÇÃO|CHAMAMENTO)[^0-9]*(\d+/\d+)`)
	winnerRe          = regexp.MustCompile(`EMPRESA\s+(.*?)(?:,|\.|CNPJ)`)
	openingDateRe     = regexp.MustCompile(`(?i)(?:abertura|sessão|disputa|lances|ocorrerá).*?(?:dia|em|at[ée])\s*` + datePattern)
	sessionDateRe     = regexp.MustCompile(`(?i)Data da sessão\s*` + datePattern)
	startEndRe        = regexp.MustCompile(`(?i)Data de início e t[ée]rmino.*?:?\s*` + datePattern + `\s*e\s*` + datePattern)
	periodRe          = regexp.MustCompile(`(?i)período de\s*` + datePattern + `\s*a\s*` + datePattern)
	monthsRe          = regexp.MustCompile(`pelo prazo de (?:mais)?\s*(\d+.*?)meses`)
	whitespace        = regexp.MustCompile(`\s+`)
)

// MaskCPF hides the middle digits of an individual's tax number. Anything
// that is not exactly eleven digits (a company CNPJ, a placeholder) is
// returned unchanged.
func MaskCPF(text string) string {
	if text == "" {
		return ""
	}
	if len(nonDigit.ReplaceAllString(text, "")) != 11 {
		return text
	}
	return cpfPattern.ReplaceAllString(text, "$1.***.***-$4")
}

func amendmentNumber(summary string) string {
	m := amendmentNumberRe.FindStringSubmatch(strings.ToUpper(summary))
	if m == nil {
		return noNumber
	}
	number, year, _ := strings.Cut(m[1], "/")
	if len(year) != 4 {
		year = "20" + year
	}
	if len(number) < 3 {
		number = strings.Repeat("0", 3-len(number)) + number
	}
	return number + "/" + year
}

func originContract(summary string) string {
	if m := originContractRe.FindStringSubmatch(strings.ToUpper(summary)); m != nil {
		return m[1]
	}
	return noNumber
}

func tenderNumber(summary, documentID string) string {
	if m := tenderNumberRe.FindStringSubmatch(strings.ToUpper(summary)); m != nil {
		return m[1]
	}
	return documentID
}

func winner(summary string) string {
	upper := strings.ToUpper(summary)
	if !strings.Contains(upper, "HOMOLOG") && !strings.Contains(upper, "ADJUDIC") {
		return inProgress
	}
	if m := winnerRe.FindStringSubmatch(upper); m != nil {
		return strings.TrimSpace(m[1])
	}
	return inProgress
}

func openingDate(r models.PublicationRecord) string {
	if present(r.OpeningDate) {
		return r.OpeningDate
	}
	txt := whitespace.ReplaceAllString(r.Summary, " ")
	if m := openingDateRe.FindStringSubmatch(txt); m != nil {
		return m[1]
	}
	if m := sessionDateRe.FindStringSubmatch(txt); m != nil {
		return m[1]
	}
	return seeNotice
}

func validity(r models.PublicationRecord) string {
	if present(r.ValidityStart) && present(r.ValidityEnd) {
		return r.ValidityStart + " a " + r.ValidityEnd
	}
	if m := startEndRe.FindStringSubmatch(r.Summary); m != nil {
		return m[1] + " a " + m[2]
	}
	if m := periodRe.FindStringSubmatch(r.Summary); m != nil {
		return m[1] + " a " + m[2]
	}
	if m := monthsRe.FindStringSubmatch(r.Summary); m != nil {
		return m[1] + "meses (ver datas no contrato)"
	}
	return seeContract
}

// modality prefers the extracted field and falls back to keywords.
func modality(r models.PublicationRecord) string {
	if present(r.Modality) {
		return r.Modality
	}
	upper := strings.ToUpper(r.Summary)
	switch {
	case strings.Contains(upper, "CONCORRÊNCIA"):
		return "CONCORRÊNCIA"
	case strings.Contains(upper, "DISPENSA"):
		return "DISPENSA DE LICITAÇÃO"
	case strings.Contains(upper, "INEXIGIBILIDADE"):
		return "INEXIGIBILIDADE"
	case strings.Contains(upper, "CHAMAMENTO"):
		return "CHAMAMENTO PÚBLICO"
	default:
		return "PREGÃO ELETRÔNICO"
	}
}

func contractorLine(r models.PublicationRecord) string {
	if !present(r.Contractor) {
		return seeFullText
	}
	return fmt.Sprintf("%s, CNPJ/CPF %s", r.Contractor, MaskCPF(r.CompanyDoc))
}

func valueOrSeeFullText(v string) string {
	if !present(v) {
		return seeFullText
	}
	return v
}

func present(v string) bool {
	return v != "" && v != models.NotFound
}

func excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes) + "..."
}
