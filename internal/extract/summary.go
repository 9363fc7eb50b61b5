package extract

import "strings"

// SummaryKind is the coarse category derived from summary text alone.
type SummaryKind string

// Summary categories.
const (
	SummaryContrato   SummaryKind = "CONTRATO"
	SummaryAditamento SummaryKind = "ADITAMENTO"
	SummaryLicitacao  SummaryKind = "LICITACAO"
	SummaryOutros     SummaryKind = "OUTROS"
)

type summaryRule struct {
	matches func(upper string) bool
	kind    SummaryKind
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// summaryRules are evaluated in order; the first match wins.
var summaryRules = []summaryRule{
	{func(t string) bool { return containsAny(t, "FORMALIZAÇÃO DO CONTRATO", "FORMALIZADO EM") }, SummaryContrato},
	{func(t string) bool { return containsAny(t, "ADITAMENTO", "TERMO ADITIVO") }, SummaryAditamento},
	{func(t string) bool {
		return strings.Contains(t, "CONTRATO") &&
			containsAny(t, "FORMALIZAÇÃO", "CELEBRADO", "ASSINATURA DO CONTRATO", "NÚMERO DO CONTRATO")
	}, SummaryContrato},
	{func(t string) bool { return containsAny(t, "PREGÃO", "LICITAÇÃO", "HOMOLOG") }, SummaryLicitacao},
	{func(t string) bool { return strings.Contains(t, "CONTRATO") }, SummaryContrato},
}

// ClassifySummary maps a summary to a coarse category. It is used when a
// record's doc type cannot be trusted.
func ClassifySummary(summary string) SummaryKind {
	upper := strings.ToUpper(normalize(summary))
	for _, r := range summaryRules {
		if r.matches(upper) {
			return r.kind
		}
	}
	return SummaryOutros
}

const summaryRunes = 200

// Summarize cuts the synthesis to the record summary length. The ellipsis
// is always appended.
func Summarize(synthesis string) string {
	return truncateRunes(synthesis, summaryRunes) + "..."
}
