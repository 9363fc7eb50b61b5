package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cetsp/diario-scraper/internal/models"
)

const objectStopTerms = `(?:II\s?-|II\.|2\.|A CET poderá|Nesta hipótese|EXPEDIENTE Nº|Data d[ae]|Edital|Sessão|Realização|com fundamento|nos termos|por inexigibilidade|em conformidade|Formalizado em|Disponível no|Publicado no|$)`

var (
	extensionPattern = regexp.MustCompile(`(?i)(?:fica|para)\s+prorrogad[oa].*?(?:meses|dias|anos|vigência)`)

	// The trailing group is consumed instead of asserted; callers read
	// capture 1 or cut at its end.
	objectLabelPattern = regexp.MustCompile(`(?i)(?:OBJETO da licitação|OBJETO|ASSUNTO):?\s*(.*?)\s*(?:JULGAMENTO|REGIME|MODALIDADE|MODO|Valor|Prazo|Local|Data|Edital|Sessão|II\s?-|II\.|\.|$)`)

	actionLeadIn = regexp.MustCompile(`(?i)(?:para [oa]s?|visando [oa]s?|objetivando|referente [àao]s?)\s+(.*?)\s*` + objectStopTerms)

	quotedSubject   = regexp.MustCompile(`(?i)(?:que trata\s*(?:d[eao])?|objeto:?)\s*["“'](.*?)["”']`)
	unquotedSubject = regexp.MustCompile(`(?i)(?:que trata\s*(?:d[eao])?|objeto:?)\s*(.*?)(?:\.|,|;|-|Modalidade|Valor|Data|$)`)
)

const extensionContext = 20

// objectStep is one stage of the object cascade.
type objectStep func(txt string) (string, bool)

var objectSteps = []objectStep{
	extensionSpan,
	labelledObject,
	actionPhrase,
	quotedObject,
	unquotedObject,
}

// Object derives the purpose of a publication from free text. The first
// stage that produces a value wins; when none does the "check the full
// document" marker is returned.
func Object(text string) string {
	if text == "" {
		return models.ObjectEmptyInput
	}
	txt := collapse(normalize(text))

	for _, step := range objectSteps {
		if v, ok := step(txt); ok {
			return v
		}
	}
	return models.ObjectNotFound
}

// extensionSpan handles term extensions, whose text usually also quotes the
// original object and would mislead the later stages.
func extensionSpan(txt string) (string, bool) {
	upper := strings.ToUpper(txt)
	if !strings.Contains(upper, "PRORROG") && !strings.Contains(upper, "ADITAMENTO") {
		return "", false
	}
	loc := extensionPattern.FindStringIndex(txt)
	if loc == nil {
		return "", false
	}
	end := loc[1]
	for i := 0; i < extensionContext && end < len(txt); i++ {
		_, size := utf8.DecodeRuneInString(txt[end:])
		end += size
	}
	return strings.Trim(txt[loc[0]:end], ".,; "), true
}

func labelledObject(txt string) (string, bool) {
	m, ok := firstSubmatch(objectLabelPattern, txt)
	if !ok {
		return "", false
	}
	v := strings.TrimSpace(m)
	if runeLen(v) >= 300 {
		return "", false
	}
	return strings.TrimRight(v, "."), true
}

// actionPhrase returns the whole lead-in phrase ("para a aquisição de ..."),
// cut before the stop term.
func actionPhrase(txt string) (string, bool) {
	m := actionLeadIn.FindStringSubmatchIndex(txt)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(txt[m[0]:m[3]]), true
}

func quotedObject(txt string) (string, bool) {
	m, ok := firstSubmatch(quotedSubject, txt)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(m), true
}

func unquotedObject(txt string) (string, bool) {
	m, ok := firstSubmatch(unquotedSubject, txt)
	if !ok {
		return "", false
	}
	v := strings.TrimSpace(strings.TrimLeft(m, `"“'`))
	if n := runeLen(v); n > 3 && n < 500 {
		return v, true
	}
	return "", false
}

// ExplicitOrDerived prefers a captioned object when it carries real
// content and falls back to Object over the synthesis.
func ExplicitOrDerived(explicit, synthesis string) string {
	if runeLen(explicit) > 5 {
		return strings.TrimSpace(collapse(explicit))
	}
	return Object(synthesis)
}
