package extract

import (
	"regexp"
	"strings"

	"github.com/cetsp/diario-scraper/internal/models"
)

var (
	modalityPattern = regexp.MustCompile(`(?i)(PREGÃO ELETRÔNICO|PREGÃO|CONCORRÊNCIA|TOMADA DE PREÇOS|CONVITE|LEILÃO|DIÁLOGO COMPETITIVO|INEXIGIBILIDADE|DISPENSA)`)

	openingDatePattern = regexp.MustCompile(`(?i)(?:abertura|sessão).*?(\d{2}/\d{2}/\d{4})`)

	contractorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Vencedor(?:es)?|Adjudicado para|Empresa|Contratada)\s*[:\.-]?\s*([A-Z\s\.,&LTDA\-]+?)(?:,?\s*CNPJ|CPF|$)`),
		regexp.MustCompile(`(?i)Empresa\s+([A-Z\s\.,&LTDA\-]+?)\s+,`),
	}

	contractNumberPattern = regexp.MustCompile(`(?i)(?:Pregão(?: Eletrônico)?|Contrato|Licitação|Carta Convite|Nota de Empenho|Termo de Fomento|Termo de Colaboração|Acordo de Cooperação|Termo de Doação|Termo de Comodato)\s*(?:nº|n°)?\s*([\d\.]+(?:/[\d]{2,4})?)`)

	noImpactPattern = regexp.MustCompile(`(?i)(sem impacto|sem ônus|sem o acréscimo)`)
	valueSpelled    = regexp.MustCompile(`(?i)(?:R\$\s?|Valor:?\s*)([\d\.,]+\s*\([^\)]+\))`)
	valuePlain      = regexp.MustCompile(`(?:R\$\s?|Valor:?\s*)([\d\.,]+)`)
)

// enrich fills gaps left by the label lookup using the synthesis text.
func enrich(f *Fields, text string) {
	if missing(f.Modality) {
		f.Modality = findModality(text)
	}
	if missing(f.OpeningDate) {
		if d, ok := firstSubmatch(openingDatePattern, text); ok {
			f.OpeningDate = d
		}
	}
	if missing(f.Contractor) {
		if name, ok := findContractor(text); ok {
			f.Contractor = name
		}
	}
	if missing(f.ContractNumber) {
		if n, ok := firstSubmatch(contractNumberPattern, text); ok {
			f.ContractNumber = n
		}
	}

	signal := detectDocType(text)
	f.DocType = signal.docType
	f.AmendmentNumber = signal.amendmentNumber
	if signal.docType == models.DocTypeAditamento || signal.docType == models.DocTypeApostilamento {
		if n, ok := firstSubmatch(parentContractPattern, text); ok {
			f.ParentContract = n
		}
	}

	if missing(f.Value) || runeLen(f.Value) < 10 {
		if v, ok := findValue(text); ok {
			f.Value = v
		}
	}
}

func findModality(text string) string {
	if m, ok := firstSubmatch(modalityPattern, text); ok {
		return strings.ToUpper(m)
	}
	if strings.Contains(strings.ToUpper(text), "LICITAÇÃO") {
		return "LICITAÇÃO"
	}
	return ""
}

// findContractor tries each name pattern in turn. Only the first match of a
// pattern is considered; a rejected candidate moves on to the next pattern.
func findContractor(text string) (string, bool) {
	for _, re := range contractorPatterns {
		m, ok := firstSubmatch(re, text)
		if !ok {
			continue
		}
		candidate := strings.TrimRight(strings.TrimSpace(m), ",.-")
		if runeLen(candidate) > 3 && !strings.Contains(strings.ToUpper(candidate), "PROCESS") {
			return candidate, true
		}
	}
	return "", false
}

func findValue(text string) (string, bool) {
	if noImpactPattern.MatchString(text) {
		return models.NoImpactValue, true
	}
	if v, ok := firstSubmatch(valueSpelled, text); ok {
		return v, true
	}
	return firstSubmatch(valuePlain, text)
}
