package extract

import (
	"regexp"
	"strings"

	"github.com/cetsp/diario-scraper/internal/models"
)

var (
	amendmentPattern      = regexp.MustCompile(`(?i)(?:Termo de )?(Aditamento|Apostilamento)\s*(?:nº|n°)?\s*([\d\.]+(?:/[\d]{2,4})?)`)
	parentContractPattern = regexp.MustCompile(`(?i)ao (?:Termo de )?(?:Contrato|Termo de Colaboração|Termo de Fomento|Ajuste)\s*(?:nº|n°)?\s*([\d\.]+(?:/[\d]{2,4})?)`)

	homologationPattern     = regexp.MustCompile(`(?i)(?:DESPACHO DE ADJUDICAÇÃO|ADJUDICO|DESPACHO DE HOMOLOGAÇÃO|HOMOLOGO|AUTORIZO a contratação)`)
	homologationWinner      = regexp.MustCompile(`(?i)(?:Empresa|Vencedor|Adjudicado para)[:\s]*([A-Z\s\.,&LTDA\-]+?)(?:,?\s*CNPJ|CPF|$)`)
	miscellaneousPattern    = regexp.MustCompile(`(?i)(?:ESCLARECIMENTO|QUESTIONAMENTO|DESPACHO DE IMPUGNAÇ|IMPUGNAÇ[ÃA]O AO EDITAL|NOTIFICAÇÃO DE APLICAÇÃO DE PENALIDADE|Notificação de Penalidade|Aplicação de Penalidade|EXTRATO DA ATA DE ABERTURA|ATA DE ABERTURA|TERMO DE JULGAMENTO|APLICO a penalidade|DEMONSTRATIVO DAS COMPRAS)`)
	earlyMiscellaneousMatch = regexp.MustCompile(`(?i)(ESCLARECIMENTO|QUESTIONAMENTO|DESPACHO DE IMPUGNAÇ|IMPUGNAÇ[ÃA]O AO EDITAL)`)
)

// instrumentRule maps a text pattern to a doc type.
type instrumentRule struct {
	pattern *regexp.Regexp
	docType models.DocType
}

// instrumentRules are checked in order when no amendment is present. The
// first match wins.
var instrumentRules = []instrumentRule{
	{regexp.MustCompile(`(?i)Termo de Fomento`), models.DocTypeParceria},
	{regexp.MustCompile(`(?i)Termo de Colaboração`), models.DocTypeParceria},
	{regexp.MustCompile(`(?i)Acordo de Cooperação`), models.DocTypeParceria},
	{regexp.MustCompile(`(?i)Termo de Doação`), models.DocTypeDoacao},
	{regexp.MustCompile(`(?i)Termo de Comodato`), models.DocTypeComodato},
	{regexp.MustCompile(`(?i)Nota de Empenho`), models.DocTypeEmpenho},
	{earlyMiscellaneousMatch, models.DocTypeDiversos},
}

type docTypeSignal struct {
	docType         models.DocType
	amendmentNumber string
}

// detectDocType derives the preliminary doc type from the instrument named
// in the text.
func detectDocType(text string) docTypeSignal {
	if m := amendmentPattern.FindStringSubmatch(text); m != nil {
		return docTypeSignal{
			docType:         models.DocType(strings.ToUpper(m[1])),
			amendmentNumber: m[2],
		}
	}
	for _, r := range instrumentRules {
		if r.pattern.MatchString(text) {
			return docTypeSignal{docType: r.docType}
		}
	}
	return docTypeSignal{docType: models.DocTypeOutro}
}

// Rule is one step of the final reclassification pass.
type Rule struct {
	Name    string
	Matches func(f *Fields, text string) bool
	DocType models.DocType
	// Then runs after DocType is applied.
	Then func(f *Fields, text string)
}

// ReclassificationRules run in order after enrichment. Every matching rule
// applies, so the last match decides the doc type.
var ReclassificationRules = []Rule{
	{
		Name: "dispensa",
		Matches: func(f *Fields, _ string) bool {
			return strings.Contains(strings.ToUpper(f.Modality), "DISPENSA")
		},
		DocType: models.DocTypePedidoCompra,
	},
	{
		Name: "homologacao",
		Matches: func(_ *Fields, text string) bool {
			return homologationPattern.MatchString(text)
		},
		DocType: models.DocTypeHomologacao,
		Then: func(f *Fields, text string) {
			if !missing(f.Contractor) {
				return
			}
			if m, ok := firstSubmatch(homologationWinner, text); ok {
				f.Contractor = strings.Trim(strings.TrimSpace(m), "-,.")
			}
		},
	},
	{
		Name: "diversos",
		Matches: func(_ *Fields, text string) bool {
			return miscellaneousPattern.MatchString(text)
		},
		DocType: models.DocTypeDiversos,
	},
}

func reclassify(f *Fields, text string) {
	for _, r := range ReclassificationRules {
		if !r.Matches(f, text) {
			continue
		}
		f.DocType = r.DocType
		if r.Then != nil {
			r.Then(f, text)
		}
	}
}
