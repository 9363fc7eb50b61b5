// Package render turns publication records into the HTML cards shown to
// the procurement team: one card per record, styled by document kind.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/cetsp/diario-scraper/internal/extract"
	"github.com/cetsp/diario-scraper/internal/models"
)

// CardKind selects the card layout of a record.
type CardKind string

// Card layouts.
const (
	CardAditamento   CardKind = "aditamento"
	CardContrato     CardKind = "contrato"
	CardLicitacao    CardKind = "licitacao"
	CardPedidoCompra CardKind = "pedido-compra"
	CardDestaque     CardKind = "destaque"
	CardDiversos     CardKind = "diversos"
	CardGeneric      CardKind = "generic"
)

// EmptyResult is rendered instead of cards when there are no records.
const EmptyResult = "<p>❌ Nenhum dado coletado.</p>"

// KindOf picks the card for r. The scraper's doc type decides for the
// categories it is sure about; everything else goes through the summary
// classifier.
func KindOf(r models.PublicationRecord) CardKind {
	switch r.DocType {
	case models.DocTypePedidoCompra:
		return CardPedidoCompra
	case models.DocTypeHomologacao:
		return CardDestaque
	case models.DocTypeDiversos:
		return CardDiversos
	}

	switch extract.ClassifySummary(r.Summary) {
	case extract.SummaryAditamento:
		return CardAditamento
	case extract.SummaryContrato:
		return CardContrato
	case extract.SummaryLicitacao:
		return CardLicitacao
	default:
		return CardGeneric
	}
}

// card is the view model every template receives.
type card struct {
	Kind            CardKind
	Record          models.PublicationRecord
	Contractor      string
	CompanyDoc      string
	Value           string
	Modality        string
	Validity        string
	AmendmentNumber string
	OriginContract  string
	TenderNumber    string
	Winner          string
	OpeningDate     string
	Excerpt         string
}

func newCard(r models.PublicationRecord) card {
	c := card{
		Kind:       KindOf(r),
		Record:     r,
		Contractor: contractorLine(r),
		CompanyDoc: MaskCPF(r.CompanyDoc),
		Value:      valueOrSeeFullText(r.Value),
	}

	switch c.Kind {
	case CardAditamento:
		c.AmendmentNumber = amendmentNumber(r.Summary)
		c.OriginContract = originContract(r.Summary)
		c.Modality = modality(r)
		c.Validity = validity(r)
	case CardContrato:
		c.OriginContract = originContract(r.Summary)
	case CardLicitacao:
		c.Modality = modality(r)
		c.TenderNumber = tenderNumber(r.Summary, r.DocumentID)
		c.Winner = winner(r.Summary)
		c.OpeningDate = openingDate(r)
	case CardDiversos:
		c.Excerpt = excerpt(r.Summary, diversosRunes)
	}
	return c
}

const stylesheet = `<style>
	.card { border: 1px solid #ddd; padding: 15px; margin-bottom: 20px; font-family: Arial, sans-serif; background: #fff; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
	.compra { border-left: 5px solid #004376; }
	.contrato { border-left: 5px solid #17a2b8; background-color: #fcfcfc; }
	.aditamento { border-left: 5px solid #28a745; background-color: #f9fff9; }
	.pedido-compra { border-left: 5px solid #2196F3; background-color: #fbfdff; }
	.destaque { border: 2px solid #ffc107; box-shadow: 0 4px 8px rgba(0,0,0,0.15); }
	.diversos { opacity: 0.6; border-left: 5px solid #ccc; }
	.label { font-weight: bold; color: #333; }
	.val { color: #000; }
	a { text-decoration: none; color: #0056b3; font-weight: bold; }
</style>`

const cardTemplates = `
{{define "aditamento"}}<div class="card aditamento">
• <span class="label">Processo SEI:</span> <span class="val">{{.Record.ProcessNumber}}</span><br>
Aditamento nº <a href="{{.Record.LinkPDF}}">{{.AmendmentNumber}}</a> ao Contrato nº {{.OriginContract}}<br>
<span class="label">Contratada:</span> <span class="val">{{.Contractor}}</span><br>
<span class="label">Modalidade:</span> <span class="val">{{.Modality}}</span><br>
<span class="label">Objeto:</span> <span class="val">{{.Record.ObjectText}}</span><br>
<span class="label">Data da Assinatura:</span> <span class="val">{{.Record.Date}}</span><br>
<span class="label">Data da Publicação:</span> <span class="val">{{.Record.Date}}</span><br>
<span class="label">Vigência:</span> <span class="val">{{.Validity}}</span><br>
<span class="label">Valor:</span> <span class="val">{{.Value}}</span>
</div>
{{end}}
{{define "contrato"}}<div class="card contrato">
• <span class="label">Processo SEI:</span> <span class="val">{{.Record.ProcessNumber}}</span><br>
Contrato nº <a href="{{.Record.LinkPDF}}">{{.OriginContract}}</a> - {{.Contractor}}<br>
<span class="label">Objeto:</span> <span class="val">{{.Record.ObjectText}}</span><br>
<span class="label">Data da Assinatura:</span> <span class="val">{{.Record.Date}}</span><br>
<span class="label">Data da Publicação:</span> <span class="val">{{.Record.Date}}</span><br>
<span class="label">Valor:</span> <span class="val">{{.Value}}</span>
</div>
{{end}}
{{define "licitacao"}}<div class="card compra">
<span class="label">Número do Processo:</span> <span class="val">{{.Record.ProcessNumber}}</span><br>
<span class="label">Número da Publicação:</span> <a href="{{.Record.LinkPDF}}">{{.Modality}} {{.TenderNumber}}</a><br>
<span class="label">Documento:</span> <a href="{{.Record.LinkHTML}}">{{.Record.DocumentID}}</a><br>
<span class="label">Licitante Vencedor:</span> <span class="val">{{.Winner}}</span><br>
<span class="label">Modalidade:</span> <span class="val">{{.Modality}}</span><br>
<span class="label">Data da Abertura:</span> <span class="val">{{.OpeningDate}}</span><br>
<span class="label">Objeto:</span> <span class="val">{{.Record.ObjectText}}</span><br>
<span class="label">Data de Publicação:</span> <span class="val">{{.Record.Date}}</span>
</div>
{{end}}
{{define "pedido-compra"}}<div class="card pedido-compra">
<div style="background-color: #e3f2fd; padding: 5px; border-bottom: 1px solid #ddd; margin-bottom: 10px;"><strong>🛒 PEDIDO DE COMPRA / DISPENSA</strong></div>
• <span class="label">Processo SEI:</span> <span class="val">{{.Record.ProcessNumber}}</span><br>
<span class="label">Contratada:</span> <span class="val">{{.Contractor}}</span><br>
<span class="label">Objeto:</span> <span class="val">{{.Record.ObjectText}}</span><br>
<span class="label">Data da Assinatura:</span> <span class="val">{{.Record.ValidityStart}}</span><br>
<span class="label">Data da Publicação:</span> <span class="val">{{.Record.Date}}</span><br>
<span class="label">Valor:</span> <span class="val">{{.Record.Value}}</span><br>
<div style="margin-top: 10px;"><a href="{{.Record.LinkPDF}}" target="_blank">📄 Ver Documento</a> | <a href="{{.Record.LinkHTML}}" target="_blank">🔗 Ver no Diário</a></div>
</div>
{{end}}
{{define "destaque"}}<div class="card destaque">
<div style="background-color: #fff3cd; color: #856404; padding: 10px; border-bottom: 2px solid #ffeeba; margin-bottom: 10px; font-size: 1.1em;"><strong>🏆 RESULTADO DE LICITAÇÃO / HOMOLOGAÇÃO</strong></div>
<span class="label">Processo:</span> <span class="val">{{.Record.ProcessNumber}}</span><br>
<span class="label">Vencedor:</span> <span class="val" style="font-size: 1.1em; color: #000;">{{.Record.Contractor}}</span><br>
<span class="label">CNPJ/CPF:</span> <span class="val">{{.CompanyDoc}}</span><br>
<hr style="border: 0; border-top: 1px solid #eee;">
<span class="label">Objeto:</span> <span class="val">{{.Record.ObjectText}}</span><br>
<span class="label">Data de Publicação:</span> <span class="val">{{.Record.Date}}</span><br>
<div style="margin-top: 10px; text-align: right;"><a href="{{.Record.LinkPDF}}" style="background-color: #28a745; color: white; padding: 5px 10px; border-radius: 4px;">Abrir Documento 📄</a></div>
</div>
{{end}}
{{define "diversos"}}<div class="card diversos">
<span class="label">Outros/Diversos:</span> <span class="val">{{.Excerpt}}</span>
</div>
{{end}}
{{define "generic"}}<div class="card">
<span class="label">Processo:</span> {{.Record.ProcessNumber}}<br>
<span class="label">Documento:</span> <a href="{{.Record.LinkHTML}}">{{.Record.DocumentID}}</a><br>
<span class="label">Objeto:</span> {{.Record.ObjectText}}<br>
<span class="label">Data:</span> {{.Record.Date}}
</div>
{{end}}
{{define "fragment"}}{{stylesheet}}
<h2>📋 RESULTADOS - DIÁRIO OFICIAL</h2>
{{range .}}{{card .}}{{end}}{{end}}
{{define "document"}}<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Resultados - Diário Oficial</title>
</head>
<body>
{{body .}}
</body>
</html>
{{end}}`

var templates *template.Template

func init() {
	templates = template.Must(template.New("cards").Funcs(template.FuncMap{
		"stylesheet": func() template.HTML { return template.HTML(stylesheet) },
		"card":       renderCard,
		"body":       func(records []models.PublicationRecord) (template.HTML, error) { return Fragment(records) },
	}).Parse(cardTemplates))
}

func renderCard(c card) (template.HTML, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(c.Kind), c); err != nil {
		return "", fmt.Errorf("render %s card for document %s: %w", c.Kind, c.Record.DocumentID, err)
	}
	return template.HTML(buf.String()), nil
}

// Fragment renders the stylesheet, the heading and one card per record.
// An empty slice renders EmptyResult.
func Fragment(records []models.PublicationRecord) (template.HTML, error) {
	if len(records) == 0 {
		return template.HTML(EmptyResult), nil
	}

	cards := make([]card, len(records))
	for i, r := range records {
		cards[i] = newCard(r)
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "fragment", cards); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// WriteDocument writes a standalone HTML page with the rendered records.
func WriteDocument(w io.Writer, records []models.PublicationRecord) error {
	return templates.ExecuteTemplate(w, "document", records)
}
