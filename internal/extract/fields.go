package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/cetsp/diario-scraper/internal/models"
)

// Fields is the working set for a single detail page. Empty strings and
// models.NotFound both mean "not found yet".
type Fields struct {
	Contractor      string
	CompanyDoc      string
	Synthesis       string
	ContractNumber  string
	SEIDocument     string
	SignatureDate   string
	OpeningDate     string
	Modality        string
	Term            string
	TermUnit        string
	Value           string
	ExplicitObject  string
	AmendmentNumber string
	ParentContract  string
	ValidityStart   string
	ValidityEnd     string
	DocType         models.DocType
}

func newFields() Fields {
	return Fields{
		Contractor:     models.NotFound,
		CompanyDoc:     models.NotFound,
		ContractNumber: models.NotFound,
		Value:          models.NotFound,
		ValidityEnd:    models.NotFound,
		DocType:        models.DocTypeOutro,
	}
}

type fieldKey int

const (
	keyContractor fieldKey = iota
	keyCompanyDoc
	keySynthesis
	keyContractNumber
	keySEIDocument
	keySignatureDate
	keyOpeningDate
	keyModality
	keyTerm
	keyTermUnit
	keyValue
	keyExplicitObject
)

// labelFields maps the captions used on detail pages to the field they
// introduce.
var labelFields = map[string]fieldKey{
	"Contratado(a)":      keyContractor,
	"Contratada":         keyContractor,
	"Licitante Vencedor": keyContractor,

	"CPF /CNPJ/ RNE": keyCompanyDoc,
	"CNPJ":           keyCompanyDoc,

	"Síntese (Texto do Despacho)": keySynthesis,
	"Texto do despacho":           keySynthesis,

	"Número do Contrato": keyContractNumber,
	"Número":             keyContractNumber,

	"Íntegra do Contrato (Número do Documento SEI)": keySEIDocument,
	"Arquivo (Número do documento SEI)":             keySEIDocument,

	"Data da Assinatura": keySignatureDate,
	"Data da sessão":     keyOpeningDate,
	"Data de Abertura":   keyOpeningDate,
	"Modalidade":         keyModality,
	"Prazo do Contrato":  keyTerm,
	"Tipo do Prazo":      keyTermUnit,
	"Valor":              keyValue,

	"Objeto da licitação": keyExplicitObject,
	"Objeto":              keyExplicitObject,
}

// labelTags are the elements that can carry a caption.
var labelTags = map[string]struct{}{
	"span": {}, "div": {}, "strong": {}, "label": {}, "p": {}, "b": {},
}

func (f *Fields) slot(k fieldKey) *string {
	switch k {
	case keyContractor:
		return &f.Contractor
	case keyCompanyDoc:
		return &f.CompanyDoc
	case keySynthesis:
		return &f.Synthesis
	case keyContractNumber:
		return &f.ContractNumber
	case keySEIDocument:
		return &f.SEIDocument
	case keySignatureDate:
		return &f.SignatureDate
	case keyOpeningDate:
		return &f.OpeningDate
	case keyModality:
		return &f.Modality
	case keyTerm:
		return &f.Term
	case keyTermUnit:
		return &f.TermUnit
	case keyValue:
		return &f.Value
	case keyExplicitObject:
		return &f.ExplicitObject
	}
	panic(fmt.Sprintf("extract: unknown field key %d", k))
}

// Page is a parsed detail page.
type Page struct {
	doc *goquery.Document
}

// ParsePage parses detail-page HTML.
func ParsePage(r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse detail page: %w", err)
	}
	return &Page{doc: doc}, nil
}

// ParsePageString is ParsePage over an in-memory document.
func ParsePageString(s string) (*Page, error) {
	return ParsePage(strings.NewReader(s))
}

// Fields runs the whole extraction cascade. It never fails; anything that
// cannot be found keeps its default marker.
func (p *Page) Fields() Fields {
	f := newFields()
	if p == nil || p.doc == nil {
		return f
	}

	p.lookupLabels(&f)
	p.fallbackSynthesis(&f)

	text := f.Synthesis
	enrich(&f, text)
	resolveValidity(&f, text)
	f.CompanyDoc = RepairTaxID(f.CompanyDoc)
	reclassify(&f, text)

	return f
}

// lookupLabels scans caption elements and takes the next non-empty element
// in document order as the value. Longer candidates replace shorter ones.
func (p *Page) lookupLabels(f *Fields) {
	for _, root := range p.doc.Nodes {
		elems := elementsInOrder(root)
		for i, el := range elems {
			if _, ok := labelTags[el.Data]; !ok {
				continue
			}

			caption := nodeText(el, "")
			key, ok := labelFields[caption]
			if !ok {
				key, ok = labelFields[strings.TrimRight(caption, ":")]
			}
			if !ok {
				continue
			}

			value := nextValue(elems[i+1:])
			if value == "" || value == caption {
				continue
			}

			dst := f.slot(key)
			if *dst == "" || runeLen(value) > runeLen(*dst) {
				*dst = value
			}
		}
	}
}

func nextValue(rest []*html.Node) string {
	for _, n := range rest {
		if nodeText(n, "") != "" {
			return nodeText(n, " ")
		}
	}
	return ""
}

// fallbackSynthesis uses the main article body when no usable synthesis
// caption was found.
func (p *Page) fallbackSynthesis(f *Fields) {
	if runeLen(f.Synthesis) >= 10 {
		return
	}
	for _, sel := range []string{"div.conteudoMateria", "div.materia"} {
		s := p.doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		f.Synthesis = nodeText(s.Get(0), " ")
		return
	}
}

// LinkContaining returns the href of the first anchor whose text contains
// id, falling back to the first anchor whose href contains it.
func (p *Page) LinkContaining(id string) (string, bool) {
	if p == nil || id == "" {
		return "", false
	}

	var href string
	p.doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.Contains(nodeText(a.Get(0), ""), id) {
			href, _ = a.Attr("href")
			return false
		}
		return true
	})
	if href != "" {
		return href, true
	}

	p.doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if h, _ := a.Attr("href"); strings.Contains(h, id) {
			href = h
			return false
		}
		return true
	})
	return href, href != ""
}

// Extract parses raw detail-page HTML and runs Fields.
func Extract(rawHTML string) Fields {
	p, err := ParsePageString(rawHTML)
	if err != nil {
		return newFields()
	}
	return p.Fields()
}
