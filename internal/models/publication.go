// Package models holds the request and record types shared by the scraper,
// the API and the exporters.
package models

// DocType is the business category assigned to a publication.
type DocType string

// Document categories.
const (
	DocTypeContrato      DocType = "CONTRATO"
	DocTypeAditamento    DocType = "ADITAMENTO"
	DocTypeApostilamento DocType = "APOSTILAMENTO"
	DocTypeLicitacao     DocType = "LICITACAO"
	DocTypePedidoCompra  DocType = "PEDIDO_COMPRA"
	DocTypeHomologacao   DocType = "HOMOLOGACAO"
	DocTypeParceria      DocType = "PARCERIA"
	DocTypeDoacao        DocType = "DOACAO"
	DocTypeComodato      DocType = "COMODATO"
	DocTypeEmpenho       DocType = "EMPENHO"
	DocTypeDiversos      DocType = "DIVERSOS"
	DocTypeOutro         DocType = "OUTRO"
)

var knownDocTypes = map[DocType]struct{}{
	DocTypeContrato:      {},
	DocTypeAditamento:    {},
	DocTypeApostilamento: {},
	DocTypeLicitacao:     {},
	DocTypePedidoCompra:  {},
	DocTypeHomologacao:   {},
	DocTypeParceria:      {},
	DocTypeDoacao:        {},
	DocTypeComodato:      {},
	DocTypeEmpenho:       {},
	DocTypeDiversos:      {},
	DocTypeOutro:         {},
}

// Valid reports whether t is one of the fixed categories.
func (t DocType) Valid() bool {
	_, ok := knownDocTypes[t]
	return ok
}

// OrOutro maps unknown or empty values to DocTypeOutro.
func (t DocType) OrOutro() DocType {
	if t.Valid() {
		return t
	}
	return DocTypeOutro
}

// Placeholder values used when a field could not be found.
const (
	NotFound         = "-"
	NoDocumentID     = "S/N"
	DefaultCategory  = "Geral"
	NoImpactValue    = "Sem impacto"
	ObjectNotFound   = "Verificar objeto na íntegra."
	ObjectEmptyInput = "VERIFICAR NA ÍNTEGRA"
)

// PublicationRecord is one extracted gazette publication. Records are
// values: producers build them once and nothing mutates them afterwards.
type PublicationRecord struct {
	Date            string  `json:"date"`
	Term            string  `json:"term"`
	ProcessNumber   string  `json:"process_number"`
	DocumentID      string  `json:"document_id"`
	Summary         string  `json:"summary"`
	ObjectText      string  `json:"object_text"`
	Contractor      string  `json:"contractor"`
	CompanyDoc      string  `json:"company_doc"`
	Value           string  `json:"value"`
	ContractNumber  string  `json:"contract_number"`
	ValidityStart   string  `json:"validity_start"`
	ValidityEnd     string  `json:"validity_end"`
	LinkHTML        string  `json:"link_html"`
	LinkPDF         string  `json:"link_pdf"`
	Modality        string  `json:"modality"`
	OpeningDate     string  `json:"opening_date"`
	AmendmentNumber string  `json:"amendment_number"`
	ParentContract  string  `json:"parent_contract"`
	DocType         DocType `json:"doc_type"`
}

// Key identifies a record for de-duplication and archiving.
func (r PublicationRecord) Key() string {
	return r.Date + "|" + r.DocumentID + "|" + r.LinkHTML
}
