package crawler

import (
	"github.com/cetsp/diario-scraper/internal/extract"
	"github.com/cetsp/diario-scraper/internal/models"
)

// Assemble turns one fetched detail page into a record. The PDF link is
// the anchor carrying the SEI document number when there is one, else the
// detail page itself.
func Assemble(day string, item Item, rawHTML string) (models.PublicationRecord, error) {
	page, err := extract.ParsePageString(rawHTML)
	if err != nil {
		return models.PublicationRecord{}, err
	}
	f := page.Fields()

	linkPDF := item.URL
	if f.SEIDocument != "" {
		if href, ok := page.LinkContaining(f.SEIDocument); ok {
			linkPDF = CleanLink(href)
		}
	}

	return models.PublicationRecord{
		Date:            day,
		Term:            item.Term,
		ProcessNumber:   item.ProcessNumber,
		DocumentID:      item.DocumentID,
		Summary:         extract.Summarize(f.Synthesis),
		ObjectText:      extract.ExplicitOrDerived(f.ExplicitObject, f.Synthesis),
		Contractor:      f.Contractor,
		CompanyDoc:      f.CompanyDoc,
		Value:           f.Value,
		ContractNumber:  f.ContractNumber,
		ValidityStart:   orNotFound(f.ValidityStart),
		ValidityEnd:     orNotFound(f.ValidityEnd),
		LinkHTML:        item.URL,
		LinkPDF:         linkPDF,
		Modality:        orNotFound(f.Modality),
		OpeningDate:     orNotFound(f.OpeningDate),
		AmendmentNumber: f.AmendmentNumber,
		ParentContract:  f.ParentContract,
		DocType:         f.DocType.OrOutro(),
	}, nil
}

func orNotFound(s string) string {
	if s == "" {
		return models.NotFound
	}
	return s
}
