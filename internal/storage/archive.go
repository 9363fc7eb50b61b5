package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cetsp/diario-scraper/internal/models"
	"github.com/cetsp/diario-scraper/pkg/logger"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS publications (
	id               BIGSERIAL PRIMARY KEY,
	search_id        TEXT NOT NULL,
	pub_date         TEXT NOT NULL,
	term             TEXT NOT NULL,
	process_number   TEXT NOT NULL,
	document_id      TEXT NOT NULL,
	summary          TEXT NOT NULL,
	object_text      TEXT NOT NULL,
	contractor       TEXT NOT NULL,
	company_doc      TEXT NOT NULL,
	value            TEXT NOT NULL,
	contract_number  TEXT NOT NULL,
	validity_start   TEXT NOT NULL,
	validity_end     TEXT NOT NULL,
	link_html        TEXT NOT NULL,
	link_pdf         TEXT NOT NULL,
	modality         TEXT NOT NULL,
	opening_date     TEXT NOT NULL,
	amendment_number TEXT NOT NULL,
	parent_contract  TEXT NOT NULL,
	doc_type         TEXT NOT NULL,
	archived_at      TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	UNIQUE (document_id, pub_date, link_html)
);
CREATE INDEX IF NOT EXISTS idx_publications_pub_date ON publications (pub_date);
CREATE INDEX IF NOT EXISTS idx_publications_doc_type ON publications (doc_type);
`

const upsertPublication = `
INSERT INTO publications (
	search_id, pub_date, term, process_number, document_id, summary,
	object_text, contractor, company_doc, value, contract_number,
	validity_start, validity_end, link_html, link_pdf, modality,
	opening_date, amendment_number, parent_contract, doc_type
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
ON CONFLICT (document_id, pub_date, link_html) DO UPDATE SET
	search_id = EXCLUDED.search_id,
	term = EXCLUDED.term,
	process_number = EXCLUDED.process_number,
	summary = EXCLUDED.summary,
	object_text = EXCLUDED.object_text,
	contractor = EXCLUDED.contractor,
	company_doc = EXCLUDED.company_doc,
	value = EXCLUDED.value,
	contract_number = EXCLUDED.contract_number,
	validity_start = EXCLUDED.validity_start,
	validity_end = EXCLUDED.validity_end,
	link_pdf = EXCLUDED.link_pdf,
	modality = EXCLUDED.modality,
	opening_date = EXCLUDED.opening_date,
	amendment_number = EXCLUDED.amendment_number,
	parent_contract = EXCLUDED.parent_contract,
	doc_type = EXCLUDED.doc_type,
	archived_at = NOW()`

const selectPublications = `
SELECT pub_date, term, process_number, document_id, summary, object_text,
	contractor, company_doc, value, contract_number, validity_start,
	validity_end, link_html, link_pdf, modality, opening_date,
	amendment_number, parent_contract, doc_type
FROM publications`

// Archive stores extracted records in PostgreSQL. Re-scraping a day
// updates the existing rows instead of duplicating them.
type Archive struct {
	db  *PostgresDB
	log *logger.Logger
}

// NewArchive creates an Archive over db.
func NewArchive(db *PostgresDB, log *logger.Logger) *Archive {
	if log == nil {
		log = logger.Default()
	}
	return &Archive{db: db, log: log.WithComponent("archive")}
}

// Migrate creates the publications table when missing.
func (a *Archive) Migrate(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, archiveSchema); err != nil {
		return fmt.Errorf("migrate publications: %w", err)
	}
	return nil
}

// Save upserts records in one transaction and returns how many were
// written.
func (a *Archive) Save(ctx context.Context, searchID string, records []models.PublicationRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	err := a.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertPublication)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			if _, err := stmt.ExecContext(ctx,
				searchID, r.Date, r.Term, r.ProcessNumber, r.DocumentID, r.Summary,
				r.ObjectText, r.Contractor, r.CompanyDoc, r.Value, r.ContractNumber,
				r.ValidityStart, r.ValidityEnd, r.LinkHTML, r.LinkPDF, r.Modality,
				r.OpeningDate, r.AmendmentNumber, r.ParentContract, string(r.DocType),
			); err != nil {
				return fmt.Errorf("upsert document %s: %w", r.DocumentID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	a.log.Info("records archived", "search_id", searchID, "count", len(records))
	return len(records), nil
}

// ByDate returns the archived records published on day (DD/MM/YYYY).
func (a *Archive) ByDate(ctx context.Context, day string) ([]models.PublicationRecord, error) {
	rows, err := a.db.QueryContext(ctx, selectPublications+` WHERE pub_date = $1 ORDER BY id`, day)
	if err != nil {
		return nil, fmt.Errorf("query publications: %w", err)
	}
	defer rows.Close()

	var out []models.PublicationRecord
	for rows.Next() {
		var (
			r       models.PublicationRecord
			docType string
		)
		if err := rows.Scan(
			&r.Date, &r.Term, &r.ProcessNumber, &r.DocumentID, &r.Summary, &r.ObjectText,
			&r.Contractor, &r.CompanyDoc, &r.Value, &r.ContractNumber, &r.ValidityStart,
			&r.ValidityEnd, &r.LinkHTML, &r.LinkPDF, &r.Modality, &r.OpeningDate,
			&r.AmendmentNumber, &r.ParentContract, &docType,
		); err != nil {
			return nil, fmt.Errorf("scan publication: %w", err)
		}
		r.DocType = models.DocType(docType).OrOutro()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Health checks the underlying database.
func (a *Archive) Health(ctx context.Context) error {
	return a.db.Health(ctx)
}
