package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/cetsp/diario-scraper/internal/models"
)

// SheetName is the worksheet holding the records.
const SheetName = "Publicações"

// maxCellLength is the Excel limit for a single cell.
const maxCellLength = 32767

type column struct {
	header string
	width  float64
	value  func(r models.PublicationRecord) string
}

var columns = []column{
	{"Data", 12, func(r models.PublicationRecord) string { return r.Date }},
	{"Termo", 16, func(r models.PublicationRecord) string { return r.Term }},
	{"Tipo", 16, func(r models.PublicationRecord) string { return string(r.DocType) }},
	{"Processo", 24, func(r models.PublicationRecord) string { return r.ProcessNumber }},
	{"Documento", 12, func(r models.PublicationRecord) string { return r.DocumentID }},
	{"Contrato", 14, func(r models.PublicationRecord) string { return r.ContractNumber }},
	{"Aditamento", 12, func(r models.PublicationRecord) string { return r.AmendmentNumber }},
	{"Contrato de Origem", 16, func(r models.PublicationRecord) string { return r.ParentContract }},
	{"Modalidade", 22, func(r models.PublicationRecord) string { return r.Modality }},
	{"Contratada", 36, func(r models.PublicationRecord) string { return r.Contractor }},
	{"CNPJ/CPF", 20, func(r models.PublicationRecord) string { return r.CompanyDoc }},
	{"Valor", 18, func(r models.PublicationRecord) string { return r.Value }},
	{"Início da Vigência", 14, func(r models.PublicationRecord) string { return r.ValidityStart }},
	{"Fim da Vigência", 14, func(r models.PublicationRecord) string { return r.ValidityEnd }},
	{"Data da Abertura", 14, func(r models.PublicationRecord) string { return r.OpeningDate }},
	{"Objeto", 60, func(r models.PublicationRecord) string { return r.ObjectText }},
	{"Resumo", 60, func(r models.PublicationRecord) string { return r.Summary }},
	{"Link HTML", 40, func(r models.PublicationRecord) string { return r.LinkHTML }},
	{"Link PDF", 40, func(r models.PublicationRecord) string { return r.LinkPDF }},
}

// WriteXLSX writes records to a single-sheet workbook with a frozen,
// filterable header row.
func WriteXLSX(w io.Writer, records []models.PublicationRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c.header
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range records {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = truncateCell(c.value(r))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := formatSheet(f, len(records)); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func formatSheet(f *excelize.File, rows int) error {
	last, err := excelize.ColumnNumberToName(len(columns))
	if err != nil {
		return err
	}

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", last+"1", style); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, c := range columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, name, name, c.width); err != nil {
			return fmt.Errorf("set width of %s: %w", name, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if rows == 0 {
		return nil
	}
	ref := fmt.Sprintf("A1:%s%d", last, rows+1)
	if err := f.AutoFilter(SheetName, ref, nil); err != nil {
		return fmt.Errorf("add auto filter: %w", err)
	}
	return nil
}

func truncateCell(v string) string {
	if len(v) <= maxCellLength {
		return v
	}
	runes := []rune(v)
	if len(runes) > maxCellLength {
		runes = runes[:maxCellLength]
	}
	return string(runes)
}
