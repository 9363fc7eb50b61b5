package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/cetsp/diario-scraper/internal/models"
)

func sampleRecords() []models.PublicationRecord {
	return []models.PublicationRecord{
		{
			Date:          "01/03/2024",
			Term:          "radar",
			ProcessNumber: "7810.2024/0000001-1",
			DocumentID:    "9001",
			Contractor:    "ACME & FILHOS LTDA",
			Value:         "R$ 1.000,00",
			ObjectText:    "Manutenção de radares",
			DocType:       models.DocTypeContrato,
		},
		{
			Date:       "02/03/2024",
			DocumentID: "9002",
			ObjectText: strings.Repeat("a", maxCellLength+10),
			DocType:    models.DocTypeDiversos,
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"json", FormatJSON},
		{".XLSX", FormatXLSX},
		{"excel", FormatXLSX},
		{" html ", FormatHTML},
		{"htm", FormatHTML},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseFormat("csv")
	assert.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleRecords()[:1]))
	assert.Contains(t, buf.String(), `"contractor": "ACME & FILHOS LTDA"`)

	records, err := ReadJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords()[:1], records)
}

func TestWriteJSONNil(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.JSONEq(t, `[]`, buf.String())
}

func TestReadJSONInvalid(t *testing.T) {
	_, err := ReadJSON(strings.NewReader(`{"date":1}`))
	assert.Error(t, err)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleRecords()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Data", rows[0][0])
	assert.Equal(t, "Link PDF", rows[0][len(columns)-1])

	assert.Equal(t, "01/03/2024", rows[1][0])
	assert.Equal(t, "CONTRATO", rows[1][2])
	assert.Equal(t, "ACME & FILHOS LTDA", rows[1][9])
	assert.Equal(t, "R$ 1.000,00", rows[1][11])

	assert.Len(t, rows[2][15], maxCellLength)
}

func TestWriteXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestWriteDispatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatHTML, nil))
	assert.Contains(t, buf.String(), "<!DOCTYPE html>")

	assert.Error(t, Write(&buf, Format("pdf"), nil))
	assert.Equal(t, "text/html; charset=utf-8", FormatHTML.ContentType())
	assert.Equal(t, "application/json", FormatJSON.ContentType())
}
