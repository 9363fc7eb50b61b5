package crawler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cetsp/diario-scraper/internal/models"
)

func TestAssemble(t *testing.T) {
	item := Item{
		URL:           SiteRoot + "md_epubli_visualizar.php?id=7",
		DocumentID:    "7",
		ProcessNumber: "6020.2024/0000007-1",
		Term:          "radar",
	}
	page := `<html><body>
		<p><b>Contratada:</b></p><p>RADARES BRASIL LTDA</p>
		<p><b>Arquivo (Número do documento SEI)</b></p><p><a href="sei/documento?id=112233">112233</a></p>
		<div class="materia">EXTRATO DO CONTRATO nº 45/2024. Objeto: MANUTENÇÃO DE RADARES. Valor: R$ 10.000,00 (dez mil reais).</div>
	</body></html>`

	rec, err := Assemble("01/03/2024", item, page)
	require.NoError(t, err)

	assert.Equal(t, "01/03/2024", rec.Date)
	assert.Equal(t, "radar", rec.Term)
	assert.Equal(t, "7", rec.DocumentID)
	assert.Equal(t, "RADARES BRASIL LTDA", rec.Contractor)
	assert.Equal(t, "45/2024", rec.ContractNumber)
	assert.Equal(t, "MANUTENÇÃO DE RADARES", rec.ObjectText)
	assert.Equal(t, "10.000,00 (dez mil reais)", rec.Value)
	assert.Equal(t, item.URL, rec.LinkHTML)
	assert.Equal(t, SiteRoot+"sei/documento?id=112233", rec.LinkPDF)
	assert.Equal(t, models.NotFound, rec.ValidityStart)
	assert.Equal(t, models.NotFound, rec.ValidityEnd)
	assert.Equal(t, models.NotFound, rec.Modality)
	assert.Equal(t, models.NotFound, rec.OpeningDate)
	assert.Equal(t, models.DocTypeOutro, rec.DocType)
	assert.True(t, strings.HasSuffix(rec.Summary, "..."))
}

func TestAssembleTruncatesSummary(t *testing.T) {
	long := strings.Repeat("á", 250)
	rec, err := Assemble("01/03/2024", Item{URL: "u"}, `<div class="materia">`+long+`</div>`)
	require.NoError(t, err)

	assert.Equal(t, strings.Repeat("á", 200)+"...", rec.Summary)
	assert.Equal(t, models.ObjectNotFound, rec.ObjectText)
}
