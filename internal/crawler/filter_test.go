package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cetsp/diario-scraper/internal/models"
)

func TestFilterApply(t *testing.T) {
	raw := []RawItem{
		{Text: "CET\nProcesso: 6020.2024/0001234-5\nDocumento: 987654\nExtrato de contrato", Href: "md_epubli_visualizar.php?id=1"},
		{Text: "gsu - gerência de suprimentos\nDocumento: 1", Href: "visualizar?id=2"},
		{Text: "Aviso sem link\nDocumento: 2", Href: ""},
		{Text: "Edital de pregão", Href: "https://diariooficial.prefeitura.sp.gov.br/visualizar?id=3"},
	}

	items := Filter{ExclusionMarker: "GSU"}.Apply(raw)
	require.Len(t, items, 2)

	assert.Equal(t, Item{
		URL:           SiteRoot + "md_epubli_visualizar.php?id=1",
		DocumentID:    "987654",
		ProcessNumber: "6020.2024/0001234-5",
		Term:          models.DefaultCategory,
	}, items[0])

	assert.Equal(t, models.NoDocumentID, items[1].DocumentID)
	assert.Equal(t, models.NotFound, items[1].ProcessNumber)
	assert.Equal(t, "https://diariooficial.prefeitura.sp.gov.br/visualizar?id=3", items[1].URL)
}

func TestFilterTerms(t *testing.T) {
	raw := []RawItem{
		{Text: "Extrato - Radar fixo", Href: "a"},
		{Text: "Aquisição de RADARES e semáforos", Href: "b"},
		{Text: "Limpeza predial", Href: "c"},
	}

	items := Filter{Terms: []string{"  ", "semáforo", "radar"}}.Apply(raw)
	require.Len(t, items, 2)
	assert.Equal(t, "radar", items[0].Term)
	assert.Equal(t, "semáforo", items[1].Term, "the first matching term wins")
}

func TestCleanLink(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "#"},
		{"md_epubli_visualizar.php?id=1", SiteRoot + "md_epubli_visualizar.php?id=1"},
		{"https://sei.prefeitura.sp.gov.br/doc?id=9", "https://sei.prefeitura.sp.gov.br/doc?id=9"},
		{"chrome-extension://efaidnbm/https://sei.prefeitura.sp.gov.br/doc.pdf", "https://sei.prefeitura.sp.gov.br/doc.pdf"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanLink(tt.in), tt.in)
	}
}

func TestFormScript(t *testing.T) {
	script := formScript("01/03/2024", "68")
	assert.Contains(t, script, `"hdnDataPublicacao"`)
	assert.Contains(t, script, `"01/03/2024"`)
	assert.Contains(t, script, `"hdnOrgaoFiltro"`)
	assert.Contains(t, script, `"68"`)
	assert.Contains(t, script, `"DATA"`)
	assert.Contains(t, script, "f.method = 'POST'")
	assert.Contains(t, script, "f.submit()")
}

func TestIsEmptyState(t *testing.T) {
	assert.True(t, isEmptyState("<p>Sua busca: sua pesquisa não retornou resultados.</p>"))
	assert.True(t, isEmptyState("Sem publicações no dia 01/01/2024"))
	assert.False(t, isEmptyState("<div>Erro 500</div>"))
}
