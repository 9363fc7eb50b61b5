package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cetsp/diario-scraper/internal/models"
)

func materia(text string) string {
	return `<html><body><div><div class="materia">` + text + `</div></div></body></html>`
}

const contractPage = `<html><body>
<div class="campo"><span>Contratada:</span><span>ACME</span></div>
<div class="campo"><span>Contratada</span><span>ACME SERVICOS LTDA</span></div>
<div class="campo"><span>CPF /CNPJ/ RNE</span><span>942.204.178-34074.999.568-81</span></div>
<div class="campo"><span>Data da Assinatura</span><span>31.01.2024</span></div>
<div class="campo"><span>Prazo do Contrato</span><span>1</span></div>
<div class="campo"><span>Tipo do Prazo</span><span>Mês</span></div>
<div class="campo"><span>Íntegra do Contrato (Número do Documento SEI)</span><span><a href="/sei/doc?id=123456">123456</a></span></div>
<div class="conteudoMateria">EXTRATO DO CONTRATO nº 12/2024. Modalidade: Pregão Eletrônico.
Valor: R$ 1.234,56 (mil duzentos e trinta e quatro reais e cinquenta e seis centavos).</div>
</body></html>`

func TestFieldsFromStructuredPage(t *testing.T) {
	page, err := ParsePageString(contractPage)
	require.NoError(t, err)

	f := page.Fields()
	assert.Equal(t, "ACME SERVICOS LTDA", f.Contractor, "longer caption value wins")
	assert.Equal(t, "942.204.178-34, 074.999.568-81", f.CompanyDoc)
	assert.Equal(t, "31/01/2024", f.ValidityStart)
	assert.Equal(t, "29/02/2024", f.ValidityEnd)
	assert.Equal(t, "12/2024", f.ContractNumber)
	assert.Equal(t, "PREGÃO ELETRÔNICO", f.Modality)
	assert.Equal(t, "1.234,56 (mil duzentos e trinta e quatro reais e cinquenta e seis centavos)", f.Value)
	assert.Equal(t, "123456", f.SEIDocument)
	assert.Equal(t, models.DocTypeOutro, f.DocType)

	link, ok := page.LinkContaining(f.SEIDocument)
	require.True(t, ok)
	assert.Equal(t, "/sei/doc?id=123456", link)
}

func TestFieldsIdempotent(t *testing.T) {
	page, err := ParsePageString(contractPage)
	require.NoError(t, err)

	assert.Equal(t, page.Fields(), page.Fields())
	assert.Equal(t, Extract(contractPage), Extract(contractPage))
}

func TestExplicitObjectCaption(t *testing.T) {
	doc := `<div>
		<span class="label">Objeto da licitação</span>
		<span>CONTRATACAO DE PRIORIDADE ALTA</span>
		<div class="materia">
			Texto do Despacho...
			que trata de "COISA VELHA BAIXA PRIORIDADE"
		</div>
	</div>`

	f := Extract(doc)
	assert.Equal(t, "CONTRATACAO DE PRIORIDADE ALTA", f.ExplicitObject)
	assert.Equal(t, "CONTRATACAO DE PRIORIDADE ALTA", ExplicitOrDerived(f.ExplicitObject, f.Synthesis))
}

func TestDispensaBecomesPedidoCompra(t *testing.T) {
	f := Extract(materia(`
		Processo 123
		Modalidade: DISPENSA
		Contratada: EMPRESA X
		que trata de "AQUISICAO X"`))

	assert.Equal(t, "DISPENSA", f.Modality)
	assert.Equal(t, models.DocTypePedidoCompra, f.DocType)
}

func TestHomologationWithWinner(t *testing.T) {
	f := Extract(materia(`
		DESPACHO DE HOMOLOGAÇÃO
		2025/0001
		HOMOLOGO o procedimento licitatório
		Vencedor: EMPRESA VENCEDORA S.A., CNPJ 00.000.000/0001-00
		Objeto: CONSTRUCAO DE PONTE`))

	assert.Equal(t, models.DocTypeHomologacao, f.DocType)
	assert.Contains(t, f.Contractor, "EMPRESA VENCEDORA")
}

func TestPenaltyNoticeIsDiversos(t *testing.T) {
	f := Extract(materia(`
		NOTIFICAÇÃO DE APLICAÇÃO DE PENALIDADE
		Aplicada a empresa X`))

	assert.Equal(t, models.DocTypeDiversos, f.DocType)
	assert.Equal(t, models.NotFound, f.Contractor, "single-letter names are rejected")
}

func TestLaterRulesOverrideEarlierOnes(t *testing.T) {
	f := Extract(materia(`Modalidade: DISPENSA. Resposta ao ESCLARECIMENTO solicitado.`))
	assert.Equal(t, models.DocTypeDiversos, f.DocType)
}

func TestAmendmentSignals(t *testing.T) {
	f := Extract(materia(`TERMO DE ADITAMENTO nº 3/2024 ao Contrato nº 31/16.
		Fica prorrogado o prazo por 12 (doze) meses. Vigência: 01/02/2024 e 31/01/2025.`))

	assert.Equal(t, models.DocTypeAditamento, f.DocType)
	assert.Equal(t, "3/2024", f.AmendmentNumber)
	assert.Equal(t, "31/16", f.ParentContract)
	assert.Equal(t, "01/02/2024", f.ValidityStart)
	assert.Equal(t, "31/01/2025", f.ValidityEnd)
	assert.Equal(t, models.NotFound, f.Value)
	assert.Contains(t, Object(f.Synthesis), "Fica prorrogado o prazo por 12 (doze) meses")
}

func TestApostilamentoWithoutImpact(t *testing.T) {
	f := Extract(materia(`APOSTILAMENTO nº 2 ao Contrato nº 10/2023, sem impacto financeiro.`))

	assert.Equal(t, models.DocTypeApostilamento, f.DocType)
	assert.Equal(t, "2", f.AmendmentNumber)
	assert.Equal(t, "10/2023", f.ParentContract)
	assert.Equal(t, models.NoImpactValue, f.Value)
}

func TestInstrumentRules(t *testing.T) {
	tests := []struct {
		text string
		want models.DocType
	}{
		{"Extrato do Termo de Colaboração firmado com a OSC", models.DocTypeParceria},
		{"Acordo de Cooperação técnica entre órgãos", models.DocTypeParceria},
		{"Termo de Doação de equipamentos", models.DocTypeDoacao},
		{"Termo de Comodato de veículos", models.DocTypeComodato},
		{"Emissão da Nota de Empenho para despesas", models.DocTypeEmpenho},
		{"Resposta ao QUESTIONAMENTO enviado", models.DocTypeDiversos},
		{"Comunicado genérico", models.DocTypeOutro},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, detectDocType(tt.text).docType)
		})
	}
}

func TestContractorRejectsProcessLabels(t *testing.T) {
	_, ok := findContractor("Empresa: PROCESSO ADMINISTRATIVO, CNPJ 1")
	assert.False(t, ok)

	name, ok := findContractor("Contratada: CONSTRUTORA BETA LTDA., CNPJ 11.111.111/0001-11")
	require.True(t, ok)
	assert.Equal(t, "CONSTRUTORA BETA LTDA", name)
}

func TestValidityFromTextualDuration(t *testing.T) {
	f := Extract(materia(`EXTRATO. Data da Assinatura: 15/03/2024. Prazo de 90 (noventa) dias.`))

	assert.Equal(t, "15/03/2024", f.ValidityStart)
	assert.Equal(t, "13/06/2024", f.ValidityEnd)
}

func TestTextHeuristics(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		validityStart string
		validityEnd   string
		openingDate   string
		modality      string
	}{
		{
			name:          "range between dotted dates",
			text:          `EXTRATO. Serviços nos dias compreendidos entre 01.02.2026 e 01.02.2027.`,
			validityStart: "01/02/2026",
			validityEnd:   "01/02/2027",
		},
		{
			name:          "term from date to date",
			text:          `EXTRATO. O prazo de vigência de 05/03/2024 a 04/03/2025.`,
			validityStart: "05/03/2024",
			validityEnd:   "04/03/2025",
		},
		{
			name:          "duration in days from signature",
			text:          `EXTRATO. Data da Assinatura: 10/01/2024. Prazo de 90 (noventa) dias.`,
			validityStart: "10/01/2024",
			validityEnd:   "09/04/2024",
		},
		{
			name:        "opening session of a generic tender",
			text:        `AVISO DE LICITAÇÃO nº 5/2024. A sessão pública ocorrerá em 15/04/2024.`,
			openingDate: "15/04/2024",
			modality:    "LICITAÇÃO",
		},
		{
			name:        "named modality wins over the generic one",
			text:        `LICITAÇÃO na modalidade Pregão Eletrônico. Abertura: 20/05/2024.`,
			openingDate: "20/05/2024",
			modality:    "PREGÃO ELETRÔNICO",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Extract(materia(tt.text))

			if tt.validityStart != "" {
				assert.Equal(t, tt.validityStart, f.ValidityStart)
				assert.Equal(t, tt.validityEnd, f.ValidityEnd)
			}
			if tt.openingDate != "" {
				assert.Equal(t, tt.openingDate, f.OpeningDate)
				assert.Equal(t, tt.modality, f.Modality)
			}
		})
	}
}

func TestValidityUnknownEnd(t *testing.T) {
	f := Extract(materia(`EXTRATO sem datas.`))
	assert.Equal(t, "", f.ValidityStart)
	assert.Equal(t, models.NotFound, f.ValidityEnd)
}

func TestAddMonthsClampsToMonthEnd(t *testing.T) {
	day := func(s string) time.Time {
		d, err := time.Parse(models.DateLayout, s)
		require.NoError(t, err)
		return d
	}

	assert.Equal(t, day("28/02/2023"), AddMonths(day("31/01/2023"), 1))
	assert.Equal(t, day("29/02/2024"), AddMonths(day("31/01/2024"), 1))
	assert.Equal(t, day("28/02/2025"), AddMonths(day("29/02/2024"), 12))
	assert.Equal(t, day("15/02/2025"), AddMonths(day("15/11/2024"), 3))
	assert.Equal(t, day("29/02/2024"), AddMonths(day("31/03/2024"), -1))
}

func TestRepairTaxID(t *testing.T) {
	assert.Equal(t, "942.204.178-34, 074.999.568-81", RepairTaxID("942.204.178-34074.999.568-81"))
	assert.Equal(t, "12.345.678/0001-90", RepairTaxID("12.345.678/0001-90"))
	assert.Equal(t, "-", RepairTaxID("-"))
}

func TestLinkContainingFallsBackToHref(t *testing.T) {
	page, err := ParsePageString(`<p><a href="/outro">Outro</a><a href="/documento?id=999">Clique aqui</a></p>`)
	require.NoError(t, err)

	link, ok := page.LinkContaining("999")
	require.True(t, ok)
	assert.Equal(t, "/documento?id=999", link)

	_, ok = page.LinkContaining("000")
	assert.False(t, ok)
}
