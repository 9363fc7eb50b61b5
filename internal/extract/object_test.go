package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cetsp/diario-scraper/internal/models"
)

func TestObject(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "empty input",
			text: "",
			want: models.ObjectEmptyInput,
		},
		{
			name: "quoted subject",
			text: `Despacho que trata de "AQUISIÇÃO DE CONES" conforme processo`,
			want: "AQUISIÇÃO DE CONES",
		},
		{
			name: "quoted subject with digits",
			text: `que trata de "FORNECIMENTO DE 200 (DUZENTOS) MOUSES ÓPTICOS"`,
			want: "FORNECIMENTO DE 200 (DUZENTOS) MOUSES ÓPTICOS",
		},
		{
			name: "unquoted subject drops trailing period",
			text: "que trata de AQUISICAO DE MESAS E CADEIRAS COM RODINHAS.",
			want: "AQUISICAO DE MESAS E CADEIRAS COM RODINHAS",
		},
		{
			name: "unquoted subject",
			text: "Despacho que trata da manutenção de semáforos, conforme anexo",
			want: "manutenção de semáforos",
		},
		{
			name: "labelled object",
			text: "OBJETO: OUTSOURCING DE IMPRESSÃO. Valor estimado",
			want: "OUTSOURCING DE IMPRESSÃO",
		},
		{
			name: "action phrase keeps lead-in",
			text: "Autorizo a contratação para a aquisição de cones de sinalização, nos termos da Lei",
			want: "para a aquisição de cones de sinalização,",
		},
		{
			name: "nothing recognisable",
			text: "Comunicado sem informações relevantes",
			want: models.ObjectNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Object(tt.text))
		})
	}
}

func TestObjectExtensionSpan(t *testing.T) {
	got := Object("Termo Aditivo. Fica prorrogado o contrato por 12 meses a partir de 01/02/2024, que trata de \"LIMPEZA\"")
	assert.Equal(t, "Fica prorrogado o contrato por 12 meses a partir de 01/02/2", got)
}

func TestObjectCollapsesWhitespace(t *testing.T) {
	got := Object("que trata de  \"SERVIÇOS   DE\n\tGUINCHO\"")
	assert.Equal(t, "SERVIÇOS DE GUINCHO", got)
}

func TestExplicitOrDerived(t *testing.T) {
	assert.Equal(t, "CONTRATACAO DE X", ExplicitOrDerived("  CONTRATACAO   DE\nX  ", "ignored"))
	assert.Equal(t, "LIMPEZA", ExplicitOrDerived("abc", `que trata de "LIMPEZA"`))
	assert.Equal(t, models.ObjectEmptyInput, ExplicitOrDerived("", ""))
}

func TestClassifySummary(t *testing.T) {
	tests := []struct {
		summary string
		want    SummaryKind
	}{
		{"Formalizado em 10/01/2024 o ajuste", SummaryContrato},
		{"Termo Aditivo ao contrato nº 5", SummaryAditamento},
		{"Contrato celebrado entre CET e fornecedor", SummaryContrato},
		{"Homologação do pregão eletrônico", SummaryLicitacao},
		{"Pregão para contrato de serviços", SummaryLicitacao},
		{"Contrato de serviços", SummaryContrato},
		{"Comunicado interno", SummaryOutros},
	}

	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifySummary(tt.summary))
		})
	}
}

func TestObjectLongLicitationCaption(t *testing.T) {
	got := Object("Objeto da licitação: CONTRATAÇÃO DE EMPRESA ESPECIALIZADA EM OUTSOURCING DE IMPRESSÃO")
	assert.Contains(t, got, "OUTSOURCING")
}
