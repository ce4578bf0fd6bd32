package reconcile

import (
	"kycdesk/internal/document"
	"kycdesk/internal/dossier/models"
)

// source is everything an accessor may read from. brasil is nil unless the
// BrasilAPI result is ok, so registry fields never come from a failed fetch.
type source struct {
	dossier *models.Dossier
	report  *models.Report
	summary map[string]any
	brasil  map[string]any
}

type accessor struct {
	name string
	get  func(s source) string
}

// chain is an ordered list of accessors; the first non-empty value wins.
type chain []accessor

// resolve returns the winning value and the name of the accessor that produced it.
// Both are empty when every accessor comes up empty.
func (c chain) resolve(s source) (value, from string) {
	for _, a := range c {
		if v := a.get(s); v != "" {
			return v, a.name
		}
	}
	return "", ""
}

func summaryField(keys ...string) accessor {
	return accessor{name: "company_summary." + keys[0], get: func(s source) string {
		return firstText(s.summary, keys...)
	}}
}

func brasilField(keys ...string) accessor {
	return accessor{name: models.SourceBrasilAPI + "." + keys[0], get: func(s source) string {
		return firstText(s.brasil, keys...)
	}}
}

const nameUnavailable = "name unavailable"

var nameChain = chain{
	{name: "entity_name", get: func(s source) string { return s.dossier.EntityName }},
	summaryField("razao_social"),
	brasilField("razao_social"),
}

var documentTypeChain = chain{
	{name: "metadata.document_type", get: func(s source) string {
		if s.report == nil || s.report.Metadata == nil {
			return ""
		}
		return s.report.Metadata.DocumentType
	}},
	{name: "technical_report.input.type", get: func(s source) string {
		if s.report == nil || s.report.TechnicalReport == nil {
			return ""
		}
		return s.report.TechnicalReport.Input.Type
	}},
	{name: "doc_type", get: func(s source) string {
		if s.report == nil {
			return ""
		}
		return s.report.DocType
	}},
	{name: "inferred", get: func(s source) string {
		return document.Classify(s.dossier.Document).Label()
	}},
}

var (
	openingDateChain = chain{
		summaryField("data_abertura", "data_inicio_atividade", "abertura"),
		brasilField("data_inicio_atividade", "data_abertura", "abertura"),
	}
	capitalChain = chain{
		summaryField("capital_social"),
		brasilField("capital_social"),
	}
	sizeChain = chain{
		summaryField("porte"),
		brasilField("porte"),
	}
	registrationStatusChain = chain{
		summaryField("situacao_cadastral"),
		brasilField("descricao_situacao_cadastral", "situacao_cadastral"),
	}
	tradeNameChain = chain{
		summaryField("nome_fantasia"),
		brasilField("nome_fantasia", "fantasia"),
	}
	legalNatureChain = chain{
		summaryField("natureza_juridica"),
		brasilField("natureza_juridica"),
	}
)

// Address keys, read from the nested endereco object first and the flat BrasilAPI keys second.
var (
	streetKeys       = []string{"logradouro"}
	numberKeys       = []string{"numero"}
	complementKeys   = []string{"complemento"}
	districtKeys     = []string{"bairro"}
	municipalityKeys = []string{"municipio", "cidade"}
	stateKeys        = []string{"uf"}
	postalCodeKeys   = []string{"cep"}
)

// Ownership entry keys.
var (
	ownerNameKeys     = []string{"nome", "nome_socio", "razao_social"}
	ownerRoleKeys     = []string{"qualificacao", "qualificacao_socio"}
	ownerDocumentKeys = []string{"cpf_cnpj", "cnpj_cpf_do_socio"}
)

const defaultOwnerName = "Sócio"
