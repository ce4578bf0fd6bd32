package registry

import (
	"strings"

	"kycdesk/internal/document"
)

// Candidate keys for each company summary field. BrasilAPI and ReceitaWS name the
// same facts differently, and both have changed names over time.
var summaryFields = []struct {
	key        string
	candidates []string
}{
	{"razao_social", []string{"razao_social", "razaoSocial", "nome_empresarial", "nomeEmpresarial", "nome"}},
	{"nome_fantasia", []string{"nome_fantasia", "nomeFantasia", "fantasia"}},
	{"situacao_cadastral", []string{"descricao_situacao_cadastral", "situacao_cadastral", "situacao"}},
	{"data_abertura", []string{"data_inicio_atividade", "data_abertura", "abertura"}},
	{"capital_social", []string{"capital_social"}},
	{"porte", []string{"porte"}},
	{"natureza_juridica", []string{"natureza_juridica"}},
}

var addressFields = []struct {
	key        string
	candidates []string
}{
	{"logradouro", []string{"logradouro"}},
	{"numero", []string{"numero"}},
	{"complemento", []string{"complemento"}},
	{"bairro", []string{"bairro"}},
	{"municipio", []string{"municipio", "cidade"}},
	{"uf", []string{"uf"}},
	{"cep", []string{"cep"}},
}

// companySummary normalizes the primary registry payload and fills any field it
// lacks from the fallback payload.
func companySummary(primary, fallback map[string]any) map[string]any {
	summary := normalizeRegistry(primary)
	for k, v := range normalizeRegistry(fallback) {
		if isEmpty(summary[k]) {
			summary[k] = v
		}
	}
	if len(summary) == 0 {
		return nil
	}
	return summary
}

func normalizeRegistry(data map[string]any) map[string]any {
	out := map[string]any{}
	if data == nil {
		return out
	}
	for _, f := range summaryFields {
		if v := firstValue(data, f.candidates); v != nil {
			out[f.key] = v
		}
	}

	nested, _ := data["endereco"].(map[string]any)
	address := map[string]any{}
	for _, f := range addressFields {
		if v := firstValue(nested, f.candidates); v != nil {
			address[f.key] = v
		} else if v := firstValue(data, f.candidates); v != nil {
			address[f.key] = v
		}
	}
	if len(address) > 0 {
		out["endereco"] = address
	}
	return out
}

func firstValue(data map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := data[k]; ok && !isEmpty(v) {
			return v
		}
	}
	return nil
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	default:
		return false
	}
}

// ownership normalizes partner entries to nome / qualificacao / cpf_cnpj.
// BrasilAPI uses nome_socio and friends; ReceitaWS uses nome and qual.
func ownership(primary, fallback map[string]any) []any {
	items, _ := primary["qsa"].([]any)
	if len(items) == 0 {
		items, _ = fallback["qsa"].([]any)
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		partner := map[string]any{}
		if v := firstValue(m, []string{"nome_socio", "nome", "razao_social"}); v != nil {
			partner["nome"] = v
		}
		if v := firstValue(m, []string{"qualificacao_socio", "qualificacao", "qual"}); v != nil {
			partner["qualificacao"] = v
		}
		if v := firstValue(m, []string{"cnpj_cpf_do_socio", "cpf_cnpj"}); v != nil {
			partner["cpf_cnpj"] = v
		}
		out = append(out, partner)
	}
	return out
}

// postalCode finds the subject's CEP in the normalized summary.
func postalCode(summary map[string]any) string {
	address, _ := summary["endereco"].(map[string]any)
	cep, _ := address["cep"].(string)
	return document.Digits(cep)
}

func summaryText(summary map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := summary[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
