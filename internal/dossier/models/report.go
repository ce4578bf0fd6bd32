package models

import "time"

// Source names used as keys in TechnicalReport.Sources.
const (
	SourceBrasilAPI          = "brasilapi_cnpj"
	SourceReceitaWS          = "receitaws_cnpj"
	SourceViaCEP             = "viacep"
	SourceTransparenciaCEIS  = "transparencia_ceis"
	SourceTransparenciaCNEP  = "transparencia_cnep"
	SourceTransparenciaCEPIM = "transparencia_cepim"
)

// SourceState distinguishes a source that was never fetched from one that was
// fetched with no data and one that failed.
type SourceState int

const (
	SourceAbsent SourceState = iota
	SourceOK
	SourceFailed
)

// SourceResult is the outcome of fetching one upstream source.
// Data is left loosely typed: each source returns its own JSON shape.
type SourceResult struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func Ok(data any) SourceResult {
	return SourceResult{OK: true, Data: data}
}

func Failed(reason string) SourceResult {
	return SourceResult{OK: false, Error: reason}
}

// FailureReason is Error, or "error" when a failed result was stored without one.
func (r SourceResult) FailureReason() string {
	if r.Error == "" {
		return "error"
	}
	return r.Error
}

// Sources maps source names to their results.
type Sources map[string]SourceResult

// Get returns the named result and its state. A missing key is SourceAbsent.
func (s Sources) Get(name string) (SourceResult, SourceState) {
	r, ok := s[name]
	switch {
	case !ok:
		return SourceResult{}, SourceAbsent
	case r.OK:
		return r, SourceOK
	default:
		return r, SourceFailed
	}
}

// Report is the dossier payload persisted as report_data. Fields read from older
// payloads are typed loosely so a malformed value degrades instead of failing decode.
type Report struct {
	Metadata        *Metadata         `json:"metadata,omitempty"`
	TechnicalReport *TechnicalReport  `json:"technical_report,omitempty"`
	Sanctions       *SanctionsSummary `json:"sanctions,omitempty"`
	AIAnalysis      any               `json:"ai_analysis"`
	PEPData         map[string]any    `json:"pep_data,omitempty"`
	MediaFindings   any               `json:"media_findings,omitempty"`
	CPFValidation   map[string]any    `json:"cpf_validation,omitempty"`
	DocType         string            `json:"doc_type,omitempty"`
}

type Metadata struct {
	DocumentType string    `json:"document_type,omitempty"`
	GeneratedAt  time.Time `json:"generated_at"`
}

type TechnicalReport struct {
	Input   Input   `json:"input"`
	Sources Sources `json:"sources"`
	Derived Derived `json:"derived"`
}

type Input struct {
	Document string `json:"document"`
	Type     string `json:"type"`
}

type Derived struct {
	CompanySummary map[string]any `json:"company_summary,omitempty"`
	QSAEnriched    []any          `json:"qsa_enriched,omitempty"`
	CPFValidation  map[string]any `json:"cpf_validation,omitempty"`
}

// SanctionsSummary is the legacy block kept alongside the per-source results.
type SanctionsSummary struct {
	CEIS           []any `json:"ceis"`
	CNEP           []any `json:"cnep"`
	CEPIM          []any `json:"cepim"`
	TotalSanctions int   `json:"total_sanctions"`
}

// Source returns the named source result, or SourceAbsent when the report has none.
func (r *Report) Source(name string) (SourceResult, SourceState) {
	if r == nil || r.TechnicalReport == nil {
		return SourceResult{}, SourceAbsent
	}
	return r.TechnicalReport.Sources.Get(name)
}
