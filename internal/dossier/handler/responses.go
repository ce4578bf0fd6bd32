package handler

import (
	"time"

	"kycdesk/internal/dossier/models"
	"kycdesk/internal/dossier/reconcile"
	"kycdesk/internal/dossier/service"
	id "kycdesk/pkg/domain"
)

type CreateResponse struct {
	ID           id.DossierID `json:"id"`
	EntityName   string       `json:"entity_name"`
	Document     string       `json:"document"`
	DocumentType string       `json:"document_type"`
	RiskLevel    string       `json:"risk_level"`
}

func toCreateResponse(r *service.CreateResult) CreateResponse {
	return CreateResponse{
		ID:           r.ID,
		EntityName:   r.EntityName,
		Document:     r.Document,
		DocumentType: r.DocumentType,
		RiskLevel:    string(r.RiskLevel),
	}
}

type DuplicateResponse struct {
	Exists    bool          `json:"exists"`
	DossierID *id.DossierID `json:"dossier_id,omitempty"`
}

type conflictResponse struct {
	Error            string       `json:"error"`
	ErrorDescription string       `json:"error_description"`
	ExistingID       id.DossierID `json:"existing_id"`
}

type SummaryResponse struct {
	ID             id.DossierID `json:"id"`
	Document       string       `json:"document"`
	DocumentType   string       `json:"document_type"`
	EntityName     string       `json:"entity_name"`
	RiskLevel      string       `json:"risk_level,omitempty"`
	DecisionStatus string       `json:"decision_status"`
	CreatedAt      time.Time    `json:"created_at"`
}

type ListResponse struct {
	Dossiers []SummaryResponse `json:"dossiers"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

func toListResponse(p *service.Page) ListResponse {
	out := ListResponse{
		Dossiers: make([]SummaryResponse, 0, len(p.Items)),
		Total:    p.Total,
		Page:     p.Page,
		PageSize: p.PageSize,
	}
	for _, s := range p.Items {
		out.Dossiers = append(out.Dossiers, SummaryResponse{
			ID:             s.ID,
			Document:       s.Document,
			DocumentType:   s.DocumentType,
			EntityName:     s.EntityName,
			RiskLevel:      string(s.RiskLevel),
			DecisionStatus: string(s.DecisionStatus),
			CreatedAt:      s.CreatedAt,
		})
	}
	return out
}

type BatchItemResponse struct {
	Document   string        `json:"document"`
	DossierID  *id.DossierID `json:"dossier_id,omitempty"`
	Error      string        `json:"error,omitempty"`
	ExistingID *id.DossierID `json:"existing_id,omitempty"`
}

type BatchErrorResponse struct {
	Document string `json:"document"`
	Error    string `json:"error"`
}

type BatchResponse struct {
	TotalProcessed int                  `json:"total_processed"`
	Successful     int                  `json:"successful"`
	Failed         int                  `json:"failed"`
	Results        []BatchItemResponse  `json:"results"`
	Errors         []BatchErrorResponse `json:"errors"`
}

func toBatchResponse(r *service.BatchResult) BatchResponse {
	out := BatchResponse{
		TotalProcessed: r.TotalProcessed,
		Successful:     r.Successful,
		Failed:         r.Failed,
		Results:        make([]BatchItemResponse, 0, len(r.Results)),
		Errors:         make([]BatchErrorResponse, 0, len(r.Errors)),
	}
	for _, item := range r.Results {
		out.Results = append(out.Results, BatchItemResponse(item))
	}
	for _, e := range r.Errors {
		out.Errors = append(out.Errors, BatchErrorResponse(e))
	}
	return out
}

type DecisionResponse struct {
	Status    string    `json:"status"`
	DecidedAt time.Time `json:"decided_at"`
}

type DecisionView struct {
	Status                string     `json:"status"`
	TechnicalOpinion      string     `json:"technical_opinion,omitempty"`
	DirectorJustification string     `json:"director_justification,omitempty"`
	Approved              *bool      `json:"approved,omitempty"`
	DecidedAt             *time.Time `json:"decided_at,omitempty"`
	DecidedBy             *id.UserID `json:"decided_by,omitempty"`
}

type IdentityView struct {
	Name               string `json:"name"`
	TradeName          string `json:"trade_name,omitempty"`
	RegistrationStatus string `json:"registration_status,omitempty"`
	OpeningDate        string `json:"opening_date,omitempty"`
	Capital            string `json:"capital,omitempty"`
	Size               string `json:"size,omitempty"`
	LegalNature        string `json:"legal_nature,omitempty"`
}

type AddressView struct {
	Street       string `json:"street,omitempty"`
	Number       string `json:"number,omitempty"`
	Complement   string `json:"complement,omitempty"`
	District     string `json:"district,omitempty"`
	Municipality string `json:"municipality,omitempty"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
}

type OwnerView struct {
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
	Document string `json:"document,omitempty"`
}

type PEPView struct {
	IsPEP   bool   `json:"is_pep"`
	Details string `json:"details,omitempty"`
}

type SanctionListView struct {
	Fetched   bool                     `json:"fetched"`
	Error     string                   `json:"error,omitempty"`
	Total     int                      `json:"total"`
	Entries   []reconcile.DisplayEntry `json:"entries"`
	Remaining int                      `json:"remaining"`
}

type SanctionsView struct {
	CEIS  SanctionListView `json:"ceis"`
	CNEP  SanctionListView `json:"cnep"`
	CEPIM SanctionListView `json:"cepim"`
	Total int              `json:"total"`
	Clear bool             `json:"clear"`
}

type DerivedView struct {
	DocumentType  string            `json:"document_type"`
	Identity      IdentityView      `json:"identity"`
	Address       *AddressView      `json:"address,omitempty"`
	Owners        []OwnerView       `json:"owners"`
	PEP           *PEPView          `json:"pep,omitempty"`
	Sanctions     SanctionsView     `json:"sanctions"`
	AINarrative   string            `json:"ai_narrative,omitempty"`
	MediaFindings string            `json:"media_findings,omitempty"`
	CPFValid      *bool             `json:"cpf_valid,omitempty"`
	SourceErrors  map[string]string `json:"source_errors,omitempty"`
	Provenance    map[string]string `json:"provenance,omitempty"`
}

type DetailResponse struct {
	ID         id.DossierID   `json:"id"`
	Document   string         `json:"document"`
	EntityName string         `json:"entity_name"`
	RiskLevel  string         `json:"risk_level,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	Decision   DecisionView   `json:"decision"`
	View       DerivedView    `json:"view"`
	Report     *models.Report `json:"report_data,omitempty"`
}

func toDetailResponse(d *service.Detail) DetailResponse {
	dossier := d.Dossier
	return DetailResponse{
		ID:         dossier.ID,
		Document:   dossier.Document,
		EntityName: dossier.EntityName,
		RiskLevel:  string(dossier.RiskLevel),
		CreatedAt:  dossier.CreatedAt,
		Decision: DecisionView{
			Status:                string(dossier.Decision.Status),
			TechnicalOpinion:      dossier.Decision.TechnicalOpinion,
			DirectorJustification: dossier.Decision.DirectorJustification,
			Approved:              dossier.Decision.Approved,
			DecidedAt:             dossier.Decision.DecidedAt,
			DecidedBy:             dossier.Decision.DecidedBy,
		},
		View:   toDerivedView(d.View),
		Report: dossier.Report,
	}
}

func toDerivedView(v reconcile.View) DerivedView {
	out := DerivedView{
		DocumentType:  v.DocumentType,
		Identity:      IdentityView(v.Identity),
		Owners:        make([]OwnerView, 0, len(v.Owners)),
		AINarrative:   v.AINarrative,
		MediaFindings: v.MediaFindings,
		CPFValid:      v.CPFValid,
		SourceErrors:  v.SourceErrors,
		Provenance:    v.Provenance,
		Sanctions: SanctionsView{
			CEIS:  toSanctionList(v.Sanctions.CEIS),
			CNEP:  toSanctionList(v.Sanctions.CNEP),
			CEPIM: toSanctionList(v.Sanctions.CEPIM),
			Total: v.Sanctions.Total,
			Clear: v.Sanctions.Clear,
		},
	}
	if v.Address != nil {
		a := AddressView(*v.Address)
		out.Address = &a
	}
	for _, o := range v.Owners {
		out.Owners = append(out.Owners, OwnerView(o))
	}
	if v.PEP != nil {
		out.PEP = &PEPView{IsPEP: v.PEP.IsPEP, Details: v.PEP.Details}
	}
	return out
}

func toSanctionList(l reconcile.List) SanctionListView {
	entries, remaining := l.Display(reconcile.DefaultDisplayLimit)
	return SanctionListView{
		Fetched:   l.Fetched,
		Error:     l.Error,
		Total:     l.Total,
		Entries:   entries,
		Remaining: remaining,
	}
}
