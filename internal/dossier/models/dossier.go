package models

import (
	"strings"
	"time"

	id "kycdesk/pkg/domain"
)

// RiskLevel is the coarse risk rating assigned when a dossier is assembled.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// DecisionStatus tracks the two-party approval workflow.
// PENDING is the only non-terminal state; a dossier leaves it exactly once.
type DecisionStatus string

const (
	DecisionPending  DecisionStatus = "PENDING"
	DecisionApproved DecisionStatus = "APPROVED"
	DecisionRejected DecisionStatus = "REJECTED"
)

func (s DecisionStatus) IsTerminal() bool {
	return s == DecisionApproved || s == DecisionRejected
}

// Dossier is the investigation record for one subject within one company.
type Dossier struct {
	ID           id.DossierID
	CompanyID    id.CompanyID
	Document     string
	DocumentType string // legacy label: CPF or CNPJ
	EntityName   string
	RiskLevel    RiskLevel
	Report       *Report
	Decision     Decision
	CreatedAt    time.Time
}

// Decision holds the fields written by the approval transition.
type Decision struct {
	TechnicalOpinion      string
	DirectorJustification string
	Status                DecisionStatus
	Approved              *bool
	DecidedAt             *time.Time
	DecidedBy             *id.UserID
}

// DecisionInput is the validated request for the PENDING → terminal transition.
type DecisionInput struct {
	DossierID        id.DossierID
	CompanyID        id.CompanyID
	DecidedBy        id.UserID
	TechnicalOpinion string
	Approved         bool
	Justification    string
}

// Status is the terminal state the input leads to.
func (in DecisionInput) Status() DecisionStatus {
	if in.Approved {
		return DecisionApproved
	}
	return DecisionRejected
}

// HasOpinion reports whether the technical opinion has content. The stored opinion is
// kept verbatim; trimming is only used for this check.
func (in DecisionInput) HasOpinion() bool {
	return strings.TrimSpace(in.TechnicalOpinion) != ""
}

// DecisionResult is returned by a successful transition.
type DecisionResult struct {
	Status    DecisionStatus
	DecidedAt time.Time
}

// NewDossier creates a dossier in the PENDING state.
func NewDossier(companyID id.CompanyID, digits, docType, entityName string, risk RiskLevel, report *Report, now time.Time) *Dossier {
	return &Dossier{
		ID:           id.NewDossierID(),
		CompanyID:    companyID,
		Document:     digits,
		DocumentType: docType,
		EntityName:   entityName,
		RiskLevel:    risk,
		Report:       report,
		Decision:     Decision{Status: DecisionPending},
		CreatedAt:    now,
	}
}

// Summary is the list-view projection of a dossier.
type Summary struct {
	ID             id.DossierID
	Document       string
	DocumentType   string
	EntityName     string
	RiskLevel      RiskLevel
	DecisionStatus DecisionStatus
	CreatedAt      time.Time
}

func (d *Dossier) Summary() Summary {
	return Summary{
		ID:             d.ID,
		Document:       d.Document,
		DocumentType:   d.DocumentType,
		EntityName:     d.EntityName,
		RiskLevel:      d.RiskLevel,
		DecisionStatus: d.Decision.Status,
		CreatedAt:      d.CreatedAt,
	}
}
