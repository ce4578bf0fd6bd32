package handler

import (
	"strings"

	"kycdesk/internal/document"
	dErrors "kycdesk/pkg/domain-errors"
)

type CreateRequest struct {
	Document string `json:"document"`
	EnableAI bool   `json:"enable_ai"`
}

func (r *CreateRequest) Normalize() {
	r.Document = strings.TrimSpace(r.Document)
}

func (r *CreateRequest) Validate() error {
	if r.Document == "" {
		return dErrors.New(dErrors.CodeValidation, "document is required")
	}
	return nil
}

// BatchRequest accepts either a document list or free text in the batch format
// (separated by newlines or semicolons). The list wins when both are sent.
type BatchRequest struct {
	Documents []string `json:"documents"`
	Text      string   `json:"text"`
	EnableAI  bool     `json:"enable_ai"`
}

// Candidates returns the documents to process, in submission order.
func (r *BatchRequest) Candidates() []string {
	if len(r.Documents) > 0 {
		return r.Documents
	}
	return document.ParseBatch(r.Text)
}

type DecisionRequest struct {
	TechnicalOpinion string `json:"technical_opinion"`
	Approved         *bool  `json:"approved"`
	Justification    string `json:"justification"`
}

func (r *DecisionRequest) Validate() error {
	if r.Approved == nil {
		return dErrors.New(dErrors.CodeValidation, "approved is required")
	}
	return nil
}
