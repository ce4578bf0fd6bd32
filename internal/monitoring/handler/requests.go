package handler

import (
	"strings"

	dErrors "kycdesk/pkg/domain-errors"
)

type AddRequest struct {
	Document string `json:"document"`
	Notes    string `json:"notes"`
}

func (r *AddRequest) Normalize() {
	r.Document = strings.TrimSpace(r.Document)
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *AddRequest) Validate() error {
	if r.Document == "" {
		return dErrors.New(dErrors.CodeValidation, "document is required")
	}
	return nil
}
