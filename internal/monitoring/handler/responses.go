package handler

import (
	"time"

	"kycdesk/internal/monitoring/models"
	"kycdesk/internal/monitoring/reconcile"
	"kycdesk/internal/monitoring/service"
	id "kycdesk/pkg/domain"
)

type AddResponse struct {
	RecordID         id.MonitoringID `json:"record_id"`
	Document         string          `json:"document"`
	EntityName       string          `json:"entity_name"`
	RestrictionCount int             `json:"restriction_count"`
	AlreadyExists    bool            `json:"already_exists"`
}

type RecordResponse struct {
	ID                   id.MonitoringID `json:"id"`
	Document             string          `json:"document"`
	DocumentType         string          `json:"document_type"`
	Status               string          `json:"current_status"`
	EntityName           string          `json:"entity_name"`
	Notes                string          `json:"notes"`
	RestrictionCount     int             `json:"restriction_count"`
	PreviousRestrictions int             `json:"previous_restriction_count"`
	HasChanges           bool            `json:"has_changes"`
	ChangeDescription    string          `json:"change_description,omitempty"`
	LastCheck            *time.Time      `json:"last_check"`
	AddedDate            time.Time       `json:"added_date"`
}

type ListResponse struct {
	Records  []RecordResponse `json:"records"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

type UpdateResponse struct {
	Document        string `json:"document"`
	OldRestrictions int    `json:"old_restrictions"`
	NewRestrictions int    `json:"new_restrictions"`
	HasChanges      bool   `json:"has_changes"`
}

type UpdateErrorResponse struct {
	Document string `json:"document"`
	Error    string `json:"error"`
}

type UpdateAllResponse struct {
	Total   int                   `json:"total"`
	Updated int                   `json:"updated"`
	Errors  []UpdateErrorResponse `json:"errors"`
}

type ChangesResponse struct {
	Changes []reconcile.Change `json:"changes"`
	Total   int                `json:"total"`
}

func toRecordResponse(r models.Record) RecordResponse {
	return RecordResponse{
		ID:                   r.ID,
		Document:             r.Document,
		DocumentType:         r.DocumentType,
		Status:               string(r.Status),
		EntityName:           r.EntityName,
		Notes:                r.Notes,
		RestrictionCount:     r.RestrictionCount,
		PreviousRestrictions: r.PreviousRestrictions,
		HasChanges:           r.HasChanges,
		ChangeDescription:    r.ChangeDescription,
		LastCheck:            r.LastCheckAt,
		AddedDate:            r.CreatedAt,
	}
}

func toListResponse(p *service.Page) ListResponse {
	records := make([]RecordResponse, 0, len(p.Records))
	for _, r := range p.Records {
		records = append(records, toRecordResponse(r))
	}
	return ListResponse{Records: records, Total: p.Total, Page: p.Page, PageSize: p.PageSize}
}

func toUpdateAllResponse(res *service.UpdateAllResult) UpdateAllResponse {
	errs := make([]UpdateErrorResponse, 0, len(res.Errors))
	for _, e := range res.Errors {
		errs = append(errs, UpdateErrorResponse(e))
	}
	return UpdateAllResponse{Total: res.Total, Updated: res.Updated, Errors: errs}
}
