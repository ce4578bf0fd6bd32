// Package models holds the monitoring record and its status rules.
package models

import (
	"fmt"
	"strings"
	"time"

	"kycdesk/internal/document"
	id "kycdesk/pkg/domain"
)

// Status is the coarse standing of a monitored subject. Organizations use
// ACTIVE/INACTIVE/UNKNOWN; individuals use REGULAR/IRREGULAR.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusUnknown   Status = "UNKNOWN"
	StatusRegular   Status = "REGULAR"
	StatusIrregular Status = "IRREGULAR"
)

// ComputeStatus derives a status from the latest screening.
func ComputeStatus(kind document.Kind, registrationStatus string, restrictions int) Status {
	if kind == document.KindOrganization {
		upper := strings.ToUpper(strings.TrimSpace(registrationStatus))
		switch {
		case strings.Contains(upper, "ATIVA"):
			return StatusActive
		case upper != "":
			return StatusInactive
		default:
			return StatusUnknown
		}
	}
	if restrictions > 0 {
		return StatusIrregular
	}
	return StatusRegular
}

// Record is one subject under continuous re-checking for one company.
type Record struct {
	ID                   id.MonitoringID
	CompanyID            id.CompanyID
	Document             string
	DocumentType         string
	Status               Status
	EntityName           string
	Notes                string
	RestrictionCount     int
	PreviousRestrictions int
	HasChanges           bool
	ChangeDescription    string
	LastCheckAt          *time.Time
	CreatedAt            time.Time
}

// NewRecord creates a record from its first screening.
func NewRecord(companyID id.CompanyID, doc document.Document, entityName, notes string, status Status, restrictions int, now time.Time) *Record {
	return &Record{
		ID:               id.NewMonitoringID(),
		CompanyID:        companyID,
		Document:         doc.Digits,
		DocumentType:     doc.Label(),
		Status:           status,
		EntityName:       entityName,
		Notes:            notes,
		RestrictionCount: restrictions,
		LastCheckAt:      &now,
		CreatedAt:        now,
	}
}

// ApplyCheck records a re-check. A check that yields no entity name keeps the stored
// one; notes are never touched.
func (r *Record) ApplyCheck(entityName string, status Status, restrictions int, now time.Time) {
	r.PreviousRestrictions = r.RestrictionCount
	r.HasChanges = restrictions != r.RestrictionCount
	r.ChangeDescription = ""
	if r.HasChanges {
		r.ChangeDescription = fmt.Sprintf("restrictions changed from %d to %d", r.RestrictionCount, restrictions)
	}
	if strings.TrimSpace(entityName) != "" {
		r.EntityName = entityName
	}
	r.RestrictionCount = restrictions
	r.Status = status
	r.LastCheckAt = &now
}
