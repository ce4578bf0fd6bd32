package audit

import (
	"context"
	"time"

	id "kycdesk/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This drives retention and which publisher handles the event.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance: a dossier was
	// opened on a subject, or a compliance decision was recorded. Fail-closed.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine activity useful for operational visibility.
	// These can be sampled and are never allowed to fail the business operation.
	CategoryOperations EventCategory = "operations"
)

// Event is the transport-agnostic audit record written to the outbox.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	CompanyID id.CompanyID
	// Subject is the aggregate the action concerned (dossier id, monitoring document).
	Subject  string
	Action   string
	Decision string
	Reason   string
	// SubjectIDHash is a SHA-256 of the investigated tax ID, for traceability without raw PII.
	SubjectIDHash string
	RequestID     string
	ClientIP      string
	Device        string
}

type AuditEvent string

const (
	// Dossier events
	EventDossierCreated AuditEvent = "dossier_created"
	EventDecisionMade   AuditEvent = "decision_made"
	EventBatchSubmitted AuditEvent = "batch_submitted"

	// Monitoring events
	EventMonitoringAdded   AuditEvent = "monitoring_added"
	EventMonitoringRemoved AuditEvent = "monitoring_removed"
	EventMonitoringChecked AuditEvent = "monitoring_checked"
	EventMonitoringChanged AuditEvent = "monitoring_changed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDossierCreated:    CategoryCompliance,
	EventDecisionMade:      CategoryCompliance,
	EventMonitoringAdded:   CategoryCompliance,
	EventMonitoringRemoved: CategoryCompliance,
	EventMonitoringChanged: CategoryCompliance,

	EventBatchSubmitted:    CategoryOperations,
	EventMonitoringChecked: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events. The Postgres implementation writes to the outbox and
// joins the caller's transaction when one is present in ctx.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// ComplianceEvent captures regulatory-significant actions requiring guaranteed persistence.
type ComplianceEvent struct {
	Timestamp     time.Time
	UserID        id.UserID    // analyst who acted (required)
	CompanyID     id.CompanyID // tenant scope (required)
	Subject       string
	Action        AuditEvent
	Decision      string // e.g. "APPROVED", "REJECTED", "HIGH"
	SubjectIDHash string
	RequestID     string
	ClientIP      string
	Device        string
}

// Category returns CategoryCompliance (always).
func (e ComplianceEvent) Category() EventCategory { return CategoryCompliance }

// ToEvent converts to the storage Event.
func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:      CategoryCompliance,
		Timestamp:     e.Timestamp,
		UserID:        e.UserID,
		CompanyID:     e.CompanyID,
		Subject:       e.Subject,
		Action:        string(e.Action),
		Decision:      e.Decision,
		SubjectIDHash: e.SubjectIDHash,
		RequestID:     e.RequestID,
		ClientIP:      e.ClientIP,
		Device:        e.Device,
	}
}

// OpsEvent captures operational events with minimal overhead.
// Events are fire-and-forget with optional sampling.
type OpsEvent struct {
	Timestamp time.Time
	CompanyID id.CompanyID
	Subject   string
	Action    AuditEvent
	Reason    string
	RequestID string
}

// Category returns CategoryOperations (always).
func (e OpsEvent) Category() EventCategory { return CategoryOperations }

// ToEvent converts to the storage Event.
func (e OpsEvent) ToEvent() Event {
	return Event{
		Category:  CategoryOperations,
		Timestamp: e.Timestamp,
		CompanyID: e.CompanyID,
		Subject:   e.Subject,
		Action:    string(e.Action),
		Reason:    e.Reason,
		RequestID: e.RequestID,
	}
}
