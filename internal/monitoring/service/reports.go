package service

import (
	"context"
	"time"

	"kycdesk/internal/monitoring/reconcile"
	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/requestcontext"
)

const (
	defaultChangeDays = 2
	maxChangeDays     = 90
)

func (s *Service) Stats(ctx context.Context) (reconcile.Stats, error) {
	companyID, err := callerCompany(ctx)
	if err != nil {
		return reconcile.Stats{}, err
	}
	raw, records, err := s.store.Stats(ctx, companyID)
	if err != nil {
		return reconcile.Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load monitoring stats")
	}
	return reconcile.ReconcileStats(raw, records), nil
}

// RecentChanges lists records whose last check changed their restrictions within the
// window. days outside 1..90 is clamped; zero or less means the default of 2.
func (s *Service) RecentChanges(ctx context.Context, days int) ([]reconcile.Change, error) {
	companyID, err := callerCompany(ctx)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = defaultChangeDays
	}
	days = min(days, maxChangeDays)

	since := requestcontext.Now(ctx).Add(-time.Duration(days) * 24 * time.Hour)
	records, err := s.store.ChangedSince(ctx, companyID, since)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load monitoring changes")
	}

	raw := make([]reconcile.RawChange, 0, len(records))
	for _, r := range records {
		rc := reconcile.RawChange{
			DocumentType:    r.DocumentType,
			OldRestrictions: r.PreviousRestrictions,
			NewRestrictions: r.RestrictionCount,
		}
		if r.Document != "" {
			digits := r.Document
			rc.Document = &digits
		}
		if r.ChangeDescription != "" {
			desc := r.ChangeDescription
			rc.ChangeDescription = &desc
		}
		if r.LastCheckAt != nil {
			rc.DetectedAt = r.LastCheckAt.UTC().Format(time.RFC3339Nano)
		}
		raw = append(raw, rc)
	}
	return reconcile.ReconcileChanges(raw), nil
}
