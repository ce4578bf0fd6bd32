package service

import (
	"context"
	"errors"

	id "kycdesk/pkg/domain"
	dErrors "kycdesk/pkg/domain-errors"
)

// DuplicateError marks a create rejected because the company already has a dossier
// for the document.
type DuplicateError struct {
	ExistingID id.DossierID
}

func (e *DuplicateError) Error() string {
	return "dossier already exists: " + e.ExistingID.String()
}

func duplicate(existing id.DossierID) error {
	return dErrors.Wrap(&DuplicateError{ExistingID: existing}, dErrors.CodeConflict, "dossier already exists")
}

// ExistingID extracts the id carried by a duplicate-create conflict.
func ExistingID(err error) (id.DossierID, bool) {
	var de *DuplicateError
	if errors.As(err, &de) {
		return de.ExistingID, true
	}
	return id.DossierID{}, false
}

// transportFailure maps an aggregation failure; nothing has been persisted when it is returned.
func transportFailure(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "evidence aggregation timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "evidence sources unavailable")
}
