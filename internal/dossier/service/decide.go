package service

import (
	"context"
	"errors"

	"kycdesk/internal/dossier/models"
	id "kycdesk/pkg/domain"
	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/platform/audit"
	"kycdesk/pkg/platform/sentinel"
	"kycdesk/pkg/requestcontext"
)

// Decide records the director's decision. The store performs the PENDING → terminal
// compare-and-set; the audit event is written in the same transaction.
func (s *Service) Decide(ctx context.Context, dossierID id.DossierID, technicalOpinion string, approved bool, justification string) (models.DecisionResult, error) {
	companyID, err := callerCompany(ctx)
	if err != nil {
		return models.DecisionResult{}, err
	}
	in := models.DecisionInput{
		DossierID:        dossierID,
		CompanyID:        companyID,
		DecidedBy:        requestcontext.UserID(ctx),
		TechnicalOpinion: technicalOpinion,
		Approved:         approved,
		Justification:    justification,
	}
	if !in.HasOpinion() {
		return models.DecisionResult{}, dErrors.New(dErrors.CodeValidation, "technical opinion is required")
	}
	if dossierID.IsNil() {
		return models.DecisionResult{}, dErrors.New(dErrors.CodeBadRequest, "dossier id required")
	}

	var result models.DecisionResult
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		res, err := s.store.Decide(ctx, in)
		if err != nil {
			return err
		}
		result = res
		return s.emit(ctx, audit.EventDecisionMade, dossierID.String(), string(res.Status), "")
	})
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return models.DecisionResult{}, dErrors.New(dErrors.CodeNotFound, "dossier not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			s.metrics.IncDecisionConflict()
			return models.DecisionResult{}, dErrors.New(dErrors.CodeConflict, "decision already recorded")
		default:
			s.logger.ErrorContext(ctx, "failed to record decision",
				"company_id", companyID.String(),
				"dossier_id", dossierID.String(),
				"error", err,
			)
			return models.DecisionResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record decision")
		}
	}

	s.metrics.IncDecision(string(result.Status))
	s.logger.InfoContext(ctx, "decision recorded",
		"company_id", companyID.String(),
		"dossier_id", dossierID.String(),
		"user_id", in.DecidedBy.String(),
		"status", result.Status,
	)
	return result, nil
}
