package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Screener,Narrator,AuditPublisher,OpsTracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"kycdesk/internal/document"
	"kycdesk/internal/dossier/models"
	"kycdesk/internal/dossier/service/mocks"
	"kycdesk/internal/evidence/narrative"
	"kycdesk/internal/evidence/registry"
	id "kycdesk/pkg/domain"
	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/platform/audit"
	"kycdesk/pkg/platform/sentinel"
	"kycdesk/pkg/requestcontext"
)

const (
	cnpj = "12345678000190"
	cpf  = "12345678909"
)

type ServiceSuite struct {
	suite.Suite
	ctrl         *gomock.Controller
	mockStore    *mocks.MockStore
	mockScreener *mocks.MockScreener
	mockNarrator *mocks.MockNarrator
	mockAuditor  *mocks.MockAuditPublisher
	mockOps      *mocks.MockOpsTracker
	service      *Service

	userID    id.UserID
	companyID id.CompanyID
	ctx       context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockStore(s.ctrl)
	s.mockScreener = mocks.NewMockScreener(s.ctrl)
	s.mockNarrator = mocks.NewMockNarrator(s.ctrl)
	s.mockAuditor = mocks.NewMockAuditPublisher(s.ctrl)
	s.mockOps = mocks.NewMockOpsTracker(s.ctrl)

	svc, err := New(s.mockStore, s.mockScreener,
		WithAuditPublisher(s.mockAuditor),
		WithOpsTracker(s.mockOps),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
	s.service = svc

	s.userID = id.UserID(uuid.New())
	s.companyID = id.CompanyID(uuid.New())
	s.ctx = requestcontext.WithCaller(context.Background(), s.userID, s.companyID)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) screening(raw string) *registry.Screening {
	return &registry.Screening{
		Report:             &models.Report{},
		Document:           document.Classify(raw),
		EntityName:         "ACME LTDA",
		RegistrationStatus: "ATIVA",
		RiskLevel:          models.RiskLow,
	}
}

func (s *ServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, s.mockScreener)
		s.ErrorContains(err, "dossier store is required")
	})

	s.Run("nil screener returns error", func() {
		_, err := New(s.mockStore, nil)
		s.ErrorContains(err, "screener is required")
	})
}

func (s *ServiceSuite) TestCreate() {
	s.Run("unknown document is rejected before any lookup", func() {
		_, err := s.service.Create(s.ctx, "123", false)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(document.InvalidMessage, dErrors.MessageOf(err))
	})

	s.Run("missing caller company is unauthorized", func() {
		_, err := s.service.Create(context.Background(), cnpj, false)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("duplicate carries the existing id", func() {
		existing := id.NewDossierID()
		s.mockStore.EXPECT().FindIDByDocument(gomock.Any(), s.companyID, cnpj).Return(existing, nil)

		_, err := s.service.Create(s.ctx, "12.345.678/0001-90", false)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		got, ok := ExistingID(err)
		s.True(ok)
		s.Equal(existing, got)
	})

	s.Run("persists a pending dossier and emits dossier_created", func() {
		var stored *models.Dossier
		s.mockStore.EXPECT().FindIDByDocument(gomock.Any(), s.companyID, cnpj).Return(id.DossierID{}, sentinel.ErrNotFound)
		s.mockScreener.EXPECT().Screen(gomock.Any(), document.Classify(cnpj)).Return(s.screening(cnpj), nil)
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, d *models.Dossier) error {
			stored = d
			return nil
		})
		s.mockAuditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.ComplianceEvent) error {
			s.Equal(audit.EventDossierCreated, e.Action)
			s.Equal(s.userID, e.UserID)
			s.Equal(s.companyID, e.CompanyID)
			s.Equal(audit.HashSubjectID(cnpj), e.SubjectIDHash)
			return nil
		})

		res, err := s.service.Create(s.ctx, cnpj, false)
		s.Require().NoError(err)
		s.Equal(stored.ID, res.ID)
		s.Equal("ACME LTDA", res.EntityName)
		s.Equal("CNPJ", res.DocumentType)
		s.Equal(models.RiskLow, res.RiskLevel)
		s.Equal(models.DecisionPending, stored.Decision.Status)
		s.Nil(stored.Report.AIAnalysis)
	})

	s.Run("ai without a narrator records that it is not configured", func() {
		var stored *models.Dossier
		s.mockStore.EXPECT().FindIDByDocument(gomock.Any(), s.companyID, cpf).Return(id.DossierID{}, sentinel.ErrNotFound)
		s.mockScreener.EXPECT().Screen(gomock.Any(), gomock.Any()).Return(s.screening(cpf), nil)
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, d *models.Dossier) error {
			stored = d
			return nil
		})
		s.mockAuditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		_, err := s.service.Create(s.ctx, cpf, true)
		s.Require().NoError(err)
		s.Equal("AI not configured", stored.Report.AIAnalysis)
	})

	s.Run("screening timeout persists nothing", func() {
		s.mockStore.EXPECT().FindIDByDocument(gomock.Any(), s.companyID, cnpj).Return(id.DossierID{}, sentinel.ErrNotFound)
		s.mockScreener.EXPECT().Screen(gomock.Any(), gomock.Any()).Return(nil, context.DeadlineExceeded)

		_, err := s.service.Create(s.ctx, cnpj, false)
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})

	s.Run("audit failure fails the create", func() {
		s.mockStore.EXPECT().FindIDByDocument(gomock.Any(), s.companyID, cnpj).Return(id.DossierID{}, sentinel.ErrNotFound)
		s.mockScreener.EXPECT().Screen(gomock.Any(), gomock.Any()).Return(s.screening(cnpj), nil)
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		s.mockAuditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("outbox down"))

		_, err := s.service.Create(s.ctx, cnpj, false)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("losing a create race reports the winner", func() {
		winner := id.NewDossierID()
		gomock.InOrder(
			s.mockStore.EXPECT().FindIDByDocument(gomock.Any(), s.companyID, cnpj).Return(id.DossierID{}, sentinel.ErrNotFound),
			s.mockStore.EXPECT().FindIDByDocument(gomock.Any(), s.companyID, cnpj).Return(winner, nil),
		)
		s.mockScreener.EXPECT().Screen(gomock.Any(), gomock.Any()).Return(s.screening(cnpj), nil)
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)

		_, err := s.service.Create(s.ctx, cnpj, false)
		got, ok := ExistingID(err)
		s.True(ok)
		s.Equal(winner, got)
	})
}

func (s *ServiceSuite) TestCreate_Narrative() {
	svc, err := New(s.mockStore, s.mockScreener, WithNarrator(s.mockNarrator))
	s.Require().NoError(err)

	s.Run("narrator output is stored", func() {
		var stored *models.Dossier
		s.mockStore.EXPECT().FindIDByDocument(gomock.Any(), s.companyID, cnpj).Return(id.DossierID{}, sentinel.ErrNotFound)
		s.mockScreener.EXPECT().Screen(gomock.Any(), gomock.Any()).Return(s.screening(cnpj), nil)
		s.mockNarrator.EXPECT().Narrate(gomock.Any(), narrative.Subject{
			Document:           cnpj,
			DocumentType:       "CNPJ",
			EntityName:         "ACME LTDA",
			RegistrationStatus: "ATIVA",
			RiskLevel:          "LOW",
		}).Return("Approve.", nil)
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, d *models.Dossier) error {
			stored = d
			return nil
		})

		_, err := svc.Create(s.ctx, cnpj, true)
		s.Require().NoError(err)
		s.Equal("Approve.", stored.Report.AIAnalysis)
	})

	s.Run("narrator failure becomes the narrative", func() {
		var stored *models.Dossier
		s.mockStore.EXPECT().FindIDByDocument(gomock.Any(), s.companyID, cnpj).Return(id.DossierID{}, sentinel.ErrNotFound)
		s.mockScreener.EXPECT().Screen(gomock.Any(), gomock.Any()).Return(s.screening(cnpj), nil)
		s.mockNarrator.EXPECT().Narrate(gomock.Any(), gomock.Any()).Return("", errors.New("quota exceeded"))
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, d *models.Dossier) error {
			stored = d
			return nil
		})

		_, err := svc.Create(s.ctx, cnpj, true)
		s.Require().NoError(err)
		s.Equal("AI analysis failed: quota exceeded", stored.Report.AIAnalysis)
	})
}

func (s *ServiceSuite) TestCheckDuplicate() {
	s.Run("absent", func() {
		s.mockStore.EXPECT().FindIDByDocument(gomock.Any(), s.companyID, cpf).Return(id.DossierID{}, sentinel.ErrNotFound)
		res, err := s.service.CheckDuplicate(s.ctx, "123.456.789-09")
		s.Require().NoError(err)
		s.False(res.Exists)
		s.Nil(res.DossierID)
	})

	s.Run("present", func() {
		existing := id.NewDossierID()
		s.mockStore.EXPECT().FindIDByDocument(gomock.Any(), s.companyID, cpf).Return(existing, nil)
		res, err := s.service.CheckDuplicate(s.ctx, cpf)
		s.Require().NoError(err)
		s.True(res.Exists)
		s.Equal(existing, *res.DossierID)
	})
}

func (s *ServiceSuite) TestGet() {
	s.Run("other company's dossier is not found", func() {
		dossierID := id.NewDossierID()
		s.mockStore.EXPECT().FindByID(gomock.Any(), s.companyID, dossierID).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.Get(s.ctx, dossierID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("returns the derived view", func() {
		d := models.NewDossier(s.companyID, cnpj, "CNPJ", "ACME LTDA", models.RiskLow, &models.Report{}, time.Now())
		s.mockStore.EXPECT().FindByID(gomock.Any(), s.companyID, d.ID).Return(d, nil)
		detail, err := s.service.Get(s.ctx, d.ID)
		s.Require().NoError(err)
		s.Equal("ACME LTDA", detail.View.Identity.Name)
		s.Equal("CNPJ", detail.View.DocumentType)
		s.True(detail.View.Sanctions.Clear)
	})
}

func (s *ServiceSuite) TestList_ClampsPaging() {
	s.mockStore.EXPECT().List(gomock.Any(), s.companyID, 100, 100).Return([]models.Summary{}, 150, nil)
	page, err := s.service.List(s.ctx, 2, 500)
	s.Require().NoError(err)
	s.Equal(150, page.Total)
	s.Equal(100, page.PageSize)

	s.mockStore.EXPECT().List(gomock.Any(), s.companyID, 20, 0).Return(nil, 0, nil)
	page, err = s.service.List(s.ctx, 0, 0)
	s.Require().NoError(err)
	s.Equal(1, page.Page)
	s.Equal(20, page.PageSize)
}

func (s *ServiceSuite) TestSubmitBatch() {
	s.Run("empty list is rejected", func() {
		_, err := s.service.SubmitBatch(s.ctx, []string{" ", ""}, false)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal("no documents provided", dErrors.MessageOf(err))
	})

	s.Run("items are processed in order and failures reported", func() {
		known := id.NewDossierID()
		s.mockStore.EXPECT().FindIDsByDocuments(gomock.Any(), s.companyID, []string{cpf, cnpj}).
			Return(map[string]id.DossierID{cpf: known}, nil)
		s.mockStore.EXPECT().FindIDByDocument(gomock.Any(), s.companyID, cnpj).Return(id.DossierID{}, sentinel.ErrNotFound)
		s.mockScreener.EXPECT().Screen(gomock.Any(), gomock.Any()).Return(s.screening(cnpj), nil)
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		s.mockAuditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
		s.mockOps.EXPECT().Track(gomock.Any(), gomock.Any()).Do(func(_ context.Context, e audit.OpsEvent) {
			s.Equal(audit.EventBatchSubmitted, e.Action)
			s.Equal("processed=3 failed=2", e.Reason)
		})

		res, err := s.service.SubmitBatch(s.ctx, []string{cpf, "999", cnpj}, false)
		s.Require().NoError(err)
		s.Equal(3, res.TotalProcessed)
		s.Equal(1, res.Successful)
		s.Equal(2, res.Failed)

		s.Require().Len(res.Results, 3)
		s.Equal("already exists", res.Results[0].Error)
		s.Equal(known, *res.Results[0].ExistingID)
		s.Equal(document.InvalidMessage, res.Results[1].Error)
		s.NotNil(res.Results[2].DossierID)
		s.Empty(res.Results[2].Error)

		s.Equal([]BatchError{
			{Document: cpf, Error: "already exists"},
			{Document: "999", Error: document.InvalidMessage},
		}, res.Errors)
	})
}

func (s *ServiceSuite) TestDecide() {
	dossierID := id.NewDossierID()

	s.Run("blank opinion is rejected without touching the store", func() {
		_, err := s.service.Decide(s.ctx, dossierID, "   ", true, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("approval is recorded and audited", func() {
		decidedAt := time.Now()
		s.mockStore.EXPECT().Decide(gomock.Any(), models.DecisionInput{
			DossierID:        dossierID,
			CompanyID:        s.companyID,
			DecidedBy:        s.userID,
			TechnicalOpinion: " looks fine ",
			Approved:         true,
			Justification:    "ok",
		}).Return(models.DecisionResult{Status: models.DecisionApproved, DecidedAt: decidedAt}, nil)
		s.mockAuditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.ComplianceEvent) error {
			s.Equal(audit.EventDecisionMade, e.Action)
			s.Equal("APPROVED", e.Decision)
			s.Equal(dossierID.String(), e.Subject)
			return nil
		})

		res, err := s.service.Decide(s.ctx, dossierID, " looks fine ", true, "ok")
		s.Require().NoError(err)
		s.Equal(models.DecisionApproved, res.Status)
		s.Equal(decidedAt, res.DecidedAt)
	})

	s.Run("second decision conflicts", func() {
		s.mockStore.EXPECT().Decide(gomock.Any(), gomock.Any()).Return(models.DecisionResult{}, sentinel.ErrInvalidState)
		_, err := s.service.Decide(s.ctx, dossierID, "opinion", false, "")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal("decision already recorded", dErrors.MessageOf(err))
	})

	s.Run("unknown dossier is not found", func() {
		s.mockStore.EXPECT().Decide(gomock.Any(), gomock.Any()).Return(models.DecisionResult{}, sentinel.ErrNotFound)
		_, err := s.service.Decide(s.ctx, dossierID, "opinion", false, "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("audit failure surfaces as internal", func() {
		s.mockStore.EXPECT().Decide(gomock.Any(), gomock.Any()).Return(models.DecisionResult{Status: models.DecisionRejected}, nil)
		s.mockAuditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("outbox down"))
		_, err := s.service.Decide(s.ctx, dossierID, "opinion", false, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}
