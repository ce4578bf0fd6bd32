package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Screener,Notifier,AuditPublisher,OpsTracker

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
	"kycdesk/internal/evidence/registry"
	"kycdesk/internal/monitoring/models"
	"kycdesk/internal/monitoring/notify"
	"kycdesk/internal/monitoring/reconcile"
	"kycdesk/internal/monitoring/service/mocks"
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
	mockNotifier *mocks.MockNotifier
	mockAuditor  *mocks.MockAuditPublisher
	mockOps      *mocks.MockOpsTracker
	service      *Service

	companyID id.CompanyID
	now       time.Time
	ctx       context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockStore(s.ctrl)
	s.mockScreener = mocks.NewMockScreener(s.ctrl)
	s.mockNotifier = mocks.NewMockNotifier(s.ctrl)
	s.mockAuditor = mocks.NewMockAuditPublisher(s.ctrl)
	s.mockOps = mocks.NewMockOpsTracker(s.ctrl)

	svc, err := New(s.mockStore, s.mockScreener,
		WithNotifier(s.mockNotifier),
		WithAuditPublisher(s.mockAuditor),
		WithOpsTracker(s.mockOps),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
	s.service = svc

	s.companyID = id.CompanyID(uuid.New())
	s.now = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithCaller(context.Background(), id.UserID(uuid.New()), s.companyID)
	s.ctx = requestcontext.WithTime(ctx, s.now)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func screening(raw, name, status string, restrictions int) *registry.Screening {
	return &registry.Screening{
		Document:           document.Classify(raw),
		EntityName:         name,
		RegistrationStatus: status,
		Restrictions:       restrictions,
	}
}

func (s *ServiceSuite) record(raw string, restrictions int) *models.Record {
	doc := document.Classify(raw)
	status := models.ComputeStatus(doc.Kind, "ATIVA", restrictions)
	return models.NewRecord(s.companyID, doc, "ACME", "keep me", status, restrictions, s.now.Add(-24*time.Hour))
}

func (s *ServiceSuite) TestNew() {
	_, err := New(nil, s.mockScreener)
	s.ErrorContains(err, "monitoring store is required")
	_, err = New(s.mockStore, nil)
	s.ErrorContains(err, "screener is required")
}

func (s *ServiceSuite) TestAdd() {
	s.Run("unknown document is rejected", func() {
		_, err := s.service.Add(s.ctx, "123", "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing caller company is unauthorized", func() {
		_, err := s.service.Add(context.Background(), cnpj, "")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("existing record is returned without screening", func() {
		existing := s.record(cnpj, 1)
		s.mockStore.EXPECT().FindByDocument(gomock.Any(), s.companyID, cnpj).Return(existing, nil)

		res, err := s.service.Add(s.ctx, "12.345.678/0001-90", "")
		s.Require().NoError(err)
		s.True(res.AlreadyExists)
		s.Equal(existing.ID, res.RecordID)
		s.Equal(1, res.RestrictionCount)
	})

	s.Run("screens once and persists the computed status", func() {
		var stored *models.Record
		s.mockStore.EXPECT().FindByDocument(gomock.Any(), s.companyID, cnpj).Return(nil, sentinel.ErrNotFound)
		s.mockScreener.EXPECT().Screen(gomock.Any(), document.Classify(cnpj)).Return(screening(cnpj, "ACME LTDA", "BAIXADA", 2), nil)
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, r *models.Record) error {
			stored = r
			return nil
		})
		s.mockAuditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.ComplianceEvent) error {
			s.Equal(audit.EventMonitoringAdded, e.Action)
			s.Equal(audit.HashSubjectID(cnpj), e.SubjectIDHash)
			return nil
		})

		res, err := s.service.Add(s.ctx, cnpj, "  watch closely ")
		s.Require().NoError(err)
		s.False(res.AlreadyExists)
		s.Equal(stored.ID, res.RecordID)
		s.Equal("ACME LTDA", res.EntityName)
		s.Equal(2, res.RestrictionCount)
		s.Equal(models.StatusInactive, stored.Status)
		s.Equal("watch closely", stored.Notes)
		s.Equal("CNPJ", stored.DocumentType)
		s.True(s.now.Equal(stored.CreatedAt))
	})

	s.Run("screening failure persists nothing", func() {
		s.mockStore.EXPECT().FindByDocument(gomock.Any(), s.companyID, cpf).Return(nil, sentinel.ErrNotFound)
		s.mockScreener.EXPECT().Screen(gomock.Any(), gomock.Any()).Return(nil, context.DeadlineExceeded)

		_, err := s.service.Add(s.ctx, cpf, "")
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})

	s.Run("losing a create race returns the winner", func() {
		winner := s.record(cpf, 0)
		gomock.InOrder(
			s.mockStore.EXPECT().FindByDocument(gomock.Any(), s.companyID, cpf).Return(nil, sentinel.ErrNotFound),
			s.mockStore.EXPECT().FindByDocument(gomock.Any(), s.companyID, cpf).Return(winner, nil),
		)
		s.mockScreener.EXPECT().Screen(gomock.Any(), gomock.Any()).Return(screening(cpf, "", "", 0), nil)
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)

		res, err := s.service.Add(s.ctx, cpf, "")
		s.Require().NoError(err)
		s.True(res.AlreadyExists)
		s.Equal(winner.ID, res.RecordID)
	})
}

func (s *ServiceSuite) TestList() {
	s.Run("defaults page size to ten", func() {
		s.mockStore.EXPECT().List(gomock.Any(), s.companyID, "", 10, 0).Return([]models.Record{}, 0, nil)
		page, err := s.service.List(s.ctx, 0, 0, "")
		s.Require().NoError(err)
		s.Equal(1, page.Page)
		s.Equal(10, page.PageSize)
	})

	s.Run("filter accepts legacy labels and kind names", func() {
		s.mockStore.EXPECT().List(gomock.Any(), s.companyID, "CPF", 5, 5).Return([]models.Record{*s.record(cpf, 0)}, 6, nil)
		page, err := s.service.List(s.ctx, 2, 5, "individual")
		s.Require().NoError(err)
		s.Equal(6, page.Total)
		s.Len(page.Records, 1)
	})

	s.Run("unknown filter is rejected", func() {
		_, err := s.service.List(s.ctx, 1, 10, "RG")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestUpdate() {
	s.Run("absent record is not found", func() {
		s.mockStore.EXPECT().FindByDocument(gomock.Any(), s.companyID, cpf).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.Update(s.ctx, cpf)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unchanged restrictions neither emit nor notify", func() {
		rec := s.record(cnpj, 1)
		s.mockStore.EXPECT().FindByDocument(gomock.Any(), s.companyID, cnpj).Return(rec, nil)
		s.mockScreener.EXPECT().Screen(gomock.Any(), gomock.Any()).Return(screening(cnpj, "", "ATIVA", 1), nil)
		s.mockStore.EXPECT().Update(gomock.Any(), rec).Return(nil)
		s.mockOps.EXPECT().Track(gomock.Any(), gomock.Any())

		res, err := s.service.Update(s.ctx, cnpj)
		s.Require().NoError(err)
		s.False(res.HasChanges)
		s.Equal(1, res.OldRestrictions)
		s.Equal(1, res.NewRestrictions)
		s.Equal("ACME", rec.EntityName, "blank screening name keeps the stored one")
		s.Equal("keep me", rec.Notes)
		s.True(s.now.Equal(*rec.LastCheckAt))
	})

	s.Run("changed restrictions emit and notify", func() {
		rec := s.record(cpf, 0)
		s.mockStore.EXPECT().FindByDocument(gomock.Any(), s.companyID, cpf).Return(rec, nil)
		s.mockScreener.EXPECT().Screen(gomock.Any(), gomock.Any()).Return(screening(cpf, "JOAO", "", 3), nil)
		s.mockStore.EXPECT().Update(gomock.Any(), rec).Return(nil)
		s.mockAuditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.ComplianceEvent) error {
			s.Equal(audit.EventMonitoringChanged, e.Action)
			return nil
		})
		s.mockNotifier.EXPECT().NotifyChange(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e notify.ChangeEvent) error {
			s.Equal(cpf, e.Document)
			s.Equal(0, e.PreviousRestrictions)
			s.Equal(3, e.Restrictions)
			s.Equal("IRREGULAR", e.Status)
			s.True(s.now.Equal(e.DetectedAt))
			return nil
		})
		s.mockOps.EXPECT().Track(gomock.Any(), gomock.Any()).Do(func(_ context.Context, e audit.OpsEvent) {
			s.Equal(audit.EventMonitoringChecked, e.Action)
			s.Equal("old=0 new=3", e.Reason)
		})

		res, err := s.service.Update(s.ctx, cpf)
		s.Require().NoError(err)
		s.True(res.HasChanges)
		s.Equal(3, res.NewRestrictions)
		s.Equal("JOAO", rec.EntityName)
		s.Equal(models.StatusIrregular, rec.Status)
	})

	s.Run("notification failure does not fail the check", func() {
		rec := s.record(cpf, 0)
		s.mockStore.EXPECT().FindByDocument(gomock.Any(), s.companyID, cpf).Return(rec, nil)
		s.mockScreener.EXPECT().Screen(gomock.Any(), gomock.Any()).Return(screening(cpf, "", "", 1), nil)
		s.mockStore.EXPECT().Update(gomock.Any(), rec).Return(nil)
		s.mockAuditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
		s.mockNotifier.EXPECT().NotifyChange(gomock.Any(), gomock.Any()).Return(errors.New("nats down"))
		s.mockOps.EXPECT().Track(gomock.Any(), gomock.Any())

		res, err := s.service.Update(s.ctx, cpf)
		s.Require().NoError(err)
		s.True(res.HasChanges)
	})

	s.Run("screening failure leaves the record untouched", func() {
		rec := s.record(cpf, 0)
		s.mockStore.EXPECT().FindByDocument(gomock.Any(), s.companyID, cpf).Return(rec, nil)
		s.mockScreener.EXPECT().Screen(gomock.Any(), gomock.Any()).Return(nil, errors.New("all sources down"))

		_, err := s.service.Update(s.ctx, cpf)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.Equal(0, rec.RestrictionCount)
	})
}

func (s *ServiceSuite) TestUpdateAll() {
	ok := s.record(cpf, 0)
	failing := s.record(cnpj, 0)
	s.mockStore.EXPECT().ListAll(gomock.Any(), s.companyID).Return([]models.Record{*failing, *ok}, nil)
	gomock.InOrder(
		s.mockScreener.EXPECT().Screen(gomock.Any(), document.Classify(cnpj)).Return(nil, context.DeadlineExceeded),
		s.mockScreener.EXPECT().Screen(gomock.Any(), document.Classify(cpf)).Return(screening(cpf, "", "", 0), nil),
	)
	s.mockStore.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
	s.mockOps.EXPECT().Track(gomock.Any(), gomock.Any())

	res, err := s.service.UpdateAll(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, res.Total)
	s.Equal(1, res.Updated)
	s.Require().Len(res.Errors, 1)
	s.Equal(cnpj, res.Errors[0].Document)
	s.Equal("monitoring check timed out", res.Errors[0].Error)
}

func (s *ServiceSuite) TestRemove() {
	s.Run("absent record is not found", func() {
		s.mockStore.EXPECT().Delete(gomock.Any(), s.companyID, cpf).Return(sentinel.ErrNotFound)
		err := s.service.Remove(s.ctx, cpf)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("deletes and emits monitoring_removed", func() {
		s.mockStore.EXPECT().Delete(gomock.Any(), s.companyID, cpf).Return(nil)
		s.mockAuditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.ComplianceEvent) error {
			s.Equal(audit.EventMonitoringRemoved, e.Action)
			return nil
		})
		s.NoError(s.service.Remove(s.ctx, "123.456.789-09"))
	})
}

func (s *ServiceSuite) TestStats() {
	total := 4
	s.mockStore.EXPECT().Stats(gomock.Any(), s.companyID).Return(reconcile.RawStats{
		TotalMonitored: &total,
		ByType:         map[string]int{"CPF": 3, "CNPJ": 1},
		Active:         3,
	}, []reconcile.RawRecord{{AddedDate: "2025-06-01T00:00:00Z"}, {LastCheck: "2025-06-05T00:00:00Z"}}, nil)

	stats, err := s.service.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(4, stats.Total)
	s.Equal(reconcile.ByType{CPF: 3, CNPJ: 1}, stats.ByType)
	s.Equal(1, stats.Inactive)
	s.Require().NotNil(stats.LastUpdate)
	s.Equal(time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC), stats.LastUpdate.UTC())
}

func (s *ServiceSuite) TestRecentChanges() {
	cases := []struct {
		name string
		days int
		want int
	}{
		{"default", 0, 2},
		{"in range", 7, 7},
		{"clamped", 365, 90},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			since := s.now.Add(-time.Duration(tc.want) * 24 * time.Hour)
			s.mockStore.EXPECT().ChangedSince(gomock.Any(), s.companyID, since).Return(nil, nil)
			changes, err := s.service.RecentChanges(s.ctx, tc.days)
			s.Require().NoError(err)
			s.Empty(changes)
		})
	}

	s.Run("maps changed records", func() {
		rec := s.record(cpf, 0)
		rec.ApplyCheck("", models.StatusIrregular, 2, s.now)
		s.mockStore.EXPECT().ChangedSince(gomock.Any(), s.companyID, gomock.Any()).Return([]models.Record{*rec}, nil)

		changes, err := s.service.RecentChanges(s.ctx, 2)
		s.Require().NoError(err)
		s.Require().Len(changes, 1)
		s.Equal(cpf, changes[0].DisplayDocument())
		s.Equal("restrictions changed from 0 to 2", changes[0].Description)
		s.Equal(0, changes[0].OldRestrictions)
		s.Equal(2, changes[0].NewRestrictions)
		s.Require().NotNil(changes[0].DetectedAt)
		s.True(s.now.Equal(*changes[0].DetectedAt))
	})
}
