package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycdesk/internal/document"
	"kycdesk/internal/dossier/models"
	"kycdesk/internal/dossier/store"
	"kycdesk/internal/evidence/registry"
	id "kycdesk/pkg/domain"
	"kycdesk/pkg/requestcontext"
)

type gatedScreener struct {
	calls   atomic.Int32
	release chan struct{}
	ctxDone atomic.Bool
}

func (g *gatedScreener) Screen(ctx context.Context, doc document.Document) (*registry.Screening, error) {
	g.calls.Add(1)
	<-g.release
	if err := ctx.Err(); err != nil {
		g.ctxDone.Store(true)
		return nil, err
	}
	return &registry.Screening{
		Report:     &models.Report{},
		Document:   doc,
		EntityName: "ACME LTDA",
		RiskLevel:  models.RiskLow,
	}, nil
}

func TestCreate_ConcurrentSameDocumentScreensOnce(t *testing.T) {
	screener := &gatedScreener{release: make(chan struct{})}
	svc, err := New(store.NewInMemory(), screener)
	require.NoError(t, err)

	ctx := requestcontext.WithCaller(context.Background(), id.UserID(uuid.New()), id.CompanyID(uuid.New()))

	const callers = 5
	var wg sync.WaitGroup
	ids := make([]id.DossierID, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Create(ctx, cnpj, false)
			if err != nil {
				existing, ok := ExistingID(err)
				assert.True(t, ok, "unexpected error: %v", err)
				ids[i] = existing
				return
			}
			ids[i] = res.ID
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(screener.release)
	wg.Wait()

	assert.Equal(t, int32(1), screener.calls.Load())
	for _, got := range ids {
		assert.Equal(t, ids[0], got)
	}
}

func TestCreate_LeaderCancellationDoesNotFailFollowers(t *testing.T) {
	screener := &gatedScreener{release: make(chan struct{})}
	svc, err := New(store.NewInMemory(), screener)
	require.NoError(t, err)

	base := requestcontext.WithCaller(context.Background(), id.UserID(uuid.New()), id.CompanyID(uuid.New()))
	leaderCtx, cancelLeader := context.WithCancel(base)

	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.Create(leaderCtx, cnpj, false)
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return screener.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type outcome struct {
		res *CreateResult
		err error
	}
	follower := make(chan outcome, 1)
	go func() {
		res, err := svc.Create(base, cnpj, false)
		follower <- outcome{res, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	err = <-leaderErr
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	close(screener.release)
	got := <-follower
	require.NoError(t, got.err)
	require.NotNil(t, got.res)
	assert.NotEqual(t, id.DossierID{}, got.res.ID)
	assert.False(t, screener.ctxDone.Load(), "screening ran under a cancelled context")
	assert.Equal(t, int32(1), screener.calls.Load())
}
