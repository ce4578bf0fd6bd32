package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycdesk/internal/platform/kafka"
	auditpg "kycdesk/pkg/platform/audit/store/postgres"
	"kycdesk/pkg/platform/tx"
)

type fakeOutbox struct {
	entries []auditpg.Entry
	marked  []uuid.UUID
}

func (f *fakeOutbox) FetchUnpublished(_ context.Context, limit int) ([]auditpg.Entry, error) {
	var out []auditpg.Entry
	for _, e := range f.entries {
		if len(out) == limit {
			break
		}
		if !f.isMarked(e.ID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, ids []uuid.UUID, _ time.Time) error {
	f.marked = append(f.marked, ids...)
	return nil
}

func (f *fakeOutbox) isMarked(id uuid.UUID) bool {
	for _, m := range f.marked {
		if m == id {
			return true
		}
	}
	return false
}

type fakePublisher struct {
	records []kafka.Record
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, _ string, records []kafka.Record) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, records...)
	return nil
}

func newEntries(n int) []auditpg.Entry {
	entries := make([]auditpg.Entry, n)
	for i := range entries {
		entries[i] = auditpg.Entry{
			ID:            uuid.New(),
			AggregateType: "dossier",
			AggregateID:   uuid.NewString(),
			EventType:     "decision_made",
			Payload:       []byte(`{}`),
		}
	}
	return entries
}

func TestRelay_Tick(t *testing.T) {
	t.Run("publishes and marks a batch", func(t *testing.T) {
		outbox := &fakeOutbox{entries: newEntries(3)}
		pub := &fakePublisher{}
		relay := NewRelay(outbox, pub, tx.NoopRunner{}, "kycdesk.audit", time.Second, 2, nil)

		n, err := relay.Tick(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Len(t, outbox.marked, 2)
		assert.Equal(t, outbox.entries[0].AggregateID, pub.records[0].Key)
		assert.Equal(t, "decision_made", pub.records[0].Headers["event_type"])

		n, err = relay.Tick(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("publish failure leaves entries unmarked", func(t *testing.T) {
		outbox := &fakeOutbox{entries: newEntries(2)}
		pub := &fakePublisher{err: errors.New("broker down")}
		relay := NewRelay(outbox, pub, tx.NoopRunner{}, "kycdesk.audit", time.Second, 10, nil)

		n, err := relay.Tick(context.Background())
		require.Error(t, err)
		assert.Zero(t, n)
		assert.Empty(t, outbox.marked)
	})

	t.Run("empty outbox is a no-op", func(t *testing.T) {
		pub := &fakePublisher{}
		relay := NewRelay(&fakeOutbox{}, pub, tx.NoopRunner{}, "kycdesk.audit", time.Second, 10, nil)

		n, err := relay.Tick(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Empty(t, pub.records)
	})
}
