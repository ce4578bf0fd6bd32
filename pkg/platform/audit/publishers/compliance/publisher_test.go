package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "kycdesk/pkg/domain"
	audit "kycdesk/pkg/platform/audit"
	"kycdesk/pkg/platform/audit/store/memory"
)

func validEvent() audit.ComplianceEvent {
	return audit.ComplianceEvent{
		UserID:    id.UserID(uuid.New()),
		CompanyID: id.CompanyID(uuid.New()),
		Subject:   uuid.NewString(),
		Action:    audit.EventDecisionMade,
		Decision:  "APPROVED",
	}
}

func TestPublisher_Emit(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)
	event := validEvent()

	before := time.Now()
	require.NoError(t, pub.Emit(context.Background(), event))

	events, err := store.ListByCompany(context.Background(), event.CompanyID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "decision_made", events[0].Action)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.False(t, events[0].Timestamp.Before(before), "timestamp is set when missing")
}

func TestPublisher_PreservesTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	event := validEvent()
	event.Timestamp = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, New(store).Emit(context.Background(), event))

	events, _ := store.ListByCompany(context.Background(), event.CompanyID)
	require.Len(t, events, 1)
	assert.Equal(t, event.Timestamp, events[0].Timestamp)
}

func TestPublisher_RejectsIncompleteEvents(t *testing.T) {
	pub := New(memory.NewInMemoryStore())

	noUser := validEvent()
	noUser.UserID = id.UserID{}
	assert.Error(t, pub.Emit(context.Background(), noUser))

	noCompany := validEvent()
	noCompany.CompanyID = id.CompanyID{}
	assert.Error(t, pub.Emit(context.Background(), noCompany))

	noAction := validEvent()
	noAction.Action = ""
	assert.ErrorIs(t, pub.Emit(context.Background(), noAction), ErrIncompleteEvent)

	opsAction := validEvent()
	opsAction.Action = audit.EventMonitoringChecked
	assert.ErrorIs(t, pub.Emit(context.Background(), opsAction), ErrIncompleteEvent)
}

func TestPublisher_FailClosed(t *testing.T) {
	store := memory.NewInMemoryStore()
	store.FailWith(errors.New("outbox unavailable"))

	err := New(store).Emit(context.Background(), validEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compliance audit persistence failed")
}
