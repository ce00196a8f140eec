package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapterrepo "storecare/internal/adapter/repository"
	"storecare/internal/domain/entity"
	"storecare/internal/infrastructure/ratelimit"
	"storecare/pkg/errors"
)

func newServiceRequestUseCase() *ServiceRequestUseCase {
	return NewServiceRequestUseCase(adapterrepo.NewMemoryServiceRequestRepository(), ratelimit.NewRateLimiter())
}

func TestSubmitServiceRequest(t *testing.T) {
	uc := newServiceRequestUseCase()
	ctx := context.Background()
	tomorrow := time.Now().Add(24 * time.Hour)

	req, err := uc.Submit(ctx, customer.ID, SubmitServiceRequestInput{
		Type:     entity.ServiceValveReplacement,
		StoreRef: "  store-7 ",
		Items: []ItemCount{
			{Item: "valve_8mm", Count: 2},
			{Item: "air_regulator", Count: 0},
		},
		Notes:         " valve is leaking ",
		PreferredDate: &tomorrow,
	})
	require.NoError(t, err)
	assert.Equal(t, []entity.RequestDetail{
		{Key: "valve_8mm", Value: "2"},
		{Key: entity.DetailExtraNotes, Value: "valve is leaking"},
	}, req.Details)
	assert.Equal(t, entity.ServiceRequestPending, req.Status)
	assert.Equal(t, "store-7", req.StoreRef)
	assert.Equal(t, customer.ID, req.UserID)
	assert.NotEmpty(t, req.ID)

	got, err := uc.Get(ctx, customer, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.ID, got.ID)
	assert.Equal(t, req.Details, got.Details)

	_, err = uc.Get(ctx, &entity.Identity{ID: "cust-2", Role: entity.RoleCustomer}, req.ID)
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	_, err = uc.Get(ctx, staffA, req.ID)
	assert.NoError(t, err)
}

func TestSubmitServiceRequest_Validation(t *testing.T) {
	lastWeek := time.Now().Add(-7 * 24 * time.Hour)

	tests := []struct {
		name  string
		input SubmitServiceRequestInput
	}{
		{"unknown type", SubmitServiceRequestInput{Type: "roof_repair", StoreRef: "store-1"}},
		{"missing store", SubmitServiceRequestInput{Type: entity.ServicePipeRemoval, StoreRef: "   "}},
		{"past date", SubmitServiceRequestInput{Type: entity.ServiceAlarmReplacement, StoreRef: "store-1", AlarmType: "lpg", PreferredDate: &lastWeek}},
		{"valve without items", SubmitServiceRequestInput{Type: entity.ServiceValveReplacement, StoreRef: "store-1", Notes: "just look"}},
		{"valve with only zero counts", SubmitServiceRequestInput{Type: entity.ServiceValveReplacement, StoreRef: "store-1", Items: []ItemCount{{Item: "valve_8mm"}}}},
		{"unknown valve item", SubmitServiceRequestInput{Type: entity.ServiceValveReplacement, StoreRef: "store-1", Items: []ItemCount{{Item: "faucet", Count: 1}}}},
		{"negative count", SubmitServiceRequestInput{Type: entity.ServiceValveReplacement, StoreRef: "store-1", Items: []ItemCount{{Item: "valve_8mm", Count: -1}}}},
		{"repeated item", SubmitServiceRequestInput{Type: entity.ServiceValveReplacement, StoreRef: "store-1", Items: []ItemCount{{Item: "valve_8mm", Count: 1}, {Item: "valve_8mm", Count: 2}}}},
		{"alarm without type", SubmitServiceRequestInput{Type: entity.ServiceAlarmReplacement, StoreRef: "store-1"}},
		{"unknown alarm type", SubmitServiceRequestInput{Type: entity.ServiceAlarmReplacement, StoreRef: "store-1", AlarmType: "smoke"}},
		{"items on pipe removal", SubmitServiceRequestInput{Type: entity.ServicePipeRemoval, StoreRef: "store-1", Items: []ItemCount{{Item: "valve_8mm", Count: 1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newServiceRequestUseCase().Submit(context.Background(), customer.ID, tt.input)
			assert.True(t, errors.Is(err, errors.CodeBadRequest))
		})
	}
}

func TestSubmitServiceRequest_DetailsPerType(t *testing.T) {
	ctx := context.Background()

	alarm, err := newServiceRequestUseCase().Submit(ctx, customer.ID, SubmitServiceRequestInput{
		Type:      entity.ServiceAlarmReplacement,
		StoreRef:  "store-1",
		AlarmType: "lpg",
		Notes:     "kitchen",
	})
	require.NoError(t, err)
	alarmType, ok := alarm.Detail(entity.DetailAlarmType)
	require.True(t, ok)
	assert.Equal(t, "lpg", alarmType)
	notes, ok := alarm.Detail(entity.DetailExtraNotes)
	require.True(t, ok)
	assert.Equal(t, "kitchen", notes)

	pipe, err := newServiceRequestUseCase().Submit(ctx, customer.ID, SubmitServiceRequestInput{
		Type:     entity.ServicePipeRemoval,
		StoreRef: "store-1",
		Notes:    "   ",
	})
	require.NoError(t, err)
	assert.Empty(t, pipe.Details)
	_, ok = pipe.Detail(entity.DetailExtraNotes)
	assert.False(t, ok)
}

func TestSubmitServiceRequest_RateLimited(t *testing.T) {
	uc := newServiceRequestUseCase()
	input := SubmitServiceRequestInput{Type: entity.ServicePipeRemoval, StoreRef: "store-1"}

	for i := 0; i < 5; i++ {
		_, err := uc.Submit(context.Background(), customer.ID, input)
		require.NoError(t, err)
	}

	_, err := uc.Submit(context.Background(), customer.ID, input)
	assert.True(t, errors.Is(err, errors.CodeTooManyRequests))
}

func TestUpdateServiceRequestStatus(t *testing.T) {
	uc := newServiceRequestUseCase()
	ctx := context.Background()

	req, err := uc.Submit(ctx, customer.ID, SubmitServiceRequestInput{Type: entity.ServiceAlarmReplacement, StoreRef: "store-3", AlarmType: "lng"})
	require.NoError(t, err)

	_, err = uc.UpdateStatus(ctx, req.ID, UpdateServiceRequestStatusInput{Status: entity.ServiceRequestCompleted})
	assert.True(t, errors.Is(err, errors.CodeBadRequest))

	for _, next := range []entity.ServiceRequestStatus{
		entity.ServiceRequestScheduled,
		entity.ServiceRequestInProgress,
		entity.ServiceRequestCompleted,
	} {
		req, err = uc.UpdateStatus(ctx, req.ID, UpdateServiceRequestStatusInput{Status: next, StaffNote: "on it"})
		require.NoError(t, err)
		assert.Equal(t, next, req.Status)
	}
	assert.Equal(t, "on it", req.StaffNote)

	_, err = uc.UpdateStatus(ctx, req.ID, UpdateServiceRequestStatusInput{Status: entity.ServiceRequestCancelled})
	assert.True(t, errors.Is(err, errors.CodeBadRequest))

	all, total, err := uc.ListAll(ctx, entity.ServiceRequestCompleted, 20, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, req.ID, all[0].ID)

	pending, total, err := uc.ListAll(ctx, entity.ServiceRequestPending, 20, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, pending)
}

func TestServiceRequestStatus_CanTransition(t *testing.T) {
	assert.True(t, entity.ServiceRequestPending.CanTransition(entity.ServiceRequestCancelled))
	assert.True(t, entity.ServiceRequestScheduled.CanTransition(entity.ServiceRequestInProgress))
	assert.False(t, entity.ServiceRequestPending.CanTransition(entity.ServiceRequestInProgress))
	assert.False(t, entity.ServiceRequestCancelled.CanTransition(entity.ServiceRequestPending))
	assert.False(t, entity.ServiceRequestCompleted.CanTransition(entity.ServiceRequestCancelled))
}
