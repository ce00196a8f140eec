package usecase

import (
	"context"
	"strconv"
	"strings"
	"time"

	"storecare/internal/domain/entity"
	"storecare/internal/domain/repository"
	"storecare/internal/infrastructure/ratelimit"
	"storecare/pkg/errors"
	"storecare/pkg/logger"
)

type ServiceRequestUseCase struct {
	requestRepo repository.ServiceRequestRepository
	rateLimiter *ratelimit.RateLimiter
}

func NewServiceRequestUseCase(requestRepo repository.ServiceRequestRepository, rateLimiter *ratelimit.RateLimiter) *ServiceRequestUseCase {
	return &ServiceRequestUseCase{
		requestRepo: requestRepo,
		rateLimiter: rateLimiter,
	}
}

type ItemCount struct {
	Item  string
	Count int
}

// SubmitServiceRequestInput carries the form for one service type: item
// counts for valve replacements, AlarmType for alarm replacements, and
// free-form Notes for any type.
type SubmitServiceRequestInput struct {
	Type          entity.ServiceType
	StoreRef      string
	Items         []ItemCount
	AlarmType     string
	Notes         string
	PreferredDate *time.Time
}

type UpdateServiceRequestStatusInput struct {
	Status    entity.ServiceRequestStatus
	StaffNote string
}

func (uc *ServiceRequestUseCase) Submit(ctx context.Context, userID string, input SubmitServiceRequestInput) (*entity.ServiceRequest, error) {
	if allowed, wait := uc.rateLimiter.Allow(userID, ratelimit.ActionSubmitServiceRequest); !allowed {
		logger.Warn("Submit service request rate limited: user %s must wait %v", userID, wait)
		return nil, errors.TooManyRequests("Too many service requests", wait)
	}

	details, err := requestDetails(input)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.StoreRef) == "" {
		return nil, errors.BadRequest("Store is required", nil)
	}
	if input.PreferredDate != nil && input.PreferredDate.Before(time.Now().Add(-24*time.Hour)) {
		return nil, errors.BadRequest("Preferred date cannot be in the past", nil)
	}

	req := &entity.ServiceRequest{
		UserID:        userID,
		Type:          input.Type,
		StoreRef:      strings.TrimSpace(input.StoreRef),
		Details:       details,
		PreferredDate: input.PreferredDate,
		Status:        entity.ServiceRequestPending,
	}
	if err := uc.requestRepo.Create(ctx, req); err != nil {
		logger.Error("Submit service request: failed to create for user %s: %v", userID, err)
		return nil, err
	}

	return req, nil
}

// requestDetails turns the form into detail lines, item lines first and
// notes last. Items with a zero count are left out.
func requestDetails(input SubmitServiceRequestInput) ([]entity.RequestDetail, error) {
	var details []entity.RequestDetail

	switch input.Type {
	case entity.ServiceValveReplacement:
		seen := make(map[string]bool)
		for _, item := range input.Items {
			if !contains(entity.ValveItems, item.Item) {
				return nil, errors.BadRequest("Unknown valve item "+item.Item, nil)
			}
			if item.Count < 0 || seen[item.Item] {
				return nil, errors.BadRequest("Invalid count for "+item.Item, nil)
			}
			seen[item.Item] = true
			if item.Count > 0 {
				details = append(details, entity.RequestDetail{Key: item.Item, Value: strconv.Itoa(item.Count)})
			}
		}
		if len(details) == 0 {
			return nil, errors.BadRequest("Choose at least one item", nil)
		}

	case entity.ServiceAlarmReplacement:
		if !contains(entity.AlarmTypes, input.AlarmType) {
			return nil, errors.BadRequest("Choose an alarm type", nil)
		}
		details = append(details, entity.RequestDetail{Key: entity.DetailAlarmType, Value: input.AlarmType})

	case entity.ServicePipeRemoval:

	default:
		return nil, errors.BadRequest("Unknown service type", nil)
	}

	if input.Type != entity.ServiceValveReplacement && len(input.Items) > 0 {
		return nil, errors.BadRequest("Items only apply to valve replacements", nil)
	}
	if notes := strings.TrimSpace(input.Notes); notes != "" {
		details = append(details, entity.RequestDetail{Key: entity.DetailExtraNotes, Value: notes})
	}
	return details, nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func (uc *ServiceRequestUseCase) ListMine(ctx context.Context, userID string, limit, offset int) ([]*entity.ServiceRequest, int64, error) {
	return uc.requestRepo.ListByUserID(ctx, userID, limit, offset)
}

func (uc *ServiceRequestUseCase) Get(ctx context.Context, actor *entity.Identity, id string) (*entity.ServiceRequest, error) {
	req, err := uc.requestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && req.UserID != actor.ID {
		return nil, errors.Forbidden("You do not have access to this service request", nil)
	}
	return req, nil
}

func (uc *ServiceRequestUseCase) ListAll(ctx context.Context, status entity.ServiceRequestStatus, limit, offset int) ([]*entity.ServiceRequest, int64, error) {
	return uc.requestRepo.ListAll(ctx, status, limit, offset)
}

func (uc *ServiceRequestUseCase) UpdateStatus(ctx context.Context, id string, input UpdateServiceRequestStatusInput) (*entity.ServiceRequest, error) {
	req, err := uc.requestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !req.Status.CanTransition(input.Status) {
		return nil, errors.BadRequest("Cannot move service request from "+string(req.Status)+" to "+string(input.Status), nil)
	}

	req.Status = input.Status
	if note := strings.TrimSpace(input.StaffNote); note != "" {
		req.StaffNote = note
	}
	if err := uc.requestRepo.Update(ctx, req); err != nil {
		return nil, err
	}

	logger.Info("Service request %s moved to %s", req.ID, req.Status)
	return req, nil
}
