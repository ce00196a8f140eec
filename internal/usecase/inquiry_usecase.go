package usecase

import (
	"context"
	"strings"

	"storecare/internal/domain/entity"
	"storecare/internal/domain/repository"
	"storecare/internal/infrastructure/ratelimit"
	"storecare/pkg/errors"
	"storecare/pkg/logger"
)

type InquiryUseCase struct {
	inquiryRepo repository.InquiryRepository
	rateLimiter *ratelimit.RateLimiter
}

func NewInquiryUseCase(inquiryRepo repository.InquiryRepository, rateLimiter *ratelimit.RateLimiter) *InquiryUseCase {
	return &InquiryUseCase{
		inquiryRepo: inquiryRepo,
		rateLimiter: rateLimiter,
	}
}

type SubmitInquiryInput struct {
	StoreRef string
	Category entity.InquiryCategory
	Priority entity.InquiryPriority
	Title    string
	Body     string
}

type RespondInquiryInput struct {
	Content      string
	InternalNote bool
}

func (uc *InquiryUseCase) Submit(ctx context.Context, userID string, input SubmitInquiryInput) (*entity.Inquiry, error) {
	if allowed, wait := uc.rateLimiter.Allow(userID, ratelimit.ActionSubmitInquiry); !allowed {
		logger.Warn("Submit inquiry rate limited: user %s must wait %v", userID, wait)
		return nil, errors.TooManyRequests("Too many inquiries", wait)
	}

	title := strings.TrimSpace(input.Title)
	body := strings.TrimSpace(input.Body)
	if title == "" || body == "" {
		return nil, errors.BadRequest("Title and body are required", nil)
	}

	category := input.Category
	if category == "" {
		category = entity.InquiryGeneral
	}
	priority := input.Priority
	if priority == "" {
		priority = entity.InquiryPriorityNormal
	}

	inquiry := &entity.Inquiry{
		UserID:   userID,
		StoreRef: strings.TrimSpace(input.StoreRef),
		Category: category,
		Priority: priority,
		Title:    title,
		Body:     body,
		Status:   entity.InquiryReceived,
	}
	if err := uc.inquiryRepo.Create(ctx, inquiry); err != nil {
		logger.Error("Submit inquiry: failed to create for user %s: %v", userID, err)
		return nil, err
	}

	return inquiry, nil
}

func (uc *InquiryUseCase) ListMine(ctx context.Context, userID string, limit, offset int) ([]*entity.Inquiry, int64, error) {
	return uc.inquiryRepo.ListByUserID(ctx, userID, limit, offset)
}

// Get returns the inquiry with its response thread. Customers only see
// their own inquiries and never see internal notes.
func (uc *InquiryUseCase) Get(ctx context.Context, actor *entity.Identity, id string) (*entity.Inquiry, error) {
	inquiry, err := uc.getOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	responses, err := uc.inquiryRepo.ListResponses(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, response := range responses {
		if response.IsInternalNote && !actor.IsStaff() {
			continue
		}
		inquiry.Responses = append(inquiry.Responses, response)
	}
	return inquiry, nil
}

func (uc *InquiryUseCase) getOwned(ctx context.Context, actor *entity.Identity, id string) (*entity.Inquiry, error) {
	inquiry, err := uc.inquiryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && inquiry.UserID != actor.ID {
		return nil, errors.Forbidden("You do not have access to this inquiry", nil)
	}
	return inquiry, nil
}

// ListForTriage returns inquiries in status, or all of them when status is empty.
func (uc *InquiryUseCase) ListForTriage(ctx context.Context, status entity.InquiryStatus, limit, offset int) ([]*entity.Inquiry, int64, error) {
	return uc.inquiryRepo.ListByStatus(ctx, status, limit, offset)
}

// Respond appends to the inquiry's thread. Replies to a done inquiry are
// refused until staff move it out of done; internal notes are not.
func (uc *InquiryUseCase) Respond(ctx context.Context, staff *entity.Identity, id string, input RespondInquiryInput) (*entity.InquiryResponse, error) {
	if !staff.IsStaff() {
		return nil, errors.Forbidden("Staff privileges required", nil)
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, errors.BadRequest("Response is required", nil)
	}

	inquiry, err := uc.inquiryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inquiry.Status == entity.InquiryDone && !input.InternalNote {
		return nil, errors.Conflict("Inquiry is already done")
	}

	response := &entity.InquiryResponse{
		InquiryID:      inquiry.ID,
		StaffID:        staff.ID,
		Content:        content,
		IsInternalNote: input.InternalNote,
	}
	if err := uc.inquiryRepo.AddResponse(ctx, response); err != nil {
		logger.Error("Respond to inquiry %s: %v", id, err)
		return nil, err
	}
	return response, nil
}

// UpdateStatus lets staff move an inquiry to any of its statuses.
func (uc *InquiryUseCase) UpdateStatus(ctx context.Context, staff *entity.Identity, id string, status entity.InquiryStatus) (*entity.Inquiry, error) {
	if !staff.IsStaff() {
		return nil, errors.Forbidden("Staff privileges required", nil)
	}
	if !status.Valid() {
		return nil, errors.BadRequest("Unknown inquiry status", nil)
	}

	inquiry, err := uc.inquiryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inquiry.Status == status {
		return inquiry, nil
	}

	inquiry.Status = status
	if err := uc.inquiryRepo.Update(ctx, inquiry); err != nil {
		return nil, err
	}

	logger.Info("Inquiry %s moved to %s by %s", inquiry.ID, status, staff.ID)
	return inquiry, nil
}

// Close marks the caller's inquiry done. Closing a done inquiry is a no-op.
func (uc *InquiryUseCase) Close(ctx context.Context, actor *entity.Identity, id string) (*entity.Inquiry, error) {
	inquiry, err := uc.getOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if inquiry.Status == entity.InquiryDone {
		return inquiry, nil
	}

	inquiry.Status = entity.InquiryDone
	if err := uc.inquiryRepo.Update(ctx, inquiry); err != nil {
		return nil, err
	}
	return inquiry, nil
}
