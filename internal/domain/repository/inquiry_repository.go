package repository

import (
	"context"

	"storecare/internal/domain/entity"
)

type InquiryRepository interface {
	Create(ctx context.Context, inquiry *entity.Inquiry) error
	GetByID(ctx context.Context, id string) (*entity.Inquiry, error)
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Inquiry, int64, error)
	ListByStatus(ctx context.Context, status entity.InquiryStatus, limit, offset int) ([]*entity.Inquiry, int64, error)
	Update(ctx context.Context, inquiry *entity.Inquiry) error

	// AddResponse appends to the inquiry's response thread and bumps the
	// inquiry's updatedAt.
	AddResponse(ctx context.Context, response *entity.InquiryResponse) error
	// ListResponses orders by createdAt ascending.
	ListResponses(ctx context.Context, inquiryID string) ([]*entity.InquiryResponse, error)
}
