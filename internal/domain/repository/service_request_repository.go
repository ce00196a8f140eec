package repository

import (
	"context"

	"storecare/internal/domain/entity"
)

type ServiceRequestRepository interface {
	Create(ctx context.Context, req *entity.ServiceRequest) error
	GetByID(ctx context.Context, id string) (*entity.ServiceRequest, error)
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.ServiceRequest, int64, error)
	// ListAll returns every request, optionally only those in status.
	ListAll(ctx context.Context, status entity.ServiceRequestStatus, limit, offset int) ([]*entity.ServiceRequest, int64, error)
	Update(ctx context.Context, req *entity.ServiceRequest) error
}
