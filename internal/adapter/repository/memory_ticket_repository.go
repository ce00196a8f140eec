package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"storecare/internal/domain/entity"
	"storecare/internal/domain/repository"
	"storecare/pkg/errors"
	"storecare/pkg/utils"
)

// MemoryServiceRequestRepository keeps service requests in process memory.
type MemoryServiceRequestRepository struct {
	mu       sync.Mutex
	requests map[string]*entity.ServiceRequest
}

var _ repository.ServiceRequestRepository = (*MemoryServiceRequestRepository)(nil)

func NewMemoryServiceRequestRepository() *MemoryServiceRequestRepository {
	return &MemoryServiceRequestRepository{
		requests: make(map[string]*entity.ServiceRequest),
	}
}

func (r *MemoryServiceRequestRepository) Create(ctx context.Context, req *entity.ServiceRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[req.ID] = copyServiceRequest(req)
	return nil
}

func copyServiceRequest(req *entity.ServiceRequest) *entity.ServiceRequest {
	copied := *req
	copied.Details = append([]entity.RequestDetail(nil), req.Details...)
	return &copied
}

func (r *MemoryServiceRequestRepository) GetByID(ctx context.Context, id string) (*entity.ServiceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, errors.NotFound("Service request", nil)
	}
	return copyServiceRequest(req), nil
}

func (r *MemoryServiceRequestRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.ServiceRequest, int64, error) {
	return r.list(func(req *entity.ServiceRequest) bool { return req.UserID == userID }, limit, offset)
}

func (r *MemoryServiceRequestRepository) ListAll(ctx context.Context, requestStatus entity.ServiceRequestStatus, limit, offset int) ([]*entity.ServiceRequest, int64, error) {
	return r.list(func(req *entity.ServiceRequest) bool {
		return requestStatus == "" || req.Status == requestStatus
	}, limit, offset)
}

func (r *MemoryServiceRequestRepository) list(match func(*entity.ServiceRequest) bool, limit, offset int) ([]*entity.ServiceRequest, int64, error) {
	r.mu.Lock()
	var matched []*entity.ServiceRequest
	for _, req := range r.requests {
		if match(req) {
			matched = append(matched, copyServiceRequest(req))
		}
	}
	r.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	start, end := utils.Window(len(matched), limit, offset)
	return matched[start:end], int64(len(matched)), nil
}

func (r *MemoryServiceRequestRepository) Update(ctx context.Context, req *entity.ServiceRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.requests[req.ID]; !ok {
		return errors.NotFound("Service request", nil)
	}
	req.UpdatedAt = time.Now().UTC()
	r.requests[req.ID] = copyServiceRequest(req)
	return nil
}

// MemoryInquiryRepository keeps inquiries in process memory.
type MemoryInquiryRepository struct {
	mu        sync.Mutex
	inquiries map[string]*entity.Inquiry
	responses map[string][]*entity.InquiryResponse
}

var _ repository.InquiryRepository = (*MemoryInquiryRepository)(nil)

func NewMemoryInquiryRepository() *MemoryInquiryRepository {
	return &MemoryInquiryRepository{
		inquiries: make(map[string]*entity.Inquiry),
		responses: make(map[string][]*entity.InquiryResponse),
	}
}

func (r *MemoryInquiryRepository) Create(ctx context.Context, inquiry *entity.Inquiry) error {
	if inquiry.ID == "" {
		inquiry.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	inquiry.CreatedAt = now
	inquiry.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *inquiry
	copied.Responses = nil
	r.inquiries[inquiry.ID] = &copied
	return nil
}

func (r *MemoryInquiryRepository) GetByID(ctx context.Context, id string) (*entity.Inquiry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inquiry, ok := r.inquiries[id]
	if !ok {
		return nil, errors.NotFound("Inquiry", nil)
	}
	copied := *inquiry
	return &copied, nil
}

func (r *MemoryInquiryRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Inquiry, int64, error) {
	matched := r.filter(func(i *entity.Inquiry) bool { return i.UserID == userID })
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	start, end := utils.Window(len(matched), limit, offset)
	return matched[start:end], int64(len(matched)), nil
}

func (r *MemoryInquiryRepository) ListByStatus(ctx context.Context, inquiryStatus entity.InquiryStatus, limit, offset int) ([]*entity.Inquiry, int64, error) {
	matched := r.filter(func(i *entity.Inquiry) bool {
		return inquiryStatus == "" || i.Status == inquiryStatus
	})
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	start, end := utils.Window(len(matched), limit, offset)
	return matched[start:end], int64(len(matched)), nil
}

func (r *MemoryInquiryRepository) filter(match func(*entity.Inquiry) bool) []*entity.Inquiry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*entity.Inquiry
	for _, inquiry := range r.inquiries {
		if match(inquiry) {
			copied := *inquiry
			matched = append(matched, &copied)
		}
	}
	return matched
}

func (r *MemoryInquiryRepository) Update(ctx context.Context, inquiry *entity.Inquiry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.inquiries[inquiry.ID]; !ok {
		return errors.NotFound("Inquiry", nil)
	}
	inquiry.UpdatedAt = time.Now().UTC()
	copied := *inquiry
	copied.Responses = nil
	r.inquiries[inquiry.ID] = &copied
	return nil
}

func (r *MemoryInquiryRepository) AddResponse(ctx context.Context, response *entity.InquiryResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inquiry, ok := r.inquiries[response.InquiryID]
	if !ok {
		return errors.NotFound("Inquiry", nil)
	}
	if response.ID == "" {
		response.ID = uuid.New().String()
	}
	response.CreatedAt = time.Now().UTC()
	inquiry.UpdatedAt = response.CreatedAt

	copied := *response
	r.responses[response.InquiryID] = append(r.responses[response.InquiryID], &copied)
	return nil
}

// ListResponses returns the thread in insertion order, which is createdAt
// order.
func (r *MemoryInquiryRepository) ListResponses(ctx context.Context, inquiryID string) ([]*entity.InquiryResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	thread := r.responses[inquiryID]
	out := make([]*entity.InquiryResponse, 0, len(thread))
	for _, response := range thread {
		copied := *response
		out = append(out, &copied)
	}
	return out, nil
}
